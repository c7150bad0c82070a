package project

import "github.com/signalsfoundry/compass-survey/model"

// elementKind tags the variant held by an element.
type elementKind int

const (
	elementBaseLocation elementKind = iota
	elementCarriageReturn
	elementComment
	elementDatum
	elementLineFeed
	elementFile
	elementPushFolder
	elementPopFolder
	elementUTMZone
	elementWhitespace
)

func (k elementKind) String() string {
	switch k {
	case elementBaseLocation:
		return "base location"
	case elementCarriageReturn:
		return "carriage return"
	case elementComment:
		return "comment"
	case elementDatum:
		return "datum"
	case elementLineFeed:
		return "line feed"
	case elementFile:
		return "survey file"
	case elementPushFolder:
		return "push folder"
	case elementPopFolder:
		return "pop folder"
	case elementUTMZone:
		return "utm zone"
	case elementWhitespace:
		return "whitespace"
	default:
		return "unknown"
	}
}

// element is one parsed directive. Only the field matching kind is set.
type element struct {
	kind  elementKind
	off   int // byte offset of the directive
	base  model.UtmLocation
	datum model.Datum
	file  model.SurveyFile
	text  string // comment text or folder name
	zone  uint8
}

// accumulator is the running state of a project parse. fold never mutates
// an accumulator it was given; slices are copied before they grow.
type accumulator struct {
	base    *model.UtmLocation
	datum   *model.Datum
	zone    *uint8
	files   []model.SurveyFile
	folders []string
}

// fold applies one element to acc and returns the next state.
func fold(acc accumulator, el element) (accumulator, error) {
	switch el.kind {
	case elementBaseLocation:
		base := el.base
		acc.base = &base
	case elementDatum:
		datum := el.datum
		acc.datum = &datum
	case elementUTMZone:
		zone := el.zone
		acc.zone = &zone
	case elementFile:
		acc.files = appendCopy(acc.files, el.file)
	case elementPushFolder:
		acc.folders = appendCopy(acc.folders, el.text)
	case elementPopFolder:
		if len(acc.folders) == 0 {
			return acc, ErrUnbalancedFolder
		}
		acc.folders = acc.folders[:len(acc.folders)-1:len(acc.folders)-1]
	case elementComment, elementCarriageReturn, elementLineFeed, elementWhitespace:
		// no structural effect
	}
	return acc, nil
}

// finish turns the final accumulator into a Project, checking that both
// mandatory directives were seen.
func finish(acc accumulator) (*model.Project, error) {
	if acc.base == nil {
		return nil, ErrMissingBaseLocation
	}
	if acc.datum == nil {
		return nil, ErrMissingDatum
	}
	return &model.Project{
		BaseLocation: *acc.base,
		Datum:        *acc.datum,
		UTMZone:      acc.zone,
		SurveyFiles:  acc.files,
	}, nil
}

func appendCopy[T any](s []T, v T) []T {
	out := make([]T, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}
