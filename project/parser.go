// Package project parses Compass project (.mak) files.
//
// A project file is a stream of directives. Each directive starts with a
// marker character and ends with a semicolon:
//
//	@east,north,elevation,zone,convergence;   base location (metres)
//	&North American 1983;                     datum
//	/ free text                               comment (to '/', CR or LF)
//	#file.dat,STA1[m,e,n,el],STA2;            survey data file + stations
//	[folder name;  ...  ];                    folder scope push / pop
//	$13;                                      UTM zone override
//
// Line breaks and other whitespace between directives are ignored. The
// format is documented at
// https://www.fountainware.com/compass/HTML_Help/Project_Manager/projectfileformat.htm
package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/compass-survey/internal/textscan"
	"github.com/signalsfoundry/compass-survey/model"
)

var (
	// ErrCouldntParseProject is matched by every error Parse returns.
	ErrCouldntParseProject = errors.New("could not parse project")

	ErrUnknownDatum        = errors.New("unknown datum")
	ErrUnbalancedFolder    = errors.New("folder pop without a matching push")
	ErrMissingBaseLocation = errors.New("no base location (@) directive")
	ErrMissingDatum        = errors.New("no datum (&) directive")
	ErrUnterminated        = errors.New("unterminated directive")
)

// Parse reads a whole project file. It fails if any directive is malformed
// or if the file never declares a base location and a datum.
//
// Errors match ErrCouldntParseProject and wrap a *textscan.SyntaxError with
// the position of the failure.
func Parse(input string) (*model.Project, error) {
	c := textscan.New(input)
	c.Consume("\uFEFF")

	var acc accumulator
	for !c.AtEOF() {
		el, err := parseElement(c)
		if err != nil {
			return nil, wrap(err)
		}
		acc, err = fold(acc, el)
		if err != nil {
			return nil, wrap(&textscan.SyntaxError{Pos: c.PositionAt(el.off), Msg: err.Error(), Err: err})
		}
	}

	p, err := finish(acc)
	if err != nil {
		return nil, wrap(&textscan.SyntaxError{Pos: c.Position(), Msg: err.Error(), Err: err})
	}
	return p, nil
}

func wrap(err error) error {
	return fmt.Errorf("%w: %w", ErrCouldntParseProject, err)
}

// parseElement consumes exactly one directive or whitespace run.
func parseElement(c *textscan.Cursor) (element, error) {
	start := c.Mark()
	b, _ := c.Peek()

	var (
		el  element
		err error
	)
	switch b {
	case '@':
		el, err = parseBaseLocation(c)
	case '\r':
		c.Advance(1)
		el = element{kind: elementCarriageReturn}
	case '/':
		el = parseComment(c)
	case '&':
		el, err = parseDatum(c)
	case '\n':
		c.Advance(1)
		el = element{kind: elementLineFeed}
	case '#':
		el, err = parseSurveyFile(c)
	case '[':
		el, err = parsePushFolder(c)
	case ']':
		el, err = parsePopFolder(c)
	case '$':
		el, err = parseUTMZone(c)
	default:
		if !textscan.IsSpace(b) {
			return element{}, c.Errorf("unexpected %q, expected a directive", b)
		}
		c.TakeWhile(func(b byte) bool { return textscan.IsSpace(b) && b != '\r' && b != '\n' })
		el = element{kind: elementWhitespace}
	}

	if err != nil {
		if c.AtEOF() {
			kind := directiveName(b)
			c.Reset(start)
			return element{}, c.Wrapf(ErrUnterminated, "unterminated %s directive", kind)
		}
		return element{}, err
	}
	el.off = start
	return el, nil
}

func directiveName(marker byte) string {
	switch marker {
	case '@':
		return elementBaseLocation.String()
	case '&':
		return elementDatum.String()
	case '#':
		return elementFile.String()
	case '[':
		return elementPushFolder.String()
	case ']':
		return elementPopFolder.String()
	case '$':
		return elementUTMZone.String()
	}
	return "unknown"
}

// parseTriple reads "a, b, c" where every value may be surrounded by
// whitespace.
func parseTriple(c *textscan.Cursor) (a, b, d float64, err error) {
	if a, err = c.Float(); err != nil {
		return
	}
	if err = c.Expect(','); err != nil {
		return
	}
	if b, err = c.Float(); err != nil {
		return
	}
	if err = c.Expect(','); err != nil {
		return
	}
	d, err = c.Float()
	return
}

func parseBaseLocation(c *textscan.Cursor) (element, error) {
	c.Advance(1) // '@'
	east, north, elevation, err := parseTriple(c)
	if err != nil {
		return element{}, err
	}
	if err := c.Expect(','); err != nil {
		return element{}, err
	}
	zone, err := c.Uint(8)
	if err != nil {
		return element{}, err
	}
	if err := c.Expect(','); err != nil {
		return element{}, err
	}
	convergence, err := c.Float()
	if err != nil {
		return element{}, err
	}
	if err := c.Expect(';'); err != nil {
		return element{}, err
	}
	return element{
		kind: elementBaseLocation,
		base: model.UtmLocation{
			Position:         model.FromMeters(east, north, elevation),
			Zone:             uint8(zone),
			ConvergenceAngle: convergence,
		},
	}, nil
}

func isEndOfComment(b byte) bool {
	return b == '/' || b == '\n' || b == '\r'
}

func parseComment(c *textscan.Cursor) element {
	c.Advance(1) // '/'
	return element{kind: elementComment, text: c.TakeUntil(isEndOfComment)}
}

// skipComments drops whitespace and any comments embedded in a station
// list.
func skipComments(c *textscan.Cursor) {
	for {
		c.SkipSpace()
		if !c.ConsumeByte('/') {
			return
		}
		c.TakeUntil(isEndOfComment)
	}
}

func parseDatum(c *textscan.Cursor) (element, error) {
	c.Advance(1) // '&'
	nameStart := c.Mark()
	name := c.TakeUntil(func(b byte) bool { return b == ';' || b == '\r' || b == '\n' })
	if err := c.Expect(';'); err != nil {
		return element{}, err
	}
	datum, ok := model.ParseDatum(name)
	if !ok {
		c.Reset(nameStart)
		return element{}, c.Wrapf(ErrUnknownDatum, "unknown datum %q", name)
	}
	return element{kind: elementDatum, datum: datum}, nil
}

func parseSurveyFile(c *textscan.Cursor) (element, error) {
	c.Advance(1) // '#'
	c.SkipSpace()
	path := strings.TrimSpace(c.TakeUntil(func(b byte) bool { return b == ',' || b == ';' }))
	if path == "" {
		return element{}, c.Errorf("expected survey data file path")
	}

	var stations []model.Station
	for c.ConsumeByte(',') {
		skipComments(c)
		station, err := parseStation(c)
		if err != nil {
			return element{}, err
		}
		stations = append(stations, station)
		skipComments(c)
	}
	if err := c.Expect(';'); err != nil {
		return element{}, err
	}

	return element{
		kind: elementFile,
		file: model.SurveyFile{FilePath: path, Stations: stations},
	}, nil
}

// parseStation reads a station name with an optional [unit, e, n, el] fix.
// The name may be empty, as in "#a.dat,;".
func parseStation(c *textscan.Cursor) (model.Station, error) {
	name := c.TakeWhile(model.IsStationNameChar)
	c.SkipSpace()

	station := model.Station{Name: name}
	if c.ConsumeByte('[') {
		fix, err := parseStationFix(c)
		if err != nil {
			return model.Station{}, err
		}
		station.Location = &fix
		c.SkipSpace()
	}
	return station, nil
}

func parseStationFix(c *textscan.Cursor) (model.EastNorthElevation, error) {
	c.SkipSpace()
	unit, ok := c.Peek()
	if !ok || (unit != 'm' && unit != 'M' && unit != 'f' && unit != 'F') {
		return model.EastNorthElevation{}, c.Errorf("expected unit tag 'm' or 'f'")
	}
	c.Advance(1)
	c.SkipSpace()
	if err := c.Expect(','); err != nil {
		return model.EastNorthElevation{}, err
	}
	east, north, elevation, err := parseTriple(c)
	if err != nil {
		return model.EastNorthElevation{}, err
	}
	if err := c.Expect(']'); err != nil {
		return model.EastNorthElevation{}, err
	}

	if unit == 'f' || unit == 'F' {
		return model.FromFeet(east, north, elevation), nil
	}
	return model.FromMeters(east, north, elevation), nil
}

func parsePushFolder(c *textscan.Cursor) (element, error) {
	c.Advance(1) // '['
	name := strings.TrimSpace(c.TakeUntil(func(b byte) bool { return b == ';' }))
	if err := c.Expect(';'); err != nil {
		return element{}, err
	}
	if name == "" {
		return element{}, c.Errorf("expected folder name")
	}
	return element{kind: elementPushFolder, text: name}, nil
}

func parsePopFolder(c *textscan.Cursor) (element, error) {
	c.Advance(1) // ']'
	if err := c.Expect(';'); err != nil {
		return element{}, err
	}
	return element{kind: elementPopFolder}, nil
}

func parseUTMZone(c *textscan.Cursor) (element, error) {
	c.Advance(1) // '$'
	zone, err := c.Uint(8)
	if err != nil {
		return element{}, err
	}
	if err := c.Expect(';'); err != nil {
		return element{}, err
	}
	return element{kind: elementUTMZone, zone: uint8(zone)}, nil
}
