// Package survey reads and writes Compass survey data (.dat) files.
//
// A data file is a sequence of survey blocks with no separator token
// between them. Each block is:
//
//	Cave name
//	SURVEY NAME: A
//	SURVEY DATE: 7 10 79  COMMENT: Entrance passage
//	SURVEY TEAM:
//	Team members
//	DECLINATION: 1.00  FORMAT: DDDDLUDRLADN  CORRECTIONS: 0.00 0.00 0.00  CORRECTIONS2: 0.00 0.00
//
//	FROM TO LENGTH BEARING INC LEFT UP DOWN RIGHT FLAGS COMMENTS
//
//	A1 A2 10.50 180.00 -5.00 1.00 2.00 3.00 4.00
//	<form feed>
//
// Blocks usually end with a form feed, but the parser also accepts a new
// block that starts right after the last shot line.
package survey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/compass-survey/internal/textscan"
	"github.com/signalsfoundry/compass-survey/model"
)

// DefaultFormat is written when a survey carries no FORMAT: code. It
// declares degrees and decimal feet with LRUD in left, up, down, right
// column order, matching the columns the serializer emits.
const DefaultFormat = "DDDDLUDRLADN"

// ErrCouldntParseSurveyData is matched by every parse error of this package.
var ErrCouldntParseSurveyData = errors.New("could not parse survey data")

// IncompleteError reports a data file whose first Parsed blocks were read
// successfully before a block failed.
type IncompleteError struct {
	Parsed int
	Cause  *textscan.SyntaxError
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%v: block %d: %v", ErrCouldntParseSurveyData, e.Parsed+1, e.Cause)
}

func (e *IncompleteError) Unwrap() []error {
	return []error{ErrCouldntParseSurveyData, e.Cause}
}

// ParseSurvey parses text that holds exactly one survey block.
func ParseSurvey(input string) (model.Survey, error) {
	c := textscan.New(input)
	c.Consume("\uFEFF")
	c.SkipSpace()

	s, err := parseBlock(c)
	if err != nil {
		return model.Survey{}, fmt.Errorf("%w: %w", ErrCouldntParseSurveyData, err)
	}
	if !c.AtEOF() {
		err := c.Errorf("unexpected text after survey block")
		return model.Survey{}, fmt.Errorf("%w: %w", ErrCouldntParseSurveyData, err)
	}
	return s, nil
}

// ParseDatFile parses every survey block of a data file. Whitespace-only
// input yields no surveys and no error. When a block fails the surveys
// parsed before it are returned together with an *IncompleteError.
func ParseDatFile(input string) ([]model.Survey, error) {
	c := textscan.New(input)
	c.Consume("\uFEFF")

	var surveys []model.Survey
	for {
		c.SkipSpace()
		if c.AtEOF() {
			return surveys, nil
		}
		s, err := parseBlock(c)
		if err != nil {
			return surveys, &IncompleteError{Parsed: len(surveys), Cause: asSyntaxError(c, err)}
		}
		surveys = append(surveys, s)
	}
}

func asSyntaxError(c *textscan.Cursor, err error) *textscan.SyntaxError {
	var se *textscan.SyntaxError
	if errors.As(err, &se) {
		return se
	}
	return c.Wrapf(err, "%v", err)
}

// parseBlock reads one block starting at its cave name line and consumes
// the whitespace and form feeds that follow it.
func parseBlock(c *textscan.Cursor) (model.Survey, error) {
	var s model.Survey

	line, err := c.Line()
	if err != nil {
		return s, err
	}
	s.CaveName = strings.TrimSpace(line.Rest())
	if s.CaveName == "" {
		return s, line.Errorf("expected cave name")
	}

	if s.Name, err = parseNameLine(c); err != nil {
		return s, err
	}
	if s.Date, s.Comment, err = parseDateLine(c); err != nil {
		return s, err
	}
	if s.Team, err = parseTeam(c); err != nil {
		return s, err
	}
	if s.Parameters, err = parseParameters(c); err != nil {
		return s, err
	}
	if err := skipColumnHeader(c); err != nil {
		return s, err
	}
	if s.Shots, err = parseShots(c); err != nil {
		return s, err
	}

	c.SkipSpace()
	return s, nil
}

// labeledLine returns the next line with label already consumed.
func labeledLine(c *textscan.Cursor, label string) (*textscan.Cursor, error) {
	if c.AtEOF() {
		return nil, c.Errorf("expected %q, found end of input", label)
	}
	line, err := c.Line()
	if err != nil {
		return nil, err
	}
	line.SkipBlank()
	if err := line.ExpectString(label); err != nil {
		return nil, err
	}
	return line, nil
}

func expectEndOfLine(line *textscan.Cursor) error {
	line.SkipSpace()
	if !line.AtEOF() {
		return line.Errorf("unexpected %q at end of line", line.Rest())
	}
	return nil
}

func parseNameLine(c *textscan.Cursor) (string, error) {
	line, err := labeledLine(c, "SURVEY NAME:")
	if err != nil {
		return "", err
	}
	name, err := line.Token(model.IsStationNameChar, "survey name")
	if err != nil {
		return "", err
	}
	return name, expectEndOfLine(line)
}

func parseDateLine(c *textscan.Cursor) (model.Date, string, error) {
	line, err := labeledLine(c, "SURVEY DATE:")
	if err != nil {
		return model.Date{}, "", err
	}
	month, err := line.Uint(8)
	if err != nil {
		return model.Date{}, "", err
	}
	day, err := line.Uint(8)
	if err != nil {
		return model.Date{}, "", err
	}
	year, err := line.Uint(16)
	if err != nil {
		return model.Date{}, "", err
	}
	date := model.Date{Month: uint8(month), Day: uint8(day), Year: uint16(year)}

	var comment string
	if line.Consume("COMMENT:") {
		comment = strings.TrimSpace(line.Rest())
	} else if err := expectEndOfLine(line); err != nil {
		return model.Date{}, "", err
	}
	return date, comment, nil
}

// parseTeam reads the SURVEY TEAM: marker line and the team line after it.
func parseTeam(c *textscan.Cursor) (string, error) {
	if _, err := labeledLine(c, "SURVEY TEAM:"); err != nil {
		return "", err
	}
	if c.AtEOF() {
		return "", c.Errorf("expected team line, found end of input")
	}
	line, err := c.Line()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line.Rest()), nil
}

func isFormatChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func parseParameters(c *textscan.Cursor) (model.Parameters, error) {
	var p model.Parameters

	line, err := labeledLine(c, "DECLINATION:")
	if err != nil {
		return p, err
	}
	if p.Declination, err = line.Float(); err != nil {
		return p, err
	}
	if err := line.ExpectString("FORMAT:"); err != nil {
		return p, err
	}
	if p.Format, err = line.Token(isFormatChar, "format code"); err != nil {
		return p, err
	}
	line.SkipSpace()

	// Both correction groups are optional and independent of each other.
	p.Corrections = parseCorrections(line)
	line.SkipSpace()
	p.BacksightCorrections = parseBacksightCorrections(line)

	return p, nil
}

func parseCorrections(line *textscan.Cursor) *model.CorrectionFactors {
	mark := line.Mark()
	if !line.Consume("CORRECTIONS:") {
		return nil
	}
	var (
		f   model.CorrectionFactors
		err error
	)
	if f.Azimuth, err = line.Float(); err == nil {
		if f.Inclination, err = line.Float(); err == nil {
			f.Length, err = line.Float()
		}
	}
	if err != nil {
		line.Reset(mark)
		return nil
	}
	return &f
}

func parseBacksightCorrections(line *textscan.Cursor) *model.BacksightCorrectionFactors {
	mark := line.Mark()
	if !line.Consume("CORRECTIONS2:") {
		return nil
	}
	var (
		f   model.BacksightCorrectionFactors
		err error
	)
	if f.Azimuth, err = line.Float(); err == nil {
		f.Inclination, err = line.Float()
	}
	if err != nil {
		line.Reset(mark)
		return nil
	}
	return &f
}

// skipColumnHeader discards blank lines and the FROM column-label line.
func skipColumnHeader(c *textscan.Cursor) error {
	skipBlankLines(c)
	_, err := labeledLine(c, "FROM")
	return err
}

// skipBlankLines consumes whole lines holding only spaces and tabs. It stops
// before a form feed.
func skipBlankLines(c *textscan.Cursor) {
	for !c.AtEOF() {
		mark := c.Mark()
		line, _ := c.Line()
		line.SkipBlank()
		if !line.AtEOF() {
			c.Reset(mark)
			return
		}
	}
}

// parseShots reads shot lines until a form feed, the end of input or the
// start of the next block.
func parseShots(c *textscan.Cursor) ([]model.Shot, error) {
	var shots []model.Shot
	for {
		skipBlankLines(c)
		if b, ok := c.Peek(); !ok || b == '\f' {
			return shots, nil
		}

		mark := c.Mark()
		line, _ := c.Line()
		shot, err := parseShot(line)
		if err != nil {
			if startsBlock(c) {
				c.Reset(mark)
				return shots, nil
			}
			return nil, err
		}
		shots = append(shots, shot)
	}
}

// startsBlock reports whether the line at c is a SURVEY NAME: line, meaning
// the line before it was the cave name of a new block.
func startsBlock(c *textscan.Cursor) bool {
	rest := strings.TrimLeft(c.Rest(), " \t")
	return strings.HasPrefix(rest, "SURVEY NAME:")
}

func parseShot(line *textscan.Cursor) (model.Shot, error) {
	var (
		s   model.Shot
		err error
	)
	if s.From, err = line.Token(model.IsStationNameChar, "from station"); err != nil {
		return s, err
	}
	if s.To, err = line.Token(model.IsStationNameChar, "to station"); err != nil {
		return s, err
	}
	for _, dst := range []*float64{&s.Length, &s.Azimuth, &s.Inclination, &s.Left, &s.Up, &s.Down, &s.Right} {
		if *dst, err = line.Float(); err != nil {
			return s, err
		}
	}

	if line.Consume("#|") {
		s.Flags = line.TakeUntil(func(b byte) bool { return b == '#' })
		if err := line.Expect('#'); err != nil {
			return s, err
		}
	}
	s.Comment = strings.TrimSpace(line.Rest())
	return s, nil
}
