package survey

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalsfoundry/compass-survey/model"
)

const (
	stationWidth = 13
	numberWidth  = 9
	lineEnd      = "\r\n"
)

// columnLabels is the FROM header emitted before the shots, in the column
// order the shots are written.
var columnLabels = []string{"LENGTH", "BEARING", "INC", "LEFT", "UP", "DOWN", "RIGHT"}

// Serialize renders a survey block in canonical form. The result parses
// back to an equal survey, with numbers rounded to two decimals and an empty
// FORMAT: code replaced by DefaultFormat.
func Serialize(s model.Survey) string {
	var b strings.Builder
	writeSurvey(&b, s)
	return b.String()
}

// Write renders each survey in order to w.
func Write(w io.Writer, surveys ...model.Survey) error {
	for i, s := range surveys {
		if _, err := io.WriteString(w, Serialize(s)); err != nil {
			return fmt.Errorf("survey.Write: survey %d (%s): %w", i, s.Name, err)
		}
	}
	return nil
}

func writeSurvey(b *strings.Builder, s model.Survey) {
	b.WriteString(s.CaveName)
	b.WriteString(lineEnd)

	b.WriteString("SURVEY NAME: ")
	b.WriteString(s.Name)
	b.WriteString(lineEnd)

	fmt.Fprintf(b, "SURVEY DATE: %d %d %d", s.Date.Month, s.Date.Day, s.Date.Year)
	if s.Comment != "" {
		b.WriteString(" COMMENT: ")
		b.WriteString(s.Comment)
	}
	b.WriteString(lineEnd)

	b.WriteString("SURVEY TEAM:")
	b.WriteString(lineEnd)
	b.WriteString(s.Team)
	b.WriteString(lineEnd)

	writeParameters(b, s.Parameters)
	b.WriteString(lineEnd)

	writeColumnHeader(b)
	b.WriteString(lineEnd)

	for _, shot := range s.Shots {
		writeShot(b, shot)
	}
	b.WriteString("\f")
	b.WriteString(lineEnd)
}

func writeParameters(b *strings.Builder, p model.Parameters) {
	format := p.Format
	if format == "" {
		format = DefaultFormat
	}
	fmt.Fprintf(b, "DECLINATION: %.2f  FORMAT: %s", p.Declination, format)
	if c := p.Corrections; c != nil {
		fmt.Fprintf(b, "  CORRECTIONS: %.2f %.2f %.2f", c.Azimuth, c.Inclination, c.Length)
	}
	if c := p.BacksightCorrections; c != nil {
		fmt.Fprintf(b, "  CORRECTIONS2: %.2f %.2f", c.Azimuth, c.Inclination)
	}
	b.WriteString(lineEnd)
}

func writeColumnHeader(b *strings.Builder) {
	writeColumn(b, stationWidth, "FROM")
	writeColumn(b, stationWidth, "TO")
	for _, label := range columnLabels {
		writeColumn(b, numberWidth, label)
	}
	b.WriteString("   FLAGS  COMMENTS")
	b.WriteString(lineEnd)
}

func writeShot(b *strings.Builder, s model.Shot) {
	writeColumn(b, stationWidth, s.From)
	writeColumn(b, stationWidth, s.To)
	for _, v := range []float64{s.Length, s.Azimuth, s.Inclination, s.Left, s.Up, s.Down, s.Right} {
		writeColumn(b, numberWidth, strconv.FormatFloat(v, 'f', 2, 64))
	}
	// An empty flag group keeps a comment that starts with "#|" from
	// reading back as flags.
	if s.Flags != "" || strings.HasPrefix(s.Comment, "#|") {
		b.WriteString(" #|")
		b.WriteString(s.Flags)
		b.WriteString("#")
	}
	if s.Comment != "" {
		b.WriteString(" ")
		b.WriteString(s.Comment)
	}
	b.WriteString(lineEnd)
}

// writeColumn right-justifies v in width bytes. A value that fills the
// column gets a leading space so adjacent columns stay separated.
func writeColumn(b *strings.Builder, width int, v string) {
	if len(v) >= width {
		b.WriteByte(' ')
		b.WriteString(v)
		return
	}
	b.WriteString(strings.Repeat(" ", width-len(v)))
	b.WriteString(v)
}
