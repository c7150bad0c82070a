package survey

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/compass-survey/model"
)

func dat(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

var fulfordBlock = dat(
	"Fulford Cave",
	"SURVEY NAME: A",
	"SURVEY DATE: 7 10 79  COMMENT:Entrance Passage",
	"SURVEY TEAM:",
	"Mike Roberts,Dave Rhode,Mark Fishback",
	"DECLINATION: 15.50  FORMAT: DDDDUDLRLADN  CORRECTIONS:  1.00 -0.50 0.25  CORRECTIONS2:  2.00 3.00",
	"",
	"        FROM           TO   LENGTH  BEARING      INC     LEFT       UP     DOWN    RIGHT   FLAGS  COMMENTS",
	"",
	"          A1           A2    10.50   180.00    -5.00     1.00     2.00     3.00     4.00",
	"          A2           A3    12.25    90.00     3.50     0.50     1.50     2.50     3.50 #|L# crawl",
	"\f",
)

func TestParseSurveyBlock(t *testing.T) {
	s, err := ParseSurvey(fulfordBlock)
	require.NoError(t, err)

	want := model.Survey{
		CaveName: "Fulford Cave",
		Name:     "A",
		Date:     model.Date{Month: 7, Day: 10, Year: 79},
		Comment:  "Entrance Passage",
		Team:     "Mike Roberts,Dave Rhode,Mark Fishback",
		Parameters: model.Parameters{
			Declination:          15.50,
			Format:               "DDDDUDLRLADN",
			Corrections:          &model.CorrectionFactors{Azimuth: 1, Inclination: -0.5, Length: 0.25},
			BacksightCorrections: &model.BacksightCorrectionFactors{Azimuth: 2, Inclination: 3},
		},
		Shots: []model.Shot{
			{From: "A1", To: "A2", Length: 10.5, Azimuth: 180, Inclination: -5, Left: 1, Up: 2, Down: 3, Right: 4},
			{From: "A2", To: "A3", Length: 12.25, Azimuth: 90, Inclination: 3.5, Left: 0.5, Up: 1.5, Down: 2.5, Right: 3.5, Flags: "L", Comment: "crawl"},
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("ParseSurvey mismatch (-want +got):\n%s", diff)
	}
}

func TestParseShotFieldOrder(t *testing.T) {
	input := dat(
		"Cave",
		"SURVEY NAME: X",
		"SURVEY DATE: 1 2 2003",
		"SURVEY TEAM:",
		"",
		"DECLINATION: 0.00  FORMAT: DDDDLUDRLADN",
		"FROM TO",
		"AB BC 10.50 180.00 -5.00 1.00 2.00 3.00 4.00",
	)
	s, err := ParseSurvey(input)
	require.NoError(t, err)
	require.Len(t, s.Shots, 1)

	shot := s.Shots[0]
	assert.Equal(t, "AB", shot.From)
	assert.Equal(t, "BC", shot.To)
	assert.Equal(t, 10.50, shot.Length)
	assert.Equal(t, 180.00, shot.Azimuth)
	assert.Equal(t, -5.00, shot.Inclination)
	assert.Equal(t, 1.00, shot.Left)
	assert.Equal(t, 2.00, shot.Up)
	assert.Equal(t, 3.00, shot.Down)
	assert.Equal(t, 4.00, shot.Right)
	assert.Empty(t, s.Team)
	assert.Empty(t, s.Comment)
}

func parametersOf(t *testing.T, line string) model.Parameters {
	t.Helper()
	s, err := ParseSurvey(dat("Cave", "SURVEY NAME: X", "SURVEY DATE: 1 1 2000", "SURVEY TEAM:", "me", line, "FROM"))
	require.NoError(t, err)
	return s.Parameters
}

func TestCorrectionsAreIndependentlyOptional(t *testing.T) {
	p := parametersOf(t, "DECLINATION: 1.00 FORMAT: DMMUDLRUP")
	assert.Equal(t, 1.0, p.Declination)
	assert.Equal(t, "DMMUDLRUP", p.Format)
	assert.Nil(t, p.Corrections)
	assert.Nil(t, p.BacksightCorrections)

	p = parametersOf(t, "DECLINATION: 1.00 FORMAT: DMMUDLRUP CORRECTIONS: 1.0 2.0 3.0")
	require.NotNil(t, p.Corrections)
	assert.Equal(t, model.CorrectionFactors{Azimuth: 1, Inclination: 2, Length: 3}, *p.Corrections)
	assert.Nil(t, p.BacksightCorrections)

	p = parametersOf(t, "DECLINATION: 1.00 FORMAT: DMMUDLRUP CORRECTIONS2: 4.0 5.0")
	assert.Nil(t, p.Corrections)
	require.NotNil(t, p.BacksightCorrections)
	assert.Equal(t, model.BacksightCorrectionFactors{Azimuth: 4, Inclination: 5}, *p.BacksightCorrections)

	// A malformed group yields no value instead of an error.
	p = parametersOf(t, "DECLINATION: 1.00 FORMAT: DMMUDLRUP CORRECTIONS: 1.0 x CORRECTIONS2: 4.0 5.0")
	assert.Nil(t, p.Corrections)
	assert.Nil(t, p.BacksightCorrections)
}

func TestRoundTrip(t *testing.T) {
	original := model.Survey{
		CaveName: "Lechuguilla",
		Name:     "EY",
		Date:     model.Date{Month: 12, Day: 31, Year: 1999},
		Comment:  "Near Sugarlands",
		Team:     "A. Person, B. Person",
		Parameters: model.Parameters{
			Declination:          -7.25,
			Format:               "DDDDLUDRLADN",
			Corrections:          &model.CorrectionFactors{Azimuth: 0.5, Inclination: -1.25, Length: 0.1},
			BacksightCorrections: &model.BacksightCorrectionFactors{Azimuth: 180, Inclination: -0.75},
		},
		Shots: []model.Shot{
			{From: "EY1", To: "EY2", Length: 23.45, Azimuth: 271.5, Inclination: -12.3, Left: 1, Up: 2.5, Down: 0, Right: 4.75},
			{From: "EY2", To: "EY3", Length: 5, Azimuth: 0, Inclination: 90, Left: -9.9, Up: 12, Down: 3.3, Right: 0.25, Flags: "LP", Comment: "dome"},
			{From: "A_VERY_LONG_STATION", To: "B*'-", Length: 123456.78, Azimuth: 359.99, Inclination: -89.99, Left: 1, Up: 1, Down: 1, Right: 1},
		},
	}

	text := Serialize(original)
	parsed, err := ParseSurvey(text)
	require.NoError(t, err, "serialized text:\n%s", text)

	if diff := cmp.Diff(original, parsed); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s\ntext:\n%s", diff, text)
	}
}

func TestRoundTripCommentThatLooksLikeFlags(t *testing.T) {
	original := model.Survey{
		CaveName:   "Fulford",
		Name:       "A",
		Date:       model.Date{Month: 7, Day: 10, Year: 1979},
		Parameters: model.Parameters{Format: "DDDDLUDRLADN"},
		Shots: []model.Shot{
			{From: "A1", To: "A2", Length: 1, Comment: "#|P# note"},
		},
	}

	text := Serialize(original)
	assert.Contains(t, text, " #|# #|P# note")
	parsed, err := ParseSurvey(text)
	require.NoError(t, err, "serialized text:\n%s", text)
	require.Len(t, parsed.Shots, 1)
	assert.Empty(t, parsed.Shots[0].Flags)
	assert.Equal(t, "#|P# note", parsed.Shots[0].Comment)
}

func TestSerializeLayout(t *testing.T) {
	s := model.Survey{
		CaveName: "Cave",
		Name:     "A",
		Date:     model.Date{Month: 1, Day: 2, Year: 2003},
		Team:     "Team",
		Parameters: model.Parameters{
			Declination: 1,
		},
		Shots: []model.Shot{{From: "AB", To: "BC", Length: 10.5, Azimuth: 180, Inclination: -5, Left: 1, Up: 2, Down: 3, Right: 4}},
	}
	got := Serialize(s)
	lines := strings.Split(got, "\r\n")

	assert.Equal(t, "Cave", lines[0])
	assert.Equal(t, "SURVEY NAME: A", lines[1])
	assert.Equal(t, "SURVEY DATE: 1 2 2003", lines[2])
	assert.Equal(t, "SURVEY TEAM:", lines[3])
	assert.Equal(t, "Team", lines[4])
	assert.Equal(t, "DECLINATION: 1.00  FORMAT: "+DefaultFormat, lines[5])
	assert.Equal(t, "", lines[6])
	assert.True(t, strings.HasPrefix(lines[7], "         FROM           TO"), "header = %q", lines[7])
	assert.Equal(t, "", lines[8])
	assert.Equal(t, "           AB           BC    10.50   180.00    -5.00     1.00     2.00     3.00     4.00", lines[9])
	assert.Equal(t, "\f", lines[10])
	assert.True(t, strings.HasSuffix(got, "\f\r\n"))
}

func TestWriteConcatenatesBlocks(t *testing.T) {
	first, err := ParseSurvey(fulfordBlock)
	require.NoError(t, err)
	second := first
	second.Name = "B"
	second.Shots = nil

	var b strings.Builder
	require.NoError(t, Write(&b, first, second))

	surveys, err := ParseDatFile(b.String())
	require.NoError(t, err)
	require.Len(t, surveys, 2)
	assert.Equal(t, "A", surveys[0].Name)
	assert.Equal(t, "B", surveys[1].Name)
	assert.Empty(t, surveys[1].Shots)
}

func TestParseDatFileWithoutFormFeeds(t *testing.T) {
	block := func(name string) []string {
		return []string{"Cave", "SURVEY NAME: " + name, "SURVEY DATE: 1 1 2000", "SURVEY TEAM:", "", "DECLINATION: 0.00 FORMAT: DDDDLUDRLADN", "FROM", "A1 A2 1 2 3 4 5 6 7"}
	}
	input := dat(append(block("A"), block("B")...)...)

	surveys, err := ParseDatFile(input)
	require.NoError(t, err)
	require.Len(t, surveys, 2)
	assert.Len(t, surveys[0].Shots, 1)
	assert.Len(t, surveys[1].Shots, 1)
}

func TestParseDatFileEmptyInput(t *testing.T) {
	for _, input := range []string{"", "  \r\n\f\r\n", "\uFEFF"} {
		surveys, err := ParseDatFile(input)
		assert.NoError(t, err, "input %q", input)
		assert.Empty(t, surveys, "input %q", input)
	}
}

func TestParseDatFileReturnsPrefixOnTrailingGarbage(t *testing.T) {
	input := fulfordBlock + "this is not a survey\r\n"

	surveys, err := ParseDatFile(input)
	require.Error(t, err)
	require.Len(t, surveys, 1)
	assert.Equal(t, "A", surveys[0].Name)

	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, 1, incomplete.Parsed)
	assert.ErrorIs(t, err, ErrCouldntParseSurveyData)
	assert.Equal(t, 14, incomplete.Cause.Pos.Line)
}

func TestParseShotErrorIsReported(t *testing.T) {
	input := dat(
		"Cave",
		"SURVEY NAME: X",
		"SURVEY DATE: 1 1 2000",
		"SURVEY TEAM:",
		"",
		"DECLINATION: 0.00 FORMAT: DDDDLUDRLADN",
		"FROM",
		"A1 A2 1 2 3 4 5 6 7",
		"A2 A3 1 2 oops 4 5 6 7",
	)
	_, err := ParseSurvey(input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCouldntParseSurveyData)
	assert.Contains(t, err.Error(), "line 9")
	assert.Contains(t, err.Error(), "expected number")
}

func TestParseSurveyHeaderErrors(t *testing.T) {
	cases := map[string]string{
		"missing name":  dat("Cave", "SURVEY DATE: 1 1 2000"),
		"bad date":      dat("Cave", "SURVEY NAME: A", "SURVEY DATE: 1 x 2000"),
		"month range":   dat("Cave", "SURVEY NAME: A", "SURVEY DATE: 300 1 2000"),
		"missing team":  dat("Cave", "SURVEY NAME: A", "SURVEY DATE: 1 1 2000", "DECLINATION: 0.00 FORMAT: D"),
		"no format":     dat("Cave", "SURVEY NAME: A", "SURVEY DATE: 1 1 2000", "SURVEY TEAM:", "", "DECLINATION: 0.00"),
		"no header":     dat("Cave", "SURVEY NAME: A", "SURVEY DATE: 1 1 2000", "SURVEY TEAM:", "", "DECLINATION: 0.00 FORMAT: D"),
		"truncated":     "Cave\r\nSURVEY NAME: A",
		"name charset":  dat("Cave", "SURVEY NAME: A.B"),
		"date trailing": dat("Cave", "SURVEY NAME: A", "SURVEY DATE: 1 1 2000 extra"),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSurvey(input)
			assert.ErrorIs(t, err, ErrCouldntParseSurveyData)
		})
	}
}
