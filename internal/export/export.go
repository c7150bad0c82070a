// Package export renders loaded projects as JSON or YAML documents.
//
// Both formats share one document shape, built as a protobuf Struct so the
// JSON form goes through protojson.
package export

import (
	"fmt"
	"io"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/compass-survey/model"
)

// Format is an output document format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml in any case.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", name)
	}
}

// Document converts p into nested maps and slices of plain values.
func Document(p *model.LoadedProject) map[string]any {
	if p == nil {
		return nil
	}
	files := make([]any, 0, len(p.SurveyFiles))
	for _, f := range p.SurveyFiles {
		files = append(files, surveyFileDoc(f))
	}
	doc := map[string]any{
		"path":  p.Path,
		"datum": p.Datum.String(),
		"base_location": map[string]any{
			"easting":     p.BaseLocation.Position.Easting,
			"northing":    p.BaseLocation.Position.Northing,
			"elevation":   p.BaseLocation.Position.Elevation,
			"zone":        int64(p.BaseLocation.Zone),
			"convergence": p.BaseLocation.ConvergenceAngle,
		},
		"survey_files": files,
	}
	if p.UTMZone != nil {
		doc["utm_zone"] = int64(*p.UTMZone)
	}
	return doc
}

func surveyFileDoc(f model.LoadedSurveyFile) map[string]any {
	stations := make([]any, 0, len(f.Stations))
	for _, st := range f.Stations {
		s := map[string]any{"name": st.Name}
		if st.Location != nil {
			s["location"] = positionDoc(*st.Location)
		}
		stations = append(stations, s)
	}
	surveys := make([]any, 0, len(f.Surveys))
	for _, s := range f.Surveys {
		surveys = append(surveys, SurveyDocument(s))
	}
	return map[string]any{
		"file":     f.FilePath,
		"stations": stations,
		"surveys":  surveys,
	}
}

func positionDoc(p model.EastNorthElevation) map[string]any {
	return map[string]any{
		"easting":   p.Easting,
		"northing":  p.Northing,
		"elevation": p.Elevation,
	}
}

// SurveyDocument converts one survey block.
func SurveyDocument(s model.Survey) map[string]any {
	params := map[string]any{
		"declination": s.Parameters.Declination,
		"format":      s.Parameters.Format,
	}
	if c := s.Parameters.Corrections; c != nil {
		params["corrections"] = map[string]any{
			"azimuth":     c.Azimuth,
			"inclination": c.Inclination,
			"length":      c.Length,
		}
	}
	if c := s.Parameters.BacksightCorrections; c != nil {
		params["backsight_corrections"] = map[string]any{
			"azimuth":     c.Azimuth,
			"inclination": c.Inclination,
		}
	}

	shots := make([]any, 0, len(s.Shots))
	for _, shot := range s.Shots {
		doc := map[string]any{
			"from":        shot.From,
			"to":          shot.To,
			"length":      shot.Length,
			"azimuth":     shot.Azimuth,
			"inclination": shot.Inclination,
			"left":        shot.Left,
			"up":          shot.Up,
			"down":        shot.Down,
			"right":       shot.Right,
		}
		if shot.Flags != "" {
			doc["flags"] = shot.Flags
		}
		if shot.Comment != "" {
			doc["comment"] = shot.Comment
		}
		shots = append(shots, doc)
	}

	out := map[string]any{
		"cave":       s.CaveName,
		"name":       s.Name,
		"date":       fmt.Sprintf("%04d-%02d-%02d", s.Date.Year, s.Date.Month, s.Date.Day),
		"team":       s.Team,
		"parameters": params,
		"shots":      shots,
	}
	if s.Comment != "" {
		out["comment"] = s.Comment
	}
	return out
}

// Struct converts p into a protobuf Struct.
func Struct(p *model.LoadedProject) (*structpb.Struct, error) {
	if p == nil {
		return nil, fmt.Errorf("export.Struct: project is nil")
	}
	s, err := structpb.NewStruct(Document(p))
	if err != nil {
		return nil, fmt.Errorf("export.Struct: %w", err)
	}
	return s, nil
}

// JSON renders p as indented JSON.
func JSON(p *model.LoadedProject) ([]byte, error) {
	s, err := Struct(p)
	if err != nil {
		return nil, err
	}
	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("export.JSON: %w", err)
	}
	return out, nil
}

// YAML renders p as YAML with keys in sorted order.
func YAML(p *model.LoadedProject) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("export.YAML: project is nil")
	}
	out, err := yaml.Marshal(Document(p))
	if err != nil {
		return nil, fmt.Errorf("export.YAML: %w", err)
	}
	return out, nil
}

// Write renders p in format f to w.
func Write(w io.Writer, p *model.LoadedProject, f Format) error {
	var (
		out []byte
		err error
	)
	switch f {
	case FormatJSON:
		out, err = JSON(p)
		if err == nil {
			out = append(out, '\n')
		}
	case FormatYAML:
		out, err = YAML(p)
	default:
		return fmt.Errorf("export: unknown format %q", f)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
