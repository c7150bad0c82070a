package model

import (
	"errors"
	"math"
	"testing"
)

func TestFromFeetConvertsToMeters(t *testing.T) {
	p := FromFeet(1000, 2000, 10)
	if math.Abs(p.Easting-304.8) > 1e-9 || math.Abs(p.Northing-609.6) > 1e-9 || math.Abs(p.Elevation-3.048) > 1e-9 {
		t.Fatalf("FromFeet = %+v", p)
	}

	e, n, el := p.InFeet()
	if math.Abs(e-1000) > 1e-9 || math.Abs(n-2000) > 1e-9 || math.Abs(el-10) > 1e-9 {
		t.Errorf("InFeet = (%f, %f, %f), want (1000, 2000, 10)", e, n, el)
	}
}

func TestFromMetersKeepsValues(t *testing.T) {
	p := FromMeters(357715.717, 4372837.574, 3048)
	if p.Easting != 357715.717 || p.Northing != 4372837.574 || p.Elevation != 3048 {
		t.Fatalf("FromMeters = %+v", p)
	}
}

func TestDatumNamesRoundTrip(t *testing.T) {
	all := Datums()
	if len(all) != 23 {
		t.Fatalf("expected 23 datums, got %d", len(all))
	}
	for _, d := range all {
		got, ok := ParseDatum(d.String())
		if !ok {
			t.Errorf("ParseDatum(%q) failed", d.String())
			continue
		}
		if got != d {
			t.Errorf("ParseDatum(%q) = %v, want %v", d.String(), got, d)
		}
	}
}

func TestParseDatumIsCaseSensitive(t *testing.T) {
	for _, name := range []string{"wgs 1984", "WGS 1984", "Wgs1984", "Wgs 1984 ", ""} {
		if _, ok := ParseDatum(name); ok {
			t.Errorf("ParseDatum(%q) succeeded, want failure", name)
		}
	}
}

func TestInvalidDatumString(t *testing.T) {
	if got := Datum(99).String(); got != "Datum(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestIsStationNameChar(t *testing.T) {
	for _, c := range []byte("aZ09_-'*") {
		if !IsStationNameChar(c) {
			t.Errorf("IsStationNameChar(%q) = false", c)
		}
	}
	for _, c := range []byte(" ,;[]./#") {
		if IsStationNameChar(c) {
			t.Errorf("IsStationNameChar(%q) = true", c)
		}
	}
}

func TestProjectLoad(t *testing.T) {
	fix := FromMeters(1, 2, 3)
	p := Project{
		BaseLocation: UtmLocation{Position: FromMeters(10, 20, 30), Zone: 13},
		Datum:        DatumWgs1984,
		SurveyFiles: []SurveyFile{
			{FilePath: "a.dat", Stations: []Station{{Name: "A1", Location: &fix}, {Name: "A2"}}},
			{FilePath: "b.dat"},
		},
	}

	loaded, err := p.Load("cave.mak", func(f SurveyFile) ([]Survey, error) {
		return []Survey{{CaveName: "Cave", Name: f.FilePath, Shots: []Shot{{From: "A1", To: "A2", Length: 2.5}}}}, nil
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Path != "cave.mak" || loaded.Datum != DatumWgs1984 {
		t.Errorf("unexpected loaded project header: %+v", loaded)
	}
	if len(loaded.SurveyFiles) != 2 || len(loaded.Surveys()) != 2 {
		t.Fatalf("expected 2 files and 2 surveys, got %d and %d", len(loaded.SurveyFiles), len(loaded.Surveys()))
	}
	if fixed := loaded.FixedStations(); len(fixed) != 1 || fixed[0].Name != "A1" {
		t.Errorf("FixedStations = %+v", fixed)
	}
	if got := loaded.Surveys()[0].TotalLength(); got != 2.5 {
		t.Errorf("TotalLength = %f, want 2.5", got)
	}
}

func TestProjectLoadFailsPerFile(t *testing.T) {
	boom := errors.New("boom")
	p := Project{SurveyFiles: []SurveyFile{{FilePath: "ok.dat"}, {FilePath: "bad.dat"}}}

	_, err := p.Load("x.mak", func(f SurveyFile) ([]Survey, error) {
		if f.FilePath == "bad.dat" {
			return nil, boom
		}
		return nil, nil
	})
	var fe *FileError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FileError, got %v", err)
	}
	if fe.Path != "bad.dat" || !errors.Is(err, boom) {
		t.Errorf("unexpected FileError: %v", fe)
	}
}
