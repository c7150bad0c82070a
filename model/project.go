package model

import "fmt"

// IsStationNameChar reports whether c may appear in a station name.
func IsStationNameChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '\'', c == '*':
		return true
	}
	return false
}

// Station is a project-level station declared for a survey file. Location
// is nil when the station is declared without a fixed coordinate.
type Station struct {
	Name     string
	Location *EastNorthElevation
}

// SurveyFile is a survey data file referenced by a project whose contents
// have not been read yet.
type SurveyFile struct {
	FilePath string
	Stations []Station
}

// Project is a parsed project file. It holds no survey data; use Load to
// obtain a LoadedProject.
type Project struct {
	BaseLocation UtmLocation
	Datum        Datum
	UTMZone      *uint8 // optional $ override
	SurveyFiles  []SurveyFile
}

// LoadedSurveyFile is a SurveyFile together with the surveys read from it.
type LoadedSurveyFile struct {
	SurveyFile
	Surveys []Survey
}

// LoadedProject is a project whose referenced survey data files have all
// been read and parsed.
type LoadedProject struct {
	Path         string
	BaseLocation UtmLocation
	Datum        Datum
	UTMZone      *uint8
	SurveyFiles  []LoadedSurveyFile
}

// FileError reports a survey data file that could not be loaded.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("survey file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Load converts the project into a LoadedProject by calling load once per
// survey file, in project order. The first failure aborts the conversion and
// is returned as a *FileError.
func (p Project) Load(path string, load func(SurveyFile) ([]Survey, error)) (*LoadedProject, error) {
	if load == nil {
		return nil, fmt.Errorf("Project.Load: load func is nil")
	}

	files := make([]LoadedSurveyFile, 0, len(p.SurveyFiles))
	for _, f := range p.SurveyFiles {
		surveys, err := load(f)
		if err != nil {
			return nil, &FileError{Path: f.FilePath, Err: err}
		}
		files = append(files, LoadedSurveyFile{SurveyFile: f, Surveys: surveys})
	}

	return &LoadedProject{
		Path:         path,
		BaseLocation: p.BaseLocation,
		Datum:        p.Datum,
		UTMZone:      p.UTMZone,
		SurveyFiles:  files,
	}, nil
}

// Surveys returns every survey of the project in file order.
func (p *LoadedProject) Surveys() []Survey {
	var out []Survey
	for _, f := range p.SurveyFiles {
		out = append(out, f.Surveys...)
	}
	return out
}

// FixedStations returns every project-level station that carries a
// coordinate, in declaration order.
func (p *LoadedProject) FixedStations() []Station {
	var out []Station
	for _, f := range p.SurveyFiles {
		for _, s := range f.Stations {
			if s.Location != nil {
				out = append(out, s)
			}
		}
	}
	return out
}
