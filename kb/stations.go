package kb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/compass-survey/model"
)

// StationRef names a survey that measures a shot to or from a station.
type StationRef struct {
	File   string
	Survey string
}

// StationEntry is one station of a project with its fix, if any, and the
// surveys that reference it.
type StationEntry struct {
	Name     string
	Location *model.EastNorthElevation
	Refs     []StationRef
}

// StationIndex lists every station named by the project's fixed-station
// declarations or shots, ordered by name. Refs hold each survey at most once.
func StationIndex(p *model.LoadedProject) []StationEntry {
	if p == nil {
		return nil
	}
	entries := make(map[string]*StationEntry)
	entry := func(name string) *StationEntry {
		e, ok := entries[name]
		if !ok {
			e = &StationEntry{Name: name}
			entries[name] = e
		}
		return e
	}

	for _, f := range p.SurveyFiles {
		for _, st := range f.Stations {
			e := entry(st.Name)
			if e.Location == nil && st.Location != nil {
				loc := *st.Location
				e.Location = &loc
			}
		}
	}

	seen := make(map[string]map[StationRef]bool)
	addRef := func(name string, ref StationRef) {
		e := entry(name)
		if seen[name] == nil {
			seen[name] = make(map[StationRef]bool)
		}
		if !seen[name][ref] {
			seen[name][ref] = true
			e.Refs = append(e.Refs, ref)
		}
	}
	for _, f := range p.SurveyFiles {
		for _, s := range f.Surveys {
			ref := StationRef{File: f.FilePath, Survey: s.Name}
			for _, shot := range s.Shots {
				addRef(shot.From, ref)
				addRef(shot.To, ref)
			}
		}
	}

	out := make([]StationEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UnknownStationError is a shot whose stations cannot be reached from any
// known station of the project.
type UnknownStationError struct {
	File      string
	Survey    string
	ShotIndex int
	From      string
	To        string
}

func (e UnknownStationError) Error() string {
	return fmt.Sprintf("%s: survey %s: shot %d %s-%s references unknown stations", e.File, e.Survey, e.ShotIndex+1, e.From, e.To)
}

// ValidationError collects every unconnected shot of a project.
type ValidationError struct {
	Project  string
	Problems []UnknownStationError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d shot(s) reference unknown stations", e.Project, len(e.Problems))
	for i, p := range e.Problems {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Problems)-i)
			break
		}
		b.WriteString("; ")
		b.WriteString(p.Error())
	}
	return b.String()
}

type shotRef struct {
	file   string
	survey string
	index  int
	shot   model.Shot
}

// Validate checks that every shot is connected to a known station. The
// known set starts with the project's fixed stations, or with the first
// shot's from-station when the project fixes none, and grows through every
// shot that touches a known station until nothing changes. Shots left with
// both stations unknown are returned in a *ValidationError.
func Validate(p *model.LoadedProject) error {
	if p == nil {
		return fmt.Errorf("kb.Validate: project is nil")
	}

	var shots []shotRef
	for _, f := range p.SurveyFiles {
		for _, s := range f.Surveys {
			for i, shot := range s.Shots {
				shots = append(shots, shotRef{file: f.FilePath, survey: s.Name, index: i, shot: shot})
			}
		}
	}
	if len(shots) == 0 {
		return nil
	}

	known := make(map[string]bool)
	for _, st := range p.FixedStations() {
		known[st.Name] = true
	}
	if len(known) == 0 {
		known[shots[0].shot.From] = true
	}

	pending := shots
	for {
		var next []shotRef
		for _, s := range pending {
			if known[s.shot.From] || known[s.shot.To] {
				known[s.shot.From] = true
				known[s.shot.To] = true
				continue
			}
			next = append(next, s)
		}
		if len(next) == len(pending) {
			pending = next
			break
		}
		pending = next
	}

	if len(pending) == 0 {
		return nil
	}
	verr := &ValidationError{Project: p.Path}
	for _, s := range pending {
		verr.Problems = append(verr.Problems, UnknownStationError{
			File:      s.file,
			Survey:    s.survey,
			ShotIndex: s.index,
			From:      s.shot.From,
			To:        s.shot.To,
		})
	}
	return verr
}
