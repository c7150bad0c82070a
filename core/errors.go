// core/errors.go
package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/compass-survey/internal/textscan"
	"github.com/signalsfoundry/compass-survey/project"
	"github.com/signalsfoundry/compass-survey/survey"
)

// Failure kinds carried by *Error.
var (
	ErrProjectFileNotFound    = errors.New("project file not found")
	ErrCouldntReadFile        = errors.New("could not read file")
	ErrCouldntParseProject    = project.ErrCouldntParseProject
	ErrCouldntParseSurveyData = survey.ErrCouldntParseSurveyData
)

// Error is a failure to load one file. Kind is one of the Err* values above
// and Err is the underlying cause.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// SyntaxError returns the innermost positioned parse error, or nil when the
// failure was not a parse failure.
func (e *Error) SyntaxError() *textscan.SyntaxError {
	var se *textscan.SyntaxError
	if errors.As(e.Err, &se) {
		return se
	}
	return nil
}
