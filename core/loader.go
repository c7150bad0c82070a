// core/loader.go
package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/compass-survey/internal/logging"
	"github.com/signalsfoundry/compass-survey/internal/observability"
	"github.com/signalsfoundry/compass-survey/model"
	"github.com/signalsfoundry/compass-survey/project"
	"github.com/signalsfoundry/compass-survey/survey"
)

// File kinds used for metrics and spans.
const (
	KindProject = "project"
	KindSurvey  = "survey"
)

// ParseRecorder receives one observation per parsed file.
type ParseRecorder interface {
	ObserveFile(kind string, elapsed time.Duration, err error)
	ObserveSurveys(surveys, shots int)
}

// Loader reads project and survey data files and assembles LoadedProjects.
// It is safe for concurrent use.
type Loader struct {
	source      FileSource
	encoding    Encoding
	concurrency int
	log         logging.Logger
	metrics     ParseRecorder
	tracer      trace.Tracer
}

// LoaderOption customises Loader construction.
type LoaderOption func(*Loader)

// WithFileSource replaces the default OSFileSource.
func WithFileSource(s FileSource) LoaderOption {
	return func(l *Loader) {
		if s != nil {
			l.source = s
		}
	}
}

// WithEncoding sets how file bytes are decoded.
func WithEncoding(enc Encoding) LoaderOption {
	return func(l *Loader) {
		l.encoding = enc
	}
}

// WithConcurrency bounds the number of survey data files parsed at once.
// Values below 1 are ignored.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithParseRecorder attaches a metrics recorder.
func WithParseRecorder(m ParseRecorder) LoaderOption {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithTracer overrides the tracer used for per-file spans.
func WithTracer(t trace.Tracer) LoaderOption {
	return func(l *Loader) {
		if t != nil {
			l.tracer = t
		}
	}
}

// NewLoader builds a Loader reading from the local file system with
// automatic encoding detection.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		source:      OSFileSource{},
		encoding:    EncodingAuto,
		concurrency: runtime.GOMAXPROCS(0),
		log:         logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.tracer == nil {
		l.tracer = observability.Tracer()
	}
	return l
}

// Load reads the project file at path and every survey data file it
// references. All log records of one call share a load_id.
func (l *Loader) Load(ctx context.Context, path string) (*model.LoadedProject, error) {
	ctx, log := logging.WithLoadLogger(ctx, l.log)
	ctx = logging.ContextWithLogger(ctx, log)
	start := time.Now()

	p, err := l.ReadProject(ctx, path)
	if err != nil {
		return nil, err
	}
	loaded, err := l.LoadSurveyFiles(ctx, path, p)
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "project loaded",
		logging.String("path", path),
		logging.Int("files", len(loaded.SurveyFiles)),
		logging.Int("surveys", len(loaded.Surveys())),
		logging.String("elapsed", time.Since(start).String()),
	)
	return loaded, nil
}

// ReadProject reads and parses a project file without touching the survey
// data files it references.
func (l *Loader) ReadProject(ctx context.Context, path string) (*model.Project, error) {
	log := l.logger(ctx)
	ctx, span := l.tracer.Start(ctx, "compass.ReadProject",
		trace.WithAttributes(attribute.String("compass.path", path)))
	defer span.End()
	start := time.Now()

	p, err := l.readProject(ctx, path)
	l.observeFile(KindProject, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read project failed")
		log.Error(ctx, "read project failed", logging.String("path", path), logging.Err(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("compass.survey_files", len(p.SurveyFiles)))
	log.Debug(ctx, "project parsed",
		logging.String("path", path),
		logging.String("datum", p.Datum.String()),
		logging.Int("survey_files", len(p.SurveyFiles)),
	)
	return p, nil
}

func (l *Loader) readProject(ctx context.Context, path string) (*model.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := l.source.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: ErrProjectFileNotFound, Path: path, Err: err}
		}
		return nil, &Error{Kind: ErrCouldntReadFile, Path: path, Err: err}
	}
	text, err := l.readText(path)
	if err != nil {
		return nil, err
	}
	p, err := project.Parse(text)
	if err != nil {
		return nil, &Error{Kind: ErrCouldntParseProject, Path: path, Err: err}
	}
	return p, nil
}

// ReadSurveyFile reads and parses one survey data file. On a trailing
// malformed block the surveys before it are returned with the error.
func (l *Loader) ReadSurveyFile(ctx context.Context, path string) ([]model.Survey, error) {
	log := l.logger(ctx)
	ctx, span := l.tracer.Start(ctx, "compass.ReadSurveyFile",
		trace.WithAttributes(attribute.String("compass.path", path)))
	defer span.End()
	start := time.Now()

	surveys, err := l.readSurveyFile(ctx, path)
	l.observeFile(KindSurvey, start, err)

	shots := 0
	for _, s := range surveys {
		shots += len(s.Shots)
	}
	if l.metrics != nil {
		l.metrics.ObserveSurveys(len(surveys), shots)
	}
	span.SetAttributes(attribute.Int("compass.surveys", len(surveys)), attribute.Int("compass.shots", shots))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read survey file failed")
		log.Error(ctx, "read survey file failed",
			logging.String("path", path),
			logging.Int("parsed_surveys", len(surveys)),
			logging.Err(err),
		)
		return surveys, err
	}
	log.Debug(ctx, "survey file parsed",
		logging.String("path", path),
		logging.Int("surveys", len(surveys)),
		logging.Int("shots", shots),
	)
	return surveys, nil
}

func (l *Loader) readSurveyFile(ctx context.Context, path string) ([]model.Survey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := l.readText(path)
	if err != nil {
		return nil, err
	}
	surveys, err := survey.ParseDatFile(text)
	if err != nil {
		return surveys, &Error{Kind: ErrCouldntParseSurveyData, Path: path, Err: err}
	}
	return surveys, nil
}

// LoadSurveyFiles parses every survey data file referenced by p and
// converts it into a LoadedProject. Files are parsed concurrently; the
// first failure cancels the remaining work.
func (l *Loader) LoadSurveyFiles(ctx context.Context, projectPath string, p *model.Project) (*model.LoadedProject, error) {
	if p == nil {
		return nil, fmt.Errorf("LoadSurveyFiles: project is nil")
	}

	results := make([][]model.Survey, len(p.SurveyFiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, f := range p.SurveyFiles {
		path := ResolvePath(projectPath, f.FilePath)
		g.Go(func() error {
			surveys, err := l.ReadSurveyFile(gctx, path)
			if err != nil {
				return err
			}
			results[i] = surveys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	next := 0
	loaded, err := p.Load(projectPath, func(model.SurveyFile) ([]model.Survey, error) {
		surveys := results[next]
		next++
		return surveys, nil
	})
	if err != nil {
		return nil, fmt.Errorf("LoadSurveyFiles: %w", err)
	}
	return loaded, nil
}

func (l *Loader) readText(path string) (string, error) {
	data, err := l.source.ReadFile(path)
	if err != nil {
		return "", &Error{Kind: ErrCouldntReadFile, Path: path, Err: err}
	}
	text, err := Decode(data, l.encoding)
	if err != nil {
		return "", &Error{Kind: ErrCouldntReadFile, Path: path, Err: err}
	}
	return text, nil
}

func (l *Loader) observeFile(kind string, start time.Time, err error) {
	if l.metrics != nil {
		l.metrics.ObserveFile(kind, time.Since(start), err)
	}
}

func (l *Loader) logger(ctx context.Context) logging.Logger {
	if log := logging.LoggerFromContext(ctx); log != nil {
		return log
	}
	return l.log
}
