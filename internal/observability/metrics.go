package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values for compass_files_parsed_total.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ParseCollector bundles Prometheus metrics for project and survey data
// parsing and provides a /metrics handler.
type ParseCollector struct {
	gatherer prometheus.Gatherer

	FilesParsed    *prometheus.CounterVec
	ParseDurations *prometheus.HistogramVec
	SurveysParsed  prometheus.Counter
	ShotsParsed    prometheus.Counter
	LoadedProjects prometheus.Gauge
}

// NewParseCollector registers parse metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Registering twice
// against the same registry reuses the existing collectors.
func NewParseCollector(reg prometheus.Registerer) (*ParseCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	files, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_files_parsed_total",
		Help: "Total number of parsed Compass files, labeled by kind (project or survey) and result.",
	}, []string{"kind", "result"}), "compass_files_parsed_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "compass_parse_duration_seconds",
		Help:    "Time spent reading and parsing one Compass file.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"kind"}), "compass_parse_duration_seconds")
	if err != nil {
		return nil, err
	}

	surveys, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compass_surveys_parsed_total",
		Help: "Total number of survey blocks parsed from data files.",
	}), "compass_surveys_parsed_total")
	if err != nil {
		return nil, err
	}

	shots, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compass_shots_parsed_total",
		Help: "Total number of shots parsed from data files.",
	}), "compass_shots_parsed_total")
	if err != nil {
		return nil, err
	}

	loaded, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_loaded_projects",
		Help: "Current number of projects held in the knowledge base.",
	}), "compass_loaded_projects")
	if err != nil {
		return nil, err
	}

	return &ParseCollector{
		gatherer:       gatherer,
		FilesParsed:    files,
		ParseDurations: durations,
		SurveysParsed:  surveys,
		ShotsParsed:    shots,
		LoadedProjects: loaded,
	}, nil
}

// ObserveFile records one file parse of the given kind.
func (c *ParseCollector) ObserveFile(kind string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	if c.FilesParsed != nil {
		c.FilesParsed.WithLabelValues(kind, result).Inc()
	}
	if c.ParseDurations != nil {
		c.ParseDurations.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// ObserveSurveys adds the surveys and shots read from one data file.
func (c *ParseCollector) ObserveSurveys(surveys, shots int) {
	if c == nil {
		return
	}
	if c.SurveysParsed != nil {
		c.SurveysParsed.Add(float64(surveys))
	}
	if c.ShotsParsed != nil {
		c.ShotsParsed.Add(float64(shots))
	}
}

// SetLoadedProjects satisfies kb.MetricsRecorder so the knowledge base can
// drive the gauge from its mutators.
func (c *ParseCollector) SetLoadedProjects(n int) {
	if c == nil || c.LoadedProjects == nil {
		return
	}
	c.LoadedProjects.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ParseCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
