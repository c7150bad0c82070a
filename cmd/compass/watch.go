package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/compass-survey/core"
	"github.com/signalsfoundry/compass-survey/internal/catalog"
	"github.com/signalsfoundry/compass-survey/internal/logging"
	"github.com/signalsfoundry/compass-survey/internal/observability"
	"github.com/signalsfoundry/compass-survey/internal/watch"
	"github.com/signalsfoundry/compass-survey/kb"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		metricsAddr string
		dbPath      string
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <project.mak>",
		Short: "Reload a project whenever it or its survey files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr == "" {
				metricsAddr = a.cfg.MetricsAddr
			}
			collector, err := observability.NewParseCollector(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			loader, err := a.newLoader(core.WithParseRecorder(collector))
			if err != nil {
				return err
			}

			var cat *catalog.Catalog
			if dbPath != "" {
				cat, err = catalog.Open(cmd.Context(), dbPath)
				if err != nil {
					return err
				}
				defer cat.Close()
			}

			w, err := watch.New(args[0], watch.WithDebounce(debounce), watch.WithLogger(a.log))
			if err != nil {
				return err
			}

			r := &reloader{
				path:    args[0],
				loader:  loader,
				store:   kb.NewKnowledgeBase(kb.WithMetricsRecorder(collector)),
				watcher: w,
				catalog: cat,
				log:     a.log,
			}
			unsubscribe := r.store.Subscribe(r.logEvent)
			defer unsubscribe()

			srv := serveMetrics(metricsAddr, collector, a.log)
			defer func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()

			r.reload(cmd.Context(), nil)
			return w.Run(cmd.Context(), r.reload)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (defaults to metrics_addr from the configuration)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Also keep this catalog database up to date")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a change is reloaded")
	return cmd
}

// reloader reloads one project into the knowledge base on every change.
// A failed reload keeps the previously loaded version.
type reloader struct {
	path    string
	loader  *core.Loader
	store   *kb.KnowledgeBase
	watcher *watch.Watcher
	catalog *catalog.Catalog
	log     logging.Logger
}

func (r *reloader) reload(ctx context.Context, changed []string) {
	p, err := r.loader.Load(ctx, r.path)
	if err != nil {
		if errors.Is(err, core.ErrProjectFileNotFound) {
			r.store.Remove(r.path)
			if r.catalog != nil {
				if _, rerr := r.catalog.Remove(ctx, r.path); rerr != nil {
					r.log.Error(ctx, "catalog remove failed", logging.Err(rerr))
				}
			}
		}
		r.log.Error(ctx, "reload failed", logging.Any("changed", changed), logging.Err(describe(err)))
		return
	}

	files := make([]string, 0, len(p.SurveyFiles))
	for _, f := range p.SurveyFiles {
		files = append(files, core.ResolvePath(r.path, f.FilePath))
	}
	if err := r.watcher.SetFiles(files); err != nil {
		r.log.Warn(ctx, "could not watch survey files", logging.Err(err))
	}

	if err := kb.Validate(p); err != nil {
		r.log.Warn(ctx, "project has disconnected shots", logging.Err(err))
	}
	if err := r.store.Put(p); err != nil {
		r.log.Error(ctx, "store project failed", logging.Err(err))
		return
	}
	if r.catalog != nil {
		if err := r.catalog.Index(ctx, p); err != nil {
			r.log.Error(ctx, "catalog index failed", logging.Err(err))
		}
	}
}

func (r *reloader) logEvent(e kb.Event) {
	fields := []logging.Field{logging.String("event", e.Type.String()), logging.String("path", e.Path)}
	if e.Project != nil {
		fields = append(fields, logging.Int("surveys", len(e.Project.Surveys())))
	}
	r.log.Info(context.Background(), "knowledge base updated", fields...)
}

func serveMetrics(addr string, collector *observability.ParseCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
