package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ryzeai/ryze/config"
	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/metrics"
	"github.com/ryzeai/ryze/model"
	"github.com/ryzeai/ryze/pipeline"
	"github.com/ryzeai/ryze/server"
	"github.com/ryzeai/ryze/stages"
	"github.com/ryzeai/ryze/storage"
)

// App wires the server-side components together.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *model.Registry
	llm      *llm.Client
	nats     *storage.NATS
	watcher  *config.RegistryWatcher
	metrics  *metrics.Metrics
	promReg  *prometheus.Registry
	server   *server.Server
}

// NewApp builds the model registry, LLM client, stages and HTTP server
// described by cfg. Call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	reg, err := cfg.Model.BuildRegistry()
	if err != nil {
		return nil, err
	}
	a.registry = reg

	clientOpts := []llm.ClientOption{
		llm.WithLogger(logger),
		llm.WithHTTPClient(modelHTTPClient(cfg.Model)),
	}
	if cfg.Server.RecordCalls {
		store, err := a.openCallStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		clientOpts = append(clientOpts, llm.WithCallStore(store))
	}
	a.llm = llm.NewClient(reg, clientOpts...)

	a.promReg = prometheus.NewRegistry()
	a.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.promReg)

	orch := pipeline.New(
		stages.NewPlanner(a.llm, stageOptions(cfg, logger)...),
		stages.NewGenerator(a.llm, stageOptions(cfg, logger)...),
		stages.NewExplainer(a.explanationStreamer(), stageOptions(cfg, logger)...),
		pipeline.WithLogger(logger),
		pipeline.WithObserver(a.metrics),
	)

	a.server = server.New(orch,
		server.WithLogger(logger),
		server.WithHealth(reg),
		server.WithMetrics(a.promReg, a.metrics.RunStarted),
		server.WithRunTimeout(cfg.Server.RunTimeout),
	)

	if cfg.Model.Registry != "" {
		w, err := config.NewRegistryWatcher(cfg.Model.Registry, reg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			a.Close()
			return nil, err
		}
		a.watcher = w
	}

	return a, nil
}

func (a *App) openCallStore(ctx context.Context) (*llm.CallStore, error) {
	n, err := storage.ConnectNATS(ctx, storage.NATSOptions{
		URL:      a.cfg.NATS.URL,
		Embedded: a.cfg.NATS.Embedded,
		StoreDir: a.cfg.NATS.StoreDir,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.nats = n

	store, err := llm.NewCallStore(ctx, n.JetStream(), llm.WithStoreLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("open call store: %w", err)
	}
	a.logger.Info("Recording LLM calls", "bucket", llm.BucketCalls, "nats_url", n.URL())
	return store, nil
}

// explanationStreamer returns nil when explanations should come from the
// plan itself rather than a model.
func (a *App) explanationStreamer() stages.Streamer {
	if a.cfg.Server.StaticExplanation {
		return nil
	}
	if !a.registry.HasEndpoints(model.CapabilityForRole(model.RoleExplainer)) {
		a.logger.Info("No model for explanations, using plan reasoning")
		return nil
	}
	return stages.ClientStreamer(a.llm)
}

func stageOptions(cfg *config.Config, logger *slog.Logger) []stages.Option {
	return []stages.Option{
		stages.WithLogger(logger),
		stages.WithTemperature(cfg.Model.Temperature),
	}
}

// modelHTTPClient bounds the wait for each response's headers but not the
// body, which stays open while a model streams.
func modelHTTPClient(m config.ModelConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = m.Timeout
	return &http.Client{Transport: transport}
}

// Handler returns the HTTP handler of the app.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.server.ListenAndServe(ctx, a.cfg.Server.Addr, a.cfg.Server.ShutdownTimeout)
}

// Close releases the watcher and the NATS connection.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Debug("Stopping registry watcher", "error", err)
		}
	}
	if a.nats != nil {
		a.nats.Close()
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("Ryze ready",
		"version", Version,
		"addr", cfg.Server.Addr,
		"endpoints", len(app.registry.ListEndpoints()))

	return app.Run(ctx)
}
