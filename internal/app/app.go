package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/tiger/interview-assistant/internal/observability/metrics"
	"github.com/tiger/interview-assistant/internal/observability/telemetry"
	"github.com/tiger/interview-assistant/internal/observability/tracing"
	"github.com/tiger/interview-assistant/internal/runtime/answer"
	"github.com/tiger/interview-assistant/internal/runtime/pipeline"
	"github.com/tiger/interview-assistant/internal/runtime/provider/bootstrap"
	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/invocation"
	"github.com/tiger/interview-assistant/internal/runtime/provider/registry"
	"github.com/tiger/interview-assistant/internal/settings"
	"github.com/tiger/interview-assistant/transports/websocket"
)

// Options configures New.
type Options struct {
	Settings settings.Settings
	Resolver providerconfig.Resolver
	Logger   *zap.SugaredLogger
	Version  string
	// TraceWriter receives stdout spans when tracing is enabled.
	TraceWriter io.Writer
	// Factories overrides the provider table; nil uses bootstrap.Factories.
	Factories []bootstrap.Factory
	Now       func() time.Time
}

// App is the application context built once at startup and shared by the
// HTTP surface and the websocket hub.
type App struct {
	Settings  settings.Settings
	Version   string
	StartedAt time.Time
	Logger    *zap.SugaredLogger

	Catalog    *registry.Catalog
	Report     bootstrap.Report
	Controller *invocation.Controller
	Prompts    *answer.Prompts
	Runner     *pipeline.Runner
	Store      *settings.Store
	Hub        *websocket.Hub

	Metrics   *metrics.Metrics
	Telemetry *telemetry.Pipeline
	Tracing   *tracing.Provider

	now func() time.Time
}

// New builds every runtime component. Providers that fail to construct are
// logged and skipped.
func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Settings

	prompts, err := answer.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	store, err := settings.NewStore(cfg.Defaults, prompts.StyleNames())
	if err != nil {
		return nil, fmt.Errorf("session defaults: %w", err)
	}

	tracer, err := tracing.Setup(tracing.Options{
		ServiceName: "interview-assistant",
		Version:     opts.Version,
		Exporter:    cfg.Tracing,
		Writer:      opts.TraceWriter,
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	telemetryCfg, err := telemetry.RuntimeConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("telemetry config: %w", err)
	}
	collectors := metrics.New("assistant")
	sinks := telemetry.MultiSink{collectors}
	if telemetryCfg.Enabled {
		sinks = append(sinks, telemetry.NewZapSink(logger))
	}
	emitter := telemetry.NewPipeline(sinks, telemetryCfg.Config())

	factories := opts.Factories
	if factories == nil {
		factories = bootstrap.Factories()
	}
	catalog, report, err := bootstrap.BuildWithFactories(opts.Resolver, factories)
	if err != nil {
		_ = emitter.Close()
		return nil, fmt.Errorf("build providers: %w", err)
	}
	for _, failure := range report.Failures {
		logger.Warnw("provider initialization failed", "capability", failure.Capability, "provider", failure.ProviderID, "error", failure.Err)
	}
	for _, capability := range report.Mocked {
		logger.Warnw("no real provider configured, using mock", "capability", capability)
	}
	logger.Info(bootstrap.Summary(catalog))

	controller := invocation.NewController(catalog, cfg.ControllerConfig(),
		invocation.WithEmitter(emitter),
		invocation.WithTracer(tracer.Tracer()),
	)
	runner := pipeline.NewRunner(controller, prompts, logger,
		pipeline.WithEmitter(emitter),
		pipeline.WithTracer(tracer.Tracer()),
		pipeline.WithClock(now),
	)
	hub := websocket.NewHub(websocket.Config{QueueSize: cfg.SessionQueue}, runner, func() pipeline.Snapshot {
		return store.Get().Snapshot()
	}, logger, websocket.WithEmitter(emitter), websocket.WithClock(now))

	return &App{
		Settings:   cfg,
		Version:    opts.Version,
		StartedAt:  now(),
		Logger:     logger,
		Catalog:    catalog,
		Report:     report,
		Controller: controller,
		Prompts:    prompts,
		Runner:     runner,
		Store:      store,
		Hub:        hub,
		Metrics:    collectors,
		Telemetry:  emitter,
		Tracing:    tracer,
		now:        now,
	}, nil
}

// Now returns the application clock.
func (a *App) Now() time.Time {
	return a.now()
}

// Close disconnects every session and flushes telemetry and spans.
func (a *App) Close(ctx context.Context) error {
	a.Hub.CloseAll()
	telemetryErr := a.Telemetry.Close()
	if stats := a.Telemetry.Stats(); stats.Dropped > 0 || stats.ExportFailures > 0 {
		a.Logger.Warnw("telemetry events lost", "dropped", stats.Dropped, "exportFailures", stats.ExportFailures)
	}
	tracingErr := a.Tracing.Shutdown(ctx)
	return errors.Join(telemetryErr, tracingErr)
}
