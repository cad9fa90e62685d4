package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SkeetShelf/internal/classify"
	"SkeetShelf/internal/config"
	"SkeetShelf/internal/extract"
	"SkeetShelf/internal/infrastructure/bluesky"
	"SkeetShelf/internal/infrastructure/huggingface"
	"SkeetShelf/internal/infrastructure/llm"
	"SkeetShelf/internal/infrastructure/scheduler"
	"SkeetShelf/internal/infrastructure/storage"
	"SkeetShelf/internal/infrastructure/telegram"
	"SkeetShelf/internal/logging"
	"SkeetShelf/internal/ports"
	"SkeetShelf/internal/source"
	"SkeetShelf/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	shelf     *usecase.Shelf
	discovery *usecase.Discovery
}

// New opens the store, migrates it and builds every use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	hf := huggingface.NewClient(huggingface.Options{
		BaseURL:       cfg.HuggingFace.BaseURL,
		APIKey:        cfg.HuggingFace.APIKey,
		ZeroShotModel: cfg.HuggingFace.ZeroShotModel,
		Timeout:       cfg.HuggingFace.Timeout,
	})
	classifier := classify.New(hf)
	extractor := newExtractor(cfg, hf, baseLogger)

	src, err := newSource(cfg, baseLogger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:      src,
		Classifier:  classifier,
		Extractor:   extractor,
		Repository:  store,
		Notifier:    notifier,
		Logger:      baseLogger.With("component", "pipeline"),
		ActorUserID: cfg.Pipeline.ActorUserID,
	})

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location())

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline, baseLogger.With("component", "scheduler")),
		shelf:     usecase.NewShelf(store),
		discovery: usecase.NewDiscovery(src, classifier, extractor, baseLogger.With("component", "discovery")),
	}, nil
}

func newExtractor(cfg config.Config, hf *huggingface.Client, logger *slog.Logger) *extract.Extractor {
	if cfg.Extraction.Backend == "chatgpt" {
		logger.Info("entity extraction via chat completions", "model", cfg.ChatGPT.Model)
		return extract.New(llm.NewChatGPTClient(cfg.ChatGPT), cfg.ChatGPT.Model)
	}
	return extract.New(hf, cfg.HuggingFace.QAModel)
}

func newSource(cfg config.Config, logger *slog.Logger) (ports.PostSource, error) {
	sc := cfg.Source

	registry := source.NewRegistry()
	registry.Register(bluesky.NewSearchSource(bluesky.NewClient(sc.PDS, nil), sc.Handle, sc.AppPassword, sc.Query, sc.Limit))
	registry.Register(bluesky.NewJetstreamSource(sc.JetstreamURL, sc.Query, sc.Limit, sc.Window, logger))

	src, err := registry.Resolve(sc.Kind)
	if err != nil {
		return nil, err
	}
	logger.Info("post source selected", "kind", src.Name(), "query", sc.Query, "limit", sc.Limit)
	return src, nil
}

// Run performs a single pipeline run, or keeps running on the configured
// interval until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	stopMetrics := a.serveMetrics()
	defer stopMetrics()

	if a.cfg.Scheduler.Interval <= 0 {
		report, err := a.pipeline.Run(ctx)
		if err != nil {
			return fmt.Errorf("run %s: %w", report.RunID, err)
		}
		return nil
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval)

	<-ctx.Done()
	a.logger.Info("shutting down, waiting for the current run")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Shelf exposes per-user saves for an outer routing layer.
func (a *Application) Shelf() *usecase.Shelf {
	return a.shelf
}

// Discovery exposes read-only browsing of fresh posts.
func (a *Application) Discovery() *usecase.Discovery {
	return a.discovery
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}

// serveMetrics starts the Prometheus listener when configured and returns
// its shutdown func.
func (a *Application) serveMetrics() func() {
	if a.cfg.Metrics.Addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.store.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server exited with error", "error", err)
		}
	}()
	a.logger.Info("metrics listening", "addr", a.cfg.Metrics.Addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.logger.Error("error shutting down metrics server", "error", err)
		}
	}
}
