package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"ThreatScanner/internal/analysis"
	"ThreatScanner/internal/archive"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/infrastructure/blob"
	"ThreatScanner/internal/infrastructure/counter"
	"ThreatScanner/internal/infrastructure/feeds"
	"ThreatScanner/internal/infrastructure/inference"
	"ThreatScanner/internal/infrastructure/scheduler"
	"ThreatScanner/internal/infrastructure/storage"
	"ThreatScanner/internal/infrastructure/telegram"
	"ThreatScanner/internal/infrastructure/vector"
	"ThreatScanner/internal/logging"
	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/usage"
	"ThreatScanner/internal/usecase"
	"ThreatScanner/internal/worker"
)

// Version is set at build time.
var Version = "dev"

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	worker    *worker.Worker

	db         *sql.DB
	counters   *counter.RedisStore
	natsConn   *nats.Conn
	metricsSrv *http.Server
}

// New builds a runnable application instance, connecting every backend.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	metrics.Init("threatscanner", Version)

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if version, dirty, err := storage.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	} else {
		baseLogger.Info("migrations applied", "version", version, "dirty", dirty)
	}
	repository := storage.NewPostgresRepository(db)

	counters, err := counter.NewRedisStore(ctx, cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("counter store: %w", err)
	}

	blobs, err := blob.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	client := inference.NewClient(cfg.Inference.Endpoint, cfg.Inference.APIKey)
	meter := usage.NewMeter(cfg.Usage.DailyCeiling)

	baseline := analysis.NewBaseline(client, meter, cfg.Analysis.BaselineModel,
		cfg.Analysis.MaxInputChars, baseLogger.With("component", "baseline"))
	trimodel := analysis.NewTriModel(client, meter, cfg.Analysis.BasicModel,
		cfg.Analysis.DetailedModel, cfg.Analysis.MaxInputChars, baseLogger.With("component", "trimodel"))
	controller := analysis.NewController(analysis.ParseMode(cfg.Analysis.Mode),
		cfg.Analysis.CanaryPercent, baseline, trimodel, baseLogger.With("component", "controller"))
	embedder := analysis.NewEmbedder(client, meter, cfg.Analysis.EmbeddingModel)

	archiveStore := archive.NewStore(blobs, counters, archive.Limits{
		MaxObjectBytes: cfg.Archive.MaxObjectBytes,
		StorageGiB:     cfg.Archive.StorageCapGiB,
		ClassAOps:      cfg.Archive.ClassAOpsCap,
		ClassBOps:      cfg.Archive.ClassBOpsCap,
	}, cfg.Archive.Prefix, time.Duration(cfg.Archive.QuotaTTLDays)*24*time.Hour,
		baseLogger.With("component", "archive"))

	vectors := vector.NewClient(cfg.Vector.Endpoint, cfg.Vector.APIKey, cfg.Vector.Index)
	source := feeds.NewRSSSource(cfg.Feeds, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Repository: repository,
		Controller: controller,
		Embedder:   embedder,
		Archive:    archiveStore,
		Vectors:    vectors,
		Meter:      meter,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	app := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(
			scheduler.NewDailyScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
			pipeline,
			baseLogger.With("component", "scheduler"),
		),
		db:        db,
		counters:  counters,
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		app.metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		w, err := worker.NewWorker(nc, cfg.NATS.Subject, cfg.NATS.Durable, controller, repository)
		if err != nil {
			return nil, fmt.Errorf("build worker: %w", err)
		}
		app.natsConn = nc
		app.worker = w
	}

	return app, nil
}

// Run performs a single pipeline execution for the current day.
func (a *Application) Run(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}

	now := time.Now().In(a.cfg.Scheduler.Location())
	return a.pipeline.ProcessDay(ctx, now)
}

// Start launches the recurring schedule, the metrics endpoint and, when
// configured, the on-demand worker, then blocks until the context is
// cancelled.
func (a *Application) Start(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if a.metricsSrv != nil {
		go func() {
			a.logger.Info("metrics endpoint listening", "addr", a.metricsSrv.Addr)
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics endpoint stopped", "error", err)
			}
		}()
	}

	if a.worker != nil {
		go func() {
			if err := a.worker.Start(ctx); err != nil {
				a.logger.Error("worker stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()

	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(shutdownCtx)
	}
	return a.scheduler.Stop(context.Background())
}

// Close releases all backend connections.
func (a *Application) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.counters != nil {
		_ = a.counters.Close()
	}
	if a.natsConn != nil {
		a.natsConn.Close()
	}
}
