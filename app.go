package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"audiostream/chunkcache"
	"audiostream/core"
	"audiostream/db"
	"audiostream/delivery"
	"audiostream/eventlog"
	"audiostream/logging"
	"audiostream/media"
	"audiostream/server"
	"audiostream/shutdown"
	"audiostream/stream"
)

const metricsNamespace = "audiostream"

// App is a fully wired server process.
type App struct {
	cfg      *core.Config
	logger   *logging.Logger
	database *db.Database
	repo     *db.Repository
	writer   *db.AsyncWriter
	provider *media.CatalogProvider
	server   *server.Server
	manager  *shutdown.Manager

	reindex bool
}

// newApp opens storage, builds the streaming components and the HTTP
// server. Nothing is listening until Run.
func newApp(cfg *core.Config, logger *logging.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	database, err := db.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}

	repo := db.NewRepository(database, nil)
	writer := db.NewAsyncWriter(repo.CreateAsyncWriteHandler(), db.AsyncWriterConfig{
		OnError: func(op db.WriteOperation, err error) {
			logger.Warn("async log write failed", zap.Error(err), zap.Duration("queued", time.Since(op.Enqueued)))
		},
	})
	repo.AttachAsyncWriter(writer)
	writer.Start()

	fail := func(err error) (*App, error) {
		writer.Stop(time.Second)
		database.Close()
		return nil, err
	}

	provider, err := media.NewCatalogProvider(repo, cfg.MediaRoot)
	if err != nil {
		return fail(err)
	}

	manager := shutdown.NewManager(logger, cfg.ShutdownTimeout)
	chunks := chunkcache.New(chunkcache.Config{TTL: cfg.ChunkCacheTTL, MaxEntries: cfg.ChunkCacheEntries}, chunkcache.FileReader{})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := eventlog.NewPrometheusObserver(metricsNamespace, registry)
	if err != nil {
		return fail(err)
	}

	recorder := eventlog.NewRecorder(cfg.LogRetentionEntries)
	persistent := eventlog.NewPersistentSink(repo, logger)

	gauges := []struct {
		name, help string
		fn         func() float64
	}{
		{"active_streams", "Requests currently streaming.", func() float64 { return float64(manager.Tracker().Active()) }},
		{"chunk_cache_entries", "Chunks held in the cache.", func() float64 { return float64(chunks.Len()) }},
		{"log_queue_pending", "Log entries waiting to be written.", func() float64 { return float64(writer.Pending()) }},
		{"log_entries_dropped", "Log entries dropped because the queue was full.", func() float64 { return float64(persistent.Dropped()) }},
	}
	for _, g := range gauges {
		if err := eventlog.RegisterGauge(registry, metricsNamespace, g.name, g.help, g.fn); err != nil {
			return fail(err)
		}
	}

	srv, err := server.NewServer(server.Deps{
		Config:   cfg,
		Resolver: media.NewResolver(provider),
		Files:    provider,
		Policy:   delivery.NewPolicy(delivery.RulesFromConfig(cfg)),
		Engine: stream.NewEngine(stream.Config{
			BufferSize:          cfg.BufferSize(),
			ThrottleBytesPerSec: cfg.ThrottleBytesPerSec,
		}, logger.Named("stream")),
		Chunks:   chunks,
		Tracker:  manager.Tracker(),
		Events:   eventlog.Multi{recorder, persistent, observer},
		Recorder: recorder,
		Logs:     repo,
		Gatherer: registry,
		Logger:   logger,
	})
	if err != nil {
		return fail(err)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		database: database,
		repo:     repo,
		writer:   writer,
		provider: provider,
		server:   srv,
		manager:  manager,
	}, nil
}

// Run serves until a signal or Stop, then shuts down in hook order.
func (a *App) Run() error {
	ctx := a.manager.Context()
	a.manager.Listen()

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Start() }()

	retentionDone := make(chan struct{})
	go func() {
		defer close(retentionDone)
		eventlog.RunRetention(ctx, a.database, eventlog.RetentionPolicy{
			MaxEntries: a.cfg.LogRetentionEntries,
			MaxAgeDays: a.cfg.LogRetentionDays,
		}, a.logger.Named("retention"))
	}()

	if a.reindex {
		go func() {
			if _, err := a.index(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("startup index failed", zap.Error(err))
			}
		}()
	}

	a.registerHooks(retentionDone)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.logger.Error("HTTP server stopped", zap.Error(err))
			runErr = err
		}
	}

	if err := a.manager.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	if sig := a.manager.Signal(); sig != nil && runErr == nil {
		runErr = &exitError{code: core.SignalExitCode(sig), err: fmt.Errorf("stopped by %s", sig)}
	}
	return runErr
}

// Stop requests shutdown; Run returns once it completes.
func (a *App) Stop() {
	a.manager.Trigger()
}

func (a *App) registerHooks(retentionDone <-chan struct{}) {
	m := a.manager
	m.Register("http", shutdown.PriorityHTTP, a.server.Shutdown)
	m.Register("retention", shutdown.PriorityWorkers, func(ctx context.Context) error {
		select {
		case <-retentionDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	m.Register("log-queue", shutdown.PriorityLogQueue, func(ctx context.Context) error {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if !a.writer.Stop(timeout) {
			return errors.New("log queue not drained before timeout")
		}
		return nil
	})
	m.Register("database", shutdown.PriorityStorage, func(context.Context) error {
		return a.database.Close()
	})
	m.Register("logger", shutdown.PriorityLogger, func(context.Context) error {
		// Sync on a terminal returns EINVAL; nothing useful to report.
		_ = a.logger.Sync()
		return nil
	})
}

// index scans the media root into the catalog.
func (a *App) index(ctx context.Context) (media.IndexResult, error) {
	return runIndex(ctx, a.cfg, a.repo, a.logger)
}

// runIndex loads the optional YAML catalog and runs the indexer.
func runIndex(ctx context.Context, cfg *core.Config, store media.IndexStore, logger *logging.Logger) (media.IndexResult, error) {
	metadata, err := media.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return media.IndexResult{}, err
	}
	ix := media.NewIndexer(store, cfg.MediaRoot, cfg.IsExtensionAllowed, metadata, logger.Named("indexer"))
	return ix.Run(ctx)
}
