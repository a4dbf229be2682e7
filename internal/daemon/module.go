// Package daemon composes the smsd service: store, gate, responder,
// processor, janitor and HTTP server, with lifecycle hooks.
package daemon

import (
	"context"
	"os"

	"github.com/matheus3301/smsd/internal/ai"
	"github.com/matheus3301/smsd/internal/auth"
	"github.com/matheus3301/smsd/internal/config"
	"github.com/matheus3301/smsd/internal/httpserver"
	"github.com/matheus3301/smsd/internal/janitor"
	"github.com/matheus3301/smsd/internal/lock"
	"github.com/matheus3301/smsd/internal/logging"
	"github.com/matheus3301/smsd/internal/processor"
	"github.com/matheus3301/smsd/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("smsd",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideLock,
			provideStore,
			provideGate,
			provideResponder,
			provideProcessor,
			provideJanitor,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath)
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data directory lock", zap.String("dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data directory lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}
	dbPath := cfg.DatabasePath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideGate(cfg *config.Config, logger *zap.Logger) *auth.Gate {
	return auth.NewGate(cfg.Auth.AllowedNumbers, logger)
}

func provideResponder(cfg *config.Config, logger *zap.Logger) ai.Responder {
	return ai.New(ai.Options{
		Provider:   cfg.AI.Provider,
		BaseURL:    cfg.AI.BaseURL,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		MaxRetries: cfg.AI.MaxRetries,
	}, logger)
}

func provideProcessor(cfg *config.Config, db *store.DB, gate *auth.Gate, responder ai.Responder, logger *zap.Logger) *processor.Processor {
	logger.Info("message processor configured",
		zap.String("provider", responder.Name()),
		zap.Int("max_context", cfg.AI.MaxContext))
	return processor.New(db, gate, responder, cfg.AI.SystemPrompt, cfg.AI.MaxContext, logger)
}

func provideJanitor(cfg *config.Config, db *store.DB, logger *zap.Logger) *janitor.Janitor {
	return janitor.New(db, cfg.Outbox.CleanupInterval.Duration, cfg.Outbox.RetentionDays, logger)
}

func provideServer(cfg *config.Config, proc *processor.Processor, db *store.DB, logger *zap.Logger) *httpserver.Server {
	return httpserver.New(cfg, proc, db, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *httpserver.Server, jan *janitor.Janitor, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			jan.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			jan.Stop()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("error shutting down http server", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
