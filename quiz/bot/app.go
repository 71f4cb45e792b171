package bot

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/bootstrap"
	"github.com/m3rciful/quizbot/core/logger"
	quizconfig "github.com/m3rciful/quizbot/quiz/config"
	"github.com/m3rciful/quizbot/quiz/catalog"
	"github.com/m3rciful/quizbot/quiz/conversation"
	"github.com/m3rciful/quizbot/quiz/results"
	"github.com/m3rciful/quizbot/quiz/session"
)

// App is the bot together with the infrastructure it owns.
type App struct {
	*Bot
	infra *bootstrap.Result
}

// Bootstrap initializes logging, tracing and storage, then builds the bot.
func Bootstrap(ctx context.Context, cfg *quizconfig.AppConfig) (*App, error) {
	var migrations fs.FS
	if cfg.Database.Enabled() {
		m, err := results.Migrations(cfg.Database.Driver)
		if err != nil {
			return nil, fmt.Errorf("results migrations: %w", err)
		}
		migrations = m
	}

	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations,
	})
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(ctx, cfg.Quiz.CatalogPath)
	if err != nil {
		_ = infra.Close(ctx)
		return nil, err
	}

	var store results.Store
	if infra.DB != nil {
		store = results.NewSQLStore(infra.DB)
	} else {
		store = results.NewMemoryStore()
	}

	engine := conversation.NewEngine(cat, session.NewMemoryStore(), cfg.Quiz.Texts)
	return &App{Bot: New(cfg, engine, store), infra: infra}, nil
}

// Close waits for pending result writes and releases infrastructure.
func (a *App) Close(ctx context.Context) error {
	if err := a.Wait(ctx); err != nil {
		logger.Warn(ctx, logger.CompBot, "close.wait",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return a.infra.Close(ctx)
}

// CoreConfig lets the command runner reach the core sections.
func (a *App) CoreConfig() *coreconfig.Config {
	return a.cfg.CoreConfig()
}

func loadCatalog(ctx context.Context, path string) (*catalog.Catalog, error) {
	if path == "" {
		cat := catalog.Default()
		logger.Info(ctx, logger.CompCatalog, "catalog.load",
			slog.String("source", "embedded"),
			slog.Int("questions", cat.Size()),
		)
		return cat, nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		logger.Error(ctx, logger.CompCatalog, "catalog.load",
			slog.String("status", "fail"),
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	logger.Info(ctx, logger.CompCatalog, "catalog.load",
		slog.String("source", path),
		slog.Int("questions", cat.Size()),
	)
	return cat, nil
}
