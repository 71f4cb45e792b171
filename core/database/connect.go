package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/quizbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	probeInterval  = 2 * time.Second
)

// Connect opens the pool and pings it. With readyTimeout > 0 a postgres
// server is first awaited for up to that long, which covers containers
// starting side by side.
func Connect(ctx context.Context, cfg Config, readyTimeout time.Duration) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("db connect: driver %q has no sql backend", cfg.Driver)
	}
	attrs := []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("target", cfg.Target()),
	}

	if cfg.Driver == DriverPostgres && readyTimeout > 0 {
		if err := WaitForPostgres(ctx, cfg.URL(), readyTimeout); err != nil {
			logger.DB.LogAttrs(ctx, slog.LevelError, "db not ready",
				append(attrs, slog.String("event", "db.wait"), slog.String("err", err.Error()))...)
			return nil, err
		}
	}

	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	start := time.Now()
	db, err := sqlx.ConnectContext(connCtx, cfg.Driver, cfg.DSN())
	attrs = append(attrs, slog.Duration("duration", logger.RoundMS(time.Since(start))))
	if err != nil {
		logger.DB.LogAttrs(ctx, slog.LevelError, "db connect failed",
			append(attrs, slog.String("event", "db.connect"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	logger.DB.LogAttrs(ctx, slog.LevelInfo, "db connected",
		append(attrs, slog.String("event", "db.connect"), slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

// WaitForPostgres pings dsn every probeInterval until it answers, ctx ends
// or timeout passes.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for attempt := 1; ; attempt++ {
		err := probe(waitCtx, dsn)
		if err == nil {
			return nil
		}
		logger.DB.LogAttrs(ctx, slog.LevelDebug, "db probe failed",
			slog.String("event", "db.wait"),
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-ticker.C:
		}
	}
}

func probe(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	pingCtx, cancel := context.WithTimeout(ctx, probeInterval)
	defer cancel()
	return db.PingContext(pingCtx)
}
