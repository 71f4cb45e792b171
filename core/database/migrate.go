package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/quizbot/core/logger"
)

// ErrDirty means a previous migration failed halfway and needs a manual fix.
var ErrDirty = errors.New("database is in a dirty migration state")

// RunMigrations applies every up migration at the root of fsys. It uses a
// connection of its own and closes it before returning.
func RunMigrations(cfg Config, fsys fs.FS) error {
	files := upMigrations(fsys)
	logFiles(slog.LevelDebug, "migrations resolved", "resolve", files, slog.String("driver", cfg.Driver))

	m, err := newMigrator(cfg, fsys)
	if err != nil {
		logger.MIG.Error("init failed",
			slog.String("event", "db.migrate"),
			slog.String("driver", cfg.Driver),
			slog.String("target", cfg.Target()),
			slog.String("err", err.Error()),
		)
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("close failed",
				slog.String("event", "db.migrate"),
				slog.String("err", errors.Join(srcErr, dbErr).Error()),
			)
		}
	}()

	from, err := schemaVersion(m)
	if err != nil {
		logger.MIG.Error("version check failed",
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)
		return err
	}

	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.Uint64("from_ver", uint64(from)),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	to := from
	if upErr == nil {
		if to, err = schemaVersion(m); err != nil {
			return err
		}
	}
	applied := selectApplied(files, uint64(from), uint64(to))
	logFiles(slog.LevelDebug, "applied files", "apply", applied)
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func newMigrator(cfg Config, fsys fs.FS) (*migrate.Migrate, error) {
	var dbURL string
	switch cfg.Driver {
	case DriverPostgres:
		dbURL = cfg.URL()
	case DriverSQLite:
		dbURL = "sqlite3://" + cfg.Path
	default:
		return nil, fmt.Errorf("no migration driver for %q", cfg.Driver)
	}
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, nil
}

// schemaVersion is zero for a fresh database.
func schemaVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return v, fmt.Errorf("%w at version %d", ErrDirty, v)
	}
	return v, nil
}

func logFiles(level slog.Level, msg, event string, files []string, extra ...slog.Attr) {
	if len(files) == 0 && event == "apply" {
		return
	}
	attrs := append([]slog.Attr{
		slog.String("event", event),
		slog.Int("files_total", len(files)),
	}, extra...)
	if preview, truncated := logger.SummarizeStrings(files, 6); preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
		if truncated {
			attrs = append(attrs, slog.Bool("files_truncated", true))
		}
	}
	logger.MIG.LogAttrs(logger.Background(), level, msg, attrs...)
}

// upMigrations lists "*.up.sql" names sorted by name.
func upMigrations(fsys fs.FS) []string {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// fileVersion reads the numeric prefix of "0002_name.up.sql".
func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// selectApplied returns the files with from < version <= to.
func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
