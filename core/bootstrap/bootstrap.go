package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	coredatabase "github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telemetry"
)

const dbReadyTimeout = 30 * time.Second

// Options control the generic bootstrap pipeline shared between bots.
// The database steps are skipped when Database has no SQL driver.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Migrations holds the schema for Database.Driver.
	Migrations fs.FS

	LoggerInit    func(*coreconfig.LoggingConfig) error
	TelemetryInit func(context.Context, coreconfig.TelemetryConfig) (func(context.Context) error, error)
	Connect       func(context.Context, coredatabase.Config, time.Duration) (*sqlx.DB, error)
	Migrate       func(coredatabase.Config, fs.FS) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil when no SQL database is configured.
	DB *sqlx.DB
	// ShutdownTelemetry flushes pending spans.
	ShutdownTelemetry func(context.Context) error
}

// Close releases the database and flushes telemetry.
func (r *Result) Close(ctx context.Context) error {
	var err error
	if r.ShutdownTelemetry != nil {
		err = r.ShutdownTelemetry(ctx)
	}
	if r.DB != nil {
		if cerr := r.DB.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Run initializes the logger and tracing, then connects to the database and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(&opts.Config.Logging); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	telemetryInit := opts.TelemetryInit
	if telemetryInit == nil {
		telemetryInit = telemetry.Setup
	}
	shutdown, err := telemetryInit(ctx, opts.Config.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: telemetry init failed: %w", err)
	}
	res := &Result{ShutdownTelemetry: shutdown}

	if !opts.Database.Enabled() {
		return res, nil
	}
	if opts.Migrations == nil {
		_ = res.Close(ctx)
		return nil, fmt.Errorf("bootstrap: no migrations for driver %q", opts.Database.Driver)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Database, dbReadyTimeout)
	if err != nil {
		_ = res.Close(ctx)
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res.DB = db

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database, opts.Migrations); err != nil {
		_ = res.Close(ctx)
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	return res, nil
}
