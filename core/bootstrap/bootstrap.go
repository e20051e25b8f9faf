package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/aviabot/core/config"
	coredatabase "github.com/m3rciful/aviabot/core/database"
	"github.com/m3rciful/aviabot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config *coreconfig.Config
	// Database is optional; an empty driver skips connect and migrations.
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil when no database was configured.
	DB *sqlx.DB
}

// Close releases the database handle if one was opened.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, connects to the database, and applies migrations.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	dbCfg := opts.Database
	if strings.TrimSpace(dbCfg.Driver) == "" {
		logger.Info(logger.Background(), "db", "db.skipped",
			slog.String("cause", "no driver configured"),
		)
		return &Result{}, nil
	}
	if err := dbCfg.Normalize(); err != nil {
		return nil, fmt.Errorf("bootstrap: invalid database config: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(dbCfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	return &Result{DB: db}, nil
}
