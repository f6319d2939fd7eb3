package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/rocketscienceinc/atrapa-milio/internal/config"
)

// main - applies (or rolls back) the SQL migrations of the postgres store.
func main() {
	source := flag.String("source", "file://db/migrations", "migrations source url")
	down := flag.Bool("down", false, "roll back every migration")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if conf.Postgres.DSN == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	m, err := migrate.New(*source, conf.Postgres.DSN)
	if err != nil {
		logger.Error("migration setup failed", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	version, dirty, _ := m.Version()
	logger.Info("database migrations applied", "version", version, "dirty", dirty)
}
