// Command pictura-migrate applies pending catalog schema migrations and exits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/config"
	"github.com/kailas-cloud/pictura/internal/db/postgres"
	logpkg "github.com/kailas-cloud/pictura/internal/logger"
	"github.com/kailas-cloud/pictura/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Running pictura migrations",
		zap.String("version", version.Version),
		zap.String("env", env),
	)

	pg, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: time.Duration(cfg.Database.MaxConnLifeMin) * time.Minute,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pg.Close()

	applied, err := pg.Migrate(ctx)
	if err != nil {
		logger.Error("Migration failed", zap.Error(err))
		pg.Close()
		os.Exit(1)
	}

	logger.Info("Migrations complete", zap.Int("applied", applied))
}
