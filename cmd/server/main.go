package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"obra-backend/internal/config"
	"obra-backend/internal/database"
	"obra-backend/internal/logger"
	"obra-backend/internal/purchasing"
	"obra-backend/internal/server"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] no .env file, using process environment")
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "obra-server",
		Short:        "Construction budgeting and site control API",
		SilenceUsage: true,
	}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
	root.AddCommand(serve, migrate)
	// bare invocation serves
	root.RunE = serve.RunE
	return root
}

func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg := config.Load()
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, lg, nil
}

func runMigrate() error {
	cfg, lg, err := bootstrap()
	if err != nil {
		return err
	}
	defer lg.Sync()

	db, err := database.Open(cfg, lg)
	if err != nil {
		return err
	}
	return database.Migrate(db, lg)
}

func runServe() error {
	cfg, lg, err := bootstrap()
	if err != nil {
		return err
	}
	defer lg.Sync()

	db, err := database.Open(cfg, lg)
	if err != nil {
		return err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db, lg); err != nil {
			return err
		}
	}

	locker, closeLocker, err := newLocker(cfg, lg)
	if err != nil {
		return err
	}
	defer closeLocker()

	app := server.NewApp(cfg, lg, db, locker)

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server listening", "port", cfg.HTTPPort)
		errCh <- app.Listen(":" + cfg.HTTPPort)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		lg.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		lg.Error("graceful shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

// newLocker picks Redis when REDIS_ADDRESS is set and reachable, otherwise an
// in-process lock that only protects a single instance.
func newLocker(cfg *config.Config, lg *logger.Logger) (purchasing.Locker, func(), error) {
	if cfg.RedisAddress == "" {
		lg.Warn("REDIS_ADDRESS not set, purchase-order locks are in-process only")
		return purchasing.NewLocalLocker(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddress, err)
	}
	lg.Info("redis connected", "addr", cfg.RedisAddress)

	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	return purchasing.NewRedisLocker(rdb, ttl, lg), func() { _ = rdb.Close() }, nil
}
