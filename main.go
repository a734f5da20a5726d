package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := LoadConfig(os.Getenv("ECONOMY_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	logger.Info("starting tap economy", "env", env)

	if cfg.DatabaseURL == "" {
		fatal(logger, "DATABASE_URL is not set", nil)
	}
	if cfg.JWTSecret == "" {
		fatal(logger, "JWT_SECRET is not set", nil)
	}
	if cfg.ServiceKey == "" {
		logger.Warn("SERVICE_KEY is not set; collaborator routes will reject every request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "failed to open database", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		fatal(logger, "failed to ping database", err)
	}
	logger.Info("connected to PostgreSQL")

	if err := ensureSchema(ctx, db); err != nil {
		fatal(logger, "failed to ensure schema", err)
	}

	lockConn, acquired, err := acquireStartupLock(ctx, db)
	if err != nil {
		fatal(logger, "failed to acquire startup lock", err)
	}
	if acquired {
		logger.Info("startup lock acquired; running leader initialization")
		if err := seedCatalogs(ctx, db, logger); err != nil {
			fatal(logger, "catalog seeding failed", err)
		}
		defer lockConn.Close()
	} else {
		logger.Info("startup lock held by another instance; skipping leader-only initialization")
	}

	if err := LoadEconomySettings(ctx, db, &cfg.Economy); err != nil {
		logger.Warn("failed to load economy settings", "error", err)
	}
	if err := cfg.Economy.Validate(); err != nil {
		fatal(logger, "economy settings rejected", err)
	}

	flags := loadFeatureFlags()
	logger.Info("feature flags", "auto_income", flags.AutoIncome, "offline_earnings", flags.OfflineEarnings, "task_progress", flags.TaskProgress)

	// Last-active marker
	var activity ActivityStore = &pgActivity{db: db}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fatal(logger, "invalid REDIS_URL", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			fatal(logger, "failed to ping redis", err)
		}
		activity = newRedisActivity(client)
		logger.Info("last-active markers stored in redis")
	}

	// Task progress
	var progress TaskProgress = discardProgress{}
	if flags.TaskProgress {
		tasks := newPGTaskProgress(db, systemClock{}, logger)
		if err := tasks.Refresh(ctx); err != nil {
			logger.Warn("failed to load task objectives", "error", err)
		}
		go tasks.refreshLoop(ctx, cfg.Economy.TaskReloadInterval)
		progress = tasks
	}
	queue := NewEventQueue(progress, cfg.Economy.ProgressQueueSize, cfg.Economy.ProgressTimeout, logger)
	queue.Start(cfg.Economy.ProgressWorkers)

	store := newPGStore(db)
	violations := &pgViolationLog{db: db}
	engine := NewEngine(cfg.Economy, EngineDeps{
		Store:      store,
		Ownership:  &pgOwnership{db: db},
		Activity:   activity,
		Progress:   queue,
		Violations: violations,
		Clock:      systemClock{},
		Flags:      flags,
		Logger:     logger,
	})
	logger.Warn("energy, boost and rate-limit caches are process local; run one instance per player shard or accept stale reads until the next sync",
		"energy_sync_interval", cfg.Economy.EnergySyncInterval.String())

	startJanitor(ctx, engine, cfg.Economy.JanitorInterval, cfg.Economy.IdleEviction, logger)

	// HTTP server
	srv := &server{
		engine:     engine,
		db:         db,
		board:      store,
		violations: violations,
		logger:     logger,
		maxBody:    64 << 10,
	}
	handler := newRouter(srv, NewIdentity(cfg.JWTSecret), NewGateway(engine, cfg.AllowedOrigins, logger), cfg.ServiceKey)

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(logger, "server failed", err)
	}

	queue.Close()
	logger.Info("stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}
