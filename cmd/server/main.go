package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/beaconpage/lifecycle-engine/internal/api"
	"github.com/beaconpage/lifecycle-engine/internal/automation"
	"github.com/beaconpage/lifecycle-engine/internal/config"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/distlock"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/logger"
	"github.com/beaconpage/lifecycle-engine/internal/render"
	"github.com/beaconpage/lifecycle-engine/internal/repository/postgres"
	"github.com/beaconpage/lifecycle-engine/internal/segments"
	"github.com/beaconpage/lifecycle-engine/internal/sender"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("config load failed", "path", configPath, "error", err.Error())
		os.Exit(1)
	}
	applyLogLevel(cfg)

	db, err := openDB(cfg)
	if err != nil {
		logger.Error("database connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without it", "error", err.Error())
			redisClient = nil
		}
	}

	segmentRepo := postgres.NewSegmentRepo(db)
	customerRepo := postgres.NewCustomerRepo(db)
	ruleRepo := postgres.NewRuleRepo(db)
	logRepo := postgres.NewLogRepo(db)

	segSvc := segments.NewService(segmentRepo, customerRepo, redisClient)
	segSvc.SetScanLimit(cfg.Segments.ScanLimit)

	ruleSvc := automation.NewRuleService(ruleRepo, logRepo)

	send := sender.NewRouter(
		sender.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region, cfg.SES.FromEmail),
		sender.NewLineSender(cfg.Line.ChannelToken),
	)
	lock := distlock.NewLock(redisClient, db, automation.ProcessLockKey, automation.ProcessLockTTL)
	processor := automation.NewProcessor(ruleRepo, logRepo, customerRepo, render.NewEngine(), send, lock)

	dispatcher := automation.NewDispatcher(ruleRepo, logRepo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	handlers := api.NewHandlers(segSvc, ruleSvc, processor, cfg.Cron.Secret, cfg.Automation.BatchLimit)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handlers.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err.Error())
	}
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func applyLogLevel(cfg *config.Config) {
	switch cfg.Logging.Level {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}
}
