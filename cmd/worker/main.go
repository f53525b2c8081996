// The worker binary runs the background side of the engine: the
// periodic log processor batch and the daily inactivity/birthday sweep.
// Deployments that drive batches through /cron/process-logs instead can
// run it with AUTOMATION_POLL_DISABLED=1 and keep only the sweep.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/beaconpage/lifecycle-engine/internal/automation"
	"github.com/beaconpage/lifecycle-engine/internal/config"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/distlock"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/logger"
	"github.com/beaconpage/lifecycle-engine/internal/render"
	"github.com/beaconpage/lifecycle-engine/internal/repository/postgres"
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

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("database open failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("database ping failed", "error", err.Error())
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, using pg advisory locks", "error", err.Error())
			redisClient = nil
		}
	}

	ruleRepo := postgres.NewRuleRepo(db)
	logRepo := postgres.NewLogRepo(db)
	customerRepo := postgres.NewCustomerRepo(db)

	send := sender.NewRouter(
		sender.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region, cfg.SES.FromEmail),
		sender.NewLineSender(cfg.Line.ChannelToken),
	)
	lock := distlock.NewLock(redisClient, db, automation.ProcessLockKey, automation.ProcessLockTTL)
	processor := automation.NewProcessor(ruleRepo, logRepo, customerRepo, render.NewEngine(), send, lock)
	sweeper := automation.NewSweeper(ruleRepo, logRepo, customerRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollInterval := time.Duration(cfg.Automation.PollIntervalSeconds) * time.Second
	if os.Getenv("AUTOMATION_POLL_DISABLED") == "" {
		go runProcessorLoop(ctx, processor, pollInterval, cfg.Automation.BatchLimit)
	}
	go runSweepLoop(ctx, sweeper, cfg.Automation.SweepHourUTC)

	logger.Info("worker started",
		"poll_interval", pollInterval.String(), "batch_limit", cfg.Automation.BatchLimit)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("worker stopping")
	cancel()
}

func runProcessorLoop(ctx context.Context, processor *automation.Processor, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := processor.ProcessBatch(ctx, time.Now(), limit); err != nil {
				logger.Error("log batch failed", "error", err.Error())
			}
		}
	}
}

// runSweepLoop fires the sweep once per day at the configured UTC hour.
func runSweepLoop(ctx context.Context, sweeper *automation.Sweeper, hourUTC int) {
	for {
		next := nextSweepTime(time.Now().UTC(), hourUTC)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			if err := sweeper.Run(ctx); err != nil {
				logger.Error("sweep failed", "error", err.Error())
			}
		}
	}
}

func nextSweepTime(now time.Time, hourUTC int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
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
