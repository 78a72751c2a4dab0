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

	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/mailing"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("load config failed", "error", err.Error())
		os.Exit(1)
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		logger.Error("database connection failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	sender, fromName, fromEmail := buildSender(cfg)

	pool := worker.NewDeliveryWorkerPool(db, sender, cfg.Worker.NumWorkers, cfg.Worker.PollInterval())
	pool.SetFrom(fromName, fromEmail)
	pool.SetRenderer(mailing.NewTemplateService())

	if cfg.Redis.Addr != "" && cfg.Worker.SendsPerSecond > 0 {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		pool.SetRateLimiter(worker.NewRateLimiter(redisClient, cfg.Worker.SendsPerSecond))
		logger.Info("send rate limiter enabled", "sends_per_second", cfg.Worker.SendsPerSecond)
	}

	pool.Start()
	logger.Info("delivery worker pool running", "num_workers", cfg.Worker.NumWorkers)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker pool")
	pool.Stop()
	logger.Info("worker stopped", "stats", pool.Stats())
}

// buildSender picks the configured email gateway. SES wins when both
// are configured; Mailgun is the fallback.
func buildSender(cfg *config.Config) (worker.EmailSender, string, string) {
	if cfg.SES.AccessKey != "" {
		logger.Info("using SES email gateway", "region", cfg.SES.Region)
		return worker.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region),
			cfg.SES.FromName, cfg.SES.FromEmail
	}
	if cfg.Mailgun.APIKey != "" {
		logger.Info("using Mailgun email gateway", "domain", cfg.Mailgun.Domain)
		sender := worker.NewMailgunSender(cfg.Mailgun.APIKey, cfg.Mailgun.Domain,
			cfg.Mailgun.BaseURL, time.Duration(cfg.Mailgun.TimeoutSeconds)*time.Second)
		return sender, cfg.Mailgun.FromName, cfg.Mailgun.FromEmail
	}

	logger.Error("no email gateway configured (set AWS_SES_ACCESS_KEY or MAILGUN_API_KEY)")
	os.Exit(1)
	return nil, "", ""
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
