package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bookan/internal/util"
	"bookan/services/bookan/internal/app"
	"bookan/services/bookan/internal/config"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	searchLatency, err := config.ParseSearchLatency(cfg.SearchLatency)
	if err != nil {
		log.Fatalf("failed to parse search latency: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	appCore, err := app.New(app.Config{
		KVBackend:           cfg.KVBackend,
		RedisAddr:           cfg.RedisAddr,
		RedisPassword:       cfg.RedisPassword,
		DatabaseURL:         cfg.DatabaseURL,
		SessionSecret:       cfg.SessionSecret,
		SessionTTL:          sessionTTL,
		VerifyCredentials:   cfg.VerifyCredentials,
		SearchLatency:       searchLatency,
		DueSoonDays:         cfg.DueSoonDays,
		LoanRequestsPerHour: cfg.LoanRequestsPerHour,
		MessagesPerMinute:   cfg.MessagesPerMinute,
		MinioEndpoint:       cfg.MinioEndpoint,
		MinioAccessKey:      cfg.MinioAccessKey,
		MinioSecretKey:      cfg.MinioSecretKey,
		MinioBucket:         cfg.MinioBucket,
		MinioUseSSL:         cfg.MinioUseSSL,
		AMQPURL:             cfg.AMQPURL,
		AMQPExchange:        cfg.AMQPExchange,
		EventStream:         cfg.EventStream,
		Logger:              logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = util.WithRequestID(ctx, logger, "")

	if cfg.SeedDemoCatalog {
		if _, err := appCore.SeedDemoCatalog(ctx); err != nil {
			logger.Error("seed demo catalog", "err", err)
		}
	}

	snapshot := map[string]any{"catalog": appCore.Catalog.ListAll()}
	principal, ok, err := appCore.Session.Restore(ctx)
	switch {
	case err != nil:
		logger.Error("restore session", "err", err)
	case ok:
		overview, err := appCore.Overview(ctx, principal)
		if err != nil {
			logger.Error("build overview", "err", err)
		} else {
			snapshot["overview"] = overview
		}
	default:
		logger.Info("no persisted session")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		logger.Error("write snapshot", "err", err)
		os.Exit(1)
	}
}
