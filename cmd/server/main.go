package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MicahParks/keyfunc/v3"

	"github.com/yt110010111/market-analysis-LLM/internal/app"
	"github.com/yt110010111/market-analysis-LLM/internal/config"
	"github.com/yt110010111/market-analysis-LLM/internal/queue"
	"github.com/yt110010111/market-analysis-LLM/internal/server"
	mid "github.com/yt110010111/market-analysis-LLM/internal/server/middleware"
	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Format: util.GetEnv("LOG_FORMAT"),
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build pipeline", "err", err)
	}
	defer a.Close()

	srvApp := &mid.App{
		Research:     a.Research,
		Store:        a.Store,
		Archive:      a.Archive,
		MasterAPIKey: cfg.Auth.MasterKey,
	}

	if cfg.Auth.JWKSURL != "" {
		k, err := keyfunc.NewDefault([]string{cfg.Auth.JWKSURL})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		srvApp.Key = k
	}

	if cfg.Queue.URL != "" {
		conn, err := queue.Init(cfg.Queue.URL)
		if err != nil {
			logger.Fatal("Failed to connect to queue", "err", err)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()

		if err := queue.SetupQueues(ch, []string{queue.ResearchQueue}); err != nil {
			logger.Fatal("Failed to declare queues", "err", err)
		}
		srvApp.Queue = ch
	} else {
		logger.Info("No RabbitMQ configured, async analysis disabled")
	}

	if err := server.Run(ctx, server.New(srvApp), cfg.Port); err != nil {
		logger.Fatal("Server stopped", "err", err)
	}
}
