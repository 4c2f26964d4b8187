package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yt110010111/market-analysis-LLM/internal/app"
	"github.com/yt110010111/market-analysis-LLM/internal/config"
	"github.com/yt110010111/market-analysis-LLM/internal/queue"
	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/leaselock"
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
	if cfg.Queue.URL == "" {
		logger.Fatal("Worker requires RABBITMQ_URL or RABBITMQ_HOST")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build pipeline", "err", err)
	}
	defer a.Close()

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

	processor := &queue.Processor{
		Runner:  a.Research,
		Archive: a.Archive,
		Locker:  a.Locker,
		Lease:   leaselock.Options{TTL: 10 * time.Minute, Wait: true, WaitInterval: time.Second, WaitJitter: 500 * time.Millisecond},
	}

	handler := func(ctx context.Context, body []byte) error {
		defer logMetrics(a)
		return processor.ProcessResearch(ctx, body)
	}

	logger.Info("Listening for messages", "queue", queue.ResearchQueue)
	if err := queue.Consume(ctx, ch, queue.ResearchQueue, cfg.Queue.MaxRetries, handler); err != nil {
		logger.Fatal("Consumer stopped", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}

func logMetrics(a *app.App) {
	metrics := a.AI.GetMetrics()
	d := time.Duration(metrics.DurationMs) * time.Millisecond
	logger.Info(
		"AI Metrics",
		"requests", metrics.Requests,
		"failures", metrics.Failures,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"duration", fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60),
	)
	a.AI.ResetMetrics()
}
