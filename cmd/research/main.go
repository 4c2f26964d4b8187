// Command research runs one research session from the command line and
// prints the report, or the full result with -json.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yt110010111/market-analysis-LLM/internal/app"
	"github.com/yt110010111/market-analysis-LLM/internal/config"
	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger/console"
	"github.com/yt110010111/market-analysis-LLM/pkg/research"
)

func main() {
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	iterations := flag.Int("iterations", 0, "override RESEARCH_MAX_ITERATIONS")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: research [-json] [-iterations n] <query>")
		os.Exit(2)
	}

	util.LoadEnv()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}
	if *iterations > 0 {
		cfg.Research.MaxIterations = *iterations
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build pipeline", "err", err)
	}
	defer a.Close()

	res := a.Research.Run(ctx, query)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			logger.Error("Failed to encode result", "err", err)
		}
	} else {
		fmt.Println(res.Report)
	}

	if res.Status == research.StatusError {
		a.Close()
		os.Exit(1)
	}
}
