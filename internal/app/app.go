// Package app wires the research pipeline from a config.Config. Both the
// HTTP server and the queue worker start from New.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yt110010111/market-analysis-LLM/internal/config"
	"github.com/yt110010111/market-analysis-LLM/internal/storage"
	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	oai "github.com/yt110010111/market-analysis-LLM/pkg/ai/ollama"
	gai "github.com/yt110010111/market-analysis-LLM/pkg/ai/openai"
	"github.com/yt110010111/market-analysis-LLM/pkg/graph"
	"github.com/yt110010111/market-analysis-LLM/pkg/leaselock"
	"github.com/yt110010111/market-analysis-LLM/pkg/loader"
	"github.com/yt110010111/market-analysis-LLM/pkg/loader/web"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/research"
	"github.com/yt110010111/market-analysis-LLM/pkg/search"
	"github.com/yt110010111/market-analysis-LLM/pkg/store"
	"github.com/yt110010111/market-analysis-LLM/pkg/store/memory"
	pgxstore "github.com/yt110010111/market-analysis-LLM/pkg/store/pgx"
	"github.com/yt110010111/market-analysis-LLM/pkg/store/sqlite"
)

type App struct {
	Config   config.Config
	AI       ai.CompletionClient
	Store    store.GraphStore
	Search   search.Provider
	Fetcher  loader.Fetcher
	Research *research.Orchestrator
	Archive  storage.Archive
	Locker   leaselock.Locker

	closers []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	aiClient, err := NewAIClient(cfg.AI)
	if err != nil {
		return nil, err
	}
	a.AI = aiClient

	pool, err := a.openStore(ctx, cfg.Store)
	if err != nil {
		a.Close()
		return nil, err
	}
	if pool != nil {
		a.Locker = leaselock.New(pool)
	} else {
		a.Locker = leaselock.NewLocal()
	}

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}

	provider, closeSearch, err := NewSearch(ctx, cfg.Search, httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Search = provider
	a.closers = append(a.closers, closeSearch)

	a.Fetcher = web.NewWebFetcher(web.NewWebFetcherParams{
		HTTPClient: httpClient,
		UserAgent:  cfg.Fetch.UserAgent,
		MaxChars:   cfg.Fetch.MaxChars,
		MaxTries:   cfg.Fetch.MaxTries,
		RetryDelay: cfg.Fetch.RetryDelay,
	})

	a.Archive, err = NewArchive(ctx, cfg.S3)
	if err != nil {
		a.Close()
		return nil, err
	}

	g := graph.NewGraphClient(graph.NewGraphClientParams{
		AI:                        aiClient,
		ParallelDocuments:         cfg.Graph.ParallelDocuments,
		ParallelAiRequests:        cfg.Graph.ParallelAiRequests,
		DocumentTimeout:           cfg.Graph.DocumentTimeout,
		CallTimeout:               cfg.Graph.CallTimeout,
		MaxRetries:                cfg.Graph.MaxRetries,
		RetryDelay:                cfg.Graph.RetryDelay,
		DisableRelationshipMining: cfg.Graph.DisableRelationshipMining,
		DisableEnhancement:        cfg.Graph.DisableEnhancement,
	})

	a.Research, err = research.NewOrchestrator(research.NewOrchestratorParams{
		Config:  cfg.Research,
		AI:      aiClient,
		Graph:   g,
		Search:  a.Search,
		Fetcher: a.Fetcher,
		Store:   a.Store,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("[App] Pipeline ready",
		"ai", cfg.AI.Adapter,
		"model", cfg.AI.Model,
		"store", cfg.Store.Backend,
		"search", provider.Name(),
	)
	return a, nil
}

// Close releases the store, the cache and the database pool in reverse
// order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func NewAIClient(cfg config.AIConfig) (ai.CompletionClient, error) {
	switch cfg.Adapter {
	case "ollama":
		client, err := oai.NewClient(oai.NewClientParams{
			Model:                 cfg.Model,
			Temperature:           cfg.Temperature,
			BaseURL:               cfg.BaseURL,
			ApiKey:                cfg.APIKey,
			MaxConcurrentRequests: cfg.MaxParallel,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return client, nil
	case "openai", "":
		return gai.NewClient(gai.NewClientParams{
			Model:                 cfg.Model,
			Temperature:           cfg.Temperature,
			BaseURL:               cfg.BaseURL,
			ApiKey:                cfg.APIKey,
			MaxConcurrentRequests: cfg.MaxParallel,
		}), nil
	}
	return nil, fmt.Errorf("unknown ai adapter %q", cfg.Adapter)
}

func (a *App) openStore(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	switch cfg.Backend {
	case "postgres":
		if cfg.Migrate {
			if err := pgxstore.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("unable to reach database: %w", err)
		}
		a.Store = pgxstore.NewGraphDBStorageWithConnection(pool, pgxstore.WithCloser(pool.Close))
		a.closers = append(a.closers, func() { _ = a.Store.Close() })
		return pool, nil
	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.Store = s
		a.closers = append(a.closers, func() { _ = s.Close() })
		return nil, nil
	default:
		a.Store = memory.New()
		return nil, nil
	}
}

// NewSearch builds the provider chain in the configured order and puts a
// redis cache in front of it when REDIS_URL is set. A redis outage at
// start-up disables the cache instead of failing.
func NewSearch(ctx context.Context, cfg config.SearchConfig, httpClient *http.Client) (search.Provider, func(), error) {
	params := search.HTTPParams{
		HTTPClient:        httpClient,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}

	var providers []search.Provider
	for _, name := range cfg.Providers {
		switch name {
		case "tavily":
			providers = append(providers, search.NewTavily(cfg.TavilyKey, params))
		case "brave":
			providers = append(providers, search.NewBrave(cfg.BraveKey, params))
		case "duckduckgo":
			providers = append(providers, search.NewDuckDuckGo(params))
		default:
			return nil, nil, fmt.Errorf("unknown search provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, nil, search.ErrNoProvider
	}

	var provider search.Provider = providers[0]
	if len(providers) > 1 {
		provider = search.NewMulti(providers...)
	}

	noop := func() {}
	if cfg.RedisURL == "" {
		return provider, noop, nil
	}
	rdb, err := search.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("[Search] Redis unavailable, caching disabled", "err", err)
		return provider, noop, nil
	}
	return search.NewCached(provider, rdb, cfg.CacheTTL), func() { _ = rdb.Close() }, nil
}

// NewArchive returns the S3 archive when a bucket is configured and an
// in-memory archive otherwise.
func NewArchive(ctx context.Context, cfg config.S3Config) (storage.Archive, error) {
	if cfg.Bucket == "" {
		return storage.NewMemory(), nil
	}
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewS3(storage.NewS3Params{
		Client:         client,
		Bucket:         cfg.Bucket,
		PublicEndpoint: cfg.PublicEndpoint,
	}), nil
}
