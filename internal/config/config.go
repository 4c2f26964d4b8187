// Package config reads the service configuration from the environment once
// at start-up. Components receive the parts they need as plain structs.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator"

	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/research"
)

type AIConfig struct {
	Adapter     string  `validate:"required,oneof=openai ollama"`
	Model       string  `validate:"required"`
	BaseURL     string  `validate:"omitempty,url"`
	APIKey      string
	Temperature float64 `validate:"min=0,max=2"`
	MaxParallel int64   `validate:"min=1"`
}

type GraphConfig struct {
	ParallelDocuments         int           `validate:"min=1"`
	ParallelAiRequests        int           `validate:"min=1"`
	DocumentTimeout           time.Duration `validate:"min=1"`
	CallTimeout               time.Duration `validate:"min=1"`
	MaxRetries                int           `validate:"min=1"`
	RetryDelay                time.Duration
	DisableRelationshipMining bool
	DisableEnhancement        bool
}

type StoreConfig struct {
	Backend     string `validate:"required,oneof=memory postgres sqlite"`
	DatabaseURL string
	SQLitePath  string
	Migrate     bool
}

type SearchConfig struct {
	Providers         []string `validate:"min=1,dive,oneof=tavily brave duckduckgo"`
	TavilyKey         string
	BraveKey          string
	RequestsPerSecond float64 `validate:"min=0"`
	RedisURL          string
	CacheTTL          time.Duration
}

type FetchConfig struct {
	UserAgent  string
	MaxChars   int           `validate:"min=100"`
	MaxTries   int           `validate:"min=1"`
	RetryDelay time.Duration `validate:"min=0"`
	Timeout    time.Duration `validate:"min=1"`
}

type QueueConfig struct {
	URL        string
	MaxRetries int `validate:"min=0"`
}

type S3Config struct {
	Bucket         string
	Endpoint       string
	PublicEndpoint string
	Region         string
	AccessKey      string
	SecretKey      string
}

type AuthConfig struct {
	JWKSURL   string `validate:"omitempty,url"`
	MasterKey string
}

type Config struct {
	Debug bool
	Port  string `validate:"required,numeric"`

	AI       AIConfig
	Graph    GraphConfig
	Store    StoreConfig
	Search   SearchConfig
	Fetch    FetchConfig
	Queue    QueueConfig
	S3       S3Config
	Auth     AuthConfig
	Research research.Config
}

// Load assembles the Config from environment variables and validates it.
func Load() (Config, error) {
	r := research.DefaultConfig()
	r.MaxIterations = util.GetEnvInt("RESEARCH_MAX_ITERATIONS", r.MaxIterations)
	r.URLsPerIteration = util.GetEnvInt("RESEARCH_URLS_PER_ITERATION", r.URLsPerIteration)
	r.SearchResults = util.GetEnvInt("SEARCH_MAX_RESULTS", r.SearchResults)
	r.FollowUpQueries = util.GetEnvInt("RESEARCH_FOLLOW_UP_QUERIES", r.FollowUpQueries)
	r.ParallelFetches = util.GetEnvInt("FETCH_PARALLEL", r.ParallelFetches)
	r.MinEntities = util.GetEnvInt("MIN_ENTITIES_FALLBACK", r.MinEntities)
	r.MinRelationships = util.GetEnvInt("MIN_RELATIONSHIPS_FALLBACK", r.MinRelationships)
	r.CoverageMinEntities = util.GetEnvInt("COVERAGE_MIN_ENTITIES", r.CoverageMinEntities)
	r.CoverageMinRelationships = util.GetEnvInt("COVERAGE_MIN_RELATIONSHIPS", r.CoverageMinRelationships)
	r.EnableEntityExpansion = util.GetEnvBool("ENABLE_ENTITY_EXPANSION", r.EnableEntityExpansion)
	r.EnableRelationshipInference = util.GetEnvBool("ENABLE_RELATIONSHIP_INFERENCE", r.EnableRelationshipInference)
	r.TopEntities = util.GetEnvInt("REPORT_TOP_ENTITIES", r.TopEntities)
	r.ReportLanguage = util.GetEnvString("REPORT_LANGUAGE", r.ReportLanguage)
	r.CallTimeout = util.GetEnvDuration("AI_TIMEOUT", r.CallTimeout)

	cfg := Config{
		Debug: util.GetEnvBool("DEBUG", false),
		Port:  util.GetEnvString("PORT", "8080"),
		AI: AIConfig{
			Adapter:     util.GetEnvString("AI_ADAPTER", "openai"),
			Model:       util.GetEnv("AI_CHAT_MODEL"),
			BaseURL:     util.GetEnv("AI_CHAT_URL"),
			APIKey:      util.GetEnv("AI_CHAT_KEY"),
			Temperature: util.GetEnvNumeric("AI_TEMPERATURE", 0.3),
			MaxParallel: int64(util.GetEnvInt("AI_PARALLEL_REQ", 8)),
		},
		Graph: GraphConfig{
			ParallelDocuments:         util.GetEnvInt("EXTRACT_PARALLEL_DOCUMENTS", 5),
			ParallelAiRequests:        util.GetEnvInt("EXTRACT_PARALLEL_REQUESTS", 5),
			DocumentTimeout:           util.GetEnvDuration("EXTRACT_DOCUMENT_TIMEOUT", 180*time.Second),
			CallTimeout:               util.GetEnvDuration("AI_TIMEOUT", 60*time.Second),
			MaxRetries:                util.GetEnvInt("AI_MAX_RETRIES", 3),
			RetryDelay:                util.GetEnvDuration("AI_RETRY_DELAY", time.Second),
			DisableRelationshipMining: util.GetEnvBool("DISABLE_RELATIONSHIP_MINING", false),
			DisableEnhancement:        util.GetEnvBool("DISABLE_ENTITY_ENHANCEMENT", false),
		},
		Store: StoreConfig{
			Backend:     util.GetEnvString("STORE_BACKEND", "memory"),
			DatabaseURL: util.GetEnv("DATABASE_URL"),
			SQLitePath:  util.GetEnvString("SQLITE_PATH", "data/graph.db"),
			Migrate:     util.GetEnvBool("DATABASE_MIGRATE", true),
		},
		Search: SearchConfig{
			Providers:         util.GetEnvList("SEARCH_PROVIDERS", defaultProviders()),
			TavilyKey:         util.GetEnv("TAVILY_API_KEY"),
			BraveKey:          util.GetEnv("BRAVE_API_KEY"),
			RequestsPerSecond: util.GetEnvNumeric("SEARCH_RPS", 1),
			RedisURL:          util.GetEnv("REDIS_URL"),
			CacheTTL:          util.GetEnvDuration("SEARCH_CACHE_TTL", 6*time.Hour),
		},
		Fetch: FetchConfig{
			UserAgent:  util.GetEnvString("FETCH_USER_AGENT", "market-analysis-bot/1.0"),
			MaxChars:   util.GetEnvInt("FETCH_MAX_CHARS", 5000),
			MaxTries:   util.GetEnvInt("FETCH_MAX_TRIES", 3),
			RetryDelay: util.GetEnvDuration("FETCH_RETRY_DELAY", time.Second),
			Timeout:    util.GetEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		},
		Queue: QueueConfig{
			URL:        util.GetEnv("RABBITMQ_URL"),
			MaxRetries: util.GetEnvInt("QUEUE_MAX_RETRIES", 5),
		},
		S3: S3Config{
			Bucket:         util.GetEnv("AWS_BUCKET"),
			Endpoint:       util.GetEnv("AWS_ENDPOINT"),
			PublicEndpoint: util.GetEnv("AWS_PUBLIC_ENDPOINT"),
			Region:         util.GetEnvString("AWS_REGION", "us-east-1"),
			AccessKey:      util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey:      util.GetEnv("AWS_SECRET_KEY"),
		},
		Auth: AuthConfig{
			JWKSURL:   util.GetEnv("AUTH_JWKS_URL"),
			MasterKey: util.GetEnv("MASTER_USER_KEY"),
		},
		Research: r,
	}
	if cfg.Queue.URL == "" {
		if host := util.GetEnv("RABBITMQ_HOST"); host != "" {
			cfg.Queue.URL = fmt.Sprintf("amqp://%s:%s@%s:%s/",
				util.GetEnv("RABBITMQ_USER"),
				util.GetEnv("RABBITMQ_PASSWORD"),
				host,
				util.GetEnvString("RABBITMQ_PORT", "5672"),
			)
		}
	}

	return cfg, cfg.Validate()
}

// defaultProviders puts Tavily first when a key is configured and always
// keeps DuckDuckGo as the keyless secondary.
func defaultProviders() []string {
	if util.GetEnv("TAVILY_API_KEY") != "" {
		return []string{"tavily", "duckduckgo"}
	}
	return []string{"duckduckgo"}
}

var validate = validator.New()

// Validate checks field constraints and the rules that span fields.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var errs []error
	switch c.Store.Backend {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires DATABASE_URL"))
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("STORE_BACKEND=sqlite requires SQLITE_PATH"))
		}
	}
	for _, p := range c.Search.Providers {
		switch {
		case p == "tavily" && c.Search.TavilyKey == "":
			errs = append(errs, errors.New("search provider tavily requires TAVILY_API_KEY"))
		case p == "brave" && c.Search.BraveKey == "":
			errs = append(errs, errors.New("search provider brave requires BRAVE_API_KEY"))
		}
	}
	if c.AI.Adapter == "openai" && c.AI.APIKey == "" && c.AI.BaseURL == "" {
		errs = append(errs, errors.New("AI_ADAPTER=openai requires AI_CHAT_KEY or AI_CHAT_URL"))
	}
	return errors.Join(errs...)
}
