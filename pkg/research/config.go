package research

import "time"

// MaxFollowUpQueries bounds the follow-up queries requested per iteration.
const MaxFollowUpQueries = 3

// Config holds the loop budget and the sufficiency thresholds.
type Config struct {
	MaxIterations    int
	URLsPerIteration int
	SearchResults    int
	FollowUpQueries  int `validate:"min=0,max=3"`
	ParallelFetches  int

	// Fallback evaluation: sufficient when both counts are reached.
	MinEntities        int
	MinRelationships   int
	FallbackConfidence float64

	// Coverage check against the store before any search: sufficient when
	// either count is reached.
	CoverageMinEntities      int
	CoverageMinRelationships int

	EnableEntityExpansion       bool
	EnableRelationshipInference bool

	TopEntities       int
	ReportLanguage    string
	ReportTemperature float64
	ReportMaxTokens   int
	CallTimeout       time.Duration
}

// DefaultConfig returns the standard budget: three iterations of five URLs.
func DefaultConfig() Config {
	return Config{
		MaxIterations:               3,
		URLsPerIteration:            5,
		SearchResults:               5,
		FollowUpQueries:             3,
		ParallelFetches:             5,
		MinEntities:                 5,
		MinRelationships:            3,
		FallbackConfidence:          0.6,
		CoverageMinEntities:         3,
		CoverageMinRelationships:    2,
		EnableEntityExpansion:       true,
		EnableRelationshipInference: true,
		TopEntities:                 20,
		ReportLanguage:              "Traditional Chinese (zh-tw)",
		ReportTemperature:           0.7,
		ReportMaxTokens:             2000,
		CallTimeout:                 2 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultConfig. Boolean switches are
// taken as given.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.URLsPerIteration <= 0 {
		c.URLsPerIteration = d.URLsPerIteration
	}
	if c.SearchResults <= 0 {
		c.SearchResults = d.SearchResults
	}
	if c.FollowUpQueries <= 0 {
		c.FollowUpQueries = d.FollowUpQueries
	}
	c.FollowUpQueries = min(c.FollowUpQueries, MaxFollowUpQueries)
	if c.ParallelFetches <= 0 {
		c.ParallelFetches = d.ParallelFetches
	}
	if c.MinEntities <= 0 {
		c.MinEntities = d.MinEntities
	}
	if c.MinRelationships <= 0 {
		c.MinRelationships = d.MinRelationships
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = d.FallbackConfidence
	}
	if c.CoverageMinEntities <= 0 {
		c.CoverageMinEntities = d.CoverageMinEntities
	}
	if c.CoverageMinRelationships <= 0 {
		c.CoverageMinRelationships = d.CoverageMinRelationships
	}
	if c.TopEntities <= 0 {
		c.TopEntities = d.TopEntities
	}
	if c.ReportLanguage == "" {
		c.ReportLanguage = d.ReportLanguage
	}
	if c.ReportTemperature <= 0 {
		c.ReportTemperature = d.ReportTemperature
	}
	if c.ReportMaxTokens <= 0 {
		c.ReportMaxTokens = d.ReportMaxTokens
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}
