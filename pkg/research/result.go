package research

import (
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusNoData    Status = "no_data"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// StopReason tells why the loop ended.
type StopReason string

const (
	StopExistingCoverage StopReason = "existing_coverage"
	StopSufficient       StopReason = "sufficient"
	StopBudgetExhausted  StopReason = "budget_exhausted"
	StopCancelled        StopReason = "cancelled"
	StopError            StopReason = "error"
	StopEmptyInput       StopReason = "empty_input"
)

// Result is the outcome of one research session.
type Result struct {
	SessionID      string                `json:"session_id"`
	Query          string                `json:"query"`
	Status         Status                `json:"status"`
	StopReason     StopReason            `json:"stop_reason"`
	Report         string                `json:"report"`
	ReportFallback bool                  `json:"report_fallback"`
	Error          string                `json:"error,omitempty"`
	Entities       []common.Entity       `json:"entities"`
	Relationships  []common.Relationship `json:"relationships"`
	Sources        []common.Source       `json:"sources"`
	Verdict        common.Verdict        `json:"verdict"`
	Stats          Stats                 `json:"stats"`
	Iterations     []IterationStats      `json:"iterations"`
	StartedAt      time.Time             `json:"started_at"`
	Duration       time.Duration         `json:"duration"`
}

type Stats struct {
	Iterations         int     `json:"iterations"`
	DocumentsFetched   int     `json:"documents_fetched"`
	DocumentsProcessed int     `json:"documents_processed"`
	EntityCount        int     `json:"entity_count"`
	RelationshipCount  int     `json:"relationship_count"`
	CoverageScore      float64 `json:"coverage_score"`
}

// IterationStats records one pass of Expand, Search, Extract and Store.
type IterationStats struct {
	Iteration          int           `json:"iteration"`
	Queries            []string      `json:"queries"`
	URLs               []string      `json:"urls"`
	DocumentsFetched   int           `json:"documents_fetched"`
	DocumentsProcessed int           `json:"documents_processed"`
	NewEntities        int           `json:"new_entities"`
	NewRelationships   int           `json:"new_relationships"`
	Duration           time.Duration `json:"duration"`
	Error              string        `json:"error,omitempty"`
}
