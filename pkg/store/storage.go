package store

import (
	"context"
	"errors"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
)

const (
	// DefaultEntityLimit bounds the entities returned by QueryByKeywords.
	DefaultEntityLimit = 10
	// DefaultRelationshipNames is how many matched entity names are used to
	// look up relationships.
	DefaultRelationshipNames = 20
	// DefaultRelationshipLimit bounds the relationships returned by QueryByKeywords.
	DefaultRelationshipLimit = 20
)

// ErrClosed is returned by stores that were already closed.
var ErrClosed = errors.New("store closed")

// Subgraph is the part of the stored graph matching a keyword query.
type Subgraph struct {
	Entities      []common.Entity       `json:"entities"`
	Relationships []common.Relationship `json:"relationships"`
}

// Stats counts what a GraphStore holds.
type Stats struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Queries       int `json:"queries"`
}

// GraphStore persists the knowledge graph across research sessions.
//
// Upserts are idempotent and keyed by common.NormalizeKey: writing the same
// entity twice leaves one node whose sources are the union of both writes,
// whose description is the longer one and whose importance is the maximum.
// Relationships are keyed by (source key, relation, target key).
// Implementations must be safe for concurrent use by several sessions.
type GraphStore interface {
	UpsertEntity(ctx context.Context, e common.Entity) error
	UpsertRelationship(ctx context.Context, r common.Relationship) error

	// RecordQuery links a research query to the entities it found.
	RecordQuery(ctx context.Context, query string, entityNames []string) error

	// QueryByKeywords returns entities whose name, description or type
	// contains any keyword (case-insensitive), plus the relationships among
	// them. Entities reached through a recorded query containing a keyword
	// are included too.
	QueryByKeywords(ctx context.Context, keywords []string) (Subgraph, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// MergeEntity folds e into existing using the upsert rules of GraphStore.
// The display name and type of existing win.
func MergeEntity(existing, e common.Entity) common.Entity {
	out := existing
	if out.Name == "" {
		out.Name = e.Name
	}
	if out.Type == "" || out.Type == common.TypeUnclassified {
		out.Type = e.Type
	}
	out.Description = common.LongerText(existing.Description, e.Description)
	out.Importance = common.MaxImportance(existing.Importance, e.Importance)
	out.Sources = common.UnionSources(existing.Sources, e.Sources...)
	out.KeyFacts = DedupeStrings(append(append([]string(nil), existing.KeyFacts...), e.KeyFacts...))
	out.Inferred = existing.Inferred && e.Inferred
	out.RelevanceScore = max(existing.RelevanceScore, e.RelevanceScore)
	return out
}

// MergeRelationship folds r into existing using the upsert rules of GraphStore.
func MergeRelationship(existing, r common.Relationship) common.Relationship {
	out := existing
	out.Description = common.LongerText(existing.Description, r.Description)
	out.Strength = common.MaxStrength(existing.Strength, r.Strength)
	out.Sources = common.UnionSources(existing.Sources, r.Sources...)
	out.Inferred = existing.Inferred && r.Inferred
	return out
}

// RelationshipKey identifies a stored relationship.
func RelationshipKey(r common.Relationship) string {
	return common.NormalizeKey(r.Source) + "\x00" + r.Relation + "\x00" + common.NormalizeKey(r.Target)
}
