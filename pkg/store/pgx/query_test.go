package pgx

import (
	"context"
	"os"
	"testing"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme", "%acme%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\x`, `%c:\\x%`},
	}
	for _, tt := range tests {
		if got := likePattern(tt.in); got != tt.want {
			t.Errorf("likePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestUpsertAgainstDatabase runs only when TEST_DATABASE_URL points at a
// disposable PostgreSQL database.
func TestUpsertAgainstDatabase(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	if err := Migrate(url); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	s := NewGraphDBStorageWithConnection(pool, WithCloser(pool.Close))
	defer s.Close()

	_, _ = pool.Exec(ctx, `TRUNCATE query_entities, queries, relationships, entities`)

	e := common.Entity{
		Name:       "Acme Robotics",
		Type:       "organization",
		Importance: common.ImportanceMedium,
		Sources:    []common.Source{{URL: "https://a.example"}},
	}
	for range 2 {
		if err := s.UpsertEntity(ctx, e); err != nil {
			t.Fatalf("UpsertEntity: %v", err)
		}
	}
	e.Sources = []common.Source{{URL: "https://b.example"}}
	e.Importance = common.ImportanceHigh
	if err := s.UpsertEntity(ctx, e); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	r := common.Relationship{Source: "Jane Lin", Target: "Acme Robotics", Relation: "founded"}
	for range 2 {
		if err := s.UpsertRelationship(ctx, r); err != nil {
			t.Fatalf("UpsertRelationship: %v", err)
		}
	}
	if err := s.RecordQuery(ctx, "robotics startups", []string{"Acme Robotics"}); err != nil {
		t.Fatalf("RecordQuery: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entities != 2 || stats.Relationships != 1 || stats.Queries != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	got, err := s.QueryByKeywords(ctx, []string{"acme", "jane"})
	if err != nil {
		t.Fatalf("QueryByKeywords: %v", err)
	}
	if len(got.Entities) != 2 || len(got.Relationships) != 1 {
		t.Fatalf("subgraph = %+v", got)
	}
	acme := got.Entities[0]
	if acme.Importance != common.ImportanceHigh || len(acme.Sources) != 2 {
		t.Fatalf("acme = %+v", acme)
	}
}
