package graph

import (
	"testing"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
)

func TestDedupeEntitiesCollapsesNormalizedNames(t *testing.T) {
	raw := []common.Entity{
		{Name: "OpenAI, Inc.", Type: common.TypeUnclassified, Description: "short", Importance: common.ImportanceLow,
			Sources: []common.Source{{Title: "a", URL: "https://a"}}, KeyFacts: []string{"founded 2015"}},
		{Name: "openai inc", Type: "organization", Description: "a much longer description", Importance: common.ImportanceHigh,
			Sources: []common.Source{{Title: "b", URL: "https://b"}}, KeyFacts: []string{"founded 2015", "makes GPT"}},
		{Name: "OpenAI", Sources: []common.Source{{Title: "a", URL: "https://a"}}},
		{Name: "X"},
		{Name: "Anthropic", Type: "organization"},
	}

	got := DedupeEntities(raw)
	if len(got) != 2 {
		t.Fatalf("DedupeEntities() returned %d entities, want 2: %+v", len(got), got)
	}

	e := got[0]
	if e.Name != "OpenAI, Inc." {
		t.Errorf("Name = %q, want first-seen display name", e.Name)
	}
	if e.Type != "organization" {
		t.Errorf("Type = %q, want first classified type", e.Type)
	}
	if e.Description != "a much longer description" {
		t.Errorf("Description = %q", e.Description)
	}
	if e.Importance != common.ImportanceHigh {
		t.Errorf("Importance = %q", e.Importance)
	}
	if len(e.Sources) != 2 {
		t.Errorf("Sources = %v, want 2 unique", e.Sources)
	}
	if len(e.KeyFacts) != 2 {
		t.Errorf("KeyFacts = %v, want 2 unique", e.KeyFacts)
	}
	if got[1].Name != "Anthropic" || got[1].Importance != common.ImportanceMedium {
		t.Errorf("second entity = %+v", got[1])
	}

	if raw[0].Description != "short" || len(raw[0].Sources) != 1 {
		t.Errorf("input was modified: %+v", raw[0])
	}
}

func TestDedupeEntitiesInferredOnlyIfAllInferred(t *testing.T) {
	got := DedupeEntities([]common.Entity{
		{Name: "Tesla", Inferred: true},
		{Name: "TESLA", Inferred: false},
		{Name: "BYD", Inferred: true},
	})
	if got[0].Inferred {
		t.Errorf("Tesla should not be inferred once extracted")
	}
	if !got[1].Inferred {
		t.Errorf("BYD should stay inferred")
	}
}

func TestDedupeRelationshipsSymmetry(t *testing.T) {
	tests := []struct {
		name string
		raw  []common.Relationship
		want int
	}{
		{
			name: "same relation both directions",
			raw: []common.Relationship{
				{Source: "A Corp", Target: "B", Relation: "competes_with"},
				{Source: "B", Target: "A", Relation: "competes_with"},
			},
			want: 1,
		},
		{
			name: "reversed order",
			raw: []common.Relationship{
				{Source: "B", Target: "A", Relation: "competes_with"},
				{Source: "A", Target: "B", Relation: "Competes_With"},
			},
			want: 1,
		},
		{
			name: "mapped reverse relation",
			raw: []common.Relationship{
				{Source: "Jane Lin", Target: "Acme", Relation: "lead"},
				{Source: "Acme", Target: "Jane Lin", Relation: "led_by"},
			},
			want: 1,
		},
		{
			name: "different relations are kept",
			raw: []common.Relationship{
				{Source: "A", Target: "B", Relation: "invest"},
				{Source: "A", Target: "B", Relation: "partners_with"},
			},
			want: 2,
		},
		{
			name: "self loops and empty endpoints are dropped",
			raw: []common.Relationship{
				{Source: "OpenAI", Target: "OpenAI Inc.", Relation: "related_to"},
				{Source: "", Target: "B", Relation: "use"},
				{Source: "A", Target: "B", Relation: ""},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupeRelationships(tt.raw); len(got) != tt.want {
				t.Fatalf("DedupeRelationships() = %d edges, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestDedupeRelationshipsFoldsSuppressed(t *testing.T) {
	got := DedupeRelationships([]common.Relationship{
		{Source: "A", Target: "B", Relation: "invest", Strength: common.StrengthWeak, Description: "x",
			Sources: []common.Source{{URL: "https://1"}}},
		{Source: "B", Target: "A", Relation: "invested_by", Strength: common.StrengthStrong, Description: "longer text",
			Sources: []common.Source{{URL: "https://2"}}},
	})
	if len(got) != 1 {
		t.Fatalf("got %d edges", len(got))
	}
	r := got[0]
	if r.Source != "A" || r.Relation != "invest" {
		t.Errorf("kept edge = %+v, want the first one", r)
	}
	if r.Strength != common.StrengthStrong || r.Description != "longer text" || len(r.Sources) != 2 {
		t.Errorf("suppressed record not folded: %+v", r)
	}
}

func TestReverseRelation(t *testing.T) {
	tests := map[string]string{
		"lead":          "led_by",
		"led_by":        "lead",
		"acquired_by":   "acquire",
		"founded":       "founded_by",
		"competes_with": "competes_with",
		" USE ":         "used_by",
	}
	for in, want := range tests {
		if got := ReverseRelation(in); got != want {
			t.Errorf("ReverseRelation(%q) = %q, want %q", in, got, want)
		}
	}
}
