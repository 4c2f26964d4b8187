package common

import "strings"

// Importance ranks how central an entity is to the research query.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Rank orders importance values; unknown values rank with medium.
func (i Importance) Rank() int {
	switch i {
	case ImportanceHigh:
		return 3
	case ImportanceLow:
		return 1
	default:
		return 2
	}
}

// ParseImportance maps free-form model output onto an Importance,
// defaulting to medium.
func ParseImportance(s string) Importance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "高":
		return ImportanceHigh
	case "low", "低":
		return ImportanceLow
	default:
		return ImportanceMedium
	}
}

// MaxImportance returns the higher of a and b.
func MaxImportance(a, b Importance) Importance {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Strength rates the evidence behind a relationship.
type Strength string

const (
	StrengthStrong Strength = "strong"
	StrengthMedium Strength = "medium"
	StrengthWeak   Strength = "weak"
)

func (s Strength) Rank() int {
	switch s {
	case StrengthStrong:
		return 3
	case StrengthWeak:
		return 1
	default:
		return 2
	}
}

// ParseStrength maps free-form model output onto a Strength,
// defaulting to medium.
func ParseStrength(s string) Strength {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strong", "high", "強":
		return StrengthStrong
	case "weak", "low", "弱":
		return StrengthWeak
	default:
		return StrengthMedium
	}
}

// MaxStrength returns the stronger of a and b.
func MaxStrength(a, b Strength) Strength {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

const TypeUnclassified = "unclassified"

// EntityTypes lists the entity categories offered to the model.
var EntityTypes = []string{
	"organization",
	"person",
	"product",
	"technology",
	"competitor",
	"partner",
	"investor",
	"event",
	"metric",
	"location",
	"concept",
}

// RelationTypes lists the relation labels offered to the model.
var RelationTypes = []string{
	"founded",
	"founded_by",
	"lead",
	"led_by",
	"invest",
	"invested_by",
	"acquire",
	"acquired_by",
	"develop",
	"developed_by",
	"use",
	"used_by",
	"competes_with",
	"partners_with",
	"supplies",
	"located_in",
	"part_of",
	"related_to",
}

// Source is the provenance of an entity or relationship: the document it
// was extracted from.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Key identifies a source for union operations.
func (s Source) Key() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Title
}

// Entity is a knowledge graph node. One Entity exists per normalized name
// (see NormalizeKey) within a research session.
type Entity struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Description    string     `json:"description"`
	Importance     Importance `json:"importance"`
	Sources        []Source   `json:"sources"`
	KeyFacts       []string   `json:"key_facts,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`
	Inferred       bool       `json:"inferred,omitempty"`
}

// Key returns the normalized identity of the entity.
func (e Entity) Key() string {
	return NormalizeKey(e.Name)
}

// Relationship is a directed, typed edge between two entity names.
type Relationship struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Relation    string   `json:"relation"`
	Description string   `json:"description"`
	Strength    Strength `json:"strength"`
	Inferred    bool     `json:"inferred"`
	Sources     []Source `json:"sources,omitempty"`
}

// Document is fetched and cleaned web content ready for extraction.
type Document struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text"`
}

// Source returns the provenance record for the document.
func (d Document) Source() Source {
	return Source{Title: d.Title, URL: d.URL}
}

// Verdict is the sufficiency decision taken once per iteration.
type Verdict struct {
	IsSufficient   bool     `json:"is_sufficient"`
	Confidence     float64  `json:"confidence"`
	CoverageScore  float64  `json:"coverage_score"`
	MissingAspects []string `json:"missing_aspects"`
	Reason         string   `json:"reason"`
	Fallback       bool     `json:"fallback"`
}

// UnionSources appends the sources from add that are not yet in base.
// base is never shortened.
func UnionSources(base []Source, add ...Source) []Source {
	seen := make(map[string]struct{}, len(base)+len(add))
	for _, s := range base {
		seen[s.Key()] = struct{}{}
	}
	for _, s := range add {
		k := s.Key()
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		base = append(base, s)
	}
	return base
}

// LongerText returns b when it has more runes than a, otherwise a.
func LongerText(a, b string) string {
	if len([]rune(b)) > len([]rune(a)) {
		return b
	}
	return a
}
