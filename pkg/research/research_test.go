package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	"github.com/yt110010111/market-analysis-LLM/pkg/ai/aitest"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/graph"
	"github.com/yt110010111/market-analysis-LLM/pkg/loader"
	"github.com/yt110010111/market-analysis-LLM/pkg/search"
	"github.com/yt110010111/market-analysis-LLM/pkg/store/memory"
)

const (
	matchExtract  = "You are extracting **entities and relationships**"
	matchEvaluate = "You are judging whether a knowledge graph"
	matchFollowUp = "You are writing web search queries"
	matchReport   = "You are a professional researcher"
)

const acmeExtraction = `{
  "entities": [
    {"name": "Acme Robotics", "type": "organization", "description": "Robotics company founded by Jane Lin.", "importance": "high"},
    {"name": "Jane Lin", "type": "person", "description": "Founder of Acme Robotics."},
    {"name": "RoboCorp", "type": "competitor", "description": "Competitor of Acme Robotics."}
  ],
  "relationships": [
    {"source": "Jane Lin", "target": "Acme Robotics", "relation": "founded", "strength": "strong"},
    {"source": "Acme Robotics", "target": "RoboCorp", "relation": "competes_with"}
  ]
}`

const insufficientVerdict = `{"is_sufficient": false, "confidence": 0.5, "coverage_score": 40, "missing_aspects": ["market share"], "reason": "thin"}`

// slugSearch returns one result per query with a url derived from it.
type slugSearch struct {
	mu      sync.Mutex
	queries []string
	empty   bool
	onCall  func()
}

func (s *slugSearch) Name() string { return "slug" }

func (s *slugSearch) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.onCall != nil {
		s.onCall()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.empty {
		return nil, nil
	}
	slug := strings.ReplaceAll(strings.ToLower(query), " ", "-")
	return []search.Result{{Title: query, URL: "https://example.com/" + slug, Provider: "slug"}}, nil
}

func (s *slugSearch) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// acmeFetcher serves the same page for every url.
type acmeFetcher struct{}

func (acmeFetcher) Fetch(ctx context.Context, url string) (common.Document, error) {
	if err := ctx.Err(); err != nil {
		return common.Document{}, &loader.FetchError{URL: url, Err: err}
	}
	return common.Document{
		Title: "Acme Robotics overview",
		URL:   url,
		Text:  "Acme Robotics was founded by Jane Lin. Acme competes with RoboCorp.",
	}, nil
}

type fixture struct {
	fake   *aitest.FakeClient
	search *slugSearch
	store  *memory.Store
	orch   *Orchestrator
}

func newFixture(t *testing.T, fake *aitest.FakeClient, s *slugSearch) fixture {
	t.Helper()
	st := memory.New()
	cfg := DefaultConfig()
	cfg.CallTimeout = time.Second

	orch, err := NewOrchestrator(NewOrchestratorParams{
		Config: cfg,
		AI:     fake,
		Graph: graph.NewGraphClient(graph.NewGraphClientParams{
			AI:              fake,
			DocumentTimeout: 5 * time.Second,
			CallTimeout:     time.Second,
			RetryDelay:      time.Millisecond,
		}),
		Search:  s,
		Fetcher: acmeFetcher{},
		Store:   st,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return fixture{fake: fake, search: s, store: st, orch: orch}
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(NewOrchestratorParams{AI: aitest.NewFakeClient()})
	if err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}

func TestRunStopsWhenBudgetIsExhausted(t *testing.T) {
	fake := aitest.NewFakeClient().
		On(matchExtract, acmeExtraction).
		On(matchEvaluate, insufficientVerdict).
		On(matchFollowUp, "1. acme market share\n2. acme funding").
		On(matchReport, "# Acme Robotics\n\nA short report.")
	f := newFixture(t, fake, &slugSearch{})

	res := f.orch.Run(context.Background(), "Acme Robotics")

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	if res.StopReason != StopBudgetExhausted {
		t.Fatalf("stop reason = %s", res.StopReason)
	}
	if res.Stats.Iterations != 3 || len(res.Iterations) != 3 {
		t.Fatalf("iterations = %d, records = %d", res.Stats.Iterations, len(res.Iterations))
	}
	if got := fake.CallsMatching(matchEvaluate); got != 3 {
		t.Errorf("evaluate calls = %d, want 3", got)
	}
	if got := fake.CallsMatching(matchFollowUp); got != 2 {
		t.Errorf("follow-up calls = %d, want 2", got)
	}
	if res.Stats.DocumentsProcessed != 3 || res.Stats.DocumentsFetched != 3 {
		t.Errorf("documents fetched/processed = %d/%d, want 3/3", res.Stats.DocumentsFetched, res.Stats.DocumentsProcessed)
	}
	if res.ReportFallback || !strings.HasPrefix(res.Report, "# Acme Robotics") {
		t.Errorf("report = %q (fallback %v)", res.Report, res.ReportFallback)
	}

	if got := res.Iterations[1].Queries; len(got) != 2 || got[0] != "acme market share" {
		t.Errorf("second iteration queries = %v", got)
	}
	if got := res.Iterations[2].URLs; len(got) != 0 {
		t.Errorf("third iteration should find no new urls, got %v", got)
	}

	stats, err := f.store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entities < 3 || stats.Relationships < 2 || stats.Queries != 1 {
		t.Errorf("store stats = %+v", stats)
	}

	for _, e := range res.Entities {
		if e.Name == "Acme Robotics" && len(e.Sources) != 3 {
			t.Errorf("Acme Robotics sources = %v, want 3", e.Sources)
		}
	}
}

func TestRunWithoutSearchResults(t *testing.T) {
	fake := aitest.NewFakeClient()
	f := newFixture(t, fake, &slugSearch{empty: true})

	res := f.orch.Run(context.Background(), "Acme Robotics")

	if res.Status != StatusNoData {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Stats.DocumentsProcessed != 0 || res.Stats.DocumentsFetched != 0 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.StopReason != StopBudgetExhausted || res.Stats.Iterations != 3 {
		t.Errorf("stop reason = %s after %d iterations", res.StopReason, res.Stats.Iterations)
	}
	if !res.ReportFallback || !strings.Contains(res.Report, "## Overview") {
		t.Errorf("expected fallback report, got %q", res.Report)
	}
	if fake.CallsMatching(matchExtract) != 0 || fake.CallsMatching(matchReport) != 0 {
		t.Errorf("unexpected model calls: %d", len(fake.Calls()))
	}
	// every follow-up answer was unusable, so each iteration searched the query itself
	for _, q := range f.search.queries {
		if q != "Acme Robotics" {
			t.Errorf("searched %q", q)
		}
	}
}

func TestRunCompletesWhenModelAlwaysTimesOut(t *testing.T) {
	fake := aitest.NewFakeClient().FailAll(aitest.Timeout())
	f := newFixture(t, fake, &slugSearch{})

	res := f.orch.Run(context.Background(), "Acme Robotics")

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	if !res.ReportFallback || !strings.Contains(res.Report, "## Key Entities") {
		t.Fatalf("expected fallback report, got %q", res.Report)
	}
	if !res.Verdict.Fallback {
		t.Errorf("verdict should come from the count fallback: %+v", res.Verdict)
	}
	if len(res.Entities) == 0 {
		t.Error("rule-based extraction should still produce entities")
	}
	if res.StopReason != StopBudgetExhausted {
		t.Errorf("stop reason = %s", res.StopReason)
	}
}

func TestRunUsesExistingCoverage(t *testing.T) {
	fake := aitest.NewFakeClient().On(matchReport, "stored report")
	s := &slugSearch{}
	f := newFixture(t, fake, s)

	ctx := context.Background()
	for _, name := range []string{"Acme Robotics", "Acme Labs", "Acme Ventures"} {
		if err := f.store.UpsertEntity(ctx, common.Entity{Name: name, Type: "organization", Importance: common.ImportanceHigh}); err != nil {
			t.Fatal(err)
		}
	}

	res := f.orch.Run(ctx, "Acme Robotics")

	if res.StopReason != StopExistingCoverage {
		t.Fatalf("stop reason = %s", res.StopReason)
	}
	if s.calls() != 0 {
		t.Errorf("search should not run, got %d calls", s.calls())
	}
	if res.Stats.Iterations != 0 || res.Report != "stored report" || len(res.Entities) != 3 {
		t.Errorf("result = %+v", res)
	}
	if !res.Verdict.IsSufficient {
		t.Errorf("verdict = %+v", res.Verdict)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := aitest.NewFakeClient()
	f := newFixture(t, fake, &slugSearch{onCall: cancel})

	res := f.orch.Run(ctx, "Acme Robotics")

	if res.Status != StatusCancelled || res.StopReason != StopCancelled {
		t.Fatalf("status = %s, stop reason = %s", res.Status, res.StopReason)
	}
	if !res.ReportFallback || res.Report == "" {
		t.Errorf("cancelled run should still render a report")
	}
	if len(res.Iterations) != 1 {
		t.Errorf("iterations = %d", len(res.Iterations))
	}
	if fake.CallsMatching(matchReport) != 0 {
		t.Error("cancelled run should not call the model for a report")
	}
}

func TestRunEmptyQuery(t *testing.T) {
	f := newFixture(t, aitest.NewFakeClient(), &slugSearch{})
	res := f.orch.Run(context.Background(), "   ")
	if res.Status != StatusNoData || res.Error != ErrEmptyInput.Error() {
		t.Fatalf("result = %+v", res)
	}
	if res.StopReason != StopEmptyInput {
		t.Errorf("stop reason = %q", res.StopReason)
	}
	if res.Report == "" || !res.ReportFallback {
		t.Errorf("empty query should still render a fallback report, got %q", res.Report)
	}
	if !strings.Contains(res.Report, "## Conclusion") {
		t.Errorf("report is missing its conclusion:\n%s", res.Report)
	}
	if f.search.calls() != 0 {
		t.Error("empty query should not search")
	}
}

func TestConfigBoundsFollowUpQueries(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 3},
		{-2, 3},
		{1, 1},
		{3, 3},
		{10, MaxFollowUpQueries},
	}
	for _, tt := range tests {
		got := Config{FollowUpQueries: tt.in}.withDefaults().FollowUpQueries
		if got != tt.want {
			t.Errorf("FollowUpQueries %d -> %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseFollowUps(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want []string
	}{
		{"numbered", "1. ev battery market\n2) battery suppliers\n3、solid state", 3, []string{"ev battery market", "battery suppliers", "solid state"}},
		{"bullets and quotes", "- \"lithium prices\"\n* cathode makers", 3, []string{"lithium prices", "cathode makers"}},
		{"cap", "a query\nb query\nc query\nd query", 2, []string{"a query", "b query"}},
		{"short and duplicate", "ok\n\nsame query\nSame Query", 3, []string{"same query"}},
		{"nothing usable", "{}", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFollowUps(tt.in, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCoverageCheck(t *testing.T) {
	e := NewEvaluator(aitest.NewFakeClient(), DefaultConfig())
	tests := []struct {
		entities, rels int
		want           bool
	}{
		{3, 2, true},
		{3, 0, true},
		{0, 2, true},
		{2, 1, false},
		{0, 0, false},
	}
	for _, tt := range tests {
		if got := e.CoverageCheck(tt.entities, tt.rels); got != tt.want {
			t.Errorf("CoverageCheck(%d, %d) = %v, want %v", tt.entities, tt.rels, got, tt.want)
		}
	}
}

func TestFallbackVerdict(t *testing.T) {
	e := NewEvaluator(aitest.NewFakeClient(), DefaultConfig())

	v := e.Fallback(5, 3)
	if !v.IsSufficient || v.CoverageScore != 100 || len(v.MissingAspects) != 0 || !v.Fallback {
		t.Errorf("Fallback(5, 3) = %+v", v)
	}

	v = e.Fallback(2, 1)
	if v.IsSufficient || v.Confidence != 0.6 {
		t.Errorf("Fallback(2, 1) = %+v", v)
	}
	if v.CoverageScore < 36.6 || v.CoverageScore > 36.7 {
		t.Errorf("coverage = %v", v.CoverageScore)
	}
	if len(v.MissingAspects) != 1 || v.MissingAspects[0] != "need more data" {
		t.Errorf("missing = %v", v.MissingAspects)
	}

	if v := e.Fallback(40, 40); v.CoverageScore != 100 {
		t.Errorf("coverage should cap at 100, got %v", v.CoverageScore)
	}
}

func TestEvaluateClampsModelVerdict(t *testing.T) {
	fake := aitest.NewFakeClient().On(matchEvaluate,
		`{"is_sufficient": true, "confidence": 1.7, "coverage_score": 140, "missing_aspects": [" ", "pricing"], "reason": " ok "}`)
	e := NewEvaluator(fake, DefaultConfig())

	v := e.Evaluate(context.Background(), "ev batteries", []common.Entity{{Name: "CATL"}}, nil, 1)
	if v.Fallback {
		t.Fatalf("unexpected fallback: %+v", v)
	}
	if v.Confidence != 1 || v.CoverageScore != 100 || v.Reason != "ok" {
		t.Errorf("verdict = %+v", v)
	}
	if len(v.MissingAspects) != 1 || v.MissingAspects[0] != "pricing" {
		t.Errorf("missing = %v", v.MissingAspects)
	}
}

func TestEvaluateFallsBackOnGarbage(t *testing.T) {
	fake := aitest.NewFakeClient().On(matchEvaluate, "I think it is fine")
	e := NewEvaluator(fake, DefaultConfig())

	v := e.Evaluate(context.Background(), "ev batteries", []common.Entity{{Name: "CATL"}}, nil, 1)
	if !v.Fallback || v.IsSufficient {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestFallbackReportSections(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ents := []common.Entity{{Name: "CATL", Type: "organization", Description: "Battery maker."}}
	rels := []common.Relationship{{Source: "CATL", Relation: "supplies", Target: "Tesla"}}
	srcs := []common.Source{{URL: "https://example.com/catl"}}

	report := FallbackReport("ev batteries", ents, rels, srcs, now)
	for _, want := range []string{
		"# ev batteries - Research Report",
		"Generated: 2026-03-01 12:00:00 UTC",
		"## Overview",
		"- **CATL** (organization)",
		"- CATL → supplies → Tesla",
		"1. [https://example.com/catl](https://example.com/catl)",
		"## Conclusion",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	empty := FallbackReport("ev batteries", nil, nil, nil, now)
	if strings.Contains(empty, "## Key Entities") || strings.Contains(empty, "## Sources") {
		t.Errorf("empty report should skip sections:\n%s", empty)
	}
}

func TestGenerateFallsBackOnTransportError(t *testing.T) {
	fake := aitest.NewFakeClient().Fail(matchReport, aitest.Transport())
	r := NewReportGenerator(fake, DefaultConfig())

	report, fallback := r.Generate(context.Background(), "ev batteries", []common.Entity{{Name: "CATL"}}, nil, nil)
	if !fallback || !strings.Contains(report, "## Overview") {
		t.Fatalf("fallback = %v, report = %q", fallback, report)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"timeout", ai.NewTimeout(context.DeadlineExceeded), ErrTransportFailure},
		{"parse", &ai.ParseFailure{Fragment: "{", Err: errors.New("eof")}, ErrParseFailure},
		{"fetch", &loader.FetchError{URL: "https://x", Status: 503}, ErrTransportFailure},
		{"deadline", context.DeadlineExceeded, ErrTransportFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); !errors.Is(got, tt.want) || !errors.Is(got, tt.err) {
				t.Errorf("Classify(%v) = %v", tt.err, got)
			}
		})
	}

	plain := errors.New("plain")
	if Classify(plain) != plain {
		t.Error("unknown errors should pass through")
	}
	if Classify(nil) != nil {
		t.Error("nil should stay nil")
	}
}
