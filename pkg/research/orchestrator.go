// Package research runs the iterative research loop: it searches, fetches,
// extracts and stores until the knowledge graph is judged sufficient or the
// iteration budget is spent, then writes a report.
package research

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/graph"
	"github.com/yt110010111/market-analysis-LLM/pkg/loader"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/search"
	"github.com/yt110010111/market-analysis-LLM/pkg/store"
	"github.com/yt110010111/market-analysis-LLM/pkg/text"
)

const (
	followUpTemperature = 0.5
	followUpMaxTokens   = 300
	followUpMinRunes    = 3
)

type state int

const (
	stateCheckExisting state = iota
	stateEvaluate
	stateExpand
	stateSearch
	stateExtract
	stateStore
	stateReport
)

func (s state) String() string {
	switch s {
	case stateCheckExisting:
		return "check_existing"
	case stateEvaluate:
		return "evaluate"
	case stateExpand:
		return "expand"
	case stateSearch:
		return "search"
	case stateExtract:
		return "extract"
	case stateStore:
		return "store"
	case stateReport:
		return "report"
	}
	return "unknown"
}

// Orchestrator owns the research loop. One Orchestrator serves many
// concurrent sessions; all per-query state lives in the session passed
// between the steps.
type Orchestrator struct {
	cfg       Config
	ai        ai.CompletionClient
	graph     *graph.GraphClient
	search    search.Provider
	fetcher   loader.Fetcher
	store     store.GraphStore
	evaluator *Evaluator
	reporter  *ReportGenerator
}

// NewOrchestratorParams wires the collaborators. Graph defaults to a
// GraphClient on AI with default limits.
type NewOrchestratorParams struct {
	Config  Config
	AI      ai.CompletionClient
	Graph   *graph.GraphClient
	Search  search.Provider
	Fetcher loader.Fetcher
	Store   store.GraphStore
}

func NewOrchestrator(params NewOrchestratorParams) (*Orchestrator, error) {
	switch {
	case params.AI == nil:
		return nil, errors.New("research: completion client is required")
	case params.Search == nil:
		return nil, errors.New("research: search provider is required")
	case params.Fetcher == nil:
		return nil, errors.New("research: fetcher is required")
	case params.Store == nil:
		return nil, errors.New("research: graph store is required")
	}

	cfg := params.Config.withDefaults()
	g := params.Graph
	if g == nil {
		g = graph.NewGraphClient(graph.NewGraphClientParams{AI: params.AI})
	}
	return &Orchestrator{
		cfg:       cfg,
		ai:        params.AI,
		graph:     g,
		search:    params.Search,
		fetcher:   params.Fetcher,
		store:     params.Store,
		evaluator: NewEvaluator(params.AI, cfg),
		reporter:  NewReportGenerator(params.AI, cfg),
	}, nil
}

type session struct {
	id       string
	query    string
	keywords []string

	iteration int
	checked   bool
	verdict   common.Verdict
	stop      StopReason

	entities []common.Entity
	rels     []common.Relationship
	sources  []common.Source
	seenURLs map[string]struct{}

	queries   []string
	docs      []common.Document
	current   *IterationStats
	iterStart time.Time

	stats      Stats
	iterations []IterationStats
}

func newSession(query string) *session {
	keywords := text.Keywords(query, 0)
	if len(keywords) == 0 {
		keywords = []string{query}
	}
	return &session{
		id:       util.NewID("ses"),
		query:    query,
		keywords: keywords,
		seenURLs: make(map[string]struct{}),
	}
}

// Run researches query and always returns a Result. Cancelling ctx stops
// the loop between steps and yields a report on what was collected with
// status cancelled. Panics are converted into status error.
func (o *Orchestrator) Run(ctx context.Context, query string) (res Result) {
	start := time.Now()
	query = strings.TrimSpace(query)
	s := newSession(query)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Research] Session panicked", "session", s.id, "panic", r, "stack", string(debug.Stack()))
			res = o.errorResult(s, fmt.Errorf("research panicked: %v", r), start)
		}
	}()

	if query == "" {
		return Result{
			SessionID:      s.id,
			Status:         StatusNoData,
			StopReason:     StopEmptyInput,
			Error:          ErrEmptyInput.Error(),
			Report:         FallbackReport(query, nil, nil, nil, time.Now()),
			ReportFallback: true,
			StartedAt:      start,
			Duration:       time.Since(start),
		}
	}

	logger.Info("[Research] Session started", "session", s.id, "query", query, "keywords", s.keywords)

	st := stateCheckExisting
	for st != stateReport {
		if ctx.Err() != nil {
			break
		}
		logger.Debug("[Research] Step", "session", s.id, "state", st, "iteration", s.iteration)
		st = o.step(ctx, s, st)
	}
	if ctx.Err() != nil {
		s.stop = StopCancelled
	}

	return o.finish(ctx, s, start)
}

func (o *Orchestrator) step(ctx context.Context, s *session, st state) state {
	switch st {
	case stateCheckExisting:
		return o.checkExisting(ctx, s)
	case stateEvaluate:
		return o.evaluate(ctx, s)
	case stateExpand:
		return o.expand(ctx, s)
	case stateSearch:
		return o.searchAndFetch(ctx, s)
	case stateExtract:
		return o.extract(ctx, s)
	case stateStore:
		return o.persist(ctx, s)
	}
	return stateReport
}

// checkExisting short-circuits to the report on the first visit when the
// store already covers the query.
func (o *Orchestrator) checkExisting(ctx context.Context, s *session) state {
	if s.checked {
		return stateEvaluate
	}
	s.checked = true

	sub, err := o.store.QueryByKeywords(ctx, s.keywords)
	if err != nil {
		logger.Warn("[Research] Existing data lookup failed", "session", s.id, "err", err)
		return stateEvaluate
	}
	if !o.evaluator.CoverageCheck(len(sub.Entities), len(sub.Relationships)) {
		logger.Info("[Research] Existing data insufficient", "session", s.id,
			"entities", len(sub.Entities), "relationships", len(sub.Relationships))
		return stateEvaluate
	}

	logger.Info("[Research] Existing data covers the query", "session", s.id,
		"entities", len(sub.Entities), "relationships", len(sub.Relationships))
	s.verdict = o.evaluator.Fallback(len(sub.Entities), len(sub.Relationships))
	s.verdict.IsSufficient = true
	s.verdict.MissingAspects = nil
	s.verdict.Reason = "existing data covers the query"
	s.stop = StopExistingCoverage
	return stateReport
}

func (o *Orchestrator) evaluate(ctx context.Context, s *session) state {
	if len(s.entities) == 0 {
		s.verdict = o.evaluator.Fallback(0, len(s.rels))
	} else {
		s.verdict = o.evaluator.Evaluate(ctx, s.query, s.entities, s.rels, s.iteration)
	}

	if s.verdict.IsSufficient {
		s.stop = StopSufficient
		return stateReport
	}
	if s.iteration >= o.cfg.MaxIterations {
		logger.Info("[Research] Iteration budget exhausted", "session", s.id, "iterations", s.iteration,
			"missing", s.verdict.MissingAspects)
		s.stop = StopBudgetExhausted
		return stateReport
	}
	return stateExpand
}

func (o *Orchestrator) expand(ctx context.Context, s *session) state {
	s.iteration++
	s.iterStart = time.Now()
	s.current = &IterationStats{Iteration: s.iteration}

	if s.iteration == 1 {
		s.queries = []string{s.query}
	} else {
		s.queries = o.followUpQueries(ctx, s)
	}
	s.current.Queries = s.queries

	logger.Info("[Research] Iteration started", "session", s.id, "iteration", s.iteration, "queries", s.queries)
	return stateSearch
}

// followUpQueries turns the missing aspects of the last verdict into new
// search queries. Any failure falls back to the original query.
func (o *Orchestrator) followUpQueries(ctx context.Context, s *session) []string {
	missing := s.verdict.MissingAspects
	if len(missing) == 0 {
		return []string{s.query}
	}

	prompt := fmt.Sprintf(ai.FollowUpPrompt, s.query, strings.Join(missing, "; "), o.cfg.FollowUpQueries)
	out, err := o.ai.Complete(ctx, prompt,
		ai.WithTemperature(followUpTemperature),
		ai.WithMaxTokens(followUpMaxTokens),
		ai.WithTimeout(o.cfg.CallTimeout),
	)
	if err != nil {
		logger.Warn("[Research] Follow-up generation failed", "session", s.id, "err", Classify(err))
		return []string{s.query}
	}

	queries := ParseFollowUps(out, o.cfg.FollowUpQueries)
	if len(queries) == 0 {
		return []string{s.query}
	}
	return queries
}

var listMarkerRe = regexp.MustCompile(`^\s*(?:\d+\s*[.)、:]|[-*•])\s*`)

// ParseFollowUps reads one query per line, strips list markers and quotes
// and keeps at most n distinct queries of at least three runes.
func ParseFollowUps(out string, n int) []string {
	var queries []string
	seen := make(map[string]struct{})
	for line := range strings.SplitSeq(out, "\n") {
		q := listMarkerRe.ReplaceAllString(line, "")
		q = strings.Trim(strings.TrimSpace(q), `"'“”「」`)
		q = strings.TrimSpace(q)
		if utf8.RuneCountInString(q) < followUpMinRunes {
			continue
		}
		k := strings.ToLower(q)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		queries = append(queries, q)
		if len(queries) == n {
			break
		}
	}
	return queries
}

func (o *Orchestrator) searchAndFetch(ctx context.Context, s *session) state {
	var urls []string
	titles := make(map[string]string)

	for _, q := range s.queries {
		if len(urls) >= o.cfg.URLsPerIteration || ctx.Err() != nil {
			break
		}
		results, err := o.search.Search(ctx, q, o.cfg.SearchResults)
		if err != nil {
			logger.Warn("[Research] Search failed", "session", s.id, "query", q, "err", err)
			s.current.Error = Classify(err).Error()
			continue
		}
		for _, r := range results {
			key := search.NormalizeURL(r.URL)
			if key == "" {
				continue
			}
			if _, ok := s.seenURLs[key]; ok {
				continue
			}
			s.seenURLs[key] = struct{}{}
			urls = append(urls, r.URL)
			titles[r.URL] = r.Title
			if len(urls) == o.cfg.URLsPerIteration {
				break
			}
		}
	}
	s.current.URLs = urls

	if len(urls) == 0 {
		logger.Warn("[Research] No new urls found", "session", s.id, "iteration", s.iteration)
		o.closeIteration(s)
		return stateCheckExisting
	}

	docs := loader.FetchAll(ctx, o.fetcher, urls, o.cfg.ParallelFetches)
	for i := range docs {
		if docs[i].Title == "" {
			docs[i].Title = titles[docs[i].URL]
		}
	}
	s.current.DocumentsFetched = len(docs)
	s.stats.DocumentsFetched += len(docs)
	logger.Info("[Research] Pages fetched", "session", s.id, "urls", len(urls), "documents", len(docs))

	if len(docs) == 0 {
		o.closeIteration(s)
		return stateCheckExisting
	}
	s.docs = docs
	return stateExtract
}

func (o *Orchestrator) extract(ctx context.Context, s *session) state {
	batch := o.graph.ExtractDocuments(ctx, s.query, s.docs)
	s.docs = nil
	s.current.DocumentsProcessed = batch.DocumentsProcessed
	s.stats.DocumentsProcessed += batch.DocumentsProcessed

	beforeEntities, beforeRels := len(s.entities), len(s.rels)

	entities := graph.DedupeEntities(append(append([]common.Entity(nil), s.entities...), batch.Entities...))
	rels := graph.DedupeRelationships(append(append([]common.Relationship(nil), s.rels...), batch.Relationships...))
	if o.cfg.EnableEntityExpansion {
		entities = o.graph.ExpandEntities(ctx, s.query, entities)
	}
	if o.cfg.EnableRelationshipInference {
		rels = o.graph.InferRelationships(ctx, s.query, entities, rels)
	}
	s.entities = graph.ScoreEntities(entities, rels, s.query)
	s.rels = rels

	for _, d := range batch.Documents {
		if d.Err == nil && !d.EmptyInput {
			s.sources = common.UnionSources(s.sources, common.Source{Title: d.Title, URL: d.URL})
		}
	}

	s.current.NewEntities = max(0, len(s.entities)-beforeEntities)
	s.current.NewRelationships = max(0, len(s.rels)-beforeRels)
	logger.Info("[Research] Graph updated", "session", s.id, "iteration", s.iteration,
		"entities", len(s.entities), "relationships", len(s.rels),
		"new_entities", s.current.NewEntities, "new_relationships", s.current.NewRelationships)
	return stateStore
}

// persist writes the session graph to the store one record at a time.
// Upserts are idempotent, so rewriting earlier records is harmless. Store
// failures are logged and never stop the loop.
func (o *Orchestrator) persist(ctx context.Context, s *session) state {
	failed := 0
	for _, e := range s.entities {
		if err := o.store.UpsertEntity(ctx, e); err != nil {
			failed++
			logger.Debug("[Store] Entity upsert failed", "entity", e.Name, "err", err)
		}
	}
	for _, r := range s.rels {
		if err := o.store.UpsertRelationship(ctx, r); err != nil {
			failed++
			logger.Debug("[Store] Relationship upsert failed", "source", r.Source, "target", r.Target, "err", err)
		}
	}

	names := make([]string, 0, len(s.entities))
	for _, e := range s.entities {
		names = append(names, e.Name)
	}
	if err := o.store.RecordQuery(ctx, s.query, names); err != nil {
		failed++
		logger.Debug("[Store] Query link failed", "err", err)
	}

	if failed > 0 {
		logger.Warn("[Research] Store writes failed", "session", s.id, "failed", failed)
		s.current.Error = fmt.Sprintf("%d store writes failed", failed)
	}
	o.closeIteration(s)
	return stateCheckExisting
}

func (o *Orchestrator) closeIteration(s *session) {
	if s.current == nil {
		return
	}
	s.current.Duration = time.Since(s.iterStart)
	s.iterations = append(s.iterations, *s.current)
	s.current = nil
}

// finish re-reads the store, merges it with the session graph and writes
// the report. A cancelled session skips both and renders what it has.
func (o *Orchestrator) finish(ctx context.Context, s *session, start time.Time) Result {
	o.closeIteration(s)

	entities, rels, sources := s.entities, s.rels, s.sources
	if s.stop != StopCancelled {
		sub, err := o.store.QueryByKeywords(ctx, s.keywords)
		if err != nil {
			logger.Warn("[Research] Store read failed, reporting session data only", "session", s.id, "err", err)
		}
		entities = graph.DedupeEntities(append(append([]common.Entity(nil), s.entities...), sub.Entities...))
		rels = graph.DedupeRelationships(append(append([]common.Relationship(nil), s.rels...), sub.Relationships...))
		entities = graph.ScoreEntities(entities, rels, s.query)
		for _, e := range sub.Entities {
			sources = common.UnionSources(sources, e.Sources...)
		}
	}

	res := Result{
		SessionID:     s.id,
		Query:         s.query,
		StopReason:    s.stop,
		Relationships: rels,
		Sources:       sources,
		Verdict:       s.verdict,
		Iterations:    s.iterations,
		StartedAt:     start,
	}

	switch {
	case s.stop == StopCancelled:
		res.Status = StatusCancelled
		res.Error = context.Cause(ctx).Error()
		res.Report = FallbackReport(s.query, entities, rels, sources, time.Now())
		res.ReportFallback = true
	case len(entities) == 0:
		res.Status = StatusNoData
		res.Error = ErrEmptyInput.Error()
		res.Report = FallbackReport(s.query, nil, nil, sources, time.Now())
		res.ReportFallback = true
	default:
		res.Status = StatusSuccess
		res.Report, res.ReportFallback = o.reporter.Generate(ctx, s.query, entities, rels, sources)
	}

	res.Entities = entities[:min(len(entities), o.cfg.TopEntities)]
	res.Stats = Stats{
		Iterations:         s.iteration,
		DocumentsFetched:   s.stats.DocumentsFetched,
		DocumentsProcessed: s.stats.DocumentsProcessed,
		EntityCount:        len(entities),
		RelationshipCount:  len(rels),
		CoverageScore:      s.verdict.CoverageScore,
	}
	res.Duration = time.Since(start)

	logger.Info("[Research] Session finished",
		"session", s.id,
		"status", res.Status,
		"stop_reason", res.StopReason,
		"iterations", res.Stats.Iterations,
		"entities", res.Stats.EntityCount,
		"relationships", res.Stats.RelationshipCount,
		"duration", res.Duration,
	)
	return res
}

func (o *Orchestrator) errorResult(s *session, err error, start time.Time) Result {
	return Result{
		SessionID:      s.id,
		Query:          s.query,
		Status:         StatusError,
		StopReason:     StopError,
		Error:          err.Error(),
		Report:         FallbackReport(s.query, s.entities, s.rels, s.sources, time.Now()),
		ReportFallback: true,
		Entities:       s.entities[:min(len(s.entities), o.cfg.TopEntities)],
		Relationships:  s.rels,
		Sources:        s.sources,
		Verdict:        s.verdict,
		Iterations:     s.iterations,
		StartedAt:      start,
		Duration:       time.Since(start),
		Stats: Stats{
			Iterations:         s.iteration,
			DocumentsFetched:   s.stats.DocumentsFetched,
			DocumentsProcessed: s.stats.DocumentsProcessed,
			EntityCount:        len(s.entities),
			RelationshipCount:  len(s.rels),
		},
	}
}
