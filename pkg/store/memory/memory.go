// Package memory is an in-process GraphStore used by tests and by
// deployments that do not need persistence.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/store"
)

type entityRecord struct {
	entity common.Entity
	seq    int
}

type relationshipRecord struct {
	rel common.Relationship
	seq int
}

type queryRecord struct {
	text  string
	count int
	found map[string]struct{}
}

// Store keeps the graph in maps guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	entities      map[string]*entityRecord
	relationships map[string]*relationshipRecord
	queries       map[string]*queryRecord
	seq           int
	closed        bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		entities:      make(map[string]*entityRecord),
		relationships: make(map[string]*relationshipRecord),
		queries:       make(map[string]*queryRecord),
	}
}

var _ store.GraphStore = (*Store)(nil)

func (s *Store) UpsertEntity(ctx context.Context, e common.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := e.Key()
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	if rec, ok := s.entities[key]; ok {
		rec.entity = store.MergeEntity(rec.entity, e)
		return nil
	}
	if e.Type == "" {
		e.Type = common.TypeUnclassified
	}
	if e.Importance == "" {
		e.Importance = common.ImportanceMedium
	}
	e.Sources = common.UnionSources(nil, e.Sources...)
	s.seq++
	s.entities[key] = &entityRecord{entity: e, seq: s.seq}
	return nil
}

// UpsertRelationship stores r, creating placeholder entities for endpoints
// that were never upserted.
func (s *Store) UpsertRelationship(ctx context.Context, r common.Relationship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	srcKey := common.NormalizeKey(r.Source)
	tgtKey := common.NormalizeKey(r.Target)
	if srcKey == "" || tgtKey == "" || srcKey == tgtKey || r.Relation == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	for _, name := range []string{r.Source, r.Target} {
		key := common.NormalizeKey(name)
		if _, ok := s.entities[key]; !ok {
			s.seq++
			s.entities[key] = &entityRecord{
				entity: common.Entity{Name: name, Type: common.TypeUnclassified, Importance: common.ImportanceMedium},
				seq:    s.seq,
			}
		}
	}

	key := store.RelationshipKey(r)
	if rec, ok := s.relationships[key]; ok {
		rec.rel = store.MergeRelationship(rec.rel, r)
		return nil
	}
	if r.Strength == "" {
		r.Strength = common.StrengthMedium
	}
	s.seq++
	s.relationships[key] = &relationshipRecord{rel: r, seq: s.seq}
	return nil
}

func (s *Store) RecordQuery(ctx context.Context, query string, entityNames []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	q, ok := s.queries[query]
	if !ok {
		q = &queryRecord{text: query, found: make(map[string]struct{})}
		s.queries[query] = q
	}
	q.count++
	for _, name := range entityNames {
		key := common.NormalizeKey(name)
		if _, ok := s.entities[key]; ok {
			q.found[key] = struct{}{}
		}
	}
	return nil
}

func (s *Store) QueryByKeywords(ctx context.Context, keywords []string) (store.Subgraph, error) {
	if err := ctx.Err(); err != nil {
		return store.Subgraph{}, err
	}
	keywords = store.LowerKeywords(keywords)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Subgraph{}, store.ErrClosed
	}

	all := make([]*entityRecord, 0, len(s.entities))
	for _, rec := range s.entities {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		ri, rj := all[i].entity.Importance.Rank(), all[j].entity.Importance.Rank()
		if ri != rj {
			return ri > rj
		}
		return all[i].seq < all[j].seq
	})

	var out store.Subgraph
	picked := make(map[string]struct{})
	pick := func(rec *entityRecord) {
		k := rec.entity.Key()
		if _, ok := picked[k]; ok {
			return
		}
		picked[k] = struct{}{}
		out.Entities = append(out.Entities, rec.entity)
	}

	for _, kw := range keywords {
		n := 0
		for _, rec := range all {
			if n == store.DefaultEntityLimit {
				break
			}
			e := rec.entity
			if store.MatchesAny([]string{kw}, e.Name, e.Description, e.Type) {
				pick(rec)
				n++
			}
		}
	}
	for _, kw := range keywords {
		n := 0
		for _, q := range s.queries {
			if !strings.Contains(strings.ToLower(q.text), kw) {
				continue
			}
			for _, rec := range all {
				if n == store.DefaultEntityLimit {
					break
				}
				if _, ok := q.found[rec.entity.Key()]; ok {
					pick(rec)
					n++
				}
			}
		}
	}

	names := make(map[string]struct{})
	for _, e := range out.Entities[:min(len(out.Entities), store.DefaultRelationshipNames)] {
		names[e.Key()] = struct{}{}
	}
	rels := make([]*relationshipRecord, 0)
	for _, rec := range s.relationships {
		_, okS := names[common.NormalizeKey(rec.rel.Source)]
		_, okT := names[common.NormalizeKey(rec.rel.Target)]
		if okS && okT {
			rels = append(rels, rec)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].seq < rels[j].seq })
	for _, rec := range rels[:min(len(rels), store.DefaultRelationshipLimit)] {
		out.Relationships = append(out.Relationships, rec.rel)
	}

	return out, nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return store.Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Stats{
		Entities:      len(s.entities),
		Relationships: len(s.relationships),
		Queries:       len(s.queries),
	}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
