// Package sqlite is a single-file GraphStore for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/store"

	_ "github.com/mattn/go-sqlite3"
)

const entityColumns = `name, type, description, importance, key_facts, inferred, relevance_score, sources`

const relationshipColumns = `source, target, relation, description, strength, inferred, sources`

// Store wraps a SQLite database. Writes are serialized by a mutex because
// SQLite allows one writer at a time.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ store.GraphStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) UpsertEntity(ctx context.Context, e common.Entity) error {
	key := e.Key()
	if key == "" {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertEntityIfMissing(ctx, tx, key, e); err != nil {
			return err
		}
		existing, err := scanEntity(tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE key = ?`, key))
		if err != nil {
			return fmt.Errorf("loading entity %q: %w", key, err)
		}
		merged := store.MergeEntity(existing, e)
		facts, _ := json.Marshal(nonNil(merged.KeyFacts))
		sources, _ := json.Marshal(merged.Sources)
		_, err = tx.ExecContext(ctx, `
			UPDATE entities SET type = ?, description = ?, importance = ?, importance_rank = ?,
				key_facts = ?, inferred = ?, relevance_score = ?, sources = ?
			WHERE key = ?`,
			merged.Type, merged.Description, string(merged.Importance), merged.Importance.Rank(),
			string(facts), merged.Inferred, merged.RelevanceScore, string(sources), key)
		if err != nil {
			return fmt.Errorf("updating entity %q: %w", key, err)
		}
		return nil
	})
}

func insertEntityIfMissing(ctx context.Context, tx *sql.Tx, key string, e common.Entity) error {
	if e.Type == "" {
		e.Type = common.TypeUnclassified
	}
	if e.Importance == "" {
		e.Importance = common.ImportanceMedium
	}
	facts, _ := json.Marshal(nonNil(e.KeyFacts))
	sources, _ := json.Marshal(common.UnionSources(nil, e.Sources...))
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO entities (key, `+entityColumns+`, importance_rank, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entities))`,
		key, e.Name, e.Type, e.Description, string(e.Importance), string(facts), e.Inferred,
		e.RelevanceScore, string(sources), e.Importance.Rank())
	if err != nil {
		return fmt.Errorf("inserting entity %q: %w", key, err)
	}
	return nil
}

func (s *Store) UpsertRelationship(ctx context.Context, r common.Relationship) error {
	srcKey := common.NormalizeKey(r.Source)
	tgtKey := common.NormalizeKey(r.Target)
	if srcKey == "" || tgtKey == "" || srcKey == tgtKey || r.Relation == "" {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, end := range []struct{ key, name string }{{srcKey, r.Source}, {tgtKey, r.Target}} {
			if err := insertEntityIfMissing(ctx, tx, end.key, common.Entity{Name: end.name}); err != nil {
				return err
			}
		}

		strength := r.Strength
		if strength == "" {
			strength = common.StrengthMedium
		}
		sources, _ := json.Marshal(common.UnionSources(nil, r.Sources...))
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO relationships (source_key, target_key, `+relationshipColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			srcKey, tgtKey, r.Source, r.Target, r.Relation, r.Description, string(strength), r.Inferred, string(sources))
		if err != nil {
			return fmt.Errorf("inserting relationship: %w", err)
		}

		existing, err := scanRelationship(tx.QueryRowContext(ctx, `
			SELECT `+relationshipColumns+` FROM relationships
			WHERE source_key = ? AND relation = ? AND target_key = ?`, srcKey, r.Relation, tgtKey))
		if err != nil {
			return fmt.Errorf("loading relationship: %w", err)
		}
		merged := store.MergeRelationship(existing, r)
		mergedSources, _ := json.Marshal(merged.Sources)
		_, err = tx.ExecContext(ctx, `
			UPDATE relationships SET description = ?, strength = ?, inferred = ?, sources = ?
			WHERE source_key = ? AND relation = ? AND target_key = ?`,
			merged.Description, string(merged.Strength), merged.Inferred, string(mergedSources),
			srcKey, r.Relation, tgtKey)
		if err != nil {
			return fmt.Errorf("updating relationship: %w", err)
		}
		return nil
	})
}

func (s *Store) RecordQuery(ctx context.Context, query string, entityNames []string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO queries (text) VALUES (?)
			ON CONFLICT (text) DO UPDATE SET
				query_count = query_count + 1,
				last_queried = CURRENT_TIMESTAMP`, query)
		if err != nil {
			return fmt.Errorf("recording query: %w", err)
		}
		for _, name := range entityNames {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO query_entities (query_text, entity_key)
				SELECT ?, key FROM entities WHERE key = ?`, query, common.NormalizeKey(name))
			if err != nil {
				return fmt.Errorf("linking query entity: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) QueryByKeywords(ctx context.Context, keywords []string) (store.Subgraph, error) {
	var out store.Subgraph
	seen := make(map[string]struct{})

	collect := func(query string, kw string) error {
		rows, err := s.db.QueryContext(ctx, query, "%"+kw+"%", store.DefaultEntityLimit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEntity(rows)
			if err != nil {
				return err
			}
			if _, ok := seen[e.Key()]; ok {
				continue
			}
			seen[e.Key()] = struct{}{}
			out.Entities = append(out.Entities, e)
		}
		return rows.Err()
	}

	keywords = store.LowerKeywords(keywords)
	// LIKE is case-insensitive for ASCII in SQLite; lower() covers the rest
	for _, kw := range keywords {
		err := collect(`
			SELECT `+entityColumns+` FROM entities
			WHERE lower(name) LIKE ?1 OR lower(description) LIKE ?1 OR lower(type) LIKE ?1
			ORDER BY importance_rank DESC, seq
			LIMIT ?2`, kw)
		if err != nil {
			return store.Subgraph{}, fmt.Errorf("querying entities: %w", err)
		}
	}
	for _, kw := range keywords {
		err := collect(`
			SELECT `+entityColumns+` FROM entities
			WHERE key IN (SELECT entity_key FROM query_entities WHERE lower(query_text) LIKE ?1)
			ORDER BY importance_rank DESC, seq
			LIMIT ?2`, kw)
		if err != nil {
			return store.Subgraph{}, fmt.Errorf("querying recorded entities: %w", err)
		}
	}
	if len(out.Entities) == 0 {
		return out, nil
	}

	names := out.Entities[:min(len(out.Entities), store.DefaultRelationshipNames)]
	keys := make([]any, 0, len(names))
	for _, e := range names {
		keys = append(keys, e.Key())
	}
	in := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := append(append(append([]any{}, keys...), keys...), store.DefaultRelationshipLimit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+relationshipColumns+` FROM relationships
		WHERE source_key IN (`+in+`) AND target_key IN (`+in+`)
		ORDER BY created_at, rowid
		LIMIT ?`, args...)
	if err != nil {
		return store.Subgraph{}, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return store.Subgraph{}, err
		}
		out.Relationships = append(out.Relationships, r)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM entities),
			(SELECT count(*) FROM relationships),
			(SELECT count(*) FROM queries)`).Scan(&st.Entities, &st.Relationships, &st.Queries)
	if err != nil {
		return store.Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (common.Entity, error) {
	var (
		e              common.Entity
		importance     string
		facts, sources string
	)
	if err := row.Scan(&e.Name, &e.Type, &e.Description, &importance, &facts,
		&e.Inferred, &e.RelevanceScore, &sources); err != nil {
		return common.Entity{}, err
	}
	e.Importance = common.ParseImportance(importance)
	if err := json.Unmarshal([]byte(facts), &e.KeyFacts); err != nil {
		return common.Entity{}, fmt.Errorf("decoding key facts: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
		return common.Entity{}, fmt.Errorf("decoding sources: %w", err)
	}
	return e, nil
}

func scanRelationship(row scanner) (common.Relationship, error) {
	var (
		r        common.Relationship
		strength string
		sources  string
	)
	if err := row.Scan(&r.Source, &r.Target, &r.Relation, &r.Description, &strength, &r.Inferred, &sources); err != nil {
		return common.Relationship{}, err
	}
	r.Strength = common.ParseStrength(strength)
	if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
		return common.Relationship{}, fmt.Errorf("decoding sources: %w", err)
	}
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
