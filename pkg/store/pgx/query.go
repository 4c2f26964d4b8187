package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// RecordQuery upserts the query node and links it to the named entities
// that exist in the store.
func (s *GraphDBStorage) RecordQuery(ctx context.Context, query string, entityNames []string) error {
	query = util.SanitizePostgresText(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	keys := make([]string, 0, len(entityNames))
	for _, n := range entityNames {
		keys = append(keys, common.NormalizeKey(n))
	}
	keys = store.DedupeStrings(keys)

	return pgxv5.BeginFunc(ctx, s.conn, func(tx pgxv5.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO queries (text) VALUES ($1)
			ON CONFLICT (text) DO UPDATE SET
				query_count = queries.query_count + 1,
				last_queried = now()`, query)
		if err != nil {
			return fmt.Errorf("failed to record query: %w", err)
		}
		if len(keys) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO query_entities (query_text, entity_key)
			SELECT $1, e.key FROM entities e WHERE e.key = ANY($2)
			ON CONFLICT DO NOTHING`, query, keys)
		if err != nil {
			return fmt.Errorf("failed to link query entities: %w", err)
		}
		return nil
	})
}

func (s *GraphDBStorage) QueryByKeywords(ctx context.Context, keywords []string) (store.Subgraph, error) {
	var out store.Subgraph
	seen := make(map[string]struct{})

	collect := func(sql string, kw string) error {
		rows, err := s.conn.Query(ctx, sql, likePattern(kw), store.DefaultEntityLimit)
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
	for _, kw := range keywords {
		err := collect(`
			SELECT `+entityColumns+` FROM entities
			WHERE name ILIKE $1 OR description ILIKE $1 OR type ILIKE $1
			ORDER BY importance_rank DESC, created_at
			LIMIT $2`, kw)
		if err != nil {
			return store.Subgraph{}, fmt.Errorf("failed to query entities: %w", err)
		}
	}
	for _, kw := range keywords {
		err := collect(`
			SELECT `+entityColumns+` FROM entities
			WHERE key IN (SELECT entity_key FROM query_entities WHERE query_text ILIKE $1)
			ORDER BY importance_rank DESC, created_at
			LIMIT $2`, kw)
		if err != nil {
			return store.Subgraph{}, fmt.Errorf("failed to query recorded entities: %w", err)
		}
	}

	if len(out.Entities) == 0 {
		return out, nil
	}

	keys := make([]string, 0, store.DefaultRelationshipNames)
	for _, e := range out.Entities[:min(len(out.Entities), store.DefaultRelationshipNames)] {
		keys = append(keys, e.Key())
	}
	rows, err := s.conn.Query(ctx, `
		SELECT `+relationshipColumns+` FROM relationships
		WHERE source_key = ANY($1) AND target_key = ANY($1)
		ORDER BY created_at
		LIMIT $2`, keys, store.DefaultRelationshipLimit)
	if err != nil {
		return store.Subgraph{}, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return store.Subgraph{}, err
		}
		out.Relationships = append(out.Relationships, r)
	}
	if err := rows.Err(); err != nil {
		return store.Subgraph{}, err
	}

	logger.Debug("[Store] Keyword query", "keywords", keywords,
		"entities", len(out.Entities), "relationships", len(out.Relationships))
	return out, nil
}

func (s *GraphDBStorage) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := s.conn.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM entities),
			(SELECT count(*) FROM relationships),
			(SELECT count(*) FROM queries)`).Scan(&st.Entities, &st.Relationships, &st.Queries)
	if err != nil {
		return store.Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	return st, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a keyword into an ILIKE substring pattern.
func likePattern(kw string) string {
	return "%" + likeEscaper.Replace(kw) + "%"
}
