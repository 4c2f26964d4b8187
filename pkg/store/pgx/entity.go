package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const entityColumns = `name, type, description, importance, key_facts, inferred, relevance_score, sources`

func (s *GraphDBStorage) UpsertEntity(ctx context.Context, e common.Entity) error {
	key := e.Key()
	if key == "" {
		return nil
	}
	e = sanitizeEntity(e)

	return pgxv5.BeginFunc(ctx, s.conn, func(tx pgxv5.Tx) error {
		if err := insertEntityIfMissing(ctx, tx, key, e); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE key = $1 FOR UPDATE`, key)
		existing, err := scanEntity(row)
		if err != nil {
			return fmt.Errorf("failed to load entity %q: %w", key, err)
		}

		merged := store.MergeEntity(existing, e)
		sources, err := json.Marshal(merged.Sources)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE entities SET
				type = $2, description = $3, importance = $4, importance_rank = $5,
				key_facts = $6, inferred = $7, relevance_score = $8, sources = $9,
				updated_at = now()
			WHERE key = $1`,
			key, merged.Type, merged.Description, string(merged.Importance), merged.Importance.Rank(),
			nonNil(merged.KeyFacts), merged.Inferred, merged.RelevanceScore, sources,
		)
		if err != nil {
			return fmt.Errorf("failed to update entity %q: %w", key, err)
		}
		return nil
	})
}

// insertEntityIfMissing creates the row for key when absent. A freshly
// inserted row is merged with e again by the caller, which is a no-op.
func insertEntityIfMissing(ctx context.Context, tx pgxv5.Tx, key string, e common.Entity) error {
	if e.Type == "" {
		e.Type = common.TypeUnclassified
	}
	if e.Importance == "" {
		e.Importance = common.ImportanceMedium
	}
	sources, err := json.Marshal(common.UnionSources(nil, e.Sources...))
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO entities (key, `+entityColumns+`, importance_rank)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO NOTHING`,
		key, e.Name, e.Type, e.Description, string(e.Importance),
		nonNil(e.KeyFacts), e.Inferred, e.RelevanceScore, sources, e.Importance.Rank(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entity %q: %w", key, err)
	}
	return nil
}

func scanEntity(row pgxv5.Row) (common.Entity, error) {
	var (
		e          common.Entity
		importance string
		sources    []byte
	)
	if err := row.Scan(&e.Name, &e.Type, &e.Description, &importance, &e.KeyFacts,
		&e.Inferred, &e.RelevanceScore, &sources); err != nil {
		return common.Entity{}, err
	}
	e.Importance = common.ParseImportance(importance)
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &e.Sources); err != nil {
			return common.Entity{}, fmt.Errorf("failed to decode sources: %w", err)
		}
	}
	return e, nil
}

func sanitizeEntity(e common.Entity) common.Entity {
	e.Name = util.SanitizePostgresText(e.Name)
	e.Type = util.SanitizePostgresText(e.Type)
	e.Description = util.SanitizePostgresText(e.Description)
	facts := make([]string, 0, len(e.KeyFacts))
	for _, f := range e.KeyFacts {
		facts = append(facts, util.SanitizePostgresText(f))
	}
	e.KeyFacts = facts
	e.Sources = sanitizeSources(e.Sources)
	return e
}

func sanitizeSources(in []common.Source) []common.Source {
	out := make([]common.Source, 0, len(in))
	for _, src := range in {
		out = append(out, common.Source{
			Title: util.SanitizePostgresText(src.Title),
			URL:   util.SanitizePostgresText(src.URL),
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
