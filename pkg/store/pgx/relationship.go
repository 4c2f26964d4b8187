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

const relationshipColumns = `source, target, relation, description, strength, inferred, sources`

// UpsertRelationship stores r. Endpoints that were never upserted are
// created as unclassified placeholder entities.
func (s *GraphDBStorage) UpsertRelationship(ctx context.Context, r common.Relationship) error {
	srcKey := common.NormalizeKey(r.Source)
	tgtKey := common.NormalizeKey(r.Target)
	if srcKey == "" || tgtKey == "" || srcKey == tgtKey || r.Relation == "" {
		return nil
	}
	r.Source = util.SanitizePostgresText(r.Source)
	r.Target = util.SanitizePostgresText(r.Target)
	r.Description = util.SanitizePostgresText(r.Description)
	r.Sources = sanitizeSources(r.Sources)

	return pgxv5.BeginFunc(ctx, s.conn, func(tx pgxv5.Tx) error {
		for _, end := range []struct{ key, name string }{{srcKey, r.Source}, {tgtKey, r.Target}} {
			if err := insertEntityIfMissing(ctx, tx, end.key, common.Entity{Name: end.name}); err != nil {
				return err
			}
		}

		strength := r.Strength
		if strength == "" {
			strength = common.StrengthMedium
		}
		sources, err := json.Marshal(common.UnionSources(nil, r.Sources...))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO relationships (source_key, target_key, `+relationshipColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (source_key, relation, target_key) DO NOTHING`,
			srcKey, tgtKey, r.Source, r.Target, r.Relation, r.Description, string(strength), r.Inferred, sources,
		)
		if err != nil {
			return fmt.Errorf("failed to insert relationship: %w", err)
		}

		row := tx.QueryRow(ctx, `
			SELECT `+relationshipColumns+` FROM relationships
			WHERE source_key = $1 AND relation = $2 AND target_key = $3
			FOR UPDATE`, srcKey, r.Relation, tgtKey)
		existing, err := scanRelationship(row)
		if err != nil {
			return fmt.Errorf("failed to load relationship: %w", err)
		}

		merged := store.MergeRelationship(existing, r)
		mergedSources, err := json.Marshal(merged.Sources)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE relationships SET
				description = $4, strength = $5, inferred = $6, sources = $7, last_seen = now()
			WHERE source_key = $1 AND relation = $2 AND target_key = $3`,
			srcKey, r.Relation, tgtKey, merged.Description, string(merged.Strength), merged.Inferred, mergedSources,
		)
		if err != nil {
			return fmt.Errorf("failed to update relationship: %w", err)
		}
		return nil
	})
}

func scanRelationship(row pgxv5.Row) (common.Relationship, error) {
	var (
		r        common.Relationship
		strength string
		sources  []byte
	)
	if err := row.Scan(&r.Source, &r.Target, &r.Relation, &r.Description, &strength, &r.Inferred, &sources); err != nil {
		return common.Relationship{}, err
	}
	r.Strength = common.ParseStrength(strength)
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &r.Sources); err != nil {
			return common.Relationship{}, fmt.Errorf("failed to decode sources: %w", err)
		}
	}
	return r, nil
}
