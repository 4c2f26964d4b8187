package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the joined output of ExtractDocuments.
type BatchResult struct {
	Documents          []DocumentResult      `json:"documents"`
	Entities           []common.Entity       `json:"entities"`
	Relationships      []common.Relationship `json:"relationships"`
	DocumentsProcessed int                   `json:"documents_processed"`
	Statistics         Statistics            `json:"statistics"`
}

// ExtractDocuments extracts every document with a bounded worker pool.
// Each document gets its own timeout; a slow or failing document never
// cancels the others. All results are collected before returning and are
// kept in input order.
func (g *GraphClient) ExtractDocuments(ctx context.Context, query string, docs []common.Document) BatchResult {
	start := time.Now()
	results := make([]DocumentResult, len(docs))

	eg := errgroup.Group{}
	eg.SetLimit(g.parallelDocuments)
	for i, doc := range docs {
		eg.Go(func() error {
			results[i] = g.extractWithTimeout(ctx, query, doc)
			return nil
		})
	}
	_ = eg.Wait()

	var batch BatchResult
	batch.Documents = results
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		batch.DocumentsProcessed++
		batch.Entities = append(batch.Entities, r.Entities...)
		batch.Relationships = append(batch.Relationships, r.Relationships...)
	}
	batch.Statistics = ComputeStatistics(batch.Entities, batch.Relationships, batch.DocumentsProcessed)

	logger.Info("[Extract] Batch completed",
		"documents", len(docs),
		"processed", batch.DocumentsProcessed,
		"entities", len(batch.Entities),
		"relationships", len(batch.Relationships),
		"duration", time.Since(start),
	)
	return batch
}

func (g *GraphClient) extractWithTimeout(ctx context.Context, query string, doc common.Document) (res DocumentResult) {
	docCtx, cancel := context.WithTimeout(ctx, g.documentTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Extract] Document extraction panicked", "title", doc.Title, "panic", r)
			res = DocumentResult{Title: doc.Title, URL: doc.URL, Err: fmt.Errorf("extraction panicked: %v", r)}
		}
	}()

	res = g.ExtractDocument(docCtx, query, doc)
	if docCtx.Err() != nil && ctx.Err() == nil {
		logger.Warn("[Extract] Document timed out", "title", doc.Title, "timeout", g.documentTimeout,
			"entities", len(res.Entities))
	}
	return res
}
