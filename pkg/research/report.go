package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/text"
)

const (
	reportEntities      = 10
	reportRelationships = 10
	reportSources       = 5
	reportDescription   = 100

	fallbackEntities = 5
)

// ReportGenerator writes the final markdown report.
type ReportGenerator struct {
	ai  ai.CompletionClient
	cfg Config
	now func() time.Time
}

func NewReportGenerator(client ai.CompletionClient, cfg Config) *ReportGenerator {
	return &ReportGenerator{ai: client, cfg: cfg.withDefaults(), now: time.Now}
}

// Generate asks the model for a report on the ranked graph. When the model
// fails or answers with nothing, the deterministic FallbackReport is
// returned and fallback is true.
func (r *ReportGenerator) Generate(
	ctx context.Context,
	query string,
	entities []common.Entity,
	rels []common.Relationship,
	sources []common.Source,
) (report string, fallback bool) {
	prompt := fmt.Sprintf(ai.ReportPrompt,
		query,
		r.cfg.ReportLanguage,
		formatReportEntities(entities),
		formatReportRelationships(rels),
		formatReportSources(sources),
	)

	start := time.Now()
	out, err := r.ai.Complete(ctx, prompt,
		ai.WithTemperature(r.cfg.ReportTemperature),
		ai.WithMaxTokens(r.cfg.ReportMaxTokens),
		ai.WithTimeout(r.cfg.CallTimeout),
	)
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		logger.Warn("[Research] Report generation failed, using fallback", "query", query, "err", err)
		return FallbackReport(query, entities, rels, sources, r.now()), true
	}

	logger.Info("[Research] Report generated", "query", query, "chars", len([]rune(out)), "duration", time.Since(start))
	return out, false
}

// FallbackReport renders the graph as markdown without a model: overview,
// top entities, key relationships, sources and a one-line conclusion.
func FallbackReport(
	query string,
	entities []common.Entity,
	rels []common.Relationship,
	sources []common.Source,
	now time.Time,
) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Research Report\n\n", query)
	fmt.Fprintf(&b, "Generated: %s UTC\n\n", now.UTC().Format("2006-01-02 15:04:05"))

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "This report summarizes %d entities and %d relationships collected for \"%s\".\n\n",
		len(entities), len(rels), query)

	if len(entities) > 0 {
		b.WriteString("## Key Entities\n\n")
		for _, e := range entities[:min(fallbackEntities, len(entities))] {
			fmt.Fprintf(&b, "- **%s** (%s)\n", e.Name, e.Type)
			if e.Description != "" {
				fmt.Fprintf(&b, "  %s\n", text.Truncate(e.Description, reportDescription))
			}
		}
		b.WriteString("\n")
	}

	if len(rels) > 0 {
		b.WriteString("## Key Relationships\n\n")
		for _, r := range rels[:min(reportRelationships, len(rels))] {
			fmt.Fprintf(&b, "- %s → %s → %s\n", r.Source, r.Relation, r.Target)
		}
		b.WriteString("\n")
	}

	if len(sources) > 0 {
		b.WriteString("## Sources\n\n")
		for i, s := range sources[:min(reportSources, len(sources))] {
			title := s.Title
			if title == "" {
				title = s.URL
			}
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, title, s.URL)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Conclusion\n\n")
	fmt.Fprintf(&b, "Based on the available data, %d related entities and %d relationships were found.\n",
		len(entities), len(rels))
	return b.String()
}

func formatReportEntities(entities []common.Entity) string {
	if len(entities) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, e := range entities[:min(reportEntities, len(entities))] {
		desc := e.Description
		if desc == "" {
			desc = "N/A"
		}
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, e.Name, e.Type, text.Truncate(desc, reportDescription))
	}
	return b.String()
}

func formatReportRelationships(rels []common.Relationship) string {
	if len(rels) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, r := range rels[:min(reportRelationships, len(rels))] {
		fmt.Fprintf(&b, "%d. %s --[%s]--> %s\n", i+1, r.Source, r.Relation, r.Target)
	}
	return b.String()
}

func formatReportSources(sources []common.Source) string {
	if len(sources) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, s := range sources[:min(reportSources, len(sources))] {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, s.Title, s.URL)
	}
	return b.String()
}
