package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/search"
)

// Researcher outputs used in place of search results.
const (
	NoResultsMarker     = "No direct web results found. Relying on general legal knowledge."
	SearchDisabledText  = "Web Search Disabled (No API Key). Analysis will be based on internal knowledge."
	SearchFailedMarker  = "Search failed. Proceeding with internal analysis."
	noBackgroundContext = "No background provided."
)

// research runs the WebResearcher stage. It never fails the run.
func (p *Pipeline) research(ctx context.Context, rec *recorder, in RunInput) string {
	agent := cases.AgentWebResearcher
	if err := rec.log(ctx, agent, cases.ActionStarted, in.Query, "", ""); err != nil {
		rec.fail(ctx, agent, in.Query, err)
		return SearchFailedMarker
	}

	out, err := p.gatherSources(ctx, in)
	if err != nil {
		rec.fail(ctx, agent, in.Query, err)
		return SearchFailedMarker
	}

	if err := rec.log(ctx, agent, cases.ActionCompleted, in.Query, out, Preview(out, 100)); err != nil {
		rec.fail(ctx, agent, in.Query, err)
		return SearchFailedMarker
	}
	return out
}

func (p *Pipeline) gatherSources(ctx context.Context, in RunInput) (string, error) {
	situation := fmt.Sprintf("Query: %s\nContext: %s", in.Query, orDefault(in.Description, noBackgroundContext))
	prompt, err := p.prompts.renderSearch(Clamp(situation, p.limits.SearchPromptMaxChars), p.limits.MaxSearchQueries)
	if err != nil {
		return "", err
	}

	reply, err := p.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	queries := parseQueries(reply, in.Query, p.limits.MaxSearchQueries)

	if p.search == nil || !p.search.Enabled() {
		return SearchDisabledText, nil
	}

	if len(queries) > p.limits.MaxSearches {
		queries = queries[:p.limits.MaxSearches]
	}
	hits := p.runSearches(ctx, queries)
	if len(hits) == 0 {
		return NoResultsMarker, nil
	}
	return formatSources(hits), nil
}

// parseQueries reads {"queries": [...]} from the model reply, falling back
// to the original query when nothing usable is present.
func parseQueries(reply, fallback string, max int) []string {
	var parsed struct {
		Queries []any `json:"queries"`
	}
	var queries []string
	if err := json.Unmarshal([]byte(reply), &parsed); err == nil {
		for _, q := range parsed.Queries {
			if s, ok := q.(string); ok && strings.TrimSpace(s) != "" {
				queries = append(queries, strings.TrimSpace(s))
			}
		}
	}
	if len(queries) == 0 {
		return []string{fallback}
	}
	if len(queries) > max {
		queries = queries[:max]
	}
	return queries
}

// runSearches queries concurrently and concatenates hits in query order.
// Failed sub-queries are logged and skipped.
func (p *Pipeline) runSearches(ctx context.Context, queries []string) []search.Result {
	perQuery := make([][]search.Result, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			hits, err := p.search.Search(ctx, q, p.limits.SearchMaxResults)
			if err != nil {
				p.logger.Warn("search failed", "query", q, "error", err)
				return nil
			}
			perQuery[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var all []search.Result
	for _, hits := range perQuery {
		all = append(all, hits...)
	}
	return all
}

func formatSources(hits []search.Result) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("Source [%d]: %s\nURL: %s\nContent: %s", i+1, h.Title, h.URL, h.Content)
	}
	return strings.Join(blocks, "\n\n")
}
