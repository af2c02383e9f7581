package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/taskmux/taskmux/config"
	"github.com/taskmux/taskmux/internal/capability"
	"github.com/taskmux/taskmux/internal/search"
)

// SearchAgent serves the search_internet action from a static in-memory
// corpus. Same contract shape as the oracle-backed providers, zero oracle
// calls.
type SearchAgent struct {
	cfg    *config.Config
	index  *search.Index
	logger *log.Logger
}

// NewSearchAgent creates the simulated web search provider
func NewSearchAgent(cfg *config.Config, idx *search.Index) capability.Provider {
	return &SearchAgent{
		cfg:    cfg,
		index:  idx,
		logger: log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
}

func (a *SearchAgent) Name() string { return "search_internet" }

// Run queries the corpus for the given keywords. When the corpus has nothing
// relevant it falls back to fabricated sample entries so the result shape
// stays stable.
func (a *SearchAgent) Run(ctx context.Context, params map[string]interface{}) (capability.Result, error) {
	keywords := stringParam(params, "keywords", "")
	maxResults := intParam(params, "max_results", a.cfg.Search.MaxResults)
	if maxResults <= 0 {
		maxResults = a.cfg.Search.MaxResults
	}

	var items []map[string]interface{}
	if keywords != "" {
		hits, err := a.index.Search(keywords, maxResults)
		if err != nil {
			return capability.Result{}, fmt.Errorf("corpus search: %w", err)
		}
		for _, h := range hits {
			items = append(items, map[string]interface{}{
				"title":   h.Title,
				"url":     h.URL,
				"snippet": h.Snippet,
			})
		}
	}
	if len(items) == 0 {
		items = sampleItems(keywords, maxResults)
	}

	return capability.Result{
		Agent:  a.Name(),
		Action: capability.ActionSearchInternet,
		Payload: map[string]interface{}{
			"results": items,
		},
	}, nil
}

func sampleItems(keywords string, maxResults int) []map[string]interface{} {
	items := []map[string]interface{}{
		{
			"title":   fmt.Sprintf("Sample Article about %s", keywords),
			"url":     "https://example.com/article1",
			"snippet": "This is a simulated snippet for article 1.",
		},
		{
			"title":   fmt.Sprintf("Another Resource on %s", keywords),
			"url":     "https://example.com/article2",
			"snippet": "This is a simulated snippet for article 2.",
		},
	}
	if maxResults < len(items) {
		items = items[:maxResults]
	}
	return items
}
