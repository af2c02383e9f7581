package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"
)

// Document is one entry in the simulated web corpus.
type Document struct {
	DocID   string `json:"doc_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Body    string `json:"body"`
}

// Hit is a ranked search result.
type Hit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Index is an in-memory BM25 index standing in for a live web search
// service. Read-only after construction.
type Index struct {
	idx  bleve.Index
	meta map[string]Document
}

// NewIndex builds a memory-only index over the given corpus.
func NewIndex(docs []Document) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("bleve index: %w", err)
	}
	meta := make(map[string]Document, len(docs))
	for _, d := range docs {
		if d.DocID == "" {
			return nil, fmt.Errorf("document %q has no id", d.Title)
		}
		meta[d.DocID] = d
		if err := idx.Index(d.DocID, d); err != nil {
			return nil, fmt.Errorf("index %s: %w", d.DocID, err)
		}
	}
	return &Index{idx: idx, meta: meta}, nil
}

// Search returns up to k hits for the query, best first. An empty query
// yields no hits.
func (i *Index) Search(q string, k int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" || k <= 0 {
		return nil, nil
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	var out []Hit
	for _, hit := range res.Hits {
		doc := i.meta[hit.ID]
		out = append(out, Hit{Title: doc.Title, URL: doc.URL, Snippet: doc.Snippet, Score: hit.Score})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// DefaultCorpus is the static article set the simulated search provider
// serves when no live search backend exists.
func DefaultCorpus() []Document {
	return []Document{
		{
			DocID:   "doc-openai-chatgpt",
			Title:   "Getting Started with the OpenAI ChatGPT API",
			URL:     "https://example.com/openai-chatgpt-api",
			Snippet: "A walkthrough of authentication, prompts and token budgets for the ChatGPT API.",
			Body:    "openai chatgpt api documentation completions tokens authentication quickstart",
		},
		{
			DocID:   "doc-chatgpt-prompting",
			Title:   "Prompt Design Patterns for ChatGPT",
			URL:     "https://example.com/chatgpt-prompting",
			Snippet: "Common prompt structures and failure modes when driving ChatGPT programmatically.",
			Body:    "openai chatgpt prompt design instructions system message examples",
		},
		{
			DocID:   "doc-go-concurrency",
			Title:   "Concurrency Patterns in Go",
			URL:     "https://example.com/go-concurrency",
			Snippet: "Fan-out, fan-in and worker pools with goroutines and channels.",
			Body:    "go golang goroutines channels fan-out fan-in waitgroup concurrency patterns",
		},
		{
			DocID:   "doc-ner-overview",
			Title:   "Named Entity Recognition: an Overview",
			URL:     "https://example.com/ner-overview",
			Snippet: "How NER systems extract people, places and organizations from raw text.",
			Body:    "named entity recognition extraction persons locations organizations nlp",
		},
		{
			DocID:   "doc-mt-history",
			Title:   "A Short History of Machine Translation",
			URL:     "https://example.com/machine-translation",
			Snippet: "From rule-based systems to neural models translating between hundreds of languages.",
			Body:    "machine translation neural languages english french translate text",
		},
	}
}
