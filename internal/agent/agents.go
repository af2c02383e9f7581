package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/taskmux/taskmux/config"
	"github.com/taskmux/taskmux/internal/capability"
	"github.com/taskmux/taskmux/internal/search"
	"github.com/taskmux/taskmux/internal/telemetry"
	"github.com/taskmux/taskmux/provider"
)

// NewAgents creates the full provider set and returns it keyed by action
// name, ready for registry construction.
func NewAgents(cfg *config.Config, oracle provider.Provider, tele *telemetry.Telemetry, idx *search.Index) (map[string]capability.Provider, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle provider is required")
	}
	if idx == nil {
		return nil, fmt.Errorf("search index is required")
	}
	return map[string]capability.Provider{
		capability.ActionSummarize:        NewSummarizerAgent(cfg, oracle, tele),
		capability.ActionEntityExtraction: NewEntityExtractorAgent(cfg, oracle, tele),
		capability.ActionTranslate:        NewTranslatorAgent(cfg, oracle, tele),
		capability.ActionSearchInternet:   NewSearchAgent(cfg, idx),
	}, nil
}

// llmAgent is a capability provider whose work is a single oracle call.
type llmAgent struct {
	name      string
	action    string
	cfg       *config.Config
	oracle    provider.Provider
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewSummarizerAgent creates the summarize provider
func NewSummarizerAgent(cfg *config.Config, oracle provider.Provider, tele *telemetry.Telemetry) capability.Provider {
	return &llmAgent{
		name:      "summarizer",
		action:    capability.ActionSummarize,
		cfg:       cfg,
		oracle:    oracle,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[SUMMARIZER] ", log.LstdFlags),
	}
}

// NewEntityExtractorAgent creates the entity extraction provider
func NewEntityExtractorAgent(cfg *config.Config, oracle provider.Provider, tele *telemetry.Telemetry) capability.Provider {
	return &llmAgent{
		name:      "entity_extraction",
		action:    capability.ActionEntityExtraction,
		cfg:       cfg,
		oracle:    oracle,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[EXTRACTOR] ", log.LstdFlags),
	}
}

// NewTranslatorAgent creates the translate provider
func NewTranslatorAgent(cfg *config.Config, oracle provider.Provider, tele *telemetry.Telemetry) capability.Provider {
	return &llmAgent{
		name:      "translator",
		action:    capability.ActionTranslate,
		cfg:       cfg,
		oracle:    oracle,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[TRANSLATOR] ", log.LstdFlags),
	}
}

func (a *llmAgent) Name() string { return a.name }

// Run executes the agent's single action. Empty required input yields the
// degenerate result without touching the oracle.
func (a *llmAgent) Run(ctx context.Context, params map[string]interface{}) (capability.Result, error) {
	switch a.action {
	case capability.ActionSummarize:
		return a.runSummarize(ctx, params)
	case capability.ActionEntityExtraction:
		return a.runEntityExtraction(ctx, params)
	case capability.ActionTranslate:
		return a.runTranslate(ctx, params)
	default:
		return capability.Result{}, fmt.Errorf("unknown agent action: %s", a.action)
	}
}

func (a *llmAgent) runSummarize(ctx context.Context, params map[string]interface{}) (capability.Result, error) {
	text := stringParam(params, "text", "")
	if text == "" {
		return a.result(map[string]interface{}{"summary": ""}), nil
	}
	prompt := fmt.Sprintf("Provide a concise summary for the following text:\n\n%s", text)
	summary, err := a.complete(ctx, prompt)
	if err != nil {
		return capability.Result{}, fmt.Errorf("summarize: %w", err)
	}
	return a.result(map[string]interface{}{"summary": summary}), nil
}

func (a *llmAgent) runEntityExtraction(ctx context.Context, params map[string]interface{}) (capability.Result, error) {
	text := stringParam(params, "text", "")
	if text == "" {
		return a.result(map[string]interface{}{"entities": []string{}}), nil
	}
	prompt := fmt.Sprintf(
		"Extract named entities (persons, locations, organizations) from the following text:\n\n%s\n\nReturn only the entities separated by commas.",
		text,
	)
	raw, err := a.complete(ctx, prompt)
	if err != nil {
		return capability.Result{}, fmt.Errorf("entity extraction: %w", err)
	}
	return a.result(map[string]interface{}{"entities": splitEntities(raw)}), nil
}

func (a *llmAgent) runTranslate(ctx context.Context, params map[string]interface{}) (capability.Result, error) {
	text := stringParam(params, "text", "")
	targetLanguage := stringParam(params, "target_language", "en")
	if text == "" {
		return a.result(map[string]interface{}{"translated_text": ""}), nil
	}
	prompt := fmt.Sprintf("Translate the following text into %s:\n\n%s", targetLanguage, text)
	translated, err := a.complete(ctx, prompt)
	if err != nil {
		return capability.Result{}, fmt.Errorf("translate: %w", err)
	}
	return a.result(map[string]interface{}{"translated_text": translated}), nil
}

func (a *llmAgent) result(payload map[string]interface{}) capability.Result {
	return capability.Result{Agent: a.name, Action: a.action, Payload: payload}
}

func (a *llmAgent) complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := a.oracle.Complete(ctx, prompt, a.cfg.LLM.MaxTokens)
	a.telemetry.RecordOracleCall(err == nil, time.Since(start))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// splitEntities turns the oracle's comma-separated response into a list:
// fragments trimmed, empties dropped, order preserved.
func splitEntities(raw string) []string {
	entities := []string{}
	for _, frag := range strings.Split(raw, ",") {
		if e := strings.TrimSpace(frag); e != "" {
			entities = append(entities, e)
		}
	}
	return entities
}

func stringParam(params map[string]interface{}, key, def string) string {
	if params == nil {
		return def
	}
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intParam(params map[string]interface{}, key string, def int) int {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64: // JSON numbers decode as float64
		return int(v)
	default:
		return def
	}
}
