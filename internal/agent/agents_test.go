package agent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/taskmux/taskmux/config"
	"github.com/taskmux/taskmux/internal/capability"
	"github.com/taskmux/taskmux/internal/search"
	"github.com/taskmux/taskmux/internal/telemetry"
)

// stubOracle returns a fixed completion and counts invocations.
type stubOracle struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (s *stubOracle) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		LLM:    config.LLMConfig{MaxTokens: 500},
		Search: config.SearchConfig{MaxResults: 5},
	}
}

func testTelemetry() *telemetry.Telemetry {
	return telemetry.NewTelemetry(config.TelemetryConfig{})
}

func TestSummarizerDegenerateInput(t *testing.T) {
	oracle := &stubOracle{response: "should not be used"}
	a := NewSummarizerAgent(testConfig(), oracle, testTelemetry())

	res, err := a.Run(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Payload["summary"]; got != "" {
		t.Fatalf("expected empty summary, got %v", got)
	}
	if oracle.calls != 0 {
		t.Fatalf("expected zero oracle calls, got %d", oracle.calls)
	}
}

func TestSummarizerTrimsOracleOutput(t *testing.T) {
	oracle := &stubOracle{response: "  A short summary.\n"}
	a := NewSummarizerAgent(testConfig(), oracle, testTelemetry())

	res, err := a.Run(context.Background(), map[string]interface{}{"text": "long text"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Payload["summary"]; got != "A short summary." {
		t.Fatalf("unexpected summary %q", got)
	}
	if oracle.calls != 1 {
		t.Fatalf("expected exactly one oracle call, got %d", oracle.calls)
	}
	if res.Agent != "summarizer" || res.Action != capability.ActionSummarize {
		t.Fatalf("result identity mismatch: %+v", res)
	}
}

func TestEntityExtractorDegenerateInput(t *testing.T) {
	oracle := &stubOracle{}
	a := NewEntityExtractorAgent(testConfig(), oracle, testTelemetry())

	res, err := a.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	entities, ok := res.Payload["entities"].([]string)
	if !ok || len(entities) != 0 {
		t.Fatalf("expected empty entity list, got %v", res.Payload["entities"])
	}
	if oracle.calls != 0 {
		t.Fatalf("expected zero oracle calls, got %d", oracle.calls)
	}
}

func TestEntityExtractorSplitsAndTrims(t *testing.T) {
	oracle := &stubOracle{response: " Steve , Mary ,, the theater ,"}
	a := NewEntityExtractorAgent(testConfig(), oracle, testTelemetry())

	res, err := a.Run(context.Background(), map[string]interface{}{"text": "Steve and Mary are going to the theater."})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"Steve", "Mary", "the theater"}
	if got := res.Payload["entities"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("entities mismatch: got %v want %v", got, want)
	}
}

func TestTranslatorDegenerateInput(t *testing.T) {
	oracle := &stubOracle{}
	a := NewTranslatorAgent(testConfig(), oracle, testTelemetry())

	res, err := a.Run(context.Background(), map[string]interface{}{"target_language": "fr"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Payload["translated_text"]; got != "" {
		t.Fatalf("expected empty translation, got %v", got)
	}
	if oracle.calls != 0 {
		t.Fatalf("expected zero oracle calls, got %d", oracle.calls)
	}
}

func TestTranslatorDefaultsToEnglish(t *testing.T) {
	oracle := &stubOracle{response: "Hello everyone!"}
	a := NewTranslatorAgent(testConfig(), oracle, testTelemetry())

	res, err := a.Run(context.Background(), map[string]interface{}{"text": "Bonjour tout le monde!"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Payload["translated_text"]; got != "Hello everyone!" {
		t.Fatalf("unexpected translation %v", got)
	}
	if len(oracle.prompts) != 1 || !strings.Contains(oracle.prompts[0], "into en:") {
		t.Fatalf("expected default target language in prompt, got %q", oracle.prompts)
	}
}

func TestTranslatorOracleFailurePropagates(t *testing.T) {
	oracle := &stubOracle{err: errors.New("service unavailable")}
	a := NewTranslatorAgent(testConfig(), oracle, testTelemetry())

	if _, err := a.Run(context.Background(), map[string]interface{}{"text": "Bonjour"}); err == nil {
		t.Fatalf("expected oracle failure to propagate")
	}
}

func TestSearchAgentUsesCorpus(t *testing.T) {
	idx, err := search.NewIndex(search.DefaultCorpus())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	a := NewSearchAgent(testConfig(), idx)

	res, err := a.Run(context.Background(), map[string]interface{}{"keywords": "openai chatgpt", "max_results": 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	items, ok := res.Payload["results"].([]map[string]interface{})
	if !ok || len(items) == 0 {
		t.Fatalf("expected corpus hits, got %v", res.Payload["results"])
	}
	if len(items) > 2 {
		t.Fatalf("max_results not honored: %d items", len(items))
	}
	for _, item := range items {
		if item["title"] == "" || item["url"] == "" || item["snippet"] == "" {
			t.Fatalf("item missing fields: %v", item)
		}
	}
}

func TestSearchAgentFallsBackToSampleItems(t *testing.T) {
	idx, err := search.NewIndex(nil)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	a := NewSearchAgent(testConfig(), idx)

	res, err := a.Run(context.Background(), map[string]interface{}{"keywords": "zzz-nothing-matches", "max_results": float64(1)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	items := res.Payload["results"].([]map[string]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 fallback item, got %d", len(items))
	}
	if !strings.Contains(items[0]["title"].(string), "zzz-nothing-matches") {
		t.Fatalf("fallback item should mention keywords: %v", items[0])
	}
}

func TestFormatterPlaceholderWithoutAggregate(t *testing.T) {
	oracle := &stubOracle{response: "should not be used"}
	a := NewFormatterAgent(testConfig(), oracle, testTelemetry())

	for _, params := range []map[string]interface{}{
		nil,
		{},
		{"aggregate": capability.Aggregate{}},
		{"aggregate": map[string]interface{}{}},
	} {
		res, err := a.Run(context.Background(), params)
		if err != nil {
			t.Fatalf("Run(%v): %v", params, err)
		}
		if got := res.Payload["formatted_text"]; got != PlaceholderText {
			t.Fatalf("expected placeholder, got %v", got)
		}
	}
	if oracle.calls != 0 {
		t.Fatalf("expected zero oracle calls, got %d", oracle.calls)
	}
}

func TestFormatterIsIdempotentWithDeterministicOracle(t *testing.T) {
	oracle := &stubOracle{response: "The text was translated to English."}
	a := NewFormatterAgent(testConfig(), oracle, testTelemetry())

	agg := capability.Aggregate{
		capability.ActionTranslate: {
			Agent:   "translator",
			Action:  capability.ActionTranslate,
			Payload: map[string]interface{}{"translated_text": "Hello everyone!"},
		},
	}
	first, err := a.Run(context.Background(), map[string]interface{}{"aggregate": agg})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := a.Run(context.Background(), map[string]interface{}{"aggregate": agg})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !reflect.DeepEqual(first.Payload, second.Payload) {
		t.Fatalf("formatter not idempotent: %v vs %v", first.Payload, second.Payload)
	}
	if oracle.calls != 2 {
		t.Fatalf("expected one oracle call per invocation, got %d", oracle.calls)
	}
	if !strings.Contains(oracle.prompts[0], `"translated_text": "Hello everyone!"`) {
		t.Fatalf("aggregate not serialized into prompt: %q", oracle.prompts[0])
	}
}

func TestNewAgentsBindsEveryAction(t *testing.T) {
	idx, err := search.NewIndex(search.DefaultCorpus())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	bindings, err := NewAgents(testConfig(), &stubOracle{}, testTelemetry(), idx)
	if err != nil {
		t.Fatalf("NewAgents: %v", err)
	}
	reg, err := capability.NewRegistry(bindings, nil)
	if err != nil {
		t.Fatalf("NewRegistry over NewAgents bindings: %v", err)
	}
	if got := len(reg.Actions()); got != 4 {
		t.Fatalf("expected 4 registered actions, got %d", got)
	}
}
