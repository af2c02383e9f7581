package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/taskmux/taskmux/config"
	"github.com/taskmux/taskmux/internal/capability"
	"github.com/taskmux/taskmux/internal/telemetry"
	"github.com/taskmux/taskmux/provider"
)

// PlaceholderText is returned when there is no aggregate to format.
const PlaceholderText = "No result to format."

// FormatterAgent renders an aggregate into a natural-language narrative. It
// runs once per request, after the concurrent fan-out has joined.
type FormatterAgent struct {
	cfg       *config.Config
	oracle    provider.Provider
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewFormatterAgent creates the final formatter provider
func NewFormatterAgent(cfg *config.Config, oracle provider.Provider, tele *telemetry.Telemetry) *FormatterAgent {
	return &FormatterAgent{
		cfg:       cfg,
		oracle:    oracle,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[FORMATTER] ", log.LstdFlags),
	}
}

func (a *FormatterAgent) Name() string { return "final_formatter" }

// Run converts params["aggregate"] into formatted text. An absent or empty
// aggregate returns the fixed placeholder with zero oracle calls.
func (a *FormatterAgent) Run(ctx context.Context, params map[string]interface{}) (capability.Result, error) {
	aggregate := extractAggregate(params)
	if len(aggregate) == 0 {
		return a.result(PlaceholderText), nil
	}

	serialized, err := json.MarshalIndent(aggregate, "", "  ")
	if err != nil {
		return capability.Result{}, fmt.Errorf("serialize aggregate: %w", err)
	}
	prompt := fmt.Sprintf(
		"Transform the following aggregated JSON result into a clear, well-structured summary in natural language:\n\n%s\n\nProvide only the final text summary without additional commentary.",
		serialized,
	)

	start := time.Now()
	out, err := a.oracle.Complete(ctx, prompt, a.cfg.LLM.MaxTokens)
	a.telemetry.RecordOracleCall(err == nil, time.Since(start))
	if err != nil {
		return capability.Result{}, fmt.Errorf("format aggregate: %w", err)
	}
	return a.result(strings.TrimSpace(out)), nil
}

func (a *FormatterAgent) result(text string) capability.Result {
	return capability.Result{
		Agent:  a.Name(),
		Action: "final_format",
		Payload: map[string]interface{}{
			"formatted_text": text,
		},
	}
}

// extractAggregate accepts both the executor's typed aggregate and a
// JSON-roundtripped generic map.
func extractAggregate(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	switch agg := params["aggregate"].(type) {
	case capability.Aggregate:
		out := make(map[string]interface{}, len(agg))
		for action, res := range agg {
			out[action] = res
		}
		return out
	case map[string]capability.Result:
		out := make(map[string]interface{}, len(agg))
		for action, res := range agg {
			out[action] = res
		}
		return out
	case map[string]interface{}:
		return agg
	default:
		return nil
	}
}
