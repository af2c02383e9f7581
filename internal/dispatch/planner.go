package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/taskmux/taskmux/config"
	"github.com/taskmux/taskmux/internal/telemetry"
	"github.com/taskmux/taskmux/provider"
)

//go:embed plan_schema.json
var planSchemaJSON string

var (
	compileOnce sync.Once
	planSchema  *jsonschema.Schema
	compileErr  error
)

// PlanSchema returns the compiled JSON Schema for oracle plan output.
func PlanSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("plan_schema.json", strings.NewReader(planSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("plan_schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile plan schema: %w", err)
			return
		}
		planSchema = schema
	})
	return planSchema, compileErr
}

// Planner converts a natural-language request into a Plan via the completion
// oracle. Malformed oracle output degrades to an empty plan (fail-open);
// only oracle transport failures surface as errors.
type Planner struct {
	cfg       *config.Config
	oracle    provider.Provider
	actions   []string
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewPlanner creates a new planner constrained to the given action
// vocabulary (the registry's registered actions).
func NewPlanner(cfg *config.Config, oracle provider.Provider, actions []string, tele *telemetry.Telemetry) *Planner {
	return &Planner{
		cfg:       cfg,
		oracle:    oracle,
		actions:   actions,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Parse converts the user's request into a Plan. The returned error is only
// ever an oracle failure; any malformed plan text yields Plan{} and nil.
func (p *Planner) Parse(ctx context.Context, request string) (Plan, error) {
	prompt := p.createPlanningPrompt(request)

	start := time.Now()
	response, err := p.oracle.Complete(ctx, prompt, p.cfg.LLM.MaxTokens)
	p.telemetry.RecordOracleCall(err == nil, time.Since(start))
	if err != nil {
		return Plan{}, fmt.Errorf("failed to generate plan: %w", err)
	}

	plan, err := parsePlanText(response)
	if err != nil {
		p.logger.Printf("plan rejected (%v), falling back to an empty plan", err)
		p.telemetry.RecordPlanFallback()
		return Plan{}, nil
	}
	return plan, nil
}

func (p *Planner) createPlanningPrompt(request string) string {
	return fmt.Sprintf(`Analyze the following request and propose an action plan as a JSON structure using the following strict format:

{
  "tasks": [
    { "action": "<action_name>", "params": { <parameters> } },
    ...
  ]
}

Actions: [%s]

Only return the JSON without any additional explanatory text.

Request to analyze:
"%s"
`, strings.Join(p.actions, ", "), request)
}

// parsePlanText validates the trimmed oracle output strictly against the
// plan schema. Anything that is not exactly a conforming JSON object is
// rejected, never repaired.
func parsePlanText(response string) (Plan, error) {
	raw := strings.TrimSpace(response)
	if raw == "" {
		return Plan{}, fmt.Errorf("empty response")
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Plan{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return Plan{}, fmt.Errorf("trailing content after JSON object")
	}

	schema, err := PlanSchema()
	if err != nil {
		return Plan{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return Plan{}, fmt.Errorf("plan does not match schema: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	for i := range plan.Tasks {
		if plan.Tasks[i].Params == nil {
			plan.Tasks[i].Params = map[string]interface{}{}
		}
	}
	return plan, nil
}
