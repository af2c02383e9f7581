package capability

import (
	"context"
	"encoding/json"
)

// Supported action names. The registry is built over these at startup; the
// planner enumerates them in its prompt so the oracle stays inside the known
// vocabulary.
const (
	ActionSummarize        = "summarize"
	ActionEntityExtraction = "entity_extraction"
	ActionTranslate        = "translate"
	ActionSearchInternet   = "search_internet"
)

// Provider is a named unit exposing one supported action. Run must not fail
// for empty input: each provider defines an explicit degenerate Result when
// required params are absent or empty.
type Provider interface {
	Name() string
	Run(ctx context.Context, params map[string]interface{}) (Result, error)
}

// Result is the outcome of a single provider invocation. Immutable once
// returned; Action matches the originating task's action.
type Result struct {
	Agent   string
	Action  string
	Payload map[string]interface{}
}

// MarshalJSON flattens the payload fields beside agent and action, so a
// translate result serializes as
// {"agent":"translator","action":"translate","translated_text":...}.
func (r Result) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Payload)+2)
	for k, v := range r.Payload {
		flat[k] = v
	}
	flat["agent"] = r.Agent
	flat["action"] = r.Action
	return json.Marshal(flat)
}

// Aggregate maps an action name to the last-completed Result for that action.
// If a plan carries two tasks with the same action, the later-arriving result
// overwrites the earlier one; this is accepted, not masked.
type Aggregate map[string]Result
