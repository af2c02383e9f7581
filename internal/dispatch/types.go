package dispatch

// Task is one planned unit of work: an action name plus free-form params.
// Produced only by the planner from oracle output, consumed exactly once by
// the executor.
type Task struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Plan is the ordered task list derived from a natural-language request.
// Ordering carries no semantic meaning: execution is concurrent. An empty
// task list is the fail-open fallback state.
type Plan struct {
	Tasks []Task `json:"tasks"`
}
