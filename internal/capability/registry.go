package capability

import (
	"fmt"
	"sort"
)

// ErrProviderMissing indicates a required provider is not registered.
var ErrProviderMissing = fmt.Errorf("required provider missing")

// Registry maps action names to providers. Built once at startup and
// read-only thereafter, so concurrent lookups need no locking.
type Registry struct {
	providers map[string]Provider
}

// DefaultActions is the action vocabulary verified at registry construction.
func DefaultActions() []string {
	return []string{ActionSummarize, ActionEntityExtraction, ActionTranslate, ActionSearchInternet}
}

// NewRegistry validates the bindings and ensures every required action has a
// provider. Verification happens here so a prompt can never reference an
// action that has no provider behind it.
func NewRegistry(bindings map[string]Provider, required []string) (*Registry, error) {
	reg := &Registry{providers: make(map[string]Provider, len(bindings))}
	for action, p := range bindings {
		if action == "" {
			return nil, fmt.Errorf("empty action name in registry bindings")
		}
		if p == nil {
			return nil, fmt.Errorf("nil provider bound to action %q", action)
		}
		reg.providers[action] = p
	}
	if len(required) == 0 {
		required = DefaultActions()
	}
	for _, action := range required {
		if _, ok := reg.providers[action]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrProviderMissing, action)
		}
	}
	return reg, nil
}

// Lookup returns the provider for an action. "Not found" is a skip signal
// for the executor, never a fatal condition.
func (r *Registry) Lookup(action string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[action]
	return p, ok
}

// Actions returns the registered action names in sorted order.
func (r *Registry) Actions() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.providers))
	for action := range r.providers {
		out = append(out, action)
	}
	sort.Strings(out)
	return out
}
