package capability

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type staticProvider struct{ name string }

func (p staticProvider) Name() string { return p.name }
func (p staticProvider) Run(ctx context.Context, params map[string]interface{}) (Result, error) {
	return Result{Agent: p.name, Action: p.name, Payload: map[string]interface{}{}}, nil
}

func fullBindings() map[string]Provider {
	return map[string]Provider{
		ActionSummarize:        staticProvider{"summarizer"},
		ActionEntityExtraction: staticProvider{"entity_extraction"},
		ActionTranslate:        staticProvider{"translator"},
		ActionSearchInternet:   staticProvider{"search_internet"},
	}
}

func TestNewRegistryEnforcesRequiredActions(t *testing.T) {
	bindings := fullBindings()
	delete(bindings, ActionTranslate)
	if _, err := NewRegistry(bindings, nil); !errors.Is(err, ErrProviderMissing) {
		t.Fatalf("expected ErrProviderMissing, got %v", err)
	}
}

func TestNewRegistryRejectsNilProvider(t *testing.T) {
	bindings := fullBindings()
	bindings[ActionTranslate] = nil
	if _, err := NewRegistry(bindings, nil); err == nil {
		t.Fatalf("expected nil provider to be rejected")
	}
}

func TestLookupReturnsSkipSignalForUnknownAction(t *testing.T) {
	reg, err := NewRegistry(fullBindings(), nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, ok := reg.Lookup("make_coffee"); ok {
		t.Fatalf("expected unknown action to report not found")
	}
	p, ok := reg.Lookup(ActionSummarize)
	if !ok || p.Name() != "summarizer" {
		t.Fatalf("expected summarizer, got %v %v", p, ok)
	}
}

func TestActionsAreSorted(t *testing.T) {
	reg, err := NewRegistry(fullBindings(), nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	want := []string{ActionEntityExtraction, ActionSearchInternet, ActionSummarize, ActionTranslate}
	if got := reg.Actions(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Actions mismatch: got %v want %v", got, want)
	}
}

func TestResultMarshalFlattensPayload(t *testing.T) {
	res := Result{
		Agent:  "translator",
		Action: ActionTranslate,
		Payload: map[string]interface{}{
			"translated_text": "Hello everyone!",
		},
	}
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]interface{}{
		"agent":           "translator",
		"action":          "translate",
		"translated_text": "Hello everyone!",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("flattened result mismatch: got %v want %v", got, want)
	}
}
