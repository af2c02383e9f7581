package provider

import (
	"context"
	"errors"
	"os"

	"github.com/taskmux/taskmux/config"
	openai_provider "github.com/taskmux/taskmux/provider/openai"
)

// Client represents different completion oracle backends
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the completion oracle interface: a prompt plus a token budget
// in, generated text out. Implementations are stateless and safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// NewProvider creates a new oracle client based on the provided
// configuration. A missing credential fails here, at startup, not at the
// first call.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Type) {
	case OpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return openai_provider.NewClient(
			apiKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
