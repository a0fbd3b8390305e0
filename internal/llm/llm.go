// Package llm talks to generative-language providers.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/teachassist/internal/model"
)

// Default sampling parameters applied when a caller leaves them unset.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.95
	DefaultTopK        = 40
	DefaultMaxTokens   = 1024
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Completer returns the single best text completion for an ordered list of messages.
// Implementations make exactly one attempt; retrying is up to the caller.
type Completer interface {
	Complete(ctx context.Context, messages []model.ChatMessage, opts model.CompletionOptions) (string, error)
}

// KeySource supplies the generation-service key at call time, satisfied by *credentials.Provider.
type KeySource interface {
	GenKey() string
}

// Settings configures a Completer.
type Settings struct {
	Provider string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// New creates the Completer for the configured provider.
func New(keys KeySource, s Settings) (Completer, error) {
	switch s.Provider {
	case ProviderGemini, "":
		return NewGemini(keys, s.BaseURL, s.Model, s.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAI(keys, s.BaseURL, s.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", s.Provider)
	}
}

type sampling struct {
	temperature float64
	topP        float64
	topK        int
	maxTokens   int
}

func resolveOptions(opts model.CompletionOptions) sampling {
	s := sampling{
		temperature: DefaultTemperature,
		topP:        DefaultTopP,
		topK:        DefaultTopK,
		maxTokens:   DefaultMaxTokens,
	}
	if opts.Temperature != nil {
		s.temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		s.maxTokens = *opts.MaxTokens
	}
	return s
}

// Temperature is a convenience for building CompletionOptions.
func Temperature(t float64) model.CompletionOptions {
	return model.CompletionOptions{Temperature: &t}
}
