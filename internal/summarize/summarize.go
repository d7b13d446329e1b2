// Package summarize provides LLM-backed implementations of digest.Summarizer.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deusflow/newswatch/internal/digest"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// defaultMaxTokens bounds the digest length for providers that require a limit.
const defaultMaxTokens = 2048

var ErrMissingAPIKey = errors.New("summarize: api key is required")

type Config struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL overrides the provider endpoint. Only the Anthropic and
	// OpenAI providers honour it.
	BaseURL string
}

// Client is a Summarizer that holds provider resources until Close.
type Client interface {
	digest.Summarizer
	Close() error
}

// New builds the client for cfg.Provider.
func New(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGemini(ctx, cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("summarize: unknown provider %q", cfg.Provider)
	}
}

func maxTokens(cfg Config) int {
	if cfg.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return cfg.MaxTokens
}
