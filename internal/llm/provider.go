package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAssistant = "assistant"
	ProviderGemini    = "gemini"
)

// Options agrupa lo necesario para construir cualquiera de los proveedores.
type Options struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Model           string
	AssistantID     string
	PollInterval    time.Duration
	MaxPollAttempts int
	GeminiAPIKey    string
	GeminiModel     string
}

// New elige la implementacion segun Options.Provider (openai por defecto).
func New(ctx context.Context, opts Options, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("LLM_API_KEY is required for provider %q", ProviderOpenAI)
		}
		return NewChatClient(opts.BaseURL, opts.APIKey, opts.Model, logger), nil
	case ProviderAssistant:
		if opts.APIKey == "" || opts.AssistantID == "" {
			return nil, fmt.Errorf("LLM_API_KEY and LLM_ASSISTANT_ID are required for provider %q", ProviderAssistant)
		}
		return NewAssistantClient(opts.BaseURL, opts.APIKey, opts.AssistantID, opts.PollInterval, opts.MaxPollAttempts, logger), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, opts.GeminiAPIKey, opts.GeminiModel, logger)
	}
	return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
}
