package llm

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

const (
	// EnvGogoMode is the environment variable name for mode selection.
	EnvGogoMode = "GOGO_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// Options selects and configures the client built by NewLLMClient.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Mock    bool
}

// NewLLMClient returns a MockClient when mock mode is forced or no API key
// is configured, otherwise an OpenAIClient.
func NewLLMClient(opts Options, logger *bolt.Logger) LLMClient {
	if opts.Mock {
		logger.Info().Msg("GOGO_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}
	if opts.APIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY not set, using mock LLM client")
		return NewMockClient()
	}
	return NewOpenAIClient(opts.APIKey, opts.BaseURL, opts.Timeout)
}
