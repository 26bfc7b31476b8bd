package analysis

import (
	"fmt"
	"time"
)

// ProviderOptions holds per-provider client settings.
type ProviderOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewCompleter creates a completion client for the named provider.
func NewCompleter(provider string, opts ProviderOptions) (Completer, error) {
	switch provider {
	case "anthropic":
		return newAnthropicCompleter(opts)
	case "openai":
		return newOpenAICompleter(opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
