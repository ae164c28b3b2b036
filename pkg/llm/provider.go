package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider produces a single completion for a prompt. Implementations wrap
// one upstream text-generation API and do not retry failures; callers own
// any retry policy.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request describes a completion request.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// APIError is returned for any non-2xx upstream response.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, body)
}
