// Package mock provides an in-memory llm.Client for testing.
package mock

import (
	"context"
	"sync"

	"github.com/Soba101/FluxADM/internal/llm"
)

// Client satisfies llm.Client for testing.
type Client struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error)
	ReadyFunc    func(ctx context.Context) error

	// ProviderName and ModelName override the identity reported by Name and
	// Model; they default to "local" and "mock-v1".
	ProviderName string
	ModelName    string

	mu    sync.Mutex
	calls []llm.CompletionRequest
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()

	if c.CompleteFunc != nil {
		return c.CompleteFunc(ctx, req)
	}
	return llm.Completion{Content: "{}", Provider: c.Name(), Model: c.Model()}, nil
}

func (c *Client) Name() string {
	if c.ProviderName != "" {
		return c.ProviderName
	}
	return "local"
}

func (c *Client) Model() string {
	if c.ModelName != "" {
		return c.ModelName
	}
	return "mock-v1"
}

func (c *Client) Ready(ctx context.Context) error {
	if c.ReadyFunc != nil {
		return c.ReadyFunc(ctx)
	}
	return nil
}

// Calls returns a copy of all completion requests received so far.
func (c *Client) Calls() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.CompletionRequest, len(c.calls))
	copy(out, c.calls)
	return out
}

// NewClient returns a mock that replies to every prompt with the given content.
func NewClient(content string) *Client {
	return &Client{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (llm.Completion, error) {
			return llm.Completion{
				Content:          content,
				Provider:         "local",
				Model:            "mock-v1",
				PromptTokens:     100,
				CompletionTokens: 50,
				TotalTokens:      150,
			}, nil
		},
	}
}

// NewFailingClient returns a mock that always returns the given error.
func NewFailingClient(err error) *Client {
	return &Client{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (llm.Completion, error) {
			return llm.Completion{}, err
		},
		ReadyFunc: func(_ context.Context) error {
			return err
		},
	}
}

// NewTimeoutClient returns a mock that blocks until the context is cancelled.
func NewTimeoutClient() *Client {
	return &Client{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (llm.Completion, error) {
			<-ctx.Done()
			return llm.Completion{}, llm.ErrTimeout
		},
	}
}

// Compile-time check that Client implements llm.Client.
var _ llm.Client = (*Client)(nil)
