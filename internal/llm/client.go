// Package llm provides a client for OpenAI-compatible chat completion
// endpoints, such as a locally hosted LM Studio or vLLM server.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for model gateway failures.
var (
	ErrServiceUnavailable = errors.New("model service unavailable")
	ErrTimeout            = errors.New("model call timeout")
	ErrMalformedResponse  = errors.New("malformed model response")
)

// systemPersona is sent as the system message on every completion call.
const systemPersona = "You are an expert IT change management analyst with deep " +
	"knowledge of ITIL processes, risk assessment, and quality management."

// Client is the interface for requesting chat completions. Name and Model
// identify the provider and configured model for attempt auditing.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Ready(ctx context.Context) error
	Name() string
	Model() string
}

// CompletionRequest defines parameters for a single completion call.
// Zero-valued fields fall back to the client's configured defaults.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// providerName identifies the locally hosted chat-completions endpoint in
// attempt records and provenance fields.
const providerName = "local"

// Completion is the reply from the model endpoint.
type Completion struct {
	Content          string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Options configure an HTTPClient.
type Options struct {
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// HTTPClient implements Client against the OpenAI chat-completions HTTP API.
type HTTPClient struct {
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewHTTPClient creates a new chat-completions HTTP client.
func NewHTTPClient(opts Options) *HTTPClient {
	return &HTTPClient{
		endpoint:    opts.Endpoint,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		client:      &http.Client{Timeout: opts.Timeout},
	}
}

func (c *HTTPClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	body := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPersona},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      false,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Completion{}, fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/chat/completions", c.endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Completion{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Completion{}, fmt.Errorf("%w: decoding body: %v", ErrMalformedResponse, err)
	}

	if len(chatResp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	return Completion{
		Content:          chatResp.Choices[0].Message.Content,
		Provider:         providerName,
		Model:            c.model,
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
	}, nil
}

// Name reports the provider identity used in provenance fields.
func (c *HTTPClient) Name() string { return providerName }

// Model reports the configured model identifier.
func (c *HTTPClient) Model() string { return c.model }

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/v1/models", c.endpoint)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: endpoint not ready (status %d)", ErrServiceUnavailable, resp.StatusCode)
	}

	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// --- Chat completion wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
