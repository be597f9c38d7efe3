package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scenesmith/internal/artifact"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 120 * time.Second

	// TransportText identifies the unstructured completion path.
	TransportText = "chat_completions"
	// TransportJSON identifies the JSON-mode completion path.
	TransportJSON = "chat_completions_json"
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	// MaxRetries counts attempts after the first; zero keeps the default.
	MaxRetries int
}

// Client sends prompts to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the total attempt count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff overrides the first retry delay and the delay cap.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the timer used between attempts. Tests use it to
// observe delays without waiting.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

// NewClient constructs a client. Blank fields fall back to OpenRouter's
// endpoint and a two minute timeout.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      defaultRetryPolicy(),
	}
	if cfg.MaxRetries > 0 {
		client.retry.attempts = cfg.MaxRetries + 1
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Response is the collaborator output consumed by the pipeline.
type Response struct {
	Text         string
	Transport    string
	Model        string
	FinishReason string
	// Object is the decoded payload of a JSON-mode completion. It is nil when
	// the reply held no JSON object; Text is still returned for ingest to
	// diagnose.
	Object map[string]any
}

// Complete issues a free-text chat completion request.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	return c.complete(ctx, "llm complete", systemPrompt, userPrompt, false)
}

// CompleteJSON asks for a JSON object. Providers that ignore JSON mode often
// wrap the object in a fence or prose, so the text goes through the same
// extraction the ingest layer uses.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	resp, err := c.complete(ctx, "llm complete json", systemPrompt, userPrompt, true)
	if err != nil {
		return resp, err
	}
	if found, extractErr := artifact.ExtractStructured(resp.Text); extractErr == nil {
		resp.Object = found.Object
	}
	return resp, nil
}

func (c *Client) complete(ctx context.Context, op, systemPrompt, userPrompt string, jsonMode bool) (Response, error) {
	payload, err := c.newRequest(op, systemPrompt, userPrompt, jsonMode)
	if err != nil {
		return Response{}, err
	}
	reply, err := c.send(ctx, op, payload)
	if err != nil {
		return Response{}, err
	}
	transport := TransportText
	if jsonMode {
		transport = TransportJSON
	}
	return Response{
		Text:         reply.content,
		Transport:    transport,
		Model:        c.cfg.Model,
		FinishReason: reply.finishReason,
	}, nil
}

func (c *Client) newRequest(op, systemPrompt, userPrompt string, jsonMode bool) (chatRequest, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case c.cfg.APIKey == "":
		return chatRequest{}, fmt.Errorf("%s: api key required", op)
	case systemPrompt == "":
		return chatRequest{}, fmt.Errorf("%s: system prompt required", op)
	case userPrompt == "":
		return chatRequest{}, fmt.Errorf("%s: user prompt required", op)
	}
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = map[string]string{"type": "json_object"}
	}
	return req, nil
}

// HealthCheck sends a tiny JSON-mode prompt and expects {"ok": true} back.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if resp.Object == nil {
		return fmt.Errorf("llm health: no JSON object in reply: %s", snippet(resp.Text))
	}
	if ok, _ := resp.Object["ok"].(bool); !ok {
		return fmt.Errorf("llm health: unexpected reply: %s", snippet(resp.Text))
	}
	return nil
}
