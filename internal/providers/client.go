package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"relaychat/internal/core"
)

// Config holds provider client configuration.
type Config struct {
	// DefaultProvider is used when a model id carries no provider prefix.
	DefaultProvider string

	// Keys maps provider name to the server-configured API key, used when
	// the caller supplies none.
	Keys map[string]string

	// AppURL and AppName are sent as attribution headers to aggregator
	// providers (OpenRouter).
	AppURL  string
	AppName string

	// BaseURLs overrides provider endpoints, keyed by provider name.
	// Intended for tests and self-hosted compatible endpoints.
	BaseURLs map[string]string
}

// Client resolves composite model ids and issues upstream requests.
// One instance is constructed at startup around a shared *http.Client.
type Client struct {
	httpClient      *http.Client
	upstreams       map[string]Upstream
	keys            map[string]string
	defaultProvider string
}

// New creates a provider client. If httpClient is nil, http.DefaultClient
// is used.
func New(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	defaultProvider := cfg.DefaultProvider
	if defaultProvider == "" {
		defaultProvider = "openai"
	}

	base := func(name, fallback string) string {
		if u, ok := cfg.BaseURLs[name]; ok && u != "" {
			return u
		}
		return fallback
	}

	ups := []Upstream{
		openAI{baseURL: base("openai", defaultOpenAIBaseURL)},
		openRouter{
			baseURL: base("openrouter", defaultOpenRouterBaseURL),
			appURL:  cfg.AppURL,
			appName: cfg.AppName,
		},
		gemini{baseURL: base("gemini", defaultGeminiBaseURL)},
	}
	upstreams := make(map[string]Upstream, len(ups))
	for _, u := range ups {
		upstreams[u.Name()] = u
	}

	return &Client{
		httpClient:      httpClient,
		upstreams:       upstreams,
		keys:            cfg.Keys,
		defaultProvider: defaultProvider,
	}
}

// Resolve splits a composite model id ("provider/model") on the first
// separator. Ids without a separator fall back to the default provider;
// this is a deliberate lenient fallback and only warrants a warning.
// Aggregator ids like "openrouter/anthropic/claude-3-opus" keep everything
// after the first separator as the bare model name.
func (c *Client) Resolve(modelID string) (provider, bareModel string) {
	if before, after, found := strings.Cut(modelID, "/"); found {
		return strings.ToLower(before), after
	}
	slog.Warn("model id has no provider prefix, using default provider",
		"model", modelID, "default", c.defaultProvider)
	return c.defaultProvider, modelID
}

// SelectKey returns the caller-supplied key if present, else the
// server-configured key for the provider.
func (c *Client) SelectKey(provider, callerKey string) (string, error) {
	if callerKey != "" {
		return callerKey, nil
	}
	if key := c.keys[provider]; key != "" {
		return key, nil
	}
	return "", core.NewConfigurationError(provider)
}

// wireRequest is the JSON body sent to every OpenAI-compatible endpoint.
type wireRequest struct {
	Model       string         `json:"model"`
	Messages    []core.Message `json:"messages"`
	Stream      bool           `json:"stream"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
}

// StreamCompletion resolves the request's model, selects a key, and issues
// the upstream streaming call. It returns the raw SSE body (caller must
// close) and the resolved provider name. No persistence happens here.
func (c *Client) StreamCompletion(ctx context.Context, req *core.ChatRequest) (io.ReadCloser, string, error) {
	provider, bareModel := c.Resolve(req.Model)

	up, ok := c.upstreams[provider]
	if !ok {
		return nil, provider, core.NewInvalidRequestError("unsupported provider: "+provider, nil)
	}

	key, err := c.SelectKey(provider, req.APIKey)
	if err != nil {
		return nil, provider, err
	}

	body := wireRequest{
		Model:       bareModel,
		Messages:    req.Messages,
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	resp, err := c.do(ctx, up, key, body)
	if err != nil {
		return nil, provider, err
	}
	return resp.Body, provider, nil
}

// Complete issues a blocking, non-streaming completion. Used by title
// generation; the chat endpoints always stream upstream and fold locally.
func (c *Client) Complete(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	provider, bareModel := c.Resolve(req.Model)

	up, ok := c.upstreams[provider]
	if !ok {
		return nil, core.NewInvalidRequestError("unsupported provider: "+provider, nil)
	}

	key, err := c.SelectKey(provider, req.APIKey)
	if err != nil {
		return nil, err
	}

	body := wireRequest{
		Model:       bareModel,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	resp, err := c.do(ctx, up, key, body)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	var out core.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.NewUpstreamStreamError(provider, err)
	}
	return &out, nil
}

// do sends the request and verifies the initial response. A non-success
// status consumes the body verbatim into an upstream error.
func (c *Client) do(ctx context.Context, up Upstream, key string, body wireRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to marshal request: "+err.Error(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, up.ChatCompletionsURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request: "+err.Error(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	up.Decorate(httpReq, key)

	slog.Info("forwarding chat completion", "provider", up.Name(), "model", body.Model, "stream", body.Stream)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewUpstreamStreamError(up.Name(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			errBody = []byte("failed to read error response")
		}
		_ = resp.Body.Close() //nolint:errcheck
		return nil, core.NewUpstreamError(up.Name(), resp.StatusCode, errBody)
	}
	return resp, nil
}
