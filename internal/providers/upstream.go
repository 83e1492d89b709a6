// Package providers resolves composite model identifiers and issues chat
// completion requests against the configured AI providers.
package providers

import (
	"net/http"
)

// Upstream describes one provider endpoint. Each provider kind carries its
// own header decoration so that provider-specific behavior lives here and
// not in string comparisons scattered through the request path.
type Upstream interface {
	// Name returns the provider identifier used in composite model ids.
	Name() string

	// ChatCompletionsURL returns the absolute chat-completions endpoint.
	ChatCompletionsURL() string

	// Decorate applies authentication and provider-specific headers.
	Decorate(req *http.Request, apiKey string)
}

// openAI talks to the OpenAI chat completions API.
type openAI struct {
	baseURL string
}

func (openAI) Name() string { return "openai" }

func (p openAI) ChatCompletionsURL() string {
	return p.baseURL + "/chat/completions"
}

func (openAI) Decorate(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

// openRouter is an aggregator; it receives attribution headers identifying
// the calling application in addition to bearer auth.
type openRouter struct {
	baseURL string
	appURL  string
	appName string
}

func (openRouter) Name() string { return "openrouter" }

func (p openRouter) ChatCompletionsURL() string {
	return p.baseURL + "/chat/completions"
}

func (p openRouter) Decorate(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("HTTP-Referer", p.appURL)
	req.Header.Set("X-Title", p.appName)
}

// gemini uses Google's OpenAI-compatible endpoint, so the wire format is
// identical to OpenAI's and only the URL differs.
type gemini struct {
	baseURL string
}

func (gemini) Name() string { return "gemini" }

func (p gemini) ChatCompletionsURL() string {
	return p.baseURL + "/chat/completions"
}

func (gemini) Decorate(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	// Gemini's OpenAI-compatible surface.
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)
