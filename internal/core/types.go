// Package core defines the shared types and error taxonomy for the chat proxy.
package core

// Message is a single chat message, the unit of exchange with providers
// and of persistence. Content is a pointer because streaming deltas may
// legitimately carry no content (role-only first chunk, final chunk).
type Message struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// Text returns the message content, or "" when absent.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// NewMessage builds a Message with the given role and content.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: &content}
}

// ChatRequest represents the incoming chat completion request.
// APIKey is the caller-supplied provider key from the Authorization header;
// it never appears in the JSON body.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	APIKey      string    `json:"-"`
}

// LastUserMessage returns the last user-role message in the request,
// or nil if there is none.
func (r *ChatRequest) LastUserMessage() *Message {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return &r.Messages[i]
		}
	}
	return nil
}

// Chunk is the canonical, provider-independent representation of one
// incremental unit of a streaming completion. Each chunk is independent;
// accumulation is the stream tee's job, not the chunk's.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries one choice's delta within a chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Message `json:"delta"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// ChatResponse is the non-streaming chat completion response body.
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is a single completion choice in a non-streaming response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}
