package sse

import (
	"encoding/json"
	"log/slog"

	"relaychat/internal/core"
)

// wireChunk is the provider-side chunk shape. OpenAI, OpenRouter, and
// Gemini's compatible endpoint all emit this format.
type wireChunk struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
}

type wireChoice struct {
	Delta        wireDelta `json:"delta"`
	Index        int       `json:"index"`
	FinishReason *string   `json:"finish_reason"`
}

type wireDelta struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

// normalize maps a provider chunk into the canonical representation.
// Providers commonly send the role only on the first chunk of a turn, so a
// missing delta role defaults to "assistant". An absent finish reason maps
// to empty, never an error.
func normalize(wc wireChunk) core.Chunk {
	choices := make([]core.ChunkChoice, len(wc.Choices))
	for i, c := range wc.Choices {
		role := "assistant"
		if c.Delta.Role != nil && *c.Delta.Role != "" {
			role = *c.Delta.Role
		}
		finish := ""
		if c.FinishReason != nil {
			finish = *c.FinishReason
		}
		choices[i] = core.ChunkChoice{
			Index:        c.Index,
			Delta:        core.Message{Role: role, Content: c.Delta.Content},
			FinishReason: finish,
		}
	}
	return core.Chunk{
		ID:      wc.ID,
		Object:  "chat.completion.chunk",
		Created: wc.Created,
		Model:   wc.Model,
		Choices: choices,
	}
}

// ChunkStream lazily decodes frames into canonical chunks. A single
// malformed frame is logged and skipped; it must not abort an otherwise
// healthy stream.
type ChunkStream struct {
	frames *FrameDecoder
}

// NewChunkStream builds the decode pipeline over a raw upstream body.
func NewChunkStream(r *FrameDecoder) *ChunkStream {
	return &ChunkStream{frames: r}
}

// Next returns the next canonical chunk. io.EOF signals a normal end of
// stream; any other error is an upstream stream error.
func (s *ChunkStream) Next() (*core.Chunk, error) {
	for {
		payload, err := s.frames.Next()
		if err != nil {
			return nil, err
		}
		var wc wireChunk
		if err := json.Unmarshal(payload, &wc); err != nil {
			slog.Warn("skipping malformed SSE frame", "error", err, "payload", string(payload))
			continue
		}
		chunk := normalize(wc)
		return &chunk, nil
	}
}
