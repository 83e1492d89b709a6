package sse

import (
	"io"
	"strings"
	"testing"
)

func TestChunkStreamDecodesAndNormalizes(t *testing.T) {
	input := strings.Join([]string{
		`data: {"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		``,
		`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		``,
		`data: {"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	s := NewChunkStream(NewFrameDecoder(strings.NewReader(input), "openai"))

	first, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != "c1" || first.Model != "gpt-4o" {
		t.Errorf("unexpected chunk identity: %+v", first)
	}
	if first.Object != "chat.completion.chunk" {
		t.Errorf("expected normalized object, got %q", first.Object)
	}
	if got := first.Choices[0].Delta.Text(); got != "Hel" {
		t.Errorf("expected delta Hel, got %q", got)
	}

	second, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Providers omit the role after the first chunk; it defaults.
	if second.Choices[0].Delta.Role != "assistant" {
		t.Errorf("expected defaulted role, got %q", second.Choices[0].Delta.Role)
	}

	last, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last.Choices[0].FinishReason != "stop" {
		t.Errorf("expected finish_reason stop, got %q", last.Choices[0].FinishReason)
	}
	if last.Choices[0].Delta.Content != nil {
		t.Errorf("expected empty delta on final chunk")
	}

	if _, err := s.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

// A malformed frame is skipped; the frames around it decode in order.
func TestChunkStreamSkipsMalformedFrames(t *testing.T) {
	input := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		``,
		`data: {not json`,
		``,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	s := NewChunkStream(NewFrameDecoder(strings.NewReader(input), "openai"))

	var got []string
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, chunk.Choices[0].Delta.Text())
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b] surviving the malformed frame, got %v", got)
	}
}
