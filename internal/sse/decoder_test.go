package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"relaychat/internal/core"
)

func TestFrameDecoder(t *testing.T) {
	input := "data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n"
	d := NewFrameDecoder(strings.NewReader(input), "openai")

	first, err := d.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first) != `{"a":1}` {
		t.Errorf("expected first payload, got %q", first)
	}

	second, err := d.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(second) != `{"b":2}` {
		t.Errorf("expected second payload, got %q", second)
	}

	if _, err := d.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at [DONE], got %v", err)
	}
	// Drained decoder stays at EOF.
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after end, got %v", err)
	}
}

// Frames must decode identically regardless of how the network splits the
// byte stream.
func TestFrameDecoderArbitraryBoundaries(t *testing.T) {
	input := "data: {\"content\":\"hello world\"}\n\ndata: {\"content\":\"second\"}\n\ndata: [DONE]\n\n"

	want := []string{`{"content":"hello world"}`, `{"content":"second"}`}

	// One byte per read is the worst possible fragmentation.
	d := NewFrameDecoder(iotest.OneByteReader(strings.NewReader(input)), "openai")
	for i, expected := range want {
		payload, err := d.Next()
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if string(payload) != expected {
			t.Errorf("frame %d: got %q, want %q", i, payload, expected)
		}
	}
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFrameDecoderSkipsNonDataLines(t *testing.T) {
	input := ": keep-alive comment\nevent: message\nid: 42\ndata: {\"a\":1}\n\n"
	d := NewFrameDecoder(strings.NewReader(input), "openai")

	payload, err := d.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"a":1}` {
		t.Errorf("got %q, want data payload", payload)
	}
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at end of input, got %v", err)
	}
}

func TestFrameDecoderEndsWithoutSentinel(t *testing.T) {
	// Some providers close the connection without sending [DONE].
	d := NewFrameDecoder(strings.NewReader("data: {\"a\":1}\n\n"), "openai")
	if _, err := d.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFrameDecoderReadError(t *testing.T) {
	readErr := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: {\"a\":1}\n\n"), iotest.ErrReader(readErr))
	d := NewFrameDecoder(r, "openai")

	if _, err := d.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := d.Next()
	var pe *core.ProxyError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProxyError, got %v", err)
	}
	if pe.Type != core.ErrorTypeUpstreamStream {
		t.Errorf("expected upstream_stream_error, got %s", pe.Type)
	}
	if pe.Provider != "openai" {
		t.Errorf("expected provider openai, got %q", pe.Provider)
	}
	if !errors.Is(err, readErr) {
		t.Errorf("expected wrapped read error")
	}
}
