package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"relaychat/internal/core"
)

// sliceSource yields a fixed chunk sequence, optionally ending in an error
// instead of a normal EOF.
type sliceSource struct {
	chunks []*core.Chunk
	err    error
	pos    int
}

func (s *sliceSource) Next() (*core.Chunk, error) {
	if s.pos >= len(s.chunks) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func deltaChunk(content string) *core.Chunk {
	return &core.Chunk{
		ID:     "c1",
		Model:  "gpt-4o",
		Object: "chat.completion.chunk",
		Choices: []core.ChunkChoice{
			{Delta: core.Message{Role: "assistant", Content: &content}},
		},
	}
}

func finishChunk(reason string) *core.Chunk {
	return &core.Chunk{
		ID:      "c1",
		Choices: []core.ChunkChoice{{FinishReason: reason}},
	}
}

func TestTeeRelaysInOrderAndAccumulates(t *testing.T) {
	src := &sliceSource{chunks: []*core.Chunk{
		deltaChunk("Hel"), deltaChunk("lo"), deltaChunk(" world"), finishChunk("stop"),
	}}

	var sent []string
	sink := func(c *core.Chunk) error {
		if len(c.Choices) > 0 {
			sent = append(sent, c.Choices[0].Delta.Text())
		}
		return nil
	}

	res := NewTee(src, sink).Run()

	if res.Kind != Done {
		t.Fatalf("expected Done, got %v", res.Kind)
	}
	if res.Content != "Hello world" {
		t.Errorf("expected accumulated content, got %q", res.Content)
	}
	if res.FinishReason != "stop" {
		t.Errorf("expected finish reason stop, got %q", res.FinishReason)
	}
	if res.ID != "c1" || res.Model != "gpt-4o" {
		t.Errorf("expected chunk identity carried through, got id=%q model=%q", res.ID, res.Model)
	}
	if strings.Join(sent, "") != "Hello world" {
		t.Errorf("sink saw %v, order or content lost", sent)
	}
}

// A client disconnect after k chunks finalizes as Stopped with exactly the
// k deltas the client received; the chunk that failed to send is not kept.
func TestTeeClientDisconnect(t *testing.T) {
	src := &sliceSource{chunks: []*core.Chunk{
		deltaChunk("a"), deltaChunk("b"), deltaChunk("c"), deltaChunk("d"),
	}}

	writes := 0
	sink := func(*core.Chunk) error {
		if writes == 2 {
			return errors.New("broken pipe")
		}
		writes++
		return nil
	}

	res := NewTee(src, sink).Run()

	if res.Kind != Stopped {
		t.Fatalf("expected Stopped, got %v", res.Kind)
	}
	if res.Content != "ab" {
		t.Errorf("expected content to match what the client received, got %q", res.Content)
	}
	if res.Err != nil {
		t.Errorf("disconnect is not an error, got %v", res.Err)
	}
	// The source must not be drained past the failed write.
	if src.pos != 3 {
		t.Errorf("expected consumption to stop at the failed chunk, pos=%d", src.pos)
	}
}

func TestTeeUpstreamError(t *testing.T) {
	upstreamErr := core.NewUpstreamStreamError("openai", errors.New("connection reset"))
	src := &sliceSource{
		chunks: []*core.Chunk{deltaChunk("partial "), deltaChunk("answer")},
		err:    upstreamErr,
	}

	res := NewTee(src, func(*core.Chunk) error { return nil }).Run()

	if res.Kind != Errored {
		t.Fatalf("expected Errored, got %v", res.Kind)
	}
	if res.Content != "partial answer" {
		t.Errorf("partial content must survive the failure, got %q", res.Content)
	}
	if !errors.Is(res.Err, upstreamErr) {
		t.Errorf("expected upstream error in result, got %v", res.Err)
	}
}

func TestTeeEmptyStream(t *testing.T) {
	res := NewTee(&sliceSource{}, func(*core.Chunk) error {
		t.Fatal("sink must not be called on an empty stream")
		return nil
	}).Run()

	if res.Kind != Done || res.Content != "" {
		t.Errorf("expected empty Done result, got %+v", res)
	}
}

func TestAccumulatorFinalizesOnce(t *testing.T) {
	var acc accumulator
	acc.observe(deltaChunk("hello"))

	first := acc.finalize(Stopped, nil)
	second := acc.finalize(Errored, errors.New("late"))

	if second.Kind != Stopped || second.Err != nil {
		t.Errorf("second finalize must return the first result, got %+v", second)
	}
	if first.Content != second.Content {
		t.Errorf("finalize results diverged")
	}
}

func TestCollect(t *testing.T) {
	src := &sliceSource{chunks: []*core.Chunk{
		deltaChunk("one "), deltaChunk("two"), finishChunk("stop"),
	}}

	res := Collect(src)

	if res.Kind != Done {
		t.Fatalf("expected Done, got %v", res.Kind)
	}
	if res.Content != "one two" {
		t.Errorf("expected folded content, got %q", res.Content)
	}
	if src.pos != 3 {
		t.Errorf("expected full consumption, pos=%d", src.pos)
	}
}
