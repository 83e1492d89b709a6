// Package stream fans a canonical chunk sequence out to the HTTP client and
// to the accumulator that assembles the assistant message for persistence.
package stream

import (
	"io"
	"strings"

	"relaychat/internal/core"
)

// Source is a pull-based chunk sequence. Next returns io.EOF at a normal
// end of stream and any other error on upstream failure.
type Source interface {
	Next() (*core.Chunk, error)
}

// Sink delivers one chunk to the outbound destination. A write error means
// the client is gone.
type Sink func(*core.Chunk) error

// Kind classifies how a stream lifecycle ended.
type Kind int

const (
	// Done means the upstream sequence ended normally.
	Done Kind = iota
	// Stopped means the outbound consumer disconnected first. Not an
	// error: the partial content is kept.
	Stopped
	// Errored means the upstream sequence failed mid-stream.
	Errored
)

// Result is the finalized view of one stream: the assembled content, the
// latest finish reason, the chunk-reported id/model, and how it ended.
type Result struct {
	Kind         Kind
	Content      string
	FinishReason string
	ID           string
	Model        string
	Err          error
}

// accumulator assembles the assistant message as chunks flow through the
// tee. finalize fires at most once per stream lifecycle, whichever end
// condition occurs first.
type accumulator struct {
	content      strings.Builder
	finishReason string
	id           string
	model        string
	finalized    bool
	result       Result
}

func (a *accumulator) observe(c *core.Chunk) {
	if c.ID != "" {
		a.id = c.ID
	}
	if c.Model != "" {
		a.model = c.Model
	}
	for _, choice := range c.Choices {
		if choice.Delta.Content != nil {
			a.content.WriteString(*choice.Delta.Content)
		}
		if choice.FinishReason != "" {
			a.finishReason = choice.FinishReason
		}
	}
}

func (a *accumulator) finalize(kind Kind, err error) Result {
	if a.finalized {
		return a.result
	}
	a.finalized = true
	a.result = Result{
		Kind:         kind,
		Content:      a.content.String(),
		FinishReason: a.finishReason,
		ID:           a.id,
		Model:        a.model,
		Err:          err,
	}
	return a.result
}

// Tee consumes the chunk sequence exactly once and applies every chunk to
// both destinations, outbound first, before the next chunk is pulled. The
// outbound view preserves upstream order exactly; no buffering beyond the
// in-flight chunk is introduced.
type Tee struct {
	src  Source
	sink Sink
	acc  accumulator
}

// NewTee builds a tee over src writing to sink.
func NewTee(src Source, sink Sink) *Tee {
	return &Tee{src: src, sink: sink}
}

// Run drives the stream to its end and returns the finalized result.
//
// A sink failure finalizes as Stopped without accumulating the chunk that
// failed to send, so the persisted content matches what the client actually
// received. An upstream failure finalizes as Errored with the partial
// content intact; the caller surfaces the error to the client. In both
// cases the caller is responsible for closing the upstream body so no
// connection is leaked.
func (t *Tee) Run() Result {
	for {
		chunk, err := t.src.Next()
		if err == io.EOF {
			return t.acc.finalize(Done, nil)
		}
		if err != nil {
			return t.acc.finalize(Errored, err)
		}
		if err := t.sink(chunk); err != nil {
			return t.acc.finalize(Stopped, nil)
		}
		t.acc.observe(chunk)
	}
}

// Collect degenerates the pipeline into a blocking fold for non-streaming
// requests: every chunk is consumed before anything is returned.
func Collect(src Source) Result {
	var acc accumulator
	for {
		chunk, err := src.Next()
		if err == io.EOF {
			return acc.finalize(Done, nil)
		}
		if err != nil {
			return acc.finalize(Errored, err)
		}
		acc.observe(chunk)
	}
}
