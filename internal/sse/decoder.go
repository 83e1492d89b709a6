// Package sse decodes provider server-sent-event streams into canonical
// completion chunks.
package sse

import (
	"bufio"
	"bytes"
	"io"

	"relaychat/internal/core"
)

// doneSentinel terminates an OpenAI-compatible SSE stream.
const doneSentinel = "[DONE]"

// FrameDecoder consumes a raw byte stream and yields the payload of each
// complete `data:` line. Network reads arrive at arbitrary boundaries; the
// buffered reader reassembles lines before any payload is returned, so a
// frame split across reads decodes identically to a contiguous one.
type FrameDecoder struct {
	r        *bufio.Reader
	provider string
	done     bool
}

// NewFrameDecoder wraps the raw upstream body. provider names the upstream
// in stream errors.
func NewFrameDecoder(r io.Reader, provider string) *FrameDecoder {
	return &FrameDecoder{
		r:        bufio.NewReader(r),
		provider: provider,
	}
}

// Next returns the next data payload. It returns io.EOF when the stream
// ends, either at the [DONE] sentinel or at the end of input; neither is an
// error. A network-level read failure is returned as an upstream stream
// error that the consumer can observe.
func (d *FrameDecoder) Next() ([]byte, error) {
	if d.done {
		return nil, io.EOF
	}
	for {
		line, err := d.r.ReadBytes('\n')
		if payload, ok := dataPayload(line); ok {
			if string(payload) == doneSentinel {
				d.done = true
				return nil, io.EOF
			}
			if len(payload) > 0 {
				return payload, nil
			}
		}
		if err == io.EOF {
			d.done = true
			return nil, io.EOF
		}
		if err != nil {
			d.done = true
			return nil, core.NewUpstreamStreamError(d.provider, err)
		}
	}
}

// dataPayload strips the SSE data prefix from a line, reporting whether the
// line is a data line at all. Event names, ids, and comment lines are not.
func dataPayload(line []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(line)
	payload, ok := bytes.CutPrefix(trimmed, []byte("data:"))
	if !ok {
		return nil, false
	}
	return bytes.TrimSpace(payload), true
}
