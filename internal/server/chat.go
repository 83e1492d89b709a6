package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"relaychat/internal/core"
	"relaychat/internal/observability"
	"relaychat/internal/sse"
	"relaychat/internal/store"
	"relaychat/internal/stream"
)

// Headers carrying conversation context on the chat completions route. The
// route is OpenAI-compatible, so conversation state rides in headers rather
// than the body.
const (
	headerThreadID = "X-Thread-ID"
	headerUserID   = "X-User-ID"
)

// handleChatCompletions is the proxy core: forward the request upstream,
// relay the token stream to the client, and persist both sides of the turn.
func (s *Server) handleChatCompletions(c echo.Context) error {
	ctx := c.Request().Context()

	var req core.ChatRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return writeError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Model == "" {
		return writeError(c, core.NewInvalidRequestError("model is required", nil))
	}
	if len(req.Messages) == 0 {
		return writeError(c, core.NewInvalidRequestError("messages must not be empty", nil))
	}
	// The bearer token on this route is a provider API key, not an app
	// session token.
	req.APIKey = bearerToken(c.Request())

	userID := c.Request().Header.Get(headerUserID)

	if s.limiter != nil {
		identifier := userID
		if identifier == "" {
			identifier = c.RealIP()
		}
		res, err := s.limiter.Limit(ctx, identifier)
		if err != nil {
			// Rate limiting is advisory: a broken limiter must not take
			// the chat path down with it.
			slog.Warn("rate limiter unavailable, allowing request", "error", err)
		} else {
			c.Response().Header().Set("X-RateLimit-Limit", fmt.Sprint(res.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", fmt.Sprint(res.Remaining))
			c.Response().Header().Set("X-RateLimit-Reset", fmt.Sprint(res.Reset.Unix()))
			if !res.Allowed {
				observability.RateLimitRejections.Inc()
				return writeError(c, core.NewRateLimitError("rate limit exceeded, try again later"))
			}
		}
	}

	threadID, err := s.conv.EnsureThread(ctx, c.Request().Header.Get(headerThreadID), userID)
	if err != nil {
		return writeError(c, err)
	}
	if threadID != "" {
		c.Response().Header().Set(headerThreadID, threadID)
	}

	// The user turn is written before the upstream call so it survives even
	// if the completion fails.
	s.conv.RecordUserTurn(ctx, threadID, &req)

	body, provider, err := s.providers.StreamCompletion(ctx, &req)
	if err != nil {
		observability.UpstreamErrors.WithLabelValues(provider).Inc()
		s.conv.RecordAssistantTurn(persistCtx(ctx), threadID, "", req.Model, store.StatusError, err.Error())
		return writeError(c, err)
	}
	defer func() {
		_ = body.Close() //nolint:errcheck
	}()

	chunks := sse.NewChunkStream(sse.NewFrameDecoder(body, provider))

	// The assistant placeholder exists while the stream is live, marked
	// streaming, and is finalized once per lifecycle.
	assistantID := s.conv.BeginAssistantTurn(ctx, threadID, req.Model)

	if !req.Stream {
		return s.completeBlocking(c, chunks, assistantID, &req)
	}
	return s.completeStreaming(c, chunks, assistantID)
}

// completeStreaming relays chunks as server-sent events while accumulating
// the assistant message, then finalizes the assistant turn exactly once.
func (s *Server) completeStreaming(c echo.Context, chunks *sse.ChunkStream, assistantID string) error {
	observability.StreamsStarted.Inc()

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sink := func(chunk *core.Chunk) error {
		data, err := json.Marshal(chunk)
		if err != nil {
			return nil
		}
		if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", data); err != nil {
			return err
		}
		c.Response().Flush()
		return nil
	}

	res := stream.NewTee(chunks, sink).Run()

	status := store.StatusDone
	errText := ""
	switch res.Kind {
	case stream.Done:
		fmt.Fprint(c.Response(), "data: [DONE]\n\n")
		c.Response().Flush()
	case stream.Stopped:
		status = store.StatusStopped
	case stream.Errored:
		if c.Request().Context().Err() != nil {
			// The upstream read failed because the client went away and
			// cancelled the request context. That is a disconnect, not an
			// upstream fault.
			status = store.StatusStopped
		} else {
			status = store.StatusError
			errText = res.Err.Error()
			writeSSEError(c, res.Err)
		}
	}

	observability.StreamsFinalized.WithLabelValues(string(status)).Inc()

	s.conv.FinishAssistantTurn(persistCtx(c.Request().Context()), assistantID, res.Content, status, errText)
	return nil
}

// completeBlocking folds the upstream stream into one chat.completion
// response. Persistence happens before the response is written.
func (s *Server) completeBlocking(c echo.Context, chunks *sse.ChunkStream, assistantID string, req *core.ChatRequest) error {
	res := stream.Collect(chunks)

	if res.Kind == stream.Errored {
		s.conv.FinishAssistantTurn(persistCtx(c.Request().Context()), assistantID, res.Content, store.StatusError, res.Err.Error())
		return writeError(c, res.Err)
	}

	s.conv.FinishAssistantTurn(persistCtx(c.Request().Context()), assistantID, res.Content, store.StatusDone, "")

	model := res.Model
	if model == "" {
		model = req.Model
	}
	id := res.ID
	if id == "" {
		id = "chatcmpl-" + uuid.NewString()
	}
	finish := res.FinishReason
	if finish == "" {
		finish = "stop"
	}
	return c.JSON(http.StatusOK, core.ChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []core.Choice{{
			Index:        0,
			Message:      core.NewMessage("assistant", res.Content),
			FinishReason: finish,
		}},
	})
}

// writeSSEError surfaces a mid-stream failure as a terminal error event.
// The HTTP status is already committed at this point.
func writeSSEError(c echo.Context, err error) {
	var payload map[string]interface{}
	if pe, ok := err.(*core.ProxyError); ok {
		payload = pe.ToJSON()
	} else {
		payload = map[string]interface{}{
			"error": map[string]interface{}{
				"type":    core.ErrorTypeUpstreamStream,
				"message": err.Error(),
			},
		}
	}
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return
	}
	fmt.Fprintf(c.Response(), "data: %s\n\n", data)
	c.Response().Flush()
}

// persistCtx detaches the final persistence write from request
// cancellation: a disconnected client still gets its partial message saved.
func persistCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
