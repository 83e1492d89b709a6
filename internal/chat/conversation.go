// Package chat manages conversation state around the streaming proxy:
// thread resolution and the user/assistant message writes that bracket an
// upstream call.
package chat

import (
	"context"
	"log/slog"

	"relaychat/internal/core"
	"relaychat/internal/store"
)

// Repository is the slice of the document store the conversation manager
// needs. *store.Store satisfies it; tests substitute fakes.
type Repository interface {
	CreateThread(ctx context.Context, nt store.NewThread) (*store.Thread, error)
	CreateMessage(ctx context.Context, nm store.NewMessage) (*store.Message, error)
	UpdateMessageContent(ctx context.Context, messageID, content string, parts any) (*store.Message, error)
	UpdateMessageStatus(ctx context.Context, messageID string, status store.Status, errorMessage string) (*store.Message, error)
	UpdateThreadTitle(ctx context.Context, threadID, title string) (*store.Thread, error)
}

// DefaultNewThreadTitle is given to threads created implicitly by a chat
// completion request.
const DefaultNewThreadTitle = "New Conversation"

// Conversation resolves threads and persists the turns of a chat request.
// Turn persistence is best-effort: answering the user takes priority over
// bookkeeping, so write failures are logged and absorbed.
type Conversation struct {
	repo Repository
}

// NewConversation creates a conversation manager over the repository.
func NewConversation(repo Repository) *Conversation {
	return &Conversation{repo: repo}
}

// EnsureThread resolves the thread context for a request.
//
// A caller-supplied thread id is used as-is; existence is validated lazily
// by the message writes. With no thread id but a known user, a fresh thread
// is created. With neither, it returns "" and the request proceeds without
// persistence. That degraded mode is deliberate, not a failure.
func (c *Conversation) EnsureThread(ctx context.Context, threadID, userID string) (string, error) {
	if threadID != "" {
		return threadID, nil
	}
	if userID == "" {
		slog.Warn("no thread id and no user id: proceeding without persistence")
		return "", nil
	}

	thread, err := c.repo.CreateThread(ctx, store.NewThread{
		UserID: userID,
		Title:  DefaultNewThreadTitle,
	})
	if err != nil {
		return "", err
	}
	slog.Info("created thread for chat completion", "thread_id", thread.ID, "user_id", userID)
	return thread.ID, nil
}

// RecordUserTurn persists the last user-role message of the request before
// the upstream call begins. With no thread context or no user message it
// does nothing.
func (c *Conversation) RecordUserTurn(ctx context.Context, threadID string, req *core.ChatRequest) {
	if threadID == "" {
		return
	}
	last := req.LastUserMessage()
	if last == nil || last.Content == nil {
		return
	}

	msg, err := c.repo.CreateMessage(ctx, store.NewMessage{
		ThreadID: threadID,
		Role:     store.RoleUser,
		Content:  *last.Content,
		Model:    req.Model,
		Status:   store.StatusDone,
	})
	if err != nil {
		slog.Error("failed to save user message", "thread_id", threadID, "error", err)
		return
	}
	slog.Info("saved user message", "thread_id", threadID, "message_id", msg.ID)
}

// BeginAssistantTurn inserts the assistant message placeholder once the
// upstream stream is established, marked streaming. It returns the message
// id, or "" when there is no thread context or the write failed; a ""
// id turns the matching FinishAssistantTurn into a no-op.
func (c *Conversation) BeginAssistantTurn(ctx context.Context, threadID, model string) string {
	if threadID == "" {
		return ""
	}

	msg, err := c.repo.CreateMessage(ctx, store.NewMessage{
		ThreadID: threadID,
		Role:     store.RoleAssistant,
		Model:    model,
		Status:   store.StatusStreaming,
	})
	if err != nil {
		slog.Error("failed to create assistant placeholder", "thread_id", threadID, "error", err)
		return ""
	}
	return msg.ID
}

// FinishAssistantTurn writes the accumulated content and final status onto
// the placeholder. Exactly one call happens per stream lifecycle; the tee's
// finalize latch guarantees that upstream of here.
func (c *Conversation) FinishAssistantTurn(ctx context.Context, messageID, content string, status store.Status, errorText string) {
	if messageID == "" {
		return
	}

	if _, err := c.repo.UpdateMessageContent(ctx, messageID, content, nil); err != nil {
		slog.Error("failed to write assistant content", "message_id", messageID, "error", err)
	}
	if _, err := c.repo.UpdateMessageStatus(ctx, messageID, status, errorText); err != nil {
		slog.Error("failed to finalize assistant message",
			"message_id", messageID, "status", status, "error", err)
		return
	}
	slog.Info("finalized assistant message", "message_id", messageID, "status", status)
}

// RecordAssistantTurn persists an assistant message in one write. Used when
// the turn failed before any stream was established, so there is no
// placeholder to finish.
func (c *Conversation) RecordAssistantTurn(ctx context.Context, threadID, content, model string, status store.Status, errorText string) {
	if threadID == "" {
		return
	}

	msg, err := c.repo.CreateMessage(ctx, store.NewMessage{
		ThreadID:     threadID,
		Role:         store.RoleAssistant,
		Content:      content,
		Model:        model,
		Status:       status,
		ErrorMessage: errorText,
	})
	if err != nil {
		slog.Error("failed to save assistant message",
			"thread_id", threadID, "status", status, "error", err)
		return
	}
	slog.Info("saved assistant message",
		"thread_id", threadID, "message_id", msg.ID, "status", status)
}
