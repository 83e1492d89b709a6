package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"relaychat/internal/core"
	"relaychat/internal/store"
)

type fakeRepo struct {
	threads  []store.Thread
	messages []store.Message

	createThreadErr  error
	createMessageErr error
	updateMessageErr error
}

func (f *fakeRepo) CreateThread(_ context.Context, nt store.NewThread) (*store.Thread, error) {
	if f.createThreadErr != nil {
		return nil, f.createThreadErr
	}
	thread := store.Thread{ID: "t1", UserID: nt.UserID, Title: nt.Title}
	f.threads = append(f.threads, thread)
	return &thread, nil
}

func (f *fakeRepo) CreateMessage(_ context.Context, nm store.NewMessage) (*store.Message, error) {
	if f.createMessageErr != nil {
		return nil, f.createMessageErr
	}
	msg := store.Message{
		ID:           fmt.Sprintf("m%d", len(f.messages)+1),
		ThreadID:     nm.ThreadID,
		Role:         nm.Role,
		Content:      nm.Content,
		Model:        nm.Model,
		Status:       nm.Status,
		ErrorMessage: nm.ErrorMessage,
	}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeRepo) UpdateMessageContent(_ context.Context, messageID, content string, parts any) (*store.Message, error) {
	if f.updateMessageErr != nil {
		return nil, f.updateMessageErr
	}
	for i := range f.messages {
		if f.messages[i].ID == messageID {
			f.messages[i].Content = content
			return &f.messages[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) UpdateMessageStatus(_ context.Context, messageID string, status store.Status, errorMessage string) (*store.Message, error) {
	if f.updateMessageErr != nil {
		return nil, f.updateMessageErr
	}
	for i := range f.messages {
		if f.messages[i].ID == messageID {
			f.messages[i].Status = status
			f.messages[i].ErrorMessage = errorMessage
			return &f.messages[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) UpdateThreadTitle(_ context.Context, threadID, title string) (*store.Thread, error) {
	return &store.Thread{ID: threadID, Title: title}, nil
}

func TestEnsureThread(t *testing.T) {
	t.Run("caller thread id wins", func(t *testing.T) {
		repo := &fakeRepo{}
		conv := NewConversation(repo)

		id, err := conv.EnsureThread(context.Background(), "existing", "u1")
		if err != nil || id != "existing" {
			t.Fatalf("got (%q, %v)", id, err)
		}
		if len(repo.threads) != 0 {
			t.Error("no thread must be created when the caller supplies one")
		}
	})

	t.Run("creates thread for known user", func(t *testing.T) {
		repo := &fakeRepo{}
		conv := NewConversation(repo)

		id, err := conv.EnsureThread(context.Background(), "", "u1")
		if err != nil || id == "" {
			t.Fatalf("got (%q, %v)", id, err)
		}
		if len(repo.threads) != 1 || repo.threads[0].UserID != "u1" {
			t.Fatalf("expected thread owned by u1, got %+v", repo.threads)
		}
		if repo.threads[0].Title != DefaultNewThreadTitle {
			t.Errorf("expected default title, got %q", repo.threads[0].Title)
		}
	})

	t.Run("no user means no persistence", func(t *testing.T) {
		repo := &fakeRepo{}
		conv := NewConversation(repo)

		id, err := conv.EnsureThread(context.Background(), "", "")
		if err != nil || id != "" {
			t.Fatalf("expected degraded mode, got (%q, %v)", id, err)
		}
	})

	t.Run("create failure surfaces", func(t *testing.T) {
		repo := &fakeRepo{createThreadErr: errors.New("mongo down")}
		conv := NewConversation(repo)

		if _, err := conv.EnsureThread(context.Background(), "", "u1"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRecordUserTurn(t *testing.T) {
	repo := &fakeRepo{}
	conv := NewConversation(repo)

	req := &core.ChatRequest{
		Model: "openai/gpt-4o",
		Messages: []core.Message{
			core.NewMessage("system", "be helpful"),
			core.NewMessage("user", "first question"),
			core.NewMessage("assistant", "first answer"),
			core.NewMessage("user", "second question"),
		},
	}
	conv.RecordUserTurn(context.Background(), "t1", req)

	if len(repo.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(repo.messages))
	}
	got := repo.messages[0]
	if got.Role != store.RoleUser || got.Content != "second question" {
		t.Errorf("expected the last user message, got %+v", got)
	}
}

func TestRecordUserTurnSkipsWithoutContext(t *testing.T) {
	repo := &fakeRepo{}
	conv := NewConversation(repo)

	// No thread context.
	conv.RecordUserTurn(context.Background(), "", &core.ChatRequest{
		Messages: []core.Message{core.NewMessage("user", "hi")},
	})
	// No user message in the request.
	conv.RecordUserTurn(context.Background(), "t1", &core.ChatRequest{
		Messages: []core.Message{core.NewMessage("system", "be helpful")},
	})

	if len(repo.messages) != 0 {
		t.Errorf("expected no writes, got %d", len(repo.messages))
	}
}

// Turn persistence is best-effort: repository failures must not propagate.
func TestRecordTurnsAbsorbFailures(t *testing.T) {
	repo := &fakeRepo{
		createMessageErr: errors.New("write failed"),
		updateMessageErr: errors.New("write failed"),
	}
	conv := NewConversation(repo)

	conv.RecordUserTurn(context.Background(), "t1", &core.ChatRequest{
		Messages: []core.Message{core.NewMessage("user", "hi")},
	})
	conv.RecordAssistantTurn(context.Background(), "t1", "partial", "gpt-4o", store.StatusStopped, "")
	conv.FinishAssistantTurn(context.Background(), "m1", "partial", store.StatusStopped, "")

	if conv.BeginAssistantTurn(context.Background(), "t1", "gpt-4o") != "" {
		t.Error("failed placeholder insert must yield an empty id")
	}
}

func TestAssistantTurnLifecycle(t *testing.T) {
	repo := &fakeRepo{}
	conv := NewConversation(repo)

	id := conv.BeginAssistantTurn(context.Background(), "t1", "openai/gpt-4o")
	if id == "" {
		t.Fatal("expected placeholder message id")
	}
	if len(repo.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(repo.messages))
	}
	placeholder := repo.messages[0]
	if placeholder.Role != store.RoleAssistant || placeholder.Status != store.StatusStreaming {
		t.Errorf("unexpected placeholder: %+v", placeholder)
	}

	conv.FinishAssistantTurn(context.Background(), id, "the answer", store.StatusDone, "")

	if len(repo.messages) != 1 {
		t.Fatalf("finish must update, not insert, got %d messages", len(repo.messages))
	}
	final := repo.messages[0]
	if final.Content != "the answer" || final.Status != store.StatusDone {
		t.Errorf("unexpected final message: %+v", final)
	}
}

func TestAssistantTurnWithoutThread(t *testing.T) {
	repo := &fakeRepo{}
	conv := NewConversation(repo)

	id := conv.BeginAssistantTurn(context.Background(), "", "openai/gpt-4o")
	if id != "" {
		t.Errorf("expected no placeholder without thread context, got %q", id)
	}
	conv.FinishAssistantTurn(context.Background(), id, "discarded", store.StatusDone, "")
	if len(repo.messages) != 0 {
		t.Errorf("expected no writes, got %d", len(repo.messages))
	}
}

// Pre-stream failures have no placeholder; the errored turn is recorded in
// one write.
func TestRecordAssistantTurn(t *testing.T) {
	repo := &fakeRepo{}
	conv := NewConversation(repo)

	conv.RecordAssistantTurn(context.Background(), "t1", "", "gpt-4o", store.StatusError, "connection reset")

	if len(repo.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(repo.messages))
	}
	if repo.messages[0].Status != store.StatusError || repo.messages[0].ErrorMessage != "connection reset" {
		t.Errorf("unexpected error message: %+v", repo.messages[0])
	}
}
