package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NewMessage holds the fields for creating a message.
type NewMessage struct {
	ThreadID     string
	Role         Role
	Content      string
	Parts        any
	Annotations  any
	Model        string
	Status       Status
	ErrorMessage string
}

// CreateMessage inserts a new message into a thread.
func (s *Store) CreateMessage(ctx context.Context, nm NewMessage) (*Message, error) {
	now := time.Now().UTC()
	if nm.Status == "" {
		nm.Status = StatusDone
	}

	msg := &Message{
		ID:           uuid.NewString(),
		ThreadID:     nm.ThreadID,
		Role:         nm.Role,
		Content:      nm.Content,
		Parts:        nm.Parts,
		Annotations:  nm.Annotations,
		Model:        nm.Model,
		Status:       nm.Status,
		IsErrored:    nm.Status == StatusError,
		IsStopped:    nm.Status == StatusStopped,
		ErrorMessage: nm.ErrorMessage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// GetMessage fetches a message by id.
func (s *Store) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	var msg Message
	err := s.messages.FindOne(ctx, bson.D{{Key: "_id", Value: messageID}}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

// ThreadForMessage loads the thread a message belongs to. A message whose
// thread has disappeared is a data inconsistency and is reported as
// ErrThreadMissing rather than a plain not-found.
func (s *Store) ThreadForMessage(ctx context.Context, msg *Message) (*Thread, error) {
	thread, err := s.GetThread(ctx, msg.ThreadID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("message %s: %w", msg.ID, ErrThreadMissing)
	}
	return thread, err
}

// ListMessagesByThread returns a thread's messages in creation order.
func (s *Store) ListMessagesByThread(ctx context.Context, threadID string) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.D{{Key: "threadId", Value: threadID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// UpdateMessageContent replaces a message's content (and parts, when
// given) and returns the updated document.
func (s *Store) UpdateMessageContent(ctx context.Context, messageID, content string, parts any) (*Message, error) {
	set := bson.D{
		{Key: "content", Value: content},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}
	if parts != nil {
		set = append(set, bson.E{Key: "parts", Value: parts})
	}
	return s.updateMessage(ctx, messageID, set)
}

// UpdateMessageStatus transitions a message's lifecycle state. Entering the
// error state records the error text; leaving it clears it.
func (s *Store) UpdateMessageStatus(ctx context.Context, messageID string, status Status, errorMessage string) (*Message, error) {
	return s.updateMessage(ctx, messageID, statusUpdate(status, errorMessage))
}

// statusUpdate builds the field updates for a status transition. The error
// and stopped flags track the status: set on entry, cleared on exit.
func statusUpdate(status Status, errorMessage string) bson.D {
	set := bson.D{
		{Key: "status", Value: status},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}
	if status == StatusError {
		set = append(set,
			bson.E{Key: "isErrored", Value: true},
			bson.E{Key: "errorMessage", Value: errorMessage},
		)
	} else {
		set = append(set,
			bson.E{Key: "isErrored", Value: false},
			bson.E{Key: "errorMessage", Value: ""},
		)
	}
	set = append(set, bson.E{Key: "isStopped", Value: status == StatusStopped})
	return set
}

func (s *Store) updateMessage(ctx context.Context, messageID string, set bson.D) (*Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := s.messages.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: messageID}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	return &msg, nil
}

// DeleteMessage removes a single message.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) (int64, error) {
	res, err := s.messages.DeleteOne(ctx, bson.D{{Key: "_id", Value: messageID}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete message: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteMessagesByThread removes every message in a thread.
func (s *Store) DeleteMessagesByThread(ctx context.Context, threadID string) (int64, error) {
	res, err := s.messages.DeleteMany(ctx, bson.D{{Key: "threadId", Value: threadID}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete thread messages: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteTrailingMessages removes every message in the anchor's thread
// created after the anchor. The anchor itself survives.
func (s *Store) DeleteTrailingMessages(ctx context.Context, anchorMessageID string) (int64, error) {
	anchor, err := s.GetMessage(ctx, anchorMessageID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	res, err := s.messages.DeleteMany(ctx, bson.D{
		{Key: "threadId", Value: anchor.ThreadID},
		{Key: "createdAt", Value: bson.D{{Key: "$gt", Value: anchor.CreatedAt}}},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: anchor.ID}}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete trailing messages: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteMessageAndTrailing removes the anchor message and everything after
// it in the same thread.
func (s *Store) DeleteMessageAndTrailing(ctx context.Context, anchorMessageID string) (int64, error) {
	trailing, err := s.DeleteTrailingMessages(ctx, anchorMessageID)
	if err != nil {
		return trailing, err
	}
	deleted, err := s.DeleteMessage(ctx, anchorMessageID)
	return trailing + deleted, err
}
