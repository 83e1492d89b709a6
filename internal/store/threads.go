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

// NewThread holds the fields for creating a thread.
type NewThread struct {
	UserID         string
	Title          string
	Visibility     Visibility
	OriginThreadID string
}

// CreateThread inserts a new thread owned by the given user.
func (s *Store) CreateThread(ctx context.Context, nt NewThread) (*Thread, error) {
	now := time.Now().UTC()
	if nt.Title == "" {
		nt.Title = DefaultThreadTitle
	}
	if nt.Visibility == "" {
		nt.Visibility = VisibilityPrivate
	}

	thread := &Thread{
		ID:             uuid.NewString(),
		UserID:         nt.UserID,
		Title:          nt.Title,
		Visibility:     nt.Visibility,
		OriginThreadID: nt.OriginThreadID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.threads.InsertOne(ctx, thread); err != nil {
		return nil, fmt.Errorf("failed to insert thread: %w", err)
	}
	return thread, nil
}

// GetThread fetches a thread by id.
func (s *Store) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var thread Thread
	err := s.threads.FindOne(ctx, bson.D{{Key: "_id", Value: threadID}}).Decode(&thread)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find thread: %w", err)
	}
	return &thread, nil
}

// ListThreadsByUser returns all threads owned by the user, newest first.
func (s *Store) ListThreadsByUser(ctx context.Context, userID string) ([]Thread, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.threads.Find(ctx, bson.D{{Key: "userId", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	var threads []Thread
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, fmt.Errorf("failed to decode threads: %w", err)
	}
	return threads, nil
}

// UpdateThreadTitle renames a thread and returns the updated document.
func (s *Store) UpdateThreadTitle(ctx context.Context, threadID, title string) (*Thread, error) {
	return s.updateThread(ctx, threadID, bson.D{{Key: "title", Value: title}})
}

// UpdateThreadVisibility changes a thread's visibility and returns the
// updated document.
func (s *Store) UpdateThreadVisibility(ctx context.Context, threadID string, visibility Visibility) (*Thread, error) {
	return s.updateThread(ctx, threadID, bson.D{{Key: "visibility", Value: visibility}})
}

func (s *Store) updateThread(ctx context.Context, threadID string, set bson.D) (*Thread, error) {
	set = append(set, bson.E{Key: "updatedAt", Value: time.Now().UTC()})
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var thread Thread
	err := s.threads.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: threadID}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&thread)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}
	return &thread, nil
}

// DeleteThread removes a thread and cascades to all of its messages.
func (s *Store) DeleteThread(ctx context.Context, threadID string) (int64, error) {
	res, err := s.threads.DeleteOne(ctx, bson.D{{Key: "_id", Value: threadID}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete thread: %w", err)
	}
	if res.DeletedCount > 0 {
		if _, err := s.DeleteMessagesByThread(ctx, threadID); err != nil {
			return res.DeletedCount, err
		}
	}
	return res.DeletedCount, nil
}

// BranchFromMessage creates a new thread for the user containing copies of
// every message in the original thread up to and including the anchor
// message. The new thread records its origin.
func (s *Store) BranchFromMessage(ctx context.Context, userID, originalThreadID, anchorMessageID string) (*Thread, error) {
	original, err := s.GetThread(ctx, originalThreadID)
	if err != nil {
		return nil, err
	}
	if original.UserID != userID && original.Visibility != VisibilityPublic {
		return nil, fmt.Errorf("user %s may not branch from thread %s", userID, originalThreadID)
	}

	anchor, err := s.GetMessage(ctx, anchorMessageID)
	if err != nil {
		return nil, err
	}
	if anchor.ThreadID != originalThreadID {
		return nil, fmt.Errorf("anchor message %s does not belong to thread %s", anchorMessageID, originalThreadID)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.D{
		{Key: "threadId", Value: originalThreadID},
		{Key: "createdAt", Value: bson.D{{Key: "$lte", Value: anchor.CreatedAt}}},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages to branch: %w", err)
	}
	var toCopy []Message
	if err := cursor.All(ctx, &toCopy); err != nil {
		return nil, fmt.Errorf("failed to decode messages to branch: %w", err)
	}
	if len(toCopy) == 0 {
		return nil, fmt.Errorf("no messages found to branch from")
	}

	branch, err := s.CreateThread(ctx, NewThread{
		UserID:         userID,
		Title:          "Branch of " + original.Title,
		Visibility:     VisibilityPrivate,
		OriginThreadID: originalThreadID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	copies := make([]any, len(toCopy))
	for i, m := range toCopy {
		m.ID = uuid.NewString()
		m.ThreadID = branch.ID
		// Original creation time is preserved so ordering survives the copy.
		m.UpdatedAt = now
		copies[i] = m
	}
	if _, err := s.messages.InsertMany(ctx, copies); err != nil {
		return nil, fmt.Errorf("failed to copy messages into branch: %w", err)
	}
	return branch, nil
}
