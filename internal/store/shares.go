package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ErrShareExists is returned when a share token is already taken.
var ErrShareExists = errors.New("share token already exists")

// CreateShare creates a partial-share link for a thread, exposing messages
// up to and including the anchor. The caller must own the thread. When
// token is empty a fresh one is generated.
func (s *Store) CreateShare(ctx context.Context, token, threadID, userID, sharedUpToMessageID string) (*PartialShare, error) {
	thread, err := s.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.UserID != userID {
		return nil, fmt.Errorf("user %s does not own thread %s", userID, threadID)
	}
	if _, err := s.GetMessage(ctx, sharedUpToMessageID); err != nil {
		return nil, err
	}

	if token == "" {
		token = generateToken()
	} else {
		err := s.shares.FindOne(ctx, bson.D{{Key: "_id", Value: token}}).Err()
		if err == nil {
			return nil, ErrShareExists
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to check share token: %w", err)
		}
	}

	now := time.Now().UTC()
	share := &PartialShare{
		Token:               token,
		ThreadID:            threadID,
		UserID:              userID,
		SharedUpToMessageID: sharedUpToMessageID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if _, err := s.shares.InsertOne(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to insert share: %w", err)
	}
	return share, nil
}

// GetShare fetches a share link by token.
func (s *Store) GetShare(ctx context.Context, token string) (*PartialShare, error) {
	var share PartialShare
	err := s.shares.FindOne(ctx, bson.D{{Key: "_id", Value: token}}).Decode(&share)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find share: %w", err)
	}
	return &share, nil
}

// ListSharesByUser returns the share links a user has created.
func (s *Store) ListSharesByUser(ctx context.Context, userID string) ([]PartialShare, error) {
	cursor, err := s.shares.Find(ctx, bson.D{{Key: "userId", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	var shares []PartialShare
	if err := cursor.All(ctx, &shares); err != nil {
		return nil, fmt.Errorf("failed to decode shares: %w", err)
	}
	return shares, nil
}

// DeleteShare removes a share link. The delete is scoped to the owning
// user so a token alone is not enough to revoke someone else's link.
func (s *Store) DeleteShare(ctx context.Context, token, userID string) (int64, error) {
	res, err := s.shares.DeleteOne(ctx, bson.D{
		{Key: "_id", Value: token},
		{Key: "userId", Value: userID},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete share: %w", err)
	}
	return res.DeletedCount, nil
}

// SharedThreadData is the public view of a partial share: the thread and
// the messages up to the shared anchor.
type SharedThreadData struct {
	Thread   *Thread   `json:"thread"`
	Messages []Message `json:"messages"`
}

// GetSharedThreadData resolves a share token into its thread and the
// messages covered by the share. A share whose thread has disappeared is
// reported as a data inconsistency.
func (s *Store) GetSharedThreadData(ctx context.Context, token string) (*SharedThreadData, error) {
	share, err := s.GetShare(ctx, token)
	if err != nil {
		return nil, err
	}

	thread, err := s.GetThread(ctx, share.ThreadID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("share %s: thread %s: %w", token, share.ThreadID, ErrThreadMissing)
	}
	if err != nil {
		return nil, err
	}

	anchor, err := s.GetMessage(ctx, share.SharedUpToMessageID)
	if err != nil {
		return nil, err
	}

	all, err := s.ListMessagesByThread(ctx, share.ThreadID)
	if err != nil {
		return nil, err
	}
	var visible []Message
	for _, m := range all {
		if m.CreatedAt.After(anchor.CreatedAt) {
			break
		}
		visible = append(visible, m)
	}
	return &SharedThreadData{Thread: thread, Messages: visible}, nil
}

// generateToken creates an identifier for share links.
func generateToken() string {
	return uuid.NewString()
}
