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

// EnsureUser returns the user with the given external id, creating one if
// none exists.
func (s *Store) EnsureUser(ctx context.Context, externalID string) (*User, error) {
	existing, err := s.FindUserByExternalID(ctx, externalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	user := &User{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		// Lost a race with a concurrent insert; the unique index on
		// externalId guarantees the winner is the one to return.
		if mongo.IsDuplicateKeyError(err) {
			return s.FindUserByExternalID(ctx, externalID)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// FindUserByExternalID looks a user up by the auth provider's id.
func (s *Store) FindUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	var user User
	err := s.users.FindOne(ctx, bson.D{{Key: "externalId", Value: externalID}}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}
