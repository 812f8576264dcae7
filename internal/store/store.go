package store

import (
	"context"
	"errors"

	"github.com/Mascaro101/Echo-backend/internal/models"
)

// The persistent store is a remote dependency. Services depend on these
// interfaces only; the Mongo implementation is the production backend and
// the Memory implementation backs tests and storeless development runs.

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a unique index
	// (user id or username).
	ErrDuplicate = errors.New("duplicate record")
)

// UserStore persists registered users and their published key bundles.
type UserStore interface {
	// InsertUser stores a new user. Returns ErrDuplicate if the id or
	// username is already taken.
	InsertUser(ctx context.Context, u *models.User) error

	// FindUserByID returns the user with the given short id.
	FindUserByID(ctx context.Context, id string) (*models.User, error)

	// FindUserByUsername returns the user with the given username.
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// MessageStore is the append-only record of messages between user pairs.
type MessageStore interface {
	// InsertMessage appends a message.
	InsertMessage(ctx context.Context, m *models.Message) error

	// ListConversation returns every message exchanged between a and b,
	// in either direction, ordered by creation time ascending.
	ListConversation(ctx context.Context, a, b string) ([]models.Message, error)

	// MarkSeen flips seenStatus to true on every unseen message authored
	// by targetID and addressed to askerID. Returns the number of
	// messages matched.
	MarkSeen(ctx context.Context, askerID, targetID string) (int64, error)
}

// Store bundles both collections behind one value for wiring.
type Store interface {
	UserStore
	MessageStore
}
