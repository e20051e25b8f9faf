package state

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the user has no session.
var ErrNotFound = errors.New("state: session not found")

// Store persists one session value per user.
type Store[S any] interface {
	Load(ctx context.Context, userID int64) (S, error)
	Save(ctx context.Context, userID int64, session S) error
	Delete(ctx context.Context, userID int64) error
	// Count reports the number of live sessions.
	Count(ctx context.Context) (int, error)
}
