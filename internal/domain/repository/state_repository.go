package repository

import (
	"context"
	"errors"
	"time"
)

// ErrStateConsumed is returned when a pending sign-in state token was already presented.
var ErrStateConsumed = errors.New("state token already consumed")

// StateRepository remembers which pending sign-in state tokens have been used.
type StateRepository interface {
	// Consume marks a state token as used. It returns ErrStateConsumed when the
	// token was consumed before. Rows are kept until expiresAt, after which the
	// token is rejected on its own and the row may be purged.
	Consume(ctx context.Context, tokenID string, expiresAt time.Time) error
}
