package domain

import (
	"context"
	"time"
)

// SessionRepository defines the data-access contract for session operations.
// Implementations live in internal/core/repository (Core layer).
//
// Start, End and Cancel are conditional status updates: each succeeds only
// when the persisted status still matches the transition's source state,
// so two concurrent callers can never both win. They return false (without
// error) when the guard did not match.
type SessionRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, s *Session) error

	// GetByID returns the session with the given id.
	// Returns (nil, nil) when no session is found.
	GetByID(ctx context.Context, id string) (*Session, error)

	// ListByOwner returns all sessions created by the given owner,
	// newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Session, error)

	// Start moves the session CREATED -> ACTIVE and sets start_time.
	Start(ctx context.Context, id string, now time.Time) (bool, error)

	// End moves the session ACTIVE -> ENDED and sets end_time.
	End(ctx context.Context, id string, now time.Time) (bool, error)

	// Cancel moves the session from CREATED or ACTIVE to CANCELLED.
	Cancel(ctx context.Context, id string, now time.Time) (bool, error)
}
