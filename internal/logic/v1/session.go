package v1

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/attendance-service/internal/core/domain"
	"github.com/duynhne/attendance-service/middleware"
)

// SessionManager owns the session lifecycle. It depends on the repository
// interface (injected via constructor) and MUST NOT access the database
// or SQL directly.
//
// Transitions are serialized by the repository's conditional updates:
// when two callers race on the same move, exactly one wins and the other
// gets ErrInvalidTransition.
type SessionManager struct {
	sessions domain.SessionRepository
}

// NewSessionManager creates a new SessionManager with the given repository.
func NewSessionManager(sessions domain.SessionRepository) *SessionManager {
	return &SessionManager{sessions: sessions}
}

// Create creates a session in status CREATED, owned by ownerID. The
// proximity token is a short random value broadcast alongside the session
// as an independent presence signal.
func (m *SessionManager) Create(ctx context.Context, ownerID, courseCode, roomNumber string) (*domain.Session, error) {
	ctx, span := middleware.StartSpan(ctx, "session.create", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("course_code", courseCode),
	))
	defer span.End()

	now := time.Now().UTC()
	session := &domain.Session{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		CourseCode:     courseCode,
		RoomNumber:     roomNumber,
		ProximityToken: newProximityToken(),
		Status:         domain.StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("insert session: %w", err)
	}

	span.SetAttributes(attribute.String("session.id", session.ID))
	span.AddEvent("session.created")

	return session, nil
}

// Get returns the session with the given id. It is a pure read and is
// always safe to call concurrently.
func (m *SessionManager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session %q: %w", sessionID, err)
	}
	if session == nil {
		return nil, fmt.Errorf("lookup session %q: %w", sessionID, ErrSessionNotFound)
	}
	return session, nil
}

// ListByOwner returns all sessions created by the given owner, newest first.
func (m *SessionManager) ListByOwner(ctx context.Context, ownerID string) ([]domain.Session, error) {
	sessions, err := m.sessions.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for owner %q: %w", ownerID, err)
	}
	return sessions, nil
}

// Start moves the session CREATED -> ACTIVE and stamps start_time.
// Only the owner may start a session.
func (m *SessionManager) Start(ctx context.Context, sessionID, callerID string) (*domain.Session, error) {
	return m.transition(ctx, "session.start", sessionID, callerID, m.sessions.Start)
}

// End moves the session ACTIVE -> ENDED and stamps end_time.
// Only the owner may end a session.
func (m *SessionManager) End(ctx context.Context, sessionID, callerID string) (*domain.Session, error) {
	return m.transition(ctx, "session.end", sessionID, callerID, m.sessions.End)
}

// Cancel moves the session from CREATED or ACTIVE to CANCELLED.
// Only the owner may cancel a session.
func (m *SessionManager) Cancel(ctx context.Context, sessionID, callerID string) (*domain.Session, error) {
	return m.transition(ctx, "session.cancel", sessionID, callerID, m.sessions.Cancel)
}

// transition runs one guarded lifecycle move. The ownership check is a
// plain read; the state guard itself is enforced atomically by the
// repository update, so a stale read here can at worst turn into a lost
// race reported as ErrInvalidTransition, never a double transition.
func (m *SessionManager) transition(
	ctx context.Context,
	name string,
	sessionID, callerID string,
	move func(context.Context, string, time.Time) (bool, error),
) (*domain.Session, error) {
	ctx, span := middleware.StartSpan(ctx, name, trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	session, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query session %q: %w", sessionID, err)
	}
	if session == nil {
		span.SetAttributes(attribute.Bool("session.found", false))
		return nil, fmt.Errorf("lookup session %q: %w", sessionID, ErrSessionNotFound)
	}
	if session.OwnerID != callerID {
		span.AddEvent("ownership.denied")
		return nil, fmt.Errorf("caller %q does not own session %q: %w", callerID, sessionID, ErrPermissionDenied)
	}

	moved, err := move(ctx, sessionID, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update session %q: %w", sessionID, err)
	}
	if !moved {
		span.SetAttributes(attribute.Bool("transition.success", false))
		return nil, fmt.Errorf("session %q in status %s: %w", sessionID, session.Status, ErrInvalidTransition)
	}

	// Re-read for the updated timestamps and status.
	session, err = m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reload session %q: %w", sessionID, err)
	}
	if session == nil {
		return nil, fmt.Errorf("reload session %q: %w", sessionID, ErrSessionNotFound)
	}

	span.SetAttributes(
		attribute.Bool("transition.success", true),
		attribute.String("session.status", string(session.Status)),
	)

	return session, nil
}

// newProximityToken returns a short random hex string, matching the
// 4-byte value broadcast over short-range radio next to the session.
func newProximityToken() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
