package v1

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/attendance-service/internal/core/domain"
	"github.com/duynhne/attendance-service/middleware"
)

// MarkResult is returned on a successful redemption. It carries the
// created record plus the session fields a client needs for its
// confirmation screen.
type MarkResult struct {
	Record     *domain.AttendanceRecord
	CourseCode string
	RoomNumber string
}

// AttendanceRecorder is the race-safe gate between "a token was redeemed"
// and "an attendance record exists". It verifies the token, checks the
// session state and performs the at-most-once write through the
// repository's atomic unique insert.
type AttendanceRecorder struct {
	tokens   *TokenService
	sessions *SessionManager
	records  domain.AttendanceRepository

	// requireAllFactors rejects a redemption when any verification factor
	// is reported false. Off by default: factors are evidence for audit,
	// not a gate.
	requireAllFactors bool
}

// NewAttendanceRecorder creates an AttendanceRecorder with the given
// collaborators.
func NewAttendanceRecorder(
	tokens *TokenService,
	sessions *SessionManager,
	records domain.AttendanceRepository,
	requireAllFactors bool,
) *AttendanceRecorder {
	return &AttendanceRecorder{
		tokens:            tokens,
		sessions:          sessions,
		records:           records,
		requireAllFactors: requireAllFactors,
	}
}

// Mark redeems a check-in token for attendeeID.
//
// Token failures (ErrTokenInvalid, ErrTokenExpired) and session-state
// failures propagate unchanged. A duplicate (session, attendee) pair
// yields ErrAlreadyMarked; under N concurrent identical submissions
// exactly one call succeeds and stores exactly one record.
func (r *AttendanceRecorder) Mark(
	ctx context.Context,
	token string,
	attendeeID string,
	factors map[string]bool,
	now time.Time,
) (*MarkResult, error) {
	ctx, span := middleware.StartSpan(ctx, "attendance.mark", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("attendee.id", attendeeID),
	))
	defer span.End()

	payload, err := r.tokens.Verify(token, now)
	if err != nil {
		span.SetAttributes(attribute.Bool("token.valid", false))
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("token.valid", true),
		attribute.String("session.id", payload.SessionID),
	)

	session, err := r.sessions.Get(ctx, payload.SessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if session.Status != domain.StatusActive {
		span.SetAttributes(attribute.String("session.status", string(session.Status)))
		return nil, fmt.Errorf("mark attendance in session %q: %w",
			session.ID, &SessionNotActiveError{Status: session.Status})
	}

	if factors == nil {
		factors = map[string]bool{}
	}
	if r.requireAllFactors {
		for name, ok := range factors {
			if !ok {
				span.AddEvent("factors.rejected")
				return nil, fmt.Errorf("factor %q failed: %w", name, ErrFactorsRejected)
			}
		}
	}

	record := &domain.AttendanceRecord{
		ID:                  uuid.NewString(),
		SessionID:           session.ID,
		AttendeeID:          attendeeID,
		MarkedAt:            now,
		VerificationFactors: factors,
	}

	created, err := r.records.CreateUnique(ctx, record)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("insert attendance record: %w", err)
	}
	if !created {
		span.SetAttributes(attribute.Bool("attendance.duplicate", true))
		return nil, fmt.Errorf("session %q attendee %q: %w", session.ID, attendeeID, ErrAlreadyMarked)
	}

	span.AddEvent("attendance.marked")

	return &MarkResult{
		Record:     record,
		CourseCode: session.CourseCode,
		RoomNumber: session.RoomNumber,
	}, nil
}

// History returns the attendee's attendance history joined with session
// details, newest first. Pure projection; no lifecycle or uniqueness
// effects.
func (r *AttendanceRecorder) History(ctx context.Context, attendeeID string) ([]domain.AttendeeHistoryRow, error) {
	history, err := r.records.HistoryByAttendee(ctx, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("query history for attendee %q: %w", attendeeID, err)
	}
	return history, nil
}

// Roster returns all attendance records for a session. Only the session
// owner may read the roster.
func (r *AttendanceRecorder) Roster(ctx context.Context, sessionID, callerID string) ([]domain.AttendanceRecord, error) {
	session, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, fmt.Errorf("caller %q does not own session %q: %w", callerID, sessionID, ErrPermissionDenied)
	}

	records, err := r.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query roster for session %q: %w", sessionID, err)
	}
	return records, nil
}

// Summary returns per-session attendance counts for every session the
// owner has created, newest first.
func (r *AttendanceRecorder) Summary(ctx context.Context, ownerID string) ([]domain.SessionSummaryRow, error) {
	summaries, err := r.records.SummaryByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query summary for owner %q: %w", ownerID, err)
	}
	return summaries, nil
}
