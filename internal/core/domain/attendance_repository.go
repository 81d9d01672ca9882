package domain

import "context"

// AttendanceRepository defines the data-access contract for attendance
// records. Implementations live in internal/core/repository (Core layer).
type AttendanceRepository interface {
	// CreateUnique inserts the record, relying on a storage-level
	// uniqueness guarantee on (session_id, attendee_id). It returns
	// created=false (without error) when a record for the pair already
	// exists. A read-then-insert sequence is not an acceptable
	// implementation; the check and the write must be one atomic step.
	CreateUnique(ctx context.Context, rec *AttendanceRecord) (created bool, err error)

	// ListBySession returns all records for a session, newest first.
	ListBySession(ctx context.Context, sessionID string) ([]AttendanceRecord, error)

	// HistoryByAttendee returns the attendee's records joined with their
	// sessions, newest first.
	HistoryByAttendee(ctx context.Context, attendeeID string) ([]AttendeeHistoryRow, error)

	// SummaryByOwner returns per-session attendance counts for every
	// session created by the given owner, newest first.
	SummaryByOwner(ctx context.Context, ownerID string) ([]SessionSummaryRow, error)
}
