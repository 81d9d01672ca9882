package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/attendance-service/internal/core/domain"
)

// uniqueViolation is the Postgres error code raised when an insert hits
// a unique constraint.
const uniqueViolation = "23505"

// PgxAttendanceRepository implements domain.AttendanceRepository using pgxpool.
type PgxAttendanceRepository struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepository creates a new PgxAttendanceRepository.
func NewAttendanceRepository(pool *pgxpool.Pool) *PgxAttendanceRepository {
	return &PgxAttendanceRepository{pool: pool}
}

// CreateUnique inserts the record. The attendance table carries a unique
// index on (session_id, attendee_id); a constraint violation is mapped to
// created=false so concurrent duplicate submissions resolve to exactly
// one stored record without a read-then-insert race window.
func (r *PgxAttendanceRepository) CreateUnique(ctx context.Context, rec *domain.AttendanceRecord) (bool, error) {
	factors, err := json.Marshal(rec.VerificationFactors)
	if err != nil {
		return false, fmt.Errorf("marshal verification factors: %w", err)
	}

	query := `
		INSERT INTO attendance (id, session_id, attendee_id, marked_at, verification_factors)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query, rec.ID, rec.SessionID, rec.AttendeeID, rec.MarkedAt, factors)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// ListBySession returns all records for a session, newest first.
func (r *PgxAttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT id, session_id, attendee_id, marked_at, verification_factors
		FROM attendance
		WHERE session_id = $1
		ORDER BY marked_at DESC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AttendanceRecord
	for rows.Next() {
		var rec domain.AttendanceRecord
		var factors []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.AttendeeID, &rec.MarkedAt, &factors); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(factors, &rec.VerificationFactors); err != nil {
			return nil, fmt.Errorf("unmarshal verification factors: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// HistoryByAttendee returns the attendee's records joined with their
// sessions, newest first.
func (r *PgxAttendanceRepository) HistoryByAttendee(ctx context.Context, attendeeID string) ([]domain.AttendeeHistoryRow, error) {
	query := `
		SELECT a.id, a.session_id, s.course_code, s.room_number, s.status, s.start_time,
		       a.marked_at, a.verification_factors
		FROM attendance a
		JOIN sessions s ON a.session_id = s.id
		WHERE a.attendee_id = $1
		ORDER BY a.marked_at DESC
	`

	rows, err := r.pool.Query(ctx, query, attendeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.AttendeeHistoryRow
	for rows.Next() {
		var h domain.AttendeeHistoryRow
		var factors []byte
		if err := rows.Scan(
			&h.RecordID, &h.SessionID, &h.CourseCode, &h.RoomNumber, &h.SessionStatus,
			&h.SessionStart, &h.MarkedAt, &factors,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(factors, &h.VerificationFactors); err != nil {
			return nil, fmt.Errorf("unmarshal verification factors: %w", err)
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// SummaryByOwner returns per-session attendance counts for every session
// created by the given owner, newest first.
func (r *PgxAttendanceRepository) SummaryByOwner(ctx context.Context, ownerID string) ([]domain.SessionSummaryRow, error) {
	query := `
		SELECT s.id, s.course_code, s.room_number, s.status, s.start_time, COUNT(a.id)
		FROM sessions s
		LEFT JOIN attendance a ON a.session_id = s.id
		WHERE s.owner_id = $1
		GROUP BY s.id, s.course_code, s.room_number, s.status, s.start_time, s.created_at
		ORDER BY s.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.SessionSummaryRow
	for rows.Next() {
		var row domain.SessionSummaryRow
		if err := rows.Scan(
			&row.SessionID, &row.CourseCode, &row.RoomNumber, &row.Status,
			&row.StartTime, &row.AttendeeCount,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, row)
	}

	return summaries, rows.Err()
}
