package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/attendance-service/internal/core/domain"
)

// PgxSessionRepository implements domain.SessionRepository using pgxpool.
type PgxSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PgxSessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PgxSessionRepository {
	return &PgxSessionRepository{pool: pool}
}

const sessionColumns = `id, owner_id, course_code, room_number, proximity_token, status, start_time, end_time, created_at, updated_at`

// Create inserts a new session.
func (r *PgxSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (id, owner_id, course_code, room_number, proximity_token, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.OwnerID, s.CourseCode, s.RoomNumber, s.ProximityToken, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByID returns the session with the given id.
// Returns (nil, nil) when no session is found.
func (r *PgxSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	var s domain.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.OwnerID, &s.CourseCode, &s.RoomNumber, &s.ProximityToken,
		&s.Status, &s.StartTime, &s.EndTime, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &s, nil
}

// ListByOwner returns all sessions created by the given owner, newest first.
func (r *PgxSessionRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID, &s.OwnerID, &s.CourseCode, &s.RoomNumber, &s.ProximityToken,
			&s.Status, &s.StartTime, &s.EndTime, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// Start moves the session CREATED -> ACTIVE and sets start_time.
// The status guard in the WHERE clause makes the transition a single
// compare-and-swap: under concurrent calls at most one update succeeds.
func (r *PgxSessionRepository) Start(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = $2, start_time = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`
	tag, err := r.pool.Exec(ctx, query, id, domain.StatusActive, now, domain.StatusCreated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// End moves the session ACTIVE -> ENDED and sets end_time.
func (r *PgxSessionRepository) End(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = $2, end_time = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`
	tag, err := r.pool.Exec(ctx, query, id, domain.StatusEnded, now, domain.StatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel moves the session from CREATED or ACTIVE to CANCELLED.
func (r *PgxSessionRepository) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)
	`
	tag, err := r.pool.Exec(ctx, query, id, domain.StatusCancelled, now,
		[]string{string(domain.StatusCreated), string(domain.StatusActive)})
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
