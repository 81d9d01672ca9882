package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/duynhne/attendance-service/internal/core/domain"
)

// MemorySessionRepository is an in-memory domain.SessionRepository.
// It mirrors the transition guards of the Postgres implementation under a
// single mutex, which makes it suitable for tests that exercise the
// concurrency properties of the lifecycle.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemorySessionRepository creates an empty in-memory session repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *MemorySessionRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *MemorySessionRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemorySessionRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sessions []domain.Session
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (r *MemorySessionRepository) Start(_ context.Context, id string, now time.Time) (bool, error) {
	return r.transition(id, []domain.SessionStatus{domain.StatusCreated}, func(s *domain.Session) {
		s.Status = domain.StatusActive
		s.StartTime = &now
		s.UpdatedAt = now
	})
}

func (r *MemorySessionRepository) End(_ context.Context, id string, now time.Time) (bool, error) {
	return r.transition(id, []domain.SessionStatus{domain.StatusActive}, func(s *domain.Session) {
		s.Status = domain.StatusEnded
		s.EndTime = &now
		s.UpdatedAt = now
	})
}

func (r *MemorySessionRepository) Cancel(_ context.Context, id string, now time.Time) (bool, error) {
	return r.transition(id, []domain.SessionStatus{domain.StatusCreated, domain.StatusActive}, func(s *domain.Session) {
		s.Status = domain.StatusCancelled
		s.UpdatedAt = now
	})
}

// transition applies mutate while holding the lock, only when the current
// status is one of from. This is the compare-and-swap the interface requires.
func (r *MemorySessionRepository) transition(id string, from []domain.SessionStatus, mutate func(*domain.Session)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if s.Status == status {
			mutate(&s)
			r.sessions[id] = s
			return true, nil
		}
	}
	return false, nil
}

// MemoryAttendanceRepository is an in-memory domain.AttendanceRepository.
// The pair index plays the role of the database unique constraint: the
// existence check and the insert happen under one lock acquisition.
type MemoryAttendanceRepository struct {
	mu      sync.RWMutex
	records []domain.AttendanceRecord
	pairs   map[[2]string]struct{}

	sessions *MemorySessionRepository
}

// NewMemoryAttendanceRepository creates an empty in-memory attendance
// repository. The session repository is needed for the joined read queries.
func NewMemoryAttendanceRepository(sessions *MemorySessionRepository) *MemoryAttendanceRepository {
	return &MemoryAttendanceRepository{
		pairs:    make(map[[2]string]struct{}),
		sessions: sessions,
	}
}

func (r *MemoryAttendanceRepository) CreateUnique(_ context.Context, rec *domain.AttendanceRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := [2]string{rec.SessionID, rec.AttendeeID}
	if _, exists := r.pairs[key]; exists {
		return false, nil
	}
	r.pairs[key] = struct{}{}
	r.records = append(r.records, *rec)
	return true, nil
}

func (r *MemoryAttendanceRepository) ListBySession(_ context.Context, sessionID string) ([]domain.AttendanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var records []domain.AttendanceRecord
	for _, rec := range r.records {
		if rec.SessionID == sessionID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].MarkedAt.After(records[j].MarkedAt)
	})
	return records, nil
}

func (r *MemoryAttendanceRepository) HistoryByAttendee(ctx context.Context, attendeeID string) ([]domain.AttendeeHistoryRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var history []domain.AttendeeHistoryRow
	for _, rec := range r.records {
		if rec.AttendeeID != attendeeID {
			continue
		}
		s, err := r.sessions.GetByID(ctx, rec.SessionID)
		if err != nil || s == nil {
			continue
		}
		history = append(history, domain.AttendeeHistoryRow{
			RecordID:            rec.ID,
			SessionID:           rec.SessionID,
			CourseCode:          s.CourseCode,
			RoomNumber:          s.RoomNumber,
			SessionStatus:       s.Status,
			SessionStart:        s.StartTime,
			MarkedAt:            rec.MarkedAt,
			VerificationFactors: rec.VerificationFactors,
		})
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].MarkedAt.After(history[j].MarkedAt)
	})
	return history, nil
}

func (r *MemoryAttendanceRepository) SummaryByOwner(ctx context.Context, ownerID string) ([]domain.SessionSummaryRow, error) {
	sessions, err := r.sessions.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range r.records {
		counts[rec.SessionID]++
	}

	var summaries []domain.SessionSummaryRow
	for _, s := range sessions {
		summaries = append(summaries, domain.SessionSummaryRow{
			SessionID:     s.ID,
			CourseCode:    s.CourseCode,
			RoomNumber:    s.RoomNumber,
			Status:        s.Status,
			StartTime:     s.StartTime,
			AttendeeCount: counts[s.ID],
		})
	}
	return summaries, nil
}
