package repository

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/attendance-service/internal/core/domain"
)

func seedSession(t *testing.T, repo *MemorySessionRepository, status domain.SessionStatus) *domain.Session {
	t.Helper()
	now := time.Now().UTC()
	s := &domain.Session{
		ID:             "sess-1",
		OwnerID:        "instructor-1",
		CourseCode:     "CS101",
		RoomNumber:     "R101",
		ProximityToken: "a1b2c3d4",
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}

func TestMemorySessionRepository_GetByID(t *testing.T) {
	repo := NewMemorySessionRepository()
	seedSession(t, repo, domain.StatusCreated)

	got, err := repo.GetByID(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusCreated, got.Status)

	missing, err := repo.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemorySessionRepository_TransitionGuards(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name string
		from domain.SessionStatus
		move func(*MemorySessionRepository) (bool, error)
		want bool
	}{
		{"start from created", domain.StatusCreated, func(r *MemorySessionRepository) (bool, error) {
			return r.Start(ctx, "sess-1", now)
		}, true},
		{"start from active", domain.StatusActive, func(r *MemorySessionRepository) (bool, error) {
			return r.Start(ctx, "sess-1", now)
		}, false},
		{"end from active", domain.StatusActive, func(r *MemorySessionRepository) (bool, error) {
			return r.End(ctx, "sess-1", now)
		}, true},
		{"end from created", domain.StatusCreated, func(r *MemorySessionRepository) (bool, error) {
			return r.End(ctx, "sess-1", now)
		}, false},
		{"cancel from created", domain.StatusCreated, func(r *MemorySessionRepository) (bool, error) {
			return r.Cancel(ctx, "sess-1", now)
		}, true},
		{"cancel from ended", domain.StatusEnded, func(r *MemorySessionRepository) (bool, error) {
			return r.Cancel(ctx, "sess-1", now)
		}, false},
		{"start missing session", domain.StatusCreated, func(r *MemorySessionRepository) (bool, error) {
			return r.Start(ctx, "other", now)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMemorySessionRepository()
			seedSession(t, repo, tt.from)

			moved, err := tt.move(repo)
			require.NoError(t, err)
			assert.Equal(t, tt.want, moved)
		})
	}
}

func TestMemorySessionRepository_StartStampsTimes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	seedSession(t, repo, domain.StatusCreated)

	startedAt := time.Now().UTC()
	moved, err := repo.Start(ctx, "sess-1", startedAt)
	require.NoError(t, err)
	require.True(t, moved)

	got, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got.StartTime)
	assert.True(t, got.StartTime.Equal(startedAt))
	assert.Nil(t, got.EndTime)
}

func TestMemoryAttendanceRepository_CreateUnique(t *testing.T) {
	ctx := context.Background()
	sessions := NewMemorySessionRepository()
	seedSession(t, sessions, domain.StatusActive)
	repo := NewMemoryAttendanceRepository(sessions)

	rec := &domain.AttendanceRecord{
		ID:         "att-1",
		SessionID:  "sess-1",
		AttendeeID: "S1",
		MarkedAt:   time.Now().UTC(),
	}

	created, err := repo.CreateUnique(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)

	dup := *rec
	dup.ID = "att-2"
	created, err = repo.CreateUnique(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)

	records, err := repo.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryAttendanceRepository_CreateUniqueConcurrent(t *testing.T) {
	ctx := context.Background()
	sessions := NewMemorySessionRepository()
	seedSession(t, sessions, domain.StatusActive)
	repo := NewMemoryAttendanceRepository(sessions)

	const writers = 64
	results := make([]bool, writers)

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			created, err := repo.CreateUnique(ctx, &domain.AttendanceRecord{
				ID:         "att-" + strconv.Itoa(i),
				SessionID:  "sess-1",
				AttendeeID: "S1",
				MarkedAt:   time.Now().UTC(),
			})
			assert.NoError(t, err)
			results[i] = created
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, created := range results {
		if created {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
