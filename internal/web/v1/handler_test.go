package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/attendance-service/internal/core/domain"
	"github.com/duynhne/attendance-service/internal/core/repository"
	logicv1 "github.com/duynhne/attendance-service/internal/logic/v1"
)

const (
	ownerID    = "instructor-1"
	attendeeID = "S1"
)

type webFixture struct {
	router   *gin.Engine
	sessions *logicv1.SessionManager
	tokens   *logicv1.TokenService
}

func newWebFixture(t *testing.T, tokenTTL time.Duration) *webFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := logicv1.NewTokenService("web-test-secret", tokenTTL)
	require.NoError(t, err)

	sessionRepo := repository.NewMemorySessionRepository()
	sessions := logicv1.NewSessionManager(sessionRepo)
	attendance := logicv1.NewAttendanceRecorder(
		tokens, sessions, repository.NewMemoryAttendanceRepository(sessionRepo), false,
	)

	router := gin.New()
	NewHandler(sessions, tokens, attendance).RegisterRoutes(router.Group("/api/v1"))

	return &webFixture{router: router, sessions: sessions, tokens: tokens}
}

func (f *webFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// activeSessionToken prepares a started session and a valid token for it.
func (f *webFixture) activeSessionToken(t *testing.T) (*domain.Session, string) {
	t.Helper()
	ctx := context.Background()

	session, err := f.sessions.Create(ctx, ownerID, "CS101", "R101")
	require.NoError(t, err)
	session, err = f.sessions.Start(ctx, session.ID, ownerID)
	require.NoError(t, err)

	token, _, err := f.tokens.Issue(logicv1.SessionSnapshot{
		SessionID:      session.ID,
		OwnerID:        session.OwnerID,
		CourseCode:     session.CourseCode,
		RoomNumber:     session.RoomNumber,
		ProximityToken: session.ProximityToken,
	}, time.Now().UTC())
	require.NoError(t, err)

	return session, token
}

func TestHandler_CreateSession(t *testing.T) {
	f := newWebFixture(t, 15*time.Minute)

	t.Run("created", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions", ownerID,
			gin.H{"course_code": "CS101", "room_number": "R101"})
		require.Equal(t, http.StatusCreated, w.Code)

		var session domain.Session
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
		assert.Equal(t, domain.StatusCreated, session.Status)
		assert.Equal(t, ownerID, session.OwnerID)
	})

	t.Run("missing identity", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions", "",
			gin.H{"course_code": "CS101"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing course code", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions", ownerID, gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_SessionLifecycle(t *testing.T) {
	f := newWebFixture(t, 15*time.Minute)

	session, err := f.sessions.Create(context.Background(), ownerID, "CS101", "R101")
	require.NoError(t, err)

	t.Run("start by non-owner", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/start", "someone-else", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("start", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/start", ownerID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got domain.Session
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, domain.StatusActive, got.Status)
		assert.NotNil(t, got.StartTime)
	})

	t.Run("start twice", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/start", ownerID, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("end", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/end", ownerID, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions/nope/start", ownerID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_IssueAndVerifyToken(t *testing.T) {
	f := newWebFixture(t, 15*time.Minute)
	session, _ := f.activeSessionToken(t)

	t.Run("issue by non-owner", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/sessions/"+session.ID+"/token", "someone-else", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	var issued domain.IssuedToken
	t.Run("issue", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/sessions/"+session.ID+"/token", ownerID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
		assert.Equal(t, session.ID, issued.SessionID)
		assert.NotEmpty(t, issued.Token)
	})

	t.Run("verify", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions/verify", "", gin.H{"token": issued.Token})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Valid   bool                 `json:"valid"`
			Payload logicv1.TokenPayload `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.Equal(t, "CS101", resp.Payload.CourseCode)
		assert.Equal(t, "R101", resp.Payload.RoomNumber)
	})

	t.Run("verify invalid", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sessions/verify", "", gin.H{"token": "garbage"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_MarkAttendance(t *testing.T) {
	f := newWebFixture(t, 15*time.Minute)
	session, token := f.activeSessionToken(t)

	t.Run("success", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/attendance/mark", attendeeID,
			gin.H{"token": token, "verification_factors": gin.H{"token": true, "proximity": false}})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success    bool   `json:"success"`
			SessionID  string `json:"session_id"`
			CourseCode string `json:"course_code"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, session.ID, resp.SessionID)
		assert.Equal(t, "CS101", resp.CourseCode)
	})

	t.Run("already marked", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/attendance/mark", attendeeID,
			gin.H{"token": token, "verification_factors": gin.H{"token": true}})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/attendance/mark", attendeeID,
			gin.H{"token": "garbage"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing identity", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/attendance/mark", "",
			gin.H{"token": token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandler_MarkAttendance_ExpiredToken(t *testing.T) {
	f := newWebFixture(t, time.Nanosecond)
	_, token := f.activeSessionToken(t)

	w := f.do(t, http.MethodPost, "/api/v1/attendance/mark", attendeeID, gin.H{"token": token})
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestHandler_MarkAttendance_SessionNotActive(t *testing.T) {
	f := newWebFixture(t, 15*time.Minute)

	session, err := f.sessions.Create(context.Background(), ownerID, "CS101", "R101")
	require.NoError(t, err)

	token, _, err := f.tokens.Issue(logicv1.SessionSnapshot{
		SessionID:      session.ID,
		OwnerID:        session.OwnerID,
		CourseCode:     session.CourseCode,
		RoomNumber:     session.RoomNumber,
		ProximityToken: session.ProximityToken,
	}, time.Now().UTC())
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/v1/attendance/mark", attendeeID, gin.H{"token": token})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Status domain.SessionStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusCreated, resp.Status)
}

func TestHandler_Projections(t *testing.T) {
	f := newWebFixture(t, 15*time.Minute)
	session, token := f.activeSessionToken(t)

	w := f.do(t, http.MethodPost, "/api/v1/attendance/mark", attendeeID,
		gin.H{"token": token, "verification_factors": gin.H{"token": true}})
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("history", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/attendance/history", attendeeID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			History []domain.AttendeeHistoryRow `json:"history"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.History, 1)
		assert.Equal(t, session.ID, resp.History[0].SessionID)
	})

	t.Run("roster", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/attendance/sessions/"+session.ID, ownerID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Attendances []domain.AttendanceRecord `json:"attendances"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Attendances, 1)
	})

	t.Run("roster forbidden for non-owner", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/attendance/sessions/"+session.ID, "someone-else", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("summary", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/attendance/summary", ownerID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Sessions []domain.SessionSummaryRow `json:"sessions"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Sessions, 1)
		assert.Equal(t, 1, resp.Sessions[0].AttendeeCount)
	})
}
