package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/attendance-service/internal/core/domain"
	"github.com/duynhne/attendance-service/internal/logger"
	logicv1 "github.com/duynhne/attendance-service/internal/logic/v1"
	"github.com/duynhne/attendance-service/middleware"
)

// UserIDHeader carries the authenticated caller identity, set by the
// upstream auth collaborator. This service trusts it as-is; credential
// verification is out of scope.
const UserIDHeader = "X-User-ID"

// Handler groups HTTP handlers for the attendance API v1.
// Dependencies are injected via the constructor — no global state.
type Handler struct {
	sessions   *logicv1.SessionManager
	tokens     *logicv1.TokenService
	attendance *logicv1.AttendanceRecorder
}

// NewHandler creates a new Handler with the given services.
func NewHandler(
	sessions *logicv1.SessionManager,
	tokens *logicv1.TokenService,
	attendance *logicv1.AttendanceRecorder,
) *Handler {
	return &Handler{
		sessions:   sessions,
		tokens:     tokens,
		attendance: attendance,
	}
}

// RegisterRoutes registers all attendance API v1 routes on the given
// router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.CreateSession)
	rg.GET("/sessions", h.ListSessions)
	rg.GET("/sessions/:id", h.GetSession)
	rg.POST("/sessions/:id/start", h.StartSession)
	rg.POST("/sessions/:id/end", h.EndSession)
	rg.POST("/sessions/:id/cancel", h.CancelSession)
	rg.GET("/sessions/:id/token", h.IssueToken)
	rg.POST("/sessions/verify", h.VerifyToken)

	rg.POST("/attendance/mark", h.MarkAttendance)
	rg.GET("/attendance/history", h.AttendanceHistory)
	rg.GET("/attendance/sessions/:id", h.SessionRoster)
	rg.GET("/attendance/summary", h.AttendanceSummary)
}

// callerID extracts the authenticated user id. Responds 401 and returns
// false when the header is missing.
func callerID(c *gin.Context) (string, bool) {
	id := c.GetHeader(UserIDHeader)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return "", false
	}
	return id, true
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.create_session", trace.WithAttributes(
		attribute.String("layer", "web"),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	owner, ok := callerID(c)
	if !ok {
		return
	}

	var req domain.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.Create(ctx, owner, req.CourseCode, req.RoomNumber)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("owner_id", owner).Msg("Session creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	log.Info().Str("session_id", session.ID).Str("course_code", session.CourseCode).Msg("Session created")
	c.JSON(http.StatusCreated, session)
}

// ListSessions handles GET /sessions: the caller's own sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Session list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession handles GET /sessions/:id.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, logicv1.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Session lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// StartSession handles POST /sessions/:id/start.
func (h *Handler) StartSession(c *gin.Context) {
	h.transition(c, "http.start_session", h.sessions.Start)
}

// EndSession handles POST /sessions/:id/end.
func (h *Handler) EndSession(c *gin.Context) {
	h.transition(c, "http.end_session", h.sessions.End)
}

// CancelSession handles POST /sessions/:id/cancel.
func (h *Handler) CancelSession(c *gin.Context) {
	h.transition(c, "http.cancel_session", h.sessions.Cancel)
}

// transition runs one lifecycle move and maps its error kinds to stable
// HTTP statuses.
func (h *Handler) transition(
	c *gin.Context,
	spanName string,
	move func(ctx context.Context, sessionID, callerID string) (*domain.Session, error),
) {
	ctx, span := middleware.StartSpan(c.Request.Context(), spanName, trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("session.id", c.Param("id")),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	caller, ok := callerID(c)
	if !ok {
		return
	}

	session, err := move(ctx, c.Param("id"), caller)
	if err != nil {
		span.RecordError(err)
		log.Warn().Err(err).Str("session_id", c.Param("id")).Str("caller_id", caller).Msg("Session transition failed")

		switch {
		case errors.Is(err, logicv1.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, logicv1.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the session owner may do this"})
		case errors.Is(err, logicv1.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "Invalid session transition"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	log.Info().Str("session_id", session.ID).Str("status", string(session.Status)).Msg("Session transition")
	c.JSON(http.StatusOK, session)
}

// IssueToken handles GET /sessions/:id/token. Owner-only. Calling it
// again reissues; previously issued tokens stay valid until expiry.
func (h *Handler) IssueToken(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.issue_token", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("session.id", c.Param("id")),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	caller, ok := callerID(c)
	if !ok {
		return
	}

	session, err := h.sessions.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, logicv1.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		span.RecordError(err)
		log.Error().Err(err).Msg("Session lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if session.OwnerID != caller {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the session owner may issue tokens"})
		return
	}

	token, expiresAt, err := h.tokens.Issue(logicv1.SessionSnapshot{
		SessionID:      session.ID,
		OwnerID:        session.OwnerID,
		CourseCode:     session.CourseCode,
		RoomNumber:     session.RoomNumber,
		ProximityToken: session.ProximityToken,
	}, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("session_id", session.ID).Msg("Token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	log.Info().Str("session_id", session.ID).Time("expires_at", expiresAt).Msg("Token issued")
	c.JSON(http.StatusOK, domain.IssuedToken{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// VerifyToken handles POST /sessions/verify: decrypts a check-in token
// and returns its payload without marking anything.
func (h *Handler) VerifyToken(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.verify_token", trace.WithAttributes(
		attribute.String("layer", "web"),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	var req domain.VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := h.tokens.Verify(req.Token, time.Now().UTC())
	if err != nil {
		span.SetAttributes(attribute.Bool("token.valid", false))
		// Never log the token itself.
		log.Warn().Err(err).Msg("Token verification failed")

		switch {
		case errors.Is(err, logicv1.ErrTokenExpired):
			c.JSON(http.StatusGone, gin.H{"error": "Token expired"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "payload": payload})
}

// MarkAttendance handles POST /attendance/mark: the redemption boundary.
func (h *Handler) MarkAttendance(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.mark_attendance", trace.WithAttributes(
		attribute.String("layer", "web"),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	attendee, ok := callerID(c)
	if !ok {
		return
	}

	var req domain.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.attendance.Mark(ctx, req.Token, attendee, req.VerificationFactors, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		// The raw token never reaches the log; error kind and ids are enough
		// for audit.
		log.Warn().Err(err).Str("attendee_id", attendee).Msg("Attendance mark rejected")

		var notActive *logicv1.SessionNotActiveError
		switch {
		case errors.Is(err, logicv1.ErrTokenExpired):
			c.JSON(http.StatusGone, gin.H{"error": "Token expired"})
		case errors.Is(err, logicv1.ErrTokenInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		case errors.Is(err, logicv1.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.As(err, &notActive):
			c.JSON(http.StatusConflict, gin.H{
				"error":  "Session is not active",
				"status": notActive.Status,
			})
		case errors.Is(err, logicv1.ErrAlreadyMarked):
			c.JSON(http.StatusConflict, gin.H{"error": "Attendance already marked for this session"})
		case errors.Is(err, logicv1.ErrFactorsRejected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Verification factors rejected"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	log.Info().
		Str("session_id", result.Record.SessionID).
		Str("attendee_id", attendee).
		Msg("Attendance marked")

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"session_id":  result.Record.SessionID,
		"course_code": result.CourseCode,
		"marked_at":   result.Record.MarkedAt,
	})
}

// AttendanceHistory handles GET /attendance/history: the caller's own
// attendance history.
func (h *Handler) AttendanceHistory(c *gin.Context) {
	attendee, ok := callerID(c)
	if !ok {
		return
	}

	history, err := h.attendance.History(c.Request.Context(), attendee)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("History query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// SessionRoster handles GET /attendance/sessions/:id: all records for a
// session, owner-only.
func (h *Handler) SessionRoster(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	records, err := h.attendance.Roster(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		switch {
		case errors.Is(err, logicv1.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, logicv1.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the session owner may read the roster"})
		default:
			logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Roster query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendances": records})
}

// AttendanceSummary handles GET /attendance/summary: per-session counts
// for the caller's sessions.
func (h *Handler) AttendanceSummary(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		return
	}

	summary, err := h.attendance.Summary(c.Request.Context(), owner)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Summary query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": summary})
}
