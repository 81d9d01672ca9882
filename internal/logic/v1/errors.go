// Package v1 provides attendance business logic for API version 1.
//
// Error Handling:
// This package defines sentinel errors that represent the outcomes of
// token verification, session lifecycle moves and attendance marking.
// These errors should be wrapped with context using fmt.Errorf("%w") when
// returned from business logic methods.
//
// Example Usage:
//
//	if session == nil {
//	    return nil, fmt.Errorf("start session %q: %w", sessionID, ErrSessionNotFound)
//	}
//
// Error Checking (in handlers):
//
//	switch {
//	case errors.Is(err, logicv1.ErrTokenExpired):
//	    c.JSON(http.StatusGone, gin.H{"error": "Token expired"})
//	case errors.Is(err, logicv1.ErrAlreadyMarked):
//	    c.JSON(http.StatusConflict, gin.H{"error": "Attendance already marked"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
//	}
package v1

import (
	"errors"
	"fmt"

	"github.com/duynhne/attendance-service/internal/core/domain"
)

// Sentinel errors for token, session and attendance operations.
// These errors should be wrapped with context using fmt.Errorf("%w") when returned.
var (
	// ErrTokenInvalid indicates the token failed decryption or authentication:
	// malformed encoding, truncation, tampering or a wrong key. Verification
	// fails closed; no field of an unauthenticated payload is ever exposed.
	// HTTP Status: 400 Bad Request
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired indicates the token authenticated correctly but its
	// embedded expiry has passed.
	// HTTP Status: 410 Gone
	ErrTokenExpired = errors.New("token expired")

	// ErrSessionNotFound indicates the session does not exist.
	// HTTP Status: 404 Not Found
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotActive indicates the session is not accepting check-ins.
	// Returned wrapped inside a SessionNotActiveError carrying the actual status.
	// HTTP Status: 409 Conflict
	ErrSessionNotActive = errors.New("session not active")

	// ErrInvalidTransition indicates an illegal lifecycle move, such as
	// starting an already started session. State is left unchanged.
	// HTTP Status: 409 Conflict
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrPermissionDenied indicates a caller other than the session owner
	// attempted a mutating session operation.
	// HTTP Status: 403 Forbidden
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyMarked indicates attendance for this (session, attendee)
	// pair already exists. This is an expected idempotent-reject outcome,
	// not a fault.
	// HTTP Status: 409 Conflict
	ErrAlreadyMarked = errors.New("attendance already marked")

	// ErrFactorsRejected indicates the require-all-factors policy is enabled
	// and at least one verification factor was reported false.
	// HTTP Status: 422 Unprocessable Entity
	ErrFactorsRejected = errors.New("verification factors rejected")
)

// SessionNotActiveError reports a check-in against a session that is not
// ACTIVE, carrying the actual status for diagnostics. It matches
// errors.Is(err, ErrSessionNotActive).
type SessionNotActiveError struct {
	Status domain.SessionStatus
}

func (e *SessionNotActiveError) Error() string {
	return fmt.Sprintf("session not active (status: %s)", e.Status)
}

func (e *SessionNotActiveError) Is(target error) bool {
	return target == ErrSessionNotActive
}
