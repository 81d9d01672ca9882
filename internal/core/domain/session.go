package domain

import "time"

// SessionStatus is the lifecycle state of an attendance session.
// The set is closed; no other values are ever persisted.
type SessionStatus string

const (
	StatusCreated   SessionStatus = "CREATED"
	StatusActive    SessionStatus = "ACTIVE"
	StatusEnded     SessionStatus = "ENDED"
	StatusCancelled SessionStatus = "CANCELLED"
)

// Session is an attendance session record.
// StartTime is set only on the CREATED -> ACTIVE transition and
// EndTime only on ACTIVE -> ENDED.
type Session struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"owner_id"`
	CourseCode     string        `json:"course_code"`
	RoomNumber     string        `json:"room_number,omitempty"`
	ProximityToken string        `json:"proximity_token"`
	Status         SessionStatus `json:"status"`
	StartTime      *time.Time    `json:"start_time,omitempty"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CreateSessionRequest is the payload accepted by the session-creation boundary.
type CreateSessionRequest struct {
	CourseCode string `json:"course_code" binding:"required"`
	RoomNumber string `json:"room_number"`
}

// VerifyTokenRequest carries an opaque check-in token for verification.
type VerifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// IssuedToken is returned by the token-issuing boundary. The token string
// is the payload a rendering collaborator embeds in a QR code.
type IssuedToken struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
