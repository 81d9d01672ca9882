package domain

import "time"

// AttendanceRecord is the immutable proof that an attendee redeemed a
// valid check-in token for a session. At most one record may ever exist
// per (session_id, attendee_id) pair; the repository enforces this.
type AttendanceRecord struct {
	ID                  string          `json:"id"`
	SessionID           string          `json:"session_id"`
	AttendeeID          string          `json:"attendee_id"`
	MarkedAt            time.Time       `json:"marked_at"`
	VerificationFactors map[string]bool `json:"verification_factors"`
}

// MarkAttendanceRequest is the redemption payload accepted from the
// attendance-marking boundary. The attendee identity comes from the
// auth collaborator, not from the request body.
type MarkAttendanceRequest struct {
	Token               string          `json:"token" binding:"required"`
	VerificationFactors map[string]bool `json:"verification_factors"`
}

// AttendeeHistoryRow is one entry of an attendee's attendance history,
// joined with the session it belongs to.
type AttendeeHistoryRow struct {
	RecordID            string          `json:"id"`
	SessionID           string          `json:"session_id"`
	CourseCode          string          `json:"course_code"`
	RoomNumber          string          `json:"room_number,omitempty"`
	SessionStatus       SessionStatus   `json:"session_status"`
	SessionStart        *time.Time      `json:"session_start,omitempty"`
	MarkedAt            time.Time       `json:"marked_at"`
	VerificationFactors map[string]bool `json:"verification_factors"`
}

// SessionSummaryRow aggregates attendance per session for an owner's
// session list.
type SessionSummaryRow struct {
	SessionID     string        `json:"session_id"`
	CourseCode    string        `json:"course_code"`
	RoomNumber    string        `json:"room_number,omitempty"`
	Status        SessionStatus `json:"status"`
	StartTime     *time.Time    `json:"start_time,omitempty"`
	AttendeeCount int           `json:"attendee_count"`
}
