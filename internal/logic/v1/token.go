package v1

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// TokenPayload is the fixed field set sealed inside a check-in token.
// It binds a redemption attempt to one session without a database read.
type TokenPayload struct {
	SessionID      string    `json:"session_id"`
	OwnerID        string    `json:"owner_id"`
	CourseCode     string    `json:"course_code"`
	RoomNumber     string    `json:"room_number,omitempty"`
	ProximityToken string    `json:"proximity_token"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// SessionSnapshot is the immutable view of a session that gets sealed
// into a token. Callers build it from a session record at issue time.
type SessionSnapshot struct {
	SessionID      string
	OwnerID        string
	CourseCode     string
	RoomNumber     string
	ProximityToken string
}

// TokenService issues and verifies opaque authenticated-encrypted
// check-in tokens. The cipher key is derived from the server secret with
// SHA-256, so key material never exists apart from the secret. Issued
// tokens are never stored; expiry is the only invalidation mechanism.
//
// Both operations are pure functions of their inputs and are safe under
// unlimited concurrency.
type TokenService struct {
	aead cipher.AEAD
	ttl  time.Duration
}

// NewTokenService creates a TokenService keyed from secret, issuing
// tokens valid for ttl.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("token service: empty secret")
	}

	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("token service: init cipher: %w", err)
	}

	return &TokenService{aead: aead, ttl: ttl}, nil
}

// TTL returns the configured token lifetime.
func (t *TokenService) TTL() time.Duration {
	return t.ttl
}

// Issue seals the snapshot into an opaque token string valid until
// now + TTL. The output is URL-safe base64 of nonce || ciphertext and
// can be embedded unmodified in any text medium, such as a QR payload.
// Reissuing is just calling Issue again; previously issued tokens stay
// valid until their own expiry.
func (t *TokenService) Issue(snap SessionSnapshot, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(t.ttl)
	payload := TokenPayload{
		SessionID:      snap.SessionID,
		OwnerID:        snap.OwnerID,
		CourseCode:     snap.CourseCode,
		RoomNumber:     snap.RoomNumber,
		ProximityToken: snap.ProximityToken,
		IssuedAt:       now,
		ExpiresAt:      expiresAt,
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal token payload: %w", err)
	}

	nonce := make([]byte, t.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", time.Time{}, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := t.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), expiresAt, nil
}

// Verify decrypts and authenticates the token. Any decode or
// authentication failure yields ErrTokenInvalid; no partial payload is
// ever returned. An authenticated token whose expiry is at or before now
// yields ErrTokenExpired, kept distinct so callers can message the two
// cases differently.
func (t *TokenService) Verify(token string, now time.Time) (*TokenPayload, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode token: %w", ErrTokenInvalid)
	}
	if len(sealed) < t.aead.NonceSize() {
		return nil, fmt.Errorf("token too short: %w", ErrTokenInvalid)
	}

	nonce, ciphertext := sealed[:t.aead.NonceSize()], sealed[t.aead.NonceSize():]
	plaintext, err := t.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("authenticate token: %w", ErrTokenInvalid)
	}

	var payload TokenPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("parse token payload: %w", ErrTokenInvalid)
	}

	if !now.Before(payload.ExpiresAt) {
		return nil, fmt.Errorf("token expired at %v: %w", payload.ExpiresAt, ErrTokenExpired)
	}

	return &payload, nil
}
