package v1

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func newTestTokenService(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, ttl)
	require.NoError(t, err)
	return svc
}

func testSnapshot() SessionSnapshot {
	return SessionSnapshot{
		SessionID:      "sess-1",
		OwnerID:        "instructor-1",
		CourseCode:     "CS101",
		RoomNumber:     "R101",
		ProximityToken: "a1b2c3d4",
	}
}

func TestNewTokenService_EmptySecret(t *testing.T) {
	_, err := NewTokenService("", 15*time.Minute)
	assert.Error(t, err)
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t, 15*time.Minute)
	issuedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	token, expiresAt, err := svc.Issue(testSnapshot(), issuedAt)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(15*time.Minute), expiresAt)

	payload, err := svc.Verify(token, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", payload.SessionID)
	assert.Equal(t, "instructor-1", payload.OwnerID)
	assert.Equal(t, "CS101", payload.CourseCode)
	assert.Equal(t, "R101", payload.RoomNumber)
	assert.Equal(t, "a1b2c3d4", payload.ProximityToken)
	assert.True(t, payload.ExpiresAt.Equal(expiresAt))
}

func TestTokenService_ExpiryWindow(t *testing.T) {
	svc := newTestTokenService(t, 15*time.Minute)
	issuedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	token, expiresAt, err := svc.Issue(testSnapshot(), issuedAt)
	require.NoError(t, err)

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{"at issuance", issuedAt, false},
		{"mid window", issuedAt.Add(7 * time.Minute), false},
		{"one nanosecond before expiry", expiresAt.Add(-time.Nanosecond), false},
		{"exactly at expiry", expiresAt, true},
		{"after expiry", expiresAt.Add(time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := svc.Verify(token, tt.now)
			if tt.expired {
				assert.ErrorIs(t, err, ErrTokenExpired)
				assert.Nil(t, payload)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, payload)
			}
		})
	}
}

func TestTokenService_TamperingFailsClosed(t *testing.T) {
	svc := newTestTokenService(t, 15*time.Minute)
	now := time.Now().UTC()

	token, _, err := svc.Issue(testSnapshot(), now)
	require.NoError(t, err)

	sealed, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)

	// Flipping any single byte, nonce or ciphertext, must yield
	// ErrTokenInvalid, never a decoded payload.
	for i := range sealed {
		corrupted := make([]byte, len(sealed))
		copy(corrupted, sealed)
		corrupted[i] ^= 0x01

		payload, err := svc.Verify(base64.RawURLEncoding.EncodeToString(corrupted), now)
		assert.ErrorIs(t, err, ErrTokenInvalid, "byte %d", i)
		assert.Nil(t, payload, "byte %d", i)
	}
}

func TestTokenService_InvalidInput(t *testing.T) {
	svc := newTestTokenService(t, 15*time.Minute)
	now := time.Now().UTC()

	token, _, err := svc.Issue(testSnapshot(), now)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "not!!valid@@base64"},
		{"garbage", base64.RawURLEncoding.EncodeToString([]byte("garbage"))},
		{"truncated", token[:len(token)/2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := svc.Verify(tt.token, now)
			assert.ErrorIs(t, err, ErrTokenInvalid)
			assert.Nil(t, payload)
		})
	}
}

func TestTokenService_WrongKey(t *testing.T) {
	issuer := newTestTokenService(t, 15*time.Minute)
	verifier, err := NewTokenService("a-different-secret", 15*time.Minute)
	require.NoError(t, err)

	now := time.Now().UTC()
	token, _, err := issuer.Issue(testSnapshot(), now)
	require.NoError(t, err)

	payload, err := verifier.Verify(token, now)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Nil(t, payload)
}

func TestTokenService_ReissueProducesIndependentTokens(t *testing.T) {
	svc := newTestTokenService(t, 15*time.Minute)
	now := time.Now().UTC()

	first, _, err := svc.Issue(testSnapshot(), now)
	require.NoError(t, err)
	second, _, err := svc.Issue(testSnapshot(), now.Add(time.Minute))
	require.NoError(t, err)

	// Fresh nonce per issue: same session, different artifacts.
	assert.NotEqual(t, first, second)

	// The old token remains valid until its own expiry.
	payload, err := svc.Verify(first, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", payload.SessionID)
}
