package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signTestToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Email: subject + "@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	claims, err := v.Verify(signTestToken(t, testSecret, "user-1", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user-1@example.com", claims.Email)
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.Verify(signTestToken(t, testSecret, "user-1", -time.Hour))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRejectsForeignSecret(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.Verify(signTestToken(t, "another-secret-another-secret-another", "user-1", time.Hour))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRejectsUnsignedToken(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
