package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	token, claims, err := svc.GuestToken("  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", claims.Username)
	assert.Equal(t, TokenTypeCandidate, claims.TokenType)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, got.UserID)
	assert.Equal(t, "Alice", got.Username)
}

func TestUserIDIsStablePerUsername(t *testing.T) {
	assert.Equal(t, UserIDFor("alice"), UserIDFor(" ALICE "))
	assert.NotEqual(t, UserIDFor("alice"), UserIDFor("bob"))
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewAuthService("secret", time.Minute)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	token, _, err := svc.GuestToken("alice")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenRejectsForeignSignatures(t *testing.T) {
	token, _, err := NewAuthService("other", time.Hour).GuestToken("alice")
	require.NoError(t, err)

	_, err = NewAuthService("secret", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = NewAuthService("secret", time.Hour).ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenRequiresUserID(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TokenType:        TokenTypeCandidate,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
