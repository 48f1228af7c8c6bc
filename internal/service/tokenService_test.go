package service

import (
	"testing"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	s := NewTokenService("secret", time.Hour)

	token, err := s.Issue("caller-1", models.PriorityHigh)
	require.NoError(t, err)

	identity, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "caller-1", identity.UserID)
	assert.Equal(t, models.PriorityHigh, identity.MaxPriority)
}

func TestTokenService_Rejects(t *testing.T) {
	s := NewTokenService("secret", time.Hour)

	other, err := NewTokenService("other", time.Hour).Issue("caller-1", models.PriorityNormal)
	require.NoError(t, err)
	_, err = s.Validate(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewTokenService("secret", -time.Minute).Issue("caller-1", models.PriorityNormal)
	require.NoError(t, err)
	_, err = s.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Issue("", models.PriorityNormal)
	assert.Error(t, err)
	_, err = s.Issue("caller-1", models.Priority(0))
	assert.ErrorIs(t, err, models.ErrUnknownPriority)
}

func TestTokenService_LegacyClaims(t *testing.T) {
	s := NewTokenService("secret", time.Hour)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "legacy",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	identity, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "legacy", identity.UserID)
	assert.Equal(t, models.PriorityNormal, identity.MaxPriority)
}
