package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	token, err := svc.Generate("u1", "Alice", RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "Alice", claims.Name)
	require.True(t, claims.IsAdmin())
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewJWTService("one", time.Hour).Generate("u1", "Alice", RoleParticipant)
	require.NoError(t, err)

	_, err = NewJWTService("two", time.Hour).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.Generate("u1", "Alice", RoleParticipant)
	require.NoError(t, err)

	_, err = NewJWTService("secret", time.Minute).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
