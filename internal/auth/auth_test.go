package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := New("test-secret")

	token, err := svc.GenerateToken("ops")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := New("test-secret").GenerateToken("ops")
	require.NoError(t, err)

	_, err = New("other-secret").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsMissingOperator(t *testing.T) {
	svc := New("test-secret")

	token, err := svc.GenerateToken("")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing operator")
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := New("test-secret").ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	svc := New("test-secret")

	hash, err := svc.HashPassword("hunter2")
	require.NoError(t, err)

	assert.True(t, svc.CheckPassword(hash, "hunter2"))
	assert.False(t, svc.CheckPassword(hash, "hunter3"))
}
