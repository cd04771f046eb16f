package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "phi-gateway/pkg/errors"
)

var jwtService = NewService("test-signing-key")

func Test_GenerateToken(t *testing.T) {
	token, err := jwtService.GenerateToken("u1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, gwerrors.New(gwerrors.CodeUnauthenticated, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateToken("u1", -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, gwerrors.New(gwerrors.CodeUnauthenticated, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewService("another-signing-key")
	token, err := other.GenerateToken("u1", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
}

func Test_ValidateToken_MissingSubject(t *testing.T) {
	token, err := jwtService.GenerateToken("", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, gwerrors.New(gwerrors.CodeUnauthenticated, "token missing subject"))
}
