package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SignAndParseJWT(t *testing.T) {
	t.Run("happy path - round trip keeps user id", func(t *testing.T) {
		tok, err := SignJWT("secret", "u1", time.Hour)
		require.NoError(t, err)

		claims, err := ParseJWT("secret", tok)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "u1", claims.Subject)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := SignJWT("secret", "u1", time.Hour)
		require.NoError(t, err)

		_, err = ParseJWT("other", tok)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := SignJWT("secret", "u1", -time.Minute)
		require.NoError(t, err)

		_, err = ParseJWT("secret", tok)
		assert.Error(t, err)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := ParseJWT("secret", "")
		assert.Error(t, err)
	})
}
