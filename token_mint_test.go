package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/auth"
)

func TestMintScopedToken(t *testing.T) {
	signingKey := []byte("test-signing-key")
	service := auth.NewTokenService(signingKey, time.Hour, "test-issuer", jwt.ClaimStrings{"test-audience"}, testLogger{})
	identity := testIdentity("user-123", "testuser", "user", true)

	t.Run("uses service defaults", func(t *testing.T) {
		token, expiresAt, err := auth.MintScopedToken(service, identity, auth.ScopedTokenOptions{})

		require.NoError(t, err)
		require.NotEmpty(t, token)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		claims, err := service.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "testuser", claims.Subject())
		assert.Equal(t, "user-123", claims.UserID())
		assert.Equal(t, "user", claims.Role())
		assert.True(t, claims.Verified())
	})

	t.Run("honors a shorter ttl", func(t *testing.T) {
		issuedAt := time.Now()

		token, expiresAt, err := auth.MintScopedToken(service, identity, auth.ScopedTokenOptions{
			TTL:      15 * time.Minute,
			IssuedAt: issuedAt,
		})

		require.NoError(t, err)
		require.NotEmpty(t, token)
		assert.WithinDuration(t, issuedAt.Add(15*time.Minute), expiresAt, time.Second)
	})

	t.Run("issuer override fails validation against the default issuer", func(t *testing.T) {
		token, _, err := auth.MintScopedToken(service, identity, auth.ScopedTokenOptions{
			Issuer: "another-issuer",
		})
		require.NoError(t, err)

		_, err = service.Validate(token)
		assert.Error(t, err)
	})

	t.Run("requires a token service and an identity", func(t *testing.T) {
		_, _, err := auth.MintScopedToken(nil, identity, auth.ScopedTokenOptions{})
		assert.Error(t, err)

		_, _, err = auth.MintScopedToken(service, nil, auth.ScopedTokenOptions{})
		assert.Error(t, err)
	})

	t.Run("rejects a negative ttl", func(t *testing.T) {
		_, _, err := auth.MintScopedToken(service, identity, auth.ScopedTokenOptions{TTL: -time.Minute})
		assert.Error(t, err)
	})
}
