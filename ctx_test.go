package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/auth"
)

func TestUserContext(t *testing.T) {
	t.Run("round trips a user", func(t *testing.T) {
		user := &auth.User{ID: uuid.New(), Username: "testuser"}

		ctx := auth.WithContext(context.Background(), user)

		found, ok := auth.FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, user, found)
	})

	t.Run("empty context has no user", func(t *testing.T) {
		found, ok := auth.FromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, found)
	})
}

func TestClaimsContext(t *testing.T) {
	t.Run("round trips claims", func(t *testing.T) {
		claims := makeClaims("admin")

		ctx := auth.WithClaimsContext(context.Background(), claims)

		found, ok := auth.GetClaims(ctx)
		require.True(t, ok)
		assert.Equal(t, "user-123", found.UserID())
	})

	t.Run("empty context has no claims", func(t *testing.T) {
		found, ok := auth.GetClaims(context.Background())
		assert.False(t, ok)
		assert.Nil(t, found)
	})
}

func TestActorContext(t *testing.T) {
	t.Run("round trips an actor", func(t *testing.T) {
		actor := &auth.ActorRef{ID: "user-123", Type: "user"}

		ctx := auth.WithActorContext(context.Background(), actor)

		found, ok := auth.ActorFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, actor, found)
	})

	t.Run("empty context has no actor", func(t *testing.T) {
		found, ok := auth.ActorFromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, found)
	})
}

func TestActorContextFromClaims(t *testing.T) {
	t.Run("derives actor from claims", func(t *testing.T) {
		actor := auth.ActorContextFromClaims(makeClaims("user"))

		require.NotNil(t, actor)
		assert.Equal(t, "user-123", actor.ID)
		assert.Equal(t, "user", actor.Type)
	})

	t.Run("nil claims have no actor", func(t *testing.T) {
		assert.Nil(t, auth.ActorContextFromClaims(nil))
	})

	t.Run("claims without any id have no actor", func(t *testing.T) {
		claims := makeClaims("user")
		claims.UID = ""
		claims.RegisteredClaims.Subject = ""

		assert.Nil(t, auth.ActorContextFromClaims(claims))
	})
}

func TestCan(t *testing.T) {
	t.Run("checks permissions against stored claims", func(t *testing.T) {
		ctx := auth.WithClaimsContext(context.Background(), makeClaims("user"))

		assert.True(t, auth.Can(ctx, "tasks", "read"))
		assert.True(t, auth.Can(ctx, "tasks", "edit"))
		assert.True(t, auth.Can(ctx, "tasks", "create"))
		assert.False(t, auth.Can(ctx, "tasks", "delete"))
	})

	t.Run("unknown permission is denied", func(t *testing.T) {
		ctx := auth.WithClaimsContext(context.Background(), makeClaims("admin"))
		assert.False(t, auth.Can(ctx, "tasks", "fly"))
	})

	t.Run("missing claims deny everything", func(t *testing.T) {
		assert.False(t, auth.Can(context.Background(), "tasks", "read"))
	})
}

func TestGetRouterClaims(t *testing.T) {
	t.Run("reads claims under the given key", func(t *testing.T) {
		claims := makeClaims("admin")

		rc := &MockContext{}
		rc.On("Locals", "session").Return(claims).Once()

		found, ok := auth.GetRouterClaims(rc, "session")

		require.True(t, ok)
		assert.Equal(t, "admin", found.Role())
	})

	t.Run("empty key falls back to the middleware default", func(t *testing.T) {
		claims := makeClaims("user")

		rc := &MockContext{}
		rc.On("Locals", "user").Return(claims).Once()

		found, ok := auth.GetRouterClaims(rc, "")

		require.True(t, ok)
		assert.Equal(t, "user", found.Role())
	})

	t.Run("missing value reports not found", func(t *testing.T) {
		rc := &MockContext{}
		rc.On("Locals", "user").Return(nil).Once()

		found, ok := auth.GetRouterClaims(rc, "user")

		assert.False(t, ok)
		assert.Nil(t, found)
	})

	t.Run("wrong type reports not found", func(t *testing.T) {
		rc := &MockContext{}
		rc.On("Locals", "user").Return("not-claims").Once()

		found, ok := auth.GetRouterClaims(rc, "user")

		assert.False(t, ok)
		assert.Nil(t, found)
	})
}

func TestCanFromRouter(t *testing.T) {
	t.Run("checks permissions from router locals", func(t *testing.T) {
		claims := makeClaims("reader")

		rc := &MockContext{}
		rc.On("Locals", "user").Return(claims)

		assert.True(t, auth.CanFromRouter(rc, "tasks", "read"))
		assert.False(t, auth.CanFromRouter(rc, "tasks", "delete"))
	})

	t.Run("missing claims deny everything", func(t *testing.T) {
		rc := &MockContext{}
		rc.On("Locals", "user").Return(nil)

		assert.False(t, auth.CanFromRouter(rc, "tasks", "read"))
	})
}
