package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskdeck/auth"
)

func TestAuthorize(t *testing.T) {
	t.Run("nil identity has no session", func(t *testing.T) {
		err := auth.Authorize(nil, auth.RoleAdmin)
		assert.ErrorIs(t, err, auth.ErrUnableToFindSession)
	})

	t.Run("no allowed roles means any authenticated identity", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "reader", true)
		assert.NoError(t, auth.Authorize(identity))
	})

	t.Run("matching role passes", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "admin", true)
		assert.NoError(t, auth.Authorize(identity, auth.RoleAdmin))
	})

	t.Run("role casing is normalized", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "Admin", true)
		assert.NoError(t, auth.Authorize(identity, auth.RoleAdmin))
	})

	t.Run("any of several allowed roles passes", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "user", true)
		assert.NoError(t, auth.Authorize(identity, auth.RoleAdmin, auth.RoleUser))
	})

	t.Run("disallowed role is forbidden", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "user", true)

		err := auth.Authorize(identity, auth.RoleAdmin)

		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("unknown role is rejected, never downgraded", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "superuser", true)

		err := auth.Authorize(identity)

		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})
}

func TestAuthorizeMinimum(t *testing.T) {
	t.Run("nil identity has no session", func(t *testing.T) {
		err := auth.AuthorizeMinimum(nil, auth.RoleReader)
		assert.ErrorIs(t, err, auth.ErrUnableToFindSession)
	})

	t.Run("role above the floor passes", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "admin", true)
		assert.NoError(t, auth.AuthorizeMinimum(identity, auth.RoleUser))
	})

	t.Run("role at the floor passes", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "user", true)
		assert.NoError(t, auth.AuthorizeMinimum(identity, auth.RoleUser))
	})

	t.Run("role below the floor is forbidden", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "reader", true)

		err := auth.AuthorizeMinimum(identity, auth.RoleUser)

		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "superuser", true)

		err := auth.AuthorizeMinimum(identity, auth.RoleReader)

		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})
}

func TestAuthorizeOwnerOrAdmin(t *testing.T) {
	t.Run("nil identity has no session", func(t *testing.T) {
		err := auth.AuthorizeOwnerOrAdmin(nil, "owner-1")
		assert.ErrorIs(t, err, auth.ErrUnableToFindSession)
	})

	t.Run("admin bypasses the ownership check", func(t *testing.T) {
		identity := testIdentity("admin-1", "boss", "admin", true)
		assert.NoError(t, auth.AuthorizeOwnerOrAdmin(identity, "someone-else"))
	})

	t.Run("owner can touch their own resource", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "user", true)
		assert.NoError(t, auth.AuthorizeOwnerOrAdmin(identity, "user-123"))
	})

	t.Run("non owner without admin is forbidden", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "user", true)

		err := auth.AuthorizeOwnerOrAdmin(identity, "user-456")

		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("unknown role is rejected even for the owner", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "superuser", true)

		err := auth.AuthorizeOwnerOrAdmin(identity, "user-123")

		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})
}

func TestAuthorizeSelfOrRoles(t *testing.T) {
	t.Run("identity may target its own record", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "user", true)
		assert.NoError(t, auth.AuthorizeSelfOrRoles(identity, "user-123", auth.RoleAdmin))
	})

	t.Run("other records need an allowed role", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "user", true)

		err := auth.AuthorizeSelfOrRoles(identity, "user-456", auth.RoleAdmin)

		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("allowed role reaches any record", func(t *testing.T) {
		identity := testIdentity("reader-1", "auditor", "reader", true)
		assert.NoError(t, auth.AuthorizeSelfOrRoles(identity, "user-456", auth.RoleReader, auth.RoleAdmin))
	})

	t.Run("self access still validates the role", func(t *testing.T) {
		identity := testIdentity("user-123", "testuser", "superuser", true)

		err := auth.AuthorizeSelfOrRoles(identity, "user-123")

		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})

	t.Run("nil identity has no session", func(t *testing.T) {
		err := auth.AuthorizeSelfOrRoles(nil, "user-123")
		assert.ErrorIs(t, err, auth.ErrUnableToFindSession)
	})
}

func TestCanAccess(t *testing.T) {
	admin := testIdentity("admin-1", "boss", "admin", true)
	user := testIdentity("user-123", "testuser", "user", true)

	assert.True(t, auth.CanAccess(admin, auth.RoleAdmin))
	assert.False(t, auth.CanAccess(user, auth.RoleAdmin))
	assert.True(t, auth.CanAccess(user))
	assert.False(t, auth.CanAccess(nil))
}
