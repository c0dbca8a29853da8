package auth_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/auth"
)

func trackedUser(t *testing.T, password string) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	return &auth.User{
		ID:           uuid.New(),
		Role:         auth.RoleUser,
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: hash,
		Verified:     true,
	}
}

func TestUserProvider_VerifyIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials return identity", func(t *testing.T) {
		user := trackedUser(t, "password123")

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, user).Return(nil).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, "testuser", identity.Username())
		assert.Equal(t, "test@example.com", identity.Email())
		assert.Equal(t, "user", identity.Role())
		assert.True(t, identity.Verified())

		tracker.AssertExpectations(t)
	})

	t.Run("wrong password tracks the attempt", func(t *testing.T) {
		user := trackedUser(t, "password123")

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, user).Return(nil).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "wrong_password")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

		tracker.AssertExpectations(t)
		tracker.AssertNotCalled(t, "TrackSuccessfulLogin", mock.Anything, mock.Anything)
	})

	t.Run("missing user is indistinguishable from bad credentials", func(t *testing.T) {
		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "ghost@example.com").
			Return(nil, goerrors.New("user not found", goerrors.CategoryNotFound)).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "ghost@example.com", "password123")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

		tracker.AssertExpectations(t)
	})

	t.Run("store failure is wrapped as internal", func(t *testing.T) {
		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").
			Return(nil, goerrors.New("connection refused", goerrors.CategoryInternal)).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, identity)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("nil user without error means identity not found", func(t *testing.T) {
		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(nil, nil).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("too many recent attempts cools off", func(t *testing.T) {
		user := trackedUser(t, "password123")
		attemptAt := time.Now().Add(-time.Hour)
		user.LoginAttemptAt = &attemptAt
		user.LoginAttempts = auth.MaxLoginAttempts + 1

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrTooManyLoginAttempts)

		tracker.AssertNotCalled(t, "TrackSuccessfulLogin", mock.Anything, mock.Anything)
	})

	t.Run("attempts reset after the cooldown period", func(t *testing.T) {
		user := trackedUser(t, "password123")
		attemptAt := time.Now().Add(-48 * time.Hour)
		user.LoginAttemptAt = &attemptAt
		user.LoginAttempts = auth.MaxLoginAttempts + 1

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, user).Return(nil).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		require.NoError(t, err)
		assert.NotNil(t, identity)
		assert.Equal(t, 0, user.LoginAttempts)

		tracker.AssertExpectations(t)
	})

	t.Run("tracking a successful login failure is not fatal", func(t *testing.T) {
		user := trackedUser(t, "password123")

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, user).
			Return(goerrors.New("write failed", goerrors.CategoryInternal)).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		require.NoError(t, err)
		assert.NotNil(t, identity)
	})

	t.Run("failure to track attempted login is fatal", func(t *testing.T) {
		user := trackedUser(t, "password123")

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, user).
			Return(goerrors.New("write failed", goerrors.CategoryInternal)).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "wrong_password")

		assert.Nil(t, identity)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("user with an unknown role fails validation", func(t *testing.T) {
		user := trackedUser(t, "password123")
		user.Role = auth.UserRole("superuser")

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, user).Return(nil).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, identity)
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, auth.TextCodeInvalidRole, richErr.TextCode)
	})

	t.Run("custom validator overrides the default", func(t *testing.T) {
		user := trackedUser(t, "password123")
		user.Verified = false

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, user).Return(nil).Once()

		provider := auth.NewUserProvider(tracker)
		provider.Validator = func(u *auth.User) error {
			if !u.Verified {
				return goerrors.New("account not verified", goerrors.CategoryAuth)
			}
			return nil
		}

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, identity)
		assert.Error(t, err)
	})
}

func TestUserProvider_FindIdentityByIdentifier(t *testing.T) {
	ctx := context.Background()

	t.Run("returns identity without touching the password", func(t *testing.T) {
		user := trackedUser(t, "password123")

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "testuser").Return(user, nil).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.FindIdentityByIdentifier(ctx, "testuser")

		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, "user", identity.Role())
	})

	t.Run("store errors pass through untouched", func(t *testing.T) {
		storeErr := goerrors.New("user not found", goerrors.CategoryNotFound)

		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "ghost").Return(nil, storeErr).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.FindIdentityByIdentifier(ctx, "ghost")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("nil user means identity not found", func(t *testing.T) {
		tracker := &MockUserTracker{}
		tracker.On("GetByIdentifier", ctx, "ghost").Return(nil, nil).Once()

		provider := auth.NewUserProvider(tracker)

		identity, err := provider.FindIdentityByIdentifier(ctx, "ghost")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})
}
