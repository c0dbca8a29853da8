package auth_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/auth"
)

func TestVerifySignupHandler_Execute(t *testing.T) {
	ctx := context.Background()

	event := auth.VerifySignupMessage{
		Email: "test@example.com",
		Code:  "123456",
	}

	t.Run("confirms the code inside a transaction", func(t *testing.T) {
		repo := newTxRepo()
		machine := &MockStateMachine{}

		user := &auth.User{ID: uuid.New(), Email: "test@example.com"}

		repo.users.On("GetByIdentifier", mock.Anything, "test@example.com", mock.Anything).
			Return(user, nil).Once()

		machine.On("Confirm", mock.Anything, mock.MatchedBy(func(actor auth.ActorRef) bool {
			return actor.ID == user.ID.String() && actor.Type == "user"
		}), user, "123456", mock.MatchedBy(func(opts []auth.TransitionOption) bool {
			return len(opts) == 1
		})).Return(user, nil).Once()

		handler := auth.NewVerifySignupHandler(repo, machine).WithLogger(testLogger{})

		verified, err := handler.Execute(ctx, event)

		require.NoError(t, err)
		assert.Equal(t, user, verified)

		repo.users.AssertExpectations(t)
		machine.AssertExpectations(t)
	})

	t.Run("unknown email reads as identity not found", func(t *testing.T) {
		repo := newTxRepo()
		machine := &MockStateMachine{}

		repo.users.On("GetByIdentifier", mock.Anything, "test@example.com", mock.Anything).
			Return(nil, notFoundErr()).Once()

		handler := auth.NewVerifySignupHandler(repo, machine).WithLogger(testLogger{})

		verified, err := handler.Execute(ctx, event)

		assert.Nil(t, verified)
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)

		machine.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure is wrapped as internal", func(t *testing.T) {
		repo := newTxRepo()
		machine := &MockStateMachine{}

		repo.users.On("GetByIdentifier", mock.Anything, "test@example.com", mock.Anything).
			Return(nil, goerrors.New("connection refused", goerrors.CategoryInternal)).Once()

		handler := auth.NewVerifySignupHandler(repo, machine).WithLogger(testLogger{})

		verified, err := handler.Execute(ctx, event)

		assert.Nil(t, verified)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("wrong code surfaces the machine error", func(t *testing.T) {
		repo := newTxRepo()
		machine := &MockStateMachine{}

		user := &auth.User{ID: uuid.New(), Email: "test@example.com"}

		repo.users.On("GetByIdentifier", mock.Anything, "test@example.com", mock.Anything).
			Return(user, nil).Once()
		machine.On("Confirm", mock.Anything, mock.Anything, user, "123456", mock.Anything).
			Return(nil, auth.ErrOTPInvalidOrExpired).Once()

		handler := auth.NewVerifySignupHandler(repo, machine).WithLogger(testLogger{})

		verified, err := handler.Execute(ctx, event)

		assert.Nil(t, verified)
		assert.ErrorIs(t, err, auth.ErrOTPInvalidOrExpired)
	})

	t.Run("cancelled context aborts early", func(t *testing.T) {
		repo := newTxRepo()
		machine := &MockStateMachine{}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		handler := auth.NewVerifySignupHandler(repo, machine).WithLogger(testLogger{})

		verified, err := handler.Execute(cancelled, event)

		assert.Nil(t, verified)
		assert.Error(t, err)
	})
}
