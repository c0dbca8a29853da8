package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type VerifySignupMessage struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (e VerifySignupMessage) Type() string { return "auth.signup.verify" }

// VerifySignupHandler consumes an OTP code and flips the account into its
// verified state.
type VerifySignupHandler struct {
	repo    RepositoryManager
	machine VerificationStateMachine
	logger  Logger
}

func NewVerifySignupHandler(repo RepositoryManager, machine VerificationStateMachine) *VerifySignupHandler {
	return &VerifySignupHandler{
		repo:    repo,
		machine: machine,
		logger:  defLogger{},
	}
}

func (h *VerifySignupHandler) WithLogger(logger Logger) *VerifySignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifySignupHandler) Execute(ctx context.Context, event VerifySignupMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifySignupHandler) execute(ctx context.Context, event VerifySignupMessage) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			clone := ErrIdentityNotFound.Clone()
			if clone == nil {
				return nil, ErrIdentityNotFound
			}
			clone.Source = ErrIdentityNotFound
			return nil, clone.WithMetadata(map[string]any{
				"identifier": event.Email,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for verification")
	}

	actor := ActorRef{ID: user.ID.String(), Type: "user"}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := h.machine.Confirm(ctx, actor, user, event.Code, WithTransitionTx(tx))
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "signup verification transaction failed")
	}

	return user, nil
}
