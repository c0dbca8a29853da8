package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ResendOTPMessage struct {
	Email string `json:"email"`
}

func (e ResendOTPMessage) Type() string { return "auth.signup.resend_otp" }

// ResendOTPHandler issues a fresh code for a pending signup. The new code
// replaces any outstanding one; verified accounts are refused.
type ResendOTPHandler struct {
	repo    RepositoryManager
	machine VerificationStateMachine
	logger  Logger
}

func NewResendOTPHandler(repo RepositoryManager, machine VerificationStateMachine) *ResendOTPHandler {
	return &ResendOTPHandler{
		repo:    repo,
		machine: machine,
		logger:  defLogger{},
	}
}

func (h *ResendOTPHandler) WithLogger(logger Logger) *ResendOTPHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendOTPHandler) Execute(ctx context.Context, event ResendOTPMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during OTP resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendOTPHandler) execute(ctx context.Context, event ResendOTPMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			clone := ErrIdentityNotFound.Clone()
			if clone == nil {
				return ErrIdentityNotFound
			}
			clone.Source = ErrIdentityNotFound
			return clone.WithMetadata(map[string]any{
				"identifier": event.Email,
			})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for OTP resend")
	}

	actor := ActorRef{ID: user.ID.String(), Type: "user"}

	if err := h.machine.RequestCode(ctx, actor, user); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resend OTP")
	}

	return nil
}
