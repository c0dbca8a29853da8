package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// PasswordResetStatusMessage checks whether a reset token is still usable
// before the client shows the change-password form.
type PasswordResetStatusMessage struct {
	Session    string `json:"session"`
	OnResponse func(a *PasswordResetStatusResponse)
}

func (p PasswordResetStatusMessage) Type() string { return "auth.password_reset.status" }

type PasswordResetStatusResponse struct {
	Expired bool `json:"expired"`
	Found   bool `json:"found"`
}

type PasswordResetStatusHandler struct {
	repo RepositoryManager
}

func NewPasswordResetStatusHandler(repo RepositoryManager) *PasswordResetStatusHandler {
	return &PasswordResetStatusHandler{repo: repo}
}

func (h *PasswordResetStatusHandler) Execute(ctx context.Context, event PasswordResetStatusMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset status check")
	default:
		return h.execute(ctx, event)
	}
}

func (h *PasswordResetStatusHandler) execute(ctx context.Context, event PasswordResetStatusMessage) error {
	resp := &PasswordResetStatusResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err := h.repo.PasswordResets().GetByID(ctx, event.Session)
		if err != nil {
			// a missing record is part of the expected flow, not an application error
			if goerrors.IsNotFound(err) {
				resp.Found = false
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve password reset request")
		}

		resp.Found = true

		if reset.Status != ResetRequestedStatus {
			resp.Expired = true
			return nil
		}

		if reset.CreatedAt == nil {
			return goerrors.New("password reset record is missing creation date", goerrors.CategoryInternal)
		}

		expired, err := IsOutsideThresholdPeriod(*reset.CreatedAt, "24h")
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check token expiration period")
		}

		resp.Expired = expired
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check password reset status")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
