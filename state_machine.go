package auth

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const (
	textCodeInvalidTransition = "INVALID_VERIFICATION_TRANSITION"
	textCodeTerminalState     = "TERMINAL_VERIFICATION_STATE"
)

// ErrInvalidTransition is returned when a requested verification change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid verification state transition", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// ErrTerminalState is returned when attempting to move away from the verified state.
var ErrTerminalState = goerrors.New("account verification is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

func transitionError(base *goerrors.Error, metadata map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(metadata)
}

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor ActorRef
	User  *User
	From  VerificationState
	To    VerificationState
	Meta  TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes state machine behavior.
type TransitionOption func(*transitionOptions)

// VerificationStateMachine drives a signup through the OTP flow. The state
// is derived rather than stored: verified comes from the user row, otp_sent
// from an outstanding unexpired code for the user's email.
type VerificationStateMachine interface {
	RequestCode(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) error
	Confirm(ctx context.Context, actor ActorRef, user *User, code string, opts ...TransitionOption) (*User, error)
	CurrentState(user *User) VerificationState
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*verificationStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *verificationStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *verificationStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
// Provide a handler to convert hook errors into domain-specific responses,
// otherwise the default handler panics with guidance for developers.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *verificationStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *verificationStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the state change.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the state change succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// WithTransitionTx runs the persistence step inside the given transaction.
func WithTransitionTx(tx bun.IDB) TransitionOption {
	return func(opts *transitionOptions) {
		opts.tx = tx
	}
}

// NewVerificationStateMachine returns the default implementation backed by
// the users repository and OTP service.
func NewVerificationStateMachine(users Users, otp *OTPService, opts ...StateMachineOption) VerificationStateMachine {
	sm := &verificationStateMachine{
		users:        users,
		otp:          otp,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
			return defaultHookErrorHandler(ctx, phase, err, tc)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type verificationStateMachine struct {
	users            Users
	otp              *OTPService
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
	tx          bun.IDB
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

// RequestCode moves unverified or otp_sent into otp_sent by issuing a fresh
// code. Requesting a code for a verified account is a terminal-state error.
// A request while a code is outstanding replaces it, so resends are always
// safe for unverified accounts.
func (sm *verificationStateMachine) RequestCode(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) error {
	if user == nil {
		return transitionError(ErrInvalidTransition, map[string]any{
			"reason": "user is nil",
		})
	}

	from := sm.CurrentState(user)
	options := sm.buildTransitionOptions(opts...)

	if from == VerificationVerified && !options.force {
		return transitionError(ErrAlreadyVerified, map[string]any{
			"user_id": user.ID.String(),
		})
	}

	ctxData := TransitionContext{
		Actor: actor,
		User:  user,
		From:  from,
		To:    VerificationOTPSent,
		Meta:  options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return err
	}

	if err := sm.otp.Send(ctx, user.Email); err != nil {
		return err
	}

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOTPSent,
		Actor:     actor,
		UserID:    user.ID.String(),
		FromState: from,
		ToState:   VerificationOTPSent,
		Metadata:  sm.transitionMetadata(ctxData.Meta),
	})

	return nil
}

// Confirm moves otp_sent into verified when the code matches. The code is
// consumed on success. A wrong, expired, or missing code is an OTP error,
// not a transition error; confirming an already verified account conflicts.
func (sm *verificationStateMachine) Confirm(ctx context.Context, actor ActorRef, user *User, code string, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, transitionError(ErrInvalidTransition, map[string]any{
			"reason": "user is nil",
		})
	}

	from := sm.CurrentState(user)
	options := sm.buildTransitionOptions(opts...)

	if from == VerificationVerified && !options.force {
		return nil, transitionError(ErrTerminalState, map[string]any{
			"from": from,
			"to":   VerificationVerified,
		})
	}

	if !sm.otp.Verify(user.Email, code) {
		return nil, transitionError(ErrOTPInvalidOrExpired, map[string]any{
			"user_id": user.ID.String(),
		})
	}

	ctxData := TransitionContext{
		Actor: actor,
		User:  user,
		From:  from,
		To:    VerificationVerified,
		Meta:  options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return nil, err
	}

	verifiedAt := sm.now()
	var err error
	if options.tx != nil {
		err = sm.users.MarkVerifiedTx(ctx, options.tx, user.ID, verifiedAt)
	} else {
		err = sm.users.MarkVerified(ctx, user.ID, verifiedAt)
	}
	if err != nil {
		return nil, err
	}

	user.MarkVerified(verifiedAt)

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOTPVerified,
		Actor:     actor,
		UserID:    user.ID.String(),
		FromState: from,
		ToState:   VerificationVerified,
		Metadata:  sm.transitionMetadata(ctxData.Meta),
	})

	return user, nil
}

// CurrentState derives the verification state for the user.
func (sm *verificationStateMachine) CurrentState(user *User) VerificationState {
	if user == nil {
		return ""
	}

	if user.Verified {
		return VerificationVerified
	}

	if sm.otp != nil && sm.otp.HasActiveCode(user.Email) {
		return VerificationOTPSent
	}

	return VerificationUnverified
}

func (sm *verificationStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *verificationStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	panic(fmt.Sprintf(
		"auth: %s transition hook failed: %v\nUserID: %s from=%s to=%s reason=%s\nProvide auth.WithStateMachineHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.User.ID,
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

func (sm *verificationStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func (sm *verificationStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
