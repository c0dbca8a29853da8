package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	UseHashid bool
}

func (e SignupMessage) Type() string { return "auth.signup" }

// SignupHandler registers a new account and kicks off email verification.
// The admin role cannot be self-assigned: the check runs before any
// persistence so a rejected signup leaves no partial state behind.
type SignupHandler struct {
	repo    RepositoryManager
	machine VerificationStateMachine
	sink    ActivitySink
	logger  Logger
}

func NewSignupHandler(repo RepositoryManager, machine VerificationStateMachine) *SignupHandler {
	return &SignupHandler{
		repo:    repo,
		machine: machine,
		sink:    noopActivitySink{},
		logger:  defLogger{},
	}
}

func (h *SignupHandler) WithActivitySink(sink ActivitySink) *SignupHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *SignupHandler) WithLogger(logger Logger) *SignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) (*User, error) {
	role, err := resolveSignupRole(event.Role)
	if err != nil {
		return nil, err
	}

	phone, err := resolveSignupPhone(event.Phone)
	if err != nil {
		return nil, err
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.ensureIdentityAvailable(ctx, tx, event); err != nil {
			return err
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Phone = phone
		user.Name = event.Name
		user.Address = event.Address
		user.Role = role
		user.Username = getUsername(event.Username, event.Email)
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	h.recordSignup(ctx, user)

	// The code goes out after the row committed. A delivery failure leaves
	// the account registered, the client recovers through a resend.
	actor := ActorRef{ID: user.ID.String(), Type: "user"}
	if err := h.machine.RequestCode(ctx, actor, user); err != nil {
		h.logger.Error("signup OTP delivery failed", "user_id", user.ID.String(), "error", err)
		return user, err
	}

	return user, nil
}

func (h *SignupHandler) ensureIdentityAvailable(ctx context.Context, tx bun.IDB, event SignupMessage) error {
	identifiers := []string{event.Email}
	if username := getUsername(event.Username, event.Email); username != "" {
		identifiers = append(identifiers, username)
	}

	for _, identifier := range identifiers {
		existing, err := h.repo.Users().GetByIdentifierTx(ctx, tx, identifier)
		if err != nil {
			if goerrors.IsNotFound(err) {
				continue
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing identity")
		}
		if existing != nil {
			clone := ErrDuplicateIdentity.Clone()
			if clone == nil {
				return ErrDuplicateIdentity
			}
			clone.Source = ErrDuplicateIdentity
			return clone.WithMetadata(map[string]any{
				"identifier": identifier,
			})
		}
	}

	return nil
}

func (h *SignupHandler) recordSignup(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType:  ActivityEventSignup,
		Actor:      ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:     user.ID.String(),
		ToState:    VerificationUnverified,
		OccurredAt: time.Now(),
	}
	if err := h.sink.Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}

// resolveSignupRole parses the requested role, defaulting to user when
// omitted. Admin is never grantable through signup.
func resolveSignupRole(raw string) (UserRole, error) {
	if strings.TrimSpace(raw) == "" {
		return RoleUser, nil
	}

	role, err := ParseRole(raw)
	if err != nil {
		return "", err
	}

	if role == RoleAdmin {
		return "", ErrAdminSignupRejected
	}

	return role, nil
}

// resolveSignupPhone normalizes an optional phone number to E.164.
func resolveSignupPhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(trimmed, "US")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithTextCode("INVALID_PHONE_NUMBER").
			WithMetadata(map[string]any{"phone": trimmed})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
