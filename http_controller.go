package auth

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// GetRouterSession pulls the validated claims the JWT middleware stored in
// the router locals and maps them into a session.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrUnableToFindSession
	}

	claims, ok := raw.(AuthClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	return sessionFromAuthClaims(claims)
}

// RequireRouterClaims returns the validated claims or an auth error.
func RequireRouterClaims(c router.Context, key string) (AuthClaims, error) {
	claims, ok := GetRouterClaims(c, key)
	if !ok {
		return nil, ErrUnableToFindSession
	}
	return claims, nil
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Signup, controller.SignupPost).
		SetName("auth.signup")

	app.Post(controller.Routes.VerifySignup, controller.VerifySignupPost).
		SetName("auth.verify-signup-otp")

	app.Post(controller.Routes.ResendOTP, controller.ResendOTPPost).
		SetName("auth.resend-signup-otp")

	app.Post(controller.Routes.Signin, controller.SigninPost).
		SetName("auth.signin")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("auth.password-reset")

	app.Get(controller.Routes.PasswordResetToken, controller.PasswordResetStatusGet).
		SetName("auth.password-reset.status")

	app.Post(controller.Routes.PasswordResetToken, controller.PasswordResetFinalizePost).
		SetName("auth.password-reset.finalize")
}

type AuthControllerRoutes struct {
	Signup             string
	VerifySignup       string
	ResendOTP          string
	Signin             string
	Logout             string
	PasswordReset      string
	PasswordResetToken string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Machine      VerificationStateMachine
	Mailer       Mailer
	Gate         gate.FeatureGate
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Signup:             "/auth/signup",
			VerifySignup:       "/auth/verify-signup-otp",
			ResendOTP:          "/auth/resend-signup-otp",
			Signin:             "/auth/signin",
			Logout:             "/auth/logout",
			PasswordReset:      "/auth/password-reset",
			PasswordResetToken: "/auth/password-reset/:id",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Machine == nil {
		panic("Missing VerificationStateMachine in auth controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerMachine(machine VerificationStateMachine) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Machine = machine
		return c
	}
}

func WithControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		return c
	}
}

// WithControllerGate enables feature gating for the password reset flow. A nil
// gate leaves the flow always on.
func WithControllerGate(featureGate gate.FeatureGate) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Gate = featureGate
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

// SignupRequest is the registration payload
type SignupRequest struct {
	Name            string `json:"name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Phone           string `json:"phone_number"`
	Address         string `json:"address"`
	Role            string `json:"role"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Username, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Role, validation.In(string(RoleReader), string(RoleUser))),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignupRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload", "error", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("signup validate payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("signup payload: %s", print.MaybePrettyJSON(payload))
	}

	signup := NewSignupHandler(a.Repo, a.Machine).WithLogger(a.Logger)
	user, err := signup.Execute(ctx.Context(), SignupMessage{
		Name:     payload.Name,
		Username: payload.Username,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Address:  payload.Address,
		Role:     payload.Role,
		Password: payload.Password,
	})
	if err != nil {
		// A delivery failure after the row committed still reports the
		// account so the client can retry with a resend.
		if user != nil && goerrors.Is(err, ErrOTPDeliveryFailed) {
			return ctx.JSON(http.StatusAccepted, map[string]any{
				"user":    user,
				"message": "account created, OTP delivery failed, request a resend",
			})
		}
		a.Logger.Error("signup execute", "error", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"user":    user,
		"message": "OTP sent to your email",
	})
}

// VerifySignupRequest carries the email and code for OTP confirmation
type VerifySignupRequest struct {
	Email string `json:"email"`
	Code  string `json:"otp"`
}

// Validate will run validation rules
func (r VerifySignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

func (a *AuthController) VerifySignupPost(ctx router.Context) error {
	payload := new(VerifySignupRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("verify signup parse payload", "error", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	verify := NewVerifySignupHandler(a.Repo, a.Machine).WithLogger(a.Logger)
	user, err := verify.Execute(ctx.Context(), VerifySignupMessage{
		Email: payload.Email,
		Code:  payload.Code,
	})
	if err != nil {
		a.Logger.Error("verify signup execute", "error", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user":    user,
		"message": "account verified",
	})
}

// ResendOTPRequest asks for a fresh signup code
type ResendOTPRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ResendOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ResendOTPPost(ctx router.Context) error {
	payload := new(ResendOTPRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("resend OTP parse payload", "error", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	resend := NewResendOTPHandler(a.Repo, a.Machine).WithLogger(a.Logger)
	if err := resend.Execute(ctx.Context(), ResendOTPMessage{Email: payload.Email}); err != nil {
		a.Logger.Error("resend OTP execute", "error", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "OTP sent to your email",
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether the client asked for a long session
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules. The identifier may be a username,
// email, or phone, so only presence is checked here.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) SigninPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signin parse payload", "error", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("signin identifier: %s", payload.Identifier)
	}

	token, err := a.Auther.LoginToken(ctx, payload)
	if err != nil {
		a.Logger.Error("signin error", "error", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "signed out",
	})
}

// PasswordResetRequest starts the reset flow
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) PasswordResetPost(ctx router.Context) error {
	if a.Gate != nil {
		if err := requirePasswordResetGate(ctx.Context(), a.Gate, false); err != nil {
			return a.respondError(ctx, err)
		}
	}

	payload := new(PasswordResetRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload", "error", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	initialize := NewInitializePasswordResetHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	err := initialize.Execute(ctx.Context(), InitializePasswordResetMessage{Email: payload.Email})
	if err != nil {
		a.Logger.Error("password reset execute", "error", err)
		return a.respondError(ctx, err)
	}

	// same response whether or not the account exists
	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "if the account exists, a reset token was sent to its email",
	})
}

func (a *AuthController) PasswordResetStatusGet(ctx router.Context) error {
	session := ctx.Param("id")
	if session == "" {
		return a.respondError(ctx, goerrors.New("missing reset token", goerrors.CategoryBadInput).
			WithCode(router.StatusBadRequest))
	}

	var resp *PasswordResetStatusResponse
	status := NewPasswordResetStatusHandler(a.Repo)
	err := status.Execute(ctx.Context(), PasswordResetStatusMessage{
		Session: session,
		OnResponse: func(r *PasswordResetStatusResponse) {
			resp = r
		},
	})
	if err != nil {
		a.Logger.Error("password reset status execute", "error", err)
		return a.respondError(ctx, err)
	}

	if resp == nil || !resp.Found {
		return ctx.JSON(http.StatusNotFound, map[string]any{
			"error": "unknown reset token",
		})
	}

	return ctx.JSON(router.StatusOK, resp)
}

// PasswordResetFinalizeRequest carries the new password for a reset token
type PasswordResetFinalizeRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r PasswordResetFinalizeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetFinalizePost(ctx router.Context) error {
	if a.Gate != nil {
		if err := requirePasswordResetGate(ctx.Context(), a.Gate, true); err != nil {
			return a.respondError(ctx, err)
		}
	}

	payload := new(PasswordResetFinalizeRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset finalize parse payload", "error", err)
		return a.respondError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	finalize := NewFinalizePasswordResetHandler(a.Repo).WithLogger(a.Logger)
	err := finalize.Execute(ctx.Context(), FinalizePasswordResetMessage{
		Session:  ctx.Param("id"),
		Password: payload.Password,
	})
	if err != nil {
		a.Logger.Error("password reset finalize execute", "error", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "password updated",
	})
}

func (a *AuthController) respondError(ctx router.Context, err error) error {
	return respondJSONError(ctx, err)
}

// respondJSONError maps rich errors onto HTTP statuses and a stable JSON
// error envelope.
func respondJSONError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(router.StatusInternalServerError)
	}

	status := richErr.Code
	if status == 0 {
		status = statusFromCategory(richErr.Category)
	}

	body := map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	}

	return ctx.JSON(status, body)
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth:
		return router.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return router.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return router.StatusBadRequest
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return router.StatusInternalServerError
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field:message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func defaultErrHandler(c router.Context, err error) error {
	return respondJSONError(c, err)
}
