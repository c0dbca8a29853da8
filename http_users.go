package auth

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

func RegisterUserRoutes[T any](app router.Router[T], opts ...UserControllerOption) {

	controller := NewUserController(opts...)

	app.Get(controller.Routes.Base, controller.List).
		SetName("users.list")

	app.Get(controller.Routes.Base+"/:id", controller.Show).
		SetName("users.show")

	app.Post(controller.Routes.Base, controller.Create).
		SetName("users.create")

	app.Put(controller.Routes.Base+"/:id", controller.Update).
		SetName("users.update")

	app.Delete(controller.Routes.Base+"/:id", controller.Delete).
		SetName("users.delete")
}

type UserControllerRoutes struct {
	Base string
}

// UserController exposes user administration. Listing is for admins and
// readers, detail is self-or-privileged, and writes are admin only.
type UserController struct {
	Logger     Logger
	Repo       RepositoryManager
	Routes     *UserControllerRoutes
	ContextKey string
}

type UserControllerOption func(*UserController) *UserController

func NewUserController(opts ...UserControllerOption) *UserController {
	c := &UserController{
		Logger:     defLogger{},
		ContextKey: "user",
		Routes: &UserControllerRoutes{
			Base: "/users",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in user controller...")
	}

	return c
}

func WithUserControllerRepo(repo RepositoryManager) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Repo = repo
		return c
	}
}

func WithUserControllerLogger(logger Logger) UserControllerOption {
	return func(c *UserController) *UserController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithUserControllerContextKey(key string) UserControllerOption {
	return func(c *UserController) *UserController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

// UserCreatePayload is the admin user creation body
type UserCreatePayload struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone_number"`
	Address  string `json:"address"`
	Role     string `json:"role"`
	Password string `json:"password"`
	Verified bool   `json:"is_verified"`
}

// Validate will run validation rules
func (r UserCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Role, validation.In(GetAllRolesAny()...)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// UserUpdatePayload is the admin user update body
type UserUpdatePayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone_number"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

// Validate will run validation rules
func (r UserUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(1, 200)),
		validation.Field(&r.Role, validation.In(GetAllRolesAny()...)),
	)
}

func (u *UserController) identity(ctx router.Context) (Identity, error) {
	claims, err := RequireRouterClaims(ctx, u.ContextKey)
	if err != nil {
		return nil, err
	}
	return NewIdentityFromClaims(claims), nil
}

func (u *UserController) List(ctx router.Context) error {
	identity, err := u.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	if err := Authorize(identity, RoleAdmin, RoleReader); err != nil {
		return respondJSONError(ctx, err)
	}

	users, err := u.Repo.Users().ListAll(ctx.Context())
	if err != nil {
		u.Logger.Error("user list", "error", err)
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, users)
}

func (u *UserController) Show(ctx router.Context) error {
	identity, err := u.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return respondJSONError(ctx, goerrors.New("invalid user id", goerrors.CategoryBadInput).
			WithCode(router.StatusBadRequest))
	}

	if err := AuthorizeSelfOrRoles(identity, id.String(), RoleAdmin, RoleReader); err != nil {
		return respondJSONError(ctx, err)
	}

	user, err := u.Repo.Users().GetByID(ctx.Context(), id.String())
	if err != nil {
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

func (u *UserController) Create(ctx router.Context) error {
	identity, err := u.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	if err := Authorize(identity, RoleAdmin); err != nil {
		return respondJSONError(ctx, err)
	}

	payload := new(UserCreatePayload)
	if err := ctx.Bind(payload); err != nil {
		u.Logger.Error("user create parse payload", "error", err)
		return respondJSONError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	role := RoleUser
	if payload.Role != "" {
		// admins may assign any role, including admin
		if role, err = ParseRole(payload.Role); err != nil {
			return respondJSONError(ctx, err)
		}
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	user := &User{
		Name:         payload.Name,
		Username:     getUsername(payload.Username, payload.Email),
		Email:        payload.Email,
		Phone:        payload.Phone,
		Address:      payload.Address,
		Role:         role,
		PasswordHash: hash,
		Verified:     payload.Verified,
	}

	user, err = u.Repo.Users().Register(ctx.Context(), user)
	if err != nil {
		u.Logger.Error("user create", "error", err)
		return respondJSONError(ctx, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user"))
	}

	return ctx.JSON(http.StatusCreated, user)
}

func (u *UserController) Update(ctx router.Context) error {
	identity, err := u.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	if err := Authorize(identity, RoleAdmin); err != nil {
		return respondJSONError(ctx, err)
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return respondJSONError(ctx, goerrors.New("invalid user id", goerrors.CategoryBadInput).
			WithCode(router.StatusBadRequest))
	}

	payload := new(UserUpdatePayload)
	if err := ctx.Bind(payload); err != nil {
		u.Logger.Error("user update parse payload", "error", err)
		return respondJSONError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	record := &User{ID: id}
	record.Name = payload.Name
	record.Phone = payload.Phone
	record.Address = payload.Address
	if payload.Role != "" {
		role, err := ParseRole(payload.Role)
		if err != nil {
			return respondJSONError(ctx, err)
		}
		record.Role = role
	}

	user, err := u.Repo.Users().Update(ctx.Context(), record,
		repository.UpdateByID(id.String()),
		repository.UpdateSkipZeroValues(),
	)
	if err != nil {
		u.Logger.Error("user update", "error", err)
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

func (u *UserController) Delete(ctx router.Context) error {
	identity, err := u.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	if err := Authorize(identity, RoleAdmin); err != nil {
		return respondJSONError(ctx, err)
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return respondJSONError(ctx, goerrors.New("invalid user id", goerrors.CategoryBadInput).
			WithCode(router.StatusBadRequest))
	}

	if err := u.Repo.Users().DeleteByID(ctx.Context(), id); err != nil {
		u.Logger.Error("user delete", "error", err)
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "user deleted",
	})
}
