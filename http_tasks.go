package auth

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

func RegisterTaskRoutes[T any](app router.Router[T], opts ...TaskControllerOption) {

	controller := NewTaskController(opts...)

	app.Post(controller.Routes.Base, controller.Create).
		SetName("tasks.create")

	app.Get(controller.Routes.Base, controller.List).
		SetName("tasks.list")

	app.Get(controller.Routes.Base+"/:id", controller.Show).
		SetName("tasks.show")

	app.Put(controller.Routes.Base+"/:id", controller.Update).
		SetName("tasks.update")

	app.Delete(controller.Routes.Base+"/:id", controller.Delete).
		SetName("tasks.delete")
}

type TaskControllerRoutes struct {
	Base string
}

// TaskController exposes task CRUD. Authentication happens in the JWT
// middleware; per-operation policy runs here. Creation needs at least the
// user role, mutation is owner-or-admin, deletion is admin only.
type TaskController struct {
	Logger     Logger
	Repo       RepositoryManager
	Routes     *TaskControllerRoutes
	ContextKey string
}

type TaskControllerOption func(*TaskController) *TaskController

func NewTaskController(opts ...TaskControllerOption) *TaskController {
	c := &TaskController{
		Logger:     defLogger{},
		ContextKey: "user",
		Routes: &TaskControllerRoutes{
			Base: "/tasks",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in task controller...")
	}

	return c
}

func WithTaskControllerRepo(repo RepositoryManager) TaskControllerOption {
	return func(c *TaskController) *TaskController {
		c.Repo = repo
		return c
	}
}

func WithTaskControllerLogger(logger Logger) TaskControllerOption {
	return func(c *TaskController) *TaskController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithTaskControllerContextKey(key string) TaskControllerOption {
	return func(c *TaskController) *TaskController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

// TaskPayload is the create/update body
type TaskPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// Validate will run validation rules
func (r TaskPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Status, validation.In(
			TaskStatusPending,
			TaskStatusInProgress,
			TaskStatusDone,
		)),
	)
}

func (t *TaskController) identity(ctx router.Context) (Identity, error) {
	claims, err := RequireRouterClaims(ctx, t.ContextKey)
	if err != nil {
		return nil, err
	}
	return NewIdentityFromClaims(claims), nil
}

func (t *TaskController) Create(ctx router.Context) error {
	identity, err := t.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	if err := Authorize(identity, RoleUser, RoleAdmin); err != nil {
		return respondJSONError(ctx, err)
	}

	payload := new(TaskPayload)
	if err := ctx.Bind(payload); err != nil {
		t.Logger.Error("task create parse payload", "error", err)
		return respondJSONError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	ownerID, err := IdentityUUID(identity)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	task := &Task{
		Title:       payload.Title,
		Description: payload.Description,
		Status:      payload.Status,
		DueDate:     payload.DueDate,
		OwnerID:     ownerID,
	}

	task, err = t.Repo.Tasks().Create(ctx.Context(), task)
	if err != nil {
		t.Logger.Error("task create", "error", err)
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, task)
}

func (t *TaskController) List(ctx router.Context) error {
	identity, err := t.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	// any authenticated role may browse tasks
	if err := Authorize(identity); err != nil {
		return respondJSONError(ctx, err)
	}

	tasks, err := t.Repo.Tasks().ListAll(ctx.Context())
	if err != nil {
		t.Logger.Error("task list", "error", err)
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, tasks)
}

func (t *TaskController) Show(ctx router.Context) error {
	identity, err := t.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	if err := Authorize(identity); err != nil {
		return respondJSONError(ctx, err)
	}

	task, err := t.loadTask(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, task)
}

func (t *TaskController) Update(ctx router.Context) error {
	identity, err := t.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	task, err := t.loadTask(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	if err := AuthorizeOwnerOrAdmin(identity, task.OwnerID.String()); err != nil {
		return respondJSONError(ctx, err)
	}

	payload := new(TaskPayload)
	if err := ctx.Bind(payload); err != nil {
		t.Logger.Error("task update parse payload", "error", err)
		return respondJSONError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(router.StatusBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	task.Title = payload.Title
	task.Description = payload.Description
	if payload.Status != "" {
		task.Status = payload.Status
	}
	task.DueDate = payload.DueDate

	task, err = t.Repo.Tasks().Update(ctx.Context(), task, repository.UpdateByID(task.ID.String()))
	if err != nil {
		t.Logger.Error("task update", "error", err)
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, task)
}

func (t *TaskController) Delete(ctx router.Context) error {
	identity, err := t.identity(ctx)
	if err != nil {
		return respondJSONError(ctx, err)
	}

	if err := Authorize(identity, RoleAdmin); err != nil {
		return respondJSONError(ctx, err)
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return respondJSONError(ctx, goerrors.New("invalid task id", goerrors.CategoryBadInput).
			WithCode(router.StatusBadRequest))
	}

	if err := t.Repo.Tasks().DeleteByID(ctx.Context(), id); err != nil {
		t.Logger.Error("task delete", "error", err)
		return respondJSONError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "task deleted",
	})
}

func (t *TaskController) loadTask(ctx router.Context) (*Task, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return nil, goerrors.New("invalid task id", goerrors.CategoryBadInput).
			WithCode(router.StatusBadRequest)
	}

	task, err := t.Repo.Tasks().GetByID(ctx.Context(), id.String())
	if err != nil {
		return nil, err
	}

	return task, nil
}
