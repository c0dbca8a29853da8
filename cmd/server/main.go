package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	auth "github.com/taskdeck/auth"
	"github.com/taskdeck/auth/cmd/server/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config  *gconfig.Container[*config.BaseConfig]
	bunDB   *bun.DB
	auth    auth.Authenticator
	auther  auth.HTTPAuthenticator
	repo    auth.RepositoryManager
	machine auth.VerificationStateMachine
	srv     router.Server[*fiber.App]
	logger  *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Debug),
		glog.WithName("taskdeck"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPAuth(ctx, app); err != nil {
		panic(err)
	}

	ProtectedRoutes(app)

	app.srv.Serve(app.Config().GetServer().GetAddr())

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.Config().GetPersistence().GetDSN())
	if err != nil {
		log.Fatal(err)
		return err
	}

	persistence.RegisterModel((*auth.User)(nil))
	persistence.RegisterModel((*auth.Task)(nil))
	persistence.RegisterModel((*auth.PasswordReset)(nil))

	cfg := app.Config().GetPersistence()
	dialect := sqlitedialect.New()
	client, err := persistence.New(cfg, db, dialect)
	if err != nil {
		log.Fatal(err)
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))
	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           app.Config().GetName(),
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	app.srv = srv

	return nil
}

func WithHTTPAuth(ctx context.Context, app *App) error {
	cfg := app.Config().GetAuth()

	repo := auth.NewRepositoryManager(app.bunDB)
	if err := repo.Validate(); err != nil {
		return err
	}
	app.repo = repo

	sink := activityLogSink(app.GetLogger("auth:activity"))

	userProvider := auth.NewUserProvider(userTrackerAdapter{users: repo.Users()})
	userProvider.WithLogger(app.GetLogger("auth:prv"))

	authenticator := auth.NewAuthenticator(userProvider, cfg)
	authenticator.WithLogger(app.GetLogger("auth:authn"))
	authenticator.WithActivitySink(sink)
	app.auth = authenticator

	mailer := buildMailer(app)
	otp := auth.NewOTPService(
		auth.NewMemoryCodeStore(),
		mailer,
		auth.WithOTPLogger(app.GetLogger("auth:otp")),
	)

	machine := auth.NewVerificationStateMachine(repo.Users(), otp,
		auth.WithStateMachineLogger(app.GetLogger("auth:verify")),
		auth.WithStateMachineActivitySink(sink),
	)
	app.machine = machine

	httpAuth, err := auth.NewHTTPAuthenticator(authenticator, cfg)
	if err != nil {
		return err
	}
	app.auther = httpAuth

	auth.RegisterAuthRoutes(app.srv.Router().Group("/"),
		auth.WithControllerRepo(repo),
		auth.WithControllerAuther(httpAuth),
		auth.WithControllerMachine(machine),
		auth.WithControllerMailer(mailer),
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
	)

	return nil
}

// ProtectedRoutes mounts the task and user controllers behind the JWT guard.
// Role checks beyond authentication run inside the handlers.
// userTrackerAdapter narrows auth.Users to auth.UserTracker: the repository's
// GetByIdentifier is variadic, while the tracker interface declares the plain
// two-argument form.
type userTrackerAdapter struct {
	users auth.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a userTrackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	return a.users.TrackSuccessfulLogin(ctx, user)
}

func ProtectedRoutes(app *App) {
	cfg := app.Config().GetAuth()

	protected := app.auther.ProtectedRoute(cfg, app.auther.MakeClientRouteAuthErrorHandler(false))

	api := app.srv.Router().Group("/api")
	api.Use(protected)

	auth.RegisterTaskRoutes(api,
		auth.WithTaskControllerRepo(app.repo),
		auth.WithTaskControllerLogger(app.GetLogger("tasks:ctrl")),
		auth.WithTaskControllerContextKey(cfg.GetContextKey()),
	)

	auth.RegisterUserRoutes(api,
		auth.WithUserControllerRepo(app.repo),
		auth.WithUserControllerLogger(app.GetLogger("users:ctrl")),
		auth.WithUserControllerContextKey(cfg.GetContextKey()),
	)
}

func buildMailer(app *App) auth.Mailer {
	smtpCfg := app.Config().GetSMTP()
	if smtpCfg.GetHost() == "" {
		return auth.NewLogMailer(app.GetLogger("auth:mail"))
	}

	return auth.NewSMTPMailer(auth.SMTPConfig{
		Host:     smtpCfg.GetHost(),
		Port:     smtpCfg.GetPort(),
		Username: smtpCfg.GetUsername(),
		Password: smtpCfg.GetPassword(),
		From:     smtpCfg.GetFrom(),
	})
}

func activityLogSink(lgr glog.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		lgr.Info("auth activity",
			"event", event.EventType,
			"user_id", event.UserID,
			"from", event.FromState,
			"to", event.ToState,
		)
		return nil
	})
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
