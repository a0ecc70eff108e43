package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/goliatone/go-usersys"
	"github.com/goliatone/go-usersys/activitymap"
	"github.com/goliatone/go-usersys/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	callerMembers = "members"
	callerStaff   = "staff"

	staffPrefix = "/staff"
)

func main() {
	configPath := flag.String("config", "", "path to a config.yml file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lgr := newLogger(cfg.LogLevel, "app")
	if cfg.Debug {
		fmt.Println(print.MaybePrettyJSON(cfg))
	}

	ctx := context.Background()

	db, err := openDB(ctx, cfg.DSN)
	if err != nil {
		lgr.Error("open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	managerOpts := []usersys.ManagerOption{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		managerOpts = append(managerOpts, usersys.WithManagerSessionStore(
			redisstore.NewStore(client, redisstore.WithTTL(cfg.Auth.GetSessionDuration())),
		))
	}

	repo := usersys.NewRepositoryManager(db, managerOpts...)
	if err := repo.Validate(); err != nil {
		lgr.Error("repositories: %v", err)
		os.Exit(1)
	}

	service := newService(cfg, repo, lgr)

	codec := usersys.NewSessionCodec(cfg.Auth, "usersys-demo").WithLogger(lgr.named("codec"))
	adapter := usersys.NewHTTPAdapter(service, codec).WithLogger(lgr.named("http"))
	if cfg.Insecure {
		adapter = adapter.WithInsecureCookies()
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: cfg.Debug,
			StrictRouting:     false,
		}))
	})

	mountRoutes(srv.Router(), adapter, lgr, cfg.Debug)

	lgr.Info("listening on %s", cfg.Addr)
	srv.Serve(cfg.Addr)

	sig := waitExitSignal()
	lgr.Info("shutting down: %s", sig)
}

// mountRoutes serves members from the root and staff under staffPrefix,
// each caller gets its own login form
func mountRoutes[T any](r router.Router[T], adapter *usersys.HTTPAdapter, lgr zlogger, debug bool) (members, staff *usersys.Controller) {
	r.Use(flash.ToMiddleware(flash.DefaultFlash, "flash"))

	members = usersys.RegisterRoutes(r,
		usersys.WithControllerAdapter(adapter),
		usersys.WithControllerCaller(callerMembers),
		usersys.WithControllerLogger(lgr.named("members")),
		usersys.WithControllerDebug(debug),
	)

	staff = usersys.RegisterRoutes(r.Group(staffPrefix),
		usersys.WithControllerAdapter(adapter),
		usersys.WithControllerCaller(callerStaff),
		usersys.WithControllerLogger(lgr.named("staff")),
		usersys.WithControllerDebug(debug),
	)

	r.Get("/dashboard", adapter.Protect(callerMembers)(dashboard)).
		SetName("demo.dashboard.get")
	r.Get(staffPrefix, adapter.Protect(callerStaff, "admin")(dashboard)).
		SetName("demo.staff.get")

	return members, staff
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, model := range usersys.Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return db, nil
}

func newService(cfg *AppConfig, repo usersys.RepositoryManager, lgr zlogger) *usersys.Service {
	hasher := usersys.NewBcryptHasher(0)
	users := repo.Users()

	password := usersys.NewPasswordStrategy(users, hasher).WithLogger(lgr.named("password"))

	callers := usersys.NewCallerRegistry(usersys.CallerConfig{
		Strategy:           password,
		Identities:         users,
		Sessions:           repo.Sessions(),
		DefaultDestination: cfg.Auth.GetDefaultDestination(),
	})

	service := usersys.NewService(cfg.Auth, repo, callers,
		usersys.WithServiceLogger(lgr.named("usersys")),
		usersys.WithPassphraseHasher(hasher),
		usersys.WithNotifier(usersys.LogNotifier{Logger: lgr.named("notifier")}),
		usersys.WithActivitySink(activitymap.Sink(lgr.named("activity").audit)),
	)

	must(callers.Register(callerMembers, usersys.CallerConfig{}))
	must(callers.Register(callerStaff, usersys.CallerConfig{
		Strategy: usersys.NewChainedStrategy(
			usersys.NewTokenStrategy(service.Tokens()),
			password,
		),
		LoginURL:           usersys.Path(staffPrefix + "/login"),
		DefaultDestination: usersys.Path(staffPrefix),
	}, callerMembers))

	return service
}

func dashboard(ctx router.Context) error {
	user, ok := usersys.CurrentUser(ctx)
	if !ok {
		return ctx.JSON(fiber.StatusUnauthorized, router.ViewContext{
			"error": "unauthorized",
		})
	}
	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"id":    user.ID,
		"login": user.Login,
		"name":  user.DisplayName(),
	})
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func waitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
