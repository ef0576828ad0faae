package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	auth "github.com/goliatone/go-auth-accounts"
	"github.com/goliatone/go-auth-accounts/activitymap"
	"github.com/goliatone/go-auth-accounts/media"
	"github.com/goliatone/go-auth-accounts/repository/mongostore"
)

type store interface {
	auth.Users
	EnsureSchema(ctx context.Context) error
}

func main() {
	zlog, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zlog.Sync()

	if err := run(zlog); err != nil {
		zlog.Fatal("accounts server stopped", zap.Error(err))
	}
}

func run(zlog *zap.Logger) error {
	settings, err := auth.LoadSettings()
	if err != nil {
		return err
	}

	if settings.Debug {
		if dev, err := zap.NewDevelopment(); err == nil {
			zlog = dev
		}
	}

	logger := auth.NewZapLogger(zlog)

	if err := settings.Validate(); err != nil {
		return err
	}

	if !settings.HasAdminCredentials() {
		logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set, admin login is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openStore(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := users.EnsureSchema(ctx); err != nil {
		return err
	}

	sink := activitymap.NewZapSink(zlog.Named("activity"))

	auther := auth.NewAuthenticator(users, settings).
		WithLogger(logger.Named("auth")).
		WithActivitySink(sink)

	accountOpts := []auth.AccountOption{
		auth.WithAccountLogger(logger.Named("accounts")),
		auth.WithAccountActivitySink(sink),
	}

	cloudinary := media.CloudinaryConfig{
		CloudName: settings.CloudinaryCloudName,
		APIKey:    settings.CloudinaryAPIKey,
		APISecret: settings.CloudinaryAPISecret,
		Folder:    settings.CloudinaryFolder,
	}
	if cloudinary.Configured() {
		uploader, err := media.NewCloudinaryUploader(cloudinary)
		if err != nil {
			return err
		}
		accountOpts = append(accountOpts, auth.WithMediaUploader(uploader))
	} else {
		logger.Warn("cloudinary credentials not set, profile picture uploads are disabled")
	}

	accounts := auth.NewAccountService(users, accountOpts...)

	httpLogger := logger.Named("http")
	errorHandler := auth.NewErrorHandler(httpLogger, settings.Debug)

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:      "accounts",
			ErrorHandler: auth.NewFiberErrorHandler(httpLogger, settings.Debug),
			BodyLimit:    auth.MaxAvatarSize + 1<<20,
		}))
		app.Use(recover.New())
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
		return app
	})

	srv.Router().Get("/health", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
	}).SetName("health")

	auth.RegisterAuthRoutes(srv.Router(), auth.NewAuthController(auther, accounts,
		auth.WithControllerLogger(httpLogger),
		auth.WithControllerDebug(settings.Debug),
		auth.WithControllerErrorHandler(errorHandler),
	))
	auth.RegisterAdminRoutes(srv.Router(), auth.NewAdminController(auther, accounts,
		auth.WithAdminControllerLogger(logger.Named("admin")),
		auth.WithAdminControllerErrorHandler(errorHandler),
	))

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := srv.WrappedRouter().ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown error: %v", err)
		}
	}()

	logger.Info("listening on %s (store=%s)", settings.HTTPAddr, settings.StoreDriver)
	return srv.Serve(settings.HTTPAddr)
}

func openStore(ctx context.Context, settings auth.Settings, logger auth.Logger) (store, func(), error) {
	switch settings.StoreDriver {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(settings.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("mongo disconnect: %v", err)
			}
		}
		if err := client.Ping(ctx, nil); err != nil {
			closeFn()
			return nil, nil, err
		}
		return mongostore.NewUsers(client.Database(settings.MongoDB)), closeFn, nil

	case "sql", "":
		sqldb, err := sql.Open(sqliteshim.ShimName, settings.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		db := bun.NewDB(sqldb, sqlitedialect.New())
		closeFn := func() {
			if err := db.Close(); err != nil {
				logger.Error("database close: %v", err)
			}
		}
		return auth.NewUsersRepository(db), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", settings.StoreDriver)
	}
}
