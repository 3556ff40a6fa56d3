// Command migrate loads users from the users.json file the portal used
// before MongoDB into the users collection.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"StudentPortal/internal/auth"
	"StudentPortal/internal/bootstrap"
	"StudentPortal/internal/config"
	"StudentPortal/internal/logging"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	os.Exit(migrate())
}

func migrate() int {
	file := flag.String("file", "users.json", "users file to import")
	replace := flag.Bool("replace", false, "delete every existing user first")
	hash := flag.Bool("hash", false, "store bcrypt hashes now instead of on each user's first login")
	flag.Parse()

	if _, err := bootstrap.Loadenv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	var (
		importer *auth.Importer
		logger   *zap.Logger
	)
	app := fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			config.NewMongoDatabase,
			fx.Annotate(auth.NewUserRepository, fx.As(new(auth.Repository))),
			auth.NewImporter,
		),
		fx.Populate(&importer, &logger),
		fx.WithLogger(logging.FxLogger),
	)
	if err := app.Err(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	code := 0
	if err := run(ctx, importer, *file, auth.ImportOptions{Replace: *replace, HashPasswords: *hash}); err != nil {
		logger.Error("migration failed", zap.String("file", *file), zap.Error(err))
		code = 1
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	_ = logger.Sync()
	return code
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.Env)
}

func run(ctx context.Context, importer *auth.Importer, path string, opts auth.ImportOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = importer.Import(ctx, f, opts)
	return err
}
