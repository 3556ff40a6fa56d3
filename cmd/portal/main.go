package main

import (
	"log"

	"StudentPortal/internal/bootstrap"
	"StudentPortal/internal/logging"
	"StudentPortal/pkg/routes"

	"go.uber.org/fx"
)

func main() {
	if _, err := bootstrap.Loadenv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	app := fx.New(
		routes.EchoModules,
		fx.WithLogger(logging.FxLogger),
	)
	app.Run()
}
