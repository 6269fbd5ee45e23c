// Command gateway runs the Authorization Gateway's HTTP surface: the
// four auth endpoints of spec.md §6, behind a Fiber server. No console
// CRUD routes are mounted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/ideal-world/bios/internal/bootstrap"
	"github.com/ideal-world/bios/internal/httpapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.Load()
	if err != nil {
		panic(err)
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer app.Close()

	if err := app.SeedRoot(ctx); err != nil {
		app.Logger.Fatalf("gateway: seed root scope: %v", err)
	}

	server := fiber.New(fiber.Config{
		AppName:      "bios-gateway",
		ErrorHandler: httpapi.DefaultErrorHandler,
	})

	httpapi.Mount(server, app)

	go func() {
		<-ctx.Done()
		_ = server.ShutdownWithTimeout(httpapi.ShutdownGrace)
	}()

	if err := server.Listen(cfg.ServerAddr); err != nil {
		app.Logger.Errorf("gateway: server stopped: %v", err)
	}
}
