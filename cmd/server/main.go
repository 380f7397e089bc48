package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"parley/internal/auth"
	"parley/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, serves until a shutdown signal arrives, and
// centralizes error reporting so deferred cleanup always executes.
func run() error {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetConfig(cfg)

	rooms := server.NewRoomStore()
	accounts := auth.NewStore()
	hub := server.NewHub(rooms)
	go hub.Run()

	api := server.NewAPI(hub, rooms, accounts)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(api))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown hub: %w", err)
	}
	return nil
}
