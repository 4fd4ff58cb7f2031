// main.go - HTTP server application
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "time/tzdata"

	"insightica/internal"
	"insightica/internal/config"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	app, err := internal.NewApp(config.GetConfig(), version)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	log.Println("Starting application...")
	serveErr := app.StartAsync()

	waitForShutdownSignal(app, serveErr)
}

// waitForShutdownSignal blocks until a termination signal or a listener
// failure, then shuts down gracefully.
func waitForShutdownSignal(app *internal.App, serveErr <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err, ok := <-serveErr:
		if ok {
			log.Printf("HTTP server stopped: %v", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	log.Println("Initiating graceful shutdown...")
	if err := app.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		exitCode = 1
	}
	log.Println("Server shutdown complete")
	os.Exit(exitCode)
}
