// This is the main entry point of the blogpress application.
// It loads configuration, wires the application context, sets up the HTTP
// router and starts the server with graceful shutdown. The `migrate`
// command applies the SQL migrations and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// `godotenv` loads environment variables from a .env file, useful for development.
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/user/blogpress-go/app"
	"github.com/user/blogpress-go/config"
	"github.com/user/blogpress-go/db"
	"github.com/user/blogpress-go/logging"
)

func main() {
	cliApp := &cli.App{
		Name:  "blogpress",
		Usage: "a small blog with an admin area",
		// Running the binary without a command starts the server.
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations and exit",
				Action: migrateUp,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("blogpress exited with an error")
	}
}

// bootstrap loads .env and the configuration and builds the logger.
func bootstrap() (*config.AppConfig, *logrus.Logger, error) {
	// In production variables are usually set directly, so a missing .env is fine.
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(cfg.LogLevel)
	if envErr != nil {
		log.WithError(envErr).Debug(".env file not found or not readable")
	}
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	return cfg, log, nil
}

func migrateUp(_ *cli.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	applied, err := db.RunMigrations(cfg.Database)
	if err != nil {
		return err
	}
	if applied {
		log.Info("Migrations applied")
	} else {
		log.Info("Database schema already up to date")
	}
	return nil
}

func serve(c *cli.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	a, err := app.New(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	// `http.Server` provides more control over server behavior than `http.ListenAndServe`.
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.NewRouter(a),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// The server runs in its own goroutine so this one can wait for a shutdown signal.
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info("Server shutting down...")
	// Give in-flight requests up to 30 seconds to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server stopped gracefully")
	return nil
}
