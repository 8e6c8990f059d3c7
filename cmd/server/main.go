package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MegaGrindStone/deepseek-chat/internal/handlers"
	"github.com/MegaGrindStone/deepseek-chat/internal/services"
)

const errLoggerKey = "err"

func main() {
	defaultPath, err := configPath()
	if err != nil {
		log.Fatal(err)
	}
	cfgFilePath := flag.String("config", defaultPath, "path to the config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgFilePath)
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped", slog.String(errLoggerKey, err.Error()))
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	completions := services.NewCompletions(cfg.BaseURL, cfg.Model, nil, logger)

	m, err := handlers.NewMain(completions, completions.Model(), logger)
	if err != nil {
		return fmt.Errorf("error creating handlers: %w", err)
	}
	m.Session().SetStreaming(cfg.Stream)

	handler, err := m.Routes(cfg.AllowedOrigins)
	if err != nil {
		return fmt.Errorf("error creating routes: %w", err)
	}

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String(errLoggerKey, err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("baseURL", cfg.BaseURL),
			slog.String("model", cfg.Model),
			slog.Bool("stream", cfg.Stream))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error forcing server close: %w", err)
			}
		}
	}

	return nil
}
