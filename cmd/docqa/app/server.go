// Package app provides the Document QA server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/kart-io/docqa/cmd/docqa/app/options"
	"github.com/kart-io/docqa/internal/docqa"
	"github.com/kart-io/docqa/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Document QA API

Upload PDF and image documents into a session, then ask natural-language
questions about them.

This server provides:
  - Text extraction from PDFs and images (OCR)
  - Extractive question answering with retrieval augmentation
  - Named entity recognition and highlighting
  - JWT authentication, rate limiting and Prometheus metrics`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(docqa.Name),
		app.WithShortDescription("Document question answering API"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithConfigHandler("log-level", func(v *viper.Viper) error {
			return opts.LogOptions.ApplyLevel(v.GetString("log.level"))
		}),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
