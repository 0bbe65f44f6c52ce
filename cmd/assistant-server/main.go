package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tiger/interview-assistant/internal/app"
	"github.com/tiger/interview-assistant/internal/httpapi"
	"github.com/tiger/interview-assistant/internal/observability/telemetry"
	"github.com/tiger/interview-assistant/internal/runtime/provider/bootstrap"
	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/settings"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "assistant-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	flags := flag.NewFlagSet("assistant-server", flag.ContinueOnError)
	flags.SetOutput(stderr)
	envFile := flags.String("env-file", "", "dotenv file to load before reading the environment")
	addr := flags.String("addr", "", "listen address; overrides HOST and PORT")
	check := flags.Bool("check", false, "initialize providers, print the summary and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = []string{*envFile}
	}
	if err := settings.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	cfg, err := settings.FromEnv(providerconfig.FromEnv())
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(app.Options{
		Settings:    cfg,
		Resolver:    providerconfig.FromEnv(),
		Logger:      logger,
		Version:     version,
		TraceWriter: stderr,
	})
	if err != nil {
		return err
	}
	if *check {
		_, _ = fmt.Fprintf(stdout, "assistant-server: %s\n", bootstrap.Summary(a.Catalog))
		return a.Close(ctx)
	}

	listen := cfg.Addr()
	if *addr != "" {
		listen = *addr
	}
	server := &http.Server{
		Addr:              listen,
		Handler:           httpapi.NewServer(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infow("server listening", "addr", listen, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		a.Hub.CloseAll()
		return errors.Join(server.Shutdown(shutdownCtx), a.Close(shutdownCtx))
	})
	return group.Wait()
}
