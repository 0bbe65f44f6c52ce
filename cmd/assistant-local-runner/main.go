package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tiger/interview-assistant/api/transport"
	"github.com/tiger/interview-assistant/internal/app"
	"github.com/tiger/interview-assistant/internal/observability/telemetry"
	"github.com/tiger/interview-assistant/internal/runtime/audio"
	"github.com/tiger/interview-assistant/internal/runtime/pipeline"
	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/session"
	"github.com/tiger/interview-assistant/internal/settings"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, time.Now); err != nil {
		fmt.Fprintf(os.Stderr, "assistant-local-runner: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	wavPath   string
	chunk     time.Duration
	source    string
	target    string
	style     string
	maxLength int
	sessionID string
	timeout   time.Duration
	envFile   string
}

func run(args []string, stdout io.Writer, stderr io.Writer, now func() time.Time) error {
	if len(args) > 0 {
		switch args[0] {
		case "help", "-h", "--help":
			printUsage(stdout)
			return nil
		}
	}

	var opts options
	flags := flag.NewFlagSet("assistant-local-runner", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.wavPath, "wav", "", "PCM16 mono WAV file to stream (required)")
	flags.DurationVar(&opts.chunk, "chunk", 2*time.Second, "audio chunk duration")
	flags.StringVar(&opts.source, "source", "", "source language override")
	flags.StringVar(&opts.target, "target", "", "target language override")
	flags.StringVar(&opts.style, "style", "", "answer style override")
	flags.IntVar(&opts.maxLength, "max-length", 0, "answer word limit override")
	flags.StringVar(&opts.sessionID, "session", "local", "session id stamped on every event")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall run timeout")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading the environment")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(opts.wavPath) == "" {
		printUsage(stderr)
		return fmt.Errorf("-wav is required")
	}

	data, err := os.ReadFile(opts.wavPath)
	if err != nil {
		return fmt.Errorf("read wav: %w", err)
	}
	source, err := audio.NewWAVSource(data, opts.chunk)
	if err != nil {
		return fmt.Errorf("parse wav: %w", err)
	}

	var envFiles []string
	if opts.envFile != "" {
		envFiles = []string{opts.envFile}
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

	a, err := app.New(app.Options{Settings: cfg, Resolver: providerconfig.FromEnv(), Logger: logger, Version: "local", TraceWriter: stderr, Now: now})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	defer func() { _ = a.Close(context.Background()) }()

	patch := settings.Patch{}
	if opts.source != "" {
		patch.SourceLanguage = &opts.source
	}
	if opts.target != "" {
		patch.TargetLanguage = &opts.target
	}
	if opts.style != "" {
		patch.AnswerStyle = &opts.style
	}
	if opts.maxLength > 0 {
		patch.AnswerMaxLength = &opts.maxLength
	}
	defaults, err := a.Store.Update(patch)
	if err != nil {
		return err
	}

	sess, err := session.New(ctx, opts.sessionID, defaults.Snapshot(), now())
	if err != nil {
		return err
	}
	printer := &framePrinter{w: stdout}
	tally := &outcomeTally{counts: map[pipeline.Status]int{}}
	orch, err := session.NewOrchestrator(sess, a.Runner, printer, cfg.SessionQueue, logger, session.WithOutcomeHook(tally.add))
	if err != nil {
		return err
	}

	for {
		chunk, ok := source.Next(ctx)
		if !ok {
			break
		}
		if err := submit(ctx, orch, chunk); err != nil {
			_ = orch.Close(context.Background())
			return err
		}
	}
	if err := orch.Finish(ctx); err != nil {
		_ = orch.Close(context.Background())
		return fmt.Errorf("wait for pipeline: %w", err)
	}
	if err := printer.err; err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stderr, "assistant-local-runner: %s\n", tally)
	return ctx.Err()
}

// submit retries while the session queue is full so every chunk runs.
func submit(ctx context.Context, orch *session.Orchestrator, chunk audio.Chunk) error {
	for {
		err := orch.Submit(chunk)
		if !errors.Is(err, session.ErrBackpressure) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// framePrinter writes each outbound event as one JSON line.
type framePrinter struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func (p *framePrinter) Publish(msg transport.Outbound) {
	payload, err := transport.EncodeOutbound(msg)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	if err != nil {
		p.err = err
		return
	}
	if _, err := fmt.Fprintf(p.w, "%s\n", payload); err != nil {
		p.err = err
	}
}

type outcomeTally struct {
	mu     sync.Mutex
	runs   int
	counts map[pipeline.Status]int
}

func (t *outcomeTally) add(outcome pipeline.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	t.counts[outcome.Status]++
}

func (t *outcomeTally) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("processed %d chunks: completed=%d short_circuited=%d failed=%d cancelled=%d",
		t.runs,
		t.counts[pipeline.StatusCompleted],
		t.counts[pipeline.StatusShortCircuited],
		t.counts[pipeline.StatusFailed],
		t.counts[pipeline.StatusCancelled],
	)
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "assistant-local-runner usage:")
	_, _ = fmt.Fprintln(w, "  assistant-local-runner -wav <file.wav> [-chunk 2s] [-source auto] [-target en] [-style professional]")
	_, _ = fmt.Fprintln(w, "Streams the file through one session pipeline and prints every event as a JSON line.")
}
