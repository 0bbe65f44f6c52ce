package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/tiger/interview-assistant/internal/runtime/audio"
	"github.com/tiger/interview-assistant/internal/runtime/executionpool"
	"github.com/tiger/interview-assistant/internal/runtime/pipeline"
)

// ErrBackpressure is returned when a session already has too many chunks queued.
var ErrBackpressure = errors.New("session queue is full")

// ErrSessionClosed is returned for chunks submitted after Close.
var ErrSessionClosed = errors.New("session is closed")

// Orchestrator runs a session's chunks one at a time in arrival order.
type Orchestrator struct {
	session *Session
	runner  *pipeline.Runner
	sink    pipeline.EventSink
	pool    *executionpool.Manager
	logger  *zap.SugaredLogger
	onRun   func(pipeline.Outcome)
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOutcomeHook observes every finished run.
func WithOutcomeHook(fn func(pipeline.Outcome)) OrchestratorOption {
	return func(o *Orchestrator) { o.onRun = fn }
}

// NewOrchestrator wires session to runner. queueSize bounds pending chunks.
func NewOrchestrator(session *Session, runner *pipeline.Runner, sink pipeline.EventSink, queueSize int, logger *zap.SugaredLogger, opts ...OrchestratorOption) (*Orchestrator, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	o := &Orchestrator{
		session: session,
		runner:  runner,
		sink:    sink,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.pool = executionpool.NewManager(queueSize, executionpool.WithFailureHandler(func(task executionpool.Task, err error) {
		o.logger.Errorw("session task failed", "sessionID", session.ID(), "task", task.ID, "error", err)
	}))
	return o, nil
}

func (o *Orchestrator) Session() *Session { return o.session }

// Submit queues chunk for processing. The chunk sequence is assigned here.
func (o *Orchestrator) Submit(chunk audio.Chunk) error {
	if !o.session.Active() {
		return ErrSessionClosed
	}
	chunk.Sequence = o.session.NextSequence()
	err := o.pool.Submit(executionpool.Task{
		ID: o.session.ID() + "/" + strconv.Itoa(chunk.Sequence),
		Run: func() error {
			ran := o.session.RunExclusive(func(ctx context.Context) {
				outcome := o.runner.Run(ctx, o.session.Snapshot(), chunk, o.sink)
				if o.onRun != nil {
					o.onRun(outcome)
				}
			})
			if !ran {
				o.logger.Debugw("skipping chunk for closed session", "sessionID", o.session.ID(), "sequence", chunk.Sequence)
			}
			return nil
		},
	})
	switch {
	case errors.Is(err, executionpool.ErrQueueFull):
		return ErrBackpressure
	case errors.Is(err, executionpool.ErrClosed):
		return ErrSessionClosed
	default:
		return err
	}
}

// Stats reports the session queue counters.
func (o *Orchestrator) Stats() executionpool.Stats {
	return o.pool.Stats()
}

// Close closes the session, which cancels any run in flight, and waits for
// the queue to drain. Queued chunks are skipped.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.session.Close()
	return o.pool.Drain(ctx)
}

// Finish stops accepting chunks, waits for every queued chunk to run and
// then closes the session.
func (o *Orchestrator) Finish(ctx context.Context) error {
	err := o.pool.Drain(ctx)
	o.session.Close()
	return err
}
