package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiger/interview-assistant/api/transport"
	"github.com/tiger/interview-assistant/internal/runtime/pipeline"
)

// Session is the per-connection state. Configuration is guarded by its own
// mutex so config updates never wait on a run in flight.
type Session struct {
	id        string
	createdAt time.Time

	cfgMu  sync.RWMutex
	config pipeline.Snapshot

	active   atomic.Bool
	sequence atomic.Int64

	runMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates an active session seeded with defaults. The session context is
// derived from parent and cancelled by Close.
func New(parent context.Context, id string, defaults pipeline.Snapshot, now time.Time) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defaults.SessionID = id
	s := &Session{
		id:        id,
		createdAt: now.UTC(),
		config:    defaults,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.active.Store(true)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Active() bool { return s.active.Load() }

// Snapshot copies the configuration a run reads.
func (s *Session) Snapshot() pipeline.Snapshot {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.config
}

// UpdateLanguages applies the non-empty fields of update and returns the
// resulting language pair.
func (s *Session) UpdateLanguages(update transport.ConfigUpdate) transport.ConfigUpdatedData {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	if update.SourceLanguage != nil {
		if v := strings.TrimSpace(*update.SourceLanguage); v != "" {
			s.config.SourceLanguage = v
		}
	}
	if update.TargetLanguage != nil {
		if v := strings.TrimSpace(*update.TargetLanguage); v != "" {
			s.config.TargetLanguage = v
		}
	}
	return transport.ConfigUpdatedData{
		SourceLanguage: s.config.SourceLanguage,
		TargetLanguage: s.config.TargetLanguage,
	}
}

// NextSequence advances the inbound chunk cursor.
func (s *Session) NextSequence() int {
	return int(s.sequence.Add(1))
}

// RunExclusive runs fn holding the session run lock. It returns false
// without calling fn when the session is already closed.
func (s *Session) RunExclusive(fn func(ctx context.Context)) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.Active() {
		return false
	}
	fn(s.ctx)
	return true
}

// Close marks the session inactive and cancels its context. Safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.active.Store(false)
		s.cancel()
	})
}
