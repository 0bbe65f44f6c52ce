package session

import (
	"context"
	"testing"
	"time"

	"github.com/tiger/interview-assistant/api/transport"
	"github.com/tiger/interview-assistant/internal/runtime/pipeline"
)

func defaults() pipeline.Snapshot {
	return pipeline.Snapshot{SourceLanguage: "auto", TargetLanguage: "en", AnswerStyle: "professional", MaxLength: 150}
}

func strptr(v string) *string { return &v }

func TestNewRequiresID(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), "  ", defaults(), time.Now()); err == nil {
		t.Fatalf("expected empty session id to fail")
	}
}

func TestSnapshotCarriesSessionID(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), "sess-1", defaults(), time.Unix(10, 0))
	if err != nil {
		t.Fatalf("unexpected session error: %v", err)
	}
	snap := s.Snapshot()
	if snap.SessionID != "sess-1" || snap.TargetLanguage != "en" || !s.Active() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !s.CreatedAt().Equal(time.Unix(10, 0)) {
		t.Fatalf("unexpected created_at %v", s.CreatedAt())
	}
}

func TestUpdateLanguages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		update transport.ConfigUpdate
		source string
		target string
	}{
		{name: "both", update: transport.ConfigUpdate{SourceLanguage: strptr("zh"), TargetLanguage: strptr("es")}, source: "zh", target: "es"},
		{name: "target only", update: transport.ConfigUpdate{TargetLanguage: strptr("fr")}, source: "auto", target: "fr"},
		{name: "blank ignored", update: transport.ConfigUpdate{SourceLanguage: strptr(" ")}, source: "auto", target: "en"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _ := New(context.Background(), "sess", defaults(), time.Now())
			got := s.UpdateLanguages(tt.update)
			if got.SourceLanguage != tt.source || got.TargetLanguage != tt.target {
				t.Fatalf("unexpected languages %+v", got)
			}
			snap := s.Snapshot()
			if snap.SourceLanguage != tt.source || snap.TargetLanguage != tt.target {
				t.Fatalf("snapshot not updated: %+v", snap)
			}
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s, _ := New(context.Background(), "sess", defaults(), time.Now())
	before := s.Snapshot()
	s.UpdateLanguages(transport.ConfigUpdate{TargetLanguage: strptr("de")})
	if before.TargetLanguage != "en" {
		t.Fatalf("expected earlier snapshot to be unaffected, got %q", before.TargetLanguage)
	}
}

func TestCloseCancelsAndBlocksRuns(t *testing.T) {
	t.Parallel()

	s, _ := New(context.Background(), "sess", defaults(), time.Now())
	ran := s.RunExclusive(func(ctx context.Context) {
		if ctx.Err() != nil {
			t.Fatalf("expected live context")
		}
	})
	if !ran {
		t.Fatalf("expected run on active session")
	}

	s.Close()
	s.Close()
	if s.Active() {
		t.Fatalf("expected inactive session after close")
	}
	if s.Context().Err() == nil {
		t.Fatalf("expected cancelled session context")
	}
	if s.RunExclusive(func(context.Context) { t.Fatalf("run after close") }) {
		t.Fatalf("expected no run after close")
	}
}

func TestNextSequenceIsMonotonic(t *testing.T) {
	t.Parallel()

	s, _ := New(context.Background(), "sess", defaults(), time.Now())
	for want := 1; want <= 3; want++ {
		if got := s.NextSequence(); got != want {
			t.Fatalf("expected sequence %d, got %d", want, got)
		}
	}
}
