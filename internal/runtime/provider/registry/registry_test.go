package registry

import (
	"errors"
	"testing"

	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

func fullCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog([]contracts.Adapter{
		contracts.StaticTranscriber{ID: "google"},
		contracts.StaticTranscriber{ID: "openai"},
		contracts.StaticTranscriber{ID: "local"},
		contracts.StaticTranslator{ID: "deepl"},
		contracts.StaticTranslator{ID: "google_free"},
		contracts.StaticGenerator{ID: "anthropic"},
		contracts.StaticGenerator{ID: "openai"},
	})
	if err != nil {
		t.Fatalf("unexpected catalog build error: %v", err)
	}
	return catalog
}

func ids(adapters []contracts.Adapter) []string {
	out := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		out = append(out, adapter.ProviderID())
	}
	return out
}

func TestCandidatesFollowStaticFallbackOrder(t *testing.T) {
	t.Parallel()

	catalog := fullCatalog(t)
	tests := []struct {
		capability contracts.Capability
		primary    string
		want       []string
	}{
		{capability: contracts.CapabilitySTT, primary: "google", want: []string{"google", "local", "openai"}},
		{capability: contracts.CapabilitySTT, primary: "local", want: []string{"local", "openai", "google"}},
		{capability: contracts.CapabilityTranslation, primary: "deepl", want: []string{"deepl", "google_free"}},
		{capability: contracts.CapabilityGeneration, primary: "anthropic", want: []string{"anthropic", "openai"}},
	}
	for _, tt := range tests {
		got, err := catalog.Candidates(tt.capability, tt.primary)
		if err != nil {
			t.Fatalf("unexpected candidates error: %v", err)
		}
		gotIDs := ids(got)
		if len(gotIDs) != len(tt.want) {
			t.Fatalf("%s/%s: expected %v, got %v", tt.capability, tt.primary, tt.want, gotIDs)
		}
		for i := range gotIDs {
			if gotIDs[i] != tt.want[i] {
				t.Fatalf("%s/%s: expected %v, got %v", tt.capability, tt.primary, tt.want, gotIDs)
			}
		}
	}

	first, _ := catalog.Candidates(contracts.CapabilitySTT, "openai")
	second, _ := catalog.Candidates(contracts.CapabilitySTT, "openai")
	if len(first) != len(second) {
		t.Fatalf("expected deterministic candidate lists")
	}
	for i := range first {
		if first[i].ProviderID() != second[i].ProviderID() {
			t.Fatalf("expected deterministic candidate lists, got %v and %v", ids(first), ids(second))
		}
	}
}

func TestCandidatesRejectEmptyOrUnknownPrimary(t *testing.T) {
	t.Parallel()

	catalog := fullCatalog(t)
	for _, primary := range []string{"", "whisper-x"} {
		_, err := catalog.Candidates(contracts.CapabilitySTT, primary)
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError for %q, got %v", primary, err)
		}
		if cfgErr.Provider != primary || cfgErr.Capability != contracts.CapabilitySTT {
			t.Fatalf("unexpected configuration error fields: %+v", cfgErr)
		}
	}
}

func TestNewCatalogRejectsDuplicatesAndMockMixing(t *testing.T) {
	t.Parallel()

	if _, err := NewCatalog([]contracts.Adapter{
		contracts.StaticTranscriber{ID: "local"},
		contracts.StaticTranscriber{ID: "local"},
	}); err == nil {
		t.Fatalf("expected duplicate provider to fail")
	}
	if _, err := NewCatalog([]contracts.Adapter{
		contracts.StaticTranscriber{ID: MockProviderID},
		contracts.StaticTranscriber{ID: "local"},
	}); err == nil {
		t.Fatalf("expected mock mixed with real provider to fail")
	}
}

func TestMockOnlyCatalog(t *testing.T) {
	t.Parallel()

	catalog, err := NewCatalog([]contracts.Adapter{
		contracts.StaticTranscriber{ID: MockProviderID},
		contracts.StaticTranslator{ID: "deepl"},
	})
	if err != nil {
		t.Fatalf("unexpected catalog build error: %v", err)
	}
	if !catalog.IsMockOnly(contracts.CapabilitySTT) {
		t.Fatalf("expected stt to be mock only")
	}
	if catalog.IsMockOnly(contracts.CapabilityTranslation) {
		t.Fatalf("expected translation to have a real provider")
	}
	if catalog.Healthy(contracts.CapabilityGeneration) {
		t.Fatalf("expected generation without adapters to be unhealthy")
	}
	got, err := catalog.Candidates(contracts.CapabilitySTT, MockProviderID)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected single mock candidate, got %v (%v)", ids(got), err)
	}
	if catalog.DefaultProvider(contracts.CapabilityTranslation) != "deepl" {
		t.Fatalf("expected first registered provider as default")
	}
}

func TestHealthBookkeepingNeverUnregisters(t *testing.T) {
	t.Parallel()

	catalog := fullCatalog(t)
	catalog.RecordFailure(contracts.CapabilitySTT, "local", errors.New("boom"))
	catalog.RecordFailure(contracts.CapabilitySTT, "local", errors.New("boom again"))

	health := catalog.Health(contracts.CapabilitySTT)
	var local ProviderHealth
	for _, entry := range health {
		if entry.Provider == "local" {
			local = entry
		}
	}
	if local.ConsecutiveFailures != 2 || local.LastError != "boom again" || local.Healthy() {
		t.Fatalf("unexpected health entry: %+v", local)
	}
	if _, ok := catalog.Adapter(contracts.CapabilitySTT, "local"); !ok {
		t.Fatalf("expected failing adapter to stay registered")
	}

	catalog.RecordSuccess(contracts.CapabilitySTT, "local")
	for _, entry := range catalog.Health(contracts.CapabilitySTT) {
		if entry.Provider == "local" && (!entry.Healthy() || entry.TotalFailures != 2 || entry.TotalSuccesses != 1) {
			t.Fatalf("unexpected health after success: %+v", entry)
		}
	}
}
