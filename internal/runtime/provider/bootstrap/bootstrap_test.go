package bootstrap

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

func lookup(values map[string]string) providerconfig.Resolver {
	return providerconfig.WithLookup(func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	})
}

func TestBuildWithoutCredentialsIsMockOnly(t *testing.T) {
	t.Parallel()

	catalog, report, err := Build(lookup(nil))
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	for _, capability := range contracts.Capabilities {
		if !catalog.IsMockOnly(capability) || !catalog.Healthy(capability) {
			t.Fatalf("expected mock-only healthy %s, got %v", capability, catalog.Providers(capability))
		}
	}
	if len(report.Mocked) != 3 {
		t.Fatalf("expected all capabilities mocked, got %+v", report.Mocked)
	}
}

func TestBuildRegistersConfiguredProvidersInTableOrder(t *testing.T) {
	t.Parallel()

	catalog, report, err := Build(lookup(map[string]string{
		"OPENAI_API_KEY":         "sk-test",
		"LOCAL_WHISPER_ENDPOINT": "http://127.0.0.1:9000/v1/audio/transcriptions",
		"DEEPL_API_KEY":          "dk:fx",
		"GEMINI_API_KEY":         "gk",
	}))
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if got := catalog.Providers(contracts.CapabilitySTT); !reflect.DeepEqual(got, []string{"local", "openai"}) {
		t.Fatalf("unexpected stt providers: %v", got)
	}
	if got := catalog.Providers(contracts.CapabilityTranslation); !reflect.DeepEqual(got, []string{"deepl"}) {
		t.Fatalf("unexpected translation providers: %v", got)
	}
	if got := catalog.Providers(contracts.CapabilityGeneration); !reflect.DeepEqual(got, []string{"openai", "gemini"}) {
		t.Fatalf("unexpected generation providers: %v", got)
	}
	if len(report.Mocked) != 0 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if catalog.DefaultProvider(contracts.CapabilityGeneration) != "openai" {
		t.Fatalf("expected first registered generation provider as default")
	}
}

func TestBuildSkipsFailingFactory(t *testing.T) {
	t.Parallel()

	factories := []Factory{
		{Capability: contracts.CapabilityGeneration, ProviderID: "broken", Build: func(providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return nil, true, errors.New("bad endpoint")
		}},
		{Capability: contracts.CapabilityGeneration, ProviderID: "openai", Build: func(providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return contracts.StaticGenerator{ID: "openai"}, true, nil
		}},
	}
	catalog, report, err := BuildWithFactories(lookup(nil), factories)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if len(report.Failures) != 1 || report.Failures[0].ProviderID != "broken" {
		t.Fatalf("expected one recorded failure, got %+v", report.Failures)
	}
	if catalog.IsMockOnly(contracts.CapabilityGeneration) || !catalog.IsMockOnly(contracts.CapabilitySTT) {
		t.Fatalf("unexpected mock placement: %s", Summary(catalog))
	}
	if summary := Summary(catalog); !strings.Contains(summary, "generation=[openai]") {
		t.Fatalf("unexpected summary: %s", summary)
	}
}
