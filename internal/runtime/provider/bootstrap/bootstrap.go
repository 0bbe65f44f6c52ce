package bootstrap

import (
	"fmt"
	"strings"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/internal/runtime/provider/registry"
	llmanthropic "github.com/tiger/interview-assistant/providers/llm/anthropic"
	llmgemini "github.com/tiger/interview-assistant/providers/llm/gemini"
	llmopenai "github.com/tiger/interview-assistant/providers/llm/openai"
	"github.com/tiger/interview-assistant/providers/mock"
	sttgoogle "github.com/tiger/interview-assistant/providers/stt/google"
	sttlocal "github.com/tiger/interview-assistant/providers/stt/local"
	sttopenai "github.com/tiger/interview-assistant/providers/stt/openai"
	"github.com/tiger/interview-assistant/providers/translate/awstranslate"
	"github.com/tiger/interview-assistant/providers/translate/deepl"
	translategoogle "github.com/tiger/interview-assistant/providers/translate/google"
	"github.com/tiger/interview-assistant/providers/translate/googlefree"
)

// BuildFunc constructs one adapter from resolved configuration. ok is false
// when the provider is not configured and should be skipped.
type BuildFunc func(r providerconfig.Resolver) (adapter contracts.Adapter, ok bool, err error)

// Factory binds a provider id to its constructor.
type Factory struct {
	Capability contracts.Capability
	ProviderID string
	Build      BuildFunc
}

// Failure records a configured provider whose construction failed.
type Failure struct {
	Capability contracts.Capability
	ProviderID string
	Err        error
}

// Report describes what Build registered.
type Report struct {
	Registered map[contracts.Capability][]string
	Mocked     []contracts.Capability
	Failures   []Failure
}

// Factories returns the static provider table in registration order.
func Factories() []Factory {
	return []Factory{
		{Capability: contracts.CapabilitySTT, ProviderID: sttlocal.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(sttlocal.ConfigFromEnv, sttlocal.NewAdapter, r)
		}},
		{Capability: contracts.CapabilitySTT, ProviderID: sttopenai.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(sttopenai.ConfigFromEnv, sttopenai.NewAdapter, r)
		}},
		{Capability: contracts.CapabilitySTT, ProviderID: sttgoogle.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(sttgoogle.ConfigFromEnv, sttgoogle.NewAdapter, r)
		}},
		{Capability: contracts.CapabilityTranslation, ProviderID: googlefree.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(googlefree.ConfigFromEnv, googlefree.NewAdapter, r)
		}},
		{Capability: contracts.CapabilityTranslation, ProviderID: translategoogle.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(translategoogle.ConfigFromEnv, translategoogle.NewAdapter, r)
		}},
		{Capability: contracts.CapabilityTranslation, ProviderID: deepl.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(deepl.ConfigFromEnv, deepl.NewAdapter, r)
		}},
		{Capability: contracts.CapabilityTranslation, ProviderID: awstranslate.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(awstranslate.ConfigFromEnv, awstranslate.NewAdapter, r)
		}},
		{Capability: contracts.CapabilityGeneration, ProviderID: llmopenai.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(llmopenai.ConfigFromEnv, llmopenai.NewAdapter, r)
		}},
		{Capability: contracts.CapabilityGeneration, ProviderID: llmanthropic.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(llmanthropic.ConfigFromEnv, llmanthropic.NewAdapter, r)
		}},
		{Capability: contracts.CapabilityGeneration, ProviderID: llmgemini.ProviderID, Build: func(r providerconfig.Resolver) (contracts.Adapter, bool, error) {
			return build(llmgemini.ConfigFromEnv, llmgemini.NewAdapter, r)
		}},
	}
}

func build[C any, A contracts.Adapter](fromEnv func(providerconfig.Resolver) (C, bool), construct func(C) (A, error), r providerconfig.Resolver) (contracts.Adapter, bool, error) {
	cfg, ok := fromEnv(r)
	if !ok {
		return nil, false, nil
	}
	adapter, err := construct(cfg)
	if err != nil {
		return nil, true, err
	}
	return adapter, true, nil
}

// Build runs every factory against r and returns the resulting catalog.
// A capability with no real adapter gets the mock adapter. Construction
// failures are reported and skipped; they never abort startup.
func Build(r providerconfig.Resolver) (*registry.Catalog, Report, error) {
	return BuildWithFactories(r, Factories())
}

// BuildWithFactories is Build over an explicit factory table.
func BuildWithFactories(r providerconfig.Resolver, factories []Factory) (*registry.Catalog, Report, error) {
	report := Report{Registered: map[contracts.Capability][]string{}}
	adapters := make([]contracts.Adapter, 0, len(factories)+3)

	for _, factory := range factories {
		adapter, ok, err := factory.Build(r)
		if !ok {
			continue
		}
		if err != nil {
			report.Failures = append(report.Failures, Failure{Capability: factory.Capability, ProviderID: factory.ProviderID, Err: err})
			continue
		}
		adapters = append(adapters, adapter)
		report.Registered[factory.Capability] = append(report.Registered[factory.Capability], adapter.ProviderID())
	}

	for _, capability := range contracts.Capabilities {
		if len(report.Registered[capability]) > 0 {
			continue
		}
		adapter, ok := mock.For(capability)
		if !ok {
			return nil, Report{}, fmt.Errorf("no mock adapter for capability %q", capability)
		}
		adapters = append(adapters, adapter)
		report.Registered[capability] = []string{adapter.ProviderID()}
		report.Mocked = append(report.Mocked, capability)
	}

	catalog, err := registry.NewCatalog(adapters)
	if err != nil {
		return nil, Report{}, err
	}
	return catalog, report, nil
}

// Summary returns deterministic provider names by capability.
func Summary(catalog *registry.Catalog) string {
	parts := make([]string, 0, 3)
	for _, capability := range contracts.Capabilities {
		parts = append(parts, fmt.Sprintf("%s=[%s]", capability, strings.Join(catalog.Providers(capability), ",")))
	}
	return "providers initialized: " + strings.Join(parts, " ")
}
