package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

// MockProviderID names the canned adapter used when no real adapter is configured.
const MockProviderID = "mock"

// DefaultFallbackOrders are the static, per-capability fallback priorities.
//
// STT tries the local model first because it avoids network latency variance.
// Translation tries the free tier first for cost. Generation tries the paid API
// first for answer quality.
var DefaultFallbackOrders = map[contracts.Capability][]string{
	contracts.CapabilitySTT:         {"local", "openai", "google"},
	contracts.CapabilityTranslation: {"google_free", "google", "deepl", "aws"},
	contracts.CapabilityGeneration:  {"openai", "anthropic", "gemini"},
}

// ConfigurationError reports an empty or unregistered provider name.
type ConfigurationError struct {
	Capability contracts.Capability
	Provider   string
}

func (e *ConfigurationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("no provider configured for capability %q", e.Capability)
	}
	return fmt.Sprintf("provider %q is not available for capability %q", e.Provider, e.Capability)
}

// ProviderHealth is per-adapter failure bookkeeping. It never unregisters an adapter.
type ProviderHealth struct {
	Capability          contracts.Capability `json:"capability"`
	Provider            string               `json:"provider"`
	ConsecutiveFailures int                  `json:"consecutive_failures"`
	TotalFailures       int64                `json:"total_failures"`
	TotalSuccesses      int64                `json:"total_successes"`
	LastError           string               `json:"last_error,omitempty"`
	LastFailureAt       time.Time            `json:"last_failure_at,omitempty"`
	LastSuccessAt       time.Time            `json:"last_success_at,omitempty"`
}

// Healthy is false only while the adapter's most recent call failed.
func (h ProviderHealth) Healthy() bool {
	return h.ConsecutiveFailures == 0
}

// Catalog stores provider adapters by capability in registration order.
type Catalog struct {
	adapters map[contracts.Capability]map[string]contracts.Adapter
	ordered  map[contracts.Capability][]string
	fallback map[contracts.Capability][]string

	mu     sync.Mutex
	health map[contracts.Capability]map[string]*ProviderHealth
	now    func() time.Time
}

// NewCatalog creates a catalog with the default fallback orders.
func NewCatalog(adapters []contracts.Adapter) (*Catalog, error) {
	return NewCatalogWithFallback(adapters, DefaultFallbackOrders)
}

// NewCatalogWithFallback creates a catalog with explicit fallback orders.
func NewCatalogWithFallback(adapters []contracts.Adapter, fallback map[contracts.Capability][]string) (*Catalog, error) {
	catalog := &Catalog{
		adapters: make(map[contracts.Capability]map[string]contracts.Adapter),
		ordered:  make(map[contracts.Capability][]string),
		fallback: make(map[contracts.Capability][]string),
		health:   make(map[contracts.Capability]map[string]*ProviderHealth),
		now:      time.Now,
	}
	for _, capability := range contracts.Capabilities {
		catalog.adapters[capability] = make(map[string]contracts.Adapter)
		catalog.health[capability] = make(map[string]*ProviderHealth)
		catalog.fallback[capability] = append([]string(nil), fallback[capability]...)
	}

	for _, adapter := range adapters {
		if err := contracts.Implements(adapter); err != nil {
			return nil, err
		}
		capability := adapter.Capability()
		providerID := adapter.ProviderID()
		if _, exists := catalog.adapters[capability][providerID]; exists {
			return nil, fmt.Errorf("duplicate provider_id %q for capability %q", providerID, capability)
		}
		catalog.adapters[capability][providerID] = adapter
		catalog.ordered[capability] = append(catalog.ordered[capability], providerID)
		catalog.health[capability][providerID] = &ProviderHealth{Capability: capability, Provider: providerID}
	}

	for capability, ids := range catalog.ordered {
		if _, hasMock := catalog.adapters[capability][MockProviderID]; hasMock && len(ids) > 1 {
			return nil, fmt.Errorf("mock provider cannot be mixed with real providers for capability %q", capability)
		}
	}
	return catalog, nil
}

// Adapter returns a single adapter by capability/provider pair.
func (c *Catalog) Adapter(capability contracts.Capability, providerID string) (contracts.Adapter, bool) {
	byProvider, ok := c.adapters[capability]
	if !ok {
		return nil, false
	}
	adapter, exists := byProvider[providerID]
	return adapter, exists
}

// Providers returns provider ids for a capability in registration order.
func (c *Catalog) Providers(capability contracts.Capability) []string {
	return append([]string(nil), c.ordered[capability]...)
}

// FallbackOrder returns the static fallback priority for a capability.
func (c *Catalog) FallbackOrder(capability contracts.Capability) []string {
	return append([]string(nil), c.fallback[capability]...)
}

// Healthy reports whether at least one adapter, mock included, is registered.
func (c *Catalog) Healthy(capability contracts.Capability) bool {
	return len(c.ordered[capability]) > 0
}

// IsMockOnly reports whether the capability is served solely by the mock adapter.
func (c *Catalog) IsMockOnly(capability contracts.Capability) bool {
	ids := c.ordered[capability]
	return len(ids) == 1 && ids[0] == MockProviderID
}

// DefaultProvider returns the first registered provider for a capability.
func (c *Catalog) DefaultProvider(capability contracts.Capability) string {
	ids := c.ordered[capability]
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// Candidates returns the primary adapter followed by the fallback chain.
// The chain follows the static fallback order, skipping the primary and any
// provider that is not registered.
func (c *Catalog) Candidates(capability contracts.Capability, primary string) ([]contracts.Adapter, error) {
	if err := capability.Validate(); err != nil {
		return nil, err
	}
	if primary == "" {
		return nil, &ConfigurationError{Capability: capability}
	}
	primaryAdapter, ok := c.adapters[capability][primary]
	if !ok {
		return nil, &ConfigurationError{Capability: capability, Provider: primary}
	}

	out := []contracts.Adapter{primaryAdapter}
	seen := map[string]struct{}{primary: {}}
	for _, providerID := range c.fallback[capability] {
		if _, dup := seen[providerID]; dup {
			continue
		}
		adapter, registered := c.adapters[capability][providerID]
		if !registered {
			continue
		}
		seen[providerID] = struct{}{}
		out = append(out, adapter)
	}
	return out, nil
}

// RecordSuccess clears the failure streak of a provider.
func (c *Catalog) RecordSuccess(capability contracts.Capability, providerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.health[capability][providerID]
	if !ok {
		return
	}
	entry.ConsecutiveFailures = 0
	entry.TotalSuccesses++
	entry.LastSuccessAt = c.now()
}

// RecordFailure notes a per-call failure. Failures are not sticky.
func (c *Catalog) RecordFailure(capability contracts.Capability, providerID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.health[capability][providerID]
	if !ok {
		return
	}
	entry.ConsecutiveFailures++
	entry.TotalFailures++
	entry.LastFailureAt = c.now()
	if err != nil {
		entry.LastError = err.Error()
	}
}

// Health returns bookkeeping snapshots for a capability in registration order.
func (c *Catalog) Health(capability contracts.Capability) []ProviderHealth {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ProviderHealth, 0, len(c.ordered[capability]))
	for _, providerID := range c.ordered[capability] {
		out = append(out, *c.health[capability][providerID])
	}
	return out
}
