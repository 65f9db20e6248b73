package parser

import (
	"fmt"
	"sort"
	"sync"

	"dealscope/internal/config"
	"dealscope/internal/port"
)

// ProviderFactory is a function that creates an Extractor from a provider config.
type ProviderFactory func(cfg *config.ParserProviderConfig) (port.Extractor, error)

// registry of provider factories, populated by init() in each provider package
// or explicitly via RegisterProvider.
var (
	providersMu sync.RWMutex
	providers   = map[string]ProviderFactory{}
)

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// NewExtractor creates an Extractor from a provider config using the registered factory.
func NewExtractor(cfg *config.ParserProviderConfig) (port.Extractor, error) {
	providersMu.RLock()
	factory, ok := providers[cfg.Provider]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown parser provider: %s (registered: %v)", cfg.Provider, registeredNames())
	}
	return factory(cfg)
}

// NewFromConfig builds the configured providers in fallback order. A single provider is
// returned as is; several are wrapped in a FallbackExtractor.
func NewFromConfig(cfg *config.ParserConfig) (port.Extractor, error) {
	provs := cfg.Providers()
	if len(provs) == 0 {
		return nil, fmt.Errorf("no parser provider configured")
	}
	extractors := make([]port.Extractor, 0, len(provs))
	names := make([]string, 0, len(provs))
	for _, pc := range provs {
		e, err := NewExtractor(pc)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, e)
		names = append(names, pc.Provider)
	}
	if len(extractors) == 1 {
		return extractors[0], nil
	}
	return NewFallbackExtractor(extractors, names), nil
}

func registeredNames() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
