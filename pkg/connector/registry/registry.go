// Package registry maps component type tags to constructor functions.
// Component packages self-register in init(), so importing a package makes
// its types available; embedding programs can also register custom components
// under qualified names at startup.
package registry

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/errors"
)

// ExtractorFactory constructs an extractor from its configuration block.
type ExtractorFactory func(name string, params config.Params, logger *zap.Logger) (core.Extractor, error)

// TransformerFactory constructs a transformer from its configuration block.
type TransformerFactory func(name string, params config.Params, logger *zap.Logger) (core.Transformer, error)

// LoaderFactory constructs a loader from its configuration block.
type LoaderFactory func(name string, params config.Params, logger *zap.Logger) (core.Loader, error)

// ComponentInfo describes a registered component type for discovery.
type ComponentInfo struct {
	Type        string    `json:"type"`
	Kind        core.Kind `json:"kind"`
	Description string    `json:"description"`
}

// Registry holds the factory maps for the three component families.
type Registry struct {
	mu           sync.RWMutex
	extractors   map[string]ExtractorFactory
	transformers map[string]TransformerFactory
	loaders      map[string]LoaderFactory
	info         []ComponentInfo
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		extractors:   make(map[string]ExtractorFactory),
		transformers: make(map[string]TransformerFactory),
		loaders:      make(map[string]LoaderFactory),
	}
}

// resolveKey derives the lookup key for a type tag. A tag containing a "."
// qualifier is a custom component name and is looked up verbatim; plain tags
// are conventional and case-insensitive.
func resolveKey(typeTag string) string {
	if strings.Contains(typeTag, ".") {
		return typeTag
	}
	return strings.ToLower(typeTag)
}

// RegisterExtractor registers an extractor factory under a type tag.
func (r *Registry) RegisterExtractor(typeTag string, factory ExtractorFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := resolveKey(typeTag)
	if _, exists := r.extractors[key]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "extractor type %q already registered", key)
	}
	r.extractors[key] = factory
	return nil
}

// RegisterTransformer registers a transformer factory under a type tag.
func (r *Registry) RegisterTransformer(typeTag string, factory TransformerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := resolveKey(typeTag)
	if _, exists := r.transformers[key]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "transformer type %q already registered", key)
	}
	r.transformers[key] = factory
	return nil
}

// RegisterLoader registers a loader factory under a type tag.
func (r *Registry) RegisterLoader(typeTag string, factory LoaderFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := resolveKey(typeTag)
	if _, exists := r.loaders[key]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "loader type %q already registered", key)
	}
	r.loaders[key] = factory
	return nil
}

// RegisterInfo records descriptive metadata for a component type.
func (r *Registry) RegisterInfo(info ComponentInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = append(r.info, info)
}

// CreateExtractor resolves and constructs the extractor declared by component.
func (r *Registry) CreateExtractor(component config.Component, logger *zap.Logger) (core.Extractor, error) {
	if component.Type == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "extractor %q has no type", component.Name)
	}

	r.mu.RLock()
	factory, ok := r.extractors[resolveKey(component.Type)]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeResolution, "unknown extractor type %q", component.Type)
	}

	instance, err := factory(component.Name, component.Params, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeResolution,
			"failed to construct extractor "+component.Name)
	}
	return instance, nil
}

// CreateTransformer resolves and constructs the transformer declared by component.
func (r *Registry) CreateTransformer(component config.Component, logger *zap.Logger) (core.Transformer, error) {
	if component.Type == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "transformer %q has no type", component.Name)
	}

	r.mu.RLock()
	factory, ok := r.transformers[resolveKey(component.Type)]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeResolution, "unknown transformer type %q", component.Type)
	}

	instance, err := factory(component.Name, component.Params, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeResolution,
			"failed to construct transformer "+component.Name)
	}
	return instance, nil
}

// CreateLoader resolves and constructs the loader declared by component.
func (r *Registry) CreateLoader(component config.Component, logger *zap.Logger) (core.Loader, error) {
	if component.Type == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "loader %q has no type", component.Name)
	}

	r.mu.RLock()
	factory, ok := r.loaders[resolveKey(component.Type)]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeResolution, "unknown loader type %q", component.Type)
	}

	instance, err := factory(component.Name, component.Params, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeResolution,
			"failed to construct loader "+component.Name)
	}
	return instance, nil
}

// List returns the registered component catalog sorted by kind then type.
func (r *Registry) List() []ComponentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ComponentInfo, len(r.info))
	copy(out, r.info)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// defaultRegistry backs the package-level registration functions used by
// component init() blocks.
var defaultRegistry = New()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// RegisterExtractor registers an extractor factory on the default registry.
func RegisterExtractor(typeTag string, factory ExtractorFactory) error {
	return defaultRegistry.RegisterExtractor(typeTag, factory)
}

// RegisterTransformer registers a transformer factory on the default registry.
func RegisterTransformer(typeTag string, factory TransformerFactory) error {
	return defaultRegistry.RegisterTransformer(typeTag, factory)
}

// RegisterLoader registers a loader factory on the default registry.
func RegisterLoader(typeTag string, factory LoaderFactory) error {
	return defaultRegistry.RegisterLoader(typeTag, factory)
}

// RegisterInfo records component metadata on the default registry.
func RegisterInfo(info ComponentInfo) {
	defaultRegistry.RegisterInfo(info)
}
