package parsers

import (
	"fmt"
	"path/filepath"
	"sort"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/pkg/errors"
)

// Adapter converts the bytes of one input format into canonical records
type Adapter interface {
	Parse(data []byte) ([]*models.TransactionRecord, error)
	Format() string
}

// Registry maps filename suffixes to adapters
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds a suffix such as ".csv" to an adapter. Suffixes are case-sensitive.
func (r *Registry) Register(suffix string, adapter Adapter) {
	if _, exists := r.adapters[suffix]; exists {
		panic(fmt.Sprintf("adapter already registered for suffix %q", suffix))
	}
	r.adapters[suffix] = adapter
}

// Select returns the adapter registered for the filename's suffix.
// Any other suffix, including an uppercase variant, is an unsupported format.
func (r *Registry) Select(filename string) (Adapter, error) {
	if adapter, ok := r.adapters[filepath.Ext(filename)]; ok {
		return adapter, nil
	}
	return nil, errors.UnsupportedFormatError(filename)
}

// Suffixes returns the registered suffixes in sorted order
func (r *Registry) Suffixes() []string {
	suffixes := make([]string, 0, len(r.adapters))
	for suffix := range r.adapters {
		suffixes = append(suffixes, suffix)
	}
	sort.Strings(suffixes)
	return suffixes
}

// NewRegistryWithConfig builds a registry with the CSV and XML adapters for the given layouts
func NewRegistryWithConfig(config *Config) (*Registry, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError("parsers", config, err)
	}

	csvAdapter, err := NewCSVAdapter(config.CSV)
	if err != nil {
		return nil, err
	}
	xmlAdapter, err := NewXMLAdapter(config.XML)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	registry.Register("."+FormatCSV, csvAdapter)
	registry.Register("."+FormatXML, xmlAdapter)
	return registry, nil
}

// DefaultRegistry returns a registry for the standard customer statement layouts
func DefaultRegistry() *Registry {
	registry, err := NewRegistryWithConfig(DefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("default parser configuration is invalid: %v", err))
	}
	return registry
}
