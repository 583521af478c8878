package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrBackendExists   = errors.New("backend already exists")
	ErrBackendNil      = errors.New("backend factory is nil")
	ErrInvalidMetadata = errors.New("invalid backend metadata")
	ErrUnknownBackend  = errors.New("unknown backend")
)

// Factory opens one backend kind.
type Factory struct {
	Metadata BackendMetadata
	Open     func(cfg BackendConfig) (Backend, error)
}

// Registry stores backend factories by stable identifier.
type Registry struct {
	items map[string]Factory
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Factory)}
}

// ValidateMetadata checks required metadata fields and id format.
func ValidateMetadata(meta BackendMetadata) error {
	id := strings.TrimSpace(meta.ID)
	name := strings.TrimSpace(meta.Name)
	desc := strings.TrimSpace(meta.Description)
	if id == "" || name == "" || desc == "" {
		return fmt.Errorf("%w: id, name, and description are required", ErrInvalidMetadata)
	}
	if !isValidID(id) {
		return fmt.Errorf("%w: invalid id format %q", ErrInvalidMetadata, id)
	}
	return nil
}

// Register adds a backend factory to the registry.
func (r *Registry) Register(f Factory) error {
	if f.Open == nil {
		return ErrBackendNil
	}
	if err := ValidateMetadata(f.Metadata); err != nil {
		return err
	}
	if _, ok := r.items[f.Metadata.ID]; ok {
		return ErrBackendExists
	}
	r.items[f.Metadata.ID] = f
	return nil
}

// Resolve returns a factory by id.
func (r *Registry) Resolve(id string) (Factory, bool) {
	f, ok := r.items[strings.TrimSpace(id)]
	return f, ok
}

// Open resolves id and opens the backend with cfg.
func (r *Registry) Open(id string, cfg BackendConfig) (Backend, error) {
	f, ok := r.Resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, id)
	}
	return f.Open(cfg)
}

// ListMetadata returns deterministic metadata ordering by id.
func (r *Registry) ListMetadata() []BackendMetadata {
	list := make([]BackendMetadata, 0, len(r.items))
	for _, f := range r.items {
		list = append(list, f.Metadata)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(id)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
