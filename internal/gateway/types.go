// Package gateway is the persistence boundary consumed by the orchestration
// core. Every call is asynchronous from the caller's point of view, may fail
// on its own, and is never transactional with any other call.
package gateway

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("gateway: resource not found")
	ErrInvalidID    = errors.New("gateway: invalid resource id")
	ErrUnauthorized = errors.New("gateway: unauthorized")
	ErrRejected     = errors.New("gateway: request rejected")
	ErrRemote       = errors.New("gateway: remote error")
)

// Categories used by the map orchestration flows.
const (
	CategoryMap                 = "MAP"
	CategoryDetails             = "DETAILS"
	CategoryThumbnail           = "THUMBNAIL"
	CategoryBackgroundThumbnail = "BACKGROUND_THUMBNAIL"
)

// Attribute value types understood by the store.
const (
	AttributeString = "STRING"
	AttributeNumber = "NUMBER"
)

// Metadata is the descriptive part of a resource.
type Metadata struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CanEdit     bool              `json:"canEdit,omitempty"`
	CanDelete   bool              `json:"canDelete,omitempty"`
	CanCopy     bool              `json:"canCopy,omitempty"`
}

// Permission grants read/write to one user or group.
type Permission struct {
	User     string `json:"user,omitempty"`
	Group    string `json:"group,omitempty"`
	CanRead  bool   `json:"canRead"`
	CanWrite bool   `json:"canWrite"`
}

// Attribute is one named value stored on a resource.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// CreateRequest describes a new resource.
type CreateRequest struct {
	Metadata    Metadata     `json:"metadata"`
	Data        string       `json:"data"`
	Category    string       `json:"category"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// UpdateRequest changes the data of an existing resource. Nil Metadata and
// nil Permissions leave the stored values untouched. Options are written as
// string attributes of the updated resource.
type UpdateRequest struct {
	ResourceID  string            `json:"resourceId"`
	Value       string            `json:"value"`
	Metadata    *Metadata         `json:"metadata,omitempty"`
	Permissions []Permission      `json:"permissions,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
}

// DeleteOptions is forwarded to the store as query parameters.
type DeleteOptions map[string]string

// Page selects a window of a listing.
type Page struct {
	Start int `json:"start"`
	Limit int `json:"limit"`
}

// ResourceList is one page of a category listing.
type ResourceList struct {
	Total   int        `json:"total"`
	Results []Metadata `json:"results"`
}

// Gateway is the contract of the remote persistence service.
type Gateway interface {
	CreateResource(ctx context.Context, req CreateRequest) (string, error)
	UpdateResource(ctx context.Context, req UpdateRequest) error
	GetResource(ctx context.Context, id string) (string, error)
	DeleteResource(ctx context.Context, id string, opts DeleteOptions) error
	GetResourceAttributes(ctx context.Context, id string) ([]Attribute, error)
	UpdateResourceAttribute(ctx context.Context, id string, attr Attribute) error
	ListResourcesByCategory(ctx context.Context, category, search string, page Page) (ResourceList, error)
}

// FindAttribute returns the named attribute from a list.
func FindAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// ValidID reports whether id is a positive decimal store id.
func ValidID(id string) bool {
	if id == "" || id[0] == '0' {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ClonePermissions returns a copy so callers can retain request values.
func ClonePermissions(in []Permission) []Permission {
	if in == nil {
		return nil
	}
	out := make([]Permission, len(in))
	copy(out, in)
	return out
}
