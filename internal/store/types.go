package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("store: resource not found")
	ErrInvalidRequest = errors.New("store: invalid request")
)

// Attribute is one typed name/value pair on a resource.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// Permission grants access to a user or group.
type Permission struct {
	User     string `json:"user,omitempty"`
	Group    string `json:"group,omitempty"`
	CanRead  bool   `json:"canRead"`
	CanWrite bool   `json:"canWrite"`
}

// Resource is the stored record.
type Resource struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category"`
	Owner       string       `json:"owner,omitempty"`
	Data        string       `json:"data,omitempty"`
	Attributes  []Attribute  `json:"attributes,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy so backends never share slices with callers.
func (r Resource) Clone() Resource {
	out := r
	if r.Attributes != nil {
		out.Attributes = append([]Attribute(nil), r.Attributes...)
	}
	if r.Permissions != nil {
		out.Permissions = append([]Permission(nil), r.Permissions...)
	}
	return out
}

// BackendMetadata is the contract for backend identity and display data.
type BackendMetadata struct {
	ID          string
	Name        string
	Description string
}

// BackendConfig carries the options a backend factory may need.
type BackendConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

// Backend is the storage boundary used by Service.
type Backend interface {
	Metadata() BackendMetadata
	NextID(ctx context.Context) (int64, error)
	Put(ctx context.Context, res Resource) error
	Get(ctx context.Context, id int64) (Resource, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Resource, error)
	Close() error
}
