package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/geoctl/internal/testutil/testlog"
)

type nopBackend struct {
	meta BackendMetadata
}

func (b nopBackend) Metadata() BackendMetadata                  { return b.meta }
func (nopBackend) NextID(context.Context) (int64, error)        { return 1, nil }
func (nopBackend) Put(context.Context, Resource) error          { return nil }
func (nopBackend) Get(context.Context, int64) (Resource, error) { return Resource{}, ErrNotFound }
func (nopBackend) Delete(context.Context, int64) error          { return nil }
func (nopBackend) List(context.Context) ([]Resource, error)     { return nil, nil }
func (nopBackend) Close() error                                 { return nil }

func factoryFor(meta BackendMetadata) Factory {
	return Factory{
		Metadata: meta,
		Open: func(BackendConfig) (Backend, error) {
			return nopBackend{meta: meta}, nil
		},
	}
}

func TestRegisterResolveAndDuplicate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	f := factoryFor(BackendMetadata{ID: "store.memory", Name: "Memory", Description: "in-memory backend"})

	if err := r.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(f); !errors.Is(err, ErrBackendExists) {
		t.Fatalf("expected ErrBackendExists, got %v", err)
	}
	backend, err := r.Open("store.memory", BackendConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if backend.Metadata().ID != "store.memory" {
		t.Fatalf("unexpected backend id: %q", backend.Metadata().ID)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if _, err := r.Open("store.missing", BackendConfig{}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestListMetadataSorted(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	_ = r.Register(factoryFor(BackendMetadata{ID: "store.z", Name: "Z", Description: "z"}))
	_ = r.Register(factoryFor(BackendMetadata{ID: "store.a", Name: "A", Description: "a"}))
	_ = r.Register(factoryFor(BackendMetadata{ID: "store.m", Name: "M", Description: "m"}))

	list := r.ListMetadata()
	ids := []string{list[0].ID, list[1].ID, list[2].ID}
	want := []string{"store.a", "store.m", "store.z"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("metadata not sorted: got=%v want=%v", ids, want)
	}
}

func TestValidateMetadataFailures(t *testing.T) {
	testlog.Start(t)
	cases := []BackendMetadata{
		{ID: "", Name: "Mem", Description: "x"},
		{ID: "store.memory", Name: "", Description: "x"},
		{ID: "store.memory", Name: "Mem", Description: ""},
		{ID: "Store.Memory", Name: "Mem", Description: "x"},
		{ID: ".store.memory", Name: "Mem", Description: "x"},
		{ID: "store..memory", Name: "Mem", Description: "x"},
	}
	for _, meta := range cases {
		if err := ValidateMetadata(meta); !errors.Is(err, ErrInvalidMetadata) {
			t.Fatalf("expected ErrInvalidMetadata for meta=%+v, got %v", meta, err)
		}
	}
}

func TestRegisterNilFactory(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if err := r.Register(Factory{Metadata: BackendMetadata{ID: "store.nil", Name: "Nil", Description: "nil"}}); !errors.Is(err, ErrBackendNil) {
		t.Fatalf("expected ErrBackendNil, got %v", err)
	}
}
