package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/geoctl/internal/store"
)

const (
	// BackendID is the canonical identifier for process-local storage.
	BackendID = "store.memory"
)

// Backend is a temporary in-memory resource table.
type Backend struct {
	mu    sync.RWMutex
	seq   int64
	items map[int64]store.Resource
}

// New constructs an empty in-memory backend.
func New() *Backend {
	return &Backend{
		items: make(map[int64]store.Resource),
	}
}

// Factory registers this backend kind.
func Factory() store.Factory {
	return store.Factory{
		Metadata: Metadata(),
		Open: func(store.BackendConfig) (store.Backend, error) {
			return New(), nil
		},
	}
}

// Metadata returns stable backend identity details.
func Metadata() store.BackendMetadata {
	return store.BackendMetadata{
		ID:          BackendID,
		Name:        "Memory (temporary)",
		Description: "Process-local resource storage, lost on restart",
	}
}

func (b *Backend) Metadata() store.BackendMetadata {
	return Metadata()
}

func (b *Backend) NextID(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	return b.seq, nil
}

func (b *Backend) Put(_ context.Context, res store.Resource) error {
	if res.ID <= 0 {
		return fmt.Errorf("%s: invalid id %d", BackendID, res.ID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[res.ID] = res.Clone()
	if res.ID > b.seq {
		b.seq = res.ID
	}
	return nil
}

func (b *Backend) Get(_ context.Context, id int64) (store.Resource, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res, ok := b.items[id]
	if !ok {
		return store.Resource{}, fmt.Errorf("%w: id=%d", store.ErrNotFound, id)
	}
	return res.Clone(), nil
}

func (b *Backend) Delete(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[id]; !ok {
		return fmt.Errorf("%w: id=%d", store.ErrNotFound, id)
	}
	delete(b.items, id)
	return nil
}

func (b *Backend) List(context.Context) ([]store.Resource, error) {
	b.mu.RLock()
	out := make([]store.Resource, 0, len(b.items))
	for _, res := range b.items {
		out = append(out, res.Clone())
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) Close() error {
	return nil
}
