package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/danmuck/geoctl/internal/store"
)

const (
	// BackendID is the canonical identifier for filesystem-backed persistence.
	BackendID = "store.fs"

	recordExt = ".json"
)

// Backend keeps one JSON document per resource under root.
type Backend struct {
	mu   sync.Mutex
	root string
	seq  int64
}

// New constructs a filesystem backend rooted at local/store under cwd.
func New() (*Backend, error) {
	return NewWithRoot(filepath.Join("local", "store"))
}

// NewWithRoot constructs a filesystem backend with explicit root.
func NewWithRoot(root string) (*Backend, error) {
	resolved := strings.TrimSpace(root)
	if resolved == "" {
		resolved = filepath.Join("local", "store")
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%s: create root: %w", BackendID, err)
	}
	b := &Backend{root: abs}
	ids, err := b.ids()
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		b.seq = ids[len(ids)-1]
	}
	return b, nil
}

// Factory registers this backend kind.
func Factory() store.Factory {
	return store.Factory{
		Metadata: Metadata(),
		Open: func(cfg store.BackendConfig) (store.Backend, error) {
			return NewWithRoot(cfg.Path)
		},
	}
}

// Metadata returns stable backend identity details.
func Metadata() store.BackendMetadata {
	return store.BackendMetadata{
		ID:          BackendID,
		Name:        "Filesystem",
		Description: "One JSON document per resource under a local directory",
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
	p, err := b.resolvePath(res.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		return err
	}
	if res.ID > b.seq {
		b.seq = res.ID
	}
	return nil
}

func (b *Backend) Get(_ context.Context, id int64) (store.Resource, error) {
	p, err := b.resolvePath(id)
	if err != nil {
		return store.Resource{}, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, iofs.ErrNotExist) {
		return store.Resource{}, fmt.Errorf("%w: id=%d", store.ErrNotFound, id)
	}
	if err != nil {
		return store.Resource{}, err
	}
	var res store.Resource
	if err := json.Unmarshal(data, &res); err != nil {
		return store.Resource{}, fmt.Errorf("%s: decode id=%d: %w", BackendID, id, err)
	}
	return res, nil
}

func (b *Backend) Delete(_ context.Context, id int64) error {
	p, err := b.resolvePath(id)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: id=%d", store.ErrNotFound, id)
		}
		return err
	}
	return nil
}

func (b *Backend) List(ctx context.Context) ([]store.Resource, error) {
	ids, err := b.ids()
	if err != nil {
		return nil, err
	}
	out := make([]store.Resource, 0, len(ids))
	for _, id := range ids {
		res, err := b.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (b *Backend) Close() error {
	return nil
}

func (b *Backend) ids() ([]int64, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, recordExt), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (b *Backend) resolvePath(id int64) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("%s: invalid id %d", BackendID, id)
	}
	p := filepath.Clean(filepath.Join(b.root, strconv.FormatInt(id, 10)+recordExt))
	if !isWithin(p, b.root) {
		return "", fmt.Errorf("%s: path escapes root", BackendID)
	}
	return p, nil
}

func isWithin(path string, root string) bool {
	p := filepath.Clean(path)
	r := filepath.Clean(root)
	if p == r {
		return true
	}
	return strings.HasPrefix(p, r+string(os.PathSeparator))
}
