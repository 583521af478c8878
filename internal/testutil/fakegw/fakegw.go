// Package fakegw is a scriptable in-memory gateway for tests.
package fakegw

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/geoctl/internal/gateway"
)

// Operation names recorded per call.
const (
	OpCreate          = "create"
	OpUpdate          = "update"
	OpGet             = "get"
	OpDelete          = "delete"
	OpAttributes      = "attributes"
	OpUpdateAttribute = "update_attribute"
	OpList            = "list"
)

// Call is one recorded gateway invocation.
type Call struct {
	Op  string
	ID  string
	Arg any
}

// Gateway records calls and serves them from memory. Failures and delays are
// scripted per operation or per operation+id.
type Gateway struct {
	mu     sync.Mutex
	nextID int
	data   map[string]string
	attrs  map[string][]gateway.Attribute
	meta   map[string]gateway.Metadata
	calls  []Call
	fail   map[string]error
	delay  map[string]time.Duration
	gates  map[string]chan struct{}
}

var _ gateway.Gateway = (*Gateway)(nil)

// New returns an empty gateway whose first created id is 100.
func New() *Gateway {
	return &Gateway{
		nextID: 100,
		data:   make(map[string]string),
		attrs:  make(map[string][]gateway.Attribute),
		meta:   make(map[string]gateway.Metadata),
		fail:   make(map[string]error),
		delay:  make(map[string]time.Duration),
		gates:  make(map[string]chan struct{}),
	}
}

func key(op, id string) string {
	if id == "" {
		return op
	}
	return op + "/" + id
}

// Fail makes op fail with err; an empty id matches every id. Creates match
// on the requested category.
func (g *Gateway) Fail(op, id string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[key(op, id)] = err
}

// Delay holds op for d before it runs; an empty id matches every id.
func (g *Gateway) Delay(op, id string, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay[key(op, id)] = d
}

// Gate blocks op until the returned release func is called.
func (g *Gateway) Gate(op, id string) (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.gates[key(op, id)] = ch
	g.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Seed stores data under a fixed id.
func (g *Gateway) Seed(id, data string, attrs ...gateway.Attribute) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.data[id] = data
	g.attrs[id] = append([]gateway.Attribute(nil), attrs...)
}

// Calls returns a copy of every recorded call, optionally filtered by op.
func (g *Gateway) Calls(ops ...string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	want := map[string]bool{}
	for _, op := range ops {
		want[op] = true
	}
	out := make([]Call, 0, len(g.calls))
	for _, c := range g.calls {
		if len(want) == 0 || want[c.Op] {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of recorded calls of op.
func (g *Gateway) Count(op string) int {
	return len(g.Calls(op))
}

// Data returns the stored data for id.
func (g *Gateway) Data(id string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.data[id]
	return v, ok
}

// Attribute returns one stored attribute value of id.
func (g *Gateway) Attribute(id, name string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := gateway.FindAttribute(g.attrs[id], name)
	return a.Value, ok
}

// enter records the call, then applies scripted delay, gate and failure.
func (g *Gateway) enter(ctx context.Context, op, id string, arg any) error {
	return g.enterScoped(ctx, op, id, id, arg)
}

// enterScoped is enter with scripts looked up under scope instead of the
// recorded id. Creates are scoped by category since they have no id yet.
func (g *Gateway) enterScoped(ctx context.Context, op, id, scope string, arg any) error {
	g.mu.Lock()
	g.calls = append(g.calls, Call{Op: op, ID: id, Arg: arg})
	d := g.delay[key(op, scope)]
	if d == 0 {
		d = g.delay[op]
	}
	gate := g.gates[key(op, scope)]
	if gate == nil {
		gate = g.gates[op]
	}
	err := g.fail[key(op, scope)]
	if err == nil {
		err = g.fail[op]
	}
	g.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (g *Gateway) CreateResource(ctx context.Context, req gateway.CreateRequest) (string, error) {
	if err := g.enterScoped(ctx, OpCreate, "", req.Category, req); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := strconv.Itoa(g.nextID)
	g.nextID++
	g.data[id] = req.Data
	md := req.Metadata
	md.ID = id
	if md.Category == "" {
		md.Category = req.Category
	}
	g.meta[id] = md
	return id, nil
}

func (g *Gateway) UpdateResource(ctx context.Context, req gateway.UpdateRequest) error {
	if err := g.enter(ctx, OpUpdate, req.ResourceID, req); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.data[req.ResourceID] = req.Value
	return nil
}

func (g *Gateway) GetResource(ctx context.Context, id string) (string, error) {
	if err := g.enter(ctx, OpGet, id, nil); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.data[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", gateway.ErrNotFound, id)
	}
	return v, nil
}

func (g *Gateway) DeleteResource(ctx context.Context, id string, opts gateway.DeleteOptions) error {
	if err := g.enter(ctx, OpDelete, id, opts); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.data, id)
	delete(g.attrs, id)
	delete(g.meta, id)
	return nil
}

func (g *Gateway) GetResourceAttributes(ctx context.Context, id string) ([]gateway.Attribute, error) {
	if err := g.enter(ctx, OpAttributes, id, nil); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.Attribute(nil), g.attrs[id]...), nil
}

func (g *Gateway) UpdateResourceAttribute(ctx context.Context, id string, attr gateway.Attribute) error {
	if err := g.enter(ctx, OpUpdateAttribute, id, attr); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	attrs := g.attrs[id]
	for i := range attrs {
		if attrs[i].Name == attr.Name {
			attrs[i] = attr
			return nil
		}
	}
	g.attrs[id] = append(attrs, attr)
	return nil
}

func (g *Gateway) ListResourcesByCategory(ctx context.Context, category, search string, page gateway.Page) (gateway.ResourceList, error) {
	if err := g.enter(ctx, OpList, category, search); err != nil {
		return gateway.ResourceList{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := gateway.ResourceList{Results: []gateway.Metadata{}}
	for _, md := range g.meta {
		if md.Category == category {
			out.Results = append(out.Results, md)
		}
	}
	sort.Slice(out.Results, func(i, j int) bool { return out.Results[i].ID < out.Results[j].ID })
	out.Total = len(out.Results)
	return out, nil
}
