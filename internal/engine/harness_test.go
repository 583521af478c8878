package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/state"
	"github.com/danmuck/geoctl/internal/testutil/fakegw"
	"github.com/danmuck/geoctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

const (
	base     = "http://store.local/rest/geostore"
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) record(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.evs))
	for _, ev := range r.evs {
		out = append(out, ev.Name())
	}
	return out
}

func (r *recorder) has(name string) bool {
	for _, n := range r.names() {
		if n == name {
			return true
		}
	}
	return false
}

func (r *recorder) notices(message string) []events.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Notice
	for _, ev := range r.evs {
		if n, ok := ev.(events.Notice); ok && n.Message == message {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	engine *Engine
	store  *state.Store
	gw     *fakegw.Gateway
	rec    *recorder
}

func (h *harness) submit(t *testing.T, in Intent) {
	t.Helper()
	require.NoError(t, h.engine.Submit(context.Background(), in))
}

func (h *harness) waitFor(t *testing.T, name string) {
	t.Helper()
	require.Eventually(t, func() bool { return h.rec.has(name) }, testWait, testTick, "event %s never applied", name)
}

func (h *harness) settled(kind string, status Status) bool {
	for _, inst := range h.engine.Instances() {
		if inst.Kind == kind && inst.Status == status {
			return true
		}
	}
	return false
}

func startEngine(t *testing.T, initial state.Snapshot) *harness {
	t.Helper()
	testlog.Start(t)

	gw := fakegw.New()
	st := state.NewStore(initial)
	rec := &recorder{}
	st.Watch(rec.record)
	e := New(gw, st, Options{Node: "engine-test", BaseURL: base})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-stopped:
			if err != nil {
				t.Errorf("engine run: %v", err)
			}
		case <-time.After(testWait):
			t.Errorf("engine did not stop")
		}
	})
	return &harness{engine: e, store: st, gw: gw, rec: rec}
}
