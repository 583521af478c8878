// Package engine turns intents into gateway work and state transitions.
//
// A single loop goroutine owns dispatch and applies every effect in order.
// Remote work runs in goroutines whose effects travel back to the loop, so
// the state store only ever sees events from one goroutine at a time.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/coordinator"
	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/observability"
	"github.com/danmuck/geoctl/internal/state"
)

var (
	ErrIntentIgnored  = errors.New("engine: intent ignored while one of its kind is in flight")
	ErrUnknownIntent  = errors.New("engine: unknown intent")
	ErrInvalidIntent  = errors.New("engine: invalid intent")
	ErrStopped        = errors.New("engine: stopped")
	ErrAlreadyRunning = errors.New("engine: already running")
)

// DefaultDetailsLimit is the largest details text, in characters, that may be saved.
const DefaultDetailsLimit = 500000

// recentLimit bounds the instance history kept for inspection.
const recentLimit = 64

// Store is the owning state store: read once per dispatch, written only
// through events.
type Store interface {
	Snapshot() state.Snapshot
	Apply(ev events.Event)
}

// Options configures an Engine.
type Options struct {
	// Node labels metrics and logs.
	Node string
	// BaseURL is the store root used for linked resource urls.
	BaseURL string
	// Limit bounds concurrent gateway calls per fan-out; 0 means unbounded.
	Limit int
	// DetailsLimit overrides DefaultDetailsLimit when positive.
	DetailsLimit int
}

// Instance describes one dispatched intent.
type Instance struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Policy    string    `json:"policy"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	SettledAt time.Time `json:"settledAt,omitempty"`
}

type submission struct {
	intent Intent
	reply  chan error
}

type completion struct {
	inst   *Instance
	gen    uint64
	result Completion
}

// Engine dispatches intents against a gateway and a state store.
type Engine struct {
	gw           gateway.Gateway
	coord        *coordinator.Coordinator
	store        Store
	node         string
	detailsLimit int
	newID        func() string

	inbox   chan submission
	results chan completion
	stopped chan struct{}
	running atomic.Bool
	wg      sync.WaitGroup

	// loop-owned
	gens     map[string]uint64
	inFlight map[string]int

	mu     sync.Mutex
	recent []Instance
}

// New builds an engine. Call Run to start the loop.
func New(gw gateway.Gateway, st Store, opts Options) *Engine {
	limit := opts.DetailsLimit
	if limit <= 0 {
		limit = DefaultDetailsLimit
	}
	node := opts.Node
	if node == "" {
		node = "engine"
	}
	observability.RegisterMetrics()
	return &Engine{
		gw:           gw,
		coord:        coordinator.New(gw, coordinator.Options{BaseURL: opts.BaseURL, Limit: opts.Limit}),
		store:        st,
		node:         node,
		detailsLimit: limit,
		newID:        uuid.NewString,
		inbox:        make(chan submission),
		results:      make(chan completion),
		stopped:      make(chan struct{}),
		gens:         make(map[string]uint64),
		inFlight:     make(map[string]int),
	}
}

// Run owns the dispatch loop until ctx is cancelled, then waits for every
// outstanding remote call to return.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	log.Info().Str("node", e.node).Msg("engine loop started")
	defer func() {
		close(e.stopped)
		e.wg.Wait()
		log.Info().Str("node", e.node).Msg("engine loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sub := <-e.inbox:
			sub.reply <- e.dispatch(ctx, sub.intent)
		case c := <-e.results:
			e.settle(ctx, c)
		}
	}
}

// Submit hands an intent to the loop and reports whether it was accepted.
// It returns ErrIntentIgnored when an exhaust policy dropped it.
func (e *Engine) Submit(ctx context.Context, in Intent) error {
	if in == nil {
		return ErrInvalidIntent
	}
	sub := submission{intent: in, reply: make(chan error, 1)}
	select {
	case e.inbox <- sub:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-sub.reply:
		return err
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Instances returns recently settled or ignored instances, oldest first.
func (e *Engine) Instances() []Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Instance(nil), e.recent...)
}

func (e *Engine) dispatch(ctx context.Context, in Intent) error {
	kind := in.Kind()
	policy := PolicyOf(in)
	if policy == PolicyExhaust && e.inFlight[kind] > 0 {
		observability.RecordIntent(kind, observability.IntentIgnored)
		e.track(Instance{ID: e.newID(), Kind: kind, Policy: policy.String(), Status: StatusIgnored, StartedAt: time.Now()})
		log.Debug().Str("intent", kind).Msg("engine.dispatch ignored")
		return ErrIntentIgnored
	}

	plan := e.handle(in, e.store.Snapshot())
	inst := &Instance{ID: e.newID(), Kind: kind, Policy: policy.String(), Status: StatusInFlight, StartedAt: time.Now()}
	var gen uint64
	if policy == PolicySwitch {
		e.gens[kind]++
		gen = e.gens[kind]
	}
	observability.RecordIntent(kind, observability.IntentStarted)
	log.Debug().Str("intent", kind).Str("instance", inst.ID).Str("policy", inst.Policy).Msg("engine.dispatch")

	e.apply(ctx, plan.Start)
	if plan.Run == nil {
		e.finish(inst, StatusSuccess)
		return nil
	}

	e.inFlight[kind]++
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		res := plan.Run(ctx)
		select {
		case e.results <- completion{inst: inst, gen: gen, result: res}:
		case <-ctx.Done():
		}
	}()
	return nil
}

func (e *Engine) settle(ctx context.Context, c completion) {
	kind := c.inst.Kind
	e.inFlight[kind]--
	if c.gen != 0 && c.gen != e.gens[kind] {
		observability.RecordIntent(kind, observability.IntentDiscarded)
		log.Debug().Str("intent", kind).Str("instance", c.inst.ID).Msg("engine.settle discarded stale result")
		c.inst.Status = StatusDiscarded
		c.inst.SettledAt = time.Now()
		e.track(*c.inst)
		return
	}
	e.apply(ctx, c.result.Effects)
	status := c.result.Status
	if status == "" {
		status = StatusSuccess
	}
	e.finish(c.inst, status)
}

func (e *Engine) finish(inst *Instance, status Status) {
	inst.Status = status
	inst.SettledAt = time.Now()
	observability.RecordIntentSettled(inst.Kind, inst.SettledAt.Sub(inst.StartedAt))
	e.track(*inst)
	log.Debug().Str("intent", inst.Kind).Str("instance", inst.ID).Str("status", string(status)).Msg("engine settled")
}

func (e *Engine) apply(ctx context.Context, effects []Effect) {
	for _, eff := range effects {
		switch v := eff.(type) {
		case Emit:
			if v.Event != nil {
				e.store.Apply(v.Event)
			}
		case Chain:
			if v.Intent == nil {
				continue
			}
			if err := e.dispatch(ctx, v.Intent); err != nil {
				log.Warn().Err(err).Str("intent", v.Intent.Kind()).Msg("engine chained intent rejected")
			}
		}
	}
}

func (e *Engine) track(inst Instance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recent = append(e.recent, inst)
	if len(e.recent) > recentLimit {
		e.recent = e.recent[len(e.recent)-recentLimit:]
	}
}
