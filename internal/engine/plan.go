package engine

import (
	"context"

	"github.com/danmuck/geoctl/internal/events"
)

// Effect is applied by the engine loop: either an event for the store or a
// follow-up intent.
type Effect interface {
	effect()
}

// Emit hands an event to the state store.
type Emit struct {
	Event events.Event
}

// Chain dispatches a follow-up intent.
type Chain struct {
	Intent Intent
}

func (Emit) effect()  {}
func (Chain) effect() {}

// Status is how an intent instance settled.
type Status string

const (
	StatusInFlight  Status = "in_flight"
	StatusSuccess   Status = "success"
	StatusPartial   Status = "partial"
	StatusError     Status = "error"
	StatusDiscarded Status = "discarded"
	StatusIgnored   Status = "ignored"
)

// Completion is what a plan's remote phase reports back to the loop.
type Completion struct {
	Effects []Effect
	Status  Status
}

// Plan is a handler's answer to one intent. Start effects are applied before
// any Run effect. Run, when set, executes off the loop and may block on the
// gateway.
type Plan struct {
	Start []Effect
	Run   func(ctx context.Context) Completion
}

func emit(evs ...events.Event) []Effect {
	out := make([]Effect, 0, len(evs))
	for _, ev := range evs {
		out = append(out, Emit{Event: ev})
	}
	return out
}

func done(status Status, effects ...Effect) Completion {
	return Completion{Effects: effects, Status: status}
}
