// Package coordinator fans one logical save or delete out into independent
// gateway calls and gathers every result before reporting.
//
// Nothing here rolls back: a failed call is a flag on its Outcome and the
// other calls still run to completion.
package coordinator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/danmuck/geoctl/internal/lifecycle"
)

// Outcome is the settled result of one remote operation.
type Outcome struct {
	// Kind names the sub-resource: an attribute name, "map", "background" or "orphan".
	Kind string
	// Key distinguishes outcomes of the same kind, e.g. a background id.
	Key        string
	Action     lifecycle.Action
	ResourceID string
	// Payload carries the data url of a linked resource or the fetched value.
	Payload string
	Err     error
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Call is one independently fallible operation.
type Call func(ctx context.Context) Outcome

// JoinAll runs calls concurrently, at most limit at a time when limit > 0,
// and returns their outcomes in call order once every call has settled. A
// failing call never cancels the others.
func JoinAll(ctx context.Context, limit int, calls ...Call) []Outcome {
	out := make([]Outcome, len(calls))
	if len(calls) == 0 {
		return out
	}
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, call := range calls {
		g.Go(func() error {
			out[i] = call(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}
