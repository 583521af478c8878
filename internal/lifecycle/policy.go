// Package lifecycle classifies which remote call an attribute change needs.
package lifecycle

import (
	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/resource"
)

// Action is the remote call an attribute change requires.
type Action int

const (
	NoOp Action = iota
	Create
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "noop"
	}
}

// Desired is the value an attribute should be backed by.
type Desired struct {
	Value       string
	Category    string
	Metadata    gateway.Metadata
	Permissions []gateway.Permission
	// Options are forwarded to the attribute update on Update.
	Options map[string]string
	// Tail is appended to the attribute uri when the resource is linked.
	Tail string
}

// Decision is the classified call plus what it needs to be issued.
type Decision struct {
	Action     Action
	ResourceID string
	Desired    *Desired
}

// Decide maps (current, desired) to exactly one Action. It is pure.
func Decide(current resource.Reference, desired *Desired) Decision {
	switch {
	case !current.Present() && desired != nil:
		return Decision{Action: Create, Desired: desired}
	case current.Present() && desired == nil:
		return Decision{Action: Delete, ResourceID: current.ID()}
	case current.Present() && desired != nil:
		return Decision{Action: Update, ResourceID: current.ID(), Desired: desired}
	default:
		return Decision{Action: NoOp}
	}
}
