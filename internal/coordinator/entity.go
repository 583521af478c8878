package coordinator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/lifecycle"
	"github.com/danmuck/geoctl/internal/resource"
)

// LinkedChange is a pending change of an attribute owned by the saved entity.
type LinkedChange struct {
	Attribute string
	Current   resource.Reference
	Desired   *lifecycle.Desired
}

// EntitySave describes a save of the entity document plus its linked resources.
type EntitySave struct {
	// ID is empty for an entity that was never saved.
	ID          string
	Category    string
	Metadata    gateway.Metadata
	Data        string
	Permissions []gateway.Permission
	Linked      []LinkedChange
}

// EntityResult gathers the entity outcome and one outcome per linked change.
type EntityResult struct {
	Entity Outcome
	Linked []Outcome
}

// AllSucceeded reports whether the entity and every linked change succeeded.
func (r EntityResult) AllSucceeded() bool {
	return r.Entity.OK() && len(Failed(r.Linked)) == 0
}

// SaveEntity creates or updates the entity. A new entity is created first
// because linked resources attach to its id; an existing one is updated
// concurrently with its linked resources.
func (c *Coordinator) SaveEntity(ctx context.Context, s EntitySave) EntityResult {
	if s.ID == "" {
		entity := c.createEntity(ctx, s)
		res := EntityResult{Entity: entity}
		if entity.OK() {
			res.Linked = JoinAll(ctx, c.limit, c.linkedCalls(entity.ResourceID, s.Linked)...)
		}
		log.Debug().Str("entity", entity.ResourceID).Bool("ok", res.AllSucceeded()).Msg("coordinator.SaveEntity create")
		return res
	}

	calls := append([]Call{c.updateEntity(s)}, c.linkedCalls(s.ID, s.Linked)...)
	outs := JoinAll(ctx, c.limit, calls...)
	res := EntityResult{Entity: outs[0], Linked: outs[1:]}
	log.Debug().Str("entity", s.ID).Bool("ok", res.AllSucceeded()).Msg("coordinator.SaveEntity update")
	return res
}

func (c *Coordinator) createEntity(ctx context.Context, s EntitySave) Outcome {
	category := s.Category
	if category == "" {
		category = s.Metadata.Category
	}
	id, err := c.gw.CreateResource(ctx, gateway.CreateRequest{
		Metadata:    s.Metadata,
		Category:    category,
		Data:        s.Data,
		Permissions: gateway.ClonePermissions(s.Permissions),
	})
	return Outcome{Kind: KindMap, Key: KindMap, Action: lifecycle.Create, ResourceID: id, Payload: s.Data, Err: err}
}

func (c *Coordinator) updateEntity(s EntitySave) Call {
	return func(ctx context.Context) Outcome {
		md := s.Metadata
		err := c.gw.UpdateResource(ctx, gateway.UpdateRequest{
			ResourceID:  s.ID,
			Value:       s.Data,
			Metadata:    &md,
			Permissions: gateway.ClonePermissions(s.Permissions),
		})
		return Outcome{Kind: KindMap, Key: KindMap, Action: lifecycle.Update, ResourceID: s.ID, Payload: s.Data, Err: err}
	}
}

func (c *Coordinator) linkedCalls(owner string, changes []LinkedChange) []Call {
	calls := make([]Call, 0, len(changes))
	for _, ch := range changes {
		change := AttributeChange{Owner: owner, Attribute: ch.Attribute, Current: ch.Current, Desired: ch.Desired}
		calls = append(calls, func(ctx context.Context) Outcome {
			return c.SaveAttribute(ctx, change)
		})
	}
	return calls
}
