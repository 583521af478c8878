package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/lifecycle"
	"github.com/danmuck/geoctl/internal/resource"
)

// Outcome kinds that are not attribute names.
const (
	KindMap        = "map"
	KindBackground = "background"
	KindOrphan     = "orphan"
)

// Options configures a Coordinator.
type Options struct {
	// BaseURL is the store root used to build data urls for linked resources.
	BaseURL string
	// Limit bounds concurrent gateway calls per fan-out; 0 means unbounded.
	Limit int
}

// Coordinator issues linked-resource operations against a gateway.
type Coordinator struct {
	gw       gateway.Gateway
	baseURL  string
	limit    int
	newToken func() string
}

// New builds a coordinator over gw.
func New(gw gateway.Gateway, opts Options) *Coordinator {
	return &Coordinator{
		gw:       gw,
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		limit:    opts.Limit,
		newToken: uuid.NewString,
	}
}

// BaseURL is the store root links are built against.
func (c *Coordinator) BaseURL() string {
	return c.baseURL
}

// Link builds the attribute uri for a stored resource. An empty tail yields
// the canonical raw data url.
func (c *Coordinator) Link(id, tail string) string {
	if tail == "" {
		return resource.DataURL(c.baseURL, id)
	}
	return c.baseURL + "/data/" + id + tail
}

// ThumbnailTail is the cache-busting suffix for a freshly written thumbnail.
func (c *Coordinator) ThumbnailTail() string {
	return "/raw?decode=datauri&v=" + c.newToken()
}

// AttributeChange is one pending change of a logical attribute.
type AttributeChange struct {
	// Owner is the entity whose attribute links to the resource. Empty skips linking.
	Owner     string
	Attribute string
	Current   resource.Reference
	Desired   *lifecycle.Desired
}

// SaveAttribute classifies the change and issues the matching calls.
func (c *Coordinator) SaveAttribute(ctx context.Context, ch AttributeChange) Outcome {
	d := lifecycle.Decide(ch.Current, ch.Desired)
	out := Outcome{Kind: ch.Attribute, Key: ch.Attribute, Action: d.Action, ResourceID: d.ResourceID}
	log.Debug().
		Str("owner", ch.Owner).
		Str("attribute", ch.Attribute).
		Str("action", d.Action.String()).
		Str("resource", d.ResourceID).
		Msg("coordinator.SaveAttribute")

	switch d.Action {
	case lifecycle.NoOp:
		return out

	case lifecycle.Create:
		md := d.Desired.Metadata
		if md.Name == "" {
			md.Name = c.newToken()
		}
		category := d.Desired.Category
		if category == "" {
			category = md.Category
		}
		id, err := c.gw.CreateResource(ctx, gateway.CreateRequest{
			Metadata:    md,
			Category:    category,
			Data:        d.Desired.Value,
			Permissions: gateway.ClonePermissions(d.Desired.Permissions),
		})
		if err != nil {
			out.Err = err
			return out
		}
		out.ResourceID = id
		out.Payload = c.Link(id, d.Desired.Tail)
		out.Err = c.link(ctx, ch.Owner, ch.Attribute, resource.Encode(out.Payload))
		return out

	case lifecycle.Update:
		if d.ResourceID == "" {
			out.Err = fmt.Errorf("%w: %q", resource.ErrUnresolvable, ch.Current.URI)
			return out
		}
		err := c.gw.UpdateResource(ctx, gateway.UpdateRequest{
			ResourceID:  d.ResourceID,
			Value:       d.Desired.Value,
			Permissions: gateway.ClonePermissions(d.Desired.Permissions),
			Options:     d.Desired.Options,
		})
		if err != nil {
			out.Err = err
			return out
		}
		out.Payload = ch.Current.URI
		if d.Desired.Tail != "" {
			out.Payload = c.Link(d.ResourceID, d.Desired.Tail)
			out.Err = c.link(ctx, ch.Owner, ch.Attribute, resource.Encode(out.Payload))
		}
		return out

	case lifecycle.Delete:
		if d.ResourceID == "" {
			out.Err = fmt.Errorf("%w: %q", resource.ErrUnresolvable, ch.Current.URI)
			return out
		}
		if err := c.gw.DeleteResource(ctx, d.ResourceID, nil); err != nil {
			out.Err = err
			return out
		}
		out.Payload = resource.NoData
		out.Err = c.link(ctx, ch.Owner, ch.Attribute, resource.NoData)
		return out
	}
	return out
}

func (c *Coordinator) link(ctx context.Context, owner, attribute, value string) error {
	if owner == "" {
		return nil
	}
	return c.gw.UpdateResourceAttribute(ctx, owner, gateway.Attribute{
		Name:  attribute,
		Value: value,
		Type:  gateway.AttributeString,
	})
}

// DeleteTarget names an entity and the resources its attributes link to.
type DeleteTarget struct {
	EntityID  string
	Details   resource.Reference
	Thumbnail resource.Reference
	Options   gateway.DeleteOptions
}

// DeleteResult is the per-resource outcome of a delete fan-out.
type DeleteResult struct {
	Details   Outcome
	Thumbnail Outcome
	Entity    Outcome
}

// AllSucceeded reports whether every sub-delete succeeded.
func (r DeleteResult) AllSucceeded() bool {
	return r.Details.OK() && r.Thumbnail.OK() && r.Entity.OK()
}

// DeleteEntity deletes the details, thumbnail and entity concurrently. An
// absent reference settles as a successful NoOp without a remote call.
func (c *Coordinator) DeleteEntity(ctx context.Context, t DeleteTarget) DeleteResult {
	outs := JoinAll(ctx, c.limit,
		c.deleteRef("details", t.Details, t.Options),
		c.deleteRef("thumbnail", t.Thumbnail, t.Options),
		c.deleteID(KindMap, t.EntityID, t.Options),
	)
	res := DeleteResult{Details: outs[0], Thumbnail: outs[1], Entity: outs[2]}
	log.Debug().
		Str("entity", t.EntityID).
		Bool("details_ok", res.Details.OK()).
		Bool("thumbnail_ok", res.Thumbnail.OK()).
		Bool("entity_ok", res.Entity.OK()).
		Msg("coordinator.DeleteEntity")
	return res
}

func (c *Coordinator) deleteRef(kind string, ref resource.Reference, opts gateway.DeleteOptions) Call {
	if ref.Present() && ref.ID() == "" {
		return func(context.Context) Outcome {
			return Outcome{Kind: kind, Key: kind, Action: lifecycle.Delete,
				Err: fmt.Errorf("%w: %q", resource.ErrUnresolvable, ref.URI)}
		}
	}
	return c.deleteID(kind, ref.ID(), opts)
}

func (c *Coordinator) deleteID(kind, id string, opts gateway.DeleteOptions) Call {
	return func(ctx context.Context) Outcome {
		if id == "" {
			return Outcome{Kind: kind, Key: kind, Action: lifecycle.NoOp}
		}
		return Outcome{
			Kind:       kind,
			Key:        kind,
			Action:     lifecycle.Delete,
			ResourceID: id,
			Err:        c.gw.DeleteResource(ctx, id, opts),
		}
	}
}

// DeleteOrphans deletes each id concurrently and reports every result.
func (c *Coordinator) DeleteOrphans(ctx context.Context, ids []string) []Outcome {
	calls := make([]Call, 0, len(ids))
	for _, id := range ids {
		call := c.deleteID(KindOrphan, id, nil)
		calls = append(calls, func(ctx context.Context) Outcome {
			o := call(ctx)
			o.Key = id
			return o
		})
	}
	return JoinAll(ctx, c.limit, calls...)
}

// Difference returns the members of before missing from after, in order.
func Difference(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}
	out := make([]string, 0, len(before))
	for _, id := range before {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
