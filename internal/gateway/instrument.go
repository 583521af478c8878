package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/observability"
)

// Instrumented records latency and outcome of every call on the wrapped gateway.
type Instrumented struct {
	next Gateway
	node string
}

var _ Gateway = (*Instrumented)(nil)

// Instrument decorates next with prometheus metrics labelled by node.
func Instrument(node string, next Gateway) *Instrumented {
	observability.RegisterMetrics()
	return &Instrumented{next: next, node: node}
}

func (g *Instrumented) observe(op string, start time.Time, err error) {
	observability.RecordGatewayCall(g.node, op, time.Since(start), err == nil)
	if err != nil {
		log.Debug().Str("node", g.node).Str("operation", op).Err(err).Msg("gateway call failed")
	}
}

func (g *Instrumented) CreateResource(ctx context.Context, req CreateRequest) (id string, err error) {
	defer func(start time.Time) { g.observe("create_resource", start, err) }(time.Now())
	return g.next.CreateResource(ctx, req)
}

func (g *Instrumented) UpdateResource(ctx context.Context, req UpdateRequest) (err error) {
	defer func(start time.Time) { g.observe("update_resource", start, err) }(time.Now())
	return g.next.UpdateResource(ctx, req)
}

func (g *Instrumented) GetResource(ctx context.Context, id string) (data string, err error) {
	defer func(start time.Time) { g.observe("get_resource", start, err) }(time.Now())
	return g.next.GetResource(ctx, id)
}

func (g *Instrumented) DeleteResource(ctx context.Context, id string, opts DeleteOptions) (err error) {
	defer func(start time.Time) { g.observe("delete_resource", start, err) }(time.Now())
	return g.next.DeleteResource(ctx, id, opts)
}

func (g *Instrumented) GetResourceAttributes(ctx context.Context, id string) (attrs []Attribute, err error) {
	defer func(start time.Time) { g.observe("get_resource_attributes", start, err) }(time.Now())
	return g.next.GetResourceAttributes(ctx, id)
}

func (g *Instrumented) UpdateResourceAttribute(ctx context.Context, id string, attr Attribute) (err error) {
	defer func(start time.Time) { g.observe("update_resource_attribute", start, err) }(time.Now())
	return g.next.UpdateResourceAttribute(ctx, id, attr)
}

func (g *Instrumented) ListResourcesByCategory(ctx context.Context, category, search string, page Page) (list ResourceList, err error) {
	defer func(start time.Time) { g.observe("list_resources_by_category", start, err) }(time.Now())
	return g.next.ListResourcesByCategory(ctx, category, search, page)
}
