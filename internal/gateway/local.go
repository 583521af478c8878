package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/geoctl/internal/store"
)

// Local serves the gateway contract in-process from a store.Service.
type Local struct {
	svc *store.Service
}

var _ Gateway = (*Local)(nil)

// NewLocal wraps svc.
func NewLocal(svc *store.Service) *Local {
	return &Local{svc: svc}
}

func (l *Local) CreateResource(ctx context.Context, req CreateRequest) (string, error) {
	category := req.Category
	if category == "" {
		category = req.Metadata.Category
	}
	attrs := make([]store.Attribute, 0, len(req.Metadata.Attributes))
	for name, value := range req.Metadata.Attributes {
		attrs = append(attrs, store.Attribute{Name: name, Value: value, Type: AttributeString})
	}
	id, err := l.svc.Create(ctx, store.CreateInput{
		Name:        req.Metadata.Name,
		Description: req.Metadata.Description,
		Category:    category,
		Owner:       req.Metadata.Owner,
		Data:        req.Data,
		Attributes:  attrs,
		Permissions: toStorePermissions(req.Permissions),
	})
	if err != nil {
		return "", mapStoreError(err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (l *Local) UpdateResource(ctx context.Context, req UpdateRequest) error {
	id, err := parseID(req.ResourceID)
	if err != nil {
		return err
	}
	value := req.Value
	patch := store.Patch{Data: &value, Permissions: toStorePermissions(req.Permissions)}
	if req.Metadata != nil {
		patch.Name = &req.Metadata.Name
		patch.Description = &req.Metadata.Description
	}
	for name, v := range req.Options {
		patch.Attributes = append(patch.Attributes, store.Attribute{Name: name, Value: v, Type: AttributeString})
	}
	return mapStoreError(l.svc.Update(ctx, id, patch))
}

func (l *Local) GetResource(ctx context.Context, id string) (string, error) {
	n, err := parseID(id)
	if err != nil {
		return "", err
	}
	data, err := l.svc.Data(ctx, n)
	return data, mapStoreError(err)
}

func (l *Local) DeleteResource(ctx context.Context, id string, _ DeleteOptions) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	return mapStoreError(l.svc.Delete(ctx, n))
}

func (l *Local) GetResourceAttributes(ctx context.Context, id string) ([]Attribute, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}
	attrs, err := l.svc.Attributes(ctx, n)
	if err != nil {
		return nil, mapStoreError(err)
	}
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, Attribute{Name: a.Name, Value: a.Value, Type: a.Type})
	}
	return out, nil
}

func (l *Local) UpdateResourceAttribute(ctx context.Context, id string, attr Attribute) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	if attr.Type == "" {
		attr.Type = AttributeString
	}
	return mapStoreError(l.svc.SetAttribute(ctx, n, store.Attribute{Name: attr.Name, Value: attr.Value, Type: attr.Type}))
}

func (l *Local) ListResourcesByCategory(ctx context.Context, category, search string, page Page) (ResourceList, error) {
	total, list, err := l.svc.Search(ctx, store.Query{
		Category: category,
		Text:     search,
		Start:    page.Start,
		Limit:    page.Limit,
	})
	if err != nil {
		return ResourceList{}, mapStoreError(err)
	}
	out := ResourceList{Total: total, Results: make([]Metadata, 0, len(list))}
	for _, res := range list {
		sum := store.Summarize(res)
		out.Results = append(out.Results, Metadata{
			ID:          sum.ID,
			Name:        sum.Name,
			Description: sum.Description,
			Category:    sum.Category,
			Owner:       sum.Owner,
			Attributes:  sum.Attributes,
			CanEdit:     sum.CanEdit,
			CanDelete:   sum.CanDelete,
			CanCopy:     sum.CanCopy,
		})
	}
	return out, nil
}

func parseID(id string) (int64, error) {
	id = strings.TrimSpace(id)
	if !ValidID(id) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrInvalidRequest):
		return fmt.Errorf("%w: %v", ErrRejected, err)
	default:
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
}

func toStorePermissions(in []Permission) []store.Permission {
	if in == nil {
		return nil
	}
	out := make([]store.Permission, 0, len(in))
	for _, p := range in {
		out = append(out, store.Permission{User: p.User, Group: p.Group, CanRead: p.CanRead, CanWrite: p.CanWrite})
	}
	return out
}
