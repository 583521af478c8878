package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/danmuck/geoctl/internal/store"
	"github.com/danmuck/geoctl/internal/testutil/testlog"
)

func TestBackendPutGetListDelete(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	b := New()
	for _, name := range []string{"a", "b"} {
		id, err := b.NextID(ctx)
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		if err := b.Put(ctx, store.Resource{ID: id, Name: name, Category: "MAP"}); err != nil {
			t.Fatalf("put %s: %v", name, err)
		}
	}

	got, err := b.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get 1: %v", err)
	}
	if got.Name != "a" {
		t.Fatalf("unexpected get result: %q", got.Name)
	}

	list, err := b.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := b.Delete(ctx, 1); err != nil {
		t.Fatalf("delete 1: %v", err)
	}
	if _, err := b.Get(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := b.Delete(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestBackendIsolatesCallerSlices(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	b := New()
	attrs := []store.Attribute{{Name: "details", Value: "NODATA"}}
	if err := b.Put(ctx, store.Resource{ID: 7, Name: "m", Attributes: attrs}); err != nil {
		t.Fatalf("put: %v", err)
	}
	attrs[0].Value = "mutated"

	got, _ := b.Get(ctx, 7)
	if got.Attributes[0].Value != "NODATA" {
		t.Fatalf("backend shared caller slice: %+v", got.Attributes)
	}
	next, _ := b.NextID(ctx)
	if next != 8 {
		t.Fatalf("expected sequence to advance past explicit id, got %d", next)
	}
}
