package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/geoctl/internal/store"
	"github.com/danmuck/geoctl/internal/store/memory"
	"github.com/danmuck/geoctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

func TestLocalMatchesContract(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	g := NewLocal(store.NewService(memory.New()))

	mapID, err := g.CreateResource(ctx, CreateRequest{
		Metadata: Metadata{Name: "m", Attributes: map[string]string{"details": "NODATA"}},
		Category: CategoryMap,
		Data:     `{"version":2}`,
	})
	require.NoError(t, err)

	attrs, err := g.GetResourceAttributes(ctx, mapID)
	require.NoError(t, err)
	details, ok := FindAttribute(attrs, "details")
	require.True(t, ok)
	assert.Equal(t, "NODATA", details.Value)
	assert.Equal(t, AttributeString, details.Type)

	require.NoError(t, g.UpdateResource(ctx, UpdateRequest{
		ResourceID: mapID,
		Value:      `{"version":3}`,
		Metadata:   &Metadata{Name: "renamed", Description: "d"},
	}))
	list, err := g.ListResourcesByCategory(ctx, CategoryMap, "renamed", Page{})
	require.NoError(t, err)
	require.Len(t, list.Results, 1)
	assert.Equal(t, mapID, list.Results[0].ID)
	assert.Equal(t, "NODATA", list.Results[0].Attributes["details"])

	require.NoError(t, g.DeleteResource(ctx, mapID, nil))
	_, err = g.GetResource(ctx, mapID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = g.GetResource(ctx, "x1")
	assert.True(t, errors.Is(err, ErrInvalidID))
	_, err = g.CreateResource(ctx, CreateRequest{Metadata: Metadata{Name: "n"}})
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestValidID(t *testing.T) {
	testlog.Start(t)
	for _, id := range []string{"1", "42", "9007199254740993"} {
		assert.True(t, ValidID(id), id)
	}
	for _, id := range []string{"", "0", "01", "-1", "1a", " 1"} {
		assert.False(t, ValidID(id), id)
	}
}
