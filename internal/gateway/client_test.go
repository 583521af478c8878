package gateway

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danmuck/geoctl/internal/auth"
	"github.com/danmuck/geoctl/internal/store"
	"github.com/danmuck/geoctl/internal/store/memory"
	"github.com/danmuck/geoctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreClient(t *testing.T, token string) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var v auth.Validator
	if token != "" {
		v = auth.StaticToken{Token: token}
	}
	srv := store.NewServer(store.NewService(memory.New()), store.ServerOptions{ID: "store-test", Validator: v})
	ts := httptest.NewServer(srv.HTTPRouter())
	t.Cleanup(ts.Close)
	c, err := NewClient(ClientOptions{BaseURL: ts.URL + "/", Token: token})
	require.NoError(t, err)
	return c
}

func TestClientResourceRoundTrip(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	c := newStoreClient(t, "tok")

	id, err := c.CreateResource(ctx, CreateRequest{
		Metadata: Metadata{Name: "details-1"},
		Category: CategoryDetails,
		Data:     "<p>hi</p>",
	})
	require.NoError(t, err)
	require.True(t, ValidID(id))

	data, err := c.GetResource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", data)

	require.NoError(t, c.UpdateResource(ctx, UpdateRequest{
		ResourceID: id,
		Value:      "<p>bye</p>",
		Options:    map[string]string{"owner": "7"},
	}))
	data, err = c.GetResource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "<p>bye</p>", data)

	require.NoError(t, c.UpdateResourceAttribute(ctx, id, Attribute{Name: "thumbnail", Value: "NODATA"}))
	attrs, err := c.GetResourceAttributes(ctx, id)
	require.NoError(t, err)
	owner, ok := FindAttribute(attrs, "owner")
	require.True(t, ok)
	assert.Equal(t, "7", owner.Value)
	thumb, ok := FindAttribute(attrs, "thumbnail")
	require.True(t, ok)
	assert.Equal(t, "NODATA", thumb.Value)

	require.NoError(t, c.DeleteResource(ctx, id, nil))
	_, err = c.GetResource(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	err = c.DeleteResource(ctx, id, DeleteOptions{"cascade": "false"})
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestClientListByCategory(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	c := newStoreClient(t, "")

	for _, name := range []string{"coast", "city", "coast night"} {
		_, err := c.CreateResource(ctx, CreateRequest{Metadata: Metadata{Name: name}, Category: CategoryMap, Data: "{}"})
		require.NoError(t, err)
	}
	list, err := c.ListResourcesByCategory(ctx, CategoryMap, "coast", Page{Start: 0, Limit: 12})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Results, 2)
	assert.Equal(t, "coast", list.Results[0].Name)

	empty, err := c.ListResourcesByCategory(ctx, CategoryThumbnail, "", Page{})
	require.NoError(t, err)
	assert.NotNil(t, empty.Results)
	assert.Zero(t, empty.Total)
}

func TestClientErrors(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	c := newStoreClient(t, "tok")

	_, err := c.GetResource(ctx, "abc")
	assert.True(t, errors.Is(err, ErrInvalidID))
	assert.True(t, errors.Is(c.DeleteResource(ctx, "", nil), ErrInvalidID))

	_, err = c.CreateResource(ctx, CreateRequest{Category: CategoryMap})
	assert.True(t, errors.Is(err, ErrRejected), "got %v", err)

	anon, err := NewClient(ClientOptions{BaseURL: c.BaseURL()})
	require.NoError(t, err)
	_, err = anon.GetResource(ctx, "1")
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)

	_, err = NewClient(ClientOptions{})
	require.Error(t, err)
}

func TestClientTransportFailureIsRemote(t *testing.T) {
	testlog.Start(t)
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	c, err := NewClient(ClientOptions{BaseURL: base})
	require.NoError(t, err)
	_, err = c.GetResource(context.Background(), "1")
	assert.True(t, errors.Is(err, ErrRemote), "got %v", err)
}

func TestClientRejectsOversizedResponse(t *testing.T) {
	testlog.Start(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), MaxResponseBody+1))
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ClientOptions{BaseURL: ts.URL})
	require.NoError(t, err)
	_, err = c.GetResource(context.Background(), "5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemote), "got %v", err)
}

func TestClientAcceptsResponseAtLimit(t *testing.T) {
	testlog.Start(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), MaxResponseBody))
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ClientOptions{BaseURL: ts.URL})
	require.NoError(t, err)
	data, err := c.GetResource(context.Background(), "5")
	require.NoError(t, err)
	assert.Len(t, data, MaxResponseBody)
}

func TestClientCoalescesConcurrentReads(t *testing.T) {
	testlog.Start(t)
	var hits atomic.Int32
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte("payload"))
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ClientOptions{BaseURL: ts.URL})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetResource(context.Background(), "5")
		}(i)
	}
	require.Eventually(t, func() bool { return hits.Load() >= 1 }, testWait, testTick)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "payload", r)
	}
	assert.LessOrEqual(t, int(hits.Load()), len(results))
}
