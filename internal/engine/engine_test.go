package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/resource"
	"github.com/danmuck/geoctl/internal/state"
	"github.com/danmuck/geoctl/internal/testutil/fakegw"
	"github.com/danmuck/geoctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveMapResourceIgnoredWhileInFlight(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	release := h.gw.Gate(fakegw.OpCreate, "")

	save := SaveMapResource{Resource: MapResource{Data: "{}", Metadata: gateway.Metadata{Name: "first"}}}
	h.submit(t, save)
	err := h.engine.Submit(context.Background(), save)
	require.ErrorIs(t, err, ErrIntentIgnored)
	assert.True(t, h.settled(KindSaveMapResource, StatusIgnored))

	release()
	h.waitFor(t, "MAP_CREATED")
	require.Eventually(t, func() bool { return h.settled(KindSaveMapResource, StatusSuccess) }, testWait, testTick)
	assert.Equal(t, 1, h.gw.Count(fakegw.OpCreate))

	snap := h.store.Snapshot()
	assert.False(t, snap.SavingMap)
	assert.Equal(t, "100", snap.MapInfo.ID)
	require.Len(t, snap.Maps, 1)
	assert.True(t, snap.Maps[0].CanEdit)
	assert.Len(t, h.rec.notices(events.MsgSavedMap), 1)

	// a new save is accepted once the first settled
	h.submit(t, save)
	require.Eventually(t, func() bool { return h.gw.Count(fakegw.OpCreate) == 2 }, testWait, testTick)
}

func TestSaveMapResourceCreatesAndLinksDetails(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	h.submit(t, SaveMapResource{Resource: MapResource{
		Data:     `{"version":2}`,
		Metadata: gateway.Metadata{Name: "roads"},
		LinkedResources: map[string]LinkedResource{
			"details": {Data: "<p>about</p>", Category: gateway.CategoryDetails},
		},
	}})
	require.Eventually(t, func() bool { return h.settled(KindSaveMapResource, StatusSuccess) }, testWait, testTick)

	data, ok := h.gw.Data("101")
	require.True(t, ok)
	assert.Equal(t, "<p>about</p>", data)

	link := resource.DataURL(base, "101")
	attr, ok := h.gw.Attribute("100", "details")
	require.True(t, ok)
	assert.Equal(t, resource.Encode(link), attr)

	m, ok := h.store.Snapshot().MapByID("100")
	require.True(t, ok)
	assert.Equal(t, link, m.DetailsURI)
}

func TestSaveMapResourceCreateFailureRaisesNotice(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	h.gw.Fail(fakegw.OpCreate, "", errors.New("quota"))

	h.submit(t, SaveMapResource{Resource: MapResource{Data: "{}", Metadata: gateway.Metadata{Name: "x"}}})
	h.waitFor(t, "MAP_ERROR")
	require.Eventually(t, func() bool { return len(h.rec.notices(events.MsgMapsError)) == 1 }, testWait, testTick)

	n := h.rec.notices(events.MsgMapsError)[0]
	assert.Equal(t, "tc", n.Position)
	assert.Equal(t, 6, n.AutoDismiss)
	snap := h.store.Snapshot()
	assert.False(t, snap.SavingMap)
	assert.Contains(t, snap.LastError, "quota")
}

func TestSaveMapResourceUpdateKeepsExistingLinks(t *testing.T) {
	h := startEngine(t, state.Snapshot{
		Maps: []events.MapSummary{{ID: "5", Name: "roads", DetailsURI: resource.DataURL(base, "6")}},
	})
	h.gw.Seed("5", "{}")
	h.gw.Seed("6", "<p>old</p>")

	h.submit(t, SaveMapResource{Resource: MapResource{
		ID:       "5",
		Data:     `{"version":2}`,
		Metadata: gateway.Metadata{Name: "roads"},
		LinkedResources: map[string]LinkedResource{
			"details": {Data: "<p>new</p>", Category: gateway.CategoryDetails},
		},
	}})
	require.Eventually(t, func() bool { return h.settled(KindSaveMapResource, StatusSuccess) }, testWait, testTick)

	mapData, _ := h.gw.Data("5")
	details, _ := h.gw.Data("6")
	assert.Equal(t, `{"version":2}`, mapData)
	assert.Equal(t, "<p>new</p>", details)
	assert.Zero(t, h.gw.Count(fakegw.OpCreate))
	assert.Len(t, h.rec.notices(events.MsgSavedMap), 1)
}

func TestSaveMapResourceCreateReportsFailedThumbnail(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	h.gw.Fail(fakegw.OpCreate, gateway.CategoryThumbnail, errors.New("thumbnail too large"))

	h.submit(t, SaveMapResource{Resource: MapResource{
		Data:     "{}",
		Metadata: gateway.Metadata{Name: "roads"},
		LinkedResources: map[string]LinkedResource{
			"details":   {Data: "<p>about</p>", Category: gateway.CategoryDetails},
			"thumbnail": {Data: "data:image/png;base64,AAAA", Category: gateway.CategoryThumbnail},
		},
	}})
	require.Eventually(t, func() bool { return h.settled(KindSaveMapResource, StatusPartial) }, testWait, testTick)

	failed := h.rec.notices(events.MsgErrorSavingThumbnail)
	require.Len(t, failed, 1)
	assert.Equal(t, "thumbnail too large", failed[0].Detail)
	assert.Empty(t, h.rec.notices(events.MsgErrorSavingDetails))
	assert.Empty(t, h.rec.notices(events.MsgMapsError))
	assert.Len(t, h.rec.notices(events.MsgSavedMap), 1)

	_, ok := h.gw.Attribute("100", "details")
	assert.True(t, ok)
	_, ok = h.gw.Attribute("100", "thumbnail")
	assert.False(t, ok)
}

func TestSaveMapResourceUpdateReportsFailedDetails(t *testing.T) {
	h := startEngine(t, state.Snapshot{
		Maps: []events.MapSummary{{ID: "5", Name: "roads", DetailsURI: resource.DataURL(base, "6")}},
	})
	h.gw.Seed("5", "{}")
	h.gw.Seed("6", "<p>old</p>")
	h.gw.Fail(fakegw.OpUpdate, "6", errors.New("details locked"))

	h.submit(t, SaveMapResource{Resource: MapResource{
		ID:       "5",
		Data:     `{"version":2}`,
		Metadata: gateway.Metadata{Name: "roads"},
		LinkedResources: map[string]LinkedResource{
			"details": {Data: "<p>new</p>", Category: gateway.CategoryDetails},
		},
	}})
	require.Eventually(t, func() bool { return h.settled(KindSaveMapResource, StatusPartial) }, testWait, testTick)

	assert.Len(t, h.rec.notices(events.MsgErrorSavingDetails), 1)
	assert.Empty(t, h.rec.notices(events.MsgMapsError))
	assert.False(t, h.rec.has("MAPS_LOAD_MAP_ERROR"))
	assert.Len(t, h.rec.notices(events.MsgSavedMap), 1)

	mapData, _ := h.gw.Data("5")
	details, _ := h.gw.Data("6")
	assert.Equal(t, `{"version":2}`, mapData)
	assert.Equal(t, "<p>old</p>", details)
}

func TestSaveMapResourceUpdateEntityFailureUsesMapNotice(t *testing.T) {
	h := startEngine(t, state.Snapshot{
		Maps: []events.MapSummary{{ID: "5", Name: "roads", DetailsURI: resource.DataURL(base, "6")}},
	})
	h.gw.Seed("5", "{}")
	h.gw.Seed("6", "<p>old</p>")
	h.gw.Fail(fakegw.OpUpdate, "5", errors.New("map locked"))

	h.submit(t, SaveMapResource{Resource: MapResource{
		ID:       "5",
		Data:     `{"version":2}`,
		Metadata: gateway.Metadata{Name: "roads"},
		LinkedResources: map[string]LinkedResource{
			"details": {Data: "<p>new</p>", Category: gateway.CategoryDetails},
		},
	}})
	require.Eventually(t, func() bool { return h.settled(KindSaveMapResource, StatusError) }, testWait, testTick)

	failed := h.rec.notices(events.MsgMapsError)
	require.Len(t, failed, 1)
	assert.Equal(t, "map locked", failed[0].Detail)
	assert.True(t, h.rec.has("MAPS_LOAD_MAP_ERROR"))
	assert.Empty(t, h.rec.notices(events.MsgErrorSavingDetails))
	assert.Empty(t, h.rec.notices(events.MsgSavedMap))
}

func TestSwitchDiscardsStaleResult(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	h.gw.Seed("6", "six")
	h.gw.Seed("7", "seven")
	release := h.gw.Gate(fakegw.OpGet, "6")

	h.submit(t, EditMap{Map: events.MapSummary{ID: "1", DetailsURI: resource.DataURL(base, "6")}})
	h.submit(t, EditMap{Map: events.MapSummary{ID: "2", DetailsURI: resource.DataURL(base, "7")}})
	require.Eventually(t, func() bool { return h.settled(KindEditMap, StatusSuccess) }, testWait, testTick)

	release()
	require.Eventually(t, func() bool { return h.settled(KindEditMap, StatusDiscarded) }, testWait, testTick)

	cm := h.store.Snapshot().CurrentMap
	require.NotNil(t, cm)
	assert.Equal(t, "2", cm.ID)
	assert.Equal(t, "seven", cm.DetailsText)
	assert.Equal(t, 2, h.gw.Count(fakegw.OpGet))
}

func TestDeleteMapReportsEachFailedResource(t *testing.T) {
	h := startEngine(t, state.Snapshot{
		Maps: []events.MapSummary{{
			ID:           "5",
			DetailsURI:   resource.DataURL(base, "6"),
			ThumbnailURI: resource.ThumbnailURL(base, "7", "abc"),
		}},
		MapsTotal: 1,
	})
	h.gw.Fail(fakegw.OpDelete, "7", errors.New("thumbnail locked"))

	h.submit(t, DeleteMap{MapID: "5"})
	h.waitFor(t, "MAP_DELETED")
	require.Eventually(t, func() bool { return h.settled(KindDeleteMap, StatusPartial) }, testWait, testTick)

	assert.Len(t, h.rec.notices(events.MsgErrorDeletingThumbnail), 1)
	assert.Empty(t, h.rec.notices(events.MsgErrorDeletingDetails))
	assert.Empty(t, h.rec.notices(events.MsgAllResourcesDeleted))
	assert.Equal(t, 3, h.gw.Count(fakegw.OpDelete))

	snap := h.store.Snapshot()
	assert.Empty(t, snap.Maps)
	assert.Zero(t, snap.MapsTotal)
	assert.False(t, snap.Deleting["5"])
}

func TestDeleteMapAllSucceeded(t *testing.T) {
	h := startEngine(t, state.Snapshot{Maps: []events.MapSummary{{ID: "5", DetailsURI: resource.NoData}}})
	h.submit(t, DeleteMap{MapID: "5"})
	require.Eventually(t, func() bool { return len(h.rec.notices(events.MsgAllResourcesDeleted)) == 1 }, testWait, testTick)

	calls := h.gw.Calls(fakegw.OpDelete)
	require.Len(t, calls, 1)
	assert.Equal(t, "5", calls[0].ID)
}

func TestDeleteMapEntityFailure(t *testing.T) {
	h := startEngine(t, state.Snapshot{Maps: []events.MapSummary{{ID: "5"}}})
	h.gw.Fail(fakegw.OpDelete, "5", gateway.ErrUnauthorized)

	h.submit(t, DeleteMap{MapID: "5"})
	require.Eventually(t, func() bool { return h.settled(KindDeleteMap, StatusError) }, testWait, testTick)
	assert.Len(t, h.rec.notices(events.MsgErrorDeletingMap), 1)
	assert.Len(t, h.store.Snapshot().Maps, 1)
}

func TestLoadMapsSanitizesAndLists(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	_, err := h.gw.CreateResource(context.Background(), gateway.CreateRequest{
		Metadata: gateway.Metadata{Name: "roads"},
		Category: gateway.CategoryMap,
	})
	require.NoError(t, err)

	h.submit(t, LoadMaps{SearchText: "ro/a?d", Params: events.SearchParams{Start: 0, Limit: 12}})
	require.Eventually(t, func() bool { return h.settled(KindGetMapResourcesByCategory, StatusSuccess) }, testWait, testTick)

	calls := h.gw.Calls(fakegw.OpList)
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.CategoryMap, calls[0].ID)
	assert.Equal(t, "road", calls[0].Arg)

	snap := h.store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, "road", snap.SearchText)
	assert.Equal(t, 12, snap.SearchParams.Limit)
	require.Len(t, snap.Maps, 1)
	assert.Equal(t, "roads", snap.Maps[0].Name)
}

func TestLoadMapsFailure(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	h.gw.Fail(fakegw.OpList, "", gateway.ErrRemote)
	h.submit(t, LoadMaps{})
	h.waitFor(t, "MAPS_LOAD_MAP_ERROR")
	assert.False(t, h.store.Snapshot().Loading)
}

func TestSubmitAfterStop(t *testing.T) {
	testlog.Start(t)
	e := New(fakegw.New(), state.NewStore(state.Snapshot{}), Options{BaseURL: base})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.running.Load() }, testWait, testTick)
	require.ErrorIs(t, e.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(testWait):
		t.Fatalf("engine did not stop")
	}
	require.ErrorIs(t, e.Submit(context.Background(), LoadMaps{}), ErrStopped)
}

func TestSubmitNilIntent(t *testing.T) {
	testlog.Start(t)
	e := New(fakegw.New(), state.NewStore(state.Snapshot{}), Options{})
	require.ErrorIs(t, e.Submit(context.Background(), nil), ErrInvalidIntent)
}

func TestSanitizeSearch(t *testing.T) {
	assert.Equal(t, "ab c", SanitizeSearch("a/b? c;@=&"))
	assert.Equal(t, "plain", SanitizeSearch("plain"))
	assert.Equal(t, "x", SanitizeSearch(`x\`))
}

func TestPolicyOf(t *testing.T) {
	assert.Equal(t, PolicyExhaust, PolicyOf(SaveMapResource{}))
	assert.Equal(t, PolicyMerge, PolicyOf(DeleteMap{}))
	assert.Equal(t, PolicySwitch, PolicyOf(EditMap{}))
	assert.Equal(t, PolicySwitch, PolicyOf(LoadMaps{}))
}
