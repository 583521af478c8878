package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/resource"
	"github.com/danmuck/geoctl/internal/state"
	"github.com/danmuck/geoctl/internal/testutil/fakegw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailsChanged(t *testing.T) {
	assert.False(t, DetailsChanged(nil, EmptyDetails))
	assert.True(t, DetailsChanged(nil, "<p>x</p>"))
	assert.False(t, DetailsChanged(&state.CurrentMap{}, EmptyDetails))

	stored := &state.CurrentMap{DetailsURI: resource.DataURL(base, "6"), OriginalDetails: "abc"}
	assert.False(t, DetailsChanged(stored, "abc"))
	assert.True(t, DetailsChanged(stored, EmptyDetails))
}

func TestSaveDetailsWithinLimit(t *testing.T) {
	h := startEngine(t, state.Snapshot{CurrentMap: &state.CurrentMap{ID: "5"}})
	text := strings.Repeat("é", DefaultDetailsLimit)
	h.submit(t, SaveDetails{Text: text})

	cm := h.store.Snapshot().CurrentMap
	require.NotNil(t, cm)
	assert.True(t, cm.ShowDetailSheet)
	assert.True(t, cm.SheetReadOnly)
	assert.True(t, cm.DetailsChanged)
	assert.Empty(t, h.rec.notices(events.MsgErrorSizeExceeded))
}

func TestSaveDetailsOverLimit(t *testing.T) {
	h := startEngine(t, state.Snapshot{CurrentMap: &state.CurrentMap{ID: "5"}})
	h.submit(t, SaveDetails{Text: strings.Repeat("a", DefaultDetailsLimit+1)})

	assert.Len(t, h.rec.notices(events.MsgErrorSizeExceeded), 1)
	assert.False(t, h.store.Snapshot().CurrentMap.ShowDetailSheet)
}

func TestSaveDetailsEmptyMarkerIsUnchanged(t *testing.T) {
	h := startEngine(t, state.Snapshot{CurrentMap: &state.CurrentMap{ID: "5"}})
	h.submit(t, SaveDetails{Text: EmptyDetails})
	assert.False(t, h.store.Snapshot().CurrentMap.DetailsChanged)

	h.submit(t, SaveDetails{Text: "<p>x</p>"})
	assert.True(t, h.store.Snapshot().CurrentMap.DetailsChanged)
}

func TestSaveResourceDetailsNoChange(t *testing.T) {
	h := startEngine(t, state.Snapshot{CurrentMap: &state.CurrentMap{ID: "5", DetailsText: "x"}})
	h.submit(t, SaveResourceDetails{})
	assert.Equal(t, []string{"DO_NOTHING"}, h.rec.names())
	assert.Empty(t, h.gw.Calls())
}

func TestSaveResourceDetailsOverLimitSkipsRemote(t *testing.T) {
	h := startEngine(t, state.Snapshot{CurrentMap: &state.CurrentMap{
		ID:             "5",
		DetailsText:    strings.Repeat("a", DefaultDetailsLimit+1),
		DetailsChanged: true,
	}})
	h.submit(t, SaveResourceDetails{})

	assert.Len(t, h.rec.notices(events.MsgErrorSizeExceeded), 1)
	assert.Empty(t, h.gw.Calls())
	assert.False(t, h.rec.has("DETAILS_SAVING"))
}

func TestSaveResourceDetailsCreatesAndLinks(t *testing.T) {
	perms := []gateway.Permission{{Group: "everyone", CanRead: true}}
	h := startEngine(t, state.Snapshot{
		Maps: []events.MapSummary{{ID: "5", Permissions: perms}},
		CurrentMap: &state.CurrentMap{
			ID:             "5",
			DetailsText:    "<p>about</p>",
			DetailsChanged: true,
		},
	})
	h.submit(t, SaveResourceDetails{})
	h.waitFor(t, "RESET_CURRENT_MAP")

	creates := h.gw.Calls(fakegw.OpCreate)
	require.Len(t, creates, 1)
	req := creates[0].Arg.(gateway.CreateRequest)
	assert.Equal(t, gateway.CategoryDetails, req.Category)
	assert.Equal(t, "<p>about</p>", req.Data)
	assert.NotEmpty(t, req.Metadata.Name)
	assert.Equal(t, perms, req.Permissions)

	attr, ok := h.gw.Attribute("5", "details")
	require.True(t, ok)
	assert.Equal(t, resource.Encode(resource.DataURL(base, "100")), attr)

	snap := h.store.Snapshot()
	assert.Nil(t, snap.CurrentMap)
	assert.False(t, snap.MetadataEdit)
	m, _ := snap.MapByID("5")
	assert.Equal(t, resource.DataURL(base, "100"), m.DetailsURI)

	names := h.rec.names()
	assert.Equal(t, []string{
		"DETAILS_SAVING",
		"ATTRIBUTE_UPDATED",
		"DETAILS_SAVING",
		"DISPLAY_METADATA_EDIT",
		"RESET_CURRENT_MAP",
	}, names)
}

func TestSaveResourceDetailsFailureIsScopedToDetails(t *testing.T) {
	h := startEngine(t, state.Snapshot{CurrentMap: &state.CurrentMap{
		ID:             "5",
		DetailsText:    "<p>about</p>",
		DetailsChanged: true,
	}})
	h.gw.Fail(fakegw.OpCreate, gateway.CategoryDetails, errors.New("details store down"))

	h.submit(t, SaveResourceDetails{})
	h.waitFor(t, "RESET_CURRENT_MAP")
	require.Eventually(t, func() bool { return h.settled(KindSaveResourceDetails, StatusError) }, testWait, testTick)

	failed := h.rec.notices(events.MsgErrorSavingDetails)
	require.Len(t, failed, 1)
	assert.Equal(t, "details store down", failed[0].Detail)
	assert.Empty(t, h.rec.notices(events.MsgMapsError))
	assert.False(t, h.rec.has("ATTRIBUTE_UPDATED"))
	_, ok := h.gw.Attribute("5", "details")
	assert.False(t, ok)
}

func TestSaveResourceDetailsEmptyTextDeletes(t *testing.T) {
	h := startEngine(t, state.Snapshot{CurrentMap: &state.CurrentMap{
		ID:             "5",
		DetailsURI:     resource.DataURL(base, "6"),
		DetailsChanged: true,
	}})
	h.gw.Seed("6", "<p>old</p>")

	h.submit(t, SaveResourceDetails{})
	h.waitFor(t, "RESET_CURRENT_MAP")

	_, ok := h.gw.Data("6")
	assert.False(t, ok)
	attr, _ := h.gw.Attribute("5", "details")
	assert.Equal(t, resource.NoData, attr)
}

func TestEditMapWithoutDetails(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	h.submit(t, EditMap{Map: events.MapSummary{ID: "5", DetailsURI: resource.NoData}})

	cm := h.store.Snapshot().CurrentMap
	require.NotNil(t, cm)
	assert.Equal(t, "5", cm.ID)
	assert.True(t, cm.DetailsFetched)
	assert.Empty(t, cm.DetailsText)
	assert.Empty(t, h.gw.Calls())
}

func TestEditMapFetchFailure(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	h.gw.Fail(fakegw.OpGet, "6", gateway.ErrNotFound)

	h.submit(t, EditMap{Map: events.MapSummary{ID: "5", DetailsURI: resource.DataURL(base, "6")}})
	h.waitFor(t, "TOGGLE_DETAILS_EDITABILITY")

	cm := h.store.Snapshot().CurrentMap
	require.NotNil(t, cm)
	assert.Equal(t, resource.NoDetailsAvailable, cm.DetailsText)
	assert.True(t, cm.DetailsEditable)
	assert.Len(t, h.rec.notices(events.MsgErrorFetchingDetails), 1)
}

func TestOpenDetailsPanel(t *testing.T) {
	h := startEngine(t, state.Snapshot{
		MapInfo:         state.MapInfo{ID: "5", DetailsURI: resource.Encode(resource.DataURL(base, "6"))},
		FeatureGridOpen: true,
	})
	h.gw.Seed("6", "<p>hi</p>")

	h.submit(t, OpenDetailsPanel{})
	require.Eventually(t, func() bool { return h.settled(KindOpenDetailsPanel, StatusSuccess) }, testWait, testTick)

	snap := h.store.Snapshot()
	assert.True(t, snap.Controls["details"])
	assert.False(t, snap.FeatureGridOpen)
	require.NotNil(t, snap.CurrentMap)
	assert.Equal(t, "<p>hi</p>", snap.CurrentMap.DetailsText)

	h.submit(t, CloseDetailsPanel{})
	snap = h.store.Snapshot()
	assert.False(t, snap.Controls["details"])
	assert.Nil(t, snap.CurrentMap)
}

func TestOpenDetailsPanelFetchFailure(t *testing.T) {
	h := startEngine(t, state.Snapshot{MapInfo: state.MapInfo{ID: "5"}})
	h.submit(t, OpenDetailsPanel{})
	require.Eventually(t, func() bool { return h.settled(KindOpenDetailsPanel, StatusError) }, testWait, testTick)

	assert.Len(t, h.rec.notices(events.MsgErrorFetchingDetails), 1)
	assert.Equal(t, resource.NoDetailsAvailable, h.store.Snapshot().CurrentMap.DetailsText)
	assert.False(t, h.rec.has("FEATUREGRID:CLOSE_GRID"))
}

func TestMapInfoLoadedReadsDetailsAttribute(t *testing.T) {
	uri := resource.Encode(resource.DataURL(base, "6"))
	h := startEngine(t, state.Snapshot{})
	h.gw.Seed("5", "{}", gateway.Attribute{Name: "details", Value: uri})

	h.submit(t, MapInfoLoaded{MapID: "5"})
	require.Eventually(t, func() bool { return h.store.Snapshot().MapInfo.DetailsURI == uri }, testWait, testTick)
	assert.Equal(t, "5", h.store.Snapshot().MapInfo.ID)
}

func TestMapInfoLoadedWithoutIDDoesNothing(t *testing.T) {
	h := startEngine(t, state.Snapshot{})
	h.submit(t, MapInfoLoaded{})
	assert.Empty(t, h.rec.names())
	assert.Empty(t, h.gw.Calls())
}
