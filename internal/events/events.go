// Package events defines the state transitions and notices the engine emits.
//
// Event is sealed: only types in this package implement it, so the reducer
// in package state can switch over the full set.
package events

import (
	"encoding/json"

	"github.com/danmuck/geoctl/internal/gateway"
)

// Event is one state transition or notification.
type Event interface {
	// Name is the stable wire name of the event.
	Name() string
	event()
}

// MapSummary is one entry of the loaded maps list.
type MapSummary struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Description  string               `json:"description,omitempty"`
	DetailsURI   string               `json:"details,omitempty"`
	ThumbnailURI string               `json:"thumbnail,omitempty"`
	CanEdit      bool                 `json:"canEdit"`
	CanDelete    bool                 `json:"canDelete"`
	CanCopy      bool                 `json:"canCopy"`
	Permissions  []gateway.Permission `json:"permissions,omitempty"`
}

// SearchParams is the paging window of a maps listing.
type SearchParams struct {
	Start int `json:"start"`
	Limit int `json:"limit"`
}

type SavingMap struct {
	Metadata gateway.Metadata `json:"metadata"`
}

type MapCreated struct {
	ID       string           `json:"id"`
	Metadata gateway.Metadata `json:"metadata"`
	Data     string           `json:"data"`
}

type MapError struct {
	Error string `json:"error"`
}

type MapUpdating struct {
	Metadata gateway.Metadata `json:"metadata"`
}

type LoadError struct {
	Error string `json:"error"`
}

type MetadataEditToggled struct {
	Show bool `json:"show"`
}

type MapDeleting struct {
	ID string `json:"id"`
}

// Delete results reported by MapDeleted.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type MapDeleted struct {
	ID     string `json:"id"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// CurrentMapSelected makes a map the target of detail editing.
type CurrentMapSelected struct {
	Map MapSummary `json:"map"`
}

type CurrentMapReset struct{}

// DetailsUpdated replaces the current details text and its original copy.
type DetailsUpdated struct {
	Text         string `json:"detailsText"`
	DoneFetching bool   `json:"doneFetching"`
	Original     string `json:"originalDetails"`
}

// DetailsTextSet records the details text being edited.
type DetailsTextSet struct {
	Text string `json:"detailsText"`
}

type DetailsChanged struct {
	Changed bool `json:"detailsChanged"`
}

type DetailsEditabilityToggled struct {
	MapID string `json:"mapId"`
}

type DetailsSheetToggled struct {
	ReadOnly bool `json:"readOnly"`
}

type DetailsSaving struct {
	Saving bool `json:"saving"`
}

// DetailsLoaded records the details uri of the map shown in the viewer.
type DetailsLoaded struct {
	MapID      string `json:"mapId"`
	DetailsURI string `json:"detailsUri"`
}

// MapInfoSet records which map the viewer shows.
type MapInfoSet struct {
	MapID string `json:"mapId"`
}

type AttributeUpdated struct {
	MapID     string `json:"mapId"`
	Attribute string `json:"name"`
	Value     string `json:"value"`
	Type      string `json:"type"`
	Succeeded bool   `json:"succeeded"`
}

// NoChange is emitted when an intent had nothing to do.
type NoChange struct{}

type MapsLoading struct {
	SearchText string       `json:"searchText"`
	Params     SearchParams `json:"params"`
}

type MapsLoaded struct {
	Maps       []MapSummary `json:"maps"`
	Total      int          `json:"total"`
	Params     SearchParams `json:"params"`
	SearchText string       `json:"searchText"`
}

type ControlToggled struct {
	Control  string `json:"control"`
	Property string `json:"property"`
}

type FeatureGridClosed struct{}

// LayerNodeUpdated changes the thumbnail source of one layer. Clear drops
// both the source and the thumb id.
type LayerNodeUpdated struct {
	NodeID  string `json:"node"`
	Type    string `json:"type"`
	Source  string `json:"source,omitempty"`
	ThumbID string `json:"thumbId,omitempty"`
	Clear   bool   `json:"clear,omitempty"`
}

type ThumbnailUpdated struct {
	BackgroundID string `json:"id"`
	Unsaved      bool   `json:"unsavedChanges"`
}

type BackgroundsCleared struct{}

type ModalParametersCleared struct{}

type ThumbnailError struct {
	Error string `json:"error"`
}

// Notice levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// Notice is a user-facing message keyed by a stable message id.
type Notice struct {
	ID          string `json:"id"`
	Level       string `json:"level"`
	Title       string `json:"title,omitempty"`
	Message     string `json:"message"`
	AutoDismiss int    `json:"autoDismiss,omitempty"`
	Position    string `json:"position,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

func (SavingMap) Name() string                 { return "SAVING_MAP" }
func (MapCreated) Name() string                { return "MAP_CREATED" }
func (MapError) Name() string                  { return "MAP_ERROR" }
func (MapUpdating) Name() string               { return "MAP_UPDATING" }
func (LoadError) Name() string                 { return "MAPS_LOAD_MAP_ERROR" }
func (MetadataEditToggled) Name() string       { return "DISPLAY_METADATA_EDIT" }
func (MapDeleting) Name() string               { return "MAP_DELETING" }
func (MapDeleted) Name() string                { return "MAP_DELETED" }
func (CurrentMapSelected) Name() string        { return "CURRENT_MAP_SELECTED" }
func (CurrentMapReset) Name() string           { return "RESET_CURRENT_MAP" }
func (DetailsUpdated) Name() string            { return "UPDATE_DETAILS" }
func (DetailsTextSet) Name() string            { return "SET_DETAILS_TEXT" }
func (DetailsChanged) Name() string            { return "SET_DETAILS_CHANGED" }
func (DetailsEditabilityToggled) Name() string { return "TOGGLE_DETAILS_EDITABILITY" }
func (DetailsSheetToggled) Name() string       { return "TOGGLE_DETAILS_SHEET" }
func (DetailsSaving) Name() string             { return "DETAILS_SAVING" }
func (DetailsLoaded) Name() string             { return "DETAILS_LOADED" }
func (MapInfoSet) Name() string                { return "MAP_INFO_SET" }
func (AttributeUpdated) Name() string          { return "ATTRIBUTE_UPDATED" }
func (NoChange) Name() string                  { return "DO_NOTHING" }
func (MapsLoading) Name() string               { return "MAPS_LOADING" }
func (MapsLoaded) Name() string                { return "MAPS_LIST_LOADED" }
func (ControlToggled) Name() string            { return "TOGGLE_CONTROL" }
func (FeatureGridClosed) Name() string         { return "FEATUREGRID:CLOSE_GRID" }
func (LayerNodeUpdated) Name() string          { return "UPDATE_NODE" }
func (ThumbnailUpdated) Name() string          { return "UPDATE_THUMBNAIL" }
func (BackgroundsCleared) Name() string        { return "BACKGROUND_SELECTOR:CLEAR_BACKGROUND" }
func (ModalParametersCleared) Name() string    { return "BACKGROUND_SELECTOR:CLEAR_MODAL_PARAMETERS" }
func (ThumbnailError) Name() string            { return "MAP_THUMBNAIL_ERROR" }
func (Notice) Name() string                    { return "SHOW_NOTIFICATION" }

func (SavingMap) event()                 {}
func (MapCreated) event()                {}
func (MapError) event()                  {}
func (MapUpdating) event()               {}
func (LoadError) event()                 {}
func (MetadataEditToggled) event()       {}
func (MapDeleting) event()               {}
func (MapDeleted) event()                {}
func (CurrentMapSelected) event()        {}
func (CurrentMapReset) event()           {}
func (DetailsUpdated) event()            {}
func (DetailsTextSet) event()            {}
func (DetailsChanged) event()            {}
func (DetailsEditabilityToggled) event() {}
func (DetailsSheetToggled) event()       {}
func (DetailsSaving) event()             {}
func (DetailsLoaded) event()             {}
func (MapInfoSet) event()                {}
func (AttributeUpdated) event()          {}
func (NoChange) event()                  {}
func (MapsLoading) event()               {}
func (MapsLoaded) event()                {}
func (ControlToggled) event()            {}
func (FeatureGridClosed) event()         {}
func (LayerNodeUpdated) event()          {}
func (ThumbnailUpdated) event()          {}
func (BackgroundsCleared) event()        {}
func (ModalParametersCleared) event()    {}
func (ThumbnailError) event()            {}
func (Notice) event()                    {}

// Record is the wire form of an event.
type Record struct {
	Name    string `json:"name"`
	Payload Event  `json:"payload"`
}

// Encode wraps e for JSON output.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(Record{Name: e.Name(), Payload: e})
}

// Names returns the wire names of evs in order.
func Names(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Name())
	}
	return out
}
