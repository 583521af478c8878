package engine

import (
	"github.com/danmuck/geoctl/internal/coordinator"
	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/gateway"
)

// Intent is a discrete user or system request. The set is closed: adding a
// kind means adding a type here and a case in every switch over Intent.
type Intent interface {
	Kind() string
	intent()
}

// Intent kinds as accepted on the wire.
const (
	KindSaveMapResource            = "save_map_resource"
	KindDeleteMap                  = "delete_map"
	KindEditMap                    = "edit_map"
	KindBackgroundThumbsUpdated    = "background_thumbs_updated"
	KindBackgroundThumbnailCreated = "background_thumbnail_created"
	KindSaveDetails                = "save_details"
	KindSaveResourceDetails        = "save_resource_details"
	KindLoadMaps                   = "load_maps"
	KindGetMapResourcesByCategory  = "get_map_resources_by_category"
	KindOpenDetailsPanel           = "open_details_panel"
	KindCloseDetailsPanel          = "close_details_panel"
	KindResetUpdating              = "reset_updating"
	KindMapInfoLoaded              = "map_info_loaded"
)

// LinkedResource is a resource saved alongside a map and linked from one of
// its attributes. Empty Data removes the link.
type LinkedResource struct {
	Data     string `json:"data"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Tail     string `json:"tail,omitempty"`
}

// MapResource is the map document to save.
type MapResource struct {
	ID              string                    `json:"id,omitempty"`
	Category        string                    `json:"category"`
	Data            string                    `json:"data"`
	Metadata        gateway.Metadata          `json:"metadata"`
	Permissions     []gateway.Permission      `json:"permissions,omitempty"`
	LinkedResources map[string]LinkedResource `json:"linkedResources,omitempty"`
}

type SaveMapResource struct {
	Resource MapResource `json:"resource"`
}

type DeleteMap struct {
	MapID   string                `json:"resourceId"`
	Options gateway.DeleteOptions `json:"options,omitempty"`
}

type EditMap struct {
	Map events.MapSummary `json:"map"`
}

type BackgroundThumbsUpdated struct {
	ThumbName string           `json:"mapThumb"`
	Metadata  gateway.Metadata `json:"metadata"`
	// Data is the map thumbnail payload; empty leaves the thumbnail alone.
	Data    string   `json:"data"`
	Removed []string `json:"removed,omitempty"`
}

type BackgroundThumbnailCreated struct {
	ThumbName   string                            `json:"thumbName"`
	Metadata    gateway.Metadata                  `json:"metadata"`
	Data        string                            `json:"data"`
	Backgrounds []coordinator.BackgroundThumbnail `json:"backgrounds"`
}

type SaveDetails struct {
	Text string `json:"detailsText"`
}

type SaveResourceDetails struct{}

type LoadMaps struct {
	SearchText string              `json:"searchText"`
	Params     events.SearchParams `json:"params"`
}

type GetMapResourcesByCategory struct {
	Category   string              `json:"map"`
	SearchText string              `json:"searchText"`
	Params     events.SearchParams `json:"params"`
}

type OpenDetailsPanel struct{}

type CloseDetailsPanel struct{}

type ResetUpdating struct {
	MapID string `json:"resourceId"`
}

type MapInfoLoaded struct {
	MapID string `json:"mapId"`
}

func (SaveMapResource) Kind() string            { return KindSaveMapResource }
func (DeleteMap) Kind() string                  { return KindDeleteMap }
func (EditMap) Kind() string                    { return KindEditMap }
func (BackgroundThumbsUpdated) Kind() string    { return KindBackgroundThumbsUpdated }
func (BackgroundThumbnailCreated) Kind() string { return KindBackgroundThumbnailCreated }
func (SaveDetails) Kind() string                { return KindSaveDetails }
func (SaveResourceDetails) Kind() string        { return KindSaveResourceDetails }
func (LoadMaps) Kind() string                   { return KindLoadMaps }
func (GetMapResourcesByCategory) Kind() string  { return KindGetMapResourcesByCategory }
func (OpenDetailsPanel) Kind() string           { return KindOpenDetailsPanel }
func (CloseDetailsPanel) Kind() string          { return KindCloseDetailsPanel }
func (ResetUpdating) Kind() string              { return KindResetUpdating }
func (MapInfoLoaded) Kind() string              { return KindMapInfoLoaded }

func (SaveMapResource) intent()            {}
func (DeleteMap) intent()                  {}
func (EditMap) intent()                    {}
func (BackgroundThumbsUpdated) intent()    {}
func (BackgroundThumbnailCreated) intent() {}
func (SaveDetails) intent()                {}
func (SaveResourceDetails) intent()        {}
func (LoadMaps) intent()                   {}
func (GetMapResourcesByCategory) intent()  {}
func (OpenDetailsPanel) intent()           {}
func (CloseDetailsPanel) intent()          {}
func (ResetUpdating) intent()              {}
func (MapInfoLoaded) intent()              {}

// Policy decides what happens when an intent arrives while an earlier one of
// the same kind is still in flight.
type Policy int

const (
	// PolicySwitch starts the new instance and discards the older result.
	PolicySwitch Policy = iota
	// PolicyExhaust drops the new instance.
	PolicyExhaust
	// PolicyMerge runs both; each reports.
	PolicyMerge
)

func (p Policy) String() string {
	switch p {
	case PolicyExhaust:
		return "exhaust"
	case PolicyMerge:
		return "merge"
	default:
		return "switch"
	}
}

// PolicyOf returns the concurrency policy of an intent kind.
func PolicyOf(in Intent) Policy {
	switch in.(type) {
	case SaveMapResource:
		return PolicyExhaust
	case DeleteMap:
		return PolicyMerge
	case EditMap, BackgroundThumbsUpdated, BackgroundThumbnailCreated,
		SaveDetails, SaveResourceDetails, LoadMaps, GetMapResourcesByCategory,
		OpenDetailsPanel, CloseDetailsPanel, ResetUpdating, MapInfoLoaded:
		return PolicySwitch
	default:
		return PolicySwitch
	}
}
