// Package state holds the application state the engine reads and the
// reducer that applies emitted events to it.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/gateway"
)

// CurrentMap is the map whose details are being viewed or edited.
type CurrentMap struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	DetailsURI      string               `json:"details,omitempty"`
	ThumbnailURI    string               `json:"thumbnail,omitempty"`
	DetailsText     string               `json:"detailsText"`
	OriginalDetails string               `json:"originalDetails"`
	DetailsChanged  bool                 `json:"detailsChanged"`
	DetailsFetched  bool                 `json:"doneFetching"`
	DetailsEditable bool                 `json:"editDetailsDisabled"`
	ShowDetailSheet bool                 `json:"showDetailEditor"`
	SheetReadOnly   bool                 `json:"detailsSheetReadOnly"`
	SavingDetails   bool                 `json:"saving"`
	Permissions     []gateway.Permission `json:"permissions,omitempty"`
}

// MapInfo is the map loaded in the viewer.
type MapInfo struct {
	ID         string `json:"mapId"`
	DetailsURI string `json:"details,omitempty"`
}

// Layer is one layer of the map configuration.
type Layer struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	Type       string `json:"type,omitempty"`
	Group      string `json:"group,omitempty"`
	Background bool   `json:"background,omitempty"`
	Visibility bool   `json:"visibility"`
	Source     string `json:"source,omitempty"`
	ThumbID    string `json:"thumbId,omitempty"`
}

// Group is one layer group of the map configuration.
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// MapConfig is the viewer configuration saved as the map document.
type MapConfig struct {
	// Map holds viewer fields (center, zoom, projection) verbatim.
	Map               json.RawMessage `json:"map,omitempty"`
	Layers            []Layer         `json:"layers"`
	Groups            []Group         `json:"groups,omitempty"`
	TextSearchConfig  json.RawMessage `json:"textSearchConfig,omitempty"`
	AdditionalOptions map[string]any  `json:"additionalOptions,omitempty"`
}

// Snapshot is an immutable view of application state for one dispatch.
type Snapshot struct {
	StoreURL             string               `json:"storeUrl"`
	CurrentMap           *CurrentMap          `json:"currentMap,omitempty"`
	MapInfo              MapInfo              `json:"mapInfo"`
	Maps                 []events.MapSummary  `json:"maps"`
	MapsTotal            int                  `json:"totalCount"`
	SearchText           string               `json:"searchText"`
	SearchParams         events.SearchParams  `json:"searchParams"`
	Loading              bool                 `json:"loading"`
	SavingMap            bool                 `json:"savingMap"`
	UpdatingMap          bool                 `json:"updatingMap"`
	MetadataEdit         bool                 `json:"displayMetadataEdit"`
	Deleting             map[string]bool      `json:"deleting,omitempty"`
	Config               MapConfig            `json:"config"`
	BackgroundSourceList []string             `json:"backgroundSourceList,omitempty"`
	PendingThumbnails    map[string]bool      `json:"pendingThumbnails,omitempty"`
	BackgroundModalOpen  bool                 `json:"backgroundModalOpen"`
	Controls             map[string]bool      `json:"controls,omitempty"`
	FeatureGridOpen      bool                 `json:"featureGridOpen"`
	Permissions          []gateway.Permission `json:"permissions,omitempty"`
	LastError            string               `json:"lastError,omitempty"`
	ThumbnailError       string               `json:"thumbnailError,omitempty"`
	Notices              []events.Notice      `json:"notices,omitempty"`
}

// MapByID finds a loaded map summary.
func (s Snapshot) MapByID(id string) (events.MapSummary, bool) {
	for _, m := range s.Maps {
		if m.ID == id {
			return m, true
		}
	}
	return events.MapSummary{}, false
}

// Backgrounds returns the background layers of the configuration.
func (s Snapshot) Backgrounds() []Layer {
	out := make([]Layer, 0)
	for _, l := range s.Config.Layers {
		if l.Background {
			out = append(out, l)
		}
	}
	return out
}

// BackgroundThumbIDs lists the thumb ids of backgrounds that have one.
func (s Snapshot) BackgroundThumbIDs() []string {
	out := make([]string, 0)
	for _, l := range s.Backgrounds() {
		if l.ThumbID != "" {
			out = append(out, l.ThumbID)
		}
	}
	return out
}

// MapPermissions returns the permissions of a loaded map, falling back to
// the snapshot defaults.
func (s Snapshot) MapPermissions(id string) []gateway.Permission {
	if m, ok := s.MapByID(id); ok && len(m.Permissions) > 0 {
		return gateway.ClonePermissions(m.Permissions)
	}
	if s.CurrentMap != nil && s.CurrentMap.ID == id && len(s.CurrentMap.Permissions) > 0 {
		return gateway.ClonePermissions(s.CurrentMap.Permissions)
	}
	return gateway.ClonePermissions(s.Permissions)
}

// Clone deep-copies the snapshot so callers never share state with the store.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.CurrentMap != nil {
		cm := *s.CurrentMap
		cm.Permissions = gateway.ClonePermissions(s.CurrentMap.Permissions)
		out.CurrentMap = &cm
	}
	out.Maps = make([]events.MapSummary, len(s.Maps))
	for i, m := range s.Maps {
		m.Permissions = gateway.ClonePermissions(m.Permissions)
		out.Maps[i] = m
	}
	out.Deleting = cloneFlags(s.Deleting)
	out.PendingThumbnails = cloneFlags(s.PendingThumbnails)
	out.Controls = cloneFlags(s.Controls)
	out.Config.Layers = append([]Layer(nil), s.Config.Layers...)
	out.Config.Groups = append([]Group(nil), s.Config.Groups...)
	out.Config.Map = append(json.RawMessage(nil), s.Config.Map...)
	out.Config.TextSearchConfig = append(json.RawMessage(nil), s.Config.TextSearchConfig...)
	if s.Config.AdditionalOptions != nil {
		out.Config.AdditionalOptions = make(map[string]any, len(s.Config.AdditionalOptions))
		for k, v := range s.Config.AdditionalOptions {
			out.Config.AdditionalOptions[k] = v
		}
	}
	out.BackgroundSourceList = append([]string(nil), s.BackgroundSourceList...)
	out.Permissions = gateway.ClonePermissions(s.Permissions)
	out.Notices = append([]events.Notice(nil), s.Notices...)
	return out
}

func cloneFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ConfigVersion is the version stamped on composed map documents.
const ConfigVersion = 2

// ComposeConfiguration renders the map document saved for cfg: viewer fields
// with layers, groups and text search config nested under "map", additional
// options at the top level.
func ComposeConfiguration(cfg MapConfig) (string, error) {
	mapFields := map[string]any{}
	if len(cfg.Map) > 0 {
		if err := json.Unmarshal(cfg.Map, &mapFields); err != nil {
			return "", fmt.Errorf("state: map fields: %w", err)
		}
	}
	layers := cfg.Layers
	if layers == nil {
		layers = []Layer{}
	}
	mapFields["layers"] = layers
	if len(cfg.Groups) > 0 {
		mapFields["groups"] = cfg.Groups
	}
	if len(cfg.TextSearchConfig) > 0 {
		mapFields["text_search_config"] = cfg.TextSearchConfig
	}

	doc := map[string]any{}
	for k, v := range cfg.AdditionalOptions {
		doc[k] = v
	}
	doc["version"] = ConfigVersion
	doc["map"] = mapFields
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
