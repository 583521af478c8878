package state

import (
	"github.com/danmuck/geoctl/internal/events"
)

// MaxNotices bounds the notices kept in state.
const MaxNotices = 100

// Reduce returns the state after ev. It never mutates s.
func Reduce(s Snapshot, ev events.Event) Snapshot {
	next := s.Clone()
	switch e := ev.(type) {
	case events.SavingMap:
		next.SavingMap = true
	case events.MapCreated:
		next.SavingMap = false
		next.MapInfo = MapInfo{ID: e.ID}
		summary := events.MapSummary{
			ID:          e.ID,
			Name:        e.Metadata.Name,
			Description: e.Metadata.Description,
			CanEdit:     true,
			CanDelete:   true,
			CanCopy:     true,
		}
		if uri, ok := e.Metadata.Attributes["details"]; ok {
			summary.DetailsURI = uri
		}
		if uri, ok := e.Metadata.Attributes["thumbnail"]; ok {
			summary.ThumbnailURI = uri
		}
		next.Maps = append(next.Maps, summary)
		next.MapsTotal++
	case events.MapError:
		next.SavingMap = false
		next.LastError = e.Error
	case events.MapUpdating:
		next.UpdatingMap = true
	case events.LoadError:
		next.Loading = false
		next.UpdatingMap = false
		next.LastError = e.Error
	case events.MetadataEditToggled:
		next.MetadataEdit = e.Show
		if !e.Show {
			next.UpdatingMap = false
		}
	case events.MapDeleting:
		if next.Deleting == nil {
			next.Deleting = map[string]bool{}
		}
		next.Deleting[e.ID] = true
	case events.MapDeleted:
		delete(next.Deleting, e.ID)
		if e.Result == events.ResultSuccess {
			next.Maps = removeMap(next.Maps, e.ID)
			if next.MapsTotal > 0 {
				next.MapsTotal--
			}
		}
	case events.CurrentMapSelected:
		next.CurrentMap = &CurrentMap{
			ID:           e.Map.ID,
			Name:         e.Map.Name,
			DetailsURI:   e.Map.DetailsURI,
			ThumbnailURI: e.Map.ThumbnailURI,
			Permissions:  e.Map.Permissions,
		}
	case events.CurrentMapReset:
		next.CurrentMap = nil
	case events.DetailsUpdated:
		cm := next.current()
		cm.DetailsText = e.Text
		cm.OriginalDetails = e.Original
		cm.DetailsFetched = e.DoneFetching
	case events.DetailsTextSet:
		next.current().DetailsText = e.Text
	case events.DetailsChanged:
		next.current().DetailsChanged = e.Changed
	case events.DetailsEditabilityToggled:
		cm := next.current()
		cm.DetailsEditable = !cm.DetailsEditable
	case events.DetailsSheetToggled:
		cm := next.current()
		cm.ShowDetailSheet = true
		cm.SheetReadOnly = e.ReadOnly
	case events.DetailsSaving:
		next.current().SavingDetails = e.Saving
	case events.DetailsLoaded:
		if next.MapInfo.ID == e.MapID {
			next.MapInfo.DetailsURI = e.DetailsURI
		}
		next.setMapAttribute(e.MapID, "details", e.DetailsURI)
	case events.MapInfoSet:
		next.MapInfo = MapInfo{ID: e.MapID}
	case events.AttributeUpdated:
		if e.Succeeded {
			next.setMapAttribute(e.MapID, e.Attribute, e.Value)
		}
	case events.NoChange:
	case events.MapsLoading:
		next.Loading = true
		next.SearchText = e.SearchText
		next.SearchParams = e.Params
	case events.MapsLoaded:
		next.Loading = false
		next.Maps = append([]events.MapSummary(nil), e.Maps...)
		next.MapsTotal = e.Total
		next.SearchParams = e.Params
		next.SearchText = e.SearchText
	case events.ControlToggled:
		if next.Controls == nil {
			next.Controls = map[string]bool{}
		}
		next.Controls[e.Control] = !next.Controls[e.Control]
	case events.FeatureGridClosed:
		next.FeatureGridOpen = false
	case events.LayerNodeUpdated:
		for i := range next.Config.Layers {
			if next.Config.Layers[i].ID != e.NodeID {
				continue
			}
			if e.Clear {
				next.Config.Layers[i].Source = ""
				next.Config.Layers[i].ThumbID = ""
			} else {
				next.Config.Layers[i].Source = e.Source
				next.Config.Layers[i].ThumbID = e.ThumbID
			}
		}
	case events.ThumbnailUpdated:
		if e.Unsaved {
			if next.PendingThumbnails == nil {
				next.PendingThumbnails = map[string]bool{}
			}
			next.PendingThumbnails[e.BackgroundID] = true
		} else {
			delete(next.PendingThumbnails, e.BackgroundID)
		}
	case events.BackgroundsCleared:
		next.PendingThumbnails = nil
	case events.ModalParametersCleared:
		next.BackgroundModalOpen = false
	case events.ThumbnailError:
		next.ThumbnailError = e.Error
	case events.Notice:
		next.Notices = append(next.Notices, e)
		if len(next.Notices) > MaxNotices {
			next.Notices = next.Notices[len(next.Notices)-MaxNotices:]
		}
	}
	return next
}

// current returns the current map, creating an empty one when unset.
func (s *Snapshot) current() *CurrentMap {
	if s.CurrentMap == nil {
		s.CurrentMap = &CurrentMap{}
	}
	return s.CurrentMap
}

func (s *Snapshot) setMapAttribute(mapID, name, value string) {
	for i := range s.Maps {
		if s.Maps[i].ID != mapID {
			continue
		}
		switch name {
		case "details":
			s.Maps[i].DetailsURI = value
		case "thumbnail":
			s.Maps[i].ThumbnailURI = value
		}
	}
	if s.CurrentMap != nil && s.CurrentMap.ID == mapID {
		switch name {
		case "details":
			s.CurrentMap.DetailsURI = value
		case "thumbnail":
			s.CurrentMap.ThumbnailURI = value
		}
	}
	if name == "details" && s.MapInfo.ID == mapID {
		s.MapInfo.DetailsURI = value
	}
}

func removeMap(maps []events.MapSummary, id string) []events.MapSummary {
	out := maps[:0]
	for _, m := range maps {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
