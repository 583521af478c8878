package engine

import (
	"context"
	"regexp"
	"sort"

	"github.com/danmuck/geoctl/internal/coordinator"
	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/lifecycle"
	"github.com/danmuck/geoctl/internal/resource"
	"github.com/danmuck/geoctl/internal/state"
)

var searchSanitizer = regexp.MustCompile(`[/?:;@=&\\]+`)

// SanitizeSearch strips characters the store cannot take in a search path.
func SanitizeSearch(text string) string {
	return searchSanitizer.ReplaceAllString(text, "")
}

func (e *Engine) saveMapResource(in SaveMapResource, snap state.Snapshot) Plan {
	res := in.Resource
	if res.Category == "" {
		res.Category = gateway.CategoryMap
	}
	if res.ID == "" {
		return e.createMapResource(res)
	}
	return e.updateMapResource(res, snap)
}

func (e *Engine) createMapResource(res MapResource) Plan {
	return Plan{
		Start: emit(events.SavingMap{Metadata: res.Metadata}),
		Run: func(ctx context.Context) Completion {
			result := e.coord.SaveEntity(ctx, coordinator.EntitySave{
				Category:    res.Category,
				Metadata:    res.Metadata,
				Data:        res.Data,
				Permissions: res.Permissions,
				Linked:      e.linkedChanges(res, nil),
			})
			if !result.Entity.OK() {
				return done(StatusError, emit(
					events.MapError{Error: result.Entity.Err.Error()},
					events.SaveFailed(result.Entity.Err),
				)...)
			}
			id := result.Entity.ResourceID
			md := res.Metadata
			md.ID = id
			md.Category = res.Category
			md.CanDelete, md.CanEdit, md.CanCopy = true, true, true
			effects := emit(
				events.MapCreated{ID: id, Metadata: md, Data: res.Data},
				events.MetadataEditToggled{Show: false},
				events.SavedMap(),
			)
			effects = append(effects, e.linkedEffects(id, result.Linked)...)
			effects = append(effects, linkedFailures(result.Linked)...)
			return done(linkedStatus(result.Linked), effects...)
		},
	}
}

func (e *Engine) updateMapResource(res MapResource, snap state.Snapshot) Plan {
	current := currentLinks(res.ID, snap)
	return Plan{
		Start: emit(events.MapUpdating{Metadata: res.Metadata}),
		Run: func(ctx context.Context) Completion {
			result := e.coord.SaveEntity(ctx, coordinator.EntitySave{
				ID:          res.ID,
				Category:    res.Category,
				Metadata:    res.Metadata,
				Data:        res.Data,
				Permissions: res.Permissions,
				Linked:      e.linkedChanges(res, current),
			})
			effects := e.linkedEffects(res.ID, result.Linked)
			if !result.Entity.OK() {
				err := result.Entity.Err
				effects = append(effects, emit(events.LoadError{Error: err.Error()}, events.SaveFailed(err))...)
				effects = append(effects, linkedFailures(result.Linked)...)
				return done(StatusError, effects...)
			}
			effects = append(effects, emit(events.SavedMap())...)
			effects = append(effects, linkedFailures(result.Linked)...)
			return done(linkedStatus(result.Linked), effects...)
		},
	}
}

// currentLinks reads the attribute uris a saved map already has.
func currentLinks(mapID string, snap state.Snapshot) map[string]string {
	out := map[string]string{}
	if m, ok := snap.MapByID(mapID); ok {
		out["details"] = m.DetailsURI
		out["thumbnail"] = m.ThumbnailURI
	}
	if cm := snap.CurrentMap; cm != nil && cm.ID == mapID {
		if cm.DetailsURI != "" {
			out["details"] = cm.DetailsURI
		}
		if cm.ThumbnailURI != "" {
			out["thumbnail"] = cm.ThumbnailURI
		}
	}
	if snap.MapInfo.ID == mapID && snap.MapInfo.DetailsURI != "" {
		out["details"] = snap.MapInfo.DetailsURI
	}
	return out
}

// linkedChanges turns the linked resources of a save into attribute changes,
// in attribute order.
func (e *Engine) linkedChanges(res MapResource, current map[string]string) []coordinator.LinkedChange {
	names := make([]string, 0, len(res.LinkedResources))
	for name := range res.LinkedResources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]coordinator.LinkedChange, 0, len(names))
	for _, name := range names {
		lr := res.LinkedResources[name]
		change := coordinator.LinkedChange{
			Attribute: name,
			Current:   resource.Reference{URI: current[name]},
		}
		if lr.Data != "" && lr.Data != resource.NoData {
			tail := lr.Tail
			if tail == "" && name == "thumbnail" {
				tail = e.coord.ThumbnailTail()
			}
			change.Desired = &lifecycle.Desired{
				Value:       lr.Data,
				Category:    lr.Category,
				Metadata:    gateway.Metadata{Name: lr.Name},
				Permissions: res.Permissions,
				Tail:        tail,
			}
		}
		out = append(out, change)
	}
	return out
}

// linkedEffects reports every linked change that touched the map's attributes.
func (e *Engine) linkedEffects(mapID string, outcomes []coordinator.Outcome) []Effect {
	var out []Effect
	for _, o := range outcomes {
		if o.Action == lifecycle.NoOp || o.Payload == "" {
			continue
		}
		out = append(out, Emit{Event: events.AttributeUpdated{
			MapID:     mapID,
			Attribute: o.Kind,
			Value:     o.Payload,
			Type:      gateway.AttributeString,
			Succeeded: o.OK(),
		}})
	}
	return out
}

// linkedFailures emits one notice per failed linked change, scoped by the
// attribute it is linked under.
func linkedFailures(outcomes []coordinator.Outcome) []Effect {
	var out []Effect
	for _, o := range coordinator.Failed(outcomes) {
		out = append(out, Emit{Event: events.LinkedSaveFailed(o.Kind, o.Err)})
	}
	return out
}

func linkedStatus(outcomes []coordinator.Outcome) Status {
	if len(coordinator.Failed(outcomes)) > 0 {
		return StatusPartial
	}
	return StatusSuccess
}

func (e *Engine) deleteMap(in DeleteMap, snap state.Snapshot) Plan {
	target := coordinator.DeleteTarget{EntityID: in.MapID, Options: in.Options}
	if m, ok := snap.MapByID(in.MapID); ok {
		target.Details = resource.Reference{URI: m.DetailsURI}
		target.Thumbnail = resource.Reference{URI: m.ThumbnailURI}
	}
	return Plan{
		Start: emit(events.MapDeleting{ID: in.MapID}),
		Run: func(ctx context.Context) Completion {
			res := e.coord.DeleteEntity(ctx, target)
			var effects []Effect
			if !res.Details.OK() {
				effects = append(effects, Emit{Event: events.ErrorWithDetail(events.MsgErrorDeletingDetails, res.Details.Err)})
			}
			if !res.Thumbnail.OK() {
				effects = append(effects, Emit{Event: events.ErrorWithDetail(events.MsgErrorDeletingThumbnail, res.Thumbnail.Err)})
			}
			if !res.Entity.OK() {
				effects = append(effects, emit(
					events.ErrorWithDetail(events.MsgErrorDeletingMap, res.Entity.Err),
					events.MapDeleted{ID: in.MapID, Result: events.ResultFailure, Error: res.Entity.Err.Error()},
				)...)
				return done(StatusError, effects...)
			}
			effects = append(effects, Emit{Event: events.MapDeleted{ID: in.MapID, Result: events.ResultSuccess}})
			if res.AllSucceeded() {
				effects = append(effects, Emit{Event: events.Success(events.MsgAllResourcesDeleted)})
				return done(StatusSuccess, effects...)
			}
			return done(StatusPartial, effects...)
		},
	}
}

func (e *Engine) loadMaps(in LoadMaps, _ state.Snapshot) Plan {
	text := SanitizeSearch(in.SearchText)
	return Plan{Start: []Effect{
		Emit{Event: events.MapsLoading{SearchText: text, Params: in.Params}},
		Chain{Intent: GetMapResourcesByCategory{Category: gateway.CategoryMap, SearchText: text, Params: in.Params}},
	}}
}

func (e *Engine) getMapResourcesByCategory(in GetMapResourcesByCategory, _ state.Snapshot) Plan {
	category := in.Category
	if category == "" {
		category = gateway.CategoryMap
	}
	return Plan{Run: func(ctx context.Context) Completion {
		list, err := e.gw.ListResourcesByCategory(ctx, category, in.SearchText, gateway.Page{
			Start: in.Params.Start,
			Limit: in.Params.Limit,
		})
		if err != nil {
			return done(StatusError, emit(events.LoadError{Error: err.Error()})...)
		}
		maps := make([]events.MapSummary, 0, len(list.Results))
		for _, md := range list.Results {
			maps = append(maps, summaryOf(md))
		}
		return done(StatusSuccess, emit(events.MapsLoaded{
			Maps:       maps,
			Total:      list.Total,
			Params:     in.Params,
			SearchText: in.SearchText,
		})...)
	}}
}

func summaryOf(md gateway.Metadata) events.MapSummary {
	return events.MapSummary{
		ID:           md.ID,
		Name:         md.Name,
		Description:  md.Description,
		DetailsURI:   md.Attributes["details"],
		ThumbnailURI: md.Attributes["thumbnail"],
		CanEdit:      md.CanEdit,
		CanDelete:    md.CanDelete,
		CanCopy:      md.CanCopy,
	}
}
