package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/coordinator"
	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/lifecycle"
	"github.com/danmuck/geoctl/internal/state"
)

const layersNode = "layers"

func (e *Engine) backgroundThumbnailCreated(in BackgroundThumbnailCreated, _ state.Snapshot) Plan {
	entries := append([]coordinator.BackgroundThumbnail(nil), in.Backgrounds...)
	return Plan{Run: func(ctx context.Context) Completion {
		res := e.coord.SaveBackgroundThumbnails(ctx, entries)
		var effects []Effect
		var errs []error
		for _, o := range res.Outcomes {
			switch {
			case !o.OK():
				errs = append(errs, o.Err)
			case o.Action == lifecycle.Create:
				effects = append(effects, emit(
					events.LayerNodeUpdated{NodeID: o.Key, Type: layersNode, Source: o.Payload, ThumbID: o.ResourceID},
					events.ThumbnailUpdated{BackgroundID: o.Key, Unsaved: false},
				)...)
			case o.Action == lifecycle.Delete:
				effects = append(effects, Emit{Event: events.LayerNodeUpdated{NodeID: o.Key, Type: layersNode, Clear: true}})
			}
		}
		if len(errs) > 0 {
			effects = append(effects, Emit{Event: events.ThumbnailError{Error: errors.Join(errs...).Error()}})
			if len(errs) == len(res.Outcomes) {
				return done(StatusError, effects...)
			}
			return done(StatusPartial, effects...)
		}
		effects = append(effects,
			Emit{Event: events.BackgroundsCleared{}},
			Emit{Event: events.ModalParametersCleared{}},
			Chain{Intent: BackgroundThumbsUpdated{
				ThumbName: in.ThumbName,
				Metadata:  in.Metadata,
				Data:      in.Data,
				Removed:   res.Removed,
			}},
		)
		return done(StatusSuccess, effects...)
	}}
}

func (e *Engine) backgroundThumbsUpdated(in BackgroundThumbsUpdated, snap state.Snapshot) Plan {
	mapID := snap.MapInfo.ID
	orphans := coordinator.Difference(snap.BackgroundSourceList, snap.BackgroundThumbIDs())
	config, configErr := state.ComposeConfiguration(snap.Config)
	metadata := in.Metadata

	return Plan{Run: func(ctx context.Context) Completion {
		if configErr != nil {
			return done(StatusError, emit(events.ThumbnailError{Error: configErr.Error()})...)
		}
		status := StatusSuccess
		for _, o := range e.coord.DeleteOrphans(ctx, orphans) {
			if !o.OK() {
				status = StatusPartial
				log.Warn().Err(o.Err).Str("thumb", o.Key).Msg("engine.backgroundThumbsUpdated orphan delete")
			}
		}
		log.Debug().
			Strs("deleted", orphans).
			Strs("removed", in.Removed).
			Str("map", mapID).
			Msg("engine.backgroundThumbsUpdated")

		res := MapResource{
			ID:       mapID,
			Category: gateway.CategoryMap,
			Data:     config,
			Metadata: metadata,
		}
		if in.Data != "" {
			res.LinkedResources = map[string]LinkedResource{
				"thumbnail": {
					Data:     in.Data,
					Category: gateway.CategoryThumbnail,
					Name:     in.ThumbName,
					Tail:     e.coord.ThumbnailTail(),
				},
			}
		}
		return done(status, Chain{Intent: SaveMapResource{Resource: res}})
	}}
}
