package engine

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/coordinator"
	"github.com/danmuck/geoctl/internal/events"
	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/lifecycle"
	"github.com/danmuck/geoctl/internal/resource"
	"github.com/danmuck/geoctl/internal/state"
)

// EmptyDetails is what an untouched rich-text editor holds.
const EmptyDetails = "<p><br></p>"

const detailsControl = "details"

func (e *Engine) withinDetailsLimit(text string) bool {
	return utf8.RuneCountInString(text) <= e.detailsLimit
}

// DetailsChanged reports whether text differs from what is stored for cm.
func DetailsChanged(cm *state.CurrentMap, text string) bool {
	if cm == nil || cm.DetailsURI == "" {
		return text != EmptyDetails
	}
	return cm.OriginalDetails != text
}

func (e *Engine) saveDetails(in SaveDetails, snap state.Snapshot) Plan {
	var effects []Effect
	effects = append(effects, Emit{Event: events.DetailsTextSet{Text: in.Text}})
	if e.withinDetailsLimit(in.Text) {
		effects = append(effects, Emit{Event: events.DetailsSheetToggled{ReadOnly: true}})
	} else {
		effects = append(effects, Emit{Event: events.Error(events.MsgErrorSizeExceeded)})
	}
	effects = append(effects, Emit{Event: events.DetailsChanged{Changed: DetailsChanged(snap.CurrentMap, in.Text)}})
	return Plan{Start: effects}
}

func (e *Engine) saveResourceDetails(_ SaveResourceDetails, snap state.Snapshot) Plan {
	cm := snap.CurrentMap
	if cm == nil || !cm.DetailsChanged {
		return Plan{Start: emit(events.NoChange{})}
	}
	if !e.withinDetailsLimit(cm.DetailsText) {
		return Plan{Start: emit(events.Error(events.MsgErrorSizeExceeded))}
	}

	mapID := cm.ID
	change := coordinator.AttributeChange{
		Owner:     mapID,
		Attribute: "details",
		Current:   resource.Reference{URI: cm.DetailsURI},
	}
	if cm.DetailsText != "" {
		change.Desired = &lifecycle.Desired{
			Value:       cm.DetailsText,
			Category:    gateway.CategoryDetails,
			Metadata:    gateway.Metadata{Name: e.newID()},
			Permissions: snap.MapPermissions(mapID),
			Options:     map[string]string{},
		}
	}

	return Plan{
		Start: emit(events.DetailsSaving{Saving: true}),
		Run: func(ctx context.Context) Completion {
			out := e.coord.SaveAttribute(ctx, change)
			var effects []Effect
			status := StatusSuccess
			if out.OK() {
				if out.Payload != "" {
					effects = append(effects, Emit{Event: events.AttributeUpdated{
						MapID:     mapID,
						Attribute: "details",
						Value:     out.Payload,
						Type:      gateway.AttributeString,
						Succeeded: true,
					}})
				}
			} else {
				status = StatusError
				effects = append(effects, Emit{Event: events.LinkedSaveFailed("details", out.Err)})
			}
			effects = append(effects,
				Emit{Event: events.DetailsSaving{Saving: false}},
				Chain{Intent: ResetUpdating{MapID: mapID}},
			)
			return done(status, effects...)
		},
	}
}

func (e *Engine) editMap(in EditMap, snap state.Snapshot) Plan {
	m := in.Map
	if known, ok := snap.MapByID(m.ID); ok && m.DetailsURI == "" {
		m.DetailsURI = known.DetailsURI
	}
	start := emit(events.CurrentMapSelected{Map: m})

	ref := resource.Reference{URI: m.DetailsURI}
	if !ref.Present() {
		start = append(start, Emit{Event: events.DetailsUpdated{Text: "", DoneFetching: true, Original: ""}})
		return Plan{Start: start}
	}
	return Plan{
		Start: start,
		Run: func(ctx context.Context) Completion {
			details, err := e.fetchDetails(ctx, ref)
			if err != nil {
				return done(StatusError, emit(
					events.ErrorWithDetail(events.MsgErrorFetchingDetails, err),
					events.DetailsUpdated{Text: resource.NoDetailsAvailable, DoneFetching: true, Original: resource.NoDetailsAvailable},
					events.DetailsEditabilityToggled{MapID: m.ID},
				)...)
			}
			return done(StatusSuccess, emit(events.DetailsUpdated{Text: details, DoneFetching: true, Original: details})...)
		},
	}
}

func (e *Engine) fetchDetails(ctx context.Context, ref resource.Reference) (string, error) {
	id := ref.ID()
	if id == "" {
		return "", fmt.Errorf("%w: %q", resource.ErrUnresolvable, ref.URI)
	}
	return e.gw.GetResource(ctx, id)
}

func (e *Engine) openDetailsPanel(_ OpenDetailsPanel, snap state.Snapshot) Plan {
	ref := resource.Reference{URI: snap.MapInfo.DetailsURI}
	return Plan{
		Start: emit(events.ControlToggled{Control: detailsControl, Property: "enabled"}),
		Run: func(ctx context.Context) Completion {
			details, err := e.fetchDetails(ctx, ref)
			if err != nil {
				return done(StatusError, emit(
					events.ErrorWithDetail(events.MsgErrorFetchingDetails, err),
					events.DetailsUpdated{Text: resource.NoDetailsAvailable, DoneFetching: true, Original: resource.NoDetailsAvailable},
				)...)
			}
			return done(StatusSuccess, emit(
				events.FeatureGridClosed{},
				events.DetailsUpdated{Text: details, DoneFetching: true, Original: details},
			)...)
		},
	}
}

func (e *Engine) closeDetailsPanel(_ CloseDetailsPanel, _ state.Snapshot) Plan {
	return Plan{Start: emit(
		events.ControlToggled{Control: detailsControl, Property: "enabled"},
		events.CurrentMapReset{},
	)}
}

func (e *Engine) resetUpdating(_ ResetUpdating, _ state.Snapshot) Plan {
	return Plan{Start: emit(
		events.MetadataEditToggled{Show: false},
		events.CurrentMapReset{},
	)}
}

func (e *Engine) mapInfoLoaded(in MapInfoLoaded, _ state.Snapshot) Plan {
	mapID := in.MapID
	if mapID == "" {
		return Plan{}
	}
	return Plan{
		Start: emit(events.MapInfoSet{MapID: mapID}),
		Run: func(ctx context.Context) Completion {
			attrs, err := e.gw.GetResourceAttributes(ctx, mapID)
			if err != nil {
				log.Warn().Err(err).Str("map", mapID).Msg("engine.mapInfoLoaded attributes")
				return done(StatusError)
			}
			details, ok := gateway.FindAttribute(attrs, "details")
			if !ok {
				return done(StatusSuccess)
			}
			return done(StatusSuccess, emit(events.DetailsLoaded{MapID: mapID, DetailsURI: details.Value})...)
		},
	}
}
