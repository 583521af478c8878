package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/state"
)

// handle maps an intent and one state snapshot to a plan.
func (e *Engine) handle(in Intent, snap state.Snapshot) Plan {
	switch v := in.(type) {
	case SaveMapResource:
		return e.saveMapResource(v, snap)
	case DeleteMap:
		return e.deleteMap(v, snap)
	case EditMap:
		return e.editMap(v, snap)
	case BackgroundThumbsUpdated:
		return e.backgroundThumbsUpdated(v, snap)
	case BackgroundThumbnailCreated:
		return e.backgroundThumbnailCreated(v, snap)
	case SaveDetails:
		return e.saveDetails(v, snap)
	case SaveResourceDetails:
		return e.saveResourceDetails(v, snap)
	case LoadMaps:
		return e.loadMaps(v, snap)
	case GetMapResourcesByCategory:
		return e.getMapResourcesByCategory(v, snap)
	case OpenDetailsPanel:
		return e.openDetailsPanel(v, snap)
	case CloseDetailsPanel:
		return e.closeDetailsPanel(v, snap)
	case ResetUpdating:
		return e.resetUpdating(v, snap)
	case MapInfoLoaded:
		return e.mapInfoLoaded(v, snap)
	default:
		log.Error().Str("intent", in.Kind()).Msg("engine.handle unhandled intent")
		return Plan{}
	}
}
