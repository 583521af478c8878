package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kinds lists every accepted intent kind, sorted.
func Kinds() []string {
	out := []string{
		KindSaveMapResource,
		KindDeleteMap,
		KindEditMap,
		KindBackgroundThumbsUpdated,
		KindBackgroundThumbnailCreated,
		KindSaveDetails,
		KindSaveResourceDetails,
		KindLoadMaps,
		KindGetMapResourcesByCategory,
		KindOpenDetailsPanel,
		KindCloseDetailsPanel,
		KindResetUpdating,
		KindMapInfoLoaded,
	}
	sort.Strings(out)
	return out
}

// DecodeIntent builds the typed intent for kind from a JSON payload. An empty
// payload yields the zero intent.
func DecodeIntent(kind string, raw []byte) (Intent, error) {
	switch strings.TrimSpace(kind) {
	case KindSaveMapResource:
		return decode[SaveMapResource](kind, raw)
	case KindDeleteMap:
		in, err := decodeInto[DeleteMap](kind, raw)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.MapID) == "" {
			return nil, fmt.Errorf("%w: %s: missing resourceId", ErrInvalidIntent, kind)
		}
		return in, nil
	case KindEditMap:
		return decode[EditMap](kind, raw)
	case KindBackgroundThumbsUpdated:
		return decode[BackgroundThumbsUpdated](kind, raw)
	case KindBackgroundThumbnailCreated:
		return decode[BackgroundThumbnailCreated](kind, raw)
	case KindSaveDetails:
		return decode[SaveDetails](kind, raw)
	case KindSaveResourceDetails:
		return decode[SaveResourceDetails](kind, raw)
	case KindLoadMaps:
		return decode[LoadMaps](kind, raw)
	case KindGetMapResourcesByCategory:
		return decode[GetMapResourcesByCategory](kind, raw)
	case KindOpenDetailsPanel:
		return decode[OpenDetailsPanel](kind, raw)
	case KindCloseDetailsPanel:
		return decode[CloseDetailsPanel](kind, raw)
	case KindResetUpdating:
		return decode[ResetUpdating](kind, raw)
	case KindMapInfoLoaded:
		return decode[MapInfoLoaded](kind, raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, kind)
	}
}

func decode[T Intent](kind string, raw []byte) (Intent, error) {
	in, err := decodeInto[T](kind, raw)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func decodeInto[T Intent](kind string, raw []byte) (T, error) {
	var in T
	if len(strings.TrimSpace(string(raw))) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("%w: %s: %v", ErrInvalidIntent, kind, err)
	}
	return in, nil
}
