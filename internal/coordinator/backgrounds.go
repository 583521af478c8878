package coordinator

import (
	"context"

	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/lifecycle"
	"github.com/danmuck/geoctl/internal/resource"
)

// BackgroundThumbnail is the thumbnail state of one background layer.
type BackgroundThumbnail struct {
	BackgroundID    string `json:"id"`
	NewName         string `json:"newName,omitempty"`
	NewData         string `json:"newData,omitempty"`
	ExistingThumbID string `json:"thumbId,omitempty"`
	Source          string `json:"source,omitempty"`
}

// BackgroundResult holds one outcome per background plus the thumb ids of
// backgrounds whose thumbnail was removed.
type BackgroundResult struct {
	Outcomes []Outcome
	Removed  []string
}

// RemovedThumbnails lists the existing thumb ids of backgrounds that carry
// neither a new name nor new data.
func RemovedThumbnails(entries []BackgroundThumbnail) []string {
	out := make([]string, 0)
	for _, e := range entries {
		if e.NewName == "" && e.NewData == "" && e.ExistingThumbID != "" {
			out = append(out, e.ExistingThumbID)
		}
	}
	return out
}

// SaveBackgroundThumbnails processes each background independently: a new
// name and data creates a thumbnail resource; otherwise an existing thumb is
// cleared locally (Action Delete, no remote call) and the rest are NoOps.
// Removed is informational; the resources are deleted by DeleteOrphans.
func (c *Coordinator) SaveBackgroundThumbnails(ctx context.Context, entries []BackgroundThumbnail) BackgroundResult {
	calls := make([]Call, 0, len(entries))
	for _, e := range entries {
		calls = append(calls, c.backgroundCall(e))
	}
	return BackgroundResult{
		Outcomes: JoinAll(ctx, c.limit, calls...),
		Removed:  RemovedThumbnails(entries),
	}
}

func (c *Coordinator) backgroundCall(e BackgroundThumbnail) Call {
	return func(ctx context.Context) Outcome {
		out := Outcome{Kind: KindBackground, Key: e.BackgroundID}
		switch {
		case e.NewName != "" && e.NewData != "":
			out.Action = lifecycle.Create
			id, err := c.gw.CreateResource(ctx, gateway.CreateRequest{
				Metadata: gateway.Metadata{Name: e.NewName},
				Category: gateway.CategoryBackgroundThumbnail,
				Data:     e.NewData,
			})
			if err != nil {
				out.Err = err
				return out
			}
			out.ResourceID = id
			out.Payload = resource.ThumbnailURL(c.baseURL, id, "")
		case e.ExistingThumbID != "":
			out.Action = lifecycle.Delete
			out.ResourceID = e.ExistingThumbID
		default:
			out.Action = lifecycle.NoOp
		}
		return out
	}
}
