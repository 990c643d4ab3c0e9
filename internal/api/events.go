package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-map/internal/contextmenu"
	"github.com/joeblew999/plat-map/internal/feature"
	"github.com/joeblew999/plat-map/internal/humastar"
	"github.com/joeblew999/plat-map/internal/mapview"
	"github.com/joeblew999/plat-map/internal/overlay"
)

// menuLabels are the context menu entry captions.
var menuLabels = map[string]string{
	string(contextmenu.DirectionsFrom): "Show directions from here",
	string(contextmenu.DirectionsTo):   "Show directions to here",
	string(contextmenu.NewNote):        "Add a note here",
	string(contextmenu.SearchHere):     "Show address",
	string(contextmenu.QueryFeatures):  "Query features",
	string(contextmenu.Center):         "Centre map here",
	string(contextmenu.Measure):        "Measure distance",
}

type stateSignals struct {
	Lon       float64 `json:"lon"`
	Lat       float64 `json:"lat"`
	Zoom      float64 `json:"zoom"`
	Layers    string  `json:"layers"`
	Hash      string  `json:"hash"`
	ShortLink string  `json:"shortLink"`
}

type overlaySignals struct {
	Status   overlay.Status `json:"status"`
	Features int            `json:"features"`
	Error    string         `json:"error"`
}

// Events streams a view's changes as Datastar signal and element patches
// until the client goes away or the view is closed.
func (h *ViewHandler) Events(ctx context.Context, input *ViewIDInput) (*huma.StreamResponse, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		ch := v.Bus().Subscribe()
		defer v.Bus().Unsubscribe(ch)

		if err := h.snapshot(sse, v); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok || ev.Kind == mapview.EventClosed {
					return
				}
				if err := h.deliver(sse, v, ev); err != nil {
					h.svc.Logger.Debug("event stream ended", "view", v.ID(), "error", err)
					return
				}
			}
		}
	}), nil
}

// snapshot sends the current state so a fresh or lagging stream is complete.
func (h *ViewHandler) snapshot(sse humastar.SSE, v *mapview.View) error {
	s := v.State()
	if err := h.send(sse, v.ID(), mapview.Event{
		Kind:      mapview.EventState,
		State:     s,
		Hash:      v.Hash(),
		ShortLink: v.ShortLink(nil),
	}); err != nil {
		return err
	}
	for _, info := range v.Overlays() {
		if err := h.send(sse, v.ID(), mapview.Event{Kind: mapview.EventOverlay, Overlay: info}); err != nil {
			return err
		}
		features, err := v.Features(info.Overlay)
		if err != nil {
			return err
		}
		if err := h.send(sse, v.ID(), mapview.Event{Kind: mapview.EventRender, Overlay: info, Features: features}); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends one bus event, replaying the whole view after a resync.
func (h *ViewHandler) deliver(sse humastar.SSE, v *mapview.View, ev mapview.Event) error {
	if ev.Kind == mapview.EventResync {
		return h.snapshot(sse, v)
	}
	return h.send(sse, v.ID(), ev)
}

func (h *ViewHandler) send(sse humastar.SSE, viewID string, ev mapview.Event) error {
	switch ev.Kind {
	case mapview.EventState:
		return sse.Signals(map[string]any{"map": stateSignals{
			Lon:       ev.State.Lon,
			Lat:       ev.State.Lat,
			Zoom:      ev.State.Zoom,
			Layers:    ev.State.Layers,
			Hash:      ev.Hash,
			ShortLink: ev.ShortLink,
		}})

	case mapview.EventOverlay:
		info := ev.Overlay
		err := sse.Signals(map[string]any{"overlays": map[string]overlaySignals{
			info.Overlay: {Status: info.Status, Features: info.Features, Error: info.Error},
		}})
		if err != nil {
			return err
		}
		banner := h.Fragment("overlay-banner", map[string]any{
			"Status": string(info.Status), "Overlay": info.Overlay, "View": viewID,
		})
		return sse.Replace(banner, "#overlay-"+info.Overlay+"-banner")

	case mapview.EventRender:
		return h.patchFeatures(sse, ev.Overlay.Overlay, ev.Features)

	case mapview.EventClear:
		return h.patchFeatures(sse, ev.Overlay.Overlay, nil)

	case mapview.EventMenu:
		if ev.Menu == nil {
			return nil
		}
		html := h.Fragment("context-menu", map[string]any{
			"Menu": ev.Menu, "Entries": ev.Menu.Entries(), "Labels": menuLabels,
		})
		if err := sse.Patch(html, "#context-menu"); err != nil {
			return err
		}
		return sse.Signals(map[string]any{"contextmenu": true})
	}
	return nil
}

func (h *ViewHandler) patchFeatures(sse humastar.SSE, name string, features []feature.Feature) error {
	html := h.Fragment("feature-list", map[string]any{"Features": features})
	return sse.Patch(html, "#overlay-"+name+"-features")
}
