package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-map/internal/contextmenu"
	"github.com/joeblew999/plat-map/internal/humastar"
	"github.com/joeblew999/plat-map/internal/mapstate"
	"github.com/joeblew999/plat-map/internal/mapview"
	"github.com/joeblew999/plat-map/internal/overlay"
)

// ViewHandler serves the live map views and their event streams.
type ViewHandler struct {
	humastar.Handler
	svc *Services
}

func NewViewHandler(svc *Services) *ViewHandler {
	return &ViewHandler{
		Handler: humastar.Handler{Renderer: svc.Renderer, Logger: svc.Logger},
		svc:     svc,
	}
}

// viewActions are the follow-up operations advertised on every view.
var viewActions = []humastar.ActionDef{
	{Rel: "events", Pattern: "/api/v1/views/{id}/events", Method: http.MethodGet, Title: "Stream view events"},
	{Rel: "move", Pattern: "/api/v1/views/{id}/move", Method: http.MethodPost, Title: "Move the map"},
	{Rel: "layers", Pattern: "/api/v1/views/{id}/layers", Method: http.MethodPost, Title: "Change layers"},
	{Rel: "signals", Pattern: "/api/v1/views/{id}/signals", Method: http.MethodPost, Title: "Apply Datastar map signals"},
	{Rel: "contextmenu", Pattern: "/api/v1/views/{id}/contextmenu", Method: http.MethodGet, Title: "Open the context menu"},
	{Rel: "export", Pattern: "/api/v1/views/{id}/export", Method: http.MethodGet, Title: "Export an image"},
}

func (h *ViewHandler) RegisterViews(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-view",
		Method:        http.MethodPost,
		Path:          "/api/v1/views",
		Summary:       "Create a map view",
		Tags:          []string{"views"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateView)
	huma.Get(api, "/api/v1/views/{id}", h.GetView, huma.OperationTags("views"))
	huma.Delete(api, "/api/v1/views/{id}", h.DeleteView, huma.OperationTags("views"))
	huma.Post(api, "/api/v1/views/{id}/move", h.Move, huma.OperationTags("views"))
	huma.Post(api, "/api/v1/views/{id}/layers", h.Layers, huma.OperationTags("views"))
	huma.Post(api, "/api/v1/views/{id}/overlays/{overlay}/load", h.LoadAnyway, huma.OperationTags("views"))
	huma.Get(api, "/api/v1/views/{id}/contextmenu", h.ContextMenu, huma.OperationTags("views"))
	huma.Get(api, "/api/v1/views/{id}/export", h.Export, huma.OperationTags("views"))
	huma.Get(api, "/api/v1/views/{id}/export/{file}", h.ExportGeoJSON, huma.OperationTags("views"))
}

func (h *ViewHandler) RegisterEvents(api huma.API) {
	huma.Get(api, "/api/v1/views/{id}/events", h.Events, huma.OperationTags(humastar.StreamTag))
	huma.Post(api, "/api/v1/views/{id}/signals", h.ApplySignals, huma.OperationTags(humastar.StreamTag))
}

// Types

type ViewIDInput struct {
	ID string `path:"id" doc:"View ID" example:"3f0c8a52-4c1e-4f7a-9b42-1d1f3c2a9e10"`
}

type CreateViewInput struct {
	Body struct {
		Width    int        `json:"width,omitempty" minimum:"0" doc:"Viewport width in pixels" example:"1024"`
		Height   int        `json:"height,omitempty" minimum:"0" doc:"Viewport height in pixels" example:"768"`
		Hash     string     `json:"hash,omitempty" doc:"Page URL fragment" example:"#map=15/51.505/-0.09"`
		Query    string     `json:"query,omitempty" doc:"Page query string" example:"mlat=51.5&mlon=-0.09"`
		Profile  string     `json:"profile,omitempty" doc:"Profile whose preferences are used" example:"default"`
		Timezone string     `json:"timezone,omitempty" doc:"IANA timezone of the device" example:"Europe/London"`
		Home     *orb.Point `json:"home,omitempty" doc:"Home location as [lon, lat]"`
	}
}

// ViewBody is the observable state of a view.
type ViewBody struct {
	ID        string            `json:"id" doc:"View ID"`
	State     mapstate.State    `json:"state" doc:"Current map state"`
	Hash      string            `json:"hash" doc:"URL fragment of the current state"`
	ShortLink string            `json:"shortLink" doc:"Short link path of the current state"`
	Source    mapstate.Source   `json:"source" doc:"Input the initial state was derived from"`
	Marker    *orb.Point        `json:"marker,omitempty" doc:"Marker as [lon, lat]"`
	Viewport  mapstate.Viewport `json:"viewport" doc:"Container size"`
	Bounds    [4]float64        `json:"bounds" doc:"Visible box as minLon, minLat, maxLon, maxLat"`
	Active    []string          `json:"active" doc:"Active layer ids"`
	Overlays  []overlay.Info    `json:"overlays" doc:"Overlay statuses"`
}

// Actions implements humastar.Actor.
func (b ViewBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, viewActions)
}

type ViewOutput struct {
	Body ViewBody
}

type MoveInput struct {
	ViewIDInput
	Body struct {
		Lon    float64 `json:"lon" doc:"Center longitude" example:"-0.09"`
		Lat    float64 `json:"lat" doc:"Center latitude" example:"51.505"`
		Zoom   float64 `json:"zoom" doc:"Zoom level" example:"15"`
		Width  int     `json:"width,omitempty" minimum:"0" doc:"New viewport width in pixels"`
		Height int     `json:"height,omitempty" minimum:"0" doc:"New viewport height in pixels"`
	}
}

type LayersInput struct {
	ViewIDInput
	Body struct {
		Layers *string `json:"layers,omitempty" doc:"Layers code to apply" example:"N"`
		Toggle string  `json:"toggle,omitempty" doc:"Layer id to toggle" example:"data"`
	}
}

// ViewSignalsInput carries the page's Datastar signals. The map object holds
// lon, lat, zoom, width, height and layers, any of which may be absent.
type ViewSignalsInput struct {
	ViewIDInput
	humastar.SignalsInput
}

type OverlayInput struct {
	ViewIDInput
	Overlay string `path:"overlay" doc:"Overlay layer id" example:"data"`
}

type ContextMenuInput struct {
	ViewIDInput
	X           float64 `query:"x" doc:"Click x in container pixels"`
	Y           float64 `query:"y" doc:"Click y in container pixels"`
	PopupWidth  float64 `query:"popupWidth" minimum:"0" doc:"Rendered popup width"`
	PopupHeight float64 `query:"popupHeight" minimum:"0" doc:"Rendered popup height"`
}

type ContextMenuBody struct {
	Menu    contextmenu.Menu    `json:"menu"`
	Entries []contextmenu.Entry `json:"entries"`
}

type ExportInput struct {
	ViewIDInput
	Format string `query:"format" doc:"Image format; empty reuses the last one" example:"png"`
	Scale  int    `query:"scale" minimum:"0" doc:"Scale denominator; 0 derives it from the zoom"`
}

type ExportBody struct {
	URL    string `json:"url" doc:"Image export URL"`
	Format string `json:"format" doc:"Chosen image format"`
}

type GeoJSONInput struct {
	ViewIDInput
	File string `path:"file" pattern:"^[a-z]+\\.geojson$" doc:"Overlay id with .geojson suffix" example:"data.geojson"`
}

type GeoJSONOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// Handlers

func (h *ViewHandler) CreateView(ctx context.Context, input *CreateViewInput) (*ViewOutput, error) {
	b := input.Body
	query, err := url.ParseQuery(strings.TrimPrefix(b.Query, "?"))
	if err != nil {
		return nil, huma.Error400BadRequest("invalid query: " + err.Error())
	}
	v, err := h.svc.Views.Create(ctx, mapview.Config{
		Profile:   b.Profile,
		Viewport:  mapstate.Viewport{Width: b.Width, Height: b.Height},
		Hash:      b.Hash,
		Query:     query,
		Home:      b.Home,
		Timezone:  b.Timezone,
		Debounce:  h.svc.ViewDefaults.Debounce,
		ExportURL: h.svc.ViewDefaults.ExportURL,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to create view", err)
	}
	h.svc.Logger.Info("map view created", "view", v.ID(), "source", v.Source(), "hash", v.Hash())
	return &ViewOutput{Body: viewBody(v)}, nil
}

func (h *ViewHandler) GetView(ctx context.Context, input *ViewIDInput) (*ViewOutput, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	return &ViewOutput{Body: viewBody(v)}, nil
}

func (h *ViewHandler) DeleteView(ctx context.Context, input *ViewIDInput) (*struct{}, error) {
	if !h.svc.Views.Close(input.ID) {
		return nil, huma.Error404NotFound("view not found")
	}
	return nil, nil
}

func (h *ViewHandler) Move(ctx context.Context, input *MoveInput) (*ViewOutput, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	b := input.Body
	if b.Width > 0 && b.Height > 0 {
		if err := v.Resize(ctx, mapstate.Viewport{Width: b.Width, Height: b.Height}); err != nil {
			return nil, viewError(err)
		}
	}
	if err := v.Move(ctx, b.Lon, b.Lat, b.Zoom); err != nil {
		return nil, viewError(err)
	}
	return &ViewOutput{Body: viewBody(v)}, nil
}

func (h *ViewHandler) Layers(ctx context.Context, input *LayersInput) (*ViewOutput, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	b := input.Body
	if b.Layers == nil && b.Toggle == "" {
		return nil, huma.Error400BadRequest("one of layers or toggle is required")
	}
	if b.Layers != nil {
		if err := v.ApplyLayers(ctx, *b.Layers); err != nil {
			return nil, viewError(err)
		}
	}
	if b.Toggle != "" {
		if _, ok := v.Layers().Registry().Get(b.Toggle); !ok {
			return nil, huma.Error404NotFound("layer not found: " + b.Toggle)
		}
		if err := v.ToggleLayer(ctx, b.Toggle); err != nil {
			return nil, viewError(err)
		}
	}
	return &ViewOutput{Body: viewBody(v)}, nil
}

// ApplySignals moves, resizes or relayers a view from the page's map signals.
// Failures are reported in the error signal.
func (h *ViewHandler) ApplySignals(ctx context.Context, input *ViewSignalsInput) (*huma.StreamResponse, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.Parse()
	if err != nil {
		return nil, err
	}
	m := signals.Object("map")
	if len(m) == 0 {
		return nil, huma.Error400BadRequest("map signals are required")
	}

	return h.Stream(func(sse humastar.SSE) {
		if err := applyMapSignals(ctx, v, m); err != nil {
			h.svc.Logger.Debug("map signals rejected", "view", v.ID(), "error", err)
			sse.Error(err.Error())
			return
		}
		sse.Signals(map[string]any{"error": ""})
	}), nil
}

func applyMapSignals(ctx context.Context, v *mapview.View, m humastar.Signals) error {
	width, okWidth := m.Float("width")
	height, okHeight := m.Float("height")
	if okWidth && okHeight {
		if err := v.Resize(ctx, mapstate.Viewport{Width: int(width), Height: int(height)}); err != nil {
			return err
		}
	}
	lon, okLon := m.Float("lon")
	lat, okLat := m.Float("lat")
	zoom, okZoom := m.Float("zoom")
	if okLon && okLat && okZoom {
		if err := v.Move(ctx, lon, lat, zoom); err != nil {
			return err
		}
	}
	if m.Has("layers") {
		return v.ApplyLayers(ctx, m.String("layers"))
	}
	return nil
}

func (h *ViewHandler) LoadAnyway(ctx context.Context, input *OverlayInput) (*struct{}, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	if err := v.LoadAnyway(input.Overlay); err != nil {
		return nil, viewError(err)
	}
	return nil, nil
}

func (h *ViewHandler) ContextMenu(ctx context.Context, input *ContextMenuInput) (*struct{ Body ContextMenuBody }, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	m := v.ContextMenu(input.X, input.Y, contextmenu.Size{Width: input.PopupWidth, Height: input.PopupHeight})
	return &struct{ Body ContextMenuBody }{Body: ContextMenuBody{Menu: m, Entries: m.Entries()}}, nil
}

func (h *ViewHandler) Export(ctx context.Context, input *ExportInput) (*struct{ Body ExportBody }, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	u, err := v.ExportImageURL(ctx, input.Format, input.Scale)
	if err != nil {
		return nil, viewError(err)
	}
	return &struct{ Body ExportBody }{Body: ExportBody{URL: u, Format: v.ExportFormat(ctx)}}, nil
}

func (h *ViewHandler) ExportGeoJSON(ctx context.Context, input *GeoJSONInput) (*GeoJSONOutput, error) {
	v, err := h.view(input.ID)
	if err != nil {
		return nil, err
	}
	fc, err := v.ExportGeoJSON(strings.TrimSuffix(input.File, ".geojson"))
	if err != nil {
		return nil, viewError(err)
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode features", err)
	}
	return &GeoJSONOutput{
		ContentType:        "application/geo+json",
		ContentDisposition: `attachment; filename="` + input.File + `"`,
		Body:               body,
	}, nil
}

func (h *ViewHandler) view(id string) (*mapview.View, error) {
	v, ok := h.svc.Views.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("view not found")
	}
	return v, nil
}

func viewError(err error) error {
	if errors.Is(err, mapview.ErrClosed) || errors.Is(err, mapview.ErrUnknownOverlay) {
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error400BadRequest(err.Error())
}

func viewBody(v *mapview.View) ViewBody {
	b := v.Bounds()
	active := v.Layers().Active()
	if active == nil {
		active = []string{}
	}
	overlays := v.Overlays()
	if overlays == nil {
		overlays = []overlay.Info{}
	}
	return ViewBody{
		ID:        v.ID(),
		State:     v.State(),
		Hash:      v.Hash(),
		ShortLink: v.ShortLink(v.Marker()),
		Source:    v.Source(),
		Marker:    v.Marker(),
		Viewport:  v.Viewport(),
		Bounds:    [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
		Active:    active,
		Overlays:  overlays,
	}
}
