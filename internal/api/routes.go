// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-map/internal/layers"
	"github.com/joeblew999/plat-map/internal/mapdata"
	"github.com/joeblew999/plat-map/internal/mapstate"
	"github.com/joeblew999/plat-map/internal/mapview"
	"github.com/joeblew999/plat-map/internal/templates"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Registry *layers.Registry
	Views    *mapview.Manager
	Prefs    mapview.Prefs
	Renderer *templates.Renderer
	// ViewDefaults supplies Debounce and ExportURL of new views.
	ViewDefaults mapview.Config
	// Data serves the /api/web fixture endpoints when set.
	Data   *mapdata.Store
	Info   InfoConfig
	Logger *slog.Logger
}

// RegisterRoutes registers every handler group on api.
func RegisterRoutes(api huma.API, svc *Services) {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	if svc.Renderer == nil {
		svc.Renderer = templates.Default()
	}

	huma.AutoRegister(api, NewAPIHandler(svc))
	huma.AutoRegister(api, NewInfoHandler(svc))
	if svc.Views != nil {
		huma.AutoRegister(api, NewViewHandler(svc))
	}
	if svc.Data != nil {
		huma.AutoRegister(api, NewMapDataHandler(svc.Data))
	}
}

// Types

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type LayersOutput struct {
	Body []layers.LayerConfig
}

// StateBody is a map state with its URL forms.
type StateBody struct {
	State     mapstate.State `json:"state" doc:"Normalized map state"`
	Hash      string         `json:"hash" doc:"URL fragment" example:"#map=15/51.505/-0.09"`
	ShortLink string         `json:"shortLink" doc:"Short link path" example:"/go/euu4qpaz--"`
}

type DecodeInput struct {
	Hash string `query:"hash" required:"true" doc:"URL or fragment holding #map=zoom/lat/lon" example:"#map=15/51.505/-0.09&layers=N"`
}

type EncodeInput struct {
	Body struct {
		Lon    float64    `json:"lon" doc:"Center longitude, wrapped into [-180, 180)" example:"-0.09"`
		Lat    float64    `json:"lat" doc:"Center latitude" example:"51.505"`
		Zoom   float64    `json:"zoom" doc:"Zoom level" example:"15"`
		Layers string     `json:"layers,omitempty" doc:"Layers code" example:"N"`
		Marker *orb.Point `json:"marker,omitempty" doc:"Marker as [lon, lat]"`
	}
}

type InitialInput struct {
	Hash     string `query:"hash" doc:"URL fragment"`
	BBox     string `query:"bbox" doc:"minlon,minlat,maxlon,maxlat"`
	MinLon   string `query:"minlon"`
	MinLat   string `query:"minlat"`
	MaxLon   string `query:"maxlon"`
	MaxLat   string `query:"maxlat"`
	MLon     string `query:"mlon" doc:"Marker longitude"`
	MLat     string `query:"mlat" doc:"Marker latitude"`
	Lon      string `query:"lon"`
	Lat      string `query:"lat"`
	Zoom     string `query:"zoom"`
	Layers   string `query:"layers" doc:"Layers code"`
	Profile  string `query:"profile" doc:"Profile whose stored state is used"`
	Timezone string `query:"timezone" doc:"IANA timezone of the device" example:"Europe/Berlin"`
	Width    int    `query:"width" minimum:"0" doc:"Viewport width in pixels"`
	Height   int    `query:"height" minimum:"0" doc:"Viewport height in pixels"`
}

// Values returns the non-empty location parameters as a query.
func (in *InitialInput) Values() url.Values {
	q := url.Values{}
	for k, v := range map[string]string{
		"bbox": in.BBox, "minlon": in.MinLon, "minlat": in.MinLat, "maxlon": in.MaxLon, "maxlat": in.MaxLat,
		"mlon": in.MLon, "mlat": in.MLat, "lon": in.Lon, "lat": in.Lat, "zoom": in.Zoom, "layers": in.Layers,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

type InitialBody struct {
	StateBody
	Source mapstate.Source `json:"source" doc:"Input the state was derived from" example:"hash"`
	Marker *orb.Point      `json:"marker,omitempty" doc:"Marker as [lon, lat]"`
}

type ShortLinkInput struct {
	Code   string `path:"code" doc:"Short link code" example:"euu4qpaz--"`
	Layers string `query:"layers" doc:"Layers code"`
	MLon   string `query:"mlon" doc:"Marker longitude"`
	MLat   string `query:"mlat" doc:"Marker latitude"`
}

type RedirectOutput struct {
	Status   int
	Location string `header:"Location"`
}

// APIHandler holds the stateless REST handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers the layer registry listing.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
}

// RegisterState registers the view-state codec routes.
func (h *APIHandler) RegisterState(api huma.API) {
	huma.Get(api, "/api/v1/state/decode", h.DecodeState, huma.OperationTags("state"))
	huma.Post(api, "/api/v1/state/encode", h.EncodeState, huma.OperationTags("state"))
	huma.Get(api, "/api/v1/state/initial", h.InitialState, huma.OperationTags("state"))
}

// RegisterShortLinks registers the /go/ redirect.
func (h *APIHandler) RegisterShortLinks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "resolve-short-link",
		Method:        http.MethodGet,
		Path:          "/go/{code}",
		Summary:       "Resolve a short link",
		Tags:          []string{"state"},
		DefaultStatus: http.StatusFound,
	}, h.ResolveShortLink)
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	if h.svc.Registry == nil {
		return &LayersOutput{Body: []layers.LayerConfig{}}, nil
	}
	return &LayersOutput{Body: h.svc.Registry.List()}, nil
}

func (h *APIHandler) DecodeState(ctx context.Context, input *DecodeInput) (*struct{ Body StateBody }, error) {
	s, ok := mapstate.Decode(input.Hash)
	if !ok {
		return nil, huma.Error400BadRequest("hash does not hold a valid #map= state")
	}
	return &struct{ Body StateBody }{Body: stateBody(s, nil)}, nil
}

func (h *APIHandler) EncodeState(ctx context.Context, input *EncodeInput) (*struct{ Body StateBody }, error) {
	b := input.Body
	s := mapstate.State{Lon: b.Lon, Lat: b.Lat, Zoom: b.Zoom, Layers: b.Layers}.Normalized()
	if !s.Valid() {
		return nil, huma.Error400BadRequest("map state out of range")
	}
	if b.Marker != nil && (!mapstate.ValidLon(b.Marker.Lon()) || !mapstate.ValidLat(b.Marker.Lat())) {
		return nil, huma.Error400BadRequest("marker out of range")
	}
	return &struct{ Body StateBody }{Body: stateBody(s, b.Marker)}, nil
}

func (h *APIHandler) InitialState(ctx context.Context, input *InitialInput) (*struct{ Body InitialBody }, error) {
	var stored *mapstate.State
	if h.svc.Prefs != nil && input.Profile != "" {
		s, err := h.svc.Prefs.LoadState(ctx, input.Profile)
		if err != nil {
			h.svc.Logger.Warn("failed to load stored map state", "profile", input.Profile, "error", err)
		}
		stored = s
	}

	var fitter mapstate.Fitter
	if input.Width > 0 && input.Height > 0 {
		fitter = viewportFitter{Width: input.Width, Height: input.Height}
	}
	r := mapstate.Resolve(mapstate.Inputs{
		Hash:     input.Hash,
		Query:    input.Values(),
		Stored:   stored,
		Timezone: input.Timezone,
		Fitter:   fitter,
	})
	return &struct{ Body InitialBody }{Body: InitialBody{
		StateBody: stateBody(r.State, r.Marker),
		Source:    r.Source,
		Marker:    r.Marker,
	}}, nil
}

func (h *APIHandler) ResolveShortLink(ctx context.Context, input *ShortLinkInput) (*RedirectOutput, error) {
	lon, lat, zoom, err := mapstate.DecodeShortLink(input.Code)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}

	s := mapstate.State{Lon: lon, Lat: lat, Zoom: float64(zoom)}
	q := url.Values{}
	if input.Layers != "" {
		q.Set("layers", input.Layers)
	}
	if input.MLon != "" && input.MLat != "" {
		q.Set("mlat", input.MLat)
		q.Set("mlon", input.MLon)
	}
	location := "/"
	if len(q) > 0 {
		location += "?" + q.Encode()
	}
	return &RedirectOutput{Status: http.StatusFound, Location: location + mapstate.Encode(s)}, nil
}

func stateBody(s mapstate.State, marker *orb.Point) StateBody {
	return StateBody{
		State:     s,
		Hash:      mapstate.Encode(s),
		ShortLink: mapstate.ShortLinkPath(s, marker),
	}
}

// viewportFitter fits bounds into a caller-supplied container size.
type viewportFitter mapstate.Viewport

func (f viewportFitter) FitBounds(b orb.Bound) mapstate.State {
	return mapstate.FitBound(b, mapstate.Viewport(f))
}
