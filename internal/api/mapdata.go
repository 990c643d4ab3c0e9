package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-map/internal/feature"
	"github.com/joeblew999/plat-map/internal/mapdata"
	"github.com/joeblew999/plat-map/internal/webapi"
)

// MapDataHandler serves the binary /api/web data endpoints and vector tiles
// from a fixture store.
type MapDataHandler struct {
	store *mapdata.Store
}

func NewMapDataHandler(store *mapdata.Store) *MapDataHandler {
	return &MapDataHandler{store: store}
}

func (h *MapDataHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, webapi.MapPath, h.GetMap, huma.OperationTags("data"))
	huma.Get(api, webapi.NotePath, h.GetNotes, huma.OperationTags("data"))
	huma.Get(api, "/api/web/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("data"))
}

type MapInput struct {
	BBox  string `query:"bbox" required:"true" doc:"minLon,minLat,maxLon,maxLat" example:"-0.1,51.5,-0.08,51.51"`
	Limit int    `query:"limit" minimum:"1" maximum:"50000" default:"10000" doc:"Maximum number of elements"`
}

type NotesInput struct {
	BBox string `query:"bbox" required:"true" doc:"minLon,minLat,maxLon,maxLat" example:"-0.1,51.5,-0.08,51.51"`
}

type TileInput struct {
	Z int `path:"z" minimum:"0" maximum:"19" doc:"Zoom"`
	X int `path:"x" minimum:"0" doc:"Tile column"`
	Y int `path:"y" minimum:"0" doc:"Tile row"`
}

// TileOutput is a gzipped vector tile, or 204 for an empty one.
type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	Body            []byte
}

// PayloadOutput is a binary feature payload.
type PayloadOutput struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

func (h *MapDataHandler) GetMap(ctx context.Context, input *MapInput) (*PayloadOutput, error) {
	b, err := parseBBox(input.BBox)
	if err != nil {
		return nil, err
	}
	c, err := h.store.QueryMap(b, input.Limit)
	if err != nil {
		return nil, queryError(err)
	}
	return payload(feature.MarshalElements(c)), nil
}

func (h *MapDataHandler) GetNotes(ctx context.Context, input *NotesInput) (*PayloadOutput, error) {
	b, err := parseBBox(input.BBox)
	if err != nil {
		return nil, err
	}
	c, err := h.store.QueryNotes(b)
	if err != nil {
		return nil, queryError(err)
	}
	return payload(feature.MarshalNotes(c)), nil
}

func (h *MapDataHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	t := maptile.New(uint32(input.X), uint32(input.Y), maptile.Zoom(input.Z))
	data, err := h.store.Tile(t)
	if err != nil {
		return nil, queryError(err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     mapdata.TileContentType,
		ContentEncoding: "gzip",
		Body:            data,
	}, nil
}

func parseBBox(s string) (orb.Bound, error) {
	b, err := mapdata.ParseBBox(s)
	if err != nil {
		return orb.Bound{}, huma.Error400BadRequest(err.Error())
	}
	return b, nil
}

func queryError(err error) error {
	if errors.Is(err, mapdata.ErrAreaTooLarge) || errors.Is(err, mapdata.ErrInvalidBBox) {
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError("query failed", err)
}

func payload(b []byte) *PayloadOutput {
	return &PayloadOutput{ContentType: feature.ContentType, CacheControl: "no-store", Body: b}
}
