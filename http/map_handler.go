package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/catalog"
	"github.com/yourorg/property-api/internal/mapview"
	"github.com/yourorg/property-api/internal/store"
)

// MapsProvider is the browser-facing side of the maps client.
type MapsProvider interface {
	Enabled() bool
	ScriptURL() string
}

type MapDeps struct {
	Catalog *catalog.Service
	Maps    MapsProvider
	Icons   *mapview.IconCache
	Paging  Paging
	Center  canon.Center
}

func RegisterMap(r chi.Router, d MapDeps) {
	r.Get("/v1/config", func(w http.ResponseWriter, req *http.Request) {
		body := map[string]any{
			"maps_enabled":      d.Maps != nil && d.Maps.Enabled(),
			"default_page_size": d.Paging.DefaultLimit,
			"max_page_size":     d.Paging.MaxLimit,
			"center":            map[string]float64{"latitude": d.Center.Latitude, "longitude": d.Center.Longitude},
		}
		if d.Maps != nil && d.Maps.Enabled() {
			body["maps_script_url"] = d.Maps.ScriptURL()
		}
		render.JSON(w, req, body)
	})

	r.Get("/v1/map/markers", func(w http.ResponseWriter, req *http.Request) {
		if d.Maps == nil || !d.Maps.Enabled() {
			writeError(w, req, http.StatusServiceUnavailable, "maps_unavailable", "map view is not configured")
			return
		}
		q := req.URL.Query()
		var opts mapview.Options
		if v := q.Get("bounds"); v != "" {
			b, err := mapview.ParseBounds(v)
			if err != nil {
				writeError(w, req, http.StatusBadRequest, "invalid_bounds", err.Error())
				return
			}
			opts.Bounds = &b
		}
		opts.IncludeFallback, _ = strconv.ParseBool(q.Get("include_fallback"))

		lq := catalog.ListQuery{Filter: store.Filter{
			City:  strings.TrimSpace(q.Get("city")),
			State: strings.TrimSpace(q.Get("state")),
			Q:     strings.TrimSpace(q.Get("q")),
			Limit: clampLimit(queryInt(q, "limit"), d.Paging.MaxLimit, d.Paging.MaxLimit),
		}}
		if v := q.Get("flow"); v != "" {
			f, ok := canon.ParseFlow(v)
			if !ok {
				writeError(w, req, http.StatusBadRequest, "invalid_flow", v)
				return
			}
			lq.Flow = f
		}
		recs, err := d.Catalog.List(req.Context(), lq)
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		markers := mapview.Markers(recs, opts, d.Icons)
		render.JSON(w, req, map[string]any{
			"ok":      true,
			"count":   len(markers),
			"scanned": len(recs),
			"data":    markers,
		})
	})
}
