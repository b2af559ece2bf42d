package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/catalog"
	"github.com/yourorg/property-api/internal/store"
)

type PropertiesDeps struct {
	Catalog *catalog.Service
	Paging  Paging
}

const (
	defaultRadiusKm = 5.0
	maxRadiusKm     = 100.0
	defaultNearby   = 20
)

func RegisterProperties(r chi.Router, d PropertiesDeps) {
	r.Get("/v1/properties", func(w http.ResponseWriter, req *http.Request) { listProperties(w, req, d) })
	r.Post("/v1/properties", func(w http.ResponseWriter, req *http.Request) {
		var in catalog.Input
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		rec, err := d.Catalog.Create(req.Context(), in)
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.Status(req, http.StatusCreated)
		render.JSON(w, req, map[string]any{"ok": true, "data": rec})
	})
	r.Get("/v1/properties/nearby", func(w http.ResponseWriter, req *http.Request) { nearby(w, req, d) })

	r.Get("/v1/properties/{id}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := d.Catalog.Get(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "data": rec})
	})
	r.Put("/v1/properties/{id}", func(w http.ResponseWriter, req *http.Request) {
		var in catalog.Input
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		rec, err := d.Catalog.Update(req.Context(), chi.URLParam(req, "id"), in)
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "data": rec})
	})
	r.Delete("/v1/properties/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := d.Catalog.Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
			writeCatalogError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/v1/properties/{id}/similar", func(w http.ResponseWriter, req *http.Request) {
		limit := clampLimit(queryInt(req.URL.Query(), "limit"), 6, d.Paging.MaxLimit)
		recs, err := d.Catalog.Similar(req.Context(), chi.URLParam(req, "id"), limit)
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "count": len(recs), "data": recs})
	})
}

func listProperties(w http.ResponseWriter, req *http.Request, d PropertiesDeps) {
	q := req.URL.Query()
	page, limit := d.Paging.parse(q)
	lq := catalog.ListQuery{Filter: store.Filter{
		City:    strings.TrimSpace(q.Get("city")),
		State:   strings.TrimSpace(q.Get("state")),
		OwnerID: q.Get("owner_id"),
		Q:       strings.TrimSpace(q.Get("q")),
		Offset:  (page - 1) * limit,
		Limit:   limit,
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
	render.JSON(w, req, map[string]any{
		"ok":    true,
		"page":  page,
		"limit": limit,
		"count": len(recs),
		"data":  recs,
	})
}

func nearby(w http.ResponseWriter, req *http.Request, d PropertiesDeps) {
	q := req.URL.Query()
	lat, okLat, errLat := queryFloat(q, "lat")
	lng, okLng, errLng := queryFloat(q, "lng")
	if !okLat || !okLng || errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(w, req, http.StatusBadRequest, "invalid_coordinates", "lat and lng are required")
		return
	}
	radius, ok, err := queryFloat(q, "radius_km")
	if err != nil || (ok && radius <= 0) {
		writeError(w, req, http.StatusBadRequest, "invalid_radius", q.Get("radius_km"))
		return
	}
	if !ok {
		radius = defaultRadiusKm
	}
	if radius > maxRadiusKm {
		radius = maxRadiusKm
	}
	limit := clampLimit(queryInt(q, "limit"), defaultNearby, d.Paging.MaxLimit)
	recs, err := d.Catalog.Nearby(req.Context(), lat, lng, radius, limit)
	if err != nil {
		writeCatalogError(w, req, err)
		return
	}
	render.JSON(w, req, map[string]any{
		"ok":        true,
		"radius_km": radius,
		"count":     len(recs),
		"data":      recs,
	})
}
