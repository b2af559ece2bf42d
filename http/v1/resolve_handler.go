package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/property-api/internal/geocode"
	"github.com/yourorg/property-api/maps"
)

type ResolveDeps struct {
	Resolver *geocode.Resolver
}

func RegisterResolve(r chi.Router, d ResolveDeps) {
	r.Route("/v1/geocode", func(r chi.Router) {
		r.Post("/resolve", func(w http.ResponseWriter, req *http.Request) {
			var body geocode.Query
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
				return
			}
			resolve(w, req, d, body)
		})
		r.Get("/resolve", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			resolve(w, req, d, geocode.Query{
				Address: q.Get("address"),
				City:    q.Get("city"),
				State:   q.Get("state"),
			})
		})
	})
}

func resolve(w http.ResponseWriter, req *http.Request, d ResolveDeps, body geocode.Query) {
	if d.Resolver == nil || d.Resolver.Geo == nil {
		writeError(w, req, http.StatusServiceUnavailable, "maps_unavailable", "geocoding is not configured")
		return
	}
	res, err := d.Resolver.Resolve(req.Context(), body)
	switch {
	case err == nil:
	case errors.Is(err, geocode.ErrAddressRequired):
		writeError(w, req, http.StatusBadRequest, "address_required", "address or city is required")
		return
	case errors.Is(err, geocode.ErrNotFound):
		render.Status(req, http.StatusNotFound)
		render.JSON(w, req, map[string]any{"error": "not_found", "key": res.Key})
		return
	case errors.Is(err, geocode.ErrInProgress):
		render.Status(req, http.StatusAccepted)
		render.JSON(w, req, map[string]any{"ok": false, "in_progress": true, "key": res.Key})
		return
	case errors.Is(err, maps.ErrQuotaExceeded):
		writeError(w, req, http.StatusTooManyRequests, "provider_quota", nil)
		return
	case errors.Is(err, maps.ErrDisabled):
		writeError(w, req, http.StatusServiceUnavailable, "maps_unavailable", "geocoding is not configured")
		return
	default:
		log.Warn().Err(err).Str("key", res.Key).Msg("geocode resolve failed")
		writeError(w, req, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	render.JSON(w, req, map[string]any{
		"ok":         true,
		"source":     res.Source,
		"stale":      res.Stale,
		"key":        res.Key,
		"normalized": res.Normalized,
		"data":       res.Result,
		"location":   res.Location(),
	})
}

func writeError(w http.ResponseWriter, req *http.Request, status int, code string, detail any) {
	body := map[string]any{"error": code}
	if detail != nil {
		body["detail"] = detail
	}
	render.Status(req, status)
	render.JSON(w, req, body)
}
