package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/property-api/internal/catalog"
	"github.com/yourorg/property-api/internal/store"
)

type InquiriesDeps struct {
	Catalog *catalog.Service
}

// RegisterInquiries mounts the seeker-to-owner contact endpoints.
func RegisterInquiries(r chi.Router, d InquiriesDeps) {
	r.Post("/v1/properties/{id}/visit-requests", func(w http.ResponseWriter, req *http.Request) {
		var body store.VisitRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		body.PropertyID = chi.URLParam(req, "id")
		v, err := d.Catalog.RequestVisit(req.Context(), body)
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.Status(req, http.StatusCreated)
		render.JSON(w, req, map[string]any{"ok": true, "data": v})
	})

	r.Post("/v1/properties/{id}/reports", func(w http.ResponseWriter, req *http.Request) {
		var body store.Report
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		body.PropertyID = chi.URLParam(req, "id")
		rep, err := d.Catalog.Report(req.Context(), body)
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.Status(req, http.StatusCreated)
		render.JSON(w, req, map[string]any{"ok": true, "data": rep})
	})
}
