package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/property-api/internal/catalog"
)

type FavoritesDeps struct {
	Catalog *catalog.Service
}

func RegisterFavorites(r chi.Router, d FavoritesDeps) {
	r.Route("/v1/users/{userID}/favorites", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			user := chi.URLParam(req, "userID")
			if req.URL.Query().Get("ids_only") == "true" {
				ids, err := d.Catalog.FavoriteIDs(req.Context(), user)
				if err != nil {
					writeCatalogError(w, req, err)
					return
				}
				render.JSON(w, req, map[string]any{"ok": true, "count": len(ids), "data": ids})
				return
			}
			recs, err := d.Catalog.Favorites(req.Context(), user)
			if err != nil {
				writeCatalogError(w, req, err)
				return
			}
			render.JSON(w, req, map[string]any{"ok": true, "count": len(recs), "data": recs})
		})
		r.Put("/{propertyID}", func(w http.ResponseWriter, req *http.Request) { setFavorite(w, req, d, true) })
		r.Delete("/{propertyID}", func(w http.ResponseWriter, req *http.Request) { setFavorite(w, req, d, false) })
	})
}

func setFavorite(w http.ResponseWriter, req *http.Request, d FavoritesDeps, on bool) {
	user, prop := chi.URLParam(req, "userID"), chi.URLParam(req, "propertyID")
	if err := d.Catalog.SetFavorite(req.Context(), user, prop, on); err != nil {
		writeCatalogError(w, req, err)
		return
	}
	render.JSON(w, req, map[string]any{"ok": true, "property_id": prop, "favorite": on})
}
