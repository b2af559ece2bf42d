package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/property-api/internal/catalog"
)

type ImagesDeps struct {
	Catalog   *catalog.Service
	Images    catalog.ImageStore
	SignedTTL time.Duration
	MaxUpload int64
}

func RegisterImages(r chi.Router, d ImagesDeps) {
	if d.MaxUpload <= 0 {
		d.MaxUpload = 10 << 20
	}
	r.Get("/v1/properties/{id}/images", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		signed, _ := strconv.ParseBool(req.URL.Query().Get("signed"))
		var (
			images any
			err    error
		)
		if signed {
			images, err = d.Catalog.SignedImages(req.Context(), d.Images, id, d.SignedTTL)
		} else {
			images, err = d.Catalog.Images(req.Context(), id)
		}
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "signed": signed, "data": images})
	})

	r.Post("/v1/properties/{id}/images", func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, d.MaxUpload)
		if err := req.ParseMultipartForm(d.MaxUpload); err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_upload", err.Error())
			return
		}
		file, hdr, err := req.FormFile("file")
		if err != nil {
			writeError(w, req, http.StatusBadRequest, "file_required", err.Error())
			return
		}
		defer file.Close()
		img, err := d.Catalog.AddImage(req.Context(), d.Images, chi.URLParam(req, "id"), hdr.Filename, hdr.Header.Get("Content-Type"), file)
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.Status(req, http.StatusCreated)
		render.JSON(w, req, map[string]any{"ok": true, "data": img})
	})

	r.Put("/v1/properties/{id}/images/{imageID}/primary", func(w http.ResponseWriter, req *http.Request) {
		images, err := d.Catalog.SetPrimaryImage(req.Context(), chi.URLParam(req, "id"), chi.URLParam(req, "imageID"))
		if err != nil {
			writeCatalogError(w, req, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "data": images})
	})
}
