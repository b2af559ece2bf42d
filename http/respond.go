package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/property-api/internal/catalog"
)

// writeError sends {"error": code, "detail": detail} with the given status.
func writeError(w http.ResponseWriter, req *http.Request, status int, code string, detail any) {
	body := map[string]any{"error": code}
	if detail != nil {
		body["detail"] = detail
	}
	render.Status(req, status)
	render.JSON(w, req, body)
}

// writeCatalogError maps service errors onto HTTP codes.
func writeCatalogError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, req, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, catalog.ErrImageNotFound):
		writeError(w, req, http.StatusNotFound, "image_not_found", nil)
	case errors.Is(err, catalog.ErrInvalid):
		writeError(w, req, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, catalog.ErrNoImageStore):
		writeError(w, req, http.StatusServiceUnavailable, "storage_unavailable", nil)
	case errors.Is(err, req.Context().Err()):
		writeError(w, req, http.StatusRequestTimeout, "request_cancelled", nil)
	default:
		log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
		writeError(w, req, http.StatusInternalServerError, "internal_error", nil)
	}
}

func defInt(v *int, d int) int {
	if v == nil {
		return d
	}
	return *v
}

func queryInt(q url.Values, key string) *int {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &i
}

// queryFloat reports ok=false when the parameter is absent and an error
// when it is present but not a number.
func queryFloat(q url.Values, key string) (float64, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, true, err
	}
	return f, true, nil
}

// Paging is the page/limit pair shared by list endpoints.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

func (p Paging) parse(q url.Values) (page, limit int) {
	page = defInt(queryInt(q, "page"), 1)
	if page < 1 {
		page = 1
	}
	def := p.DefaultLimit
	if def <= 0 {
		def = 20
	}
	return page, clampLimit(queryInt(q, "limit"), def, p.MaxLimit)
}

// clampLimit falls back to def for missing or non-positive values and caps
// at max when max is set.
func clampLimit(v *int, def, max int) int {
	limit := defInt(v, def)
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
