package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/catalog"
	"github.com/yourorg/property-api/internal/events"
	"github.com/yourorg/property-api/internal/mapview"
	"github.com/yourorg/property-api/internal/store"
)

type stubMaps struct{ enabled bool }

func (s stubMaps) Enabled() bool     { return s.enabled }
func (s stubMaps) ScriptURL() string { return "https://maps.example/js?key=k" }

type memImages struct{ keys []string }

func (m *memImages) Enabled() bool { return true }
func (m *memImages) Upload(_ context.Context, propertyID, filename, _ string, body io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, body)
	key := propertyID + "/" + filename
	m.keys = append(m.keys, key)
	return key, nil
}
func (m *memImages) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}
func (m *memImages) PublicURL(propertyID, filename string) string {
	return "https://public.example/" + propertyID + "/" + filename
}
func (m *memImages) KeyFor(url string) (string, bool) {
	if !strings.HasPrefix(url, "https://public.example/") {
		return "", false
	}
	return strings.TrimPrefix(url, "https://public.example/"), true
}

type env struct {
	srv    *httptest.Server
	mem    *store.Memory
	images *memImages
}

func newEnv(t *testing.T, mapsOn bool) *env {
	t.Helper()
	mem := store.NewMemory()
	svc := &catalog.Service{Store: mem, Pub: events.NewInMemory(64), Center: canon.DefaultCenter}
	imgs := &memImages{}
	paging := Paging{DefaultLimit: 2, MaxLimit: 5}

	r := chi.NewRouter()
	RegisterProperties(r, PropertiesDeps{Catalog: svc, Paging: paging})
	RegisterImages(r, ImagesDeps{Catalog: svc, Images: imgs, SignedTTL: time.Minute})
	RegisterFavorites(r, FavoritesDeps{Catalog: svc})
	RegisterInquiries(r, InquiriesDeps{Catalog: svc})
	RegisterMap(r, MapDeps{Catalog: svc, Maps: stubMaps{enabled: mapsOn}, Icons: mapview.NewIconCache("/icons"), Paging: paging, Center: canon.DefaultCenter})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &env{srv: srv, mem: mem, images: imgs}
}

func (e *env) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (e *env) create(t *testing.T, in map[string]any) string {
	t.Helper()
	code, body := e.do(t, http.MethodPost, "/v1/properties", in)
	require.Equal(t, http.StatusCreated, code, body)
	return body["data"].(map[string]any)["id"].(string)
}

func TestPropertyCRUD(t *testing.T) {
	e := newEnv(t, true)
	id := e.create(t, map[string]any{
		"owner_id":         "owner-1",
		"city":             "Pune",
		"flow_type":        "residential_sale",
		"property_details": map[string]any{"meta": map[string]any{"title": "2 BHK near Baner"}, "price": "₹85 L"},
	})

	code, body := e.do(t, http.MethodGet, "/v1/properties/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "2 BHK near Baner", data["title"])
	assert.Equal(t, "residential_sale", data["flow"])
	assert.InDelta(t, 8_500_000, data["price"], 1e-6)

	code, body = e.do(t, http.MethodPut, "/v1/properties/"+id, map[string]any{"owner_id": "owner-1", "city": "Pune", "flow_type": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["error"])

	code, _ = e.do(t, http.MethodDelete, "/v1/properties/"+id, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, body = e.do(t, http.MethodGet, "/v1/properties/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}

func TestCreateRejectsBadJSON(t *testing.T) {
	e := newEnv(t, true)
	resp, err := http.Post(e.srv.URL+"/v1/properties", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListPagingAndFlowFilter(t *testing.T) {
	e := newEnv(t, true)
	for i := 0; i < 3; i++ {
		e.create(t, map[string]any{"owner_id": "o", "city": "Pune", "flow_type": "residential_rent"})
	}
	e.create(t, map[string]any{"owner_id": "o", "city": "Pune", "flow_type": "land_sale"})

	code, body := e.do(t, http.MethodGet, "/v1/properties?city=pune", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["limit"])
	assert.EqualValues(t, 2, body["count"])

	_, body = e.do(t, http.MethodGet, "/v1/properties?city=pune&page=2&limit=99", nil)
	assert.EqualValues(t, 5, body["limit"])
	assert.EqualValues(t, 0, body["count"])

	_, body = e.do(t, http.MethodGet, "/v1/properties?limit=5&flow=land_sale", nil)
	require.EqualValues(t, 1, body["count"])

	code, body = e.do(t, http.MethodGet, "/v1/properties?flow=houseboat", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_flow", body["error"])
}

func TestNearbyValidatesAndSkipsFallback(t *testing.T) {
	e := newEnv(t, true)
	withCoords := e.create(t, map[string]any{"owner_id": "o", "property_details": map[string]any{
		"location": map[string]any{"coordinates": map[string]any{"lat": 12.972, "lng": 77.595}},
	}})
	e.create(t, map[string]any{"owner_id": "o"})
	require.NoError(t, e.mem.UpsertCoordinates(context.Background(), withCoords,
		canon.Location{Latitude: 12.972, Longitude: 77.595, Source: canon.CoordsFromLocation}))

	code, body := e.do(t, http.MethodGet, "/v1/properties/nearby?lat=12.9716&lng=77.5946&radius_km=2", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body["count"])
	assert.Equal(t, withCoords, body["data"].([]any)[0].(map[string]any)["id"])

	code, body = e.do(t, http.MethodGet, "/v1/properties/nearby?lat=abc&lng=1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_coordinates", body["error"])

	code, _ = e.do(t, http.MethodGet, "/v1/properties/nearby?lat=1&lng=1&radius_km=-3", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSimilarNotFound(t *testing.T) {
	e := newEnv(t, true)
	code, body := e.do(t, http.MethodGet, "/v1/properties/missing/similar", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}

func TestImagesUploadPrimaryAndSigned(t *testing.T) {
	e := newEnv(t, true)
	id := e.create(t, map[string]any{"owner_id": "o"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "front.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("png"))
	require.NoError(t, mw.Close())
	resp, err := http.Post(e.srv.URL+"/v1/properties/"+id+"/images", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, created)
	imgID := created["data"].(map[string]any)["id"].(string)
	require.Len(t, e.images.keys, 1)

	code, body := e.do(t, http.MethodPut, "/v1/properties/"+id+"/images/"+imgID+"/primary", nil)
	require.Equal(t, http.StatusOK, code)
	list := body["data"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0].(map[string]any)["is_primary"])

	code, body = e.do(t, http.MethodGet, "/v1/properties/"+id+"/images?signed=true", nil)
	require.Equal(t, http.StatusOK, code)
	url := body["data"].([]any)[0].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "https://signed.example/"+id+"/"), url)

	code, body = e.do(t, http.MethodPut, "/v1/properties/"+id+"/images/nope/primary", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "image_not_found", body["error"])

	resp, err = http.Post(e.srv.URL+"/v1/properties/"+id+"/images", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFavoritesRoundTrip(t *testing.T) {
	e := newEnv(t, true)
	id := e.create(t, map[string]any{"owner_id": "o", "city": "Mysuru"})

	code, body := e.do(t, http.MethodPut, "/v1/users/u1/favorites/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["favorite"])

	_, body = e.do(t, http.MethodGet, "/v1/users/u1/favorites", nil)
	require.EqualValues(t, 1, body["count"])

	_, body = e.do(t, http.MethodGet, "/v1/users/u1/favorites?ids_only=true", nil)
	assert.Equal(t, []any{id}, body["data"])

	code, _ = e.do(t, http.MethodDelete, "/v1/users/u1/favorites/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	_, body = e.do(t, http.MethodGet, "/v1/users/u1/favorites", nil)
	assert.EqualValues(t, 0, body["count"])

	code, _ = e.do(t, http.MethodPut, "/v1/users/u1/favorites/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestVisitRequestsAndReports(t *testing.T) {
	e := newEnv(t, true)
	id := e.create(t, map[string]any{"owner_id": "o"})

	code, body := e.do(t, http.MethodPost, "/v1/properties/"+id+"/visit-requests", map[string]any{"user_id": "u1", "name": "Asha", "phone": "98450"})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, id, body["data"].(map[string]any)["property_id"])

	code, body = e.do(t, http.MethodPost, "/v1/properties/"+id+"/reports", map[string]any{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["error"])

	code, _ = e.do(t, http.MethodPost, "/v1/properties/missing/reports", map[string]any{"user_id": "u1", "reason": "fake"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMarkersAndConfig(t *testing.T) {
	e := newEnv(t, true)
	e.create(t, map[string]any{"owner_id": "o", "property_details": map[string]any{
		"mapCoordinates": map[string]any{"lat": 12.95, "lng": 77.60},
	}})
	e.create(t, map[string]any{"owner_id": "o"})

	code, body := e.do(t, http.MethodGet, "/v1/map/markers", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 2, body["scanned"])

	_, body = e.do(t, http.MethodGet, "/v1/map/markers?include_fallback=true", nil)
	assert.EqualValues(t, 2, body["count"])

	_, body = e.do(t, http.MethodGet, "/v1/map/markers?bounds=13,77,14,78", nil)
	assert.EqualValues(t, 0, body["count"])

	code, body = e.do(t, http.MethodGet, "/v1/map/markers?bounds=1,2,3", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_bounds", body["error"])

	_, body = e.do(t, http.MethodGet, "/v1/config", nil)
	assert.Equal(t, true, body["maps_enabled"])
	assert.Equal(t, "https://maps.example/js?key=k", body["maps_script_url"])
	assert.EqualValues(t, 2, body["default_page_size"])
}

func TestMarkersWithoutMapsKey(t *testing.T) {
	e := newEnv(t, false)
	code, body := e.do(t, http.MethodGet, "/v1/map/markers", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "maps_unavailable", body["error"])

	_, body = e.do(t, http.MethodGet, "/v1/config", nil)
	assert.Equal(t, false, body["maps_enabled"])
	assert.NotContains(t, body, "maps_script_url")
}
