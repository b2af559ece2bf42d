package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/property-api/internal/geocode"
	"github.com/yourorg/property-api/internal/redisx"
	"github.com/yourorg/property-api/maps"
)

type scriptedGeocoder struct{}

func (scriptedGeocoder) Geocode(_ context.Context, address string) (maps.Result, error) {
	switch {
	case strings.Contains(address, "Quota"):
		return maps.Result{}, maps.ErrQuotaExceeded
	case strings.Contains(address, "Broken"):
		return maps.Result{}, errors.New("maps error 500")
	case strings.Contains(address, "Road"):
		return maps.Result{Lat: 12.97, Lng: 77.64, City: "Bengaluru", State: "Karnataka"}, nil
	}
	return maps.Result{}, maps.ErrNoResults
}

func newServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	r := chi.NewRouter()
	RegisterResolve(r, ResolveDeps{Resolver: &geocode.Resolver{
		Redis: redisx.New(mr.Addr(), "", 0),
		Geo:   scriptedGeocoder{},
	}})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mr
}

func get(t *testing.T, srv *httptest.Server, q url.Values) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/v1/geocode/resolve?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestResolveFreshThenCached(t *testing.T) {
	srv, _ := newServer(t)
	q := url.Values{"address": {"100 Feet Road"}, "city": {"Bengaluru"}, "state": {"Karnataka"}}

	code, body := get(t, srv, q)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "fresh", body["source"])
	loc := body["location"].(map[string]any)
	assert.Equal(t, "geocoded", loc["source"])

	code, body = get(t, srv, q)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, false, body["stale"])
}

func TestResolvePostBody(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Post(srv.URL+"/v1/geocode/resolve", "application/json",
		strings.NewReader(`{"address":"MG Road","city":"Bengaluru"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bad, err := http.Post(srv.URL+"/v1/geocode/resolve", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestResolveErrorCodes(t *testing.T) {
	srv, mr := newServer(t)

	code, body := get(t, srv, url.Values{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "address_required", body["error"])

	code, body = get(t, srv, url.Values{"address": {"Nowhere Lane"}, "city": {"Atlantis"}})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
	key := body["key"].(string)
	assert.True(t, mr.Exists("geo:miss:"+key))

	code, body = get(t, srv, url.Values{"address": {"Quota Street"}, "city": {"Pune"}})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "provider_quota", body["error"])

	code, body = get(t, srv, url.Values{"address": {"Broken Street"}, "city": {"Pune"}})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "upstream_error", body["error"])
}

func TestResolveInProgress(t *testing.T) {
	srv, mr := newServer(t)
	q := url.Values{"address": {"Residency Road"}, "city": {"Bengaluru"}}

	// first call reveals the cache key
	code, body := get(t, srv, q)
	require.Equal(t, http.StatusOK, code)
	key := body["key"].(string)
	mr.Del("geo:pk:" + key)
	require.NoError(t, mr.Set("geo:lock:"+key, "1"))

	code, body = get(t, srv, q)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, true, body["in_progress"])
}

func TestResolveWithoutGeocoder(t *testing.T) {
	r := chi.NewRouter()
	RegisterResolve(r, ResolveDeps{})
	srv := httptest.NewServer(r)
	defer srv.Close()
	code, body := get(t, srv, url.Values{"address": {"x"}})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "maps_unavailable", body["error"])
}
