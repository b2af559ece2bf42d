package maps_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/property-api/maps"
)

const okPayload = `{
  "status": "OK",
  "results": [{
    "formatted_address": "100 Feet Rd, Indiranagar, Bengaluru, Karnataka 560038, India",
    "geometry": {"location": {"lat": 12.9784, "lng": "77.6408"}},
    "address_components": [
      {"long_name": "Indiranagar", "short_name": "Indiranagar", "types": ["sublocality_level_1", "sublocality", "political"]},
      {"long_name": "Bengaluru", "short_name": "Bengaluru", "types": ["locality", "political"]},
      {"long_name": "Karnataka", "short_name": "KA", "types": ["administrative_area_level_1", "political"]},
      {"long_name": "560038", "short_name": "560038", "types": ["postal_code"]}
    ]
  }]
}`

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "k1", r.URL.Query().Get("key"))
		assert.Equal(t, "in", r.URL.Query().Get("region"))
		assert.Equal(t, "100 Feet Road, Bengaluru, India", r.URL.Query().Get("address"))
		_, _ = w.Write([]byte(okPayload))
	}))
	defer srv.Close()

	res, err := maps.NewClient("k1", srv.URL, 50).Geocode(context.Background(), "100 Feet Road, Bengaluru, India")
	require.NoError(t, err)
	assert.InDelta(t, 12.9784, res.Lat, 1e-9)
	assert.InDelta(t, 77.6408, res.Lng, 1e-9)
	assert.Equal(t, "Indiranagar", res.Locality)
	assert.Equal(t, "Bengaluru", res.City)
	assert.Equal(t, "Karnataka", res.State)
	assert.Equal(t, "560038", res.PostalCode)
}

func TestGeocodeStatuses(t *testing.T) {
	cases := map[string]struct {
		code int
		body string
		want error
	}{
		"zero results":  {http.StatusOK, `{"status":"ZERO_RESULTS","results":[]}`, maps.ErrNoResults},
		"over limit":    {http.StatusOK, `{"status":"OVER_QUERY_LIMIT"}`, maps.ErrQuotaExceeded},
		"http 429":      {http.StatusTooManyRequests, `{}`, maps.ErrQuotaExceeded},
		"zero location": {http.StatusOK, `{"status":"OK","results":[{"geometry":{"location":{"lat":0,"lng":0}}}]}`, maps.ErrNoResults},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := maps.NewClient("k", srv.URL, 50).Geocode(context.Background(), "somewhere")
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
		})
	}
}

func TestDisabledClient(t *testing.T) {
	c := maps.NewClient("", "", 0)
	assert.False(t, c.Enabled())
	assert.Empty(t, c.ScriptURL())
	_, err := c.Geocode(context.Background(), "x")
	assert.ErrorIs(t, err, maps.ErrDisabled)
}

func TestScriptURL(t *testing.T) {
	u := maps.NewClient("abc", "https://maps.example.com/", 1).ScriptURL()
	assert.Equal(t, "https://maps.example.com/maps/api/js?key=abc&libraries=places&loading=async", u)
}

func TestMapGeocodePayloadRequestDenied(t *testing.T) {
	_, err := maps.MapGeocodePayload([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}
