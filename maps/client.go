package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/yourorg/property-api/internal/metrics"
)

var (
	ErrNoResults     = errors.New("maps: no results")
	ErrQuotaExceeded = errors.New("maps: quota exceeded")
	ErrDisabled      = errors.New("maps: api key not configured")
)

type Client struct {
	key     string
	baseURL string
	http    *retryablehttp.Client
	rl      *rate.Limiter
}

func NewClient(apiKey, baseURL string, rps int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 6 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		// retrying a quota response only burns more quota
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if rps <= 0 {
		rps = 5
	}
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com"
	}
	return &Client{
		key:     apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (c *Client) Enabled() bool { return c != nil && c.key != "" }

// ScriptURL is the browser script the map view injects.
func (c *Client) ScriptURL() string {
	if !c.Enabled() {
		return ""
	}
	q := url.Values{}
	q.Set("key", c.key)
	q.Set("libraries", "places")
	q.Set("loading", "async")
	return c.baseURL + "/maps/api/js?" + q.Encode()
}

// Geocode resolves a free-text address, biased to India.
// Docs: GET /maps/api/geocode/json?address=...&region=in&key=...
func (c *Client) Geocode(ctx context.Context, address string) (Result, error) {
	if !c.Enabled() {
		return Result{}, ErrDisabled
	}
	if strings.TrimSpace(address) == "" {
		return Result{}, ErrNoResults
	}
	if err := c.rl.Wait(ctx); err != nil {
		return Result{}, err
	}
	q := url.Values{}
	q.Set("address", address)
	q.Set("region", "in")
	q.Set("key", c.key)
	u := fmt.Sprintf("%s/maps/api/geocode/json?%s", c.baseURL, q.Encode())

	req, _ := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	req.Header.Set("accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.ObserveExternal("maps", "geocode", status, time.Since(start))
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{}, ErrQuotaExceeded
	}
	if resp.StatusCode >= 400 {
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return Result{}, fmt.Errorf("maps error %d: %v", resp.StatusCode, body)
	}
	raw, err := ioReadAllLimit(resp.Body, 2<<20)
	if err != nil {
		return Result{}, err
	}
	return MapGeocodePayload(raw)
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
