package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/property-api/internal/metrics"
)

var ErrDisabled = errors.New("objstore: storage not configured")

// Client talks to a bucket-style storage REST API. Objects for a property
// live under "<propertyID>/<filename>".
type Client struct {
	baseURL string
	key     string
	bucket  string
	http    *retryablehttp.Client
}

func NewClient(baseURL, key, bucket string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 20 * time.Second
	rc.Logger = nil
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		bucket:  bucket,
		http:    rc,
	}
}

func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

func ObjectKey(propertyID, filename string) string {
	return path.Join(propertyID, path.Base(filename))
}

func (c *Client) objectURL(parts ...string) string {
	segs := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		for _, s := range strings.Split(p, "/") {
			segs = append(segs, url.PathEscape(s))
		}
	}
	return c.baseURL + "/storage/v1/object/" + strings.Join(segs, "/")
}

// PublicURL is the unauthenticated URL of an object in a public bucket.
func (c *Client) PublicURL(propertyID, filename string) string {
	if !c.Enabled() {
		return ""
	}
	return c.objectURL("public", c.bucket, ObjectKey(propertyID, filename))
}

// KeyFor reverses PublicURL. It reports false for URLs outside this bucket.
func (c *Client) KeyFor(rawURL string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	prefix := c.objectURL("public", c.bucket) + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(rawURL, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func (c *Client) Upload(ctx context.Context, propertyID, filename, contentType string, body io.Reader) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	b, err := io.ReadAll(io.LimitReader(body, 20<<20))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	key := ObjectKey(propertyID, filename)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(c.bucket, key), bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	c.auth(req)

	resp, err := c.do(req, "upload")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", upstreamError(resp)
	}
	return key, nil
}

// SignedURL returns a time-limited URL for a private object.
func (c *Client) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	secs := int(ttl.Seconds())
	if secs <= 0 {
		secs = 3600
	}
	payload, _ := json.Marshal(map[string]int{"expiresIn": secs})
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.objectURL("sign", c.bucket, key), payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.do(req, "sign")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", upstreamError(resp)
	}
	var out struct {
		SignedURL  string `json:"signedURL"`
		SignedURL2 string `json:"signedUrl"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode signed url: %w", err)
	}
	signed := out.SignedURL
	if signed == "" {
		signed = out.SignedURL2
	}
	if signed == "" {
		return "", errors.New("objstore: empty signed url")
	}
	if strings.HasPrefix(signed, "http://") || strings.HasPrefix(signed, "https://") {
		return signed, nil
	}
	return c.baseURL + "/storage/v1" + "/" + strings.TrimLeft(signed, "/"), nil
}

func (c *Client) auth(req *retryablehttp.Request) {
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("apikey", c.key)
	}
}

func (c *Client) do(req *retryablehttp.Request, endpoint string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.ObserveExternal("objstore", endpoint, status, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("objstore %s: %w", endpoint, err)
	}
	return resp, nil
}

func upstreamError(resp *http.Response) error {
	var body map[string]any
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	return fmt.Errorf("objstore error %d: %v", resp.StatusCode, body)
}

// URLCache memoizes public URLs per (record, filename). The cache is owned
// by whoever constructs it; Clear drops every entry.
type URLCache struct {
	mu   sync.Mutex
	src  interface{ PublicURL(propertyID, filename string) string }
	urls map[string]string
}

func NewURLCache(src interface{ PublicURL(propertyID, filename string) string }) *URLCache {
	return &URLCache{src: src, urls: map[string]string{}}
}

func (c *URLCache) PublicURL(propertyID, filename string) string {
	k := propertyID + "\x00" + filename
	c.mu.Lock()
	defer c.mu.Unlock()
	if u, ok := c.urls[k]; ok {
		return u
	}
	u := c.src.PublicURL(propertyID, filename)
	if u != "" {
		c.urls[k] = u
	}
	return u
}

func (c *URLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls)
}

func (c *URLCache) Clear() {
	c.mu.Lock()
	c.urls = map[string]string{}
	c.mu.Unlock()
}
