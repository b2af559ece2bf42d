// Package client is a Go SDK for the property API. It carries the
// client-side behaviours the browser app relies on: optimistic favorites
// with rollback and suppression of superseded search responses.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/property-api/internal/canon"
)

// APIError is a non-2xx response decoded from the {"error","detail"} body.
type APIError struct {
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("api error %d %s", e.Status, e.Code)
}

type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

func New(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: rc}
}

// ListParams mirrors the list endpoint's query string.
type ListParams struct {
	City    string
	State   string
	OwnerID string
	Q       string
	Flow    canon.Flow
	Page    int
	Limit   int
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("city", p.City)
	set("state", p.State)
	set("owner_id", p.OwnerID)
	set("q", p.Q)
	set("flow", string(p.Flow))
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func (c *Client) List(ctx context.Context, p ListParams) ([]canon.Record, error) {
	var out envelope[[]canon.Record]
	if err := c.do(ctx, http.MethodGet, "/v1/properties?"+p.values().Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Get(ctx context.Context, id string) (canon.Record, error) {
	var out envelope[canon.Record]
	if err := c.do(ctx, http.MethodGet, "/v1/properties/"+url.PathEscape(id), nil, &out); err != nil {
		return canon.Record{}, err
	}
	return out.Data, nil
}

func (c *Client) FavoriteIDs(ctx context.Context, userID string) ([]string, error) {
	var out envelope[[]string]
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/favorites?ids_only=true", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) SetFavorite(ctx context.Context, userID, propertyID string, on bool) error {
	method := http.MethodDelete
	if on {
		method = http.MethodPut
	}
	return c.do(ctx, method, "/v1/users/"+url.PathEscape(userID)+"/favorites/"+url.PathEscape(propertyID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, dst any) error {
	var payload any
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Error  string `json:"error"`
			Detail any    `json:"detail"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb) == nil {
			apiErr.Code = eb.Error
			if eb.Detail != nil {
				apiErr.Detail = fmt.Sprint(eb.Detail)
			}
		}
		return apiErr
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
