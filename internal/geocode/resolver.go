package geocode

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/metrics"
	"github.com/yourorg/property-api/internal/redisx"
	"github.com/yourorg/property-api/internal/refresh"
	"github.com/yourorg/property-api/maps"
)

var (
	ErrAddressRequired = errors.New("geocode: address required")
	ErrNotFound        = errors.New("geocode: address not found")
	ErrInProgress      = errors.New("geocode: lookup in progress")
)

type Geocoder interface {
	Geocode(ctx context.Context, address string) (maps.Result, error)
}

type Query struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
}

type Normalized struct {
	Line  string `json:"line"`
	City  string `json:"city"`
	State string `json:"state"`
}

type Resolution struct {
	Key        string      `json:"key"`
	Normalized Normalized  `json:"normalized"`
	Result     maps.Result `json:"result"`
	Source     string      `json:"source"` // cache | fresh
	Stale      bool        `json:"stale"`
}

// Location converts the result into a canonical geocoded location.
func (r Resolution) Location() canon.Location {
	return canon.Location{
		Latitude:  r.Result.Lat,
		Longitude: r.Result.Lng,
		Source:    canon.CoordsFromGeocoder,
		Address:   r.Result.FormattedAddress,
		City:      r.Result.City,
		State:     r.Result.State,
	}
}

type envelope struct {
	Data maps.Result `json:"data"`
	Meta struct {
		LastFetch  time.Time `json:"last_fetch_at"`
		StaleAfter time.Time `json:"stale_after"`
		TTLSeconds int       `json:"ttl_seconds"`
	} `json:"meta"`
	Norm Normalized `json:"normalized"`
}

// Resolver geocodes addresses through a Redis cache: fresh hits are served
// directly, stale hits are served and refetched in the background, misses
// take a short lock so concurrent callers don't all hit the provider.
type Resolver struct {
	Redis       *redisx.Client
	Geo         Geocoder
	Refetch     func(j refresh.Job) bool
	CacheTTL    time.Duration
	StaleAfter  time.Duration
	NegativeTTL time.Duration
	LockTTL     time.Duration
	Now         func() time.Time
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func cacheKey(k string) string { return "geo:pk:" + k }
func missKey(k string) string  { return "geo:miss:" + k }
func lockKey(k string) string  { return "geo:lock:" + k }

func (r *Resolver) Resolve(ctx context.Context, q Query) (Resolution, error) {
	if strings.TrimSpace(q.Address) == "" && strings.TrimSpace(q.City) == "" {
		return Resolution{}, ErrAddressRequired
	}
	line, city, st, key := canon.Canonicalize(q.Address, q.City, q.State)
	res := Resolution{Key: key, Normalized: Normalized{Line: line, City: city, State: st}}
	query := canon.Query(q.Address, q.City, q.State)

	if r.Redis == nil {
		out, err := r.lookup(ctx, query)
		if err != nil {
			return res, err
		}
		res.Result, res.Source = out, "fresh"
		return res, nil
	}

	if ok, _ := r.Redis.Exists(ctx, missKey(key)); ok {
		metrics.ObserveCache("geocode", "negative")
		return res, ErrNotFound
	}

	var env envelope
	if ok, err := r.Redis.GetJSON(ctx, cacheKey(key), &env); err == nil && ok {
		res.Result, res.Source = env.Data, "cache"
		res.Stale = r.now().After(env.Meta.StaleAfter)
		if res.Stale {
			metrics.ObserveCache("geocode", "stale")
			if r.Refetch != nil {
				r.Refetch(refresh.Job{Key: key, Query: query})
			}
		}
		return res, nil
	}

	ok, err := r.Redis.SetNX(ctx, lockKey(key), "1", maxDur(r.LockTTL, 8*time.Second))
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("geocode lock unavailable; resolving uncached")
		out, err := r.lookup(ctx, query)
		if err != nil {
			return res, err
		}
		res.Result, res.Source = out, "fresh"
		return res, nil
	}
	if !ok {
		return res, ErrInProgress
	}
	defer func() { _ = r.Redis.Del(context.WithoutCancel(ctx), lockKey(key)) }()

	out, err := r.fetchAndStore(ctx, key, query, res.Normalized)
	if err != nil {
		return res, err
	}
	res.Result, res.Source = out, "fresh"
	return res, nil
}

// Refresh is the background refetch for a stale entry.
func (r *Resolver) Refresh(ctx context.Context, j refresh.Job) {
	if r.Redis == nil {
		return
	}
	var env envelope
	_, _ = r.Redis.GetJSON(ctx, cacheKey(j.Key), &env)
	if _, err := r.fetchAndStore(ctx, j.Key, j.Query, env.Norm); err != nil {
		log.Warn().Err(err).Str("key", j.Key).Msg("geocode refresh failed")
	}
}

func (r *Resolver) lookup(ctx context.Context, query string) (maps.Result, error) {
	out, err := r.Geo.Geocode(ctx, query)
	if errors.Is(err, maps.ErrNoResults) {
		return out, ErrNotFound
	}
	return out, err
}

func (r *Resolver) fetchAndStore(ctx context.Context, key, query string, norm Normalized) (maps.Result, error) {
	out, err := r.lookup(ctx, query)
	if errors.Is(err, ErrNotFound) {
		_ = r.Redis.Set(ctx, missKey(key), "1", maxDur(r.NegativeTTL, time.Hour))
		return out, err
	}
	if err != nil {
		return out, err
	}
	var env envelope
	env.Data = out
	env.Norm = norm
	env.Meta.LastFetch = r.now()
	env.Meta.StaleAfter = env.Meta.LastFetch.Add(maxDur(r.StaleAfter, 7*24*time.Hour))
	ttl := maxDur(r.CacheTTL, 30*24*time.Hour)
	env.Meta.TTLSeconds = int(ttl.Seconds())
	if err := r.Redis.SetJSON(ctx, cacheKey(key), env, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("geocode cache write failed")
	}
	return out, nil
}

func maxDur(a, b time.Duration) time.Duration {
	if a > 0 {
		return a
	}
	return b
}
