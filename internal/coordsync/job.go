package coordsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/geocode"
	"github.com/yourorg/property-api/internal/metrics"
	"github.com/yourorg/property-api/internal/search"
	"github.com/yourorg/property-api/internal/store"
	"github.com/yourorg/property-api/maps"
)

type Store interface {
	search.CoordinateStore
	ListProperties(ctx context.Context, f store.Filter) ([]canon.Document, error)
}

type Resolver interface {
	Resolve(ctx context.Context, q geocode.Query) (geocode.Resolution, error)
}

type Config struct {
	PageSize       int
	MaxPages       int
	Concurrency    int
	Interval       time.Duration
	RequestTimeout time.Duration
	Geocode        bool
	City           string
}

type Stats struct {
	Scanned  int64
	Promoted int64
	Geocoded int64
	Skipped  int64
}

// Job walks every property and makes sure each one that can be placed on a
// map has a row in the coordinates table: embedded coordinates are promoted,
// address-only records are geocoded.
type Job struct {
	Store    Store
	Resolver Resolver
	Logger   *zerolog.Logger
	Config   Config
}

func (j *Job) log() *zerolog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return &log.Logger
}

func (j *Job) validate() error {
	if j == nil {
		return errors.New("nil coordsync job")
	}
	if j.Store == nil {
		return errors.New("coordsync job missing store")
	}
	if j.Config.Geocode && j.Resolver == nil {
		return errors.New("coordsync job geocoding enabled without resolver")
	}
	return nil
}

func (j *Job) Run(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	interval := j.Config.Interval
	if interval <= 0 {
		_, err := j.RunOnce(ctx)
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	j.log().Info().Dur("interval", interval).Msg("coordsync job starting")
	if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.log().Warn().Err(err).Msg("coordsync initial run error")
	}
	for {
		select {
		case <-ctx.Done():
			j.log().Info().Err(ctx.Err()).Msg("coordsync job stopping")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				j.log().Warn().Err(err).Msg("coordsync iteration error")
			}
		}
	}
}

func (j *Job) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := j.validate(); err != nil {
		return stats, err
	}
	pageSize := j.Config.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxPages := j.Config.MaxPages
	if maxPages <= 0 {
		maxPages = 1000
	}
	workers := j.Config.Concurrency
	if workers <= 0 {
		workers = 4
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined error
		quota  atomic.Bool
	)
	fail := func(what string, err error) {
		mu.Lock()
		joined = errors.Join(joined, fmt.Errorf("%s: %w", what, err))
		mu.Unlock()
	}

	for page := 0; page < maxPages; page++ {
		docs, err := j.Store.ListProperties(runCtx, store.Filter{City: j.Config.City, Limit: pageSize, Offset: page * pageSize})
		if err != nil {
			if runCtx.Err() == nil {
				fail(fmt.Sprintf("page %d", page), err)
			}
			break
		}
		for _, doc := range docs {
			if err := sem.Acquire(runCtx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(doc canon.Document) {
				defer wg.Done()
				defer sem.Release(1)
				atomic.AddInt64(&stats.Scanned, 1)
				outcome, err := j.syncOne(runCtx, doc)
				switch {
				case errors.Is(err, maps.ErrQuotaExceeded):
					if quota.CompareAndSwap(false, true) {
						fail("property "+doc.ID, err)
					}
					cancel()
				case err != nil:
					fail("property "+doc.ID, err)
				case outcome == outcomePromoted:
					atomic.AddInt64(&stats.Promoted, 1)
				case outcome == outcomeGeocoded:
					atomic.AddInt64(&stats.Geocoded, 1)
				default:
					atomic.AddInt64(&stats.Skipped, 1)
				}
			}(doc)
		}
		if runCtx.Err() != nil || len(docs) < pageSize {
			break
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		return stats, ctx.Err()
	}
	metrics.ObserveJob("coordsync", joined)
	j.log().Info().
		Int64("scanned", stats.Scanned).
		Int64("promoted", stats.Promoted).
		Int64("geocoded", stats.Geocoded).
		Int64("skipped", stats.Skipped).
		Msg("coordsync run finished")
	return stats, joined
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomePromoted
	outcomeGeocoded
)

func (j *Job) syncOne(ctx context.Context, doc canon.Document) (outcome, error) {
	promoted, err := search.PromoteDocument(ctx, j.Store, doc)
	if err != nil {
		return outcomeSkipped, err
	}
	if promoted {
		return outcomePromoted, nil
	}
	if !j.Config.Geocode || doc.Coordinates != nil {
		return outcomeSkipped, nil
	}
	rec := canon.Normalize(doc, canon.Options{OmitDetails: true})
	if rec.Location().Verified() || (rec.Address == "" && rec.City == "") {
		return outcomeSkipped, nil
	}
	timeout := j.Config.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := j.Resolver.Resolve(reqCtx, geocode.Query{Address: firstNonEmpty(rec.Address, rec.Locality), City: rec.City, State: rec.State})
	switch {
	case errors.Is(err, geocode.ErrNotFound), errors.Is(err, geocode.ErrInProgress), errors.Is(err, geocode.ErrAddressRequired):
		return outcomeSkipped, nil
	case err != nil:
		return outcomeSkipped, err
	}
	if err := j.Store.UpsertCoordinates(ctx, doc.ID, res.Location()); err != nil {
		return outcomeSkipped, err
	}
	return outcomeGeocoded, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
