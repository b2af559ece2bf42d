package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	httpapi "github.com/yourorg/property-api/http"
	"github.com/yourorg/property-api/internal/catalog"
	"github.com/yourorg/property-api/internal/config"
	"github.com/yourorg/property-api/internal/events"
	"github.com/yourorg/property-api/internal/geocode"
	"github.com/yourorg/property-api/internal/logger"
	"github.com/yourorg/property-api/internal/mapview"
	"github.com/yourorg/property-api/internal/metrics"
	"github.com/yourorg/property-api/internal/objstore"
	"github.com/yourorg/property-api/internal/redisx"
	"github.com/yourorg/property-api/internal/refresh"
	"github.com/yourorg/property-api/internal/search"
	"github.com/yourorg/property-api/internal/store"
	"github.com/yourorg/property-api/maps"
)

// backend is satisfied by both *store.Store and *store.Memory.
type backend interface {
	catalog.Store
	search.CoordinateStore
}

func main() {
	cfg := config.Load()
	log.Logger = logger.New(cfg.AppEnv)
	reg := metrics.InitRegistry()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]func() error{}

	var st backend
	if cfg.PGDSN != "" {
		pg, err := store.Open(cfg.PGDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store open error")
		}
		defer pg.Close()
		ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		if err := pg.Ping(ctx); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("postgres ping error")
		}
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				cancel()
				log.Fatal().Err(err).Msg("postgres migrate error")
			}
		}
		cancel()
		health["postgres"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pg.Ping(ctx)
		}
		log.Info().Msg("serving properties from database")
		st = pg
	} else {
		log.Warn().Msg("PG_DSN is empty; serving properties from memory")
		st = store.NewMemory()
	}

	pub := events.NewInMemory(256)
	promoter := &search.CoordinatePromoter{Pub: pub, Store: st}
	go promoter.Run(rootCtx)

	images := objstore.NewClient(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket)
	svc := &catalog.Service{Store: st, Pub: pub, Center: cfg.Center}
	if images.Enabled() {
		svc.URLs = objstore.NewURLCache(images)
	}

	mapsClient := maps.NewClient(cfg.MapsAPIKey, cfg.MapsBaseURL, cfg.MapsRPS)
	var resolver *geocode.Resolver
	if mapsClient.Enabled() {
		resolver = &geocode.Resolver{
			Geo:         mapsClient,
			CacheTTL:    cfg.GeocodeCacheTTL,
			StaleAfter:  cfg.GeocodeStaleAfter,
			NegativeTTL: cfg.GeocodeNegTTL,
		}
		if cfg.RedisAddr != "" {
			rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			defer rdb.Close()
			resolver.Redis = rdb
			health["redis"] = func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return rdb.Ping(ctx)
			}
			refresher := refresh.New(256, 4, resolver.Refresh)
			defer refresher.Close()
			resolver.Refetch = refresher.Enqueue
		} else {
			log.Warn().Msg("REDIS_ADDR is empty; geocode results are not cached")
		}
	}

	router := BuildRouter(RouterDeps{
		Catalog:      svc,
		Images:       images,
		Maps:         mapsClient,
		Icons:        mapview.NewIconCache(cfg.IconBaseURL),
		Resolver:     resolver,
		Registry:     reg,
		Paging:       httpapi.Paging{DefaultLimit: cfg.DefaultPageSize, MaxLimit: cfg.MaxPageSize},
		Center:       cfg.Center,
		SignedTTL:    cfg.SignedURLTTL,
		RatePerMin:   cfg.RateLimitPerMin,
		HealthChecks: health,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-rootCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http shutdown error")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("property-api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
