package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourorg/property-api/internal/config"
	"github.com/yourorg/property-api/internal/coordsync"
	"github.com/yourorg/property-api/internal/env"
	"github.com/yourorg/property-api/internal/geocode"
	"github.com/yourorg/property-api/internal/logger"
	"github.com/yourorg/property-api/internal/redisx"
	"github.com/yourorg/property-api/internal/store"
	"github.com/yourorg/property-api/maps"
)

func main() {
	cfg := config.Load()
	log.Logger = logger.New(cfg.AppEnv)
	dsn := env.Must("PG_DSN")

	runOnce := env.GetBool("COORDSYNC_RUN_ONCE", false)
	geocodeEnabled := env.GetBool("COORDSYNC_GEOCODE", true) && cfg.MapsEnabled()

	st, err := store.Open(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("store open error")
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := st.Ping(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("postgres ping error")
	}
	if err := st.Migrate(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("postgres migrate error")
	}
	cancel()

	resolver := &geocode.Resolver{
		Geo:         maps.NewClient(cfg.MapsAPIKey, cfg.MapsBaseURL, cfg.MapsRPS),
		CacheTTL:    cfg.GeocodeCacheTTL,
		StaleAfter:  cfg.GeocodeStaleAfter,
		NegativeTTL: cfg.GeocodeNegTTL,
	}
	if cfg.RedisAddr != "" {
		resolver.Redis = redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer resolver.Redis.Close()
	}

	job := &coordsync.Job{
		Store:    st,
		Resolver: resolver,
		Config: coordsync.Config{
			PageSize:       env.GetInt("COORDSYNC_PAGE_SIZE", 100),
			MaxPages:       env.GetInt("COORDSYNC_MAX_PAGES", 1000),
			Concurrency:    env.GetInt("COORDSYNC_CONCURRENCY", 4),
			Interval:       env.GetDuration("COORDSYNC_INTERVAL", 6*time.Hour),
			RequestTimeout: env.GetDuration("COORDSYNC_REQUEST_TIMEOUT", 12*time.Second),
			Geocode:        geocodeEnabled,
			City:           env.Get("COORDSYNC_CITY", ""),
		},
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runOnce {
		if _, err := job.RunOnce(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal().Err(err).Msg("coordsync run failed")
		}
		return
	}
	if err := job.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("coordsync job stopped with error")
	}
}
