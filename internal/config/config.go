package config

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/env"
)

type Config struct {
	Port    int
	AppEnv  string
	PGDSN   string
	Migrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MapsAPIKey  string
	MapsBaseURL string
	MapsRPS     int

	StorageURL    string
	StorageKey    string
	StorageBucket string
	SignedURLTTL  time.Duration

	DefaultPageSize int
	MaxPageSize     int
	Center          canon.Center
	IconBaseURL     string

	GeocodeCacheTTL   time.Duration
	GeocodeStaleAfter time.Duration
	GeocodeNegTTL     time.Duration
	RateLimitPerMin   int
}

// MapsEnabled reports whether the geocoder and map view can run.
func (c Config) MapsEnabled() bool { return c.MapsAPIKey != "" }

// Load reads configuration from the environment (after any .env file).
func Load() Config {
	env.Load()
	c := Config{
		Port:    env.GetInt("PORT", 4002),
		AppEnv:  env.Get("APP_ENV", "prod"),
		PGDSN:   env.Get("PG_DSN", ""),
		Migrate: env.GetBool("PG_MIGRATE", true),

		RedisAddr:     env.Get("REDIS_ADDR", ""),
		RedisPassword: env.Get("REDIS_PASSWORD", ""),
		RedisDB:       env.GetInt("REDIS_DB", 0),

		MapsAPIKey:  env.Get("MAPS_API_KEY", ""),
		MapsBaseURL: env.Get("MAPS_BASE_URL", "https://maps.googleapis.com"),
		MapsRPS:     env.GetInt("MAPS_RPS", 5),

		StorageURL:    env.Get("STORAGE_URL", ""),
		StorageKey:    env.Get("STORAGE_KEY", ""),
		StorageBucket: env.Get("STORAGE_BUCKET", "property-images"),
		SignedURLTTL:  env.GetDuration("STORAGE_SIGNED_URL_TTL", time.Hour),

		DefaultPageSize: env.GetInt("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:     env.GetInt("MAX_PAGE_SIZE", 100),
		Center: canon.Center{
			Latitude:  env.GetFloat("FALLBACK_CENTER_LAT", canon.DefaultCenter.Latitude),
			Longitude: env.GetFloat("FALLBACK_CENTER_LNG", canon.DefaultCenter.Longitude),
		},
		IconBaseURL: env.Get("MARKER_ICON_BASE_URL", "/static"),

		GeocodeCacheTTL:   env.GetDuration("GEOCODE_CACHE_TTL", 30*24*time.Hour),
		GeocodeStaleAfter: env.GetDuration("GEOCODE_STALE_AFTER", 7*24*time.Hour),
		GeocodeNegTTL:     env.GetDuration("GEOCODE_NEGATIVE_TTL", time.Hour),
		RateLimitPerMin:   env.GetInt("RATE_LIMIT_PER_MIN", 100),
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize < c.DefaultPageSize {
		c.MaxPageSize = c.DefaultPageSize
	}
	if !c.MapsEnabled() {
		log.Warn().Msg("MAPS_API_KEY is empty; map view and geocoding disabled")
	}
	if c.StorageURL == "" {
		log.Warn().Msg("STORAGE_URL is empty; image uploads disabled")
	}
	return c
}
