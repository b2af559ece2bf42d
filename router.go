package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	httpapi "github.com/yourorg/property-api/http"
	httpv1 "github.com/yourorg/property-api/http/v1"
	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/catalog"
	"github.com/yourorg/property-api/internal/geocode"
	"github.com/yourorg/property-api/internal/logger"
	"github.com/yourorg/property-api/internal/mapview"
	"github.com/yourorg/property-api/internal/metrics"
)

type RouterDeps struct {
	Catalog      *catalog.Service
	Images       catalog.ImageStore
	Maps         httpapi.MapsProvider
	Icons        *mapview.IconCache
	Resolver     *geocode.Resolver
	Registry     *prometheus.Registry
	Paging       httpapi.Paging
	Center       canon.Center
	SignedTTL    time.Duration
	RatePerMin   int
	HealthChecks map[string]func() error
}

func BuildRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(logger.Middleware(log.Logger))
	if d.RatePerMin > 0 {
		r.Use(httprate.LimitByIP(d.RatePerMin, 1*time.Minute)) // protect upstream quota
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		checks := map[string]string{}
		ok := true
		for name, check := range d.HealthChecks {
			if err := check(); err != nil {
				checks[name] = err.Error()
				ok = false
				continue
			}
			checks[name] = "ok"
		}
		if !ok {
			render.Status(req, http.StatusServiceUnavailable)
		}
		render.JSON(w, req, map[string]any{"ok": ok, "checks": checks})
	})
	if d.Registry != nil {
		r.Handle("/metrics", metrics.Handler(d.Registry))
	}

	httpapi.RegisterProperties(r, httpapi.PropertiesDeps{Catalog: d.Catalog, Paging: d.Paging})
	httpapi.RegisterImages(r, httpapi.ImagesDeps{Catalog: d.Catalog, Images: d.Images, SignedTTL: d.SignedTTL})
	httpapi.RegisterFavorites(r, httpapi.FavoritesDeps{Catalog: d.Catalog})
	httpapi.RegisterInquiries(r, httpapi.InquiriesDeps{Catalog: d.Catalog})
	httpapi.RegisterMap(r, httpapi.MapDeps{Catalog: d.Catalog, Maps: d.Maps, Icons: d.Icons, Paging: d.Paging, Center: d.Center})

	// v1 geocode resolve with Redis + SWR
	httpv1.RegisterResolve(r, httpv1.ResolveDeps{Resolver: d.Resolver})

	return r
}
