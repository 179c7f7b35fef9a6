package main

import (
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/taxsalemap/backend/internal/config"
	"github.com/taxsalemap/backend/internal/db"
	"github.com/taxsalemap/backend/internal/geocode"
	"github.com/taxsalemap/backend/internal/listings"
	"github.com/taxsalemap/backend/internal/middleware"
	"github.com/taxsalemap/backend/internal/notify"
	"github.com/taxsalemap/backend/internal/scraper"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db.Connect()
	listings.Init()

	cache := geocode.LoadCache(cfg.Geocoder.CacheFile)
	client := geocode.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.RequestTimeout, cfg.Geocoder.RequestDelay)
	geocoder := geocode.New(client, cache, cfg.Geocoder.RequestTimeout, cfg.Geocoder.BatchBudget)

	service := listings.NewService(cfg, geocoder, scraper.New(cfg.Geocoder.RequestTimeout*4, cfg.Geocoder.UserAgent), notify.New(cfg.Notify))
	handler := listings.NewHandler(service, geocoder)

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.NoCacheMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/api", handler.SetupRoutes())

	addr := ":" + cfg.Server.Port
	log.WithField("addr", addr).Info("tax sale listings server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
