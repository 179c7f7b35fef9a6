// Command refresh runs one full refresh pass for a county from the terminal,
// useful for cron and for warming the database before serving traffic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"github.com/taxsalemap/backend/internal/config"
	"github.com/taxsalemap/backend/internal/db"
	"github.com/taxsalemap/backend/internal/geocode"
	"github.com/taxsalemap/backend/internal/listings"
	"github.com/taxsalemap/backend/internal/notify"
	"github.com/taxsalemap/backend/internal/scraper"
)

func main() {
	county := flag.String("county", "chatham", "county key to refresh")
	force := flag.Bool("force", false, "re-parse even if the PDF is unchanged")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall pass timeout")
	flag.Parse()

	_ = godotenv.Load()

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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := service.Refresh(ctx, *county, *force)
	if err != nil {
		log.WithError(err).Fatal("refresh failed")
	}

	fmt.Printf("pass %s: %d properties (%d geocoded, %d from cache, %d failed)\n",
		result.PassID, len(result.Properties),
		result.Geocoding.Successful, result.Geocoding.FromCache, result.Geocoding.Failed)
	if result.FromCache {
		fmt.Println("source PDF unchanged, served stored snapshot")
	}
}
