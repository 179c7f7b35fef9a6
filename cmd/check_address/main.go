// Command check_address cleans and geocodes a single address from the
// command line, printing each step. Handy when tuning the cleaning patterns
// against addresses the parser mangled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"github.com/taxsalemap/backend/internal/address"
	"github.com/taxsalemap/backend/internal/config"
	"github.com/taxsalemap/backend/internal/geocode"
)

func main() {
	region := flag.String("region", "Chatham County", "region for geocoding queries")
	state := flag.String("state", "GA", "state for geocoding queries")
	skipGeocode := flag.Bool("no-geocode", false, "only clean, do not hit the geocoder")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: check_address [flags] <address...>")
		os.Exit(2)
	}
	raw := strings.Join(flag.Args(), " ")

	_ = godotenv.Load()

	cleaned := address.Clean(raw)
	fmt.Printf("original: %q\n", raw)
	fmt.Printf("cleaned:  %q\n", cleaned.Cleaned)
	fmt.Printf("zip:      %q\n", cleaned.ZipCode)

	if *skipGeocode {
		return
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	cache := geocode.LoadCache(cfg.Geocoder.CacheFile)
	client := geocode.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.RequestTimeout, cfg.Geocoder.RequestDelay)
	geocoder := geocode.New(client, cache, cfg.Geocoder.RequestTimeout, cfg.Geocoder.BatchBudget)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result := geocoder.Lookup(ctx, raw, *region, *state)
	if !result.Success {
		fmt.Printf("geocode failed: %s\n", result.Message)
		os.Exit(1)
	}
	fmt.Printf("coords:   %.6f, %.6f", result.Coordinates.Lat, result.Coordinates.Lng)
	if result.Cached {
		fmt.Print(" (cached)")
	} else if result.Strategy != "" {
		fmt.Printf(" (strategy %s)", result.Strategy)
	}
	fmt.Println()
	if result.DisplayName != "" {
		fmt.Printf("matched:  %s\n", result.DisplayName)
	}
}
