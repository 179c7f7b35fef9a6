package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/taxsalemap/backend/internal/address"
)

// Geocoder resolves cleaned street addresses to coordinates, consulting the
// file-backed cache before touching the network.
type Geocoder struct {
	client      *Client
	cache       *Cache
	timeout     time.Duration
	batchBudget time.Duration
}

// Result is the outcome of geocoding one address.
type Result struct {
	Success     bool         `json:"success"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	DisplayName string       `json:"displayName,omitempty"`
	Cached      bool         `json:"cached"`
	Strategy    string       `json:"strategy,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Stats summarizes a batch run.
type Stats struct {
	Total         int `json:"total"`
	Successful    int `json:"successful"`
	FromCache     int `json:"fromCache"`
	NewlyGeocoded int `json:"newlyGeocoded"`
	Failed        int `json:"failed"`
}

// Item is one address in a batch request.
type Item struct {
	Address string
	ZipCode string
}

func New(client *Client, cache *Cache, timeout, batchBudget time.Duration) *Geocoder {
	return &Geocoder{client: client, cache: cache, timeout: timeout, batchBudget: batchBudget}
}

// Single geocodes one address scoped to a region ("Chatham County") and state.
// The address is cleaned first; cleaning is idempotent so already-cleaned
// input is fine. Cache writes are left for the caller to Flush.
func (g *Geocoder) Single(ctx context.Context, rawAddress, zipCode, region, state string) Result {
	cleaned := address.Clean(rawAddress)
	addr := cleaned.Cleaned
	if zipCode == "" {
		zipCode = cleaned.ZipCode
	}

	if len(addr) <= 5 {
		return Result{Message: "Address too short after cleaning"}
	}

	key := CacheKey(addr, zipCode)
	if entry, ok := g.cache.Get(key); ok {
		coords := entry.Coordinates
		return Result{Success: true, Coordinates: &coords, DisplayName: entry.DisplayName, Cached: true}
	}

	query := buildQuery(addr, zipCode, region, state)
	res := g.search(ctx, query)
	if res.Success {
		g.cache.Put(key, CacheEntry{Coordinates: *res.Coordinates, DisplayName: res.DisplayName, CachedAt: time.Now()})
	}
	return res
}

// Lookup tries a series of progressively broader queries for a single
// free-form address. Meant for the interactive endpoint and the
// check_address tool, where one address warrants extra requests. A hit is
// flushed to disk immediately.
func (g *Geocoder) Lookup(ctx context.Context, rawAddress, region, state string) Result {
	cleaned := address.Clean(rawAddress)
	addr := cleaned.Cleaned
	if len(addr) <= 5 {
		return Result{Message: "Address too short after cleaning"}
	}

	key := CacheKey(addr, cleaned.ZipCode)
	if entry, ok := g.cache.Get(key); ok {
		coords := entry.Coordinates
		return Result{Success: true, Coordinates: &coords, DisplayName: entry.DisplayName, Cached: true}
	}

	strategies := lookupStrategies(addr, cleaned.ZipCode, region, state)
	var last Result
	for _, s := range strategies {
		log.WithFields(log.Fields{"strategy": s.name, "query": s.query}).Debug("geocode attempt")
		last = g.search(ctx, s.query)
		if last.Success {
			last.Strategy = s.name
			g.cache.Put(key, CacheEntry{Coordinates: *last.Coordinates, DisplayName: last.DisplayName, CachedAt: time.Now()})
			if err := g.cache.Flush(); err != nil {
				log.WithError(err).Warn("could not save geocode cache")
			}
			return last
		}
	}
	if last.Message == "" {
		last.Message = "No coordinates found"
	}
	return last
}

// Batch geocodes items sequentially, honoring the pacing the shared client
// enforces. Once the wall-clock budget runs out the remaining items are
// marked failed without issuing requests; the next pass retries them since
// only successes are cached. The cache is flushed at most once, at the end.
func (g *Geocoder) Batch(ctx context.Context, items []Item, region, state string) ([]Result, Stats) {
	results := make([]Result, len(items))
	stats := Stats{Total: len(items)}
	deadline := time.Now().Add(g.batchBudget)

	for i, item := range items {
		if time.Now().After(deadline) {
			results[i] = Result{Message: "batch budget exhausted"}
			stats.Failed++
			continue
		}

		res := g.Single(ctx, item.Address, item.ZipCode, region, state)
		results[i] = res
		switch {
		case res.Success && res.Cached:
			stats.Successful++
			stats.FromCache++
		case res.Success:
			stats.Successful++
			stats.NewlyGeocoded++
		default:
			stats.Failed++
			log.WithFields(log.Fields{"address": item.Address, "reason": res.Message}).Debug("geocode failed")
		}
	}

	if stats.NewlyGeocoded > 0 {
		if err := g.cache.Flush(); err != nil {
			log.WithError(err).Warn("could not save geocode cache")
		}
	}
	log.WithFields(log.Fields{
		"total":     stats.Total,
		"fromCache": stats.FromCache,
		"new":       stats.NewlyGeocoded,
		"failed":    stats.Failed,
	}).Info("geocode batch complete")
	return results, stats
}

func (g *Geocoder) search(ctx context.Context, query string) Result {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	found, err := g.client.Search(reqCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Message: "Request timeout"}
		}
		return Result{Message: err.Error()}
	}
	if len(found) == 0 {
		return Result{Message: "No coordinates found"}
	}

	lat, err := strconv.ParseFloat(found[0].Lat, 64)
	if err != nil {
		return Result{Message: "invalid latitude in response"}
	}
	lng, err := strconv.ParseFloat(found[0].Lon, 64)
	if err != nil {
		return Result{Message: "invalid longitude in response"}
	}
	return Result{
		Success:     true,
		Coordinates: &Coordinates{Lat: lat, Lng: lng},
		DisplayName: found[0].DisplayName,
	}
}

func buildQuery(addr, zipCode, region, state string) string {
	parts := []string{addr}
	if zipCode != "" {
		parts = append(parts, zipCode)
	}
	parts = append(parts, region, state, "USA")
	return strings.Join(parts, ", ")
}

type strategy struct {
	name  string
	query string
}

func lookupStrategies(addr, zipCode, region, state string) []strategy {
	strategies := []strategy{
		{"region", fmt.Sprintf("%s, %s, %s, USA", addr, region, state)},
	}
	if region != "" {
		// County seat first, then the county's common ZIP codes.
		strategies = append(strategies, strategy{"city", fmt.Sprintf("%s, Savannah, %s, USA", addr, state)})
	}
	if zipCode != "" {
		strategies = append(strategies, strategy{"zip", fmt.Sprintf("%s, %s, %s, USA", addr, zipCode, state)})
	} else {
		for _, zip := range []string{"31401", "31404", "31406"} {
			strategies = append(strategies, strategy{"zip-" + zip, fmt.Sprintf("%s, %s, %s, USA", addr, zip, state)})
		}
	}
	strategies = append(strategies,
		strategy{"state", fmt.Sprintf("%s, %s, USA", addr, state)},
		strategy{"raw", addr},
	)
	return strategies
}
