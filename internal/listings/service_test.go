package listings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taxsalemap/backend/internal/config"
	"github.com/taxsalemap/backend/internal/geocode"
	"github.com/taxsalemap/backend/internal/listings/photos"
	"github.com/taxsalemap/backend/internal/scraper"
)

func TestDiffParcels(t *testing.T) {
	previous := []Property{{ParcelID: "A"}, {ParcelID: "B"}, {ParcelID: "C"}}
	current := []Listing{{ParcelID: "B"}, {ParcelID: "C"}, {ParcelID: "D"}, {ParcelID: "E"}}

	added, removed := diffParcels(previous, current)
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestPDFFilename(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cms.chathamcountyga.gov/api/assets/taxcommissioner/abc-123?download=0", "chatham_abc-123"},
		{"://bad url", "chatham_listing.pdf"},
	}
	for _, tt := range tests {
		if got := pdfFilename("chatham", tt.url); got != tt.want {
			t.Errorf("pdfFilename(chatham, %q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDiscoverLinksStaticCounty(t *testing.T) {
	cfg := &config.Config{
		Counties: map[string]config.CountyConfig{
			"static": {
				Name:         "Static County",
				State:        "GA",
				URL:          "http://example.com/list.pdf",
				PhotoListURL: "http://example.com/photos.pdf",
			},
		},
	}
	service := NewService(cfg, nil, scraper.New(time.Second, "test-agent"), nil)

	links, err := service.DiscoverLinks(context.Background(), "static")
	if err != nil {
		t.Fatalf("DiscoverLinks: %v", err)
	}
	if links.TaxSaleURL != "http://example.com/list.pdf" {
		t.Errorf("TaxSaleURL = %q", links.TaxSaleURL)
	}
	if links.PhotoListURL != "http://example.com/photos.pdf" {
		t.Errorf("PhotoListURL = %q", links.PhotoListURL)
	}
}

func TestMergePhotoEntries(t *testing.T) {
	entries := map[string]*photos.Entry{
		"10045-12032": {
			ParcelID:         "10045-12032",
			EstimatedPage:    3,
			BidAmount:        "$123.45",
			OwnerAddressHint: "JOHN DOE 7205 W SUGAR TREE CT",
		},
	}
	items := []Listing{
		{ParcelID: "10045-12032", Amount: "$100.00"},
		{ParcelID: "10115A03001", Amount: "$1,200.00"},
	}

	matched := mergePhotoEntries(entries, items)
	if matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}

	got := items[0]
	if !got.HasPhoto {
		t.Error("HasPhoto not set on matched listing")
	}
	if got.Amount != "$123.45" || got.BidAmount != "$123.45" {
		t.Errorf("Amount = %q, BidAmount = %q; want photo bid to override", got.Amount, got.BidAmount)
	}
	if got.Photo == nil {
		t.Fatal("photo entry not attached to listing")
	}
	if got.Photo.EstimatedPage != 3 {
		t.Errorf("Photo.EstimatedPage = %d, want 3", got.Photo.EstimatedPage)
	}
	if got.Photo.OwnerAddressHint != "JOHN DOE 7205 W SUGAR TREE CT" {
		t.Errorf("Photo.OwnerAddressHint = %q", got.Photo.OwnerAddressHint)
	}

	other := items[1]
	if other.HasPhoto || other.Photo != nil || other.Amount != "$1,200.00" {
		t.Errorf("unmatched listing modified: %+v", other)
	}
}

func TestMergePhotoEntriesKeepsAmountWithoutBid(t *testing.T) {
	entries := map[string]*photos.Entry{
		"10115A03001": {ParcelID: "10115A03001", EstimatedPage: 1},
	}
	items := []Listing{{ParcelID: "10115A03001", Amount: "$1,200.00"}}

	mergePhotoEntries(entries, items)
	if items[0].Amount != "$1,200.00" {
		t.Errorf("Amount = %q, want parsed amount kept when entry has no bid", items[0].Amount)
	}
	if !items[0].HasPhoto {
		t.Error("HasPhoto not set")
	}
}

func TestGeocodeItemsStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "BAD") {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"lat":"32.0109","lon":"-81.1533","display_name":"Savannah"}]`))
	}))
	t.Cleanup(server.Close)

	cache := geocode.LoadCache(filepath.Join(t.TempDir(), "cache.json"))
	client := geocode.NewClient(server.URL, "test-agent", time.Second, time.Millisecond)
	geocoder := geocode.New(client, cache, time.Second, time.Minute)
	service := NewService(config.Default(), geocoder, nil, nil)
	county := config.CountyConfig{Name: "Chatham County", State: "GA"}

	items := []Listing{
		{ParcelID: "A", Address: "12 OAK ST", ZipCode: "31401"},
		{ParcelID: "B", Address: "1 BAD ADDRESS ST", ZipCode: "31406"},
	}
	service.geocodeItems(context.Background(), county, items)

	if items[0].GeocodeStatus != GeocodeResolved || !items[0].Geocoded {
		t.Errorf("fresh hit status = %q, geocoded = %v; want resolved", items[0].GeocodeStatus, items[0].Geocoded)
	}
	if items[1].GeocodeStatus != GeocodeFailed || items[1].Geocoded {
		t.Errorf("miss status = %q, geocoded = %v; want failed", items[1].GeocodeStatus, items[1].Geocoded)
	}
	if items[1].GeocodeMessage != "No coordinates found" {
		t.Errorf("GeocodeMessage = %q, want failure message retained", items[1].GeocodeMessage)
	}

	again := []Listing{{ParcelID: "A", Address: "12 OAK ST", ZipCode: "31401"}}
	service.geocodeItems(context.Background(), county, again)
	if again[0].GeocodeStatus != GeocodeCached {
		t.Errorf("repeat status = %q, want cached", again[0].GeocodeStatus)
	}
}

func TestCountyStatus(t *testing.T) {
	cfg := config.Default()
	service := NewService(cfg, nil, nil, nil)

	if _, err := service.County("chatham"); err != nil {
		t.Errorf("chatham: %v", err)
	}
	if _, err := service.County("dekalb"); err != ErrMaintenance {
		t.Errorf("dekalb err = %v, want ErrMaintenance", err)
	}
	if _, err := service.County("nowhere"); err != ErrUnknownCounty {
		t.Errorf("nowhere err = %v, want ErrUnknownCounty", err)
	}
}
