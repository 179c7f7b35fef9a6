package listings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taxsalemap/backend/internal/config"
	"github.com/taxsalemap/backend/internal/geocode"
	"github.com/taxsalemap/backend/internal/notify"
	"github.com/taxsalemap/backend/internal/scraper"
)

func newTestHandler(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	setupTestDB(t)

	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"32.0109","lon":"-81.1533","display_name":"Savannah, Chatham County"}]`))
	}))
	t.Cleanup(nominatim.Close)

	cfg := config.Default()
	cache := geocode.LoadCache(filepath.Join(t.TempDir(), "cache.json"))
	client := geocode.NewClient(nominatim.URL, "test-agent", time.Second, time.Millisecond)
	geocoder := geocode.New(client, cache, time.Second, time.Minute)

	service := NewService(cfg, geocoder, scraper.New(time.Second, "test-agent"), notify.New(cfg.Notify))
	return NewHandler(service, geocoder).SetupRoutes(), cfg
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCountiesEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodGet, "/counties", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var counties []struct {
		Key    string `json:"key"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &counties); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(counties) != 2 {
		t.Fatalf("got %d counties, want 2", len(counties))
	}
	byKey := map[string]string{}
	for _, c := range counties {
		byKey[c.Key] = c.Status
	}
	if byKey["chatham"] != "active" {
		t.Errorf("chatham status = %q, want active", byKey["chatham"])
	}
	if byKey["dekalb"] != "maintenance" {
		t.Errorf("dekalb status = %q, want maintenance", byKey["dekalb"])
	}
}

func TestListingsMaintenanceCounty(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodGet, "/tax-sale-listings/dekalb", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp struct {
		AvailableCounties []string `json:"availableCounties"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.AvailableCounties) != 1 || resp.AvailableCounties[0] != "chatham" {
		t.Errorf("availableCounties = %v, want [chatham]", resp.AvailableCounties)
	}
}

func TestListingsUnknownCounty(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodGet, "/tax-sale-listings/nowhere", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCleanAddressEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodPost, "/test-clean-address",
		`{"address":"7205 W SUGAR TREE CT 31410, SAID PROPERTY BEING FORMERLY IN THE NAME OF JOHN DOE"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["cleaned"] != "7205 W SUGAR TREE CT" {
		t.Errorf("cleaned = %q", resp["cleaned"])
	}
	if resp["zipCode"] != "31410" {
		t.Errorf("zipCode = %q", resp["zipCode"])
	}

	w = doRequest(t, h, http.MethodPost, "/test-clean-address", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty address status = %d, want 400", w.Code)
	}
}

func TestGeocodeEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodPost, "/geocode", `{"address":"7205 W SUGAR TREE CT","county":"chatham"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp geocode.Result
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Coordinates == nil {
		t.Errorf("result = %+v, want success with coordinates", resp)
	}

	w = doRequest(t, h, http.MethodPost, "/geocode", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing address status = %d, want 400", w.Code)
	}
}

func TestCachedPropertiesAndStats(t *testing.T) {
	h, _ := newTestHandler(t)

	file, err := StorePDFFile("chatham_listing.pdf", FileHash([]byte("v1")), "http://example.com/a.pdf", "chatham")
	if err != nil {
		t.Fatal(err)
	}
	lat, lng := 32.0109, -81.1533
	err = StoreProperties(file.ID, []Listing{
		{ParcelID: "10045-12032", Address: "7205 W SUGAR TREE CT", Coordinates: &geocode.Coordinates{Lat: lat, Lng: lng}},
		{ParcelID: "10115A03001", Address: "12 OAK ST"},
	})
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, h, http.MethodGet, "/cached-properties", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var cached struct {
		Count      int       `json:"count"`
		Properties []Listing `json:"properties"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &cached); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cached.Count != 2 || len(cached.Properties) != 2 {
		t.Errorf("cached = %+v", cached)
	}
	if !cached.Properties[0].Geocoded || cached.Properties[0].Coordinates == nil {
		t.Errorf("geocoded property lost its coordinates: %+v", cached.Properties[0])
	}

	w = doRequest(t, h, http.MethodGet, "/database-stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats GeocodingStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 2 || stats.Geocoded != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClearCacheEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	file, err := StorePDFFile("chatham_listing.pdf", FileHash([]byte("v1")), "http://example.com/a.pdf", "chatham")
	if err != nil {
		t.Fatal(err)
	}
	if err := StoreProperties(file.ID, []Listing{{ParcelID: "A", Address: "12 OAK ST"}}); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, h, http.MethodPost, "/clear-cache", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	props, err := AllProperties()
	if err != nil {
		t.Fatal(err)
	}
	if len(props) != 0 {
		t.Errorf("properties after clear = %d, want 0", len(props))
	}
}

func TestPropertiesNear(t *testing.T) {
	h, _ := newTestHandler(t)

	file, err := StorePDFFile("chatham_listing.pdf", FileHash([]byte("v1")), "http://example.com/a.pdf", "chatham")
	if err != nil {
		t.Fatal(err)
	}
	lat, lng := 32.0109, -81.1533
	err = StoreProperties(file.ID, []Listing{
		{ParcelID: "NEAR", Address: "7205 W SUGAR TREE CT", Coordinates: &geocode.Coordinates{Lat: lat, Lng: lng}},
		{ParcelID: "UNGEOCODED", Address: "12 OAK ST"},
	})
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, h, http.MethodGet, "/properties/near?lat=32.0109&lng=-81.1533&radius_km=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}

	w = doRequest(t, h, http.MethodGet, "/properties/near?lat=33.7&lng=-84.4&radius_km=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("far query count = %d, want 0", resp.Count)
	}

	w = doRequest(t, h, http.MethodGet, "/properties/near?lat=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad params status = %d, want 400", w.Code)
	}
}
