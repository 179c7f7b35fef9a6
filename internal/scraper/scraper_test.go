package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const countyPage = `<html><body>
<div class="content">
  <h2>Tax Sale List</h2>
  <p><a href="https://cms.chathamcountyga.gov/api/assets/taxcommissioner/abc-123?download=0">August Tax Sale List</a></p>
  <p><a href="https://cms.chathamcountyga.gov/api/assets/taxcommissioner/def-456?download=0">Tax Sale Photo List</a></p>
</div>
<div class="footer">
  <a href="/contact">Contact Us</a>
</div>
</body></html>`

const noHeadingPage = `<html><body>
<a href="https://cms.chathamcountyga.gov/api/assets/taxcommissioner/xyz-789?download=0">Current Listing</a>
</body></html>`

func newTestScraper(t *testing.T, html string) (*Scraper, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return New(5*time.Second, "test-agent"), server.URL
}

func TestDiscoverFindsBothLinks(t *testing.T) {
	s, url := newTestScraper(t, countyPage)

	links, err := s.Discover(context.Background(), url)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if links.TaxSaleURL != "https://cms.chathamcountyga.gov/api/assets/taxcommissioner/abc-123?download=0" {
		t.Errorf("TaxSaleURL = %q", links.TaxSaleURL)
	}
	if links.PhotoListURL != "https://cms.chathamcountyga.gov/api/assets/taxcommissioner/def-456?download=0" {
		t.Errorf("PhotoListURL = %q", links.PhotoListURL)
	}
}

func TestDiscoverFallsBackToWholePage(t *testing.T) {
	s, url := newTestScraper(t, noHeadingPage)

	links, err := s.Discover(context.Background(), url)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if links.TaxSaleURL != "https://cms.chathamcountyga.gov/api/assets/taxcommissioner/xyz-789?download=0" {
		t.Errorf("TaxSaleURL = %q", links.TaxSaleURL)
	}
	if links.PhotoListURL != "" {
		t.Errorf("PhotoListURL = %q, want empty", links.PhotoListURL)
	}
}

func TestDiscoverNoMatches(t *testing.T) {
	s, url := newTestScraper(t, `<html><body><a href="/about">About</a></body></html>`)

	links, err := s.Discover(context.Background(), url)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if links.TaxSaleURL != "" || links.PhotoListURL != "" {
		t.Errorf("links = %+v, want empty", links)
	}
}

func TestDiscoverHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	s := New(5*time.Second, "test-agent")
	if _, err := s.Discover(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
