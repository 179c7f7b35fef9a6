package listings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/taxsalemap/backend/internal/config"
	"github.com/taxsalemap/backend/internal/geocode"
	"github.com/taxsalemap/backend/internal/listings/parser"
	"github.com/taxsalemap/backend/internal/listings/photos"
	"github.com/taxsalemap/backend/internal/notify"
	"github.com/taxsalemap/backend/internal/pdftext"
	"github.com/taxsalemap/backend/internal/scraper"
)

var (
	ErrUnknownCounty = errors.New("unknown county")
	ErrMaintenance   = errors.New("county source under maintenance")
)

// Service runs refresh passes: download the county PDFs, parse them, geocode
// the results and persist the snapshot. One pass runs at a time; concurrent
// requests for the same data wait on the mutex rather than re-downloading.
type Service struct {
	cfg        *config.Config
	geocoder   *geocode.Geocoder
	scraper    *scraper.Scraper
	notifier   *notify.Notifier
	httpClient *http.Client

	mu sync.Mutex
}

// RefreshResult is what one pass produced.
type RefreshResult struct {
	PassID     string        `json:"passId"`
	County     string        `json:"county"`
	SourceURL  string        `json:"sourceUrl"`
	FromCache  bool          `json:"fromCache"`
	Changed    bool          `json:"changed"`
	Properties []Listing     `json:"properties"`
	Geocoding  geocode.Stats `json:"geocoding"`
	PhotoCount int           `json:"photoCount"`
}

func NewService(cfg *config.Config, g *geocode.Geocoder, sc *scraper.Scraper, n *notify.Notifier) *Service {
	return &Service{
		cfg:        cfg,
		geocoder:   g,
		scraper:    sc,
		notifier:   n,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Service) County(key string) (config.CountyConfig, error) {
	county, ok := s.cfg.Counties[key]
	if !ok {
		return config.CountyConfig{}, ErrUnknownCounty
	}
	if county.Status == "maintenance" {
		return county, ErrMaintenance
	}
	return county, nil
}

// Refresh runs a full pass for the county. When the source PDF is unchanged
// and force is false, the stored snapshot is returned without re-parsing.
func (s *Service) Refresh(ctx context.Context, key string, force bool) (*RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	county, err := s.County(key)
	if err != nil {
		return nil, err
	}

	passID := uuid.NewString()
	logger := log.WithFields(log.Fields{"pass": passID, "county": key})
	logger.Info("refresh pass started")

	taxSaleURL, photoListURL := s.resolveURLs(ctx, county, logger)
	if taxSaleURL == "" {
		return nil, fmt.Errorf("no tax sale PDF URL for county %s", key)
	}

	data, err := s.download(ctx, taxSaleURL)
	if err != nil {
		return nil, fmt.Errorf("downloading listing pdf: %w", err)
	}

	filename := pdfFilename(key, taxSaleURL)
	status, err := HasFileChanged(filename, data)
	if err != nil {
		return nil, err
	}
	if !status.Changed && !force {
		logger.Info("pdf unchanged, serving stored snapshot")
		props, err := CountyProperties(key)
		if err != nil {
			return nil, err
		}
		return &RefreshResult{
			PassID:     passID,
			County:     key,
			SourceURL:  taxSaleURL,
			FromCache:  true,
			Properties: toListings(props),
		}, nil
	}

	doc, err := pdftext.Extract(data)
	if err != nil {
		return nil, fmt.Errorf("extracting pdf text: %w", err)
	}
	records := parser.ParseText(doc.Text)
	logger.WithFields(log.Fields{"pages": doc.Pages, "records": len(records)}).Info("parsed listing pdf")

	items := make([]Listing, 0, len(records))
	for _, r := range records {
		items = append(items, Listing{
			ParcelID:   r.ParcelID,
			Owner:      r.Owner,
			Address:    r.CleanedAddress,
			RawAddress: r.RawAddress,
			ZipCode:    r.ZipCode,
			Amount:     r.Amount,
		})
	}

	photoCount := 0
	if photoListURL != "" {
		photoCount = s.applyPhotoList(ctx, photoListURL, items, logger)
	}

	stats := s.geocodeItems(ctx, county, items)

	// Snapshot the old parcel set before replacing it, for the change
	// notification.
	previous, err := CountyProperties(key)
	if err != nil {
		return nil, err
	}

	file, err := StorePDFFile(filename, status.Hash, taxSaleURL, key)
	if err != nil {
		return nil, err
	}
	if err := StoreProperties(file.ID, items); err != nil {
		return nil, err
	}

	if status.Changed && s.notifier != nil {
		added, removed := diffParcels(previous, items)
		s.notifier.ChangeDetected(notify.ChangeDetails{
			County:            county.Name,
			URL:               taxSaleURL,
			NewHash:           status.Hash,
			IsNew:             status.IsNew,
			TotalProperties:   len(items),
			NewProperties:     added,
			RemovedProperties: removed,
		})
	}

	logger.WithFields(log.Fields{
		"properties": len(items),
		"photos":     photoCount,
		"geocoded":   stats.Successful,
	}).Info("refresh pass complete")

	return &RefreshResult{
		PassID:     passID,
		County:     key,
		SourceURL:  taxSaleURL,
		Changed:    status.Changed,
		Properties: items,
		Geocoding:  stats,
		PhotoCount: photoCount,
	}, nil
}

// DiscoverLinks exposes dynamic URL discovery for the pdf-links endpoint.
func (s *Service) DiscoverLinks(ctx context.Context, key string) (*scraper.Links, error) {
	county, err := s.County(key)
	if err != nil {
		return nil, err
	}
	if !county.DynamicURLs || county.SourceWebsite == "" {
		return &scraper.Links{TaxSaleURL: county.URL, PhotoListURL: county.PhotoListURL}, nil
	}
	return s.scraper.Discover(ctx, county.SourceWebsite)
}

func (s *Service) resolveURLs(ctx context.Context, county config.CountyConfig, logger *log.Entry) (string, string) {
	taxSaleURL, photoListURL := county.URL, county.PhotoListURL
	if !county.DynamicURLs || county.SourceWebsite == "" {
		return taxSaleURL, photoListURL
	}

	links, err := s.scraper.Discover(ctx, county.SourceWebsite)
	if err != nil {
		logger.WithError(err).Warn("pdf link discovery failed, using configured urls")
		return taxSaleURL, photoListURL
	}
	if links.TaxSaleURL != "" {
		taxSaleURL = links.TaxSaleURL
	}
	if links.PhotoListURL != "" {
		photoListURL = links.PhotoListURL
	}
	return taxSaleURL, photoListURL
}

func (s *Service) applyPhotoList(ctx context.Context, photoURL string, items []Listing, logger *log.Entry) int {
	data, err := s.download(ctx, photoURL)
	if err != nil {
		logger.WithError(err).Warn("photo list download failed")
		return 0
	}
	doc, err := pdftext.Extract(data)
	if err != nil {
		logger.WithError(err).Warn("photo list extraction failed")
		return 0
	}

	entries := photos.Correlate(doc.Text)
	matched := mergePhotoEntries(entries, items)
	logger.WithFields(log.Fields{"entries": len(entries), "matched": matched}).Info("correlated photo list")
	return matched
}

// mergePhotoEntries attaches matched photo-list entries to their listings.
// The photo list's starting bid is authoritative over whatever the amount
// heuristics found in the main document.
func mergePhotoEntries(entries map[string]*photos.Entry, items []Listing) int {
	matched := 0
	for i := range items {
		entry, ok := entries[items[i].ParcelID]
		if !ok {
			continue
		}
		items[i].HasPhoto = true
		items[i].Photo = entry
		if entry.BidAmount != "" {
			items[i].BidAmount = entry.BidAmount
			items[i].Amount = entry.BidAmount
		}
		matched++
	}
	return matched
}

func (s *Service) geocodeItems(ctx context.Context, county config.CountyConfig, items []Listing) geocode.Stats {
	batch := make([]geocode.Item, len(items))
	for i, l := range items {
		batch[i] = geocode.Item{Address: l.Address, ZipCode: l.ZipCode}
		items[i].GeocodeStatus = GeocodePending
	}
	results, stats := s.geocoder.Batch(ctx, batch, county.Name, county.State)
	for i, res := range results {
		switch {
		case res.Success && res.Cached:
			items[i].Coordinates = res.Coordinates
			items[i].Geocoded = true
			items[i].GeocodeStatus = GeocodeCached
		case res.Success:
			items[i].Coordinates = res.Coordinates
			items[i].Geocoded = true
			items[i].GeocodeStatus = GeocodeResolved
		default:
			items[i].GeocodeStatus = GeocodeFailed
			items[i].GeocodeMessage = res.Message
		}
	}
	return stats
}

func (s *Service) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.Geocoder.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func pdfFilename(county, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return county + "_listing.pdf"
	}
	return county + "_" + path.Base(u.Path)
}

func toListings(props []Property) []Listing {
	out := make([]Listing, len(props))
	for i, p := range props {
		out[i] = listingFromProperty(p)
	}
	return out
}

func diffParcels(previous []Property, current []Listing) (added, removed int) {
	old := make(map[string]bool, len(previous))
	for _, p := range previous {
		old[p.ParcelID] = true
	}
	cur := make(map[string]bool, len(current))
	for _, l := range current {
		cur[l.ParcelID] = true
		if !old[l.ParcelID] {
			added++
		}
	}
	for id := range old {
		if !cur[id] {
			removed++
		}
	}
	return added, removed
}
