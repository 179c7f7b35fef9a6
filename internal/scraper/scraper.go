// Package scraper discovers the current tax sale PDF links on a county's
// website. Counties replace the PDF assets each sale cycle, so the configured
// URLs are treated as fallbacks and the live page is checked first.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/apex/log"
)

const assetPathMarker = "cms.chathamcountyga.gov/api/assets/taxcommissioner"

// Links holds the discovered PDF URLs. Either field may be empty when the
// page yields no matching link.
type Links struct {
	TaxSaleURL   string
	PhotoListURL string
}

type candidate struct {
	url      string
	text     string
	priority int
}

type Scraper struct {
	httpClient *http.Client
	userAgent  string
}

func New(timeout time.Duration, userAgent string) *Scraper {
	return &Scraper{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Discover fetches the county page and locates the current listing PDFs. It
// anchors on the "Tax Sale List" heading and searches nearby containers
// before falling back to a whole-page scan.
func (s *Scraper) Discover(ctx context.Context, pageURL string) (*Links, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	return extractLinks(doc), nil
}

func extractLinks(doc *goquery.Document) *Links {
	var candidates []candidate

	// Anchor on the section heading and collect asset links in and around
	// its container.
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if !strings.Contains(sel.Text(), "Tax Sale List") || sel.Children().Length() > 20 {
			return
		}
		collectAnchors(sel, 10, &candidates)
		collectAnchors(sel.Next(), 8, &candidates)
		collectAnchors(sel.Parent(), 6, &candidates)
	})

	if len(candidates) == 0 {
		collectAnchors(doc.Selection, 1, &candidates)
	}
	if len(candidates) == 0 {
		return &Links{}
	}

	// Prefer higher-priority matches, main list before photo list.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return !isPhotoLink(candidates[i].text) && isPhotoLink(candidates[j].text)
	})

	links := &Links{}
	for _, c := range candidates {
		if isPhotoLink(c.text) {
			if links.PhotoListURL == "" {
				links.PhotoListURL = c.url
			}
		} else if links.TaxSaleURL == "" {
			links.TaxSaleURL = c.url
		}
	}
	log.WithFields(log.Fields{
		"taxSaleURL":   links.TaxSaleURL,
		"photoListURL": links.PhotoListURL,
		"candidates":   len(candidates),
	}).Info("discovered pdf links")
	return links
}

func collectAnchors(sel *goquery.Selection, priority int, out *[]candidate) {
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, assetPathMarker) {
			return
		}
		for _, c := range *out {
			if c.url == href {
				return
			}
		}
		*out = append(*out, candidate{url: href, text: strings.TrimSpace(a.Text()), priority: priority})
	})
}

func isPhotoLink(text string) bool {
	return strings.Contains(strings.ToLower(text), "photo")
}
