// Package photos correlates the county's secondary "photo list" PDF with
// parcel ids from the main listing. The photo list also carries the official
// starting bid, which is more reliable than the amount heuristics used on the
// main document.
package photos

import (
	"regexp"
	"strings"
)

// Entry is one photo-list line matched to a parcel. EstimatedPage is 1-based,
// inferred by counting repeated page headers during the scan.
type Entry struct {
	ParcelID         string `json:"parcelId"`
	EstimatedPage    int    `json:"estimatedPage"`
	BidAmount        string `json:"bidAmount"`
	OwnerAddressHint string `json:"ownerAddressHint"`
	LinePosition     int    `json:"linePosition"`
}

// pageHeaders are the strings repeated at the top of every physical page of
// the photo list.
var pageHeaders = []string{
	"Chatham County Tax Commissioner Office",
	"Tax Sale –",
}

// headerGuardLines: a header seen again within this many lines is an
// extraction artifact of the same physical page, not a page break.
const headerGuardLines = 10

var (
	parcelBid   = regexp.MustCompile(`(?i)^(\d{5}[\s-]?\d{5}|\d{5}[A-Z]\d{5}|\d{4,6}[\s-]\d{4,6})\s*/\s*STARTING\s+BID\s+\$[\d,]+\.?\d*`)
	bidToken    = regexp.MustCompile(`\$[\d,]+\.?\d*`)
	spaceRun    = regexp.MustCompile(`\s+`)
	parcelIDish = regexp.MustCompile(`^\d{4,6}`)
)

// Correlate parses photo-list text into a map keyed by normalized parcel id.
// Duplicate ids keep their first occurrence.
func Correlate(text string) map[string]*Entry {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}

	entries := make(map[string]*Entry)
	estimatedPage := 1
	linesSinceHeader := 0

	for i, line := range lines {
		linesSinceHeader++

		if isPageHeader(line) {
			if linesSinceHeader > headerGuardLines {
				estimatedPage++
			}
			linesSinceHeader = 0
			continue
		}

		m := parcelBid.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		parcelID := spaceRun.ReplaceAllString(m[1], "-")
		if _, dup := entries[parcelID]; dup {
			continue
		}

		hint := ""
		if i+1 < len(lines) {
			next := lines[i+1]
			if !parcelIDish.MatchString(next) && !strings.Contains(next, "Chatham County") {
				hint = next
			}
		}

		entries[parcelID] = &Entry{
			ParcelID:         parcelID,
			EstimatedPage:    estimatedPage,
			BidAmount:        bidToken.FindString(line),
			OwnerAddressHint: hint,
			LinePosition:     i,
		}
	}
	return entries
}

func isPageHeader(line string) bool {
	for _, h := range pageHeaders {
		if strings.Contains(line, h) {
			return true
		}
	}
	return false
}
