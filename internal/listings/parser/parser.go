// Package parser turns raw tax-sale PDF text into structured parcel records.
// The document layout is a single county's current format; everything here is
// heuristic and tuned to it.
package parser

import (
	"regexp"
	"strings"

	"github.com/taxsalemap/backend/internal/address"
)

// Record is one parsed parcel listing, produced per parsing pass. Fields are
// best effort: only ParcelID is guaranteed non-empty.
type Record struct {
	ParcelID       string   `json:"parcelId"`
	Owner          string   `json:"owner"`
	RawAddress     string   `json:"rawAddress"`
	CleanedAddress string   `json:"cleanedAddress"`
	ZipCode        string   `json:"zipCode"`
	Amount         string   `json:"amount"`
	AllLines       []string `json:"-"`
}

const lookAheadWindow = 25

var (
	bareNumber    = regexp.MustCompile(`^\d+$`)
	fiveDigits    = regexp.MustCompile(`^\d{5}$`)
	houseLine     = regexp.MustCompile(`(?i)^\d{1,4}\s+[A-Z\s]+`)
	houseAddrLine = regexp.MustCompile(`(?i)^\d{1,4}\s+[A-Z\s]+(?:` + streetTypesAlt + `)`)
	decimalOnly   = regexp.MustCompile(`^[\d,]+\.[\d,]+$`)
)

const streetTypesAlt = `ST|AVE|DR|CT|CIR|LN|RD|WAY|PL|BLVD|PKWY|HWY`

// SplitLines trims and drops empty lines, the form every parsing entry point
// expects.
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ParseText parses raw extracted PDF text.
func ParseText(text string) []*Record {
	return Parse(SplitLines(text))
}

// Parse scans lines for parcel-start patterns and assembles a record from the
// bounded look-ahead window after each one. Duplicate parcel ids are dropped,
// first occurrence wins. Malformed input produces an empty slice, never an
// error.
func Parse(lines []string) []*Record {
	var records []*Record
	seen := make(map[string]bool)
	c := NewCursor(lines)

	for !c.Done() {
		id, span, ok := parcelStartAt(c)
		if !ok {
			c.Advance(1)
			continue
		}
		if seen[id] {
			c.Advance(span)
			continue
		}
		seen[id] = true
		c.Advance(span)

		rec := &Record{ParcelID: id}
		collectWindow(c, lines, rec)
		reconstruct(rec)
		records = append(records, rec)
	}

	// Final pass keyed by parcel id; the scan's seen map is not the only
	// path a duplicate can take.
	return dedupe(records)
}

// collectWindow consumes the record's data lines, detecting amount and ZIP
// along the way. First confident match wins for both.
func collectWindow(c *Cursor, lines []string, rec *Record) {
	foundAmount := false
	start := c.Pos()

	data := c.ConsumeUntil(isParcelBoundary, lookAheadWindow)
	for k, line := range data {
		abs := start + k

		if !foundAmount {
			prev := ""
			if abs > 0 {
				prev = lines[abs-1]
			}
			if amt, ok := detectAmount(line, prev); ok {
				rec.Amount = amt
				foundAmount = true
			}
		}

		if rec.ZipCode == "" {
			following := ""
			if abs+1 < len(lines) {
				following = lines[abs+1]
			}
			if zip, ok := detectZip(line, following); ok {
				rec.ZipCode = zip
			}
		}
	}
	rec.AllLines = data

	if rec.ZipCode == "" {
		rec.ZipCode = comprehensiveZipSearch(data)
	}
}

// reconstruct splits the collected data lines into owner text and the raw
// address span, then runs the address cleaner on the latter.
func reconstruct(rec *Record) {
	data := rec.AllLines
	if len(data) == 0 {
		return
	}

	houseIdx := -1
	zipIdx := -1
	for k, line := range data {
		if houseIdx == -1 && bareNumber.MatchString(line) && !fiveDigits.MatchString(line) {
			houseIdx = k
		} else if houseIdx == -1 && houseLine.MatchString(line) && houseAddrLine.MatchString(line) {
			houseIdx = k
		}
		if fiveDigits.MatchString(line) || zipOrLineEnd.MatchString(line) {
			zipIdx = k
		}
	}

	var ownerParts, addrParts []string
	if houseIdx != -1 {
		ownerParts = filterOwnerParts(data[:houseIdx])
		end := len(data)
		if zipIdx != -1 {
			end = zipIdx
		}
		if end < houseIdx {
			end = houseIdx
		}
		addrParts = filterAddressParts(data[houseIdx:end])
	} else {
		// No house number anywhere: positional split, half owner half
		// address.
		mid := len(data) / 2
		ownerParts = filterOwnerParts(data[:mid])
		addrParts = filterAddressParts(data[mid:])
	}

	if len(ownerParts) > 4 {
		ownerParts = ownerParts[:4]
	}
	rec.Owner = strings.Join(ownerParts, " ")
	rec.RawAddress = strings.Join(addrParts, " ")

	res := address.Clean(rec.RawAddress)
	rec.CleanedAddress = res.Cleaned
	if rec.ZipCode == "" && res.ZipCode != "" {
		rec.ZipCode = res.ZipCode
	}
	if rec.ZipCode == "" {
		if m := anyBoundedZip.FindStringSubmatch(rec.RawAddress); m != nil {
			rec.ZipCode = m[1]
		}
	}
}

func filterOwnerParts(parts []string) []string {
	var out []string
	for _, p := range parts {
		if p == "" || strings.Contains(p, "$") || decimalOnly.MatchString(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

var legalFiller = map[string]bool{
	"said": true, "property": true, "being": true, "formerly": true,
}

func filterAddressParts(parts []string) []string {
	var out []string
	for _, p := range parts {
		if p == "" || strings.Contains(p, "$") ||
			decimalOnly.MatchString(p) || fiveDigits.MatchString(p) ||
			legalFiller[strings.ToLower(p)] ||
			strings.Contains(strings.ToLower(p), "said property") {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dedupe(records []*Record) []*Record {
	out := records[:0]
	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.ParcelID] {
			continue
		}
		seen[r.ParcelID] = true
		out = append(out, r)
	}
	return out
}
