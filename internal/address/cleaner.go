// Package address extracts usable street addresses from the legal
// descriptions found in county tax-sale documents. The source text buries the
// mailing address inside boilerplate ("said property being formerly in the
// name of..."), so cleaning is a greedy best-effort pass over ordered
// pattern lists rather than a grammar.
package address

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Result is the outcome of cleaning one raw address string. Cleaned may be
// empty when nothing address-like could be recovered; ZipCode is a 5-digit
// string or empty.
type Result struct {
	Cleaned string
	ZipCode string
}

const streetTypes = `ST|AVE|DR|CT|CIR|LN|RD|WAY|PL|BLVD|PKWY|HWY`

// zipPatterns are tried most-specific first; the first match wins. All carry
// the ZIP in capture group 1 except gluedZipPattern (group 2).
var zipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{5})\s*,?\s*said\s+property\s+being`),
	regexp.MustCompile(`(?i)(\d{5})\s*,?\s*said\s+property`),
	regexp.MustCompile(`(?i)(\d{5})\s*,?\s*said`),
	regexp.MustCompile(`(\d{5})\s*,?\s*$`),
	regexp.MustCompile(`(?i)\b(\d{5})\b\s*,?\s*said`),
	regexp.MustCompile(`\b(\d{5})\b`),
}

// gluedZipPattern catches a ZIP fused to the street type ("CT31405").
var gluedZipPattern = regexp.MustCompile(`(?i)([A-Z]{2,})(\d{5})\b`)

// extractionPatterns pull a plausible street address out of subdivision/lot
// preambles, most specific first.
var extractionPatterns = []*regexp.Regexp{
	// "LOT 26 MISTWOODE SUB 17 RUSTIC LN" -> "17 RUSTIC LN"
	regexp.MustCompile(`(?i)^lot\s+\d+.*?\s+(\d+\s+[A-Z\s]+(?:` + streetTypes + `))`),
	// "105 MILLS RUN S/D PHASE 3 108 BLAINE CT 31405" -> "108 BLAINE CT"
	regexp.MustCompile(`(?i)^.*?(\d+\s+[A-Z\s]+(?:` + streetTypes + `))\s+\d{5}\b`),
	// trailing lot number with comma after the address
	regexp.MustCompile(`(?i)^.*?(\d+\s+[A-Z\s]+(?:` + streetTypes + `))\s+\d+,`),
	// generic: "SOMETHING 123 MAIN ST" -> "123 MAIN ST"
	regexp.MustCompile(`(?i)^.*?(\d+\s+[A-Z\s]+(?:` + streetTypes + `))`),
	// "... SMB 13S 3, 112 ST IVES DR" -> "112 ST IVES DR"
	regexp.MustCompile(`(?i)^.*?,\s*(\d+\s+[A-Z\s]+(?:` + streetTypes + `))`),
}

// legalPatterns strip trailing legal clauses and subdivision references.
// Applied in order, each replacing with the empty string.
var legalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i),?\s*said\s+property\s+being\s+formerly.*$`),
	regexp.MustCompile(`(?i),?\s*said\s+property.*$`),
	regexp.MustCompile(`(?i),?\s*said.*$`),
	regexp.MustCompile(`(?i),?\s*being\s+formerly\s+in\s+the\s+name\s+of.*$`),
	regexp.MustCompile(`(?i),?\s*formerly\s+in\s+the\s+name\s+of.*$`),
	regexp.MustCompile(`(?i),?\s*in\s+rem\s+against\s+the\s+property\s+known\s+as\s+`),
	regexp.MustCompile(`(?i)^in\s+rem\s*`),
	regexp.MustCompile(`(?i)\s+in\s+rem.*$`),
	regexp.MustCompile(`(?i)\s+\d{5}\s*,?\s*said.*$`),
	regexp.MustCompile(`(?i)\s+s/d.*$`),
	regexp.MustCompile(`(?i)\s+sub.*$`),
	regexp.MustCompile(`(?i)\s+subdivision.*$`),
	regexp.MustCompile(`(?i)\s+phase\s+\d+.*$`),
	regexp.MustCompile(`(?i)\s+ph\s+\d+.*$`),
	regexp.MustCompile(`(?i)\s+smb.*$`),
	regexp.MustCompile(`(?i)\s+blk\s+\d+.*$`),
	regexp.MustCompile(`(?i)\s+block\s+\d+.*$`),
	regexp.MustCompile(`(?i)\s+lot\s+\d+.*$`),
	regexp.MustCompile(`(?i)\s+lt\s+\d+.*$`),
	regexp.MustCompile(`\s+\d+,\s*$`),
	regexp.MustCompile(`,\s*$`),
}

var (
	multiSpace     = regexp.MustCompile(`\s+`)
	edgeCommas     = regexp.MustCompile(`^\s*,\s*|\s*,\s*$`)
	leadingAnd     = regexp.MustCompile(`(?i)^(and\s+|&\s+)`)
	trailingAnd    = regexp.MustCompile(`(?i)\s+(and\s+|&\s+).*$`)
	fullStreet     = regexp.MustCompile(`(?i)^\d+\s+[A-Za-z\s]+(?:` + streetTypes + `|HIGHWAY)\b`)
	basicAddress   = regexp.MustCompile(`^\d+\s+\w+`)
	rescueStreet   = regexp.MustCompile(`(?i)(\d+\s+[A-Z\s]+(?:` + streetTypes + `|HIGHWAY))\b`)
	rescueNumbered = regexp.MustCompile(`(?i)(\d+\s+[A-Z\s]{3,})`)
)

// normalizer folds compatibility forms and maps unicode dash variants to a
// plain hyphen; PDF extraction produces both.
var normalizer = transform.Chain(norm.NFKC, runes.Map(func(r rune) rune {
	switch r {
	case '‐', '–', '—':
		return '-'
	}
	return r
}))

// Clean strips legal boilerplate from a raw address and extracts an embedded
// ZIP code. It never fails: an input no heuristic can handle returns the best
// partial string found.
func Clean(raw string) Result {
	if raw == "" {
		return Result{}
	}

	cleaned := raw
	var zip string

	for _, p := range zipPatterns {
		if m := p.FindStringSubmatch(cleaned); m != nil {
			zip = m[1]
			break
		}
	}
	if zip == "" {
		if m := gluedZipPattern.FindStringSubmatch(cleaned); m != nil {
			zip = m[2]
			// Separate the glued ZIP so later patterns see a clean boundary.
			cleaned = gluedZipPattern.ReplaceAllString(cleaned, "$1 $2")
		}
	}

	for _, p := range extractionPatterns {
		if m := p.FindStringSubmatch(cleaned); m != nil && m[1] != "" {
			cleaned = strings.TrimSpace(m[1])
			break
		}
	}

	for _, p := range legalPatterns {
		cleaned = strings.TrimSpace(p.ReplaceAllString(cleaned, ""))
	}

	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	cleaned = edgeCommas.ReplaceAllString(cleaned, "")
	cleaned = leadingAnd.ReplaceAllString(cleaned, "")
	cleaned = trailingAnd.ReplaceAllString(cleaned, "")
	if folded, _, err := transform.String(normalizer, cleaned); err == nil {
		cleaned = folded
	}
	cleaned = strings.TrimSpace(cleaned)

	if fullStreet.MatchString(cleaned) {
		return Result{Cleaned: cleaned, ZipCode: zip}
	}
	if basicAddress.MatchString(cleaned) && len(cleaned) > 5 {
		return Result{Cleaned: cleaned, ZipCode: zip}
	}

	// Too short to geocode; re-scan the original input as a last resort.
	if len(cleaned) < 5 {
		if m := rescueStreet.FindStringSubmatch(raw); m != nil {
			return Result{Cleaned: strings.TrimSpace(m[1]), ZipCode: zip}
		}
		if m := rescueNumbered.FindStringSubmatch(raw); m != nil {
			return Result{Cleaned: strings.TrimSpace(m[1]), ZipCode: zip}
		}
	}

	return Result{Cleaned: cleaned, ZipCode: zip}
}
