package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Parcel id forms seen in the county's PDFs: a fused alphanumeric id
// (10115A03001), a separator-joined id (10045-2-123), or two bare numeric
// groups split across consecutive lines (10045 / 12032).
var (
	completeParcelAlpha = regexp.MustCompile(`^\d{5}[A-Z]\d{5}$`)
	completeParcelSep   = regexp.MustCompile(`^\d{4,6}[\-.]\d{2,4}[\-.]\d{3,4}$`)
	numericGroup        = regexp.MustCompile(`^\d{4,6}$`)
)

// zipLike reports whether tok is a 5-digit token starting with 3, the local
// ZIP shape (314xx). Used to keep ZIP codes out of parcel ids and amounts.
func zipLike(tok string) bool {
	return len(tok) == 5 && strings.HasPrefix(tok, "3") && numericGroup.MatchString(tok)
}

// parcelStartAt tests the cursor position for a parcel-start pattern and
// returns the normalized id plus how many lines the pattern spans.
func parcelStartAt(c *Cursor) (id string, span int, ok bool) {
	line, exists := c.Peek(0)
	if !exists {
		return "", 0, false
	}
	if completeParcelAlpha.MatchString(line) || completeParcelSep.MatchString(line) {
		return line, 1, true
	}
	next, hasNext := c.Peek(1)
	if numericGroup.MatchString(line) && hasNext && numericGroup.MatchString(next) {
		if zipLike(line) {
			return "", 0, false
		}
		return line + "-" + next, 2, true
	}
	return "", 0, false
}

// isParcelBoundary is the look-ahead stop condition: the upcoming line opens
// another record.
func isParcelBoundary(c *Cursor) bool {
	_, _, ok := parcelStartAt(c)
	return ok
}

// Amount detection. Rules are tried in order per line and the first match
// anywhere in the look-ahead window wins; later lines never override.
var (
	dollarToken   = regexp.MustCompile(`\$[\d,]+\.?\d*`)
	bareDecimal   = regexp.MustCompile(`^[\d,]+\.\d{2}$`)
	splitNumeric  = regexp.MustCompile(`^[\d,]+\.?\d*$`)
	bareInteger   = regexp.MustCompile(`^\d{5,}$`)
	genericAmount = regexp.MustCompile(`[\d,]+\.?\d*`)
	digitsOnly    = regexp.MustCompile(`^\d+$`)
)

type amountRule struct {
	name  string
	apply func(line, prev string) (string, bool)
}

var amountRules = []amountRule{
	{"dollar-token", func(line, _ string) (string, bool) {
		if !strings.Contains(line, "$") {
			return "", false
		}
		if m := dollarToken.FindString(line); m != "" {
			return m, true
		}
		return "", false
	}},
	{"bare-decimal", func(line, _ string) (string, bool) {
		if bareDecimal.MatchString(line) {
			return "$" + line, true
		}
		return "", false
	}},
	{"split-dollar", func(line, prev string) (string, bool) {
		if prev == "$" && splitNumeric.MatchString(line) {
			return "$" + line, true
		}
		return "", false
	}},
	{"integer-as-cents", func(line, _ string) (string, bool) {
		// A big bare integer is an amount with the decimal point lost in
		// extraction; ZIP-shaped tokens are excluded.
		if !bareInteger.MatchString(line) || zipLike(line) {
			return "", false
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil || n <= 10000 {
			return "", false
		}
		return formatCents(n), true
	}},
	{"short-numeric", func(line, _ string) (string, bool) {
		// Catch formatted amounts on short lines, but never a bare integer:
		// those are house numbers or belong to integer-as-cents.
		if len(line) >= 15 || digitsOnly.MatchString(line) {
			return "", false
		}
		m := genericAmount.FindString(line)
		if m == "" || zipLike(m) {
			return "", false
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil || v <= 100 {
			return "", false
		}
		return "$" + m, true
	}},
}

// detectAmount runs the amount rule chain for one line. prev is the raw line
// immediately before it in the document.
func detectAmount(line, prev string) (string, bool) {
	for _, r := range amountRules {
		if amt, ok := r.apply(line, prev); ok {
			return amt, true
		}
	}
	return "", false
}

// formatCents renders an integer cent count as $d,ddd.cc.
func formatCents(n int64) string {
	dollars := n / 100
	cents := n % 100
	return "$" + groupThousands(strconv.FormatInt(dollars, 10)) + "." + twoDigits(cents)
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// ZIP detection inside the look-ahead window.
var (
	standaloneZip = regexp.MustCompile(`^\d{5}$`)
	saidPrefix    = regexp.MustCompile(`(?i)^\s*said(\s+property)?`)
	allCapsLine   = regexp.MustCompile(`^[A-Z\s]+$`)
	embeddedZip   = regexp.MustCompile(`(?i)(\d{5})\s*,?\s*said(\s+property)?(\s+being)?`)
	trailingZip   = regexp.MustCompile(`(\d{5})\s*,?\s*$`)
	anyBoundedZip = regexp.MustCompile(`\b(\d{5})\b`)
	zipBeforeSaid = regexp.MustCompile(`(?i)\b(\d{5})\b\s*,?\s*said`)
	zipOrLineEnd  = regexp.MustCompile(`(?i)(\d{5})(\s*,?\s*said(\s+property)?(\s+being)?|$)`)
)

// detectZip tries to confirm a ZIP code on one line. following is the next
// raw document line ("" at end of input), used to confirm a standalone
// 5-digit line really is a ZIP.
func detectZip(line, following string) (string, bool) {
	if standaloneZip.MatchString(line) {
		if saidPrefix.MatchString(following) || following == "" || allCapsLine.MatchString(following) {
			return line, true
		}
	}
	if m := embeddedZip.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	// Trailing rule only applies to lines with content before the ZIP; a
	// bare 5-digit line must pass the standalone confirmation above.
	if !standaloneZip.MatchString(line) {
		if m := trailingZip.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// comprehensiveZipSearch is the fallback re-scan over all collected data
// lines when the in-window rules found nothing confident.
func comprehensiveZipSearch(lines []string) string {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{5})\s*,?\s*said\s+property\s+being`),
		regexp.MustCompile(`(?i)(\d{5})\s*,?\s*said\s+property`),
		regexp.MustCompile(`(?i)(\d{5})\s*,?\s*said`),
		trailingZip,
		zipBeforeSaid,
		anyBoundedZip,
	}
	for i, line := range lines {
		for _, p := range patterns {
			if m := p.FindStringSubmatch(line); m != nil {
				return m[1]
			}
		}
		// Cross-line form: bare ZIP with the "said property" clause on the
		// following line.
		if standaloneZip.MatchString(strings.TrimSpace(line)) && i+1 < len(lines) {
			if saidPrefix.MatchString(lines[i+1]) {
				return strings.TrimSpace(line)
			}
		}
	}
	return ""
}
