// Package postproc applies the final per-record repairs after joining:
// canonical DOI placement, dashed-placeholder author restoration,
// number-prefix stripping, and character-level cleanup.
package postproc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sandell/refmine/internal/doiutil"
	"github.com/sandell/refmine/internal/refrec"
	"github.com/sandell/refmine/internal/segment"
	"github.com/sandell/refmine/internal/textnorm"
)

// DefaultPlaceholder is the repeated-author placeholder some styles use
// for consecutive works by the same author.
const DefaultPlaceholder = "---. "

// DefaultMaxPrefixDigits caps how many digits a strippable number
// prefix may carry.
const DefaultMaxPrefixDigits = 4

// Options configures Finalize.
type Options struct {
	// StripNumbers removes leading entry numbers ('12.', '[3]', '7 ')
	// from each record.
	StripNumbers bool
	// MaxPrefixDigits caps the digit width of strippable prefixes; 0
	// means DefaultMaxPrefixDigits.
	MaxPrefixDigits int
	// Placeholder overrides the dashed repeated-author placeholder; ""
	// means DefaultPlaceholder.
	Placeholder string
}

var (
	yearPatterns  = segment.BuildYearPatterns()
	trailingComma = regexp.MustCompile(`,\s*$`)
	accessTrailer = regexp.MustCompile(`(?i)\[\s*accessed\s+on\s*\d{4}-\d{2}-\d{2}\s*\]\.?\s*$`)
)

// ExtractAuthorPrefix returns the text before the first year occurrence
// in line, parenthesized or bare, whichever comes first. Trailing
// spaces and a trailing comma are stripped; periods that belong to
// initials stay. Returns "" when the line has no year.
func ExtractAuthorPrefix(line string) string {
	parenLoc := yearPatterns.Paren.FindStringIndex(line)
	bareStart, _ := segment.FindBareYear(line)

	start := -1
	switch {
	case parenLoc != nil && bareStart >= 0:
		start = parenLoc[0]
		if bareStart < start {
			start = bareStart
		}
	case parenLoc != nil:
		start = parenLoc[0]
	case bareStart >= 0:
		start = bareStart
	}
	if start < 0 {
		return ""
	}
	prefix := strings.TrimRight(line[:start], " \t")
	prefix = trailingComma.ReplaceAllString(prefix, "")
	return strings.TrimRight(prefix, " \t")
}

// RepairDashPlaceholders replaces a leading repeated-author placeholder
// with the author prefix of the nearest preceding record that has one.
// Records before the first author-bearing record keep their placeholder.
func RepairDashPlaceholders(records []refrec.Record, placeholder string) []refrec.Record {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	out := make([]refrec.Record, len(records))
	lastPrefix := ""
	for i, r := range records {
		out[i] = r
		stripped := strings.TrimLeft(r.Text, " \t")
		if strings.HasPrefix(stripped, placeholder) {
			if lastPrefix != "" {
				rest := stripped[len(placeholder):]
				out[i].Text = lastPrefix + " " + rest
			}
			continue
		}
		if prefix := ExtractAuthorPrefix(stripped); prefix != "" {
			lastPrefix = prefix
		}
	}
	return out
}

// numberPrefixRes builds the strippable-prefix matcher for a digit cap.
// The four forms mirror the entry-marker styles: '12.', '[12]', '(12)',
// '12 '. Dotted, parenthesized, and bare digits are captured so the
// year guard can leave year-first records alone.
func numberPrefixRe(maxDigits int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^\s*(?:(\d{1,%d})\.\s*|\[\d{1,%d}\]\s*|\((\d{1,%d})\)\s*|(\d{1,%d})\s+)`, maxDigits, maxDigits, maxDigits, maxDigits))
}

// StripNumberPrefix removes one leading entry number from text. Bare
// digit prefixes that parse as a plausible publication year are left
// alone so year-first records ('2001. Title ...') survive intact.
func StripNumberPrefix(text string, maxDigits int) string {
	if maxDigits <= 0 {
		maxDigits = DefaultMaxPrefixDigits
	}
	re := numberPrefixRe(maxDigits)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	for _, digits := range m[1:] {
		if digits == "" {
			continue
		}
		if n, err := strconv.Atoi(digits); err == nil && n >= 1750 && n <= 2030 {
			return text
		}
	}
	return text[len(m[0]):]
}

// Finalize runs the shared finishing sequence over joined records: DOIs
// move to the end in canonical form (twice, to catch identifiers the
// first relocation uncovers), spacing after canonical DOIs is repaired,
// diaeresis extraction damage is fixed, optional number prefixes are
// stripped, and any trailing access-date marker is copied into the
// record trailer.
func Finalize(records []refrec.Record, opts Options) []refrec.Record {
	out := make([]refrec.Record, len(records))
	for i, r := range records {
		text := doiutil.MoveToEnd(r.Text)
		text = doiutil.MoveToEnd(text)
		text = doiutil.EnsureSpaceAfterCanonical(text)
		text = textnorm.FixDiaeresis(text)
		if opts.StripNumbers {
			text = StripNumberPrefix(text, opts.MaxPrefixDigits)
		}
		text = strings.TrimSpace(text)

		out[i] = r
		out[i].Text = text
		if m := accessTrailer.FindString(text); m != "" {
			out[i].Trailer = strings.TrimSpace(m)
		}
	}
	return out
}
