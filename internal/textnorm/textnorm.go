// Package textnorm repairs PDF-extraction damage in raw page text and
// produces the normalized line stream consumed by the rest of the
// pipeline: unicode cleanup, dehyphenation, and removal of artifact
// lines such as running page numbers and CID markers.
package textnorm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/sandell/refmine/internal/refrec"
)

// DefaultHyphenJoinMaxIter bounds the dehyphenation fixed-point pass.
const DefaultHyphenJoinMaxIter = 8

// PageWindow bounds which bare integers count as running page-number lines.
type PageWindow struct {
	Min int
	Max int
}

// DefaultPageWindow matches the page range of typical article PDFs.
var DefaultPageWindow = PageWindow{Min: 50, Max: 400}

// Options configures the normalizer.
type Options struct {
	PageWindow        PageWindow
	HyphenJoinMaxIter int
}

func (o *Options) fill() {
	if o.PageWindow.Max == 0 {
		o.PageWindow = DefaultPageWindow
	}
	if o.HyphenJoinMaxIter <= 0 {
		o.HyphenJoinMaxIter = DefaultHyphenJoinMaxIter
	}
}

// ErrEmptyInput signals that the source yielded no usable text at all.
var ErrEmptyInput = errors.New("textnorm: no usable text in input")

var (
	pageNumberRe  = regexp.MustCompile(`^\s*(\d+)\s*$`)
	hyphenOnlyRe  = regexp.MustCompile(`^[-\x{00AD}\x{2010}-\x{2015}\x{2212}\s]+$`)
	cidMarkerRe   = regexp.MustCompile(`(?i)^\(cid:\s*\d+\)\s*$`)
	uiDateRe      = regexp.MustCompile(`\d{4}/\d{1,2}/\d{1,2}`)
	uiTimeRe      = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	uiPageWordRe  = regexp.MustCompile(`(?i)\bpage\b`)
	uiHashNumRe   = regexp.MustCompile(`#\d+`)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	tabRunRe      = regexp.MustCompile(`\t+`)
)

// invisible characters replaced by a plain space: NBSP, narrow NBSP,
// word joiner, BOM.
var spaceLikes = []string{"\u00A0", "\u202F", "\u2060", "\uFEFF"}

// zero-width characters removed outright: ZWSP, ZWNJ, ZWJ, LRM, RLM.
var zeroWidths = []string{"\u200B", "\u200C", "\u200D", "\u200E", "\u200F"}

// dash variants (and soft hyphen) folded to ASCII '-'.
var dashLikes = []string{
	"\u2010", "\u2011", "\u2012", "\u2013", "\u2014", "\u2015",
	"\u2212", "\u00AD",
}

// NormalizeLine canonicalizes invisible unicode and hyphen variants in a
// single line: NBSP family to space, zero-width characters removed, dash
// variants to '-', whitespace runs collapsed, ends trimmed.
func NormalizeLine(s string) string {
	if s == "" {
		return s
	}
	for _, sp := range spaceLikes {
		s = strings.ReplaceAll(s, sp, " ")
	}
	for _, z := range zeroWidths {
		s = strings.ReplaceAll(s, z, "")
	}
	for _, d := range dashLikes {
		s = strings.ReplaceAll(s, d, "-")
	}
	s = tabRunRe.ReplaceAllString(s, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsPageNumberLine reports whether the line is a bare integer inside the
// page window, i.e. a running page marker rather than content.
func IsPageNumberLine(s string, w PageWindow) bool {
	m := pageNumberRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	return n >= w.Min && n <= w.Max
}

// IsHyphenOnlyLine reports whether the line consists only of hyphen-like
// characters and whitespace (a common extraction artifact).
func IsHyphenOnlyLine(s string) bool {
	return s != "" && hyphenOnlyRe.MatchString(s)
}

// IsCIDMarker reports whether the line is a raw CID glyph marker like
// "(cid:105)".
func IsCIDMarker(s string) bool {
	return cidMarkerRe.MatchString(strings.TrimSpace(s))
}

// IsUITimestampLine reports whether the line looks like viewer-generated
// footer output: a Y/M/D date, a clock time, the word "page", and a
// "#n" token must all be present.
func IsUITimestampLine(s string) bool {
	st := strings.TrimSpace(s)
	if st == "" {
		return false
	}
	return uiDateRe.MatchString(st) &&
		uiTimeRe.MatchString(st) &&
		uiPageWordRe.MatchString(st) &&
		uiHashNumRe.MatchString(st)
}

// FixDiaeresis repairs the combining-diaeresis extraction error where
// "för" comes out as "f¨or".
func FixDiaeresis(s string) string {
	if s == "" {
		return s
	}
	r := strings.NewReplacer(
		"¨o", "ö", "¨a", "ä", "¨u", "ü",
		"¨O", "Ö", "¨A", "Ä", "¨U", "Ü",
	)
	return r.Replace(s)
}

// Normalize turns raw per-page text into the normalized line stream:
// per-line unicode cleanup, artifact-line removal, and the dehyphenation
// fixed point. Returns ErrEmptyInput when nothing survives.
func Normalize(pages []string, opts Options) ([]refrec.Line, error) {
	opts.fill()

	var lines []refrec.Line
	for pageIdx, page := range pages {
		for _, raw := range strings.Split(strings.ReplaceAll(page, "\f", "\n"), "\n") {
			s := NormalizeLine(raw)
			if s == "" {
				continue
			}
			if IsHyphenOnlyLine(s) || IsCIDMarker(s) || IsUITimestampLine(s) {
				continue
			}
			if IsPageNumberLine(s, opts.PageWindow) {
				continue
			}
			lines = append(lines, refrec.Line{Text: s, Page: pageIdx})
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}
	return Dehyphenate(lines, opts.HyphenJoinMaxIter), nil
}

// Dehyphenate joins lines broken by a line-wrap hyphen, repeating until a
// fixed point or maxIter passes. A hyphen followed by a lowercase letter
// on the next line is a wrap artifact and is removed; a following
// uppercase letter or digit marks a deliberate compound break, so the
// hyphen stays and the lines join with a space.
func Dehyphenate(lines []refrec.Line, maxIter int) []refrec.Line {
	if maxIter <= 0 {
		maxIter = DefaultHyphenJoinMaxIter
	}
	prev := lines
	for iter := 0; iter < maxIter; iter++ {
		out := make([]refrec.Line, 0, len(prev))
		changed := false
		i := 0
		for i < len(prev) {
			curr := prev[i]
			if strings.HasSuffix(curr.Text, "-") && i+1 < len(prev) {
				next := prev[i+1]
				first := firstRune(next.Text)
				if isLower(first) {
					out = append(out, refrec.Line{
						Text: strings.TrimSuffix(curr.Text, "-") + next.Text,
						Page: curr.Page,
					})
				} else {
					out = append(out, refrec.Line{
						Text: curr.Text + " " + next.Text,
						Page: curr.Page,
					})
				}
				changed = true
				i += 2
				continue
			}
			out = append(out, curr)
			i++
		}
		if !changed {
			return out
		}
		prev = out
	}
	return prev
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func isLower(r rune) bool {
	return unicode.IsLower(r)
}
