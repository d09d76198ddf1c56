// Package layout classifies the reference section as a numbered list or
// an author-year list by counting entry markers over the section span.
package layout

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/sandell/refmine/internal/refrec"
	"github.com/sandell/refmine/internal/segment"
)

// ErrAmbiguous signals that marker counts land below every trigger
// threshold but too high to safely default to an author-year layout.
var ErrAmbiguous = errors.New("layout: marker counts ambiguous")

// Default thresholds. Bracketed and parenthesized markers rarely occur
// in prose, so 15 occurrences are decisive. Bare "N." markers collide
// with enumerations and need 10, or 30 when reading until end of file.
const (
	DefaultBracketThreshold = 15
	DefaultParenThreshold   = 15
	DefaultBareThreshold    = 10
	DefaultBareThresholdEOF = 30
	DefaultMaxMarkerDigits  = 3
)

// NumberedStyle identifies the marker notation of a numbered list.
type NumberedStyle int

const (
	StyleNone NumberedStyle = iota
	StyleBracket
	StyleParen
	StyleBare
)

func (s NumberedStyle) String() string {
	switch s {
	case StyleBracket:
		return "bracket"
	case StyleParen:
		return "paren"
	case StyleBare:
		return "bare"
	}
	return "none"
}

// Options configures classification thresholds.
type Options struct {
	BracketThreshold int
	ParenThreshold   int
	BareThreshold    int
	// BareThresholdEOF replaces BareThreshold when the section extends
	// to end of file.
	BareThresholdEOF int
	// MaxMarkerDigits caps marker width so page numbers and years never
	// count as entry markers.
	MaxMarkerDigits int
	UntilEOF        bool
	// Forced pins the layout, skipping detection. Used when the caller
	// already knows the list style.
	Forced *refrec.LayoutMode
}

func (o *Options) fill() {
	if o.BracketThreshold <= 0 {
		o.BracketThreshold = DefaultBracketThreshold
	}
	if o.ParenThreshold <= 0 {
		o.ParenThreshold = DefaultParenThreshold
	}
	if o.BareThreshold <= 0 {
		o.BareThreshold = DefaultBareThreshold
	}
	if o.BareThresholdEOF <= 0 {
		o.BareThresholdEOF = DefaultBareThresholdEOF
	}
	if o.MaxMarkerDigits <= 0 {
		o.MaxMarkerDigits = DefaultMaxMarkerDigits
	}
}

// Decision is the classification outcome. Marker carries the compiled
// prefix pattern for the detected style so the segmenter can strip and
// compare markers without recompiling.
type Decision struct {
	Mode        refrec.LayoutMode
	Style       NumberedStyle
	Marker      *regexp.Regexp
	MarkerCount int
}

// MarkerRes returns the three marker matchers for a digit cap.
func MarkerRes(maxDigits int) (bracket, paren, bare *regexp.Regexp) {
	bracket = regexp.MustCompile(fmt.Sprintf(`^\[\s*\d{1,%d}\.?\s*\]\s*`, maxDigits))
	paren = regexp.MustCompile(fmt.Sprintf(`^\(\s*\d{1,%d}\.?\s*\)\s*`, maxDigits))
	bare = regexp.MustCompile(fmt.Sprintf(`^\d{1,%d}\.\s*`, maxDigits))
	return
}

// Classify counts entry markers over the section span and picks the
// layout. Style preference is bracket, then paren, then bare: the
// noisier a marker family, the higher the evidence bar. When no family
// reaches its threshold the conservative default is the author-year
// layout, except in the genuinely ambiguous band where every family
// sits in [threshold/2, threshold) and fewer than three lines look like
// author signatures; that case returns ErrAmbiguous.
func Classify(span []refrec.Line, opts Options) (Decision, error) {
	opts.fill()

	bracketRe, parenRe, bareRe := MarkerRes(opts.MaxMarkerDigits)
	var bracketCount, parenCount, bareCount int
	for _, ln := range span {
		switch {
		case bracketRe.MatchString(ln.Text):
			bracketCount++
		case parenRe.MatchString(ln.Text):
			parenCount++
		case bareRe.MatchString(ln.Text):
			bareCount++
		}
	}

	if opts.Forced != nil {
		d := Decision{Mode: *opts.Forced}
		if *opts.Forced == refrec.LayoutNumbered {
			// Detection is skipped but the segmenter still needs the
			// marker pattern, so pick the most frequent family.
			switch {
			case bracketCount >= parenCount && bracketCount >= bareCount:
				d.Style, d.Marker, d.MarkerCount = StyleBracket, bracketRe, bracketCount
			case parenCount >= bareCount:
				d.Style, d.Marker, d.MarkerCount = StyleParen, parenRe, parenCount
			default:
				d.Style, d.Marker, d.MarkerCount = StyleBare, bareRe, bareCount
			}
		}
		return d, nil
	}

	bareThreshold := opts.BareThreshold
	if opts.UntilEOF {
		bareThreshold = opts.BareThresholdEOF
	}

	switch {
	case bracketCount >= opts.BracketThreshold:
		return Decision{Mode: refrec.LayoutNumbered, Style: StyleBracket, Marker: bracketRe, MarkerCount: bracketCount}, nil
	case parenCount >= opts.ParenThreshold:
		return Decision{Mode: refrec.LayoutNumbered, Style: StyleParen, Marker: parenRe, MarkerCount: parenCount}, nil
	case bareCount >= bareThreshold:
		return Decision{Mode: refrec.LayoutNumbered, Style: StyleBare, Marker: bareRe, MarkerCount: bareCount}, nil
	}

	if inBand(bracketCount, opts.BracketThreshold) &&
		inBand(parenCount, opts.ParenThreshold) &&
		inBand(bareCount, bareThreshold) &&
		countAuthorLines(span) < 3 {
		return Decision{}, ErrAmbiguous
	}

	return Decision{Mode: refrec.LayoutAPA}, nil
}

func inBand(count, threshold int) bool {
	return count >= threshold/2 && count < threshold
}

var classifyAuthorPatterns = segment.BuildAuthorPatterns(false)

func countAuthorLines(span []refrec.Line) int {
	n := 0
	for _, ln := range span {
		if classifyAuthorPatterns.StartLike.MatchString(ln.Text) {
			n++
		}
	}
	return n
}
