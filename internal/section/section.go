// Package section locates the reference/bibliography section inside the
// normalized line stream of a larger document.
package section

import (
	"errors"
	"regexp"
	"strings"

	"github.com/sandell/refmine/internal/refrec"
)

// ErrNotFound signals that no configured heading matched. It is
// recoverable: the caller may retry with other patterns or report an
// empty result instead of failing.
var ErrNotFound = errors.New("section: no reference heading found")

// defaultHeadings are the recognized reference-section headings,
// English and Swedish, optionally preceded by a chapter number.
var defaultHeadings = []string{
	"References", "Bibliography", "Works Cited", "Referenser",
	"Referenslista", "Litteratur", "Källförteckning",
	"Litteraturförteckning", "Käll- och litteraturförteckning",
	"Bibliografi",
}

// defaultStopTokens mark front-matter or appendix boundaries that end
// the section in compilation theses. Matched exactly (after
// normalization), with an optional trailing period.
var defaultStopTokens = []string{
	"I", "II", "III",
	"Paper I", "Paper II", "Paper III", "Paper 1", "Paper 2", "Paper 3",
	"Paper I-III", "Paper 1-3", "Paper I-IV", "Paper 1-4",
	"Paper I-V", "Paper 1-5", "Paper I-VI", "Paper 1-6",
	"Part II", "Part 2", "Appendix", "Appendices", "Appendix 1",
	"Bilagor", "Bilaga 1",
	"Article I", "Article II", "Article III",
	"Article 1", "Article 2", "Article 3",
	"Articles", "Articles I-III", "Articles 1-3", "Articles I-IV",
	"Articles 1-4", "Articles I-V", "Articles 1-5",
	"Articles I-VI", "Articles 1-6",
}

var allCapsHeadingRe = regexp.MustCompile(`^\s*[A-Z][A-Z\s\-]{5,}\s*$`)

// Span marks the located section: a half-open [Start, End) window into
// the normalized stream. End equals len(stream) for until-EOF spans.
type Span struct {
	Start int
	End   int
}

// Options configures the locator.
type Options struct {
	// Headings overrides the default heading set; matched
	// case-insensitively against whole lines, allowing a leading
	// chapter number ("7. References").
	Headings []string
	// StopTokens overrides the default exact-match boundary tokens.
	// A non-nil empty slice disables stop-token truncation.
	StopTokens []string
	// UntilEOF extends the span to the end of the stream, ignoring
	// stop tokens and next-section headings.
	UntilEOF bool
	// StopAtAllCaps ends the span at the next ALL-CAPS line (a likely
	// section heading such as ACKNOWLEDGEMENTS).
	StopAtAllCaps bool
	// MinPage skips heading matches on pages before this index,
	// guarding against table-of-contents false positives.
	MinPage int
}

// Locator finds the reference span in a normalized stream.
type Locator struct {
	headingRe  *regexp.Regexp
	stopTokens map[string]struct{}
	opts       Options
}

// NewLocator compiles the heading pattern set.
func NewLocator(opts Options) *Locator {
	headings := opts.Headings
	if headings == nil {
		headings = defaultHeadings
	}
	quoted := make([]string, len(headings))
	for i, h := range headings {
		quoted[i] = regexp.QuoteMeta(h)
	}
	re := regexp.MustCompile(
		`(?i)^\s*(?:(?:[1-9]|1[0-2])\.?\s{0,3})?(?:` + strings.Join(quoted, "|") + `)\s*$`,
	)

	tokens := opts.StopTokens
	if tokens == nil {
		tokens = defaultStopTokens
	}
	set := make(map[string]struct{}, 2*len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
		set[strings.ToUpper(t)] = struct{}{}
	}
	return &Locator{headingRe: re, stopTokens: set, opts: opts}
}

// Locate scans the stream for the reference section. The span begins on
// the line after the first matching heading at or past MinPage, and ends
// at the first stop token or ALL-CAPS heading (when enabled), or at
// stream end.
func (l *Locator) Locate(stream []refrec.Line) (Span, error) {
	start := -1
	for i, ln := range stream {
		if ln.Page < l.opts.MinPage {
			continue
		}
		if l.headingRe.MatchString(ln.Text) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return Span{}, ErrNotFound
	}

	end := len(stream)
	if !l.opts.UntilEOF {
		for i := start; i < len(stream); i++ {
			if l.isStopToken(stream[i].Text) {
				end = i
				break
			}
			if l.opts.StopAtAllCaps && allCapsHeadingRe.MatchString(stream[i].Text) {
				end = i
				break
			}
		}
	}
	return Span{Start: start, End: end}, nil
}

// isStopToken checks for an exact stop-token match, tolerating one
// trailing period.
func (l *Locator) isStopToken(s string) bool {
	if _, ok := l.stopTokens[s]; ok {
		return true
	}
	trimmed := strings.TrimSuffix(s, ".")
	_, ok := l.stopTokens[trimmed]
	return ok
}
