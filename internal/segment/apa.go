package segment

import (
	"regexp"
	"strings"

	"github.com/sandell/refmine/internal/audit"
	"github.com/sandell/refmine/internal/refrec"
)

// DefaultEditorMaxIter bounds the editor-token merge loop.
const DefaultEditorMaxIter = 3

// bareYearStartRe matches a bounded year at the very start of a
// (left-trimmed) line, used to pull year-first continuations like
// "(2016) Title" or "2016. Title" into the previous record.
var bareYearStartRe = regexp.MustCompile(`^` + yearNum + `[A-Za-z]?\b`)

// initialAnywhereRe looks for an initial-like token anywhere in an
// author prefix.
var initialAnywhereRe = regexp.MustCompile(`[` + upper + `]\.?`)

// APAOptions configures the author-(year) joiner.
type APAOptions struct {
	// FullNames switches author detection to comma-separated full given
	// names instead of initials.
	FullNames bool
	// MaxIter bounds the fixed-point loops; 0 means DefaultMaxJoinIter.
	MaxIter int
	// EditorMaxIter bounds the editor-token loop; 0 means
	// DefaultEditorMaxIter.
	EditorMaxIter int
	// Recorder receives per-line decisions. Nil disables auditing.
	Recorder audit.Recorder
}

// APAResult carries the joined records and loop diagnostics.
type APAResult struct {
	Records     []refrec.Record
	Iterations  int
	CapExceeded bool
}

type apaJoiner struct {
	authors *AuthorPatterns
	years   *YearPatterns
	rec     audit.Recorder
}

// JoinAPA merges the section span into one record per author-(year)
// entry. The passes run in a fixed order: year-start continuations,
// year-end pre-appends, single-token fragments, initials-plus-year
// continuations, conjunction joins, editor-token merges, the main
// author-start fixed point, and finally the catch-all pass that folds
// every yearless line into its predecessor. Trailing bracketed
// qualifications accidentally merged with the next entry are split
// back apart at the end.
func JoinAPA(span []refrec.Line, opts APAOptions) APAResult {
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultMaxJoinIter
	}
	if opts.EditorMaxIter <= 0 {
		opts.EditorMaxIter = DefaultEditorMaxIter
	}
	rec := opts.Recorder
	if rec == nil {
		rec = audit.Nop{}
	}
	j := &apaJoiner{
		authors: BuildAuthorPatterns(opts.FullNames),
		years:   BuildYearPatterns(),
		rec:     rec,
	}

	recs := recordsFromLines(span)
	recs = j.mergeYearStarts(recs)
	recs = j.preAppendAfterYearEnd(recs)

	var res APAResult
	recs, hitCap := fixedPoint(recs, opts.MaxIter, j.singleTokenPass)
	res.CapExceeded = res.CapExceeded || hitCap

	recs = j.mergeInitialsYear(recs)
	recs = j.joinTrailingConjunction(recs)
	recs = j.mergeAmpersandStart(recs)
	recs = mergeEditorRecords(recs, opts.EditorMaxIter, j.years.Paren.MatchString, j.authors, rec, "apa-editor")

	recs, iters, hitCap := fixedPointCounted(recs, opts.MaxIter, j.onePassApply)
	res.Iterations = iters
	res.CapExceeded = res.CapExceeded || hitCap

	recs, hitCap = fixedPoint(recs, opts.MaxIter, j.appendNonYearPass)
	res.CapExceeded = res.CapExceeded || hitCap

	recs = splitTrailerFragments(recs, j.authors.StartLikeMulti, j.years.Paren, 2)
	res.Records = recs
	return res
}

type passFunc func([]refrec.Record) ([]refrec.Record, bool)

func fixedPoint(recs []refrec.Record, maxIter int, pass passFunc) ([]refrec.Record, bool) {
	out, _, hitCap := fixedPointCounted(recs, maxIter, pass)
	return out, hitCap
}

func fixedPointCounted(recs []refrec.Record, maxIter int, pass passFunc) ([]refrec.Record, int, bool) {
	iters := 0
	for {
		iters++
		next, changed := pass(recs)
		if !changed {
			return next, iters, false
		}
		if iters >= maxIter {
			return next, iters, true
		}
		recs = next
	}
}

func (j *apaJoiner) note(stage string, idx int, rationale string) {
	j.rec.Record(audit.Event{
		Stage:          stage,
		LineIndex:      idx,
		Classification: refrec.ClassContinuation.String(),
		Rationale:      rationale,
	})
}

// mergeYearStarts pulls lines that begin with '(' or a bare year into
// the previous record: the year of the previous entry landed on its own
// physical line.
func (j *apaJoiner) mergeYearStarts(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		stripped := strings.TrimLeft(r.Text, " \t")
		startsParen := strings.HasPrefix(stripped, "(")
		startsYear := !startsParen && bareYearStartRe.MatchString(stripped)
		if (startsParen || startsYear) && len(out) > 0 {
			out[len(out)-1].Merge(r)
			j.note("apa-year-start", r.FirstLine, "line begins with parenthesis or year")
			continue
		}
		out = append(out, r)
	}
	return out
}

// preAppendAfterYearEnd appends the following non-empty record when a
// record ends with a parenthesized year, unless the follower is a
// government-document entry.
func (j *apaJoiner) preAppendAfterYearEnd(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	i := 0
	for i < len(recs) {
		r := recs[i]
		if j.years.ParenEnd.MatchString(r.Text) {
			k := nextNonEmpty(recs, i+1)
			if k >= 0 {
				if StartsWithGovMarker(strings.TrimLeft(recs[k].Text, " \t")) {
					out = append(out, r)
					i++
					continue
				}
				r.Merge(recs[k])
				out = append(out, r)
				j.note("apa-year-end", recs[k].FirstLine, "previous line ends with parenthesized year")
				i = k + 1
				continue
			}
		}
		out = append(out, r)
		i++
	}
	return out
}

func nextNonEmpty(recs []refrec.Record, from int) int {
	for k := from; k < len(recs); k++ {
		if strings.TrimSpace(recs[k].Text) != "" {
			return k
		}
	}
	return -1
}

// singleTokenPass attaches any record whose text has no internal
// whitespace to its predecessor; single tokens on their own line are
// always wrap fragments (DOI tails, page numbers, lone surnames).
func (j *apaJoiner) singleTokenPass(recs []refrec.Record) ([]refrec.Record, bool) {
	var out []refrec.Record
	changed := false
	for idx, r := range recs {
		stripped := strings.TrimSpace(r.Text)
		if idx > 0 && stripped != "" && !whitespaceRe.MatchString(stripped) && len(out) > 0 {
			out[len(out)-1].Merge(r)
			changed = true
			j.note("apa-single-token", r.FirstLine, "single-token fragment")
			continue
		}
		out = append(out, r)
	}
	return out, changed
}

// mergeInitialsYear attaches a record starting with 1-3 initials and a
// parenthesized year to a predecessor that ends with a comma or an
// initial: the author list wrapped right before its final initials.
func (j *apaJoiner) mergeInitialsYear(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for idx, r := range recs {
		if idx > 0 && len(out) > 0 &&
			(j.years.StartsWithInitialsParenYear(r.Text) || j.years.StartsWithInitialsThenParenYear(r.Text)) &&
			LineEndsWithCommaOrInitial(out[len(out)-1].Text) {
			out[len(out)-1].Merge(r)
			j.note("apa-initials-year", r.FirstLine, "initials and year continue previous author list")
			continue
		}
		out = append(out, r)
	}
	return out
}

// joinTrailingConjunction joins a record ending with '&' to the next
// non-empty record.
func (j *apaJoiner) joinTrailingConjunction(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	i := 0
	for i < len(recs) {
		r := recs[i]
		if LineEndsWithConjunction(r.Text) {
			k := nextNonEmpty(recs, i+1)
			if k >= 0 {
				if StartsWithGovMarker(strings.TrimLeft(recs[k].Text, " \t")) {
					out = append(out, r)
					i++
					continue
				}
				r.Merge(recs[k])
				out = append(out, r)
				j.note("apa-conjunction", recs[k].FirstLine, "previous line ends with ampersand")
				i = k + 1
				continue
			}
		}
		out = append(out, r)
		i++
	}
	return out
}

// mergeAmpersandStart attaches a record beginning with '&' to a
// predecessor that is itself an author line.
func (j *apaJoiner) mergeAmpersandStart(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		if strings.HasPrefix(strings.TrimLeft(r.Text, " \t"), "&") && len(out) > 0 &&
			j.isAuthorLineEditor(out[len(out)-1].Text, "") {
			out[len(out)-1].Merge(r)
			j.note("apa-ampersand-start", r.FirstLine, "ampersand continues previous author list")
			continue
		}
		out = append(out, r)
	}
	return out
}

// isAuthorLineEditor is the strict author-only test used for the
// editor and ampersand merges: the author pattern must match, the
// matched prefix may not contain digits, trailing text after the
// prefix requires an initial-like token inside it, and a parenthesized
// year anywhere disqualifies the line.
func (j *apaJoiner) isAuthorLineEditor(line, nextLine string) bool {
	if line == "" {
		return false
	}
	if strings.HasPrefix(strings.TrimLeft(line, " \t"), ",") {
		if nextLine != "" {
			return j.authors.ShouldAttachCommaFragment(line, nextLine)
		}
		return false
	}
	prefix := j.authors.Pattern.FindString(line)
	if prefix == "" {
		// Relaxation for multi-part surnames the strict pattern misses:
		// accept when the line is clearly a continued author list.
		if j.authors.StartLikeMulti.MatchString(line) &&
			strings.HasSuffix(strings.TrimRight(line, " \t"), ",") &&
			!j.years.Paren.MatchString(line) && !digitRe.MatchString(line) {
			return true
		}
		return false
	}
	if digitRe.MatchString(prefix) {
		return false
	}
	after := strings.TrimLeft(line[len(prefix):], " \t")
	if after != "" && trailingPunctRe.MatchString(after) {
		after = ""
	}
	if after != "" && !initialAnywhereRe.MatchString(prefix) {
		return false
	}
	return !j.years.Paren.MatchString(line)
}

// onePassApply is the main joining rule: a yearless record that starts
// like an author (or is a comma-heavy author chain), carries at least
// two whitespace runs, and has no digits merges with the next non-empty
// record.
func (j *apaJoiner) onePassApply(recs []refrec.Record) ([]refrec.Record, bool) {
	var out []refrec.Record
	changed := false
	i := 0
	for i < len(recs) {
		r := recs[i]
		ln := strings.TrimSpace(r.Text)
		if ln == "" {
			changed = true
			i++
			continue
		}
		if j.years.Paren.MatchString(ln) {
			out = append(out, r)
			i++
			continue
		}
		authorish := j.authors.Pattern.MatchString(ln) ||
			j.authors.StartLike.MatchString(ln) ||
			(strings.HasSuffix(ln, ",") && strings.Count(ln, ",") >= 2 && !digitRe.MatchString(ln))
		if authorish && len(whitespaceRe.FindAllString(ln, -1)) >= 2 && !digitRe.MatchString(ln) {
			k := nextNonEmpty(recs, i+1)
			if k >= 0 {
				r.Merge(recs[k])
				out = append(out, r)
				changed = true
				j.note("apa-author-join", recs[k].FirstLine, "yearless author start joins next line")
				i = k + 1
				continue
			}
		}
		out = append(out, r)
		i++
	}
	return out, changed
}

// appendNonYearPass folds every record without a parenthesized year
// into its predecessor, leaving one record per dated entry. Government
// documents keep their own record.
func (j *apaJoiner) appendNonYearPass(recs []refrec.Record) ([]refrec.Record, bool) {
	if len(recs) == 0 {
		return recs, false
	}
	out := []refrec.Record{recs[0]}
	changed := false
	for _, r := range recs[1:] {
		if !j.years.Paren.MatchString(r.Text) {
			if StartsWithGovMarker(strings.TrimLeft(r.Text, " \t")) {
				out = append(out, r)
				continue
			}
			out[len(out)-1].Merge(r)
			changed = true
			j.note("apa-append-nonyear", r.FirstLine, "no parenthesized year")
			continue
		}
		out = append(out, r)
	}
	return out, changed
}

var splitTrailerRe = regexp.MustCompile(`^(.*\]\.)\s+(.+)$`)

// splitTrailerFragments splits a record where a trailing bracketed
// qualification ("... universitet].") is directly followed by a new
// author-like start. A split requires at least minYears parenthesized
// years in the record and a digit-free author prefix on the right.
func splitTrailerFragments(recs []refrec.Record, startLike, yearParen *regexp.Regexp, minYears int) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		if minYears > 0 && len(yearParen.FindAllString(r.Text, -1)) < minYears {
			out = append(out, r)
			continue
		}
		m := splitTrailerRe.FindStringSubmatch(r.Text)
		if m == nil {
			out = append(out, r)
			continue
		}
		left, right := m[1], m[2]
		am := startLike.FindString(right)
		if am == "" || digitRe.MatchString(am) {
			out = append(out, r)
			continue
		}
		out = append(out,
			refrec.Record{Text: left, FirstLine: r.FirstLine, LastLine: r.LastLine},
			refrec.Record{Text: right, FirstLine: r.FirstLine, LastLine: r.LastLine},
		)
	}
	return out
}
