package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sandell/refmine/internal/audit"
	"github.com/sandell/refmine/internal/doiutil"
	"github.com/sandell/refmine/internal/refrec"
)

// DefaultMaxAppend bounds how many lines the year-seeking joiner may
// append to a single record before giving up.
const DefaultMaxAppend = 25

var (
	// mirrorYearEndRe and mirrorYearStartRe find a parenthesized (group 1)
	// or bare (group 2) year at the end/start of a line. Hyphen adjacency
	// around the matched year disqualifies it; a year glued to a dash is a
	// page range or identifier, not a publication year.
	mirrorYearEndRe   = regexp.MustCompile(`(?:\(\s*((?:17|18|19|20)\d{2})\s*\)|\b((?:17|18|19|20)\d{2})\b)\.?\s*$`)
	mirrorYearStartRe = regexp.MustCompile(`^\s*(?:\(\s*((?:17|18|19|20)\d{2})\s*\)|((?:17|18|19|20)\d{2})\b)\.?\s*`)

	// initialsBareYearRe matches 1-3 leading initials directly followed by
	// a bare 4-digit year.
	initialsBareYearRe = regexp.MustCompile(`^\s*(?:[A-Z]\.? ?){1,3}\s*(?:17|18|19|20)\d{2}\b`)

	// numericFragmentRe matches page/volume fragments: digits, allowed
	// punctuation, and single-letter abbreviations like 'p.'.
	numericFragmentRe = regexp.MustCompile(`^(?:[A-Za-z]\.|[0-9()\[\].:;\-\s])+$`)

	// afterInitialTokenRe and afterConnectorRe validate the text following
	// a matched author prefix.
	afterInitialTokenRe = regexp.MustCompile(`^[A-Za-z](?:\.|\b)`)
	afterConnectorRe    = regexp.MustCompile(`^(?:,|&|\band\b)`)

	// leadingDOIFragmentRe matches a fragment that starts with a bare DOI.
	leadingDOIFragmentRe = regexp.MustCompile(`^10\.\d{3,8}/`)

	// accessedOnRe matches access-date markers used to split aggregated
	// bibliography dumps back into individual entries.
	accessedOnRe = regexp.MustCompile(`(?i)\[\s*accessed\s+on\s*\d{4}-\d{2}-\d{2}\s*\]\.?`)
)

// NonAPAOptions configures the year-at-end / year-after-authors joiner.
type NonAPAOptions struct {
	// Mode selects the layout variant; must be one of the four non-APA
	// layouts (LayoutYearAtEnd, LayoutYearAfterAuthors, or their
	// full-name counterparts).
	Mode refrec.LayoutMode
	// MaxAppend bounds the year-seeking append loop per record; 0 means
	// DefaultMaxAppend.
	MaxAppend int
	// MaxIter bounds the fixed-point loops; 0 means DefaultMaxJoinIter.
	MaxIter int
	// EditorMaxIter bounds the editor-token loop; 0 means
	// DefaultEditorMaxIter.
	EditorMaxIter int
	// Recorder receives per-line decisions. Nil disables auditing.
	Recorder audit.Recorder
}

// NonAPAResult carries the joined records and loop diagnostics.
type NonAPAResult struct {
	Records     []refrec.Record
	Iterations  int
	CapExceeded bool
	// MaxAppendHit is set when some record absorbed MaxAppend lines
	// without ever reaching a year.
	MaxAppendHit bool
}

type nonAPAJoiner struct {
	authors *AuthorPatterns
	years   *YearPatterns
	rec     audit.Recorder
}

// JoinNonAPA merges the section span into one record per entry for the
// unnumbered, non-parenthesized-year layouts. Author-only lines collapse
// first. Year-after-authors layouts then run the mirror passes keyed on
// bare-year detection; year-at-end layouts append lines to each record
// until a year appears. Both variants share the fragment-repair tail:
// yearless and short fragments fold backward, split DOI and URL tokens
// are rejoined, and each record's DOIs move to its end in canonical form.
func JoinNonAPA(span []refrec.Line, opts NonAPAOptions) NonAPAResult {
	if opts.MaxAppend <= 0 {
		opts.MaxAppend = DefaultMaxAppend
	}
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
	j := &nonAPAJoiner{
		authors: BuildAuthorPatterns(opts.Mode.FullNames()),
		years:   BuildYearPatterns(),
		rec:     rec,
	}

	recs := recordsFromLines(span)
	recs = j.collapseAuthorLines(recs)

	var res NonAPAResult
	if opts.Mode.YearAfterAuthors() {
		recs = j.mergeYearStartsMirror(recs)
		recs = j.preAppendAfterYearEndMirror(recs)
		recs = mergeEditorRecords(recs, opts.EditorMaxIter, YearFound, j.authors, rec, "nonapa-editor")

		var hitCap bool
		recs, res.Iterations, hitCap = fixedPointCounted(recs, opts.MaxIter, j.onePassMirror)
		res.CapExceeded = res.CapExceeded || hitCap

		recs = j.appendNonYearMirror(recs)
		recs = j.attachDigitFragments(recs)
		recs = j.mergeInitialsYear(recs)
		recs = j.joinTrailingConjunction(recs)
		recs = j.attachNumericFragments(recs)
	} else {
		recs = j.attachNumericFragments(recs)
		recs, res.MaxAppendHit = j.appendUntilYear(recs, opts.MaxAppend)
	}

	recs = j.attachNonYearRecords(recs)
	recs = j.mergeShortFragments(recs, 2)
	recs = j.joinOnSuffixPrefixes(recs)
	recs = j.joinLeadingURLFragments(recs)
	recs = j.splitOnAccessDates(recs)
	recs = j.splitAndCanonicalizeDOIs(recs)
	recs = splitTrailerFragments(recs, j.authors.StartLike, j.years.Paren, 0)
	recs = j.joinShortTrailers(recs)
	recs = j.reattachParentheticals(recs)

	res.Records = recs
	return res
}

func (j *nonAPAJoiner) note(stage string, idx int, class refrec.LineClass, rationale string) {
	j.rec.Record(audit.Event{
		Stage:          stage,
		LineIndex:      idx,
		Classification: class.String(),
		Rationale:      rationale,
	})
}

// IsAuthorLine reports whether line is an author-only line: the author
// pattern matches with a digit-free prefix, any text after the prefix
// looks like initials or a connector, and no acceptable year appears
// anywhere. next supplies lookahead for comma-led and comma-ended
// fragments.
func (j *nonAPAJoiner) IsAuthorLine(line, next string) bool {
	if line == "" {
		return false
	}
	if strings.HasPrefix(strings.TrimLeft(line, " \t"), ",") {
		if next != "" {
			return j.authors.ShouldAttachCommaFragment(line, next)
		}
		return false
	}

	// A line ending with a comma whose successor starts with an initial
	// is a wrapped author list.
	if strings.HasSuffix(strings.TrimRight(line, " \t"), ",") && next != "" {
		if j.authors.StartLike.MatchString(line) &&
			j.authors.InitialStart.MatchString(strings.TrimLeft(next, " \t")) &&
			!YearFound(line) {
			return true
		}
	}

	prefix := j.authors.Pattern.FindString(line)
	if prefix == "" {
		// Accept a bare start-like match only when it spans the whole line.
		loc := j.authors.StartLike.FindStringIndex(line)
		if loc == nil || loc[1] != len(line) {
			return false
		}
		if digitRe.MatchString(line[:loc[1]]) {
			return false
		}
		return !YearFound(line)
	}
	if digitRe.MatchString(prefix) {
		return false
	}

	after := strings.TrimLeft(line[len(prefix):], " \t")
	if after != "" && trailingPunctRe.MatchString(after) {
		after = ""
	}
	if after != "" {
		// A bare surname followed by more text is usually a journal title
		// ('Astrophysical Journal, 739, L54'), so demand initials in the
		// prefix and an initials-like or connector continuation.
		if !initialAnywhereRe.MatchString(prefix) {
			return false
		}
		if !afterInitialTokenRe.MatchString(after) && !afterConnectorRe.MatchString(after) {
			return false
		}
	}
	if loose4DigitYearRe.MatchString(line) {
		return false
	}
	return !YearFound(line)
}

// collapseAuthorLines joins runs of consecutive author-only lines into a
// single record so the author block heads exactly one entry.
func (j *nonAPAJoiner) collapseAuthorLines(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	i := 0
	n := len(recs)
	for i < n {
		r := recs[i]
		if !j.IsAuthorLine(r.Text, "") {
			out = append(out, r)
			i++
			continue
		}
		merged := r
		k := i + 1
		for k < n {
			if strings.TrimSpace(recs[k].Text) == "" {
				k++
				continue
			}
			nn := k + 1
			for nn < n && strings.TrimSpace(recs[nn].Text) == "" {
				nn++
			}
			nextNext := ""
			if nn < n {
				nextNext = recs[nn].Text
			}
			if !j.IsAuthorLine(recs[k].Text, nextNext) {
				break
			}
			merged.Merge(recs[k])
			j.note("nonapa-author-collapse", recs[k].FirstLine, refrec.ClassContinuation, "consecutive author line")
			k++
		}
		out = append(out, merged)
		i = k
	}
	return out
}

// lineHasYearAt validates a year match at the given group span: hyphen
// neighbours disqualify it (a bare 4-digit year is never an ISO date).
func lineHasYearAt(s string, loc []int) bool {
	var start, end int
	if loc[2] >= 0 {
		start, end = loc[2], loc[3]
	} else {
		start, end = loc[4], loc[5]
	}
	return !isHyphenAt(s, start-1) && !isHyphenAt(s, end)
}

func lineEndsWithYear(s string) bool {
	t := strings.TrimRight(s, " \t")
	if t == "" {
		return false
	}
	loc := mirrorYearEndRe.FindStringSubmatchIndex(t)
	return loc != nil && lineHasYearAt(t, loc)
}

func lineStartsWithYear(s string) bool {
	if s == "" {
		return false
	}
	loc := mirrorYearStartRe.FindStringSubmatchIndex(s)
	return loc != nil && lineHasYearAt(s, loc)
}

// mergeYearStartsMirror pulls lines that begin with a year into the
// previous record.
func (j *nonAPAJoiner) mergeYearStartsMirror(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		if lineStartsWithYear(r.Text) && len(out) > 0 {
			out[len(out)-1].Merge(r)
			j.note("nonapa-year-start", r.FirstLine, refrec.ClassContinuation, "line begins with year")
			continue
		}
		out = append(out, r)
	}
	return out
}

// preAppendAfterYearEndMirror appends the following non-empty record
// when a record ends with a year.
func (j *nonAPAJoiner) preAppendAfterYearEndMirror(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	i := 0
	for i < len(recs) {
		r := recs[i]
		if lineEndsWithYear(r.Text) {
			k := nextNonEmpty(recs, i+1)
			if k >= 0 {
				if StartsWithGovMarker(strings.TrimLeft(recs[k].Text, " \t")) {
					out = append(out, r)
					i++
					continue
				}
				r.Merge(recs[k])
				out = append(out, r)
				j.note("nonapa-year-end", recs[k].FirstLine, refrec.ClassContinuation, "previous line ends with year")
				i = k + 1
				continue
			}
		}
		out = append(out, r)
		i++
	}
	return out
}

// onePassMirror merges a yearless author-start record with its
// successor, the mirror of the APA main joining rule keyed on bare-year
// detection.
func (j *nonAPAJoiner) onePassMirror(recs []refrec.Record) ([]refrec.Record, bool) {
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
		if YearFound(ln) {
			out = append(out, r)
			i++
			continue
		}
		authorish := j.authors.Pattern.MatchString(ln) || j.authors.StartLike.MatchString(ln)
		if authorish && len(whitespaceRe.FindAllString(ln, -1)) >= 2 && !digitRe.MatchString(ln) {
			k := nextNonEmpty(recs, i+1)
			if k >= 0 {
				r.Merge(recs[k])
				out = append(out, r)
				changed = true
				j.note("nonapa-author-join", recs[k].FirstLine, refrec.ClassContinuation, "yearless author start joins next line")
				i = k + 1
				continue
			}
		}
		out = append(out, r)
		i++
	}
	return out, changed
}

// appendNonYearMirror folds yearless records into their predecessor,
// but keeps a record separate when it starts like an author without
// passing the strict author test; those are usually journal-title
// fragments that must not contaminate the previous entry.
func (j *nonAPAJoiner) appendNonYearMirror(recs []refrec.Record) []refrec.Record {
	if len(recs) == 0 {
		return recs
	}
	out := []refrec.Record{recs[0]}
	for i := 1; i < len(recs); i++ {
		r := recs[i]
		if YearFound(r.Text) {
			out = append(out, r)
			continue
		}
		stripped := strings.TrimSpace(r.Text)
		next := ""
		if i+1 < len(recs) {
			next = recs[i+1].Text
		}
		if j.authors.StartLike.MatchString(stripped) && !j.IsAuthorLine(stripped, next) {
			out = append(out, refrec.Record{Text: stripped, FirstLine: r.FirstLine, LastLine: r.LastLine})
			continue
		}
		out[len(out)-1].Merge(r)
		j.note("nonapa-append-nonyear", r.FirstLine, refrec.ClassContinuation, "no year")
	}
	return out
}

// attachDigitFragments appends records that contain digits but no year
// (page spans, volume numbers) to the previous record.
func (j *nonAPAJoiner) attachDigitFragments(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		if len(out) > 0 && digitRe.MatchString(r.Text) && !YearFound(r.Text) {
			out[len(out)-1].Merge(r)
			j.note("nonapa-digit-attach", r.FirstLine, refrec.ClassContinuation, "digits without year")
			continue
		}
		out = append(out, r)
	}
	return out
}

// mergeInitialsYear attaches records starting with initials and a year
// (parenthesized or bare) to a predecessor ending with a comma or an
// initial.
func (j *nonAPAJoiner) mergeInitialsYear(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for idx, r := range recs {
		if idx > 0 && len(out) > 0 &&
			(j.years.StartsWithInitialsParenYear(r.Text) ||
				initialsBareYearRe.MatchString(r.Text) ||
				j.years.StartsWithInitialsThenParenYear(r.Text)) &&
			LineEndsWithCommaOrInitial(out[len(out)-1].Text) {
			out[len(out)-1].Merge(r)
			j.note("nonapa-initials-year", r.FirstLine, refrec.ClassContinuation, "initials and year continue previous author list")
			continue
		}
		out = append(out, r)
	}
	return out
}

// joinTrailingConjunction joins a record ending with '&' to the next
// non-empty record.
func (j *nonAPAJoiner) joinTrailingConjunction(recs []refrec.Record) []refrec.Record {
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
				j.note("nonapa-conjunction", recs[k].FirstLine, refrec.ClassContinuation, "previous line ends with ampersand")
				i = k + 1
				continue
			}
		}
		out = append(out, r)
		i++
	}
	return out
}

// attachNumericFragments appends page/volume-only records to the
// previous record.
func (j *nonAPAJoiner) attachNumericFragments(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		if len(out) > 0 && numericFragmentRe.MatchString(strings.TrimSpace(r.Text)) {
			out[len(out)-1].Merge(r)
			j.note("nonapa-numeric-attach", r.FirstLine, refrec.ClassContinuation, "numeric fragment")
			continue
		}
		out = append(out, r)
	}
	return out
}

// appendUntilYear is the year-at-end joiner: each record absorbs the
// following records until one contributes an acceptable year, bounded
// by maxAppend per record.
func (j *nonAPAJoiner) appendUntilYear(recs []refrec.Record, maxAppend int) ([]refrec.Record, bool) {
	var out []refrec.Record
	hit := false
	i := 0
	n := len(recs)
	for i < n {
		current := recs[i]
		i++
		steps := 0
		for !YearFound(current.Text) && i < n && steps < maxAppend {
			current.Merge(recs[i])
			j.note("nonapa-year-seek", recs[i].FirstLine, refrec.ClassContinuation, "appending until year")
			i++
			steps++
		}
		if steps >= maxAppend {
			hit = true
			j.note("nonapa-year-seek", current.FirstLine, refrec.ClassNoise,
				fmt.Sprintf("max append reached after %d lines without a year", steps))
		}
		current.Text = strings.TrimSpace(current.Text)
		out = append(out, current)
	}
	return out, hit
}

// attachNonYearRecords folds records without any bare-year token into
// the previous record.
func (j *nonAPAJoiner) attachNonYearRecords(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		if bareYearRe.MatchString(r.Text) || len(out) == 0 {
			out = append(out, r)
			continue
		}
		out[len(out)-1].Merge(r)
		j.note("nonapa-attach-nonyear", r.FirstLine, refrec.ClassContinuation, "no year token")
	}
	return out
}

// mergeShortFragments folds records containing at most maxSpaces spaces
// into the previous record. Government documents stay separate.
func (j *nonAPAJoiner) mergeShortFragments(recs []refrec.Record, maxSpaces int) []refrec.Record {
	if len(recs) == 0 {
		return recs
	}
	out := []refrec.Record{recs[0]}
	for _, r := range recs[1:] {
		if StartsWithGovMarker(strings.TrimLeft(r.Text, " \t")) {
			out = append(out, r)
			continue
		}
		if strings.Count(r.Text, " ") <= maxSpaces {
			out[len(out)-1].Merge(r)
			j.note("nonapa-short-merge", r.FirstLine, refrec.ClassContinuation, "short fragment")
			continue
		}
		out = append(out, r)
	}
	return out
}

// joinOnSuffixPrefixes delegates pairwise to the DOI-aware join: when a
// record ends with a URL/DOI prefix, the first token of the next record
// moves onto it without a space.
func (j *nonAPAJoiner) joinOnSuffixPrefixes(recs []refrec.Record) []refrec.Record {
	if len(recs) < 2 {
		return recs
	}
	authorVeto := func(line, next string) bool { return j.IsAuthorLine(line, next) }
	out := []refrec.Record{recs[0]}
	for i := 1; i < len(recs); i++ {
		prev := &out[len(out)-1]
		curr := recs[i]
		joined := doiutil.JoinOnSuffixPrefixes([]string{prev.Text, curr.Text}, authorVeto)
		switch len(joined) {
		case 1:
			prev.Text = joined[0]
			if curr.LastLine > prev.LastLine {
				prev.LastLine = curr.LastLine
			}
			j.note("nonapa-suffix-join", curr.FirstLine, refrec.ClassContinuation, "url prefix consumed whole fragment")
		default:
			if joined[0] != prev.Text {
				prev.Text = joined[0]
				if curr.FirstLine > prev.LastLine {
					prev.LastLine = curr.FirstLine
				}
				j.note("nonapa-suffix-join", curr.FirstLine, refrec.ClassContinuation, "url prefix consumed first token")
			}
			curr.Text = joined[1]
			out = append(out, curr)
		}
	}
	return out
}

// joinLeadingURLFragments attaches records that begin with a URL or DOI
// token to the previous record.
func (j *nonAPAJoiner) joinLeadingURLFragments(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		s := strings.TrimSpace(r.Text)
		lower := strings.ToLower(s)
		leading := strings.HasPrefix(lower, "https://") ||
			strings.HasPrefix(lower, "doi:") ||
			strings.HasPrefix(lower, "doi.org") ||
			strings.HasPrefix(lower, "org/") ||
			leadingDOIFragmentRe.MatchString(s)
		if leading && len(out) > 0 {
			out[len(out)-1].Merge(r)
			j.note("nonapa-url-attach", r.FirstLine, refrec.ClassContinuation, "leading url fragment")
			continue
		}
		out = append(out, r)
	}
	return out
}

// splitOnAccessDates splits a record after every '[Accessed on
// YYYY-MM-DD]' marker; aggregated web references carry one marker per
// entry.
func (j *nonAPAJoiner) splitOnAccessDates(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		locs := accessedOnRe.FindAllStringIndex(r.Text, -1)
		if locs == nil {
			out = append(out, r)
			continue
		}
		last := 0
		for _, loc := range locs {
			part := strings.TrimSpace(r.Text[last:loc[1]])
			if part != "" {
				out = append(out, refrec.Record{Text: part, FirstLine: r.FirstLine, LastLine: r.LastLine})
			}
			last = loc[1]
		}
		if tail := strings.TrimSpace(r.Text[last:]); tail != "" {
			out = append(out, refrec.Record{Text: tail, FirstLine: r.FirstLine, LastLine: r.LastLine})
		}
	}
	return out
}

// splitAndCanonicalizeDOIs splits each record at URL/DOI boundaries,
// moves the DOIs of every part to its end in canonical form, and
// repairs broken doi.org tokens.
func (j *nonAPAJoiner) splitAndCanonicalizeDOIs(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		for _, part := range doiutil.SplitURLsAndDOIs(r.Text) {
			text := doiutil.FixBrokenTokens(doiutil.MoveToEnd(part))
			out = append(out, refrec.Record{Text: text, FirstLine: r.FirstLine, LastLine: r.LastLine})
		}
	}
	return out
}

// joinShortTrailers attaches fragments with fewer than three spaces to
// the previous record unless they are author lines.
func (j *nonAPAJoiner) joinShortTrailers(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for idx, r := range recs {
		if len(out) > 0 && strings.Count(r.Text, " ") < 3 {
			next := ""
			if idx+1 < len(recs) {
				next = recs[idx+1].Text
			}
			if !j.IsAuthorLine(r.Text, next) {
				out[len(out)-1].Merge(r)
				j.note("nonapa-short-trailer", r.FirstLine, refrec.ClassContinuation, "short non-author trailer")
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// reattachParentheticals moves a bracketed continuation that was split
// into its own record ('(in press)', '[Supplement]') back onto the
// previous record; any text after the bracket stays separate.
func (j *nonAPAJoiner) reattachParentheticals(recs []refrec.Record) []refrec.Record {
	var out []refrec.Record
	for _, r := range recs {
		s := strings.TrimLeft(r.Text, " \t")
		if len(out) == 0 || (!strings.HasPrefix(s, "(") && !strings.HasPrefix(s, "[")) {
			out = append(out, r)
			continue
		}
		closer := ")"
		if strings.HasPrefix(s, "[") {
			closer = "]"
		}
		closeIdx := strings.Index(s, closer)
		if closeIdx < 0 {
			out[len(out)-1].Merge(r)
			j.note("nonapa-paren-attach", r.FirstLine, refrec.ClassContinuation, "unterminated bracket fragment")
			continue
		}
		endIdx := closeIdx + 1
		if endIdx < len(s) && s[endIdx] == '.' {
			endIdx++
		}
		out[len(out)-1].AppendText(s[:endIdx], r.LastLine)
		j.note("nonapa-paren-attach", r.FirstLine, refrec.ClassContinuation, "bracketed continuation")
		if rest := strings.TrimLeft(s[endIdx:], " \t"); rest != "" {
			out = append(out, refrec.Record{Text: rest, FirstLine: r.FirstLine, LastLine: r.LastLine})
		}
	}
	return out
}
