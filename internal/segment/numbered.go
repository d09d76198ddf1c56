package segment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sandell/refmine/internal/audit"
	"github.com/sandell/refmine/internal/refrec"
)

// DefaultMaxJoinIter bounds the fixed-point joining loops.
const DefaultMaxJoinIter = 10

// StandaloneFallbackRatio is the fraction of marker-only records above
// which a numbered classification is considered spurious.
const StandaloneFallbackRatio = 0.5

var markerNumberRe = regexp.MustCompile(`\d{1,3}`)

// NumberedOptions configures the numbered-list joiner.
type NumberedOptions struct {
	// Marker is the compiled prefix pattern of the detected style.
	Marker *regexp.Regexp
	// MaxIter bounds the fixed-point loop; 0 means DefaultMaxJoinIter.
	MaxIter int
	// Recorder receives per-line decisions. Nil disables auditing.
	Recorder audit.Recorder
}

// NumberedResult carries the joined records plus the signals the engine
// needs to decide on fallback behavior.
type NumberedResult struct {
	Records []refrec.Record
	// Iterations is the number of passes run before the fixed point.
	Iterations int
	// CapExceeded is set when the loop stopped at MaxIter without
	// converging.
	CapExceeded bool
	// StandaloneRatio is the fraction of records that are a bare marker
	// with no content. Above StandaloneFallbackRatio the detection was
	// most likely noise (page numbers, outline entries).
	StandaloneRatio float64
}

// JoinNumbered merges the section span into one record per numbered
// entry. A line carrying a marker starts a new record; a marker-only
// line continues the current record unless its number is exactly the
// successor of the current entry's number, which indicates a genuinely
// empty entry boundary. Unmarked lines are continuations, except
// government-document markers which always start their own record.
func JoinNumbered(span []refrec.Line, opts NumberedOptions) NumberedResult {
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultMaxJoinIter
	}
	rec := opts.Recorder
	if rec == nil {
		rec = audit.Nop{}
	}

	prev := recordsFromLines(span)
	var res NumberedResult
	for {
		res.Iterations++
		next, changed := oneNumberedPass(prev, opts.Marker, rec, res.Iterations == 1)
		if !changed {
			res.Records = next
			break
		}
		if res.Iterations >= opts.MaxIter {
			res.Records = next
			res.CapExceeded = true
			break
		}
		prev = next
	}

	res.StandaloneRatio = standaloneRatio(res.Records, opts.Marker)
	return res
}

func recordsFromLines(span []refrec.Line) []refrec.Record {
	recs := make([]refrec.Record, len(span))
	for i, ln := range span {
		recs[i] = refrec.Record{Text: ln.Text, FirstLine: i, LastLine: i}
	}
	return recs
}

func oneNumberedPass(input []refrec.Record, marker *regexp.Regexp, rec audit.Recorder, auditPass bool) ([]refrec.Record, bool) {
	var out []refrec.Record
	var curr *refrec.Record
	currNumber := -1
	changed := false

	flush := func() {
		if curr != nil {
			out = append(out, *curr)
			curr = nil
		}
	}
	note := func(idx int, class refrec.LineClass, rationale string) {
		if auditPass {
			rec.Record(audit.Event{
				Stage:          "numbered-join",
				LineIndex:      idx,
				Classification: class.String(),
				Rationale:      rationale,
			})
		}
	}

	for i := range input {
		entry := input[i]
		if marker.MatchString(entry.Text) {
			thisNumber := -1
			if m := markerNumberRe.FindString(entry.Text); m != "" {
				if n, err := strconv.Atoi(m); err == nil {
					thisNumber = n
				}
			}
			rest := marker.ReplaceAllString(entry.Text, "")
			if curr != nil && strings.TrimSpace(rest) == "" && currNumber >= 0 {
				if thisNumber == currNumber+1 {
					// A bare marker numbered in sequence is a real
					// (empty-bodied) entry boundary.
					flush()
					curr = &entry
					currNumber = thisNumber
					note(entry.FirstLine, refrec.ClassNewReference,
						fmt.Sprintf("bare marker %d continues sequence", thisNumber))
					continue
				}
				curr.Merge(entry)
				changed = true
				note(entry.FirstLine, refrec.ClassContinuation,
					"bare marker out of sequence, merged as content")
				continue
			}
			flush()
			curr = &entry
			currNumber = thisNumber
			note(entry.FirstLine, refrec.ClassNewReference, "entry marker")
			continue
		}

		if curr == nil {
			curr = &entry
			currNumber = -1
			note(entry.FirstLine, refrec.ClassNewReference, "unmarked first line")
			continue
		}
		if StartsWithGovMarker(strings.TrimLeft(entry.Text, " \t")) {
			flush()
			curr = &entry
			currNumber = -1
			note(entry.FirstLine, refrec.ClassNewReference, "government document marker")
			continue
		}
		curr.Merge(entry)
		changed = true
		note(entry.FirstLine, refrec.ClassContinuation, "no entry marker")
	}
	flush()
	return out, changed
}

func standaloneRatio(records []refrec.Record, marker *regexp.Regexp) float64 {
	if len(records) == 0 {
		return 0
	}
	standalone := 0
	for _, r := range records {
		rest := marker.ReplaceAllString(r.Text, "")
		if strings.TrimSpace(rest) == "" {
			standalone++
		}
	}
	return float64(standalone) / float64(len(records))
}

// StripMarkers removes the first entry-marker prefix from every line,
// used when a spurious numbered detection falls back to author-year
// parsing over the de-numbered span.
func StripMarkers(span []refrec.Line, marker *regexp.Regexp) []refrec.Line {
	out := make([]refrec.Line, len(span))
	for i, ln := range span {
		out[i] = refrec.Line{Text: strings.TrimSpace(marker.ReplaceAllString(ln.Text, "")), Page: ln.Page}
	}
	return out
}
