package segment

import (
	"strings"

	"github.com/sandell/refmine/internal/audit"
	"github.com/sandell/refmine/internal/refrec"
)

// mergeEditorRecords resolves editor parentheticals in two passes per
// iteration. Pass one merges a yearless record whose first parenthetical
// is an editor token backward into its predecessor. Pass two appends a
// yearless record to a predecessor that is editor-anchored: its LAST
// parenthetical is an editor token followed only by punctuation. hasYear
// decides what counts as a year for the calling pipeline. The loop stops
// when no unresolved editor tokens remain or after maxIter iterations.
func mergeEditorRecords(recs []refrec.Record, maxIter int, hasYear func(string) bool, authors *AuthorPatterns, rec audit.Recorder, stage string) []refrec.Record {
	note := func(idx int, rationale string) {
		rec.Record(audit.Event{
			Stage:          stage,
			LineIndex:      idx,
			Classification: refrec.ClassContinuation.String(),
			Rationale:      rationale,
		})
	}

	for iter := 0; iter < maxIter; iter++ {
		var pass1 []refrec.Record
		for idx, r := range recs {
			if idx > 0 && !hasYear(r.Text) && len(pass1) > 0 {
				if m := parenGroupRe.FindStringSubmatch(r.Text); m != nil &&
					authors.EditorToken.MatchString(strings.TrimSpace(m[1])) &&
					!StartsWithGovMarker(strings.TrimLeft(r.Text, " \t")) {
					pass1[len(pass1)-1].Merge(r)
					note(r.FirstLine, "editor parenthetical without year")
					continue
				}
			}
			pass1 = append(pass1, r)
		}

		var pass2 []refrec.Record
		for idx, r := range pass1 {
			if idx == 0 || len(pass2) == 0 {
				pass2 = append(pass2, r)
				continue
			}
			prev := &pass2[len(pass2)-1]
			if !hasYear(r.Text) && endsWithEditorParenthetical(prev.Text, authors) {
				stripped := strings.TrimLeft(r.Text, " \t")
				if !StartsWithGovMarker(stripped) && !authors.Pattern.MatchString(stripped) {
					prev.Merge(r)
					note(r.FirstLine, "previous record is editor-anchored")
					continue
				}
			}
			pass2 = append(pass2, r)
		}
		recs = pass2

		if !hasUnresolvedEditorToken(recs, hasYear, authors) {
			break
		}
	}
	return recs
}

// endsWithEditorParenthetical reports whether the LAST parenthetical of
// s is an editor token with nothing but punctuation after it.
func endsWithEditorParenthetical(s string, authors *AuthorPatterns) bool {
	groups := parenGroupRe.FindAllStringSubmatchIndex(s, -1)
	if len(groups) == 0 {
		return false
	}
	last := groups[len(groups)-1]
	if !authors.EditorToken.MatchString(strings.TrimSpace(s[last[2]:last[3]])) {
		return false
	}
	after := strings.TrimSpace(s[last[1]:])
	return after == "" || trailingPunctRe.MatchString(after)
}

func hasUnresolvedEditorToken(recs []refrec.Record, hasYear func(string) bool, authors *AuthorPatterns) bool {
	for _, r := range recs {
		if hasYear(r.Text) {
			continue
		}
		for _, m := range parenGroupRe.FindAllStringSubmatch(r.Text, -1) {
			if authors.EditorToken.MatchString(strings.TrimSpace(m[1])) {
				return true
			}
		}
	}
	return false
}
