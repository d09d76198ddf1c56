package segment

import (
	"testing"

	"github.com/sandell/refmine/internal/audit"
	"github.com/sandell/refmine/internal/refrec"
)

func newTestNonAPAJoiner(fullNames bool) *nonAPAJoiner {
	return &nonAPAJoiner{
		authors: BuildAuthorPatterns(fullNames),
		years:   BuildYearPatterns(),
		rec:     audit.Nop{},
	}
}

func TestIsAuthorLine(t *testing.T) {
	j := newTestNonAPAJoiner(false)
	tests := []struct {
		line string
		next string
		want bool
	}{
		{"Smith, J.", "", true},
		{"Smith, J., Jones, K.,", "L. (2001). Title", true},
		{"Smith, J. 2001. Title.", "", false},
		{"Astrophysical Journal, 739, L54", "", false},
		{", K., & Brown, L.", "J. Title follows", true},
		{", K.", "", false},
		{"The quick brown fox", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := j.IsAuthorLine(tt.line, tt.next); got != tt.want {
			t.Errorf("IsAuthorLine(%q, %q) = %v, want %v", tt.line, tt.next, got, tt.want)
		}
	}
}

func assertRecords(t *testing.T, got []refrec.Record, want []string) {
	t.Helper()
	texts := recordTexts(got)
	if len(texts) != len(want) {
		t.Fatalf("got %d records, want %d: %v", len(texts), len(want), texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestJoinNonAPA_YearAtEnd(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. Title of the work, Journal of Things,",
		"12, 45-67. 2001.",
		"Jones, K. Another work entirely. Press. 2002.",
	), NonAPAOptions{Mode: refrec.LayoutYearAtEnd})

	assertRecords(t, res.Records, []string{
		"Smith, J. Title of the work, Journal of Things, 12, 45-67. 2001.",
		"Jones, K. Another work entirely. Press. 2002.",
	})
	if res.MaxAppendHit {
		t.Error("MaxAppendHit set on a span where every entry reaches a year")
	}
}

func TestJoinNonAPA_MaxAppendHit(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. Untitled manuscript draft,",
		"more text without any date,",
		"still more undated text,",
		"closing undated line.",
	), NonAPAOptions{Mode: refrec.LayoutYearAtEnd, MaxAppend: 2})

	if !res.MaxAppendHit {
		t.Error("MaxAppendHit not set after exhausting the append budget")
	}
	assertRecords(t, res.Records, []string{
		"Smith, J. Untitled manuscript draft, more text without any date, still more undated text, closing undated line.",
	})
}

func TestJoinNonAPA_YearAfterAuthors(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. & Jones, K.",
		"2001. The study of things. Journal, 12, 45-67.",
		"Brown, L. 2002. Another work. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthors})

	assertRecords(t, res.Records, []string{
		"Smith, J. & Jones, K. 2001. The study of things. Journal, 12, 45-67.",
		"Brown, L. 2002. Another work. Press.",
	})
}

func TestJoinNonAPA_YearEndPreAppend(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. The collected notes. 2001",
		"Second part of the same entry, 12, 45-67.",
		"Brown, L. 2002. Another. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthors})

	assertRecords(t, res.Records, []string{
		"Smith, J. The collected notes. 2001 Second part of the same entry, 12, 45-67.",
		"Brown, L. 2002. Another. Press.",
	})
}

func TestJoinNonAPA_AuthorStartJoinsNext(t *testing.T) {
	res := JoinNonAPA(span(
		"Andersson, A. & Bergström, B.",
		"The study of things. 2001. Press.",
		"Jones, K. 2002. Another. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthors})

	assertRecords(t, res.Records, []string{
		"Andersson, A. & Bergström, B. The study of things. 2001. Press.",
		"Jones, K. 2002. Another. Press.",
	})
}

func TestJoinNonAPA_WrappedInitialsJoin(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J., Jones, K., & Brown,",
		"L. 2001. The wrapped study. Press.",
		"Ek, E. 2002. Entry two. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthors})

	assertRecords(t, res.Records, []string{
		"Smith, J., Jones, K., & Brown, L. 2001. The wrapped study. Press.",
		"Ek, E. 2002. Entry two. Press.",
	})
}

func TestJoinNonAPA_GovMarkerStaysSeparate(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. The collected notes. 2001",
		"SOU 2004:104 Att lära för hållbar utveckling.",
		"Brown, L. 2002. Another. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthors})

	assertRecords(t, res.Records, []string{
		"Smith, J. The collected notes. 2001",
		"SOU 2004:104 Att lära för hållbar utveckling.",
		"Brown, L. 2002. Another. Press.",
	})
}

func TestJoinNonAPA_YearlessFragmentAttaches(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. 2001. A study. Journal of Things,",
		"12, 45-67.",
		"Brown, L. 2002. Another. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthors})

	assertRecords(t, res.Records, []string{
		"Smith, J. 2001. A study. Journal of Things, 12, 45-67.",
		"Brown, L. 2002. Another. Press.",
	})
}

func TestJoinNonAPA_FullNames(t *testing.T) {
	res := JoinNonAPA(span(
		"Lindgren, Astrid",
		"2001. Pippi studies. Press.",
		"Strindberg, August. 2002. Another. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthorsFull})

	assertRecords(t, res.Records, []string{
		"Lindgren, Astrid 2001. Pippi studies. Press.",
		"Strindberg, August. 2002. Another. Press.",
	})
}

func TestJoinNonAPA_URLFragmentAttaches(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. 2001. A study. Journal.",
		"https://doi.org/10.1234/abc",
		"Jones, K. 2002. Another. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthors})

	assertRecords(t, res.Records, []string{
		"Smith, J. 2001. A study. Journal. https://doi.org/10.1234/abc",
		"Jones, K. 2002. Another. Press.",
	})
}

func TestJoinNonAPA_DOIMovesToEnd(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. A study of things. Journal of Things, 12. 2001. doi:10.1234/abc",
		"Jones, K. Another work. Press. 2002.",
	), NonAPAOptions{Mode: refrec.LayoutYearAtEnd})

	assertRecords(t, res.Records, []string{
		"Smith, J. A study of things. Journal of Things, 12. 2001. https://doi.org/10.1234/abc",
		"Jones, K. Another work. Press. 2002.",
	})
}

func TestJoinNonAPA_SplitOnAccessDates(t *testing.T) {
	res := JoinNonAPA(span(
		"Agency for Things. Annual report 2019. https://example.org/a [Accessed on 2020-01-15]. "+
			"Ministry of Stuff. Guidance 2018. https://example.org/b [Accessed on 2020-02-20].",
	), NonAPAOptions{Mode: refrec.LayoutYearAtEnd})

	assertRecords(t, res.Records, []string{
		"Agency for Things. Annual report 2019. https://example.org/a [Accessed on 2020-01-15].",
		"Ministry of Stuff. Guidance 2018. https://example.org/b [Accessed on 2020-02-20].",
	})
}

func TestJoinNonAPA_SplitTrailerFragments(t *testing.T) {
	res := JoinNonAPA(span(
		"Smith, J. 2001. A thesis [Doctoral dissertation]. Jones, K. 2002. The next entry. Press.",
	), NonAPAOptions{Mode: refrec.LayoutYearAfterAuthors})

	assertRecords(t, res.Records, []string{
		"Smith, J. 2001. A thesis [Doctoral dissertation].",
		"Jones, K. 2002. The next entry. Press.",
	})
}

func TestJoinNonAPA_ReattachParenthetical(t *testing.T) {
	// A bracketed qualification after a relocated DOI returns to the
	// record it belongs to; the text after the bracket stays separate.
	res := JoinNonAPA(span(
		"Smith, J. A study. 2001. doi:10.1234/abc [Version of record]. More trailing text follows here.",
	), NonAPAOptions{Mode: refrec.LayoutYearAtEnd})

	assertRecords(t, res.Records, []string{
		"Smith, J. A study. 2001. https://doi.org/10.1234/abc [Version of record].",
		"More trailing text follows here.",
	})
}

func TestJoinNonAPA_Empty(t *testing.T) {
	res := JoinNonAPA(nil, NonAPAOptions{Mode: refrec.LayoutYearAtEnd})
	if len(res.Records) != 0 {
		t.Errorf("got %d records, want 0", len(res.Records))
	}
}
