package postproc

import (
	"testing"

	"github.com/sandell/refmine/internal/refrec"
)

func TestExtractAuthorPrefix(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "paren year",
			line: "Smith, J. (2001). A title.",
			want: "Smith, J.",
		},
		{
			name: "bare year",
			line: "Smith, J. 2001. A title.",
			want: "Smith, J.",
		},
		{
			name: "trailing comma stripped",
			line: "Smith, J., (2001). A title.",
			want: "Smith, J.",
		},
		{
			name: "earliest year wins",
			line: "Smith, J. 1999. Reprint (2005).",
			want: "Smith, J.",
		},
		{
			name: "no year",
			line: "Smith, J. A title without a year.",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAuthorPrefix(tt.line); got != tt.want {
				t.Errorf("ExtractAuthorPrefix(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func recordsFrom(texts ...string) []refrec.Record {
	out := make([]refrec.Record, len(texts))
	for i, s := range texts {
		out[i] = refrec.Record{Text: s, FirstLine: i, LastLine: i}
	}
	return out
}

func TestRepairDashPlaceholders(t *testing.T) {
	recs := recordsFrom(
		"Smith, J. (2001). First work.",
		"---. (2003). Second work.",
		"---. (2005). Third work.",
		"Jones, K. (2004). Other author.",
		"---. (2006). Jones again.",
	)
	got := RepairDashPlaceholders(recs, "")
	want := []string{
		"Smith, J. (2001). First work.",
		"Smith, J. (2003). Second work.",
		"Smith, J. (2005). Third work.",
		"Jones, K. (2004). Other author.",
		"Jones, K. (2006). Jones again.",
	}
	for i := range want {
		if got[i].Text != want[i] {
			t.Errorf("record %d = %q, want %q", i, got[i].Text, want[i])
		}
	}
}

func TestRepairDashPlaceholders_NoPrecedingAuthor(t *testing.T) {
	recs := recordsFrom("---. (2001). Orphan placeholder.")
	got := RepairDashPlaceholders(recs, "")
	if got[0].Text != "---. (2001). Orphan placeholder." {
		t.Errorf("record = %q, want placeholder kept", got[0].Text)
	}
}

func TestRepairDashPlaceholders_CustomPlaceholder(t *testing.T) {
	recs := recordsFrom(
		"Smith, J. (2001). First.",
		"———. (2003). Second.",
	)
	got := RepairDashPlaceholders(recs, "———. ")
	if got[1].Text != "Smith, J. (2003). Second." {
		t.Errorf("record = %q, want author substituted", got[1].Text)
	}
}

func TestStripNumberPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"dotted", "12. Smith, J. (2001).", "Smith, J. (2001)."},
		{"bracketed", "[3] Smith, J. (2001).", "Smith, J. (2001)."},
		{"bare", "7 Smith, J. (2001).", "Smith, J. (2001)."},
		{"parenthesized", "(5) Smith, J. (2001).", "Smith, J. (2001)."},
		{"year guard parenthesized", "(2001) A year-first record.", "(2001) A year-first record."},
		{"no prefix", "Smith, J. (2001).", "Smith, J. (2001)."},
		{"year guard dotted", "2001. A year-first record.", "2001. A year-first record."},
		{"year guard bare", "1998 Annual report.", "1998 Annual report."},
		{"large number stripped", "3021. Entry text.", "Entry text."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripNumberPrefix(tt.text, 0); got != tt.want {
				t.Errorf("StripNumberPrefix(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	recs := recordsFrom(
		"Smith, J. (2001). Title. doi:10.1234/abcd Journal 12.",
		"Jones, K. (2002). F¨orord. Press.",
	)
	got := Finalize(recs, Options{})
	if got[0].Text != "Smith, J. (2001). Title. Journal 12. https://doi.org/10.1234/abcd" {
		t.Errorf("record 0 = %q", got[0].Text)
	}
	if got[1].Text != "Jones, K. (2002). Förord. Press." {
		t.Errorf("record 1 = %q", got[1].Text)
	}
}

func TestFinalize_StripNumbers(t *testing.T) {
	recs := recordsFrom("[4] Smith, J. (2001). Title.")
	got := Finalize(recs, Options{StripNumbers: true})
	if got[0].Text != "Smith, J. (2001). Title." {
		t.Errorf("record = %q", got[0].Text)
	}
}

func TestFinalize_AccessTrailer(t *testing.T) {
	recs := recordsFrom("Smith, J. (2001). Title. [Accessed on 2023-04-01].")
	got := Finalize(recs, Options{})
	if got[0].Trailer != "[Accessed on 2023-04-01]." {
		t.Errorf("trailer = %q", got[0].Trailer)
	}
}
