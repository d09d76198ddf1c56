package textnorm

import (
	"testing"

	"github.com/sandell/refmine/internal/refrec"
)

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Smith, J. (2001).", "Smith, J. (2001)."},
		{"nbsp to space", "Smith, J.", "Smith, J."},
		{"zero width removed", "Smi​th", "Smith"},
		{"bom to space", "Smith,\uFEFFJ.", "Smith, J."},
		{"word joiner to space", "Smith,\u2060J.", "Smith, J."},
		{"en dash folded", "pp. 10–20", "pp. 10-20"},
		{"em dash folded", "title — subtitle", "title - subtitle"},
		{"soft hyphen folded", "co­operate", "co-operate"},
		{"whitespace collapsed", "Smith,   J.\t\tJones", "Smith, J. Jones"},
		{"trimmed", "  text  ", "text"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLine(tt.input); got != tt.want {
				t.Errorf("NormalizeLine(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsPageNumberLine(t *testing.T) {
	w := PageWindow{Min: 50, Max: 400}
	tests := []struct {
		input string
		want  bool
	}{
		{"123", true},
		{" 123 ", true},
		{"50", true},
		{"400", true},
		{"49", false},
		{"401", false},
		{"1998", false},
		{"123a", false},
		{"p. 123", false},
	}

	for _, tt := range tests {
		if got := IsPageNumberLine(tt.input, w); got != tt.want {
			t.Errorf("IsPageNumberLine(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestArtifactLines(t *testing.T) {
	if !IsHyphenOnlyLine("----") {
		t.Error("hyphen run should be an artifact")
	}
	if !IsHyphenOnlyLine(" - – ") {
		t.Error("mixed dash run should be an artifact")
	}
	if IsHyphenOnlyLine("a-b") {
		t.Error("hyphenated word is not an artifact")
	}
	if IsHyphenOnlyLine("") {
		t.Error("empty line is not a hyphen-only line")
	}
	if !IsCIDMarker("(cid:105)") {
		t.Error("cid marker not detected")
	}
	if IsCIDMarker("(cid:105) text") {
		t.Error("cid marker with content should not match")
	}
	if !IsUITimestampLine("2014/05/12 14:20 page 3 #44") {
		t.Error("viewer footer not detected")
	}
	if IsUITimestampLine("2014/05/12 meeting notes") {
		t.Error("date alone should not match")
	}
}

func TestFixDiaeresis(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"f¨or", "för"},
		{"l¨angre", "längre"},
		{"M¨uller", "Müller"},
		{"¨Orebro", "Örebro"},
		{"normal", "normal"},
	}

	for _, tt := range tests {
		if got := FixDiaeresis(tt.input); got != tt.want {
			t.Errorf("FixDiaeresis(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDehyphenate(t *testing.T) {
	tests := []struct {
		name  string
		input []refrec.Line
		want  []string
	}{
		{
			name: "wrap hyphen removed before lowercase",
			input: []refrec.Line{
				{Text: "under-"},
				{Text: "standing"},
			},
			want: []string{"understanding"},
		},
		{
			name: "compound hyphen kept before uppercase",
			input: []refrec.Line{
				{Text: "Kaplan-"},
				{Text: "Meier estimates"},
			},
			want: []string{"Kaplan- Meier estimates"},
		},
		{
			name: "chained wraps converge",
			input: []refrec.Line{
				{Text: "inter-"},
				{Text: "dis-"},
				{Text: "ciplinary"},
			},
			want: []string{"interdisciplinary"},
		},
		{
			name: "no hyphen untouched",
			input: []refrec.Line{
				{Text: "one"},
				{Text: "two"},
			},
			want: []string{"one", "two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dehyphenate(tt.input, 0)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d lines, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].Text != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i].Text, tt.want[i])
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	pages := []string{
		"Title page\n123\n----\n(cid:42)",
		"Smith, J. (2001). A study of under-\nstanding. Journal.",
	}
	lines, err := Normalize(pages, Options{})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	var texts []string
	for _, ln := range lines {
		texts = append(texts, ln.Text)
	}
	want := []string{
		"Title page",
		"Smith, J. (2001). A study of understanding. Journal.",
	}
	if len(texts) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(texts), len(want), texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, texts[i], want[i])
		}
	}
	if lines[1].Page != 1 {
		t.Errorf("page index = %d, want 1", lines[1].Page)
	}
}

func TestNormalize_Empty(t *testing.T) {
	if _, err := Normalize([]string{"", "  \n\n "}, Options{}); err != ErrEmptyInput {
		t.Errorf("Normalize() error = %v, want ErrEmptyInput", err)
	}
}
