package section

import (
	"errors"
	"testing"

	"github.com/sandell/refmine/internal/refrec"
)

func stream(texts ...string) []refrec.Line {
	out := make([]refrec.Line, len(texts))
	for i, s := range texts {
		out[i] = refrec.Line{Text: s}
	}
	return out
}

func TestLocate_Basic(t *testing.T) {
	s := stream(
		"Chapter body text",
		"References",
		"Smith, J. (2001). A title.",
		"Jones, K. (2002). Another.",
	)
	sp, err := NewLocator(Options{}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.Start != 2 || sp.End != 4 {
		t.Errorf("span = [%d, %d), want [2, 4)", sp.Start, sp.End)
	}
}

func TestLocate_NumberedHeading(t *testing.T) {
	s := stream("7. References", "Smith, J. (2001).")
	sp, err := NewLocator(Options{}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.Start != 1 {
		t.Errorf("Start = %d, want 1", sp.Start)
	}
}

func TestLocate_SwedishHeading(t *testing.T) {
	s := stream("Källförteckning", "Andersson, A. (1999).")
	if _, err := NewLocator(Options{}).Locate(s); err != nil {
		t.Errorf("Locate() error = %v", err)
	}
}

func TestLocate_NotFound(t *testing.T) {
	s := stream("Introduction", "Some text")
	_, err := NewLocator(Options{}).Locate(s)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Locate() error = %v, want ErrNotFound", err)
	}
}

func TestLocate_StopToken(t *testing.T) {
	s := stream(
		"References",
		"Smith, J. (2001).",
		"Jones, K. (2002).",
		"Paper I",
		"Included paper text",
	)
	sp, err := NewLocator(Options{}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.End != 3 {
		t.Errorf("End = %d, want 3", sp.End)
	}
}

func TestLocate_StopTokenTrailingPeriod(t *testing.T) {
	s := stream("References", "Smith, J. (2001).", "Appendix.")
	sp, err := NewLocator(Options{}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.End != 2 {
		t.Errorf("End = %d, want 2", sp.End)
	}
}

func TestLocate_UntilEOF(t *testing.T) {
	s := stream("References", "Smith, J. (2001).", "Paper I", "more")
	sp, err := NewLocator(Options{UntilEOF: true}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.End != 4 {
		t.Errorf("End = %d, want 4 (stream end)", sp.End)
	}
}

func TestLocate_AllCapsStop(t *testing.T) {
	s := stream("References", "Smith, J. (2001).", "ACKNOWLEDGEMENTS", "Thanks everyone")
	sp, err := NewLocator(Options{StopAtAllCaps: true}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.End != 2 {
		t.Errorf("End = %d, want 2", sp.End)
	}

	// Disabled by default
	sp, err = NewLocator(Options{}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.End != 4 {
		t.Errorf("End = %d, want 4 without StopAtAllCaps", sp.End)
	}
}

func TestLocate_MinPage(t *testing.T) {
	s := []refrec.Line{
		{Text: "References", Page: 1},   // table of contents entry
		{Text: "Chapter text", Page: 5},
		{Text: "References", Page: 9},
		{Text: "Smith, J. (2001).", Page: 9},
	}
	sp, err := NewLocator(Options{MinPage: 3}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.Start != 3 {
		t.Errorf("Start = %d, want 3", sp.Start)
	}
}

func TestLocate_CustomHeadings(t *testing.T) {
	s := stream("Literature list", "Smith, J. (2001).")
	_, err := NewLocator(Options{}).Locate(s)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("default headings should not match: %v", err)
	}
	sp, err := NewLocator(Options{Headings: []string{"Literature list"}}).Locate(s)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if sp.Start != 1 {
		t.Errorf("Start = %d, want 1", sp.Start)
	}
}
