package layout

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sandell/refmine/internal/refrec"
)

func numberedSpan(style NumberedStyle, n int) []refrec.Line {
	out := make([]refrec.Line, n)
	for i := 0; i < n; i++ {
		var text string
		switch style {
		case StyleBracket:
			text = fmt.Sprintf("[%d] Smith, J. A study.", i+1)
		case StyleParen:
			text = fmt.Sprintf("(%d) Smith, J. A study.", i+1)
		default:
			text = fmt.Sprintf("%d. Smith, J. A study.", i+1)
		}
		out[i] = refrec.Line{Text: text}
	}
	return out
}

func TestClassify_BracketThresholdBoundary(t *testing.T) {
	// 14 markers: below the threshold, defaults to author-year.
	d, err := Classify(numberedSpan(StyleBracket, 14), Options{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutAPA {
		t.Errorf("14 markers: mode = %v, want apa", d.Mode)
	}

	// 15 markers: at the threshold, numbered.
	d, err = Classify(numberedSpan(StyleBracket, 15), Options{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutNumbered || d.Style != StyleBracket {
		t.Errorf("15 markers: got %v/%v, want numbered/bracket", d.Mode, d.Style)
	}
	if d.Marker == nil {
		t.Error("numbered decision must carry the marker pattern")
	}
	if d.MarkerCount != 15 {
		t.Errorf("MarkerCount = %d, want 15", d.MarkerCount)
	}
}

func TestClassify_BareThreshold(t *testing.T) {
	d, err := Classify(numberedSpan(StyleBare, 10), Options{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutNumbered || d.Style != StyleBare {
		t.Errorf("got %v/%v, want numbered/bare", d.Mode, d.Style)
	}

	// Until-EOF raises the bare threshold to 30.
	d, err = Classify(numberedSpan(StyleBare, 10), Options{UntilEOF: true})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutAPA {
		t.Errorf("until-eof with 10 bare markers: mode = %v, want apa", d.Mode)
	}

	d, err = Classify(numberedSpan(StyleBare, 30), Options{UntilEOF: true})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutNumbered {
		t.Errorf("until-eof with 30 bare markers: mode = %v, want numbered", d.Mode)
	}
}

func TestClassify_AuthorYearDefault(t *testing.T) {
	span := []refrec.Line{
		{Text: "Smith, J. (2001). A title. Journal."},
		{Text: "Jones, K. & Brown, L. (2002). Another. Press."},
	}
	d, err := Classify(span, Options{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutAPA {
		t.Errorf("mode = %v, want apa", d.Mode)
	}
}

func TestClassify_AmbiguousBand(t *testing.T) {
	// All three marker families half-triggered, no author-like lines.
	var span []refrec.Line
	for i := 0; i < 8; i++ {
		span = append(span, refrec.Line{Text: fmt.Sprintf("[%d] fragment", i+1)})
	}
	for i := 0; i < 8; i++ {
		span = append(span, refrec.Line{Text: fmt.Sprintf("(%d) fragment", i+1)})
	}
	for i := 0; i < 6; i++ {
		span = append(span, refrec.Line{Text: fmt.Sprintf("%d. fragment", i+1)})
	}
	_, err := Classify(span, Options{})
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Classify() error = %v, want ErrAmbiguous", err)
	}
}

func TestClassify_AuthorLinesResolveAmbiguity(t *testing.T) {
	var span []refrec.Line
	for i := 0; i < 8; i++ {
		span = append(span, refrec.Line{Text: fmt.Sprintf("[%d] fragment", i+1)})
	}
	for i := 0; i < 8; i++ {
		span = append(span, refrec.Line{Text: fmt.Sprintf("(%d) fragment", i+1)})
	}
	for i := 0; i < 6; i++ {
		span = append(span, refrec.Line{Text: fmt.Sprintf("%d. fragment", i+1)})
	}
	span = append(span,
		refrec.Line{Text: "Smith, J. A. Title one."},
		refrec.Line{Text: "Jones, K. Title two."},
		refrec.Line{Text: "Brown, L. M. Title three."},
	)
	d, err := Classify(span, Options{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutAPA {
		t.Errorf("mode = %v, want apa", d.Mode)
	}
}

func TestClassify_Forced(t *testing.T) {
	forced := refrec.LayoutYearAfterAuthors
	d, err := Classify(numberedSpan(StyleBracket, 20), Options{Forced: &forced})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutYearAfterAuthors {
		t.Errorf("mode = %v, want forced B", d.Mode)
	}
}

func TestClassify_ForcedNumberedCarriesMarker(t *testing.T) {
	forced := refrec.LayoutNumbered
	d, err := Classify(numberedSpan(StyleParen, 5), Options{Forced: &forced})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutNumbered {
		t.Errorf("mode = %v, want numbered", d.Mode)
	}
	if d.Marker == nil {
		t.Fatal("forced numbered decision must carry a marker pattern")
	}
	if d.Style != StyleParen {
		t.Errorf("style = %v, want paren", d.Style)
	}
}

func TestClassify_MarkerDigitCap(t *testing.T) {
	// Four-digit prefixes are years, not markers.
	var span []refrec.Line
	for i := 0; i < 20; i++ {
		span = append(span, refrec.Line{Text: fmt.Sprintf("%d. Annual report.", 1990+i)})
	}
	d, err := Classify(span, Options{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Mode != refrec.LayoutAPA {
		t.Errorf("mode = %v, want apa (years must not count as markers)", d.Mode)
	}
}
