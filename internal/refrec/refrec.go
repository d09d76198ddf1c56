// Package refrec defines the core domain types for reference extraction.
package refrec

// Line is one normalized physical line together with the index of the
// source page it was extracted from. Immutable once produced.
type Line struct {
	Text string `json:"text"`
	Page int    `json:"page"`
}

// LayoutMode identifies which segmenter variant runs over the section span.
type LayoutMode int

const (
	// LayoutAPA is an unnumbered author (year) list.
	LayoutAPA LayoutMode = iota
	// LayoutNumbered is a list where every entry carries a numeric marker.
	LayoutNumbered
	// LayoutYearAtEnd is an unnumbered list with the year at the end of
	// the entry and initials-style given names (non-APA type A).
	LayoutYearAtEnd
	// LayoutYearAfterAuthors places the year directly after the author
	// list, initials-style (non-APA type B).
	LayoutYearAfterAuthors
	// LayoutYearAtEndFull is LayoutYearAtEnd with full first names
	// (non-APA type C).
	LayoutYearAtEndFull
	// LayoutYearAfterAuthorsFull is LayoutYearAfterAuthors with full
	// first names (non-APA type D).
	LayoutYearAfterAuthorsFull
)

// String returns the CLI-facing name of the layout mode.
func (m LayoutMode) String() string {
	switch m {
	case LayoutAPA:
		return "apa"
	case LayoutNumbered:
		return "numbered"
	case LayoutYearAtEnd:
		return "A"
	case LayoutYearAfterAuthors:
		return "B"
	case LayoutYearAtEndFull:
		return "C"
	case LayoutYearAfterAuthorsFull:
		return "D"
	}
	return "unknown"
}

// FullNames reports whether the mode uses full-first-name author detection.
func (m LayoutMode) FullNames() bool {
	return m == LayoutYearAtEndFull || m == LayoutYearAfterAuthorsFull
}

// YearAfterAuthors reports whether the mode expects the year directly
// after the author list rather than at the end of the entry.
func (m LayoutMode) YearAfterAuthors() bool {
	return m == LayoutYearAfterAuthors || m == LayoutYearAfterAuthorsFull
}

// LineClass is the classification assigned to a normalized line during
// segmentation. Derived per pass, never persisted.
type LineClass int

const (
	ClassNewReference LineClass = iota
	ClassContinuation
	ClassNoise
	ClassSectionBoundary
)

// String returns the audit-log name of the classification.
func (c LineClass) String() string {
	switch c {
	case ClassNewReference:
		return "new-reference"
	case ClassContinuation:
		return "continuation"
	case ClassNoise:
		return "noise"
	case ClassSectionBoundary:
		return "section-boundary"
	}
	return "unknown"
}

// Record is one joined bibliography entry. FirstLine and LastLine are
// indices into the section span for audit purposes; every span line
// belongs to exactly one record or is classified as noise.
type Record struct {
	Text      string `json:"text"`
	Trailer   string `json:"trailer,omitempty"`
	FirstLine int    `json:"first_line"`
	LastLine  int    `json:"last_line"`
}

// Merge appends the text of other to r with a single joining space and
// widens the provenance window.
func (r *Record) Merge(other Record) {
	r.Text = joinWithSpace(r.Text, other.Text)
	if other.LastLine > r.LastLine {
		r.LastLine = other.LastLine
	}
	if other.FirstLine < r.FirstLine {
		r.FirstLine = other.FirstLine
	}
}

// AppendText appends raw text to the record with a single joining space
// and extends the provenance window to lineIdx.
func (r *Record) AppendText(text string, lineIdx int) {
	r.Text = joinWithSpace(r.Text, text)
	if lineIdx > r.LastLine {
		r.LastLine = lineIdx
	}
}

func joinWithSpace(a, b string) string {
	a = trimRightSpace(a)
	b = trimLeftSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func trimRightSpace(s string) string {
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

func trimLeftSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	return s
}
