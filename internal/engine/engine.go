// Package engine wires the extraction pipeline end to end: acquire the
// document, normalize its text, locate the reference section, classify
// the list layout, join lines into records, and run the finishing
// passes.
package engine

import (
	"context"

	"github.com/sandell/refmine/internal/acquire"
	"github.com/sandell/refmine/internal/audit"
	"github.com/sandell/refmine/internal/layout"
	"github.com/sandell/refmine/internal/postproc"
	"github.com/sandell/refmine/internal/refrec"
	"github.com/sandell/refmine/internal/section"
	"github.com/sandell/refmine/internal/segment"
	"github.com/sandell/refmine/internal/textnorm"
)

// Options configures a full extraction run. Zero values select the
// pipeline defaults.
type Options struct {
	// Backend selects the initial PDF text-extraction backend.
	Backend acquire.Backend
	// Client performs downloads; nil means acquire.NewClient().
	Client *acquire.Client

	// ForcedLayout pins the list layout, skipping detection.
	ForcedLayout *refrec.LayoutMode
	// UntilEOF extends the section span to end of file and raises the
	// bare-marker threshold accordingly.
	UntilEOF bool
	// Headings overrides the reference-section heading set.
	Headings []string
	// StopAtAllCaps ends the section at the next ALL-CAPS heading line.
	StopAtAllCaps bool
	// MinPage skips heading matches on earlier pages.
	MinPage int
	// PageWindow bounds which bare integers count as page-number lines.
	PageWindow textnorm.PageWindow

	// MaxAppend bounds the year-seeking joiner of the year-at-end layouts.
	MaxAppend int
	// NoNumberedFallback disables both recovery paths taken when a
	// numbered parse degenerates into marker-only records: the alternate
	// extraction backend and the marker-strip author-year reparse.
	NoNumberedFallback bool

	// StripNumbers removes leading entry numbers from the output records.
	StripNumbers bool
	// MaxPrefixDigits caps the digit width of strippable prefixes.
	MaxPrefixDigits int
	// Placeholder overrides the repeated-author dash placeholder.
	Placeholder string

	// Recorder receives per-line joining decisions. Nil disables auditing.
	Recorder audit.Recorder
}

// Result is the outcome of an extraction run.
type Result struct {
	Records []refrec.Record `json:"records"`
	// Layout is the mode the records were parsed with, after any fallback.
	Layout refrec.LayoutMode `json:"-"`
	// LayoutName is the CLI-facing layout name.
	LayoutName string `json:"layout"`
	// Style is the marker notation of a numbered layout.
	Style layout.NumberedStyle `json:"-"`
	// MarkerCount is the number of entry markers counted during
	// classification.
	MarkerCount int `json:"marker_count,omitempty"`
	// Backend is the extraction backend the final parse used.
	Backend string `json:"backend,omitempty"`
	// Pages is the number of pages the document yielded.
	Pages int `json:"pages,omitempty"`
	// Iterations counts the main fixed-point passes of the joiner.
	Iterations int `json:"iterations"`
	// CapExceeded is set when a joining loop stopped at its iteration cap
	// without converging.
	CapExceeded bool `json:"cap_exceeded,omitempty"`
	// MaxAppendHit is set when the year-seeking joiner absorbed its full
	// append budget on some record.
	MaxAppendHit bool `json:"max_append_hit,omitempty"`
	// FallbackUsed is set when a degenerate numbered parse was reparsed
	// as an author-year list over the marker-stripped span.
	FallbackUsed bool `json:"fallback_used,omitempty"`
	// BackendSwitched is set when the document was re-extracted with the
	// alternate backend after a degenerate first parse.
	BackendSwitched bool `json:"backend_switched,omitempty"`
}

// ExtractReferences runs the full pipeline against source: a PDF path,
// an http(s) URL to a PDF, or a plain-text file. The context governs
// downloads only; local parsing is not cancelable.
func ExtractReferences(ctx context.Context, source string, opts Options) (Result, error) {
	client := opts.Client
	if client == nil {
		client = acquire.NewClient()
	}

	pages, err := client.Load(ctx, source, opts.Backend)
	if err != nil {
		return Result{}, err
	}

	res, degenerate, err := runParse(pages, opts)
	if err != nil {
		return Result{}, err
	}
	res.Backend = opts.Backend.String()
	res.Pages = len(pages)

	// A numbered parse that collapsed into marker-only records usually
	// means the extraction backend shredded the lines; the other backend
	// often reads the same PDF cleanly.
	if degenerate && !opts.NoNumberedFallback &&
		acquire.DetectKind(source) != acquire.KindTextFile {
		alt := opts.Backend.Alternate()
		altPages, altErr := client.Load(ctx, source, alt)
		if altErr == nil {
			altRes, altDegenerate, altErr := runParse(altPages, opts)
			if altErr == nil && !altDegenerate {
				altRes.Backend = alt.String()
				altRes.Pages = len(altPages)
				altRes.BackendSwitched = true
				return finalize(altRes, opts), nil
			}
		}
	}

	return finalize(res, opts), nil
}

// ExtractFromText runs the pipeline over already-extracted text,
// bypassing acquisition. pages carries one string per source page; a
// single-element slice is fine for pre-joined text.
func ExtractFromText(pages []string, opts Options) (Result, error) {
	res, _, err := runParse(pages, opts)
	if err != nil {
		return Result{}, err
	}
	res.Pages = len(pages)
	return finalize(res, opts), nil
}

// runParse normalizes, locates, classifies, and joins. The degenerate
// flag reports a numbered parse whose standalone-marker ratio exceeded
// the fallback threshold; when the in-band marker-strip fallback
// already recovered it the flag still signals that the source text was
// suspect, letting the caller try the other extraction backend.
func runParse(pages []string, opts Options) (Result, bool, error) {
	stream, err := textnorm.Normalize(pages, textnorm.Options{PageWindow: opts.PageWindow})
	if err != nil {
		return Result{}, false, err
	}

	locator := section.NewLocator(section.Options{
		Headings:      opts.Headings,
		UntilEOF:      opts.UntilEOF,
		StopAtAllCaps: opts.StopAtAllCaps,
		MinPage:       opts.MinPage,
	})
	sp, err := locator.Locate(stream)
	if err != nil {
		return Result{}, false, err
	}
	span := stream[sp.Start:sp.End]

	decision, err := layout.Classify(span, layout.Options{
		UntilEOF: opts.UntilEOF,
		Forced:   opts.ForcedLayout,
	})
	if err != nil {
		return Result{}, false, err
	}

	res := Result{
		Layout:      decision.Mode,
		Style:       decision.Style,
		MarkerCount: decision.MarkerCount,
	}

	switch decision.Mode {
	case refrec.LayoutNumbered:
		nr := segment.JoinNumbered(span, segment.NumberedOptions{
			Marker:   decision.Marker,
			Recorder: opts.Recorder,
		})
		res.Records = nr.Records
		res.Iterations = nr.Iterations
		res.CapExceeded = nr.CapExceeded

		if nr.StandaloneRatio > segment.StandaloneFallbackRatio {
			if opts.NoNumberedFallback {
				return res, true, nil
			}
			stripped := segment.StripMarkers(span, decision.Marker)
			fb := segment.JoinNonAPA(stripped, segment.NonAPAOptions{
				Mode:      refrec.LayoutYearAtEnd,
				MaxAppend: opts.MaxAppend,
				Recorder:  opts.Recorder,
			})
			res.Records = fb.Records
			res.Iterations = fb.Iterations
			res.CapExceeded = fb.CapExceeded
			res.MaxAppendHit = fb.MaxAppendHit
			res.Layout = refrec.LayoutYearAtEnd
			res.FallbackUsed = true
			return res, true, nil
		}

	case refrec.LayoutAPA:
		ar := segment.JoinAPA(span, segment.APAOptions{
			FullNames: false,
			Recorder:  opts.Recorder,
		})
		res.Records = ar.Records
		res.Iterations = ar.Iterations
		res.CapExceeded = ar.CapExceeded

	default:
		nr := segment.JoinNonAPA(span, segment.NonAPAOptions{
			Mode:      decision.Mode,
			MaxAppend: opts.MaxAppend,
			Recorder:  opts.Recorder,
		})
		res.Records = nr.Records
		res.Iterations = nr.Iterations
		res.CapExceeded = nr.CapExceeded
		res.MaxAppendHit = nr.MaxAppendHit
	}

	return res, false, nil
}

// finalize runs the shared post-processing over the joined records.
// Number stripping happens first so placeholder repair sees marker-free
// text on both the placeholder record and the author record it copies
// its prefix from.
func finalize(res Result, opts Options) Result {
	res.Records = postproc.Finalize(res.Records, postproc.Options{
		StripNumbers:    opts.StripNumbers,
		MaxPrefixDigits: opts.MaxPrefixDigits,
		Placeholder:     opts.Placeholder,
	})
	res.Records = postproc.RepairDashPlaceholders(res.Records, opts.Placeholder)
	res.LayoutName = res.Layout.String()
	return res
}
