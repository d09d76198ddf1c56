package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandell/refmine/internal/acquire"
	"github.com/sandell/refmine/internal/audit"
	"github.com/sandell/refmine/internal/config"
	"github.com/sandell/refmine/internal/engine"
	"github.com/sandell/refmine/internal/layout"
	"github.com/sandell/refmine/internal/refrec"
	"github.com/sandell/refmine/internal/section"
	"github.com/sandell/refmine/internal/textnorm"
)

var extractFlags struct {
	refType            string
	extractor          string
	stripNumbers       bool
	maxPrefixDigits    int
	untilEOF           bool
	stopAtAllCaps      bool
	noNumberedFallback bool
	auditLog           string
	minPageNumber      int
	maxPageNumber      int
	minPage            int
	maxAppend          int
	placeholder        string
	headings           []string
	timeout            time.Duration
}

func init() {
	rootCmd.AddCommand(extractCmd)

	f := extractCmd.Flags()
	f.StringVar(&extractFlags.refType, "ref-type", "", "Force list layout: N, apa, A, B, C, or D")
	f.StringVar(&extractFlags.extractor, "extractor", "", "PDF text backend: plain or rows")
	f.BoolVar(&extractFlags.stripNumbers, "strip-numbers", false, "Strip leading entry numbers from output records")
	f.IntVar(&extractFlags.maxPrefixDigits, "max-prefix-digits", 0, "Digit cap for strippable entry numbers")
	f.BoolVar(&extractFlags.untilEOF, "until-eof", false, "Read the reference section until end of file")
	f.BoolVar(&extractFlags.stopAtAllCaps, "stop-at-caps", false, "End the section at the next ALL-CAPS heading")
	f.BoolVar(&extractFlags.noNumberedFallback, "no-numbered-fallback", false, "Disable recovery when a numbered parse degenerates")
	f.StringVar(&extractFlags.auditLog, "audit-log", "", "Record joining decisions to this file (.db/.sqlite selects SQLite)")
	f.IntVar(&extractFlags.minPageNumber, "min-page-number", 0, "Lowest bare integer treated as a running page number")
	f.IntVar(&extractFlags.maxPageNumber, "max-page-number", 0, "Highest bare integer treated as a running page number")
	f.IntVar(&extractFlags.minPage, "min-page", 0, "Skip reference headings on earlier pages")
	f.IntVar(&extractFlags.maxAppend, "max-append", 0, "Append budget of the year-seeking joiner")
	f.StringVar(&extractFlags.placeholder, "placeholder", "", "Repeated-author dash placeholder")
	f.StringSliceVar(&extractFlags.headings, "heading", nil, "Additional reference-section heading (repeatable)")
	f.DurationVar(&extractFlags.timeout, "timeout", 5*time.Minute, "Overall deadline for downloads")
}

var extractCmd = &cobra.Command{
	Use:   "extract <source>",
	Short: "Extract the reference list from a PDF, URL, or text file",
	Long: `Extract the reference list from a scholarly document.

The source is a local PDF path, an http(s) URL to a PDF, or a .txt file
with already-extracted text.

Example:
  refmine extract thesis.pdf
  refmine extract --ref-type B --strip-numbers https://example.org/diss.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	opts, recorder, err := buildOptions(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if recorder != nil {
		opts.Recorder = recorder
		defer recorder.Close()
	}

	clientOpts := []acquire.ClientOption{}
	if cfg.UserAgent != "" {
		clientOpts = append(clientOpts, acquire.WithUserAgent(cfg.UserAgent))
	}
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, acquire.WithRateLimit(cfg.RateLimit))
	}
	if cfg.MaxAttempts > 0 {
		clientOpts = append(clientOpts, acquire.WithMaxAttempts(cfg.MaxAttempts))
	}
	opts.Client = acquire.NewClient(clientOpts...)

	ctx, cancel := context.WithTimeout(cmd.Context(), extractFlags.timeout)
	defer cancel()

	res, err := engine.ExtractReferences(ctx, args[0], opts)
	if err != nil {
		switch {
		case errors.Is(err, section.ErrNotFound),
			errors.Is(err, textnorm.ErrEmptyInput),
			errors.Is(err, acquire.ErrUnreadable),
			errors.Is(err, acquire.ErrNotPDF):
			exitWithError(ExitDataError, "%v", err)
		case errors.Is(err, layout.ErrAmbiguous):
			exitWithError(ExitDataError, "%v (force a layout with --ref-type)", err)
		default:
			exitWithError(ExitError, "%v", err)
		}
	}

	if humanOutput {
		printResultHuman(res)
		return nil
	}
	return outputJSON(res)
}

// buildOptions merges flags over the global config into engine options
// and opens the audit recorder when one is configured. Flags win.
func buildOptions(cfg *config.GlobalConfig) (engine.Options, audit.Recorder, error) {
	opts := engine.Options{
		UntilEOF:           extractFlags.untilEOF,
		StopAtAllCaps:      extractFlags.stopAtAllCaps,
		NoNumberedFallback: extractFlags.noNumberedFallback,
		StripNumbers:       extractFlags.stripNumbers,
		MaxPrefixDigits:    extractFlags.maxPrefixDigits,
		MinPage:            extractFlags.minPage,
	}

	extractor := extractFlags.extractor
	if extractor == "" {
		extractor = cfg.Extractor
	}
	switch extractor {
	case "", "plain":
		opts.Backend = acquire.BackendPlain
	case "rows":
		opts.Backend = acquire.BackendRows
	default:
		return opts, nil, errInvalidValue("--extractor", extractor, "plain, rows")
	}

	if extractFlags.refType != "" {
		mode, err := parseRefType(extractFlags.refType)
		if err != nil {
			return opts, nil, err
		}
		opts.ForcedLayout = &mode
	}

	opts.MaxAppend = extractFlags.maxAppend
	if opts.MaxAppend == 0 {
		opts.MaxAppend = cfg.MaxAppend
	}
	opts.Placeholder = extractFlags.placeholder
	if opts.Placeholder == "" {
		opts.Placeholder = cfg.Placeholder
	}

	opts.PageWindow = textnorm.PageWindow{
		Min: firstNonZero(extractFlags.minPageNumber, cfg.MinPageNumber),
		Max: firstNonZero(extractFlags.maxPageNumber, cfg.MaxPageNumber),
	}

	if len(extractFlags.headings) > 0 {
		opts.Headings = extractFlags.headings
	} else if len(cfg.Headings) > 0 {
		opts.Headings = cfg.Headings
	}

	auditPath := extractFlags.auditLog
	if auditPath == "" {
		auditPath = cfg.AuditLog
	}
	if auditPath == "" {
		return opts, nil, nil
	}
	auditPath = config.ExpandTilde(auditPath)

	var recorder audit.Recorder
	var err error
	lower := strings.ToLower(auditPath)
	if strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") {
		recorder, err = audit.NewSQLiteRecorder(auditPath)
	} else {
		recorder, err = audit.NewFileRecorder(auditPath)
	}
	if err != nil {
		return opts, nil, err
	}
	return opts, recorder, nil
}

// parseRefType maps the CLI layout names onto layout modes.
func parseRefType(s string) (refrec.LayoutMode, error) {
	switch strings.ToLower(s) {
	case "n", "numbered":
		return refrec.LayoutNumbered, nil
	case "apa":
		return refrec.LayoutAPA, nil
	case "a":
		return refrec.LayoutYearAtEnd, nil
	case "b":
		return refrec.LayoutYearAfterAuthors, nil
	case "c":
		return refrec.LayoutYearAtEndFull, nil
	case "d":
		return refrec.LayoutYearAfterAuthorsFull, nil
	}
	return 0, errInvalidValue("--ref-type", s, "N, apa, A, B, C, D")
}

func errInvalidValue(flag, got, want string) error {
	return fmt.Errorf("invalid %s value %q (want one of: %s)", flag, got, want)
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
