package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sandell/refmine/internal/engine"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError writes an error message to stderr and returns the exit code.
func outputError(code int, format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	return code
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// printResultHuman prints an extraction result as a readable numbered list.
func printResultHuman(res engine.Result) {
	fmt.Printf("layout: %s", res.LayoutName)
	if res.Style.String() != "none" {
		fmt.Printf(" (%s markers, %d counted)", res.Style, res.MarkerCount)
	}
	fmt.Println()
	if res.FallbackUsed {
		fmt.Println("note: numbered parse was spurious, reparsed as author-year")
	}
	if res.BackendSwitched {
		fmt.Printf("note: re-extracted with the %s backend\n", res.Backend)
	}
	if res.CapExceeded {
		fmt.Println("warning: joining stopped at its iteration cap without converging")
	}
	if res.MaxAppendHit {
		fmt.Println("warning: some entry absorbed its full append budget without reaching a year")
	}
	fmt.Println()
	for i, r := range res.Records {
		fmt.Printf("%3d. %s\n", i+1, r.Text)
		if r.Trailer != "" {
			fmt.Printf("     %s\n", r.Trailer)
		}
	}
	fmt.Printf("\n%d references\n", len(res.Records))
}
