// Package main provides the refmine CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	// A missing .env is fine; it only supplies optional overrides.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "refmine",
	Short: "Reference-list extraction from scholarly PDFs",
	Long: `refmine extracts bibliographic reference lists from scholarly PDFs
and pre-extracted text files.

It locates the reference section, detects the list layout (numbered,
APA author-year, or initials-style variants), joins wrapped lines back
into whole entries, and canonicalizes DOIs. All commands output JSON by
default for easy integration with downstream tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
