package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandell/refmine/internal/acquire"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <pdf>",
	Short: "Validate a PDF and report its page count",
	Long: `Validate a local PDF's structure and report its page count without
running extraction. Useful for triaging downloads before a batch run.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

type checkResponse struct {
	Path  string `json:"path"`
	Pages int    `json:"pages"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		exitWithError(ExitError, "reading %s: %v", args[0], err)
	}

	pages, err := acquire.ValidatePDF(data)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("%s: %d pages\n", args[0], pages)
		return nil
	}
	return outputJSON(checkResponse{Path: args[0], Pages: pages})
}
