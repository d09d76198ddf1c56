package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandell/refmine/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective global configuration",
	Long: `Show the global configuration loaded from
$XDG_CONFIG_HOME/refmine/config.yml (or ~/.config/refmine/config.yml).

Keys:
  extractor        Default PDF text backend (plain, rows)
  user_agent       Download User-Agent override
  rate_limit       Download rate in requests per second
  max_attempts     Download retry budget
  audit_log        Default decision-log path (.db/.sqlite selects SQLite)
  min_page_number  Lowest bare integer treated as a page number
  max_page_number  Highest bare integer treated as a page number
  max_append       Append budget of the year-seeking joiner
  placeholder      Repeated-author dash placeholder
  headings         Reference-section heading overrides`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

type configResponse struct {
	Path   string               `json:"path"`
	Config *config.GlobalConfig `json:"config"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	path := config.GlobalConfigPath()
	if humanOutput {
		fmt.Printf("config file: %s\n", path)
		fmt.Printf("extractor:       %s\n", cfg.Extractor)
		fmt.Printf("user_agent:      %s\n", cfg.UserAgent)
		fmt.Printf("rate_limit:      %g\n", cfg.RateLimit)
		fmt.Printf("max_attempts:    %d\n", cfg.MaxAttempts)
		fmt.Printf("audit_log:       %s\n", cfg.AuditLog)
		fmt.Printf("min_page_number: %d\n", cfg.MinPageNumber)
		fmt.Printf("max_page_number: %d\n", cfg.MaxPageNumber)
		fmt.Printf("max_append:      %d\n", cfg.MaxAppend)
		fmt.Printf("placeholder:     %q\n", cfg.Placeholder)
		fmt.Printf("headings:        %v\n", cfg.Headings)
		return nil
	}
	return outputJSON(configResponse{Path: path, Config: cfg})
}
