package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/leadsync/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List all configured posting sources",
	Long:  "Reads the config and prints a table of all configured posting sources.",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-20s %-12s %-40s %s\n", "Source", "Type", "Target", "Status")
	fmt.Println(strings.Repeat("─", 84))

	enabled := enabledSources(cfg.Sources)
	for _, s := range cfg.Sources {
		status := "enabled"
		if !s.Enabled {
			status = "disabled"
		}
		fmt.Printf("%-20s %-12s %-40s %s\n", s.Name, s.Type, sourceTarget(s), status)
	}

	fmt.Printf("\nTotal: %d sources (%d enabled, %d disabled)\n", len(cfg.Sources), enabled, len(cfg.Sources)-enabled)
	return nil
}

func enabledSources(sources []config.SourceConfig) int {
	n := 0
	for _, s := range sources {
		if s.Enabled {
			n++
		}
	}
	return n
}

func sourceTarget(s config.SourceConfig) string {
	switch s.Type {
	case "file":
		return s.Path
	case "http":
		return s.URL
	case "greenhouse", "lever", "ashby", "gem":
		return "board " + s.BoardToken
	}
	return ""
}
