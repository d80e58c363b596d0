package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/config"
)

var ignoreCmd = &cobra.Command{
	Use:   "ignore <pattern>",
	Short: "Suppress findings matching a pattern",
	Long: `Add an ignore pattern and suppress every matching finding.

Suppressed findings stay unresolved: they are hidden from the queue but
still count against the score.

Examples:
  desloppify ignore "logs::scripts/*"
  desloppify ignore "vendor/**"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pattern := args[0]
		s := loadState()

		n, err := engine.AddIgnore(s, pattern)
		if err != nil {
			fatal("%v", err)
		}
		saveState(s)

		if project.AddIgnorePattern(pattern) {
			if err := config.SaveProject(configPath, project); err != nil {
				slog.Warn("could not save ignore pattern to config", "path", configPath, "error", err)
			}
		}
		fmt.Printf("Ignoring %q: %d finding(s) suppressed\n", pattern, n)
	},
}

func init() {
	rootCmd.AddCommand(ignoreCmd)
}
