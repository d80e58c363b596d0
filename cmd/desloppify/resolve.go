package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/state"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <fixed|wontfix|false_positive> <pattern>",
	Short: "Manually resolve open findings",
	Long: `Resolve every open finding matching pattern.

A pattern is a finding ID, an ID prefix, a glob ("unused::*"), a detector
name or a file path. wontfix requires --note. Every resolution requires an
attestation describing what was done.

Examples:
  desloppify resolve fixed unused::src/a.py::os --attest "removed import"
  desloppify resolve wontfix "structural::*" --note "generated code" --attest "agreed in review"
  desloppify resolve fixed logs --dry-run`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		status := types.Status(args[0])
		pattern := args[1]
		note, _ := cmd.Flags().GetString("note")
		attest, _ := cmd.Flags().GetString("attest")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		s := loadState()
		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()

		if dryRun {
			matches := state.MatchFindings(s, pattern, string(types.StatusOpen))
			fmt.Printf("Would resolve %d finding(s) as %s:\n", len(matches), status)
			for _, f := range matches {
				fmt.Printf("  %s  %s\n", cyan(f.ID), f.Summary)
			}
			return
		}

		if err := state.ValidateResolution(status, note, attest); err != nil {
			fatal("%v", err)
		}
		before := s.OverallScore
		ids, err := engine.ResolveFindings(s, pattern, status, note, attest)
		if err != nil {
			fatal("%v", err)
		}
		if len(ids) == 0 {
			fmt.Printf("No open findings match %q\n", pattern)
			return
		}
		saveState(s)

		for _, id := range ids {
			fmt.Printf("%s %s\n", green("✓"), id)
		}
		fmt.Printf("\nResolved %d finding(s) as %s. Health %.1f → %.1f\n", len(ids), status, before, s.OverallScore)
	},
}

func init() {
	resolveCmd.Flags().String("note", "", "Why (required for wontfix)")
	resolveCmd.Flags().String("attest", "", "Attestation of what was done")
	resolveCmd.Flags().Bool("dry-run", false, "Show what would be resolved")
	rootCmd.AddCommand(resolveCmd)
}
