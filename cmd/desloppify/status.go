package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/state"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show health scores and finding statistics",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadState()
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n", cyan("=== Codebase Health ==="))
		if s.LastScan == nil {
			fmt.Printf("  %s\n\n", gray("No scans yet. Run 'desloppify scan'."))
			return
		}
		fmt.Printf("  Last scan %s (#%d)\n", s.LastScan.Format("2006-01-02 15:04"), s.ScanCount)
		if len(s.ScanCompleteness) > 0 {
			langs := make([]string, 0, len(s.ScanCompleteness))
			for lang := range s.ScanCompleteness {
				langs = append(langs, lang)
			}
			sort.Strings(langs)
			for _, lang := range langs {
				fmt.Printf("  %s: %s scan\n", lang, s.ScanCompleteness[lang])
			}
		}
		fmt.Println()
		printScores(s)

		if len(s.DimensionScores) > 0 {
			fmt.Printf("%s\n", yellow("Dimensions:"))
			names := make([]string, 0, len(s.DimensionScores))
			for name := range s.DimensionScores {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				d := s.DimensionScores[name]
				marker := ""
				if d.CarriedForward {
					marker = gray(" (carried forward)")
				}
				if d.IsSubjective() {
					marker += gray(" (subjective)")
				}
				fmt.Printf("  %-32s %6.1f  strict %6.1f  %s%s\n", name, d.Score, d.StrictScore,
					scoreBar(d.Score), marker)
			}
			fmt.Println()
		}

		printIntegrity(s)

		m := state.ComputeSuppressionMetrics(s, 5)
		if m.RecentIgnored > 0 {
			fmt.Printf("%s\n", yellow("Suppression:"))
			fmt.Printf("  last scan %d of %d raw findings ignored (%.1f%%)\n",
				m.LastIgnored, m.LastRawFindings, m.LastSuppressedPct)
			fmt.Printf("  last %d scans %.1f%% suppressed by %d pattern(s)\n\n",
				m.RecentScans, m.RecentSuppressedPct, m.LastIgnorePatterns)
		}

		if chronic := state.ChronicReopeners(s); len(chronic) > 0 {
			fmt.Printf("%s %d chronic reopener(s); see 'desloppify next --chronic'\n\n", yellow("↻"), len(chronic))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printIntegrity(s *types.State) {
	if s.Integrity == nil || s.Integrity.Status == types.IntegrityDisabled {
		return
	}
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	target := 0.0
	if s.Integrity.TargetScore != nil {
		target = *s.Integrity.TargetScore
	}
	switch s.Integrity.Status {
	case types.IntegrityPenalized:
		fmt.Printf("%s %d subjective dimension(s) matched the target %.1f and were reset to 0: %v\n\n",
			red("✗ Integrity:"), s.Integrity.MatchedCount, target, s.Integrity.ResetDimensions)
	case types.IntegrityWarn:
		fmt.Printf("%s %v sits on the target %.1f\n\n", yellow("⚠ Integrity:"), s.Integrity.MatchedDimensions, target)
	default:
		fmt.Printf("%s no subjective scores sit on the target\n\n", green("✓ Integrity:"))
	}
}

func scoreBar(score float64) string {
	const width = 20
	filled := int(score / 100 * width)
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}
	c := color.New(color.FgGreen)
	switch {
	case score < 60:
		c = color.New(color.FgRed)
	case score < 85:
		c = color.New(color.FgYellow)
	}
	return c.Sprint(string(bar))
}
