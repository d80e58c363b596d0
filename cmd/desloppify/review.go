package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/review"
	"github.com/xyleth/desloppify-sub004/internal/state"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Import or generate subjective assessments",
}

var reviewImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import assessments and review findings from a JSON file",
	Long: `Import a review payload:

  {"assessments": {"naming_quality": 82, "logic_clarity": {"score": 75}},
   "findings": [{"file": "src/api.py", "name": "god_object",
                 "summary": "ApiClient does everything",
                 "detail": {"dimension": "abstraction_fitness"}}]}

Review findings are never auto-resolved by scans.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source, _ := cmd.Flags().GetString("source")
		p, err := review.LoadPayload(args[0])
		if err != nil {
			fatal("%v", err)
		}
		s := loadState()
		diff, err := review.ImportAssessments(engine, s, p, source)
		if err != nil {
			fatal("%v", err)
		}
		saveState(s)
		printReviewDiff(diff)
		printIntegrity(s)
	},
}

var reviewRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Ask the AI reviewer for subjective assessments",
	Long: `Ask the configured model to assess subjective dimensions and import the
result. Requires ANTHROPIC_API_KEY.

Examples:
  desloppify review run
  desloppify review run --dimensions naming_quality,logic_clarity
  desloppify review run --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		dims, _ := cmd.Flags().GetStringSlice("dimensions")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		reviewer, err := review.NewReviewer(project.Review, engine.Policy)
		if err != nil {
			fatal("%v", err)
		}
		s := loadState()
		p, err := reviewer.Run(ctx, s, dims)
		if err != nil {
			fatal("%v", err)
		}

		if dryRun {
			for dim, score := range p.Assessments {
				fmt.Printf("  %-28s %5.1f\n", dim, float64(score))
			}
			fmt.Printf("%d review finding(s) not imported (dry run)\n", len(p.Findings))
			return
		}
		diff, err := review.ImportAssessments(engine, s, p, project.Review.Model)
		if err != nil {
			fatal("%v", err)
		}
		saveState(s)
		printReviewDiff(diff)
		printIntegrity(s)
	},
}

func init() {
	reviewImportCmd.Flags().String("source", "manual", "Label recorded with the assessments")
	reviewRunCmd.Flags().StringSlice("dimensions", nil, "Dimensions to review (default: all subjective dimensions)")
	reviewRunCmd.Flags().Bool("dry-run", false, "Print the assessments without importing them")

	reviewCmd.AddCommand(reviewImportCmd)
	reviewCmd.AddCommand(reviewRunCmd)
	rootCmd.AddCommand(reviewCmd)
}

func printReviewDiff(diff *state.ReviewDiff) {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Imported %d assessment(s): %s\n", green("✓"), len(diff.Assessed), strings.Join(diff.Assessed, ", "))
	fmt.Printf("  %d new review finding(s), %d reopened\n", diff.New, diff.Reopened)
}
