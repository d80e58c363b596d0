package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/archive"
	"github.com/xyleth/desloppify-sub004/internal/config"
	"github.com/xyleth/desloppify-sub004/internal/detectors"
	"github.com/xyleth/desloppify-sub004/internal/state"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run detectors and merge their findings into state",
	Long: `Run the registered detectors (or import a saved findings file) and
reconcile the results with the tracked findings.

Findings that disappear are auto-resolved, unless their detector looks like
it did not really run this time.

Examples:
  # Run every detector
  desloppify scan

  # Fast scan, skipping slow detectors
  desloppify scan --skip-slow

  # Import findings produced elsewhere
  desloppify scan --from findings.json --lang python

  # Only rescan one subtree
  desloppify scan --path src/api`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := scanOptions{}
		opts.from, _ = cmd.Flags().GetString("from")
		opts.lang, _ = cmd.Flags().GetString("lang")
		opts.path, _ = cmd.Flags().GetString("path")
		opts.root, _ = cmd.Flags().GetString("root")
		opts.force, _ = cmd.Flags().GetBool("force-resolve")
		opts.skipSlow, _ = cmd.Flags().GetBool("skip-slow")
		opts.only, _ = cmd.Flags().GetStringSlice("detector")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s := loadState()
		diff, err := runScan(ctx, s, opts)
		if err != nil {
			fatal("%v", err)
		}
		printScanDiff(s, diff)
	},
}

func init() {
	scanCmd.Flags().String("from", "", "Import raw findings from a JSON file instead of running detectors")
	scanCmd.Flags().String("lang", "", "Language of this scan")
	scanCmd.Flags().String("path", "", "Restrict reconciliation to this path")
	scanCmd.Flags().String("root", ".", "Project root to scan")
	scanCmd.Flags().Bool("force-resolve", false, "Auto-resolve missing findings even for suspect detectors")
	scanCmd.Flags().Bool("skip-slow", false, "Skip slow detectors")
	scanCmd.Flags().StringSlice("detector", nil, "Only run these detectors")
	rootCmd.AddCommand(scanCmd)
}

type scanOptions struct {
	from     string
	lang     string
	path     string
	root     string
	force    bool
	skipSlow bool
	only     []string
}

// runScan collects raw findings, merges them, saves state and archives the
// new history entry.
func runScan(ctx context.Context, s *types.State, opts scanOptions) (*state.ScanDiff, error) {
	var (
		raw        []types.RawFinding
		potentials map[string]int
	)
	if opts.from != "" {
		res, err := detectors.LoadRawFindings(opts.from)
		if err != nil {
			return nil, err
		}
		raw, potentials = res.Findings, res.Potentials
	} else {
		reg, err := detectors.FromProject(project, config.DefaultRunStatePath)
		if err != nil {
			return nil, err
		}
		batch, err := reg.Run(ctx, opts.root, detectors.RunOptions{
			Lang:     opts.lang,
			SkipSlow: opts.skipSlow,
			Only:     opts.only,
		})
		if err != nil {
			return nil, err
		}
		for name, err := range batch.Failed {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Fprintf(os.Stderr, "%s detector %s failed: %v\n", yellow("⚠"), name, err)
		}
		raw, potentials = batch.Findings, batch.Potentials
	}

	for i := range raw {
		if raw[i].Zone == "" {
			raw[i].Zone = detectors.ZoneForPath(raw[i].File, project.ZoneFor)
		}
	}

	diff, err := engine.MergeScan(s, raw, state.MergeOptions{
		Lang:            opts.lang,
		ScanPath:        opts.path,
		ForceResolve:    opts.force,
		Exclude:         project.Exclude,
		Potentials:      potentials,
		MergePotentials: len(opts.only) > 0,
		SkipSlow:        opts.skipSlow,
		IntegrityTarget: integrityTarget(),
	})
	if err != nil {
		return nil, err
	}
	saveState(s)
	archiveLastScan(ctx, s)
	return diff, nil
}

func archiveLastScan(ctx context.Context, s *types.State) {
	if !project.Archive.Enabled {
		return
	}
	entry, ok := state.LastScanEntry(s)
	if !ok {
		return
	}
	a, err := archive.Open(archivePath())
	if err != nil {
		slog.Warn("scan archive unavailable", "error", err)
		return
	}
	defer a.Close()
	if err := a.Record(ctx, entry); err != nil {
		slog.Warn("could not archive scan", "error", err)
		return
	}
	if n, err := a.Prune(ctx, project.Archive.Retention(), project.Archive.Keep, time.Now()); err != nil {
		slog.Warn("could not prune scan archive", "error", err)
	} else if n > 0 {
		slog.Debug("pruned scan archive", "deleted", n)
	}
}

func printScanDiff(s *types.State, diff *state.ScanDiff) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Printf("\n%s\n", cyan("=== Scan complete ==="))
	fmt.Printf("  %d current · %s new · %s resolved · %d reopened\n",
		diff.TotalCurrent, yellow(diff.New), green(diff.AutoResolved), diff.Reopened)
	if diff.Ignored > 0 {
		fmt.Printf("  %d suppressed by %d ignore pattern(s) (%.1f%% of raw findings)\n",
			diff.Ignored, diff.IgnorePatterns, diff.SuppressedPct)
	}
	if len(diff.SuspectDetectors) > 0 {
		fmt.Printf("  %s kept findings of suspect detectors: %v\n", yellow("⚠"), diff.SuspectDetectors)
	}
	if n := diff.SkippedOtherLang + diff.SkippedOutOfScope; n > 0 {
		fmt.Printf("  %d finding(s) outside this scan's scope left untouched\n", n)
	}
	for _, f := range diff.ChronicReopeners {
		fmt.Printf("  %s chronic: %s (reopened %d×)\n", yellow("↻"), f.ID, f.ReopenCount)
	}
	fmt.Println()
	printScores(s)
}

func printScores(s *types.State) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("  Health %s  objective %.1f  strict %.1f  verified %.1f\n",
		bold(fmt.Sprintf("%.1f", s.OverallScore)), s.ObjectiveScore, s.StrictScore, s.VerifiedStrictScore)
	fmt.Printf("  Open %d · fixed %d · auto-resolved %d · wontfix %d · false positive %d\n\n",
		s.Stats.Open, s.Stats.Fixed, s.Stats.AutoResolved, s.Stats.Wontfix, s.Stats.FalsePositive)
}
