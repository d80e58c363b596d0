package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/config"
	"github.com/xyleth/desloppify-sub004/internal/logging"
	"github.com/xyleth/desloppify-sub004/internal/state"
	"github.com/xyleth/desloppify-sub004/internal/types"
	"github.com/xyleth/desloppify-sub004/internal/version"
)

var (
	configPath string
	statePath  string
	verbose    bool

	project *config.Project
	engine  *state.Engine
)

var rootCmd = &cobra.Command{
	Use:     "desloppify",
	Short:   "Track codebase health across scans",
	Version: version.Version,
	Long: `desloppify reconciles detector findings across scans, tracks their
lifecycle and turns them into health scores.

Examples:
  desloppify scan
  desloppify next --count 5
  desloppify resolve fixed "unused::src/a.py" --attest "removed the import"
  desloppify status`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.Load(configPath)
		if err != nil {
			return err
		}
		project = p

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logging.Setup(os.Stderr, logging.Options{Level: level, JSON: p.LogJSON})

		if statePath == "" {
			statePath = p.ResolveStatePath(".")
		}
		engine = state.NewEngine(nil)
		engine.HistoryLimit = p.HistoryLimit
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Project config file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "State file (default "+config.DefaultStatePath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fatal prints an error and exits.
func fatal(format string, args ...any) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %s\n", red("Error:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// loadState loads the state file and applies project settings to it.
func loadState() *types.State {
	res, err := state.LoadState(statePath)
	if err != nil {
		fatal("%v", err)
	}
	if res.Warning != "" {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %s\n", yellow("⚠"), res.Warning)
	}
	project.ApplyTo(&res.State.Config)
	return res.State
}

func saveState(s *types.State) {
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		fatal("creating state directory: %v", err)
	}
	if err := engine.SaveState(s, statePath, integrityTarget()); err != nil {
		fatal("saving state: %v", err)
	}
}

// integrityTarget is the configured target_strict_score used by the
// subjective integrity check.
func integrityTarget() *float64 {
	t := project.TargetStrictScore
	return &t
}

func archivePath() string {
	if project.Archive.Path != "" {
		return project.Archive.Path
	}
	return config.DefaultArchivePath
}
