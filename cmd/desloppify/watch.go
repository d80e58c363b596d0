package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/config"
	"github.com/xyleth/desloppify-sub004/internal/detectors"
)

const watchDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rescan whenever files change",
	Long: `Watch the project tree and run a scan 300ms after changes settle.
Slow detectors are skipped unless --full is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		root, _ := cmd.Flags().GetString("root")
		lang, _ := cmd.Flags().GetString("lang")
		full, _ := cmd.Flags().GetBool("full")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runWatch(ctx, root, scanOptions{root: root, lang: lang, skipSlow: !full}); err != nil {
			fatal("%v", err)
		}
	},
}

func init() {
	watchCmd.Flags().String("root", ".", "Project root to watch")
	watchCmd.Flags().String("lang", "", "Language of the scans")
	watchCmd.Flags().Bool("full", false, "Run slow detectors too")
	rootCmd.AddCommand(watchCmd)
}

func watchExcludes() []string {
	return append([]string{config.DefaultDir + "/", ".git/"}, project.Structural.ExcludePatterns...)
}

func runWatch(ctx context.Context, root string, opts scanOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer watcher.Close()

	excludes := watchExcludes()
	if err := addWatchRecursive(watcher, root, excludes); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Printf("Watching %s %s\n", root, gray("(Ctrl-C to stop)"))

	rescan := func() {
		s := loadState()
		diff, err := runScan(ctx, s, opts)
		if err != nil {
			slog.Error("scan failed", "error", err)
			return
		}
		printScanDiff(s, diff)
	}

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil || detectors.ShouldExcludePath(filepath.ToSlash(rel), excludes) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addWatchRecursive(watcher, ev.Name, excludes); err != nil {
						slog.Warn("could not watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			timer.Reset(watchDebounce)
		case <-timer.C:
			rescan()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func addWatchRecursive(w *fsnotify.Watcher, root string, excludes []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(root, path); err == nil && rel != "." &&
			detectors.ShouldExcludePath(filepath.ToSlash(rel)+"/", excludes) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
