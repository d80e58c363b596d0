package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/config"
	"github.com/xyleth/desloppify-sub004/internal/detectors"
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "Inspect configured detectors",
}

var detectorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detectors and their last run",
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := detectors.FromProject(project, config.DefaultRunStatePath)
		if err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		for _, name := range reg.List() {
			d, _ := reg.Get(name)
			tags := ""
			if d.Lang() != "" {
				tags += " lang=" + d.Lang()
			}
			if d.Slow() {
				tags += " slow"
			}
			fmt.Printf("%s%s\n", name, gray(tags))

			st, ok := reg.RunStateFor(name)
			switch {
			case !ok || st.RunCount == 0:
				fmt.Printf("  %s\n", gray("never run"))
			case st.LastError != "":
				fmt.Printf("  %s %s (%d of %d runs failed)\n", red("✗"), st.LastError, st.FailureCount, st.RunCount)
			default:
				fmt.Printf("  %s %s · %d finding(s) of %d checked · %dms\n", green("✓"),
					st.LastRun.Local().Format("2006-01-02 15:04"), st.LastFindingCount, st.LastPotential, st.LastDurationMS)
			}
		}
	},
}

func init() {
	detectorsCmd.AddCommand(detectorsListCmd)
	rootCmd.AddCommand(detectorsCmd)
}
