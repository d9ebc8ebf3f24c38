package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crecheku_backend/internals/features/presence/scheduler"
	"crecheku_backend/internals/helpers/dbtime"
)

var runOnceDate string

var runOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Reconcile a single day (default today)",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		day, err := parseDayFlag(eng, runOnceDate)
		if err != nil {
			return err
		}
		res := eng.Scheduler.RunOnce(rootCtx, day)
		if jsonOutput {
			if err := printJSON(res); err != nil {
				return err
			}
		} else {
			fmt.Printf("%s %s attempts=%d %s\n", res.Day, res.Outcome, res.Attempts, res.Reason)
		}
		if res.Outcome == scheduler.DayFailed {
			return fmt.Errorf("day %s failed: %s", res.Day, res.Error)
		}
		return nil
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run a full pass: today plus the backfill window",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		rep := eng.Scheduler.Run(rootCtx, "cli")
		if jsonOutput {
			if err := printJSON(rep); err != nil {
				return err
			}
		} else {
			for _, d := range rep.Days {
				fmt.Printf("%s  %-8s attempts=%d %s\n", d.Day, d.Outcome, d.Attempts, d.Error)
			}
			fmt.Println(rep.Summary())
		}
		if rep.Failed() {
			return fmt.Errorf("%d day(s) failed", rep.Count(scheduler.DayFailed))
		}
		return nil
	},
}

var daysCmd = &cobra.Command{
	Use:   "days",
	Short: "List the days the next run would cover",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		for _, d := range eng.Scheduler.Days() {
			fmt.Println(dbtime.FormatDay(d))
		}
		return nil
	},
}

func init() {
	runOnceCmd.Flags().StringVar(&runOnceDate, "date", "", "Day to reconcile (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(runOnceCmd, backfillCmd, daysCmd)
}
