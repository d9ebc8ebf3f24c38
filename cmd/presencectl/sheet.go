package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crecheku_backend/internals/features/presence"
	"crecheku_backend/internals/features/presence/dto"
	"crecheku_backend/internals/features/presence/report"
)

var (
	showDate   string
	exportDate string
	exportOut  string
)

// loadSheet reads the sheet for day; in --memory mode the store starts empty so the day is reconciled first.
func loadSheet(eng *presence.Engine, date string) (*dto.SheetView, error) {
	day, err := parseDayFlag(eng, date)
	if err != nil {
		return nil, err
	}
	if useMemory {
		return eng.Service.EnsureSheet(rootCtx, day)
	}
	return eng.Service.GetSheet(rootCtx, day)
}

func printSheet(v *dto.SheetView) error {
	if jsonOutput {
		return printJSON(v)
	}
	fmt.Printf("%s  %s  total=%d present=%d absent=%d justified=%d unresolved=%d\n",
		v.Date, v.Status, v.Summary.Total, v.Summary.Present, v.Summary.Absent,
		v.Summary.Justified, v.Summary.Unresolved)
	for _, r := range v.Records {
		mark := "absent"
		if r.Present {
			mark = "present"
		} else if r.Justification != nil {
			mark = "justified: " + r.Justification.Reason
		}
		fmt.Printf("  %s  %-12s %s\n", r.ID, r.ChildID, mark)
	}
	return nil
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a day's sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		v, err := loadSheet(eng, showDate)
		if err != nil {
			return err
		}
		return printSheet(v)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a day's sheet as an .xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		v, err := loadSheet(eng, exportDate)
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = "presence-" + v.Date + ".xlsx"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := report.WriteSheetXLSX(f, v); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("✅ wrote %s\n", out)
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showDate, "date", "", "Day to show (YYYY-MM-DD, default today)")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Day to export (YYYY-MM-DD, default today)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default presence-<date>.xlsx)")

	rootCmd.AddCommand(showCmd, exportCmd)
}
