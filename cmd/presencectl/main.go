// Command presencectl drives the presence engine from a shell: migrations,
// seeding, one-off reconciliation and the staff/secretary steps.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"crecheku_backend/internals/configs"
	database "crecheku_backend/internals/databases"
	"crecheku_backend/internals/features/presence"
	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/helpers/dbtime"
)

var (
	useMemory  bool
	rosterIDs  []string
	jsonOutput bool

	rootCtx     context.Context
	rootCancel  context.CancelFunc
	presenceCfg configs.PresenceConfig
)

var rootCmd = &cobra.Command{
	Use:           "presencectl",
	Short:         "Daily presence sheets: reconcile, inspect, validate, justify",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configs.LoadEnv()
		presenceCfg = configs.LoadPresenceConfig()
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rootCancel != nil {
			rootCancel()
		}
		if !useMemory {
			database.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "Use a process-local store and the --roster list instead of Postgres")
	rootCmd.PersistentFlags().StringSliceVar(&rosterIDs, "roster", nil, "Child ids for --memory mode (comma separated)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// openDB connects lazily so --memory never touches Postgres.
func openDB() *gorm.DB {
	if database.DB == nil {
		database.ConnectDB()
	}
	return database.DB
}

func openEngine() (*presence.Engine, error) {
	if useMemory {
		if len(rosterIDs) == 0 {
			return nil, fmt.Errorf("--memory needs --roster")
		}
		return presence.NewMemoryEngine(rosterIDs, presenceCfg), nil
	}
	eng, _ := presence.NewPostgresEngine(openDB(), presenceCfg)
	return eng, nil
}

// parseDayFlag accepts YYYY-MM-DD, "today" or an empty value (today).
func parseDayFlag(eng *presence.Engine, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "today") {
		return eng.Service.Today(), nil
	}
	return dbtime.ParseDay(v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode maps presence error kinds to distinct exit codes for scripts.
func exitCode(err error) int {
	pe := model.AsError(err)
	if pe == nil {
		return 1
	}
	switch pe.Kind {
	case model.KindInvalid:
		return 2
	case model.KindNotFound:
		return 3
	case model.KindConflict:
		return 4
	case model.KindUpstream:
		return 5
	default:
		return 1
	}
}
