package main

import (
	"fmt"

	"github.com/spf13/cobra"

	database "crecheku_backend/internals/databases"
	"crecheku_backend/internals/seeds"
)

var seedFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the children and presence tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if useMemory {
			return fmt.Errorf("migrate needs Postgres")
		}
		if err := database.Migrate(openDB()); err != nil {
			return err
		}
		fmt.Println("✅ migrated")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the children roster from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if useMemory {
			return fmt.Errorf("seed needs Postgres")
		}
		if err := seeds.RunAllSeeds(openDB(), seedFile); err != nil {
			return err
		}
		fmt.Println("✅ seeded")
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", seeds.DefaultChildrenFile, "Children JSON file")

	rootCmd.AddCommand(migrateCmd, seedCmd)
}
