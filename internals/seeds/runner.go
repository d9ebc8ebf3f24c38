package seeds

import (
	"log"

	"crecheku_backend/internals/seeds/children"

	"gorm.io/gorm"
)

const DefaultChildrenFile = "internals/seeds/children/data_children.json"

func RunAllSeeds(db *gorm.DB, childrenFile string) error {
	if childrenFile == "" {
		childrenFile = DefaultChildrenFile
	}

	//* Roster
	if _, err := children.SeedChildrenFromJSON(db, childrenFile); err != nil {
		log.Printf("❌ Seeding children failed: %v", err)
		return err
	}
	return nil
}
