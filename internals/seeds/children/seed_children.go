package children

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"crecheku_backend/internals/features/presence/roster"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChildSeed struct {
	ChildID   string `json:"child_id"`
	ChildName string `json:"child_name"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// SeedChildrenFromJSON inserts the dev roster; existing ids are skipped.
func SeedChildrenFromJSON(db *gorm.DB, filePath string) (int64, error) {
	log.Println("📥 Reading children file:", filePath)

	file, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", filePath, err)
	}

	var inputs []ChildSeed
	if err := json.Unmarshal(file, &inputs); err != nil {
		return 0, fmt.Errorf("decode %s: %w", filePath, err)
	}

	rows, err := buildChildren(inputs, time.Now())
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		log.Println("ℹ️ No children to seed.")
		return 0, nil
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 200)
	if res.Error != nil {
		return 0, fmt.Errorf("insert children: %w", res.Error)
	}
	log.Printf("✅ Seeded %d children (%d skipped, already present)", res.RowsAffected, int64(len(rows))-res.RowsAffected)
	return res.RowsAffected, nil
}

func buildChildren(inputs []ChildSeed, now time.Time) ([]roster.ChildModel, error) {
	seen := map[string]bool{}
	out := make([]roster.ChildModel, 0, len(inputs))
	for i, in := range inputs {
		id := strings.TrimSpace(in.ChildID)
		if id == "" {
			return nil, fmt.Errorf("entry %d: child_id is required", i)
		}
		if seen[id] {
			log.Printf("ℹ️ Duplicate child_id %q in seed file, skipped.", id)
			continue
		}
		seen[id] = true

		active := true
		if in.IsActive != nil {
			active = *in.IsActive
		}
		name := strings.TrimSpace(in.ChildName)
		if name == "" {
			name = id
		}
		out = append(out, roster.ChildModel{
			ChildID:        id,
			ChildName:      name,
			ChildIsActive:  active,
			ChildCreatedAt: now,
			ChildUpdatedAt: now,
		})
	}
	return out, nil
}
