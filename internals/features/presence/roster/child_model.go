// file: internals/features/presence/roster/child_model.go
package roster

import (
	"time"

	"gorm.io/gorm"
)

// ChildModel is the enrolled-children table the roster is read from.
// Attendance only needs the id; the rest belongs to enrollment.
type ChildModel struct {
	ChildID       string `gorm:"type:varchar(64);primaryKey;column:child_id" json:"child_id"`
	ChildName     string `gorm:"type:varchar(150);not null;column:child_name" json:"child_name"`
	ChildIsActive bool   `gorm:"not null;default:true;index:idx_children_active;column:child_is_active" json:"child_is_active"`

	ChildCreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();column:child_created_at" json:"child_created_at"`
	ChildUpdatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();column:child_updated_at" json:"child_updated_at"`
	ChildDeletedAt gorm.DeletedAt `gorm:"index;column:child_deleted_at" json:"child_deleted_at,omitempty"`
}

func (ChildModel) TableName() string { return "children" }
