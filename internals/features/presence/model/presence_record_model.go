// file: internals/features/presence/model/presence_record_model.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type PresenceRecordModel struct {
	PresenceRecordID      uuid.UUID `gorm:"type:uuid;primaryKey;column:presence_record_id" json:"presence_record_id"`
	PresenceRecordSheetID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_presence_records_sheet_child,priority:1;column:presence_record_sheet_id" json:"presence_record_sheet_id"`
	PresenceRecordChildID string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_presence_records_sheet_child,priority:2;column:presence_record_child_id" json:"presence_record_child_id"`

	PresenceRecordPresent bool `gorm:"not null;default:false;column:presence_record_present" json:"presence_record_present"`

	PresenceRecordCreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();column:presence_record_created_at" json:"presence_record_created_at"`
	PresenceRecordUpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();column:presence_record_updated_at" json:"presence_record_updated_at"`

	Justification *PresenceJustificationModel `gorm:"foreignKey:PresenceJustificationRecordID;references:PresenceRecordID;constraint:OnDelete:CASCADE" json:"justification,omitempty"`
}

func (PresenceRecordModel) TableName() string { return "presence_records" }

// NewRecords enumerates one absent record per child of the roster snapshot.
func NewRecords(sheetID uuid.UUID, childIDs []string, at time.Time) []PresenceRecordModel {
	out := make([]PresenceRecordModel, 0, len(childIDs))
	for _, id := range childIDs {
		out = append(out, PresenceRecordModel{
			PresenceRecordID:        uuid.New(),
			PresenceRecordSheetID:   sheetID,
			PresenceRecordChildID:   id,
			PresenceRecordPresent:   false,
			PresenceRecordCreatedAt: at,
			PresenceRecordUpdatedAt: at,
		})
	}
	return out
}

// Unresolved is an absence nobody has explained yet.
func (m *PresenceRecordModel) Unresolved() bool {
	return !m.PresenceRecordPresent && m.Justification == nil
}
