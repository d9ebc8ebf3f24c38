// file: internals/features/presence/model/presence_sheet_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/* =========================================
   Model: presence_sheets (one row per calendar day)
========================================= */

type PresenceSheetModel struct {
	PresenceSheetID uuid.UUID `gorm:"type:uuid;primaryKey;column:presence_sheet_id" json:"presence_sheet_id"`

	// Natural key: at most one sheet per date
	PresenceSheetDate datatypes.Date `gorm:"type:date;not null;uniqueIndex:uq_presence_sheets_date;column:presence_sheet_date" json:"presence_sheet_date"`

	// Lifecycle
	PresenceSheetStatus               SheetStatus `gorm:"type:varchar(24);not null;default:'PENDING_STAFF';column:presence_sheet_status" json:"presence_sheet_status"`
	PresenceSheetValidatedBy          *string     `gorm:"type:varchar(64);column:presence_sheet_validated_by" json:"presence_sheet_validated_by,omitempty"`
	PresenceSheetStaffValidatedAt     *time.Time  `gorm:"type:timestamptz;column:presence_sheet_staff_validated_at" json:"presence_sheet_staff_validated_at,omitempty"`
	PresenceSheetSecretaryValidatedAt *time.Time  `gorm:"type:timestamptz;column:presence_sheet_secretary_validated_at" json:"presence_sheet_secretary_validated_at,omitempty"`

	// Audit
	PresenceSheetCreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();column:presence_sheet_created_at" json:"presence_sheet_created_at"`
	PresenceSheetUpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();column:presence_sheet_updated_at" json:"presence_sheet_updated_at"`

	Records []PresenceRecordModel `gorm:"foreignKey:PresenceRecordSheetID;references:PresenceSheetID;constraint:OnDelete:CASCADE" json:"records,omitempty"`
}

func (PresenceSheetModel) TableName() string { return "presence_sheets" }

// NewSheet builds a sheet in the initial state for day.
func NewSheet(day time.Time, at time.Time) PresenceSheetModel {
	return PresenceSheetModel{
		PresenceSheetID:        uuid.New(),
		PresenceSheetDate:      datatypes.Date(day),
		PresenceSheetStatus:    SheetStatusPendingStaff,
		PresenceSheetCreatedAt: at,
		PresenceSheetUpdatedAt: at,
	}
}

// Day returns the sheet date as a time.Time at midnight UTC.
func (m *PresenceSheetModel) Day() time.Time {
	y, mo, d := time.Time(m.PresenceSheetDate).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
