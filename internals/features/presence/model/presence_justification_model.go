// file: internals/features/presence/model/presence_justification_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PresenceJustificationModel is immutable once written; no update path exists.
type PresenceJustificationModel struct {
	PresenceJustificationID       uuid.UUID `gorm:"type:uuid;primaryKey;column:presence_justification_id" json:"presence_justification_id"`
	PresenceJustificationRecordID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_presence_justifications_record;column:presence_justification_record_id" json:"presence_justification_record_id"`

	PresenceJustificationDate   datatypes.Date `gorm:"type:date;not null;column:presence_justification_date" json:"presence_justification_date"`
	PresenceJustificationReason string         `gorm:"type:text;not null;column:presence_justification_reason" json:"presence_justification_reason"`

	// Attachment (optional) → opaque reference returned by the attachment store
	PresenceJustificationAttachmentRef  *string           `gorm:"type:text;column:presence_justification_attachment_ref" json:"presence_justification_attachment_ref,omitempty"`
	PresenceJustificationAttachmentMeta datatypes.JSONMap `gorm:"type:jsonb;column:presence_justification_attachment_meta" json:"presence_justification_attachment_meta,omitempty"`

	PresenceJustificationJustifiedBy *string   `gorm:"type:varchar(64);column:presence_justification_justified_by" json:"presence_justification_justified_by,omitempty"`
	PresenceJustificationCreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();column:presence_justification_created_at" json:"presence_justification_created_at"`
}

func (PresenceJustificationModel) TableName() string { return "presence_justifications" }

// All presence tables in dependency order, for migrations.
func Tables() []any {
	return []any{
		&PresenceSheetModel{},
		&PresenceRecordModel{},
		&PresenceJustificationModel{},
	}
}
