// file: internals/features/presence/dto/presence_dto.go
package dto

import (
	"strings"
	"time"

	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/helpers/dbtime"

	"github.com/google/uuid"
)

/* =======================================================
   REQUEST DTOs
   ======================================================= */

// ValidateRequest: staff marks who came today; everyone not listed is absent.
type ValidateRequest struct {
	Date            string   `json:"date" validate:"required,datetime=2006-01-02"`
	PresentChildIDs []string `json:"present_child_ids" validate:"dive,required,max=64"`
	StaffID         string   `json:"staff_id" validate:"required,max=64"`
}

// Normalize trims ids; duplicates are collapsed by the store.
func (r *ValidateRequest) Normalize() {
	r.Date = strings.TrimSpace(r.Date)
	r.StaffID = strings.TrimSpace(r.StaffID)
	for i, id := range r.PresentChildIDs {
		r.PresentChildIDs[i] = strings.TrimSpace(id)
	}
}

func (r *ValidateRequest) Day() (time.Time, error) { return dbtime.ParseDay(r.Date) }

// AttachmentUpload carries raw bytes that still have to go to the attachment store.
type AttachmentUpload struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type,omitempty" validate:"omitempty,max=100"`
	Data        []byte `json:"data" validate:"required,min=1"`
}

// JustifyRequest: secretary explains one absence.
// Either AttachmentRef (already stored) or Attachment (to upload), never both.
type JustifyRequest struct {
	RecordID      uuid.UUID         `json:"record_id" validate:"required"`
	Date          string            `json:"date" validate:"required,datetime=2006-01-02"`
	Reason        string            `json:"reason" validate:"required,max=500"`
	AttachmentRef *string           `json:"attachment_ref,omitempty" validate:"omitempty,max=1024"`
	Attachment    *AttachmentUpload `json:"attachment,omitempty"`
	SecretaryID   string            `json:"secretary_id,omitempty" validate:"omitempty,max=64"`
}

func (r *JustifyRequest) Normalize() {
	r.Date = strings.TrimSpace(r.Date)
	r.Reason = strings.TrimSpace(r.Reason)
	r.SecretaryID = strings.TrimSpace(r.SecretaryID)
	if r.AttachmentRef != nil {
		v := strings.TrimSpace(*r.AttachmentRef)
		if v == "" {
			r.AttachmentRef = nil
		} else {
			r.AttachmentRef = &v
		}
	}
	if r.Attachment != nil {
		r.Attachment.Filename = strings.TrimSpace(r.Attachment.Filename)
	}
}

func (r *JustifyRequest) Day() (time.Time, error) { return dbtime.ParseDay(r.Date) }

/* =======================================================
   RESPONSE DTOs
   ======================================================= */

type JustificationView struct {
	ID             uuid.UUID      `json:"id"`
	Date           string         `json:"date"`
	Reason         string         `json:"reason"`
	AttachmentRef  *string        `json:"attachment_ref,omitempty"`
	AttachmentMeta map[string]any `json:"attachment_meta,omitempty"`
	JustifiedBy    *string        `json:"justified_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type RecordView struct {
	ID            uuid.UUID          `json:"id"`
	ChildID       string             `json:"child_id"`
	Present       bool               `json:"present"`
	Justification *JustificationView `json:"justification,omitempty"`
}

type Summary struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Justified  int `json:"justified"`
	Unresolved int `json:"unresolved"`
}

type SheetView struct {
	ID                   uuid.UUID         `json:"id"`
	Date                 string            `json:"date"`
	Status               model.SheetStatus `json:"status"`
	ValidatedBy          *string           `json:"validated_by,omitempty"`
	StaffValidatedAt     *time.Time        `json:"staff_validated_at,omitempty"`
	SecretaryValidatedAt *time.Time        `json:"secretary_validated_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	Records              []RecordView      `json:"records"`
	Summary              Summary           `json:"summary"`
}

// FromModel builds the read view; records keep the order they were loaded in.
func FromModel(m *model.PresenceSheetModel) *SheetView {
	v := &SheetView{
		ID:                   m.PresenceSheetID,
		Date:                 dbtime.FormatDay(m.Day()),
		Status:               m.PresenceSheetStatus,
		ValidatedBy:          m.PresenceSheetValidatedBy,
		StaffValidatedAt:     m.PresenceSheetStaffValidatedAt,
		SecretaryValidatedAt: m.PresenceSheetSecretaryValidatedAt,
		CreatedAt:            m.PresenceSheetCreatedAt,
		UpdatedAt:            m.PresenceSheetUpdatedAt,
		Records:              make([]RecordView, 0, len(m.Records)),
	}
	for i := range m.Records {
		r := &m.Records[i]
		rv := RecordView{
			ID:      r.PresenceRecordID,
			ChildID: r.PresenceRecordChildID,
			Present: r.PresenceRecordPresent,
		}
		v.Summary.Total++
		switch {
		case r.PresenceRecordPresent:
			v.Summary.Present++
		case r.Justification != nil:
			v.Summary.Absent++
			v.Summary.Justified++
		default:
			v.Summary.Absent++
			v.Summary.Unresolved++
		}
		if j := r.Justification; j != nil {
			rv.Justification = &JustificationView{
				ID:            j.PresenceJustificationID,
				Date:          dbtime.FormatDay(time.Time(j.PresenceJustificationDate)),
				Reason:        j.PresenceJustificationReason,
				AttachmentRef: j.PresenceJustificationAttachmentRef,
				JustifiedBy:   j.PresenceJustificationJustifiedBy,
				CreatedAt:     j.PresenceJustificationCreatedAt,
			}
			if len(j.PresenceJustificationAttachmentMeta) > 0 {
				rv.Justification.AttachmentMeta = map[string]any(j.PresenceJustificationAttachmentMeta)
			}
		}
		v.Records = append(v.Records, rv)
	}
	return v
}

// RecordByChild finds the record of childID, or nil.
func (v *SheetView) RecordByChild(childID string) *RecordView {
	for i := range v.Records {
		if v.Records[i].ChildID == childID {
			return &v.Records[i]
		}
	}
	return nil
}
