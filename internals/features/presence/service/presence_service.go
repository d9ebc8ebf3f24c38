// file: internals/features/presence/service/presence_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"crecheku_backend/internals/features/presence/dto"
	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/features/presence/repository"
	"crecheku_backend/internals/features/presence/roster"
	"crecheku_backend/internals/helpers/dbtime"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

const DefaultMaxAttachmentBytes = 5 << 20

// Outcome of reconciling one day against the store.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeExisting Outcome = "existing"
	OutcomeRepaired Outcome = "repaired"
	// a sheet without records that is already past staff validation; top-up
	// cannot apply, an operator has to look at it
	OutcomeNeedsAttention Outcome = "needs_attention"
)

// AttachmentStore keeps justification attachments; the engine only keeps the reference.
type AttachmentStore interface {
	Store(ctx context.Context, filename, contentType string, data []byte) (ref string, meta map[string]any, err error)
}

// AttachmentRemover is optionally implemented to drop an upload whose justification was rejected.
type AttachmentRemover interface {
	Remove(ctx context.Context, ref string) error
}

type Service struct {
	Store       repository.Store
	Roster      roster.Provider
	Attachments AttachmentStore
	Validator   *validator.Validate

	Now                func() time.Time
	Location           *time.Location
	MaxAttachmentBytes int
}

func New(store repository.Store, rp roster.Provider, attachments AttachmentStore) *Service {
	return &Service{
		Store:              store,
		Roster:             rp,
		Attachments:        attachments,
		Validator:          validator.New(),
		Now:                time.Now,
		Location:           time.UTC,
		MaxAttachmentBytes: DefaultMaxAttachmentBytes,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().In(s.loc())
	}
	return s.Now().In(s.loc())
}

func (s *Service) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Today is the current school-local calendar day.
func (s *Service) Today() time.Time { return dbtime.Today(s.now(), s.loc()) }

/* =========================
   Creation (scheduler + first touch)
========================= */

// Reconcile makes sure day has exactly one sheet with a full record set.
// It is the only creation path: the scheduler and EnsureSheet both go through here.
func (s *Service) Reconcile(ctx context.Context, day time.Time) (Outcome, error) {
	day = dbtime.DateOf(day)

	stats, err := s.Store.FindSheet(ctx, day)
	switch {
	case err == nil:
		if stats.RecordCount > 0 {
			return OutcomeExisting, nil
		}
		if st := stats.Sheet.PresenceSheetStatus; st != model.SheetStatusPendingStaff {
			log.Printf("[PRESENCE] ⚠️ sheet %s has no records but is %s; left for an operator", dbtime.FormatDay(day), st)
			return OutcomeNeedsAttention, nil
		}
		// sheet without records: repair from today's roster
		ids, err := roster.Snapshot(ctx, s.Roster)
		if err != nil {
			return "", err
		}
		n, err := s.Store.TopUpRecords(ctx, day, ids, s.now())
		if err != nil {
			return "", err
		}
		if n == 0 {
			return OutcomeExisting, nil
		}
		log.Printf("[PRESENCE] 🩹 sheet %s topped up with %d records", dbtime.FormatDay(day), n)
		return OutcomeRepaired, nil

	case errors.Is(err, model.ErrNotFound):
		ids, err := roster.Snapshot(ctx, s.Roster)
		if err != nil {
			return "", err
		}
		_, created, err := s.Store.GetOrCreate(ctx, day, ids, s.now())
		if err != nil {
			return "", err
		}
		if !created {
			// lost the race to a concurrent creator
			return OutcomeExisting, nil
		}
		log.Printf("[PRESENCE] ✅ sheet %s created with %d records", dbtime.FormatDay(day), len(ids))
		return OutcomeCreated, nil

	default:
		return "", err
	}
}

// EnsureSheet is the idempotent "first touch" entry point.
func (s *Service) EnsureSheet(ctx context.Context, day time.Time) (*dto.SheetView, error) {
	if _, err := s.Reconcile(ctx, day); err != nil {
		return nil, err
	}
	return s.GetSheet(ctx, day)
}

/* =========================
   Validation Engine
========================= */

// Validate records the staff snapshot: listed children present, everyone else absent.
// The sheet must exist and still be PENDING_STAFF.
func (s *Service) Validate(ctx context.Context, req dto.ValidateRequest) (*dto.SheetView, error) {
	req.Normalize()
	if err := s.check(&req); err != nil {
		return nil, err
	}
	day, err := req.Day()
	if err != nil {
		return nil, model.Invalid(model.ReasonInvalidPayload, err.Error())
	}

	sheet, err := s.Store.ApplyValidation(ctx, day, req.PresentChildIDs, req.StaffID, s.now())
	if err != nil {
		return nil, err
	}
	log.Printf("[PRESENCE] 📝 sheet %s validated by staff %s (%d present) → %s",
		req.Date, req.StaffID, len(req.PresentChildIDs), sheet.PresenceSheetStatus)

	return s.GetSheet(ctx, day)
}

/* =========================
   Justification Engine
========================= */

// Justify attaches one justification to an absent record and re-evaluates completion.
func (s *Service) Justify(ctx context.Context, req dto.JustifyRequest) (*dto.SheetView, error) {
	req.Normalize()
	if err := s.check(&req); err != nil {
		return nil, err
	}
	if req.AttachmentRef != nil && req.Attachment != nil {
		return nil, model.Invalid(model.ReasonInvalidPayload, "attachment_ref and attachment are mutually exclusive")
	}
	jday, err := req.Day()
	if err != nil {
		return nil, model.Invalid(model.ReasonInvalidPayload, err.Error())
	}

	j := model.PresenceJustificationModel{
		PresenceJustificationDate:          datatypes.Date(jday),
		PresenceJustificationReason:        req.Reason,
		PresenceJustificationAttachmentRef: req.AttachmentRef,
	}
	if req.SecretaryID != "" {
		by := req.SecretaryID
		j.PresenceJustificationJustifiedBy = &by
	}

	uploaded := ""
	if req.Attachment != nil {
		ref, meta, err := s.upload(ctx, req.Attachment)
		if err != nil {
			return nil, err
		}
		uploaded = ref
		j.PresenceJustificationAttachmentRef = &ref
		j.PresenceJustificationAttachmentMeta = datatypes.JSONMap(meta)
	}

	sheet, err := s.Store.AttachJustification(ctx, req.RecordID, j, s.now())
	if err != nil {
		if uploaded != "" {
			s.discard(uploaded)
		}
		return nil, err
	}
	log.Printf("[PRESENCE] 🗂️ record %s justified (%s) → sheet %s %s",
		req.RecordID, req.Reason, dbtime.FormatDay(sheet.Day()), sheet.PresenceSheetStatus)

	return s.GetSheet(ctx, sheet.Day())
}

func (s *Service) upload(ctx context.Context, a *dto.AttachmentUpload) (string, map[string]any, error) {
	max := s.MaxAttachmentBytes
	if max <= 0 {
		max = DefaultMaxAttachmentBytes
	}
	if len(a.Data) > max {
		return "", nil, model.Invalid(model.ReasonAttachmentTooLarge,
			fmt.Sprintf("attachment is %d bytes, limit %d", len(a.Data), max))
	}
	if s.Attachments == nil {
		return "", nil, model.Upstream(model.ReasonAttachmentUnavailable, "no attachment store configured", nil)
	}
	ref, meta, err := s.Attachments.Store(ctx, a.Filename, a.ContentType, a.Data)
	if err != nil {
		return "", nil, model.Upstream(model.ReasonAttachmentUnavailable, "attachment upload failed", err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if _, ok := meta["original_name"]; !ok {
		meta["original_name"] = a.Filename
	}
	return ref, meta, nil
}

// discard drops an orphaned upload; failures are only logged.
func (s *Service) discard(ref string) {
	rm, ok := s.Attachments.(AttachmentRemover)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rm.Remove(ctx, ref); err != nil {
		log.Printf("[PRESENCE] ⚠️ orphan attachment %s not removed: %v", ref, err)
	}
}

/* =========================
   Query Service
========================= */

// GetSheet returns the day's sheet with records and justifications, or not_found.
func (s *Service) GetSheet(ctx context.Context, day time.Time) (*dto.SheetView, error) {
	sheet, err := s.Store.LoadSheet(ctx, day)
	if err != nil {
		return nil, err
	}
	return dto.FromModel(sheet), nil
}

/* =========================
   helpers
========================= */

func (s *Service) check(v any) error {
	if s.Validator == nil {
		s.Validator = validator.New()
	}
	if err := s.Validator.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
			}
			return model.Invalid(model.ReasonInvalidPayload, strings.Join(parts, "; "))
		}
		return model.Invalid(model.ReasonInvalidPayload, err.Error())
	}
	return nil
}
