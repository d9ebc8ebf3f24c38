// file: internals/features/presence/repository/gorm_store.go
package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/helpers/dbtime"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultBatchSize = 500

// GormStore keeps sheets in Postgres. Atomicity comes from one transaction per
// call plus the unique indexes on (date), (sheet, child) and (record).
type GormStore struct {
	DB        *gorm.DB
	BatchSize int
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db, BatchSize: defaultBatchSize}
}

func (s *GormStore) batchSize() int {
	if s.BatchSize <= 0 {
		return defaultBatchSize
	}
	return s.BatchSize
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// translate leaves engine errors untouched and wraps everything else as a storage failure.
// Unique violations that reach it are invariant violations, never a caller's conflict.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if pe := model.AsError(err); pe != nil {
		return pe
	}
	if isUniqueViolation(err) {
		// expected duplicates are mapped where they can happen; anything else is a bug
		return model.Internal(model.ReasonInvariantViolation, "unique constraint violated", err)
	}
	return model.Internal(model.ReasonStorageUnavailable, "storage failure", err)
}

func (s *GormStore) GetOrCreate(ctx context.Context, day time.Time, roster []string, at time.Time) (*model.PresenceSheetModel, bool, error) {
	day = dbtime.DateOf(day)
	roster = uniqueIDs(roster)

	var (
		out     model.PresenceSheetModel
		created bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet := model.NewSheet(day, at)

		// insert-if-absent keyed by date; a concurrent winner makes this a no-op
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "presence_sheet_date"}},
			DoNothing: true,
		}).Create(&sheet)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Where("presence_sheet_date = ?", datatypes.Date(day)).First(&out).Error
		}

		records := model.NewRecords(sheet.PresenceSheetID, roster, at)
		if len(records) > 0 {
			if err := tx.CreateInBatches(&records, s.batchSize()).Error; err != nil {
				return err
			}
		}
		out = sheet
		created = true
		return nil
	})
	if err != nil {
		return nil, false, translate(err)
	}
	return &out, created, nil
}

func (s *GormStore) FindSheet(ctx context.Context, day time.Time) (*SheetStats, error) {
	day = dbtime.DateOf(day)
	db := s.DB.WithContext(ctx)

	var sheet model.PresenceSheetModel
	if err := db.Where("presence_sheet_date = ?", datatypes.Date(day)).First(&sheet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sheetNotFound(day)
		}
		return nil, translate(err)
	}

	var n int64
	if err := db.Model(&model.PresenceRecordModel{}).
		Where("presence_record_sheet_id = ?", sheet.PresenceSheetID).
		Count(&n).Error; err != nil {
		return nil, translate(err)
	}
	return &SheetStats{Sheet: sheet, RecordCount: n}, nil
}

func (s *GormStore) TopUpRecords(ctx context.Context, day time.Time, roster []string, at time.Time) (int, error) {
	day = dbtime.DateOf(day)
	roster = uniqueIDs(roster)

	inserted := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := lockSheetByDate(tx, day)
		if err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&model.PresenceRecordModel{}).
			Where("presence_record_sheet_id = ?", sheet.PresenceSheetID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if sheet.PresenceSheetStatus != model.SheetStatusPendingStaff {
			return model.Internal(model.ReasonInvariantViolation,
				"sheet "+dbtime.FormatDay(day)+" has no records but is already "+string(sheet.PresenceSheetStatus), nil)
		}

		records := model.NewRecords(sheet.PresenceSheetID, roster, at)
		if len(records) == 0 {
			return nil
		}
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "presence_record_sheet_id"},
				{Name: "presence_record_child_id"},
			},
			DoNothing: true,
		}).CreateInBatches(&records, s.batchSize())
		if res.Error != nil {
			return res.Error
		}
		inserted = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, translate(err)
	}
	return inserted, nil
}

func (s *GormStore) ApplyValidation(ctx context.Context, day time.Time, presentIDs []string, validatorID string, at time.Time) (*model.PresenceSheetModel, error) {
	day = dbtime.DateOf(day)
	present := uniqueIDs(presentIDs)

	var out model.PresenceSheetModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// FOR UPDATE: a concurrent validation of the same day waits here, then sees the new status
		sheet, err := lockSheetByDate(tx, day)
		if err != nil {
			return err
		}
		if sheet.PresenceSheetStatus != model.SheetStatusPendingStaff {
			return alreadyValidated(sheet.PresenceSheetStatus)
		}

		var total int64
		if err := tx.Model(&model.PresenceRecordModel{}).
			Where("presence_record_sheet_id = ?", sheet.PresenceSheetID).
			Count(&total).Error; err != nil {
			return err
		}
		if total == 0 {
			return model.Internal(model.ReasonInvariantViolation,
				"sheet "+dbtime.FormatDay(day)+" has no records to validate", nil)
		}

		if len(present) > 0 {
			var known []string
			if err := tx.Model(&model.PresenceRecordModel{}).
				Where("presence_record_sheet_id = ? AND presence_record_child_id IN ?", sheet.PresenceSheetID, present).
				Pluck("presence_record_child_id", &known).Error; err != nil {
				return err
			}
			if len(known) != len(present) {
				return unknownChildren(missingFrom(present, known))
			}
		}

		// present set is the whole truth: everyone else becomes absent
		res := tx.Exec(`
			UPDATE presence_records
			SET presence_record_present = (presence_record_child_id = ANY(?::text[])),
			    presence_record_updated_at = ?
			WHERE presence_record_sheet_id = ?
		`, pq.Array(present), at, sheet.PresenceSheetID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != total {
			return model.Internal(model.ReasonInvariantViolation, "partial presence update", nil)
		}

		next, err := sheet.PresenceSheetStatus.Transition(model.SheetStatusPendingSecretary)
		if err != nil {
			return model.Internal(model.ReasonInvariantViolation, "cannot leave PENDING_STAFF", err)
		}
		sheet.PresenceSheetStatus = next
		sheet.PresenceSheetValidatedBy = &validatorID
		sheet.PresenceSheetStaffValidatedAt = &at
		sheet.PresenceSheetUpdatedAt = at

		unresolved, err := countUnresolved(tx, sheet.PresenceSheetID)
		if err != nil {
			return err
		}
		if _, err := completeIfSettled(sheet, unresolved, at); err != nil {
			return err
		}
		if err := saveSheetState(tx, sheet); err != nil {
			return err
		}
		out = *sheet
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (s *GormStore) AttachJustification(ctx context.Context, recordID uuid.UUID, j model.PresenceJustificationModel, at time.Time) (*model.PresenceSheetModel, error) {
	var out model.PresenceSheetModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lock the owning sheet before reading the record: validation rewrites
		// present flags under the same lock, so the read below is never stale
		var sheet model.PresenceSheetModel
		res := tx.Raw(`SELECT * FROM presence_sheets
			WHERE presence_sheet_id = (
				SELECT presence_record_sheet_id FROM presence_records WHERE presence_record_id = ?
			) FOR UPDATE`, recordID).Scan(&sheet)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return recordNotFound(recordID)
		}

		var rec model.PresenceRecordModel
		if err := tx.Where("presence_record_id = ?", recordID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return recordNotFound(recordID)
			}
			return err
		}

		if !sheet.PresenceSheetStatus.StaffValidated() {
			return model.Conflict(model.ReasonNotStaffValidated, "staff has not validated this sheet yet")
		}
		if rec.PresenceRecordPresent {
			return model.Conflict(model.ReasonRecordPresent, "child was marked present")
		}

		var existing int64
		if err := tx.Model(&model.PresenceJustificationModel{}).
			Where("presence_justification_record_id = ?", rec.PresenceRecordID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return model.Conflict(model.ReasonAlreadyJustified, "record already justified")
		}

		if j.PresenceJustificationID == uuid.Nil {
			j.PresenceJustificationID = uuid.New()
		}
		j.PresenceJustificationRecordID = rec.PresenceRecordID
		j.PresenceJustificationCreatedAt = at
		if err := tx.Create(&j).Error; err != nil {
			if isUniqueViolation(err) {
				return model.Conflict(model.ReasonAlreadyJustified, "record already justified")
			}
			return err
		}

		unresolved, err := countUnresolved(tx, sheet.PresenceSheetID)
		if err != nil {
			return err
		}
		changed, err := completeIfSettled(&sheet, unresolved, at)
		if err != nil {
			return err
		}
		if changed {
			if err := saveSheetState(tx, &sheet); err != nil {
				return err
			}
		}
		out = sheet
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (s *GormStore) LoadSheet(ctx context.Context, day time.Time) (*model.PresenceSheetModel, error) {
	day = dbtime.DateOf(day)

	var sheet model.PresenceSheetModel
	err := s.DB.WithContext(ctx).
		Preload("Records", func(db *gorm.DB) *gorm.DB {
			return db.Order("presence_record_child_id ASC")
		}).
		Preload("Records.Justification").
		Where("presence_sheet_date = ?", datatypes.Date(day)).
		First(&sheet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sheetNotFound(day)
		}
		return nil, translate(err)
	}
	return &sheet, nil
}

/* =========================
   tx helpers
========================= */

func lockSheetByDate(tx *gorm.DB, day time.Time) (*model.PresenceSheetModel, error) {
	var sheet model.PresenceSheetModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("presence_sheet_date = ?", datatypes.Date(day)).
		First(&sheet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sheetNotFound(day)
		}
		return nil, err
	}
	return &sheet, nil
}

// countUnresolved: absent records of the sheet that carry no justification.
func countUnresolved(tx *gorm.DB, sheetID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.PresenceRecordModel{}).
		Joins("LEFT JOIN presence_justifications j ON j.presence_justification_record_id = presence_records.presence_record_id").
		Where("presence_records.presence_record_sheet_id = ?", sheetID).
		Where("presence_records.presence_record_present = ?", false).
		Where("j.presence_justification_id IS NULL").
		Count(&n).Error
	return n, err
}

func saveSheetState(tx *gorm.DB, sheet *model.PresenceSheetModel) error {
	return tx.Model(&model.PresenceSheetModel{}).
		Where("presence_sheet_id = ?", sheet.PresenceSheetID).
		Updates(map[string]any{
			"presence_sheet_status":                 sheet.PresenceSheetStatus,
			"presence_sheet_validated_by":           sheet.PresenceSheetValidatedBy,
			"presence_sheet_staff_validated_at":     sheet.PresenceSheetStaffValidatedAt,
			"presence_sheet_secretary_validated_at": sheet.PresenceSheetSecretaryValidatedAt,
			"presence_sheet_updated_at":             sheet.PresenceSheetUpdatedAt,
		}).Error
}

// missingFrom lists ids in want that are absent from have, sorted.
func missingFrom(want, have []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	var out []string
	for _, w := range want {
		if _, ok := set[w]; !ok {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
