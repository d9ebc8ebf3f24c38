// file: internals/features/presence/repository/memory_store.go
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/helpers/dbtime"

	"github.com/google/uuid"
)

// MemoryStore is the process-local Store used by dry runs and tests.
// A single mutex makes every method one atomic unit.
type MemoryStore struct {
	mu      sync.Mutex
	sheets  map[string]*model.PresenceSheetModel // by day
	records map[uuid.UUID]*model.PresenceRecordModel
	byDay   map[string][]uuid.UUID // record ids per day, insertion order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets:  map[string]*model.PresenceSheetModel{},
		records: map[uuid.UUID]*model.PresenceRecordModel{},
		byDay:   map[string][]uuid.UUID{},
	}
}

func dayKey(day time.Time) string { return dbtime.FormatDay(dbtime.DateOf(day)) }

func (s *MemoryStore) GetOrCreate(ctx context.Context, day time.Time, roster []string, at time.Time) (*model.PresenceSheetModel, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, model.Internal(model.ReasonStorageUnavailable, "context done", err)
	}
	day = dbtime.DateOf(day)
	key := dayKey(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sh, ok := s.sheets[key]; ok {
		cp := *sh
		return &cp, false, nil
	}

	sheet := model.NewSheet(day, at)
	s.sheets[key] = &sheet
	s.insertRecordsLocked(key, sheet.PresenceSheetID, uniqueIDs(roster), at)

	cp := sheet
	return &cp, true, nil
}

func (s *MemoryStore) insertRecordsLocked(key string, sheetID uuid.UUID, roster []string, at time.Time) int {
	recs := model.NewRecords(sheetID, roster, at)
	for i := range recs {
		r := recs[i]
		s.records[r.PresenceRecordID] = &r
		s.byDay[key] = append(s.byDay[key], r.PresenceRecordID)
	}
	return len(recs)
}

func (s *MemoryStore) FindSheet(ctx context.Context, day time.Time) (*SheetStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Internal(model.ReasonStorageUnavailable, "context done", err)
	}
	day = dbtime.DateOf(day)
	key := dayKey(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[key]
	if !ok {
		return nil, sheetNotFound(day)
	}
	return &SheetStats{Sheet: *sh, RecordCount: int64(len(s.byDay[key]))}, nil
}

func (s *MemoryStore) TopUpRecords(ctx context.Context, day time.Time, roster []string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.Internal(model.ReasonStorageUnavailable, "context done", err)
	}
	day = dbtime.DateOf(day)
	key := dayKey(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[key]
	if !ok {
		return 0, sheetNotFound(day)
	}
	if len(s.byDay[key]) > 0 {
		return 0, nil
	}
	if sh.PresenceSheetStatus != model.SheetStatusPendingStaff {
		return 0, model.Internal(model.ReasonInvariantViolation,
			"sheet "+key+" has no records but is already "+string(sh.PresenceSheetStatus), nil)
	}
	return s.insertRecordsLocked(key, sh.PresenceSheetID, uniqueIDs(roster), at), nil
}

func (s *MemoryStore) ApplyValidation(ctx context.Context, day time.Time, presentIDs []string, validatorID string, at time.Time) (*model.PresenceSheetModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Internal(model.ReasonStorageUnavailable, "context done", err)
	}
	day = dbtime.DateOf(day)
	key := dayKey(day)
	present := uniqueIDs(presentIDs)

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[key]
	if !ok {
		return nil, sheetNotFound(day)
	}
	if sh.PresenceSheetStatus != model.SheetStatusPendingStaff {
		return nil, alreadyValidated(sh.PresenceSheetStatus)
	}
	ids := s.byDay[key]
	if len(ids) == 0 {
		return nil, model.Internal(model.ReasonInvariantViolation, "sheet "+key+" has no records to validate", nil)
	}

	known := make([]string, 0, len(ids))
	for _, id := range ids {
		known = append(known, s.records[id].PresenceRecordChildID)
	}
	if missing := missingFrom(present, known); len(missing) > 0 {
		return nil, unknownChildren(missing)
	}

	// compute everything first so a failed transition leaves nothing half-applied
	next, err := sh.PresenceSheetStatus.Transition(model.SheetStatusPendingSecretary)
	if err != nil {
		return nil, model.Internal(model.ReasonInvariantViolation, "cannot leave PENDING_STAFF", err)
	}

	inSet := make(map[string]struct{}, len(present))
	for _, id := range present {
		inSet[id] = struct{}{}
	}
	var unresolved int64
	for _, id := range ids {
		r := s.records[id]
		_, r.PresenceRecordPresent = inSet[r.PresenceRecordChildID]
		r.PresenceRecordUpdatedAt = at
		if r.Unresolved() {
			unresolved++
		}
	}

	sh.PresenceSheetStatus = next
	v := validatorID
	sh.PresenceSheetValidatedBy = &v
	stamp := at
	sh.PresenceSheetStaffValidatedAt = &stamp
	sh.PresenceSheetUpdatedAt = at
	if _, err := completeIfSettled(sh, unresolved, at); err != nil {
		return nil, err
	}

	cp := *sh
	return &cp, nil
}

func (s *MemoryStore) AttachJustification(ctx context.Context, recordID uuid.UUID, j model.PresenceJustificationModel, at time.Time) (*model.PresenceSheetModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Internal(model.ReasonStorageUnavailable, "context done", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, recordNotFound(recordID)
	}
	var (
		sh  *model.PresenceSheetModel
		key string
	)
	for k, candidate := range s.sheets {
		if candidate.PresenceSheetID == rec.PresenceRecordSheetID {
			sh, key = candidate, k
			break
		}
	}
	if sh == nil {
		return nil, model.Internal(model.ReasonInvariantViolation, "record without sheet", nil)
	}

	if !sh.PresenceSheetStatus.StaffValidated() {
		return nil, model.Conflict(model.ReasonNotStaffValidated, "staff has not validated this sheet yet")
	}
	if rec.PresenceRecordPresent {
		return nil, model.Conflict(model.ReasonRecordPresent, "child was marked present")
	}
	if rec.Justification != nil {
		return nil, model.Conflict(model.ReasonAlreadyJustified, "record already justified")
	}

	if j.PresenceJustificationID == uuid.Nil {
		j.PresenceJustificationID = uuid.New()
	}
	j.PresenceJustificationRecordID = rec.PresenceRecordID
	j.PresenceJustificationCreatedAt = at
	rec.Justification = &j

	var unresolved int64
	for _, id := range s.byDay[key] {
		if s.records[id].Unresolved() {
			unresolved++
		}
	}
	if _, err := completeIfSettled(sh, unresolved, at); err != nil {
		return nil, err
	}

	cp := *sh
	return &cp, nil
}

func (s *MemoryStore) LoadSheet(ctx context.Context, day time.Time) (*model.PresenceSheetModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Internal(model.ReasonStorageUnavailable, "context done", err)
	}
	day = dbtime.DateOf(day)
	key := dayKey(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[key]
	if !ok {
		return nil, sheetNotFound(day)
	}
	out := *sh
	out.Records = make([]model.PresenceRecordModel, 0, len(s.byDay[key]))
	for _, id := range s.byDay[key] {
		r := *s.records[id]
		if r.Justification != nil {
			j := *r.Justification
			r.Justification = &j
		}
		out.Records = append(out.Records, r)
	}
	sort.Slice(out.Records, func(i, k int) bool {
		return out.Records[i].PresenceRecordChildID < out.Records[k].PresenceRecordChildID
	})
	return &out, nil
}
