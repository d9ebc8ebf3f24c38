// file: internals/features/presence/repository/store.go
package repository

import (
	"context"
	"strings"
	"time"

	"crecheku_backend/internals/features/presence/model"

	"github.com/google/uuid"
)

// SheetStats is the light view the scheduler needs to decide between create and repair.
type SheetStats struct {
	Sheet       model.PresenceSheetModel
	RecordCount int64
}

// Store is the durable sheet storage. Every method is one atomic unit.
type Store interface {
	// GetOrCreate returns the sheet for day, creating it with one absent record per
	// roster entry when missing. Concurrent callers for the same day all observe the
	// same sheet; created is true for exactly one of them.
	GetOrCreate(ctx context.Context, day time.Time, roster []string, at time.Time) (sheet *model.PresenceSheetModel, created bool, err error)

	// FindSheet returns the sheet for day and its record count, or not_found.
	FindSheet(ctx context.Context, day time.Time) (*SheetStats, error)

	// TopUpRecords fills a sheet that has no records at all from roster.
	// It returns how many records were inserted (0 when the sheet already had some).
	TopUpRecords(ctx context.Context, day time.Time, roster []string, at time.Time) (int, error)

	// ApplyValidation sets present for every record of the day's sheet from presentIDs,
	// stamps the validator and moves the sheet out of PENDING_STAFF.
	ApplyValidation(ctx context.Context, day time.Time, presentIDs []string, validatorID string, at time.Time) (*model.PresenceSheetModel, error)

	// AttachJustification inserts j for recordID and re-evaluates sheet completion.
	AttachJustification(ctx context.Context, recordID uuid.UUID, j model.PresenceJustificationModel, at time.Time) (*model.PresenceSheetModel, error)

	// LoadSheet returns the day's sheet with records (ordered by child id) and justifications.
	LoadSheet(ctx context.Context, day time.Time) (*model.PresenceSheetModel, error)
}

func sheetNotFound(day time.Time) *model.Error {
	return model.NotFound(model.ReasonSheetNotFound, "no sheet for "+day.Format("2006-01-02"))
}

func recordNotFound(id uuid.UUID) *model.Error {
	return model.NotFound(model.ReasonRecordNotFound, "no record "+id.String())
}

func alreadyValidated(st model.SheetStatus) *model.Error {
	return model.Conflict(model.ReasonAlreadyValidated, "sheet already staff-validated (status "+string(st)+")")
}

// uniqueIDs trims, drops blanks and duplicates, keeps first-seen order.
// The result is never nil.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func unknownChildren(ids []string) *model.Error {
	return model.Invalid(model.ReasonUnknownChild, "not on this sheet: "+strings.Join(ids, ", "))
}

// completeIfSettled moves a PENDING_SECRETARY sheet to VALIDATED when no absence
// is left without a justification. unresolved is recounted from the records every time.
func completeIfSettled(sheet *model.PresenceSheetModel, unresolved int64, at time.Time) (bool, error) {
	if unresolved > 0 || sheet.PresenceSheetStatus != model.SheetStatusPendingSecretary {
		return false, nil
	}
	next, err := sheet.PresenceSheetStatus.Transition(model.SheetStatusValidated)
	if err != nil {
		return false, model.Internal(model.ReasonInvariantViolation, "cannot complete sheet", err)
	}
	sheet.PresenceSheetStatus = next
	sheet.PresenceSheetSecretaryValidatedAt = &at
	sheet.PresenceSheetUpdatedAt = at
	return true, nil
}
