package model

import (
	"database/sql/driver"
	"fmt"
)

/* =========================
   Sheet lifecycle (closed enum)
========================= */

type SheetStatus string

const (
	SheetStatusPendingStaff     SheetStatus = "PENDING_STAFF"
	SheetStatusPendingSecretary SheetStatus = "PENDING_SECRETARY"
	SheetStatusValidated        SheetStatus = "VALIDATED"
)

// Only these two steps exist. Anything else is rejected by Transition.
var sheetTransitions = map[SheetStatus]SheetStatus{
	SheetStatusPendingStaff:     SheetStatusPendingSecretary,
	SheetStatusPendingSecretary: SheetStatusValidated,
}

var sheetRank = map[SheetStatus]int{
	SheetStatusPendingStaff:     0,
	SheetStatusPendingSecretary: 1,
	SheetStatusValidated:        2,
}

func (s SheetStatus) Valid() bool {
	_, ok := sheetRank[s]
	return ok
}

// Rank orders the states along the pipeline; unknown states rank -1.
func (s SheetStatus) Rank() int {
	if r, ok := sheetRank[s]; ok {
		return r
	}
	return -1
}

// StaffValidated reports whether the presence snapshot exists for the sheet.
func (s SheetStatus) StaffValidated() bool {
	return s.Rank() >= sheetRank[SheetStatusPendingSecretary]
}

func (s SheetStatus) Terminal() bool { return s == SheetStatusValidated }

// Transition returns `to` when s -> to is an allowed step.
func (s SheetStatus) Transition(to SheetStatus) (SheetStatus, error) {
	if next, ok := sheetTransitions[s]; ok && next == to {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, to)
}

// Scan rejects values outside the enum so a corrupted row never reaches the engine.
func (s *SheetStatus) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		return fmt.Errorf("sheet status: NULL")
	default:
		return fmt.Errorf("sheet status: unsupported Scan type %T", value)
	}
	st := SheetStatus(raw)
	if !st.Valid() {
		return fmt.Errorf("sheet status: unknown value %q", raw)
	}
	*s = st
	return nil
}

func (s SheetStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("sheet status: unknown value %q", string(s))
	}
	return string(s), nil
}
