package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind groups failures by the correction the caller has to make.
type ErrorKind string

const (
	KindNotFound ErrorKind = "not_found"
	KindConflict ErrorKind = "conflict"
	KindInvalid  ErrorKind = "invalid"
	KindUpstream ErrorKind = "upstream"
	KindInternal ErrorKind = "internal"
)

// Reason pins down which precondition failed.
type Reason string

const (
	ReasonSheetNotFound         Reason = "sheet_not_found"
	ReasonRecordNotFound        Reason = "record_not_found"
	ReasonAlreadyValidated      Reason = "already_validated"
	ReasonNotStaffValidated     Reason = "not_staff_validated"
	ReasonRecordPresent         Reason = "record_present"
	ReasonAlreadyJustified      Reason = "already_justified"
	ReasonUnknownChild          Reason = "unknown_child"
	ReasonInvalidPayload        Reason = "invalid_payload"
	ReasonAttachmentTooLarge    Reason = "attachment_too_large"
	ReasonRosterUnavailable     Reason = "roster_unavailable"
	ReasonAttachmentUnavailable Reason = "attachment_unavailable"
	ReasonStorageUnavailable    Reason = "storage_unavailable"
	ReasonInvariantViolation    Reason = "invariant_violation"
)

var (
	ErrNotFound = errors.New("presence: not found")
	ErrConflict = errors.New("presence: conflict")
	ErrInvalid  = errors.New("presence: invalid request")
	ErrUpstream = errors.New("presence: upstream failure")
	ErrInternal = errors.New("presence: internal error")

	ErrIllegalTransition = errors.New("presence: illegal status transition")
)

// Error is the typed result every engine operation returns on failure.
type Error struct {
	Kind    ErrorKind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("presence %s [%s]: %s: %v", e.Kind, e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("presence %s [%s]: %s", e.Kind, e.Reason, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the kind sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrInvalid:
		return e.Kind == KindInvalid
	case ErrUpstream:
		return e.Kind == KindUpstream
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

// Retryable is true for collaborator and storage outages only.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstream || (e.Kind == KindInternal && e.Reason == ReasonStorageUnavailable)
}

func NotFound(reason Reason, msg string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: msg}
}

func Conflict(reason Reason, msg string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: msg}
}

func Invalid(reason Reason, msg string) *Error {
	return &Error{Kind: KindInvalid, Reason: reason, Message: msg}
}

func Upstream(reason Reason, msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Reason: reason, Message: msg, Err: err}
}

func Internal(reason Reason, msg string, err error) *Error {
	return &Error{Kind: KindInternal, Reason: reason, Message: msg, Err: err}
}

// AsError unwraps err into *Error, or nil.
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

func ReasonOf(err error) Reason {
	if pe := AsError(err); pe != nil {
		return pe.Reason
	}
	return ""
}

func IsRetryable(err error) bool {
	if pe := AsError(err); pe != nil {
		return pe.Retryable()
	}
	return false
}

// HTTPStatus maps an engine error onto the status a transport should answer with.
func HTTPStatus(err error) int {
	pe := AsError(err)
	if pe == nil {
		return http.StatusInternalServerError
	}
	switch pe.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusUnprocessableEntity
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
