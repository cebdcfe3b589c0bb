package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrPreconditionRequired indicates that a write omitted its expected version stamp.
var ErrPreconditionRequired = errors.New("precondition required")

// ErrConflict indicates that a write was based on a stale version stamp.
var ErrConflict = errors.New("version conflict")

// ErrServiceUnavailable indicates that storage is unconfigured or unreachable.
var ErrServiceUnavailable = errors.New("service unavailable")

// ErrInternal indicates an unexpected failure. Details are logged, never returned to callers.
var ErrInternal = errors.New("internal error")

// Stable machine-readable codes returned to clients alongside the human message.
const (
	CodePayloadInvalid          = "records_payload_invalid"
	CodePayloadTooManyRecords   = "records_payload_too_many_records"
	CodePayloadTooManyFields    = "records_payload_too_many_fields"
	CodePayloadUnknownField     = "records_payload_unknown_field"
	CodePayloadInvalidType      = "records_payload_invalid_type"
	CodePayloadFieldTooLong     = "records_payload_field_too_long"
	CodePayloadRecordTooLarge   = "records_payload_record_too_large"
	CodePayloadTooLarge         = "records_payload_too_large"
	CodePayloadInvalidAmount    = "records_payload_invalid_amount"
	CodePayloadAmountOutOfRange = "records_payload_amount_out_of_range"
	CodePayloadNegativeAmount   = "records_payload_negative_amount"
	CodePayloadInvalidDate      = "records_payload_invalid_date"
	CodePayloadInvalidTimestamp = "records_payload_invalid_timestamp"
	CodePayloadInvalidCheckbox  = "records_payload_invalid_checkbox"
	CodePayloadDuplicateID      = "records_payload_duplicate_id"

	CodePreconditionRequired = "records_precondition_required"
	CodePreconditionInvalid  = "records_precondition_invalid"
	CodeConflict             = "records_conflict"

	CodePatchInvalidPayload     = "records_patch_invalid_payload"
	CodePatchInvalidOperation   = "records_patch_invalid_operation"
	CodePatchMissingID          = "records_patch_missing_id"
	CodePatchIDMismatch         = "records_patch_id_mismatch"
	CodePatchTooManyOperations  = "records_patch_too_many_operations"
	CodeStorageUnavailable      = "records_storage_unavailable"
	CodeInternal                = "records_internal_error"
)

// AppError carries an HTTP status, a stable code and the error kind it belongs to.
// Index and Field are set for record-level validation failures (Index is -1 otherwise).
type AppError struct {
	Status  int
	Code    string
	Message string
	Index   int
	Field   string
	Kind    error
	Err     error
}

// NewAppError creates an error with the given HTTP status. The kind is derived from the status.
func NewAppError(status int, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
		Index:   -1,
		Kind:    kindForStatus(status),
		Err:     err,
	}
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Index >= 0 && e.Field != "" {
		msg = fmt.Sprintf("record %d field %q: %s", e.Index, e.Field, e.Message)
	} else if e.Index >= 0 {
		msg = fmt.Sprintf("record %d: %s", e.Index, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets callers branch on the error kind with errors.Is(err, apperrors.ErrConflict).
func (e *AppError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewValidationError reports a caller-fixable payload problem. Use index -1 when no record is involved.
func NewValidationError(code string, index int, field, message string) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
		Index:   index,
		Field:   field,
		Kind:    ErrValidation,
	}
}

// NewConflictError reports a stale expectedUpdatedAt.
func NewConflictError(expected, current string) *AppError {
	return &AppError{
		Status:  http.StatusConflict,
		Code:    CodeConflict,
		Message: fmt.Sprintf("records were modified concurrently (expected %q, current %q)", displayStamp(expected), displayStamp(current)),
		Index:   -1,
		Kind:    ErrConflict,
	}
}

// NewPreconditionRequiredError reports a write without expectedUpdatedAt.
func NewPreconditionRequiredError() *AppError {
	return &AppError{
		Status:  http.StatusPreconditionRequired,
		Code:    CodePreconditionRequired,
		Message: "expectedUpdatedAt is required",
		Index:   -1,
		Kind:    ErrPreconditionRequired,
	}
}

// NewUnavailableError wraps a storage failure that should not be retried server-side.
func NewUnavailableError(message string, err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, message, err)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, err error) *AppError {
	return NewAppError(http.StatusInternalServerError, message, err)
}

// AsAppError extracts an *AppError from err, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func displayStamp(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusPreconditionRequired:
		return ErrPreconditionRequired
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	default:
		return ErrInternal
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodePayloadInvalid
	case http.StatusConflict:
		return CodeConflict
	case http.StatusPreconditionRequired:
		return CodePreconditionRequired
	case http.StatusServiceUnavailable:
		return CodeStorageUnavailable
	default:
		return CodeInternal
	}
}
