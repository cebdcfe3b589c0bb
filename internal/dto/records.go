package dto

import (
	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
)

// ReplaceRecordsRequest documents the PUT body. The handler decodes it by hand so that an
// omitted expectedUpdatedAt can be told apart from an explicit null.
type ReplaceRecordsRequest struct {
	Records           []map[string]any `json:"records"`
	ExpectedUpdatedAt *string          `json:"expectedUpdatedAt"`
}

// PatchRecordsRequest documents the PATCH body.
type PatchRecordsRequest struct {
	Operations        []domain.RawPatchOperation `json:"operations"`
	ExpectedUpdatedAt *string                    `json:"expectedUpdatedAt"`
}

// RecordsResponse is returned by GET. UpdatedAt is null until the first write.
type RecordsResponse struct {
	Records   []domain.ClientRecord `json:"records"`
	UpdatedAt *string               `json:"updatedAt"`
}

// WriteRecordsResponse is returned by a successful PUT.
type WriteRecordsResponse struct {
	OK        bool   `json:"ok"`
	UpdatedAt string `json:"updatedAt"`
}

// PatchRecordsResponse is returned by a successful PATCH.
type PatchRecordsResponse struct {
	OK                bool   `json:"ok"`
	UpdatedAt         string `json:"updatedAt"`
	AppliedOperations int    `json:"appliedOperations"`
}

// ErrorResponse carries a human message and a stable code clients can branch on.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Index *int   `json:"index,omitempty"`
	Field string `json:"field,omitempty"`
}

// ToRecordsResponse converts a snapshot for the wire.
func ToRecordsResponse(snap *domain.RecordsSnapshot) RecordsResponse {
	resp := RecordsResponse{Records: snap.Records}
	if resp.Records == nil {
		resp.Records = []domain.ClientRecord{}
	}
	if snap.Exists() {
		stamp := snap.UpdatedAt
		resp.UpdatedAt = &stamp
	}
	return resp
}

// ToErrorResponse converts an application error. message overrides the error's own text when set.
func ToErrorResponse(appErr *apperrors.AppError, message string) ErrorResponse {
	if message == "" {
		message = appErr.Message
	}
	resp := ErrorResponse{Error: message, Code: appErr.Code, Field: appErr.Field}
	if appErr.Index >= 0 {
		idx := appErr.Index
		resp.Index = &idx
	}
	return resp
}
