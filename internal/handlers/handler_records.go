package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/SscSPs/client_records_app/internal/core/services"
	"github.com/SscSPs/client_records_app/internal/dto"
	"github.com/SscSPs/client_records_app/internal/middleware"
	"github.com/SscSPs/client_records_app/internal/utils/dates"
	"github.com/gin-gonic/gin"
)

const (
	recordsSourceHeader = "X-Records-Source"
	// bodyOverheadBytes leaves room for JSON punctuation and multi-byte characters around the
	// character budget enforced by the normalizer.
	bodyOverheadBytes = 1 << 20
)

// recordsHandler handles HTTP requests for the shared records collection.
type recordsHandler struct {
	recordsService portssvc.RecordsSvcFacade
	maxBodyBytes   int64
}

// RecordsRouteOption configures the records routes.
type RecordsRouteOption func(*recordsHandler)

// WithMaxBodyBytes caps request bodies. Zero or negative disables the cap.
func WithMaxBodyBytes(n int64) RecordsRouteOption {
	return func(h *recordsHandler) {
		h.maxBodyBytes = n
	}
}

// MaxBodyBytesForPayload derives the body cap from the payload character ceiling.
func MaxBodyBytesForPayload(maxPayloadChars int) int64 {
	return int64(maxPayloadChars)*4 + bodyOverheadBytes
}

// RegisterRecordsRoutes registers GET/PUT/PATCH on /records below rg.
func RegisterRecordsRoutes(rg *gin.RouterGroup, recordsService portssvc.RecordsSvcFacade, opts ...RecordsRouteOption) {
	h := &recordsHandler{recordsService: recordsService}
	for _, opt := range opts {
		opt(h)
	}

	records := rg.Group("/records")
	{
		records.GET("", h.getRecords)
		records.PUT("", h.replaceRecords)
		records.PATCH("", h.patchRecords)
	}
}

// getRecords godoc
// @Summary Get all client records
// @Description Returns the whole collection and its version stamp. updatedAt is null until the first write.
// @Tags records
// @Produce json
// @Success 200 {object} dto.RecordsResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable"
// @Security BearerAuth
// @Router /records [get]
func (h *recordsHandler) getRecords(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	snap, err := h.recordsService.GetRecords(c.Request.Context())
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	c.Header(recordsSourceHeader, string(snap.Source))
	c.JSON(http.StatusOK, dto.ToRecordsResponse(snap))
}

// replaceRecords godoc
// @Summary Replace all client records
// @Description Validates and replaces the whole collection. expectedUpdatedAt is required: null for a first write, otherwise the stamp last read.
// @Tags records
// @Accept json
// @Produce json
// @Param request body dto.ReplaceRecordsRequest true "Records and precondition"
// @Success 200 {object} dto.WriteRecordsResponse
// @Failure 400 {object} dto.ErrorResponse "Validation error"
// @Failure 409 {object} dto.ErrorResponse "Stale expectedUpdatedAt"
// @Failure 413 {object} dto.ErrorResponse "Body too large"
// @Failure 428 {object} dto.ErrorResponse "expectedUpdatedAt missing"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable"
// @Security BearerAuth
// @Router /records [put]
func (h *recordsHandler) replaceRecords(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	body, precondition, err := h.readWriteRequest(c)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	rawRecords, ok := body["records"]
	if !ok {
		h.respondError(c, logger, apperrors.NewValidationError(apperrors.CodePayloadInvalid, -1, "records", "records is required"))
		return
	}
	records, err := services.DecodeJSONValue(rawRecords)
	if err != nil {
		h.respondError(c, logger, apperrors.NewValidationError(apperrors.CodePayloadInvalid, -1, "records", "records is not valid JSON"))
		return
	}

	updatedAt, err := h.recordsService.ReplaceRecords(c.Request.Context(), records, precondition)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.WriteRecordsResponse{OK: true, UpdatedAt: updatedAt})
}

// patchRecords godoc
// @Summary Apply a batch of record operations
// @Description Applies upsert/delete operations atomically under the same precondition protocol as PUT.
// @Tags records
// @Accept json
// @Produce json
// @Param request body dto.PatchRecordsRequest true "Operations and precondition"
// @Success 200 {object} dto.PatchRecordsResponse
// @Failure 400 {object} dto.ErrorResponse "Validation error"
// @Failure 409 {object} dto.ErrorResponse "Stale expectedUpdatedAt"
// @Failure 413 {object} dto.ErrorResponse "Body too large"
// @Failure 428 {object} dto.ErrorResponse "expectedUpdatedAt missing"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable"
// @Security BearerAuth
// @Router /records [patch]
func (h *recordsHandler) patchRecords(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	body, precondition, err := h.readWriteRequest(c)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	ops, err := parseOperations(body["operations"])
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	result, err := h.recordsService.PatchRecords(c.Request.Context(), ops, precondition)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.PatchRecordsResponse{
		OK:                true,
		UpdatedAt:         result.UpdatedAt,
		AppliedOperations: result.AppliedOperations,
	})
}

// readWriteRequest reads a JSON object body and extracts expectedUpdatedAt.
func (h *recordsHandler) readWriteRequest(c *gin.Context) (map[string]json.RawMessage, domain.Precondition, error) {
	var precondition domain.Precondition

	reader := io.Reader(c.Request.Body)
	if h.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, precondition, &apperrors.AppError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    apperrors.CodePayloadTooLarge,
				Message: "request body is too large",
				Index:   -1,
				Kind:    apperrors.ErrValidation,
			}
		}
		return nil, precondition, apperrors.NewValidationError(apperrors.CodePayloadInvalid, -1, "", "failed to read request body")
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return nil, precondition, apperrors.NewValidationError(apperrors.CodePayloadInvalid, -1, "", "request body must be a JSON object")
	}

	precondition, err = parsePrecondition(body)
	if err != nil {
		return nil, precondition, err
	}
	return body, precondition, nil
}

// parsePrecondition distinguishes an omitted expectedUpdatedAt from an explicit null.
func parsePrecondition(body map[string]json.RawMessage) (domain.Precondition, error) {
	raw, ok := body["expectedUpdatedAt"]
	if !ok {
		return domain.Precondition{}, nil
	}
	if strings.TrimSpace(string(raw)) == "null" {
		return domain.ExpectNull(), nil
	}

	invalid := apperrors.NewValidationError(apperrors.CodePreconditionInvalid, -1, "expectedUpdatedAt",
		"expectedUpdatedAt must be null or an ISO-8601 timestamp")
	var stamp string
	if err := json.Unmarshal(raw, &stamp); err != nil {
		return domain.Precondition{}, invalid
	}
	stamp = strings.TrimSpace(stamp)
	if _, err := dates.ParseTimestamp(stamp); err != nil {
		return domain.Precondition{}, invalid
	}
	return domain.ExpectStamp(stamp), nil
}

// parseOperations decodes the operations array. Shape errors are reported per operation index.
func parseOperations(raw json.RawMessage) ([]domain.RawPatchOperation, error) {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return nil, apperrors.NewValidationError(apperrors.CodePatchInvalidPayload, -1, "operations", "operations must be an array")
	}

	ops := make([]domain.RawPatchOperation, len(items))
	for i, item := range items {
		trimmed := strings.TrimSpace(string(item))
		if !strings.HasPrefix(trimmed, "{") || json.Unmarshal(item, &ops[i]) != nil {
			return nil, apperrors.NewValidationError(apperrors.CodePatchInvalidOperation, i, "", "operation must be an object with a string type and id")
		}
	}
	return ops, nil
}

// respondError writes the error body. Internal failures are logged in full and answered with a generic message.
func (h *recordsHandler) respondError(c *gin.Context, logger *slog.Logger, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.NewInternalError("unexpected error", err)
	}

	message := ""
	switch {
	case errors.Is(appErr, apperrors.ErrValidation):
		logger.Warn("Records request rejected",
			slog.String("code", appErr.Code), slog.Int("index", appErr.Index), slog.String("field", appErr.Field),
			slog.String("error", appErr.Error()))
	case errors.Is(appErr, apperrors.ErrConflict), errors.Is(appErr, apperrors.ErrPreconditionRequired):
		logger.Info("Records write refused", slog.String("code", appErr.Code), slog.String("error", appErr.Error()))
	case errors.Is(appErr, apperrors.ErrServiceUnavailable):
		logger.Error("Records storage unavailable", slog.String("error", appErr.Error()))
		message = "Records storage is temporarily unavailable"
	default:
		logger.Error("Records request failed", slog.String("error", appErr.Error()))
		message = "Internal server error"
	}

	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, dto.ToErrorResponse(appErr, message))
}
