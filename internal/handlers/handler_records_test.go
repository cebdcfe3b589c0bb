package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/SscSPs/client_records_app/internal/dto"
	"github.com/SscSPs/client_records_app/internal/handlers"
	"github.com/SscSPs/client_records_app/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock RecordsService ---
type MockRecordsService struct {
	mock.Mock
}

func (m *MockRecordsService) GetRecords(ctx context.Context) (*domain.RecordsSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecordsSnapshot), args.Error(1)
}

func (m *MockRecordsService) ReplaceRecords(ctx context.Context, raw any, precondition domain.Precondition) (string, error) {
	args := m.Called(ctx, raw, precondition)
	return args.String(0), args.Error(1)
}

func (m *MockRecordsService) PatchRecords(ctx context.Context, ops []domain.RawPatchOperation, precondition domain.Precondition) (*domain.PatchResult, error) {
	args := m.Called(ctx, ops, precondition)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PatchResult), args.Error(1)
}

var _ portssvc.RecordsSvcFacade = (*MockRecordsService)(nil)

const stamp = "2026-02-21T12:00:00.000Z"

// --- Test Suite ---
type RecordsHandlerTestSuite struct {
	suite.Suite
	router      *gin.Engine
	mockRecords *MockRecordsService
}

func (suite *RecordsHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.router.Use(middleware.StructuredLoggingMiddleware(slog.Default()))
	suite.mockRecords = new(MockRecordsService)

	v1 := suite.router.Group("/api/v1")
	handlers.RegisterRecordsRoutes(v1, suite.mockRecords, handlers.WithMaxBodyBytes(4096))
}

func (suite *RecordsHandlerTestSuite) do(method, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/v1/records", nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1/records", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *RecordsHandlerTestSuite) decodeError(w *httptest.ResponseRecorder) dto.ErrorResponse {
	var resp dto.ErrorResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- Test Cases ---

func (suite *RecordsHandlerTestSuite) TestGetRecords_Success() {
	suite.mockRecords.On("GetRecords", mock.Anything).Return(&domain.RecordsSnapshot{
		Records:   []domain.ClientRecord{{ID: "r1", ClientName: "Jane"}},
		UpdatedAt: stamp,
		Source:    domain.SourceV2,
	}, nil).Once()

	w := suite.do(http.MethodGet, "")

	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("v2", w.Header().Get("X-Records-Source"))
	var resp dto.RecordsResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp.Records, 1)
	suite.Equal("Jane", resp.Records[0].ClientName)
	suite.Require().NotNil(resp.UpdatedAt)
	suite.Equal(stamp, *resp.UpdatedAt)
	suite.mockRecords.AssertExpectations(suite.T())
}

func (suite *RecordsHandlerTestSuite) TestGetRecords_NeverWritten() {
	suite.mockRecords.On("GetRecords", mock.Anything).Return(&domain.RecordsSnapshot{Source: domain.SourceLegacy}, nil).Once()

	w := suite.do(http.MethodGet, "")

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"records":[],"updatedAt":null}`, w.Body.String())
}

func (suite *RecordsHandlerTestSuite) TestGetRecords_StorageUnavailable() {
	suite.mockRecords.On("GetRecords", mock.Anything).
		Return(nil, apperrors.NewUnavailableError("records storage is not configured", errors.New("dial tcp 10.0.0.5:5432"))).Once()

	w := suite.do(http.MethodGet, "")

	suite.Equal(http.StatusServiceUnavailable, w.Code)
	resp := suite.decodeError(w)
	suite.Equal(apperrors.CodeStorageUnavailable, resp.Code)
	suite.NotContains(w.Body.String(), "10.0.0.5")
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_Success() {
	suite.mockRecords.On("ReplaceRecords", mock.Anything,
		mock.MatchedBy(func(raw any) bool {
			items, ok := raw.([]any)
			return ok && len(items) == 1
		}),
		domain.ExpectStamp(stamp),
	).Return("2026-02-21T12:00:00.001Z", nil).Once()

	w := suite.do(http.MethodPut, `{"records":[{"id":"r1","payment1":12.5}],"expectedUpdatedAt":"`+stamp+`"}`)

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"ok":true,"updatedAt":"2026-02-21T12:00:00.001Z"}`, w.Body.String())
	suite.mockRecords.AssertExpectations(suite.T())
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_NullPreconditionIsFirstWrite() {
	suite.mockRecords.On("ReplaceRecords", mock.Anything, mock.Anything, domain.ExpectNull()).Return(stamp, nil).Once()

	w := suite.do(http.MethodPut, `{"records":[],"expectedUpdatedAt":null}`)

	suite.Equal(http.StatusOK, w.Code)
	suite.mockRecords.AssertExpectations(suite.T())
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_MissingPrecondition() {
	suite.mockRecords.On("ReplaceRecords", mock.Anything, mock.Anything, domain.Precondition{}).
		Return("", apperrors.NewPreconditionRequiredError()).Once()

	w := suite.do(http.MethodPut, `{"records":[]}`)

	suite.Equal(http.StatusPreconditionRequired, w.Code)
	suite.Equal(apperrors.CodePreconditionRequired, suite.decodeError(w).Code)
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_InvalidPrecondition() {
	for _, body := range []string{
		`{"records":[],"expectedUpdatedAt":5}`,
		`{"records":[],"expectedUpdatedAt":"yesterday"}`,
		`{"records":[],"expectedUpdatedAt":{}}`,
	} {
		w := suite.do(http.MethodPut, body)
		suite.Equal(http.StatusBadRequest, w.Code, body)
		resp := suite.decodeError(w)
		suite.Equal(apperrors.CodePreconditionInvalid, resp.Code, body)
		suite.Equal("expectedUpdatedAt", resp.Field)
	}
	suite.mockRecords.AssertNotCalled(suite.T(), "ReplaceRecords", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_Conflict() {
	suite.mockRecords.On("ReplaceRecords", mock.Anything, mock.Anything, mock.Anything).
		Return("", apperrors.NewConflictError(stamp, "2026-02-21T12:05:00.000Z")).Once()

	w := suite.do(http.MethodPut, `{"records":[],"expectedUpdatedAt":"`+stamp+`"}`)

	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal(apperrors.CodeConflict, suite.decodeError(w).Code)
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_ValidationErrorCarriesLocation() {
	suite.mockRecords.On("ReplaceRecords", mock.Anything, mock.Anything, mock.Anything).
		Return("", apperrors.NewValidationError(apperrors.CodePayloadInvalidDate, 3, "payment2Date", "invalid date")).Once()

	w := suite.do(http.MethodPut, `{"records":[],"expectedUpdatedAt":null}`)

	suite.Equal(http.StatusBadRequest, w.Code)
	resp := suite.decodeError(w)
	suite.Equal(apperrors.CodePayloadInvalidDate, resp.Code)
	suite.Require().NotNil(resp.Index)
	suite.Equal(3, *resp.Index)
	suite.Equal("payment2Date", resp.Field)
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_MalformedBodies() {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "not json", body: `{"records":`, code: apperrors.CodePayloadInvalid},
		{name: "array body", body: `[]`, code: apperrors.CodePayloadInvalid},
		{name: "missing records", body: `{"expectedUpdatedAt":null}`, code: apperrors.CodePayloadInvalid},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			w := suite.do(http.MethodPut, tt.body)
			suite.Equal(http.StatusBadRequest, w.Code)
			suite.Equal(tt.code, suite.decodeError(w).Code)
		})
	}
	suite.mockRecords.AssertNotCalled(suite.T(), "ReplaceRecords", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_BodyTooLarge() {
	body := `{"expectedUpdatedAt":null,"records":[{"notes":"` + strings.Repeat("x", 5000) + `"}]}`

	w := suite.do(http.MethodPut, body)

	suite.Equal(http.StatusRequestEntityTooLarge, w.Code)
	suite.Equal(apperrors.CodePayloadTooLarge, suite.decodeError(w).Code)
}

func (suite *RecordsHandlerTestSuite) TestReplaceRecords_InternalErrorIsGeneric() {
	suite.mockRecords.On("ReplaceRecords", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("payload column corrupt at offset 17")).Once()

	w := suite.do(http.MethodPut, `{"records":[],"expectedUpdatedAt":null}`)

	suite.Equal(http.StatusInternalServerError, w.Code)
	resp := suite.decodeError(w)
	suite.Equal(apperrors.CodeInternal, resp.Code)
	suite.Equal("Internal server error", resp.Error)
}

func (suite *RecordsHandlerTestSuite) TestPatchRecords_Success() {
	suite.mockRecords.On("PatchRecords", mock.Anything,
		mock.MatchedBy(func(ops []domain.RawPatchOperation) bool {
			return len(ops) == 2 && ops[0].Type == "upsert" && ops[1].Type == "delete" && ops[1].ID == "r2"
		}),
		domain.ExpectStamp(stamp),
	).Return(&domain.PatchResult{UpdatedAt: "2026-02-21T12:00:00.001Z", AppliedOperations: 2}, nil).Once()

	w := suite.do(http.MethodPatch, `{"expectedUpdatedAt":"`+stamp+`","operations":[
		{"type":"upsert","id":"r1","record":{"clientName":"Jane"}},
		{"type":"delete","id":"r2"}
	]}`)

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"ok":true,"updatedAt":"2026-02-21T12:00:00.001Z","appliedOperations":2}`, w.Body.String())
	suite.mockRecords.AssertExpectations(suite.T())
}

func (suite *RecordsHandlerTestSuite) TestPatchRecords_ShapeErrors() {
	tests := []struct {
		name  string
		body  string
		code  string
		index *int
	}{
		{name: "operations missing", body: `{"expectedUpdatedAt":null}`, code: apperrors.CodePatchInvalidPayload},
		{name: "operations not array", body: `{"expectedUpdatedAt":null,"operations":{"type":"upsert"}}`, code: apperrors.CodePatchInvalidPayload},
		{name: "operations null", body: `{"expectedUpdatedAt":null,"operations":null}`, code: apperrors.CodePatchInvalidPayload},
		{name: "operation not object", body: `{"expectedUpdatedAt":null,"operations":[{"type":"delete","id":"a"},"delete"]}`, code: apperrors.CodePatchInvalidOperation, index: intPtr(1)},
		{name: "type not string", body: `{"expectedUpdatedAt":null,"operations":[{"type":7}]}`, code: apperrors.CodePatchInvalidOperation, index: intPtr(0)},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			w := suite.do(http.MethodPatch, tt.body)
			suite.Equal(http.StatusBadRequest, w.Code)
			resp := suite.decodeError(w)
			suite.Equal(tt.code, resp.Code)
			suite.Equal(tt.index, resp.Index)
		})
	}
	suite.mockRecords.AssertNotCalled(suite.T(), "PatchRecords", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RecordsHandlerTestSuite) TestPatchRecords_EmptyOperationsReachService() {
	suite.mockRecords.On("PatchRecords", mock.Anything, []domain.RawPatchOperation{}, domain.ExpectNull()).
		Return(nil, apperrors.NewValidationError(apperrors.CodePatchInvalidPayload, -1, "", "operations must not be empty")).Once()

	w := suite.do(http.MethodPatch, `{"expectedUpdatedAt":null,"operations":[]}`)

	suite.Equal(http.StatusBadRequest, w.Code)
	resp := suite.decodeError(w)
	suite.Equal(apperrors.CodePatchInvalidPayload, resp.Code)
	suite.Nil(resp.Index)
}

func intPtr(i int) *int { return &i }

// --- Run Test Suite ---
func TestRecordsHandler(t *testing.T) {
	suite.Run(t, new(RecordsHandlerTestSuite))
}
