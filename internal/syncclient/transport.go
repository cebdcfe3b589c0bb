package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	"github.com/SscSPs/client_records_app/internal/dto"
)

// SaveRequest is one full-collection write. ExpectedUpdatedAt "" sends the null precondition.
type SaveRequest struct {
	Records           []domain.ClientRecord
	ExpectedUpdatedAt string
}

// SaveCallback receives the new stamp or the failure of a save.
type SaveCallback func(updatedAt string, err error)

// Transport delivers a save and reports the outcome through done, exactly once.
type Transport interface {
	Save(req SaveRequest, done SaveCallback)
}

// APIError is a non-2xx answer from the records API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("records api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is maps the status onto the server's error kinds so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusConflict:
		return target == apperrors.ErrConflict
	case http.StatusPreconditionRequired:
		return target == apperrors.ErrPreconditionRequired
	case http.StatusServiceUnavailable:
		return target == apperrors.ErrServiceUnavailable
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return target == apperrors.ErrValidation
	}
	return false
}

// IsRetryable reports whether resending the same save can succeed. Validation and
// protocol errors need a caller change; conflicts, outages and network errors do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch {
	case apiErr.Status == http.StatusConflict, apiErr.Status == http.StatusTooManyRequests:
		return true
	case apiErr.Status >= 500:
		return true
	default:
		return false
	}
}

// TokenSource returns the bearer token for a request. An empty token sends no Authorization header.
type TokenSource func() string

// HTTPTransport performs saves as PUT /api/v1/records.
type HTTPTransport struct {
	client  *http.Client
	baseURL string
	token   TokenSource
	timeout time.Duration
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithTokenSource authenticates requests with a bearer token.
func WithTokenSource(ts TokenSource) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.token = ts
	}
}

// WithRequestTimeout bounds each save.
func WithRequestTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.timeout = d
	}
}

// NewHTTPTransport creates a transport for the API at baseURL (e.g. "https://records.example.com").
func NewHTTPTransport(baseURL string, opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client:  http.DefaultClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ Transport = (*HTTPTransport)(nil)

// Save sends the request on its own goroutine.
func (t *HTTPTransport) Save(req SaveRequest, done SaveCallback) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		done(t.Put(ctx, req))
	}()
}

// Put performs the save synchronously.
func (t *HTTPTransport) Put(ctx context.Context, req SaveRequest) (string, error) {
	records := req.Records
	if records == nil {
		records = []domain.ClientRecord{}
	}
	body := struct {
		Records           []domain.ClientRecord `json:"records"`
		ExpectedUpdatedAt *string               `json:"expectedUpdatedAt"`
	}{Records: records}
	if req.ExpectedUpdatedAt != "" {
		stamp := req.ExpectedUpdatedAt
		body.ExpectedUpdatedAt = &stamp
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, t.baseURL+"/api/v1/records", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.token != nil {
		if token := t.token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to save records: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp dto.ErrorResponse
		_ = json.Unmarshal(raw, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return "", &APIError{Status: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
	}

	var ok dto.WriteRecordsResponse
	if err := json.Unmarshal(raw, &ok); err != nil || !ok.OK || ok.UpdatedAt == "" {
		return "", fmt.Errorf("unexpected save response: %s", strings.TrimSpace(string(raw)))
	}
	return ok.UpdatedAt, nil
}
