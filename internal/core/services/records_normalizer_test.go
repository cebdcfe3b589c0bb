package services_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	"github.com/SscSPs/client_records_app/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T, tweak func(*services.RecordLimits)) *services.RecordNormalizer {
	t.Helper()
	limits := services.DefaultRecordLimits()
	if tweak != nil {
		tweak(&limits)
	}
	n, err := services.NewRecordNormalizer(limits)
	require.NoError(t, err)
	return n
}

func decode(t *testing.T, raw string) any {
	t.Helper()
	v, err := services.DecodeJSONValue(json.RawMessage(raw))
	require.NoError(t, err)
	return v
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation), "expected a validation error, got %v", err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestNewRecordNormalizer_RejectsBadLimits(t *testing.T) {
	limits := services.DefaultRecordLimits()
	limits.MaxPayloadChars = limits.MaxRecordChars - 1

	_, err := services.NewRecordNormalizer(limits)
	assert.Error(t, err)
}

func TestNormalizeRecords_Canonicalizes(t *testing.T) {
	n := newTestNormalizer(t, nil)

	records, err := n.NormalizeRecords(decode(t, `[{
		"id": " r1 ",
		"clientName": "  Jane Roe ",
		"contractTotals": "$1,234.5",
		"payment1": 200,
		"payment1Date": "2026-02-20",
		"payment2Date": "3/1/2026",
		"futurePayments": "(50)",
		"writtenOff": false,
		"afterResult": "yes",
		"createdAt": "2026-02-20T10:00:00Z",
		"notes": null
	}]`))

	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, "Jane Roe", r.ClientName)
	assert.Equal(t, "1234.50", r.ContractTotals)
	assert.Equal(t, "200.00", r.Payment1)
	assert.Equal(t, "02/20/2026", r.Payment1Date)
	assert.Equal(t, "03/01/2026", r.Payment2Date)
	assert.Equal(t, "-50.00", r.FuturePayments)
	assert.Equal(t, "", r.WrittenOff)
	assert.Equal(t, domain.CheckboxYes, r.AfterResult)
	assert.Equal(t, "2026-02-20T10:00:00.000Z", r.CreatedAt)
	assert.Equal(t, "", r.Notes)
}

func TestNormalizeRecords_ExponentNumbers(t *testing.T) {
	n := newTestNormalizer(t, nil)

	records, err := n.NormalizeRecords(decode(t, `[{"contractTotals":1e3,"payment1":2.5E2,"payment2":125e-1,"clientName":1e3}]`))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1000.00", records[0].ContractTotals)
	assert.Equal(t, "250.00", records[0].Payment1)
	assert.Equal(t, "12.50", records[0].Payment2)
	assert.Equal(t, "1e3", records[0].ClientName)

	_, err = n.NormalizeRecords(decode(t, `[{"contractTotals":1e400}]`))
	requireCode(t, err, apperrors.CodePayloadAmountOutOfRange)

	_, err = n.NormalizeRecords(decode(t, `[{"payment1":1e-3}]`))
	requireCode(t, err, apperrors.CodePayloadInvalidAmount)
}

func TestNormalizeRecords_WrittenOffClearsAfterResult(t *testing.T) {
	n := newTestNormalizer(t, nil)

	records, err := n.NormalizeRecords(decode(t, `[{"id":"r1","writtenOff":"Yes","afterResult":"Yes"}]`))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.CheckboxYes, records[0].WrittenOff)
	assert.Equal(t, "", records[0].AfterResult)
}

func TestNormalizeRecords_Errors(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		tweak     func(*services.RecordLimits)
		code      string
		wantIndex int
		wantField string
	}{
		{name: "not an array", payload: `{"id":"r1"}`, code: apperrors.CodePayloadInvalid, wantIndex: -1},
		{name: "record not an object", payload: `["r1"]`, code: apperrors.CodePayloadInvalid, wantIndex: 0},
		{
			name:      "too many records",
			payload:   `[{"id":"a"},{"id":"b"},{"id":"c"}]`,
			tweak:     func(l *services.RecordLimits) { l.MaxRecordCount = 2 },
			code:      apperrors.CodePayloadTooManyRecords,
			wantIndex: -1,
		},
		{
			name:      "too many fields",
			payload:   `[{"id":"a","clientName":"x","notes":"y"}]`,
			tweak:     func(l *services.RecordLimits) { l.MaxFieldsPerRecord = 2 },
			code:      apperrors.CodePayloadTooManyFields,
			wantIndex: 0,
		},
		{name: "unknown field", payload: `[{"id":"a"},{"id":"b","balance":"1"}]`, code: apperrors.CodePayloadUnknownField, wantIndex: 1, wantField: "balance"},
		{name: "boolean on text field", payload: `[{"clientName":true}]`, code: apperrors.CodePayloadInvalidType, wantIndex: 0, wantField: "clientName"},
		{name: "nested object", payload: `[{"notes":{"a":1}}]`, code: apperrors.CodePayloadInvalidType, wantIndex: 0, wantField: "notes"},
		{name: "field too long", payload: `[{"clientName":"` + strings.Repeat("x", 201) + `"}]`, code: apperrors.CodePayloadFieldTooLong, wantIndex: 0, wantField: "clientName"},
		{
			name:      "record too large",
			payload:   `[{"clientName":"abcdefghij","companyName":"abcdefghij"}]`,
			tweak:     func(l *services.RecordLimits) { l.MaxRecordChars = 30 },
			code:      apperrors.CodePayloadRecordTooLarge,
			wantIndex: 0,
		},
		{
			name:      "payload too large",
			payload:   `[{"clientName":"abcdefghij"},{"clientName":"abcdefghij"}]`,
			tweak:     func(l *services.RecordLimits) { l.MaxRecordChars = 30; l.MaxPayloadChars = 30 },
			code:      apperrors.CodePayloadTooLarge,
			wantIndex: 1,
		},
		{name: "three decimals", payload: `[{"payment1":"1.005"}]`, code: apperrors.CodePayloadInvalidAmount, wantIndex: 0, wantField: "payment1"},
		{name: "garbage amount", payload: `[{"contractTotals":"ten"}]`, code: apperrors.CodePayloadInvalidAmount, wantIndex: 0, wantField: "contractTotals"},
		{name: "amount over ceiling", payload: `[{"contractTotals":"1000000001"}]`, code: apperrors.CodePayloadAmountOutOfRange, wantIndex: 0, wantField: "contractTotals"},
		{name: "negative payment", payload: `[{"payment3":"(5.00)"}]`, code: apperrors.CodePayloadNegativeAmount, wantIndex: 0, wantField: "payment3"},
		{name: "february 30", payload: `[{"payment1Date":"02/30/2026"}]`, code: apperrors.CodePayloadInvalidDate, wantIndex: 0, wantField: "payment1Date"},
		{name: "month 13", payload: `[{"dateWhenWrittenOff":"13/01/2026"}]`, code: apperrors.CodePayloadInvalidDate, wantIndex: 0, wantField: "dateWhenWrittenOff"},
		{name: "bad timestamp", payload: `[{"createdAt":"yesterday"}]`, code: apperrors.CodePayloadInvalidTimestamp, wantIndex: 0, wantField: "createdAt"},
		{name: "bad checkbox", payload: `[{"writtenOff":"maybe"}]`, code: apperrors.CodePayloadInvalidCheckbox, wantIndex: 0, wantField: "writtenOff"},
		{name: "duplicate id", payload: `[{"id":"r1"},{"id":"r2"},{"id":"r1"}]`, code: apperrors.CodePayloadDuplicateID, wantIndex: 2, wantField: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNormalizer(t, tt.tweak)
			records, err := n.NormalizeRecords(decode(t, tt.payload))
			assert.Nil(t, records)
			appErr := requireCode(t, err, tt.code)
			assert.Equal(t, tt.wantIndex, appErr.Index)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, appErr.Field)
			}
		})
	}
}

func TestNormalizeRecords_EmptyIDsAreNotDuplicates(t *testing.T) {
	n := newTestNormalizer(t, nil)

	records, err := n.NormalizeRecords(decode(t, `[{"clientName":"a"},{"clientName":"b","id":""}]`))

	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestNormalizeRecords_CheckboxVariants(t *testing.T) {
	n := newTestNormalizer(t, nil)
	for raw, want := range map[string]string{
		`true`: domain.CheckboxYes, `"Y"`: domain.CheckboxYes, `"on"`: domain.CheckboxYes, `"1"`: domain.CheckboxYes,
		`false`: "", `"No"`: "", `"off"`: "", `""`: "", `null`: "",
	} {
		records, err := n.NormalizeRecords(decode(t, `[{"afterResult":`+raw+`}]`))
		require.NoError(t, err, raw)
		assert.Equal(t, want, records[0].AfterResult, raw)
	}
}
