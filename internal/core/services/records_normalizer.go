package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SscSPs/client_records_app/internal/apperrors"
	"github.com/SscSPs/client_records_app/internal/core/domain"
	"github.com/SscSPs/client_records_app/internal/utils/dates"
	"github.com/SscSPs/client_records_app/internal/utils/money"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxMoneyExponent caps the exponent of a JSON number before it is expanded to digits.
const maxMoneyExponent = 18

// RecordLimits bounds the size of a records payload. Violations are protocol errors.
type RecordLimits struct {
	MaxRecordCount        int            `validate:"min=1"`
	MaxFieldsPerRecord    int            `validate:"min=1"`
	MaxRecordChars        int            `validate:"min=1"`
	MaxPayloadChars       int            `validate:"min=1,gtefield=MaxRecordChars"`
	MoneyMaxAbsoluteCents int64          `validate:"min=1,max=9007199254740991"`
	FieldMaxChars         map[string]int `validate:"required,dive,min=1"`
}

// DefaultRecordLimits returns the production ceilings.
func DefaultRecordLimits() RecordLimits {
	fieldMax := make(map[string]int, len(domain.RecordFields))
	for _, f := range domain.RecordFields {
		switch f.Kind {
		case domain.KindID:
			fieldMax[f.Name] = 128
		case domain.KindText:
			fieldMax[f.Name] = 200
		case domain.KindMoney, domain.KindDate:
			fieldMax[f.Name] = 32
		case domain.KindCheckbox:
			fieldMax[f.Name] = 8
		case domain.KindTimestamp:
			fieldMax[f.Name] = 64
		}
	}
	fieldMax[domain.FieldNotes] = 4000

	return RecordLimits{
		MaxRecordCount:        5000,
		MaxFieldsPerRecord:    len(domain.RecordFields),
		MaxRecordChars:        12000,
		MaxPayloadChars:       4_000_000,
		MoneyMaxAbsoluteCents: 100_000_000_000,
		FieldMaxChars:         fieldMax,
	}
}

// RecordNormalizer turns raw decoded JSON into canonical client records.
type RecordNormalizer struct {
	limits RecordLimits
}

// NewRecordNormalizer validates limits and builds a normalizer.
func NewRecordNormalizer(limits RecordLimits) (*RecordNormalizer, error) {
	if err := validator.New().Struct(limits); err != nil {
		return nil, fmt.Errorf("invalid record limits: %w", err)
	}
	return &RecordNormalizer{limits: limits}, nil
}

// Limits returns the configured ceilings.
func (n *RecordNormalizer) Limits() RecordLimits {
	return n.limits
}

// DecodeJSONValue decodes raw JSON keeping numbers as json.Number so amounts are not rounded through float64.
func DecodeJSONValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// NormalizeRecords validates a full collection payload.
func (n *RecordNormalizer) NormalizeRecords(raw any) ([]domain.ClientRecord, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, apperrors.NewValidationError(apperrors.CodePayloadInvalid, -1, "", "records must be an array")
	}
	if len(items) > n.limits.MaxRecordCount {
		return nil, apperrors.NewValidationError(apperrors.CodePayloadTooManyRecords, -1, "",
			fmt.Sprintf("at most %d records are allowed, got %d", n.limits.MaxRecordCount, len(items)))
	}

	records := make([]domain.ClientRecord, 0, len(items))
	totalChars := 0
	for i, item := range items {
		record, chars, err := n.NormalizeRecord(i, item)
		if err != nil {
			return nil, err
		}
		totalChars += chars
		if totalChars > n.limits.MaxPayloadChars {
			return nil, apperrors.NewValidationError(apperrors.CodePayloadTooLarge, i, "",
				fmt.Sprintf("payload exceeds %d characters", n.limits.MaxPayloadChars))
		}
		records = append(records, record)
	}

	if err := CheckDuplicateIDs(records); err != nil {
		return nil, err
	}
	return records, nil
}

// CheckDuplicateIDs rejects two records sharing a non-empty id.
func CheckDuplicateIDs(records []domain.ClientRecord) error {
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if r.ID == "" {
			continue
		}
		if first, dup := seen[r.ID]; dup {
			return apperrors.NewValidationError(apperrors.CodePayloadDuplicateID, i, domain.FieldID,
				fmt.Sprintf("id %q is already used by record %d", r.ID, first))
		}
		seen[r.ID] = i
	}
	return nil
}

// NormalizeRecord validates one record object. It also returns the character count
// charged against the payload budget.
func (n *RecordNormalizer) NormalizeRecord(index int, raw any) (domain.ClientRecord, int, error) {
	var record domain.ClientRecord

	obj, ok := raw.(map[string]any)
	if !ok {
		return record, 0, apperrors.NewValidationError(apperrors.CodePayloadInvalid, index, "", "record must be an object")
	}
	if len(obj) > n.limits.MaxFieldsPerRecord {
		return record, 0, apperrors.NewValidationError(apperrors.CodePayloadTooManyFields, index, "",
			fmt.Sprintf("record has %d fields, at most %d are allowed", len(obj), n.limits.MaxFieldsPerRecord))
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chars := 0
	for _, field := range keys {
		kind, known := domain.FieldKindOf(field)
		if !known {
			return record, 0, apperrors.NewValidationError(apperrors.CodePayloadUnknownField, index, field, "field is not allowed")
		}

		value, err := coerceValue(index, field, kind, obj[field])
		if err != nil {
			return record, 0, err
		}
		if limit := n.limits.FieldMaxChars[field]; limit > 0 && utf8.RuneCountInString(value) > limit {
			return record, 0, apperrors.NewValidationError(apperrors.CodePayloadFieldTooLong, index, field,
				fmt.Sprintf("value exceeds %d characters", limit))
		}
		chars += utf8.RuneCountInString(field) + utf8.RuneCountInString(value)
		if chars > n.limits.MaxRecordChars {
			return record, 0, apperrors.NewValidationError(apperrors.CodePayloadRecordTooLarge, index, "",
				fmt.Sprintf("record exceeds %d characters", n.limits.MaxRecordChars))
		}

		canonical, err := n.canonicalize(index, field, kind, value)
		if err != nil {
			return record, 0, err
		}
		record.Set(field, canonical)
	}

	if record.IsWrittenOff() {
		record.AfterResult = ""
	}
	return record, chars, nil
}

func (n *RecordNormalizer) canonicalize(index int, field string, kind domain.FieldKind, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	switch kind {
	case domain.KindMoney:
		text, cents, err := money.Normalize(value, n.limits.MoneyMaxAbsoluteCents)
		if err != nil {
			if errors.Is(err, money.ErrOutOfRange) {
				return "", apperrors.NewValidationError(apperrors.CodePayloadAmountOutOfRange, index, field,
					fmt.Sprintf("amount must be within ±%s", money.FormatCents(n.limits.MoneyMaxAbsoluteCents)))
			}
			return "", apperrors.NewValidationError(apperrors.CodePayloadInvalidAmount, index, field, err.Error())
		}
		if cents < 0 && field != domain.FieldFuturePayments {
			return "", apperrors.NewValidationError(apperrors.CodePayloadNegativeAmount, index, field, "amount must not be negative")
		}
		return text, nil
	case domain.KindDate:
		d, err := dates.NormalizeDate(value)
		if err != nil {
			return "", apperrors.NewValidationError(apperrors.CodePayloadInvalidDate, index, field, "date must be a real calendar date (MM/DD/YYYY)")
		}
		return d, nil
	case domain.KindTimestamp:
		ts, err := dates.NormalizeTimestamp(value)
		if err != nil {
			return "", apperrors.NewValidationError(apperrors.CodePayloadInvalidTimestamp, index, field, "timestamp must be ISO-8601")
		}
		return ts, nil
	case domain.KindCheckbox:
		return parseCheckbox(index, field, value)
	default:
		return value, nil
	}
}

func coerceValue(index int, field string, kind domain.FieldKind, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		if kind == domain.KindMoney {
			return moneyNumberText(index, field, val)
		}
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		if kind != domain.KindCheckbox {
			return "", apperrors.NewValidationError(apperrors.CodePayloadInvalidType, index, field, "booleans are only allowed for checkbox fields")
		}
		if val {
			return domain.CheckboxYes, nil
		}
		return "", nil
	default:
		return "", apperrors.NewValidationError(apperrors.CodePayloadInvalidType, index, field,
			fmt.Sprintf("unsupported value type %T", v))
	}
}

// moneyNumberText expands exponent forms such as 1e3 into plain decimal text for the money grammar.
func moneyNumberText(index int, field string, n json.Number) (string, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return "", apperrors.NewValidationError(apperrors.CodePayloadInvalidAmount, index, field, "amount is not a number")
	}
	if d.Exponent() > maxMoneyExponent {
		return "", apperrors.NewValidationError(apperrors.CodePayloadAmountOutOfRange, index, field, "amount is out of range")
	}
	return d.String(), nil
}

func parseCheckbox(index int, field, value string) (string, error) {
	switch strings.ToLower(value) {
	case "yes", "y", "true", "1", "on":
		return domain.CheckboxYes, nil
	case "no", "n", "false", "0", "off":
		return "", nil
	}
	return "", apperrors.NewValidationError(apperrors.CodePayloadInvalidCheckbox, index, field, `checkbox must be "Yes" or empty`)
}
