package mapping

import (
	"fmt"
	"time"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	"github.com/SscSPs/client_records_app/internal/models"
	"github.com/SscSPs/client_records_app/internal/utils/dates"
	"github.com/shopspring/decimal"
)

// ToModelClientRecord converts a canonical domain record into a v2 row.
func ToModelClientRecord(r domain.ClientRecord, position int) (models.ClientRecordRow, error) {
	row := models.ClientRecordRow{
		ID:          r.ID,
		Position:    position,
		ClientName:  r.ClientName,
		ClosedBy:    r.ClosedBy,
		CompanyName: r.CompanyName,
		ServiceType: r.ServiceType,
		WrittenOff:  r.WrittenOff == domain.CheckboxYes,
		AfterResult: r.AfterResult == domain.CheckboxYes,
		Notes:       r.Notes,
	}

	var err error
	moneyFields := []struct {
		dst  *decimal.NullDecimal
		src  string
		name string
	}{
		{&row.ContractTotals, r.ContractTotals, domain.FieldContractTotals},
		{&row.Payment1, r.Payment1, "payment1"},
		{&row.Payment2, r.Payment2, "payment2"},
		{&row.Payment3, r.Payment3, "payment3"},
		{&row.Payment4, r.Payment4, "payment4"},
		{&row.Payment5, r.Payment5, "payment5"},
		{&row.Payment6, r.Payment6, "payment6"},
		{&row.Payment7, r.Payment7, "payment7"},
		{&row.TotalPayments, r.TotalPayments, domain.FieldTotalPayments},
		{&row.FuturePayments, r.FuturePayments, domain.FieldFuturePayments},
	}
	for _, f := range moneyFields {
		if *f.dst, err = toNullDecimal(f.src); err != nil {
			return row, fmt.Errorf("record %s field %s: %w", r.ID, f.name, err)
		}
	}

	dateFields := []struct {
		dst  **time.Time
		src  string
		name string
	}{
		{&row.Payment1Date, r.Payment1Date, "payment1Date"},
		{&row.Payment2Date, r.Payment2Date, "payment2Date"},
		{&row.Payment3Date, r.Payment3Date, "payment3Date"},
		{&row.Payment4Date, r.Payment4Date, "payment4Date"},
		{&row.Payment5Date, r.Payment5Date, "payment5Date"},
		{&row.Payment6Date, r.Payment6Date, "payment6Date"},
		{&row.Payment7Date, r.Payment7Date, "payment7Date"},
		{&row.DateWhenFullyPaid, r.DateWhenFullyPaid, domain.FieldDateWhenFullyPaid},
		{&row.DateWhenWrittenOff, r.DateWhenWrittenOff, domain.FieldDateWhenWrittenOff},
	}
	for _, f := range dateFields {
		if *f.dst, err = toDatePtr(f.src); err != nil {
			return row, fmt.Errorf("record %s field %s: %w", r.ID, f.name, err)
		}
	}

	if r.CreatedAt != "" {
		t, err := dates.ParseTimestamp(r.CreatedAt)
		if err != nil {
			return row, fmt.Errorf("record %s field %s: %w", r.ID, domain.FieldCreatedAt, err)
		}
		row.CreatedAt = &t
	}
	return row, nil
}

// ToDomainClientRecord converts a v2 row back to canonical wire text.
func ToDomainClientRecord(row models.ClientRecordRow) domain.ClientRecord {
	r := domain.ClientRecord{
		ID:                 row.ID,
		ClientName:         row.ClientName,
		ClosedBy:           row.ClosedBy,
		CompanyName:        row.CompanyName,
		ServiceType:        row.ServiceType,
		ContractTotals:     fromNullDecimal(row.ContractTotals),
		Payment1:           fromNullDecimal(row.Payment1),
		Payment1Date:       fromDatePtr(row.Payment1Date),
		Payment2:           fromNullDecimal(row.Payment2),
		Payment2Date:       fromDatePtr(row.Payment2Date),
		Payment3:           fromNullDecimal(row.Payment3),
		Payment3Date:       fromDatePtr(row.Payment3Date),
		Payment4:           fromNullDecimal(row.Payment4),
		Payment4Date:       fromDatePtr(row.Payment4Date),
		Payment5:           fromNullDecimal(row.Payment5),
		Payment5Date:       fromDatePtr(row.Payment5Date),
		Payment6:           fromNullDecimal(row.Payment6),
		Payment6Date:       fromDatePtr(row.Payment6Date),
		Payment7:           fromNullDecimal(row.Payment7),
		Payment7Date:       fromDatePtr(row.Payment7Date),
		TotalPayments:      fromNullDecimal(row.TotalPayments),
		FuturePayments:     fromNullDecimal(row.FuturePayments),
		DateWhenFullyPaid:  fromDatePtr(row.DateWhenFullyPaid),
		DateWhenWrittenOff: fromDatePtr(row.DateWhenWrittenOff),
		Notes:              row.Notes,
	}
	if row.WrittenOff {
		r.WrittenOff = domain.CheckboxYes
	}
	if row.AfterResult {
		r.AfterResult = domain.CheckboxYes
	}
	if row.CreatedAt != nil {
		r.CreatedAt = dates.FormatTimestamp(*row.CreatedAt)
	}
	return r
}

// ToDomainClientRecords converts rows, preserving their order.
func ToDomainClientRecords(rows []models.ClientRecordRow) []domain.ClientRecord {
	out := make([]domain.ClientRecord, len(rows))
	for i, row := range rows {
		out[i] = ToDomainClientRecord(row)
	}
	return out
}

func toNullDecimal(text string) (decimal.NullDecimal, error) {
	if text == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func fromNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func toDatePtr(text string) (*time.Time, error) {
	if text == "" {
		return nil, nil
	}
	d, err := dates.ParseDate(text)
	if err != nil {
		return nil, err
	}
	t := d.Time()
	return &t, nil
}

func fromDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return dates.FromTime(*t).String()
}
