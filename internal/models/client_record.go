package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClientRecordRow is one row of the relational (v2) client_records table.
// Absent money and date fields are NULL; soft-deleted rows carry DeletedAt.
type ClientRecordRow struct {
	ID                 string              `db:"id"`
	Position           int                 `db:"position"`
	ClientName         string              `db:"client_name"`
	ClosedBy           string              `db:"closed_by"`
	CompanyName        string              `db:"company_name"`
	ServiceType        string              `db:"service_type"`
	ContractTotals     decimal.NullDecimal `db:"contract_totals"`
	Payment1           decimal.NullDecimal `db:"payment1"`
	Payment1Date       *time.Time          `db:"payment1_date"`
	Payment2           decimal.NullDecimal `db:"payment2"`
	Payment2Date       *time.Time          `db:"payment2_date"`
	Payment3           decimal.NullDecimal `db:"payment3"`
	Payment3Date       *time.Time          `db:"payment3_date"`
	Payment4           decimal.NullDecimal `db:"payment4"`
	Payment4Date       *time.Time          `db:"payment4_date"`
	Payment5           decimal.NullDecimal `db:"payment5"`
	Payment5Date       *time.Time          `db:"payment5_date"`
	Payment6           decimal.NullDecimal `db:"payment6"`
	Payment6Date       *time.Time          `db:"payment6_date"`
	Payment7           decimal.NullDecimal `db:"payment7"`
	Payment7Date       *time.Time          `db:"payment7_date"`
	TotalPayments      decimal.NullDecimal `db:"total_payments"`
	FuturePayments     decimal.NullDecimal `db:"future_payments"`
	DateWhenFullyPaid  *time.Time          `db:"date_when_fully_paid"`
	DateWhenWrittenOff *time.Time          `db:"date_when_written_off"`
	WrittenOff         bool                `db:"written_off"`
	AfterResult        bool                `db:"after_result"`
	CreatedAt          *time.Time          `db:"created_at"`
	Notes              string              `db:"notes"`
	DeletedAt          *time.Time          `db:"deleted_at"`
}

// ClientRecordColumns lists the table columns in the order ClientRecordRow.Values returns them.
var ClientRecordColumns = []string{
	"id", "position", "client_name", "closed_by", "company_name", "service_type", "contract_totals",
	"payment1", "payment1_date", "payment2", "payment2_date", "payment3", "payment3_date",
	"payment4", "payment4_date", "payment5", "payment5_date", "payment6", "payment6_date",
	"payment7", "payment7_date", "total_payments", "future_payments",
	"date_when_fully_paid", "date_when_written_off", "written_off", "after_result",
	"created_at", "notes", "deleted_at",
}

// Values returns the row as query arguments in ClientRecordColumns order.
func (r ClientRecordRow) Values() []any {
	return []any{
		r.ID, r.Position, r.ClientName, r.ClosedBy, r.CompanyName, r.ServiceType, r.ContractTotals,
		r.Payment1, r.Payment1Date, r.Payment2, r.Payment2Date, r.Payment3, r.Payment3Date,
		r.Payment4, r.Payment4Date, r.Payment5, r.Payment5Date, r.Payment6, r.Payment6Date,
		r.Payment7, r.Payment7Date, r.TotalPayments, r.FuturePayments,
		r.DateWhenFullyPaid, r.DateWhenWrittenOff, r.WrittenOff, r.AfterResult,
		r.CreatedAt, r.Notes, r.DeletedAt,
	}
}

// RecordsMeta is the single row holding the v2 collection stamp.
type RecordsMeta struct {
	UpdatedAt string `db:"updated_at"`
}
