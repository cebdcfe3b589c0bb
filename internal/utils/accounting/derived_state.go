package accounting

import (
	"time"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	"github.com/SscSPs/client_records_app/internal/utils/dates"
	"github.com/SscSPs/client_records_app/internal/utils/money"
)

// fullyPaidEpsilonCents is the futurePayments value at or below which a contract counts as fully paid.
const fullyPaidEpsilonCents int64 = 0

// DeriveState recomputes totalPayments, futurePayments, dateWhenFullyPaid and the written-off
// fields from the payment slots. previous is the stored version of the same record, if any.
// today supplies the default dateWhenWrittenOff. The function is pure and idempotent.
func DeriveState(record domain.ClientRecord, previous *domain.ClientRecord, today time.Time) domain.ClientRecord {
	out := record

	total, hasPayment := SumPayments(record)
	if hasPayment {
		out.TotalPayments = money.FormatCents(total)
	} else {
		out.TotalPayments = ""
	}

	balance, balanceKnown := RemainingBalance(record)
	var future int64
	futureKnown := true
	switch {
	case out.IsWrittenOff():
		future = 0
	case balanceKnown:
		future = max(balance, 0)
	default:
		futureKnown = false
	}
	if futureKnown {
		out.FuturePayments = money.FormatCents(future)
	} else {
		out.FuturePayments = ""
	}

	if out.IsWrittenOff() {
		out.AfterResult = ""
		if out.DateWhenWrittenOff == "" {
			out.DateWhenWrittenOff = dates.FromTime(today).String()
		}
	}

	// A known futurePayments decides dateWhenFullyPaid. Otherwise keep the stored value.
	latest, hasDate := LatestPaymentDate(record)
	switch {
	case !hasDate:
		out.DateWhenFullyPaid = ""
	case futureKnown && future <= fullyPaidEpsilonCents:
		out.DateWhenFullyPaid = latest.String()
	case futureKnown:
		out.DateWhenFullyPaid = ""
	case previous != nil && previous.DateWhenFullyPaid != "":
		out.DateWhenFullyPaid = previous.DateWhenFullyPaid
	case record.DateWhenFullyPaid != "":
		out.DateWhenFullyPaid = record.DateWhenFullyPaid
	default:
		out.DateWhenFullyPaid = ""
	}

	return out
}

// SumPayments adds up every present payment slot. ok is false when no slot holds an amount.
func SumPayments(record domain.ClientRecord) (cents int64, ok bool) {
	for slot := 1; slot <= domain.PaymentSlots; slot++ {
		amount, _ := record.Payment(slot)
		if c, present := AmountCents(amount); present {
			cents += c
			ok = true
		}
	}
	return cents, ok
}

// RemainingBalance is contractTotals minus the payments, unclamped. ok is false without a contract total.
func RemainingBalance(record domain.ClientRecord) (cents int64, ok bool) {
	contract, ok := AmountCents(record.ContractTotals)
	if !ok {
		return 0, false
	}
	paid, _ := SumPayments(record)
	return contract - paid, true
}

// LatestPaymentDate returns the most recent paymentNDate present on the record.
func LatestPaymentDate(record domain.ClientRecord) (dates.Date, bool) {
	var latest dates.Date
	found := false
	for slot := 1; slot <= domain.PaymentSlots; slot++ {
		_, raw := record.Payment(slot)
		if raw == "" {
			continue
		}
		d, err := dates.ParseDate(raw)
		if err != nil {
			continue
		}
		if !found || latest.Before(d) {
			latest = d
			found = true
		}
	}
	return latest, found
}

// AmountCents parses stored money text. Absent or unparsable values report ok=false.
func AmountCents(text string) (int64, bool) {
	if text == "" {
		return 0, false
	}
	cents, err := money.ParseCents(text, 0)
	if err != nil {
		return 0, false
	}
	return cents, true
}
