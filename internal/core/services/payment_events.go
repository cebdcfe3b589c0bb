package services

import (
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	"github.com/SscSPs/client_records_app/internal/utils/dates"
)

// paymentEpsilon ignores float noise when comparing amounts in dollars.
const paymentEpsilon = 1e-6

// LinkBuilder renders the display link attached to an event.
type LinkBuilder func(recordID string) string

// DetectPaymentEvents diffs two collections and reports, per record in next, the first payment
// slot that is newly observed. Records without a counterpart in previous are compared against
// empty slots. The function does no I/O.
func DetectPaymentEvents(previous, next []domain.ClientRecord, link LinkBuilder, now time.Time) []domain.PaymentEvent {
	before := domain.IndexRecordsByID(previous)
	detectedAt := dates.FormatTimestamp(now)

	var events []domain.PaymentEvent
	for _, record := range next {
		var baseline domain.ClientRecord
		if record.ID != "" {
			baseline = before[record.ID]
		}

		for slot := 1; slot <= domain.PaymentSlots; slot++ {
			amount, date := record.Payment(slot)
			oldAmount, oldDate := baseline.Payment(slot)
			if !newlyObserved(amount, date, oldAmount, oldDate) {
				continue
			}
			event := domain.PaymentEvent{
				Type:        domain.PaymentReceived,
				RecordID:    record.ID,
				ClientName:  record.ClientName,
				Slot:        slot,
				Amount:      amount,
				PaymentDate: date,
				DetectedAt:  detectedAt,
			}
			if link != nil {
				event.Link = link(record.ID)
			}
			events = append(events, event)
			break
		}
	}
	return events
}

func newlyObserved(amount, date, oldAmount, oldDate string) bool {
	cur, curOK := parseDollars(amount)
	old, oldOK := parseDollars(oldAmount)

	if curOK && (!oldOK || cur-old > paymentEpsilon) {
		return true
	}
	// a date landing on a slot that had none, with or without an amount already present
	return date != "" && oldDate == ""
}

func parseDollars(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// QueryLinkBuilder links to baseURL with the record id in the "record" query parameter.
// An empty baseURL yields a builder that returns "".
func QueryLinkBuilder(baseURL string) LinkBuilder {
	if baseURL == "" {
		return func(string) string { return "" }
	}
	return func(recordID string) string {
		u, err := url.Parse(baseURL)
		if err != nil {
			return ""
		}
		q := u.Query()
		q.Set("record", recordID)
		u.RawQuery = q.Encode()
		return u.String()
	}
}
