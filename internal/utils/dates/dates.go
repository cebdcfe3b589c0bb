// Package dates parses the calendar dates and timestamps carried on client records.
package dates

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CanonicalLayout is the form every record date is stored in.
const CanonicalLayout = "01/02/2006"

// TimestampLayout matches JavaScript's Date.prototype.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	minYear = 1900
	maxYear = 2200
)

var (
	ErrInvalidDate      = errors.New("invalid calendar date")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

var (
	monthFirst = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})$`)
	yearFirst  = regexp.MustCompile(`^(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})(?:[T ].*)?$`)
)

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String renders the canonical MM/DD/YYYY form.
func (d Date) String() string {
	return d.Time().Format(CanonicalLayout)
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// FromTime takes the calendar day of t in its own location.
func FromTime(t time.Time) Date {
	y, m, day := t.Date()
	return Date{Year: y, Month: m, Day: day}
}

// ParseDate accepts MM/DD/YYYY (and '-', '.' separators, single-digit parts),
// YYYY-MM-DD, YYYY/MM/DD and the date part of an ISO timestamp.
func ParseDate(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	var y, m, d string
	if parts := monthFirst.FindStringSubmatch(s); parts != nil {
		m, d, y = parts[1], parts[2], parts[3]
	} else if parts := yearFirst.FindStringSubmatch(s); parts != nil {
		y, m, d = parts[1], parts[2], parts[3]
	} else {
		return Date{}, ErrInvalidDate
	}

	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	if year < minYear || year > maxYear || month < 1 || month > 12 || day < 1 {
		return Date{}, ErrInvalidDate
	}
	// time.Date normalizes Feb 30 into March; a mismatch means the day does not exist.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return Date{}, ErrInvalidDate
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, nil
}

// NormalizeDate parses raw and returns its canonical form.
func NormalizeDate(raw string) (string, error) {
	d, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339 variants and bare dates. Zone-less values are read as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() < minYear || t.Year() > maxYear {
				return time.Time{}, ErrInvalidTimestamp
			}
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// FormatTimestamp renders t as a UTC millisecond ISO-8601 string.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NormalizeTimestamp parses raw and re-serializes it as full ISO-8601.
func NormalizeTimestamp(raw string) (string, error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t), nil
}
