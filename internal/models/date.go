package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time-of-day component. It is always held
// at midnight UTC so that two dates compare equal with ==.
type Date struct {
	t time.Time
}

// NewDate builds a date from its calendar parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return NewDate(year, month, day)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return DateOf(parsed), nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return d.t
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// DaysBetween counts whole days from start to end; negative when end precedes start.
func DaysBetween(start, end Date) int {
	return int((end.t.Unix() - start.t.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}

	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for both native date columns and text storage.
func (d *Date) Scan(src interface{}) error {
	switch value := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(value)
		return nil
	case string:
		return d.scanString(value)
	case []byte:
		return d.scanString(string(value))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(value string) error {
	if len(value) > len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GormDataType maps the type onto a SQL date column.
func (Date) GormDataType() string {
	return "date"
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date
	End   Date
}

// Valid reports whether both ends are set and End is not before Start.
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// Days returns the number of calendar days covered, both ends included.
func (r DateRange) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}
