// Package clock holds the date conventions shared by the stores.
package clock

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in every persisted record.
const DateLayout = "2006-01-02"

// Clock returns the current time. Stores take one so tests can pin dates.
type Clock func() time.Time

// System is the wall clock.
func System() time.Time { return time.Now() }

// Date formats t as a calendar date.
func Date(t time.Time) string { return t.Format(DateLayout) }

// ValidateDate checks that s is a YYYY-MM-DD date.
func ValidateDate(field, s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%s must be a YYYY-MM-DD date, got %q", field, s)
	}
	return nil
}
