package ledger

import (
	"fmt"
	"time"
)

// Clock supplies the current calendar day. Status derivation depends on it,
// so it is injected rather than read from the wall clock.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock builds a clock for the named IANA zone; an empty name uses UTC.
func NewSystemClock(tz string) (*SystemClock, error) {
	if tz == "" {
		return &SystemClock{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &SystemClock{loc: loc}, nil
}

// Today returns the current day in the clock's zone as a UTC date.
func (c *SystemClock) Today() time.Time {
	return DateOnly(time.Now().In(c.loc))
}

// FixedClock always reports the same day.
type FixedClock time.Time

// Today implements Clock.
func (c FixedClock) Today() time.Time {
	return DateOnly(time.Time(c))
}
