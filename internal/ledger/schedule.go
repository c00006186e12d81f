package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const startTimeLayout = "15:04"

// ParseStartTime validates a lesson start time in HH:MM form.
func ParseStartTime(raw string) (time.Duration, error) {
	t, err := time.Parse(startTimeLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid start time %q: %w", raw, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Slot is the time a lesson occupies within its day.
type Slot struct {
	Date  time.Time
	Start time.Duration
	End   time.Duration
}

// LessonSlot builds the slot of a lesson. ok is false when the lesson has no
// start time and therefore cannot be placed.
func LessonSlot(date time.Time, startTime *string, duration decimal.Decimal) (Slot, bool, error) {
	if startTime == nil || *startTime == "" {
		return Slot{}, false, nil
	}
	start, err := ParseStartTime(*startTime)
	if err != nil {
		return Slot{}, false, err
	}
	minutes := duration.Mul(decimal.NewFromInt(60)).Round(0).IntPart()
	return Slot{
		Date:  DateOnly(date),
		Start: start,
		End:   start + time.Duration(minutes)*time.Minute,
	}, true, nil
}

// Overlaps reports whether two slots on the same day intersect. Touching
// slots (one ends when the other starts) do not overlap.
func (s Slot) Overlaps(o Slot) bool {
	if !s.Date.Equal(o.Date) {
		return false
	}
	return s.Start < o.End && o.Start < s.End
}

// StartAfter returns the start time that follows a lesson starting at start
// and lasting hours, or nil when there is no start time or the result would
// fall on the next day.
func StartAfter(start *string, hours decimal.Decimal) (*string, error) {
	if start == nil || *start == "" {
		return nil, nil
	}
	begin, err := ParseStartTime(*start)
	if err != nil {
		return nil, err
	}
	minutes := hours.Mul(decimal.NewFromInt(60)).Round(0).IntPart()
	next := begin + time.Duration(minutes)*time.Minute
	if next >= 24*time.Hour {
		return nil, nil
	}
	formatted := fmt.Sprintf("%02d:%02d", int(next.Hours()), int(next.Minutes())%60)
	return &formatted, nil
}
