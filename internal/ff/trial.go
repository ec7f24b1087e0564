package ff

import (
	"fmt"
	"time"
)

// TrialLength is the number of days a fresh installation may be used
// without a license.
const TrialLength = 14

// TrialDateLayout is how trial start dates are stored.
const TrialDateLayout = time.DateOnly

// TrialClock tracks the first-run date and the days left in the trial.
// It keeps no state of its own; the start date lives in the store.
type TrialClock struct {
	store TrialStore
	clock Clock
}

func NewTrialClock(store TrialStore, clock Clock) *TrialClock {
	return &TrialClock{store: store, clock: clock}
}

// StartDate returns the recorded start date as stored, and whether one has
// been recorded.
func (t *TrialClock) StartDate() (string, bool, error) {
	return t.store.TrialStartDate()
}

// RecordStartDate stores date as the start of the trial. date must be a
// YYYY-MM-DD calendar date. A second call fails with ErrConflict.
func (t *TrialClock) RecordStartDate(date string) error {
	if _, err := parseTrialDate(date); err != nil {
		return err
	}
	return t.store.InsertTrialStartDate(date)
}

// EnsureStarted records today's local date as the start date unless one is
// already stored, and returns the date in effect.
func (t *TrialClock) EnsureStarted() (string, error) {
	date, ok, err := t.store.TrialStartDate()
	if err != nil {
		return "", err
	}
	if ok {
		return date, nil
	}
	today := t.clock.Now().Format(TrialDateLayout)
	if err := t.store.InsertTrialStartDate(today); err != nil {
		return "", err
	}
	return today, nil
}

// DaysRemaining returns TrialLength minus the whole local calendar days
// since the start date. It is TrialLength when no date is recorded and
// zero or negative once the trial has expired.
func (t *TrialClock) DaysRemaining() (int, error) {
	date, ok, err := t.store.TrialStartDate()
	if err != nil {
		return 0, err
	}
	if !ok {
		return TrialLength, nil
	}
	start, err := parseTrialDate(date)
	if err != nil {
		return 0, err
	}
	return TrialLength - daysBetween(start, t.clock.Now()), nil
}

func parseTrialDate(s string) (time.Time, error) {
	d, err := time.Parse(TrialDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: trial start date %q: %w", ErrDateParse, s, err)
	}
	return d, nil
}

// daysBetween counts calendar days from start to the local date of now.
func daysBetween(start, now time.Time) int {
	return int(unixDay(now) - unixDay(start))
}

// unixDay numbers the calendar date of t in its own location, pinned to UTC
// midnight so DST cannot skew the difference.
func unixDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

const secondsPerDay = 24 * 60 * 60
