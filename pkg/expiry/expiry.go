// Package expiry implements the CME crypto futures expiry calendar: contracts
// expire on the last Friday of the contract month.
package expiry

import (
	"fmt"
	"sort"
	"time"
)

// scheduleBufferDays extends a schedule past its requested end so that a
// valid next expiry always exists for dates near the range edge.
const scheduleBufferDays = 60

// LastTradingFriday returns the last Friday of the given month.
func LastTradingFriday(year int, month time.Month) time.Time {
	firstOfNext := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	lastDay := firstOfNext.AddDate(0, 0, -1)
	daysBack := (int(lastDay.Weekday()) - int(time.Friday) + 7) % 7
	return lastDay.AddDate(0, 0, -daysBack)
}

// Schedule is a sorted, deduplicated set of contract expiry dates.
type Schedule []time.Time

// BuildSchedule returns the expiry for every calendar month from start's
// month through end plus the forward buffer.
func BuildSchedule(start, end time.Time) Schedule {
	seen := make(map[time.Time]bool)
	var schedule Schedule

	current := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	stop := end.AddDate(0, 0, scheduleBufferDays)

	for !current.After(stop) {
		e := LastTradingFriday(current.Year(), current.Month())
		if !seen[e] {
			seen[e] = true
			schedule = append(schedule, e)
		}
		current = current.AddDate(0, 1, 0)
	}

	sort.Slice(schedule, func(i, j int) bool { return schedule[i].Before(schedule[j]) })
	return schedule
}

// FrontMonth returns the nearest schedule entry on or after date. A date
// beyond the last buffered expiry falls back to the schedule's final entry
// rather than erroring; callers sizing schedules with BuildSchedule stay
// inside the buffer.
func FrontMonth(date time.Time, schedule Schedule) time.Time {
	if len(schedule) == 0 {
		return time.Time{}
	}
	day := midnight(date)
	for _, e := range schedule {
		if !midnight(e).Before(day) {
			return e
		}
	}
	return schedule[len(schedule)-1]
}

// FromCode maps a YYYYMM contract code to its expiry date.
func FromCode(code string) (time.Time, error) {
	if len(code) != 6 {
		return time.Time{}, fmt.Errorf("invalid expiry code %q: want YYYYMM", code)
	}
	var year, month int
	if _, err := fmt.Sscanf(code, "%4d%2d", &year, &month); err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry code %q: %w", code, err)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid expiry code %q: month out of range", code)
	}
	return LastTradingFriday(year, time.Month(month)), nil
}

// Code formats an expiry date as a YYYYMM contract code.
func Code(expiry time.Time) string {
	return fmt.Sprintf("%04d%02d", expiry.Year(), int(expiry.Month()))
}

// FrontMonthCode returns the YYYYMM code of the front-month contract for the
// reference date. Before the current month's last trading Friday the current
// month is front; on or after it the contract rolls to the next month.
func FrontMonthCode(reference time.Time) string {
	currentExpiry := LastTradingFriday(reference.Year(), reference.Month())
	if midnight(reference).Before(midnight(currentExpiry)) {
		return fmt.Sprintf("%04d%02d", reference.Year(), int(reference.Month()))
	}
	if reference.Month() == time.December {
		return fmt.Sprintf("%04d01", reference.Year()+1)
	}
	return fmt.Sprintf("%04d%02d", reference.Year(), int(reference.Month())+1)
}

// DaysToExpiry is the whole days from reference to the expiry date.
func DaysToExpiry(expiry, reference time.Time) int {
	return int(expiry.Sub(reference).Hours() / 24)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
