package booking

import (
	"fmt"
	"time"
)

// effectiveDayHours resolves the hours in force on a given day. A closed
// block removes the day entirely; a special-hours block replaces the weekday
// default for the covered range only.
func effectiveDayHours(restaurant Restaurant, blocked *BlockedDate, day time.Time) (DayHours, *BlockedDate) {
	if blocked != nil && blocked.Covers(day) {
		switch blocked.Type {
		case BlockTypeClosed:
			return DayHours{Closed: true}, blocked
		case BlockTypeSpecialHours:
			if blocked.Override != nil {
				return *blocked.Override, nil
			}
		}
	}
	return restaurant.Hours[day.Weekday()], nil
}

// lastBookableMinute is the latest minute a seating may start.
func lastBookableMinute(hours DayHours, settings Settings) MinuteOfDay {
	return hours.Close - MinuteOfDay(settings.LastSeatingOffsetMinutes)
}

// checkBookingWindow validates the requested time against the restaurant's
// booking window. Past times fail validation; a date too far out is an
// answerable "no" rather than an error.
func checkBookingWindow(now time.Time, at time.Time, settings Settings) (AvailabilityReason, error) {
	if !at.After(now) {
		return "", fmt.Errorf("%w: requested time is in the past", ErrInvalidBookingTime)
	}
	requestedDate := dateOnly(at)
	today := dateOnly(now)
	if !settings.AllowSameDay && requestedDate.Equal(today) {
		return ReasonSameDayDisabled, nil
	}
	daysAhead := int(requestedDate.Sub(today).Hours() / 24)
	if daysAhead > settings.MaxFutureBookingDays {
		return ReasonWindowExceeded, nil
	}
	return "", nil
}

// checkDayHours validates the requested minute against the effective hours.
func checkDayHours(at time.Time, hours DayHours, settings Settings) AvailabilityReason {
	if hours.Closed {
		return ReasonClosedDay
	}
	requestedMinute := minuteOf(at)
	if requestedMinute < hours.Open {
		return ReasonOutsideHours
	}
	if requestedMinute > lastBookableMinute(hours, settings) {
		return ReasonPastLastSeating
	}
	return ""
}
