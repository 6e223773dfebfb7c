package booking

import (
	"errors"
	"testing"
	"time"
)

func standardWeek(open, close MinuteOfDay) WeeklyHours {
	var hours WeeklyHours
	for day := range hours {
		hours[day] = DayHours{Open: open, Close: close}
	}
	return hours
}

func TestEffectiveDayHoursClosedBlock(test *testing.T) {
	test.Parallel()
	restaurant := Restaurant{Hours: standardWeek(17*60, 22*60)}
	day := time.Date(2026, time.December, 25, 18, 0, 0, 0, time.UTC)
	blocked := &BlockedDate{
		Start: time.Date(2026, time.December, 24, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.December, 26, 0, 0, 0, 0, time.UTC),
		Type:  BlockTypeClosed,
	}
	hours, closure := effectiveDayHours(restaurant, blocked, day)
	if closure == nil {
		test.Fatal("expected a closure")
	}
	if !hours.Closed {
		test.Fatal("expected closed hours")
	}
}

func TestEffectiveDayHoursSpecialHoursOverride(test *testing.T) {
	test.Parallel()
	restaurant := Restaurant{Hours: standardWeek(17*60, 22*60)}
	day := time.Date(2026, time.December, 31, 18, 0, 0, 0, time.UTC)
	override := DayHours{Open: 16 * 60, Close: 20 * 60}
	blocked := &BlockedDate{
		Start:    day,
		End:      day,
		Type:     BlockTypeSpecialHours,
		Override: &override,
	}
	hours, closure := effectiveDayHours(restaurant, blocked, day)
	if closure != nil {
		test.Fatal("special hours should not be a closure")
	}
	if hours.Open != 16*60 || hours.Close != 20*60 {
		test.Fatalf("expected override hours, got %s-%s", hours.Open, hours.Close)
	}
}

func TestEffectiveDayHoursOutsideBlockRange(test *testing.T) {
	test.Parallel()
	restaurant := Restaurant{Hours: standardWeek(17*60, 22*60)}
	day := time.Date(2026, time.December, 23, 18, 0, 0, 0, time.UTC)
	blocked := &BlockedDate{
		Start: time.Date(2026, time.December, 24, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.December, 26, 0, 0, 0, 0, time.UTC),
		Type:  BlockTypeClosed,
	}
	hours, closure := effectiveDayHours(restaurant, blocked, day)
	if closure != nil {
		test.Fatal("day before the block should not be closed")
	}
	if hours.Open != 17*60 {
		test.Fatalf("expected weekday hours, got open %s", hours.Open)
	}
}

func TestCheckBookingWindow(test *testing.T) {
	test.Parallel()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	settings := Settings{MaxFutureBookingDays: 30, AllowSameDay: true}

	cases := []struct {
		name     string
		at       time.Time
		sameDay  bool
		expected AvailabilityReason
		wantErr  bool
	}{
		{name: "tomorrow ok", at: now.AddDate(0, 0, 1), sameDay: true},
		{name: "window edge ok", at: now.AddDate(0, 0, 30), sameDay: true},
		{name: "past is an error", at: now.Add(-time.Hour), sameDay: true, wantErr: true},
		{name: "beyond window", at: now.AddDate(0, 0, 31), sameDay: true, expected: ReasonWindowExceeded},
		{name: "same day allowed", at: now.Add(6 * time.Hour), sameDay: true},
		{name: "same day disabled", at: now.Add(6 * time.Hour), sameDay: false, expected: ReasonSameDayDisabled},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			caseSettings := settings
			caseSettings.AllowSameDay = testCase.sameDay
			reason, err := checkBookingWindow(now, testCase.at, caseSettings)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidBookingTime) {
					test.Fatalf("expected ErrInvalidBookingTime, got %v", err)
				}
				return
			}
			if err != nil {
				test.Fatalf("window check: %v", err)
			}
			if reason != testCase.expected {
				test.Fatalf("expected reason %q, got %q", testCase.expected, reason)
			}
		})
	}
}

func TestCheckDayHours(test *testing.T) {
	test.Parallel()
	hours := DayHours{Open: 17 * 60, Close: 22 * 60}
	settings := Settings{LastSeatingOffsetMinutes: 60}
	day := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		minute   int
		expected AvailabilityReason
	}{
		{name: "in hours", minute: 18 * 60},
		{name: "opening minute", minute: 17 * 60},
		{name: "last seating", minute: 21 * 60},
		{name: "before open", minute: 16 * 60, expected: ReasonOutsideHours},
		{name: "after last seating", minute: 21*60 + 30, expected: ReasonPastLastSeating},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			at := day.Add(time.Duration(testCase.minute) * time.Minute)
			if got := checkDayHours(at, hours, settings); got != testCase.expected {
				test.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}

	if got := checkDayHours(day.Add(18*time.Hour), DayHours{Closed: true}, settings); got != ReasonClosedDay {
		test.Fatalf("expected closed day, got %q", got)
	}
}
