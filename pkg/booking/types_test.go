package booking

import (
	"errors"
	"testing"
)

func TestNewPhoneNumberNormalizes(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "digits only", raw: "5551234567", expected: "5551234567"},
		{name: "leading plus", raw: "+15551234567", expected: "+15551234567"},
		{name: "separators stripped", raw: "(555) 123-4567", expected: "5551234567"},
		{name: "dots stripped", raw: "555.123.4567", expected: "5551234567"},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			phone, err := NewPhoneNumber(testCase.raw)
			if err != nil {
				test.Fatalf("NewPhoneNumber(%q): %v", testCase.raw, err)
			}
			if phone.String() != testCase.expected {
				test.Fatalf("expected %q, got %q", testCase.expected, phone.String())
			}
		})
	}
}

func TestNewPhoneNumberRejectsInvalid(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name string
		raw  string
	}{
		{name: "too short", raw: "123456"},
		{name: "too long", raw: "1234567890123456"},
		{name: "letters", raw: "555CALLNOW"},
		{name: "plus in middle", raw: "555+1234567"},
		{name: "empty", raw: ""},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if _, err := NewPhoneNumber(testCase.raw); !errors.Is(err, ErrInvalidPhoneNumber) {
				test.Fatalf("expected ErrInvalidPhoneNumber, got %v", err)
			}
		})
	}
}

func TestParseClock(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name     string
		raw      string
		expected MinuteOfDay
		wantErr  bool
	}{
		{name: "evening", raw: "17:30", expected: 17*60 + 30},
		{name: "midnight", raw: "00:00", expected: 0},
		{name: "last minute", raw: "23:59", expected: 23*60 + 59},
		{name: "hour overflow", raw: "24:00", wantErr: true},
		{name: "minute overflow", raw: "12:60", wantErr: true},
		{name: "not a clock", raw: "noon", wantErr: true},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			minute, err := ParseClock(testCase.raw)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidClock) {
					test.Fatalf("expected ErrInvalidClock, got %v", err)
				}
				return
			}
			if err != nil {
				test.Fatalf("ParseClock(%q): %v", testCase.raw, err)
			}
			if minute != testCase.expected {
				test.Fatalf("expected %d, got %d", testCase.expected, minute)
			}
		})
	}
}

func TestMinuteOfDayString(test *testing.T) {
	test.Parallel()
	if got := MinuteOfDay(17*60 + 5).String(); got != "17:05" {
		test.Fatalf("expected 17:05, got %s", got)
	}
}

func TestParseSeatingPreference(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name     string
		raw      string
		expected SeatingPreference
		wantErr  bool
	}{
		{name: "empty means any", raw: "", expected: SeatingAny},
		{name: "any", raw: "any", expected: SeatingAny},
		{name: "indoor", raw: "Indoor", expected: SeatingPreference(SeatingIndoor)},
		{name: "bar", raw: "bar", expected: SeatingPreference(SeatingBar)},
		{name: "unknown", raw: "rooftop", wantErr: true},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			preference, err := ParseSeatingPreference(testCase.raw)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidSeatingType) {
					test.Fatalf("expected ErrInvalidSeatingType, got %v", err)
				}
				return
			}
			if err != nil {
				test.Fatalf("ParseSeatingPreference(%q): %v", testCase.raw, err)
			}
			if preference != testCase.expected {
				test.Fatalf("expected %s, got %s", testCase.expected, preference)
			}
		})
	}
}

func TestSeatingPreferenceMatches(test *testing.T) {
	test.Parallel()
	if !SeatingAny.Matches(SeatingBar) {
		test.Fatal("any should match bar")
	}
	if !SeatingPreference(SeatingIndoor).Matches(SeatingIndoor) {
		test.Fatal("indoor should match indoor")
	}
	if SeatingPreference(SeatingIndoor).Matches(SeatingOutdoor) {
		test.Fatal("indoor should not match outdoor")
	}
}

func TestReservationStatusLifecycle(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name    string
		from    ReservationStatus
		to      ReservationStatus
		allowed bool
	}{
		{name: "confirmed to seated", from: ReservationStatusConfirmed, to: ReservationStatusSeated, allowed: true},
		{name: "seated to completed", from: ReservationStatusSeated, to: ReservationStatusCompleted, allowed: true},
		{name: "confirmed to cancelled", from: ReservationStatusConfirmed, to: ReservationStatusCancelled, allowed: true},
		{name: "confirmed to no show", from: ReservationStatusConfirmed, to: ReservationStatusNoShow, allowed: true},
		{name: "seated to cancelled", from: ReservationStatusSeated, to: ReservationStatusCancelled, allowed: false},
		{name: "completed to seated", from: ReservationStatusCompleted, to: ReservationStatusSeated, allowed: false},
		{name: "cancelled to confirmed", from: ReservationStatusCancelled, to: ReservationStatusConfirmed, allowed: false},
		{name: "confirmed to completed skips seated", from: ReservationStatusConfirmed, to: ReservationStatusCompleted, allowed: false},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := testCase.from.CanAdvanceTo(testCase.to); got != testCase.allowed {
				test.Fatalf("%s -> %s: expected %v, got %v", testCase.from, testCase.to, testCase.allowed, got)
			}
		})
	}
}

func TestReservationStatusTerminal(test *testing.T) {
	test.Parallel()
	terminal := []ReservationStatus{ReservationStatusCompleted, ReservationStatusCancelled, ReservationStatusNoShow}
	for _, status := range terminal {
		if !status.IsTerminal() {
			test.Fatalf("expected %s to be terminal", status)
		}
	}
	if ReservationStatusConfirmed.IsTerminal() {
		test.Fatal("confirmed should not be terminal")
	}
}

func TestSettingsValidateDefaults(test *testing.T) {
	test.Parallel()
	settings := Settings{}
	if err := settings.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if settings.MaxPartySize != 12 {
		test.Fatalf("expected default max party size 12, got %d", settings.MaxPartySize)
	}
	if settings.LargePartyThreshold != 8 {
		test.Fatalf("expected default large party threshold 8, got %d", settings.LargePartyThreshold)
	}
	if settings.LastSeatingOffsetMinutes != 60 {
		test.Fatalf("expected default last seating offset 60, got %d", settings.LastSeatingOffsetMinutes)
	}
	if settings.MaxFutureBookingDays != 30 {
		test.Fatalf("expected default booking window 30 days, got %d", settings.MaxFutureBookingDays)
	}
	if settings.CancellationNoticeHours != 24 {
		test.Fatalf("expected default notice hours 24, got %d", settings.CancellationNoticeHours)
	}
	if settings.AllowSameDay {
		test.Fatal("same-day bookings should default to disabled")
	}
}

func TestSettingsValidateRejectsNegatives(test *testing.T) {
	test.Parallel()
	settings := Settings{MaxPartySize: -1}
	if err := settings.Validate(); !errors.Is(err, ErrInvalidSettings) {
		test.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestSlotRemaining(test *testing.T) {
	test.Parallel()
	slot := Slot{TotalCapacity: 4, BookedCount: 3}
	if slot.Remaining() != 1 {
		test.Fatalf("expected 1 remaining, got %d", slot.Remaining())
	}
	oversold := Slot{TotalCapacity: 2, BookedCount: 3}
	if oversold.Remaining() != 0 {
		test.Fatalf("expected clamped 0 remaining, got %d", oversold.Remaining())
	}
}

func TestParseConfirmationCode(test *testing.T) {
	test.Parallel()
	code, err := ParseConfirmationCode(" abc234 ")
	if err != nil {
		test.Fatalf("parse: %v", err)
	}
	if code.String() != "ABC234" {
		test.Fatalf("expected ABC234, got %s", code.String())
	}
	if _, err := ParseConfirmationCode("ABC12"); !errors.Is(err, ErrInvalidConfirmationCode) {
		test.Fatalf("expected length error, got %v", err)
	}
	// 0, 1, I, L, O are excluded from the alphabet.
	if _, err := ParseConfirmationCode("ABC10O"); !errors.Is(err, ErrInvalidConfirmationCode) {
		test.Fatalf("expected alphabet error, got %v", err)
	}
}
