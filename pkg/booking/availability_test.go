package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustNewResolver(test *testing.T, store Store) *Resolver {
	test.Helper()
	resolver, err := NewResolver(store, fixedClock)
	if err != nil {
		test.Fatalf("new resolver: %v", err)
	}
	return resolver
}

func availabilityRequest(test *testing.T, at time.Time, seating SeatingPreference) AvailabilityRequest {
	test.Helper()
	return AvailabilityRequest{
		RestaurantID: mustRestaurantID(test, "bistro-main"),
		At:           at,
		PartySize:    mustPartySize(test, 2),
		Seating:      seating,
	}
}

func TestCheckAvailabilityExactMatch(test *testing.T) {
	test.Parallel()
	resolver := mustNewResolver(test, newMemStore(test))

	availability, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, testSlotTime, SeatingPreference(SeatingIndoor)))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if !availability.Available {
		test.Fatalf("expected available, got %+v", availability)
	}
}

func TestCheckAvailabilityFullyBookedOffersSameTimeFirst(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.setSlot(testSlotTime, SeatingIndoor, 2, 2)
	resolver := mustNewResolver(test, store)

	availability, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, testSlotTime, SeatingPreference(SeatingIndoor)))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if availability.Available {
		test.Fatal("expected fully booked")
	}
	if availability.Reason != ReasonFullyBooked {
		test.Fatalf("expected fully_booked, got %s", availability.Reason)
	}
	if len(availability.Alternatives) != 3 {
		test.Fatalf("expected 3 alternatives, got %d", len(availability.Alternatives))
	}
	// Same-time options in other seating pools rank ahead of later times.
	for _, alternative := range availability.Alternatives[:2] {
		if !alternative.At.Equal(testSlotTime) {
			test.Fatalf("expected a same-time alternative first, got %s", alternative.At)
		}
	}
	last := availability.Alternatives[2]
	if !last.At.Equal(testSlotTime.Add(30*time.Minute)) || last.Seating != SeatingIndoor {
		test.Fatalf("expected 18:30 indoor as the third alternative, got %+v", last)
	}
}

func TestCheckAvailabilityFullyBookedAnyPreference(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.setSlot(testSlotTime, SeatingIndoor, 2, 2)
	store.setSlot(testSlotTime, SeatingOutdoor, 2, 2)
	store.setSlot(testSlotTime, SeatingBar, 1, 1)
	resolver := mustNewResolver(test, store)

	availability, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, testSlotTime, SeatingAny))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if availability.Reason != ReasonFullyBooked {
		test.Fatalf("expected fully_booked, got %s", availability.Reason)
	}
	expected := []SlotOption{
		{At: testSlotTime.Add(30 * time.Minute), Seating: SeatingIndoor},
		{At: testLaterSlot, Seating: SeatingIndoor},
	}
	if len(availability.Alternatives) != len(expected) {
		test.Fatalf("expected %d alternatives, got %d", len(expected), len(availability.Alternatives))
	}
	for index, want := range expected {
		got := availability.Alternatives[index]
		if !got.At.Equal(want.At) || got.Seating != want.Seating {
			test.Fatalf("alternative %d: expected %+v, got %+v", index, want, got)
		}
	}
}

func TestCheckAvailabilityClosedDate(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.blocked = append(store.blocked, BlockedDate{
		RestaurantID: store.restaurant.ID,
		Start:        testSlotTime,
		End:          testSlotTime,
		Type:         BlockTypeClosed,
		Reason:       "private event",
	})
	resolver := mustNewResolver(test, store)

	availability, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, testSlotTime, SeatingAny))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if availability.Reason != ReasonClosedDate {
		test.Fatalf("expected closed_date, got %s", availability.Reason)
	}
}

func TestCheckAvailabilitySpecialHoursOverride(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	override := DayHours{Open: 19 * 60, Close: 22 * 60}
	store.blocked = append(store.blocked, BlockedDate{
		RestaurantID: store.restaurant.ID,
		Start:        testSlotTime,
		End:          testSlotTime,
		Type:         BlockTypeSpecialHours,
		Override:     &override,
	})
	resolver := mustNewResolver(test, store)

	// 18:00 falls before the overridden 19:00 opening.
	availability, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, testSlotTime, SeatingAny))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if availability.Reason != ReasonOutsideHours {
		test.Fatalf("expected outside_hours, got %s", availability.Reason)
	}

	availability, err = resolver.CheckAvailability(context.Background(), availabilityRequest(test, testLaterSlot, SeatingAny))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if !availability.Available {
		test.Fatalf("expected 19:00 available under special hours, got %+v", availability)
	}
}

func TestCheckAvailabilityWindowExceeded(test *testing.T) {
	test.Parallel()
	resolver := mustNewResolver(test, newMemStore(test))

	farOut := testNow.AddDate(0, 0, 31).Truncate(time.Hour)
	availability, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, farOut, SeatingAny))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if availability.Reason != ReasonWindowExceeded {
		test.Fatalf("expected booking_window_exceeded, got %s", availability.Reason)
	}
}

func TestCheckAvailabilitySameDayDisabled(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.restaurant.Settings.AllowSameDay = false
	resolver := mustNewResolver(test, store)

	sameDay := testNow.Add(6 * time.Hour)
	availability, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, sameDay, SeatingAny))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if availability.Reason != ReasonSameDayDisabled {
		test.Fatalf("expected same_day_disabled, got %s", availability.Reason)
	}
}

func TestCheckAvailabilityPastLastSeating(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	resolver := mustNewResolver(test, store)

	// Close is 22:00 with a 60-minute last-seating offset.
	lateEvening := time.Date(2026, time.March, 12, 21, 30, 0, 0, time.UTC)
	availability, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, lateEvening, SeatingAny))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if availability.Reason != ReasonPastLastSeating {
		test.Fatalf("expected past_last_seating, got %s", availability.Reason)
	}
	if len(availability.Alternatives) == 0 {
		test.Fatal("expected earlier alternatives")
	}
}

func TestCheckAvailabilityLargePartyTransfers(test *testing.T) {
	test.Parallel()
	resolver := mustNewResolver(test, newMemStore(test))

	request := availabilityRequest(test, testSlotTime, SeatingAny)
	request.PartySize = mustPartySize(test, 9)
	availability, err := resolver.CheckAvailability(context.Background(), request)
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if !availability.TransferRequired {
		test.Fatal("expected transfer for a large party")
	}
	if availability.Reason != ReasonLargeParty {
		test.Fatalf("expected large_party, got %s", availability.Reason)
	}
}

func TestCheckAvailabilityStoreFault(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.failWith = errors.New("dial tcp: connection refused")
	resolver := mustNewResolver(test, store)

	_, err := resolver.CheckAvailability(context.Background(), availabilityRequest(test, testSlotTime, SeatingAny))
	if !errors.Is(err, ErrStoreUnavailable) {
		test.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestServiceCheckAvailabilityDegradesOnStoreFault(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.failWith = errors.New("dial tcp: connection refused")
	sink := &recordingSink{}
	service := mustNewService(test, store, WithEscalationSink(sink))

	availability, err := service.CheckAvailability(context.Background(), availabilityRequest(test, testSlotTime, SeatingAny))
	if err != nil {
		test.Fatalf("a store fault should degrade, not error: %v", err)
	}
	if availability.Available {
		test.Fatal("degraded answer must not claim availability")
	}
	if availability.Reason != ReasonSystemUnavailable {
		test.Fatalf("expected system_unavailable, got %s", availability.Reason)
	}
	if len(sink.requests) != 1 {
		test.Fatalf("expected one escalation, got %d", len(sink.requests))
	}
	if sink.requests[0].ErrorCode != ErrorCodeSystemTimeout {
		test.Fatalf("expected system timeout code, got %s", sink.requests[0].ErrorCode)
	}
}
