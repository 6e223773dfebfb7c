package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestConcurrentClaimsNeverOversell(test *testing.T) {
	test.Parallel()
	const capacity = 4
	const contenders = 16

	store := newMemStore(test)
	store.setSlot(testSlotTime, SeatingIndoor, capacity, 0)
	service := mustNewService(test, store)

	results := make([]BookingResult, contenders)
	errs := make([]error, contenders)
	var group sync.WaitGroup
	for index := 0; index < contenders; index++ {
		group.Add(1)
		go func(index int) {
			defer group.Done()
			request := validBookingRequest(test, fmt.Sprintf("req-race-%02d", index))
			request.Phone = mustPhone(test, fmt.Sprintf("+1555200%04d", index))
			request.Seating = SeatingPreference(SeatingIndoor)
			results[index], errs[index] = service.CreateBooking(context.Background(), request)
		}(index)
	}
	group.Wait()

	booked := 0
	conflicts := 0
	for index := 0; index < contenders; index++ {
		if errs[index] != nil {
			test.Fatalf("contender %d: %v", index, errs[index])
		}
		switch {
		case results[index].Success:
			booked++
		case results[index].FailureReason == FailureCapacityConflict:
			conflicts++
		default:
			test.Fatalf("contender %d: unexpected outcome %+v", index, results[index])
		}
	}
	if booked != capacity {
		test.Fatalf("expected exactly %d winners, got %d", capacity, booked)
	}
	if conflicts != contenders-capacity {
		test.Fatalf("expected %d capacity conflicts, got %d", contenders-capacity, conflicts)
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != capacity {
		test.Fatalf("booked count must equal capacity, got %d", got)
	}
	if len(store.reservations) != capacity {
		test.Fatalf("expected %d reservations, got %d", capacity, len(store.reservations))
	}
}

func TestConcurrentRedeliveriesReplayOneBooking(test *testing.T) {
	test.Parallel()
	const deliveries = 8

	store := newMemStore(test)
	service := mustNewService(test, store)

	results := make([]BookingResult, deliveries)
	errs := make([]error, deliveries)
	var group sync.WaitGroup
	for index := 0; index < deliveries; index++ {
		group.Add(1)
		go func(index int) {
			defer group.Done()
			results[index], errs[index] = service.CreateBooking(context.Background(), validBookingRequest(test, "req-redelivered"))
		}(index)
	}
	group.Wait()

	var reservationIDs []ReservationID
	for index := 0; index < deliveries; index++ {
		if errs[index] != nil {
			test.Fatalf("delivery %d: %v", index, errs[index])
		}
		if !results[index].Success {
			test.Fatalf("delivery %d: expected replay success, got %+v", index, results[index])
		}
		reservationIDs = append(reservationIDs, results[index].ReservationID)
	}
	for _, reservationID := range reservationIDs {
		if reservationID != reservationIDs[0] {
			test.Fatalf("all deliveries must converge on one reservation, got %s and %s", reservationIDs[0], reservationID)
		}
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 1 {
		test.Fatalf("redeliveries must claim one capacity unit, got %d", got)
	}
	if len(store.reservations) != 1 {
		test.Fatalf("expected one reservation, got %d", len(store.reservations))
	}
}
