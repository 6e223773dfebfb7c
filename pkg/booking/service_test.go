package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	testNow       = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	testSlotTime  = time.Date(2026, time.March, 12, 18, 0, 0, 0, time.UTC)
	testLaterSlot = time.Date(2026, time.March, 12, 19, 0, 0, 0, time.UTC)
)

func TestCreateBookingConfirmsReservation(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	publisher := &recordingPublisher{}
	service := mustNewService(test, store, WithEventPublisher(publisher))

	result, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-1"))
	if err != nil {
		test.Fatalf("create booking: %v", err)
	}
	if !result.Success {
		test.Fatalf("expected success, got %+v", result)
	}
	if len(result.ConfirmationCode.String()) != 6 {
		test.Fatalf("expected 6-character confirmation code, got %q", result.ConfirmationCode)
	}
	reservation := store.mustReservation(test, result.ReservationID)
	if reservation.Status != ReservationStatusConfirmed {
		test.Fatalf("expected confirmed reservation, got %s", reservation.Status)
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 1 {
		test.Fatalf("expected indoor booked count 1, got %d", got)
	}
	if len(publisher.events) != 1 {
		test.Fatalf("expected one event, got %d", len(publisher.events))
	}
	if publisher.events[0].Kind() != EventTypeSlotBooked {
		test.Fatalf("expected slot booked event, got %s", publisher.events[0].Kind())
	}
}

func TestCreateBookingReplaysDuplicateRequest(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)
	request := validBookingRequest(test, "req-replay")

	first, err := service.CreateBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("first create: %v", err)
	}
	second, err := service.CreateBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("second create: %v", err)
	}
	if !second.Replayed {
		test.Fatal("expected replayed result")
	}
	if second.ReservationID != first.ReservationID {
		test.Fatalf("replay should return the original reservation, got %s and %s", first.ReservationID, second.ReservationID)
	}
	if second.ConfirmationCode != first.ConfirmationCode {
		test.Fatal("replay should return the original confirmation code")
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 1 {
		test.Fatalf("replay must not claim a second capacity unit, got count %d", got)
	}
}

func TestCreateBookingRejectsOverlappingPhone(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)

	first := validBookingRequest(test, "req-first")
	if _, err := service.CreateBooking(context.Background(), first); err != nil {
		test.Fatalf("first create: %v", err)
	}

	second := validBookingRequest(test, "req-second")
	second.At = testLaterSlot
	result, err := service.CreateBooking(context.Background(), second)
	if err != nil {
		test.Fatalf("second create: %v", err)
	}
	if result.Success {
		test.Fatal("expected duplicate rejection")
	}
	if result.FailureReason != FailureDuplicateBooking {
		test.Fatalf("expected duplicate_booking, got %s", result.FailureReason)
	}
}

func TestCreateBookingCapacityConflictOffersAlternatives(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.setSlot(testSlotTime, SeatingIndoor, 1, 0)
	service := mustNewService(test, store)

	winner := validBookingRequest(test, "req-winner")
	winner.Seating = SeatingPreference(SeatingIndoor)
	if _, err := service.CreateBooking(context.Background(), winner); err != nil {
		test.Fatalf("winner create: %v", err)
	}

	loser := validBookingRequest(test, "req-loser")
	loser.Phone = mustPhone(test, "+15559990000")
	loser.Seating = SeatingPreference(SeatingIndoor)
	result, err := service.CreateBooking(context.Background(), loser)
	if err != nil {
		test.Fatalf("loser create: %v", err)
	}
	if result.Success {
		test.Fatal("expected capacity conflict")
	}
	if result.FailureReason != FailureCapacityConflict {
		test.Fatalf("expected capacity_conflict, got %s", result.FailureReason)
	}
	if len(result.Alternatives) == 0 {
		test.Fatal("expected fresh alternatives")
	}
	for _, alternative := range result.Alternatives {
		if alternative.At.Equal(testSlotTime) && alternative.Seating == SeatingIndoor {
			test.Fatal("alternatives must not include the contested slot")
		}
	}
}

func TestCreateBookingAnyPreferenceFallsBack(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.setSlot(testSlotTime, SeatingIndoor, 1, 1)
	service := mustNewService(test, store)

	request := validBookingRequest(test, "req-any")
	request.Seating = SeatingAny
	result, err := service.CreateBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if !result.Success {
		test.Fatalf("expected fallback success, got %+v", result)
	}
	reservation := store.mustReservation(test, result.ReservationID)
	if reservation.Seating != SeatingOutdoor {
		test.Fatalf("expected outdoor fallback, got %s", reservation.Seating)
	}
}

func TestCreateBookingLargePartyTransfers(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)

	request := validBookingRequest(test, "req-large")
	request.PartySize = mustPartySize(test, 9)
	result, err := service.CreateBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if !result.TransferRequired {
		test.Fatal("expected transfer for a large party")
	}
	if len(store.reservations) != 0 {
		test.Fatal("a transferred request must not create a reservation")
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 0 {
		test.Fatalf("a transferred request must not claim capacity, got %d", got)
	}
}

func TestCreateBookingSafetyTriggerEscalates(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	sink := &recordingSink{}
	service := mustNewService(test, store, WithEscalationSink(sink))

	request := validBookingRequest(test, "req-safety")
	request.SpecialRequests = "Severe peanut ALLERGY at the table"
	result, err := service.CreateBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if !result.TransferRequired {
		test.Fatal("expected transfer for a safety trigger")
	}
	if len(store.reservations) != 0 {
		test.Fatal("a safety transfer must not create a reservation")
	}
	if len(sink.requests) != 1 {
		test.Fatalf("expected one escalation, got %d", len(sink.requests))
	}
	if sink.requests[0].ErrorCode != ErrorCodeSafetyTrigger {
		test.Fatalf("expected safety trigger code, got %s", sink.requests[0].ErrorCode)
	}
}

func TestCreateBookingStoreFailureEscalates(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.failWith = errors.New("connection refused")
	sink := &recordingSink{}
	service := mustNewService(test, store, WithEscalationSink(sink))

	result, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-outage"))
	if err != nil {
		test.Fatalf("store outage should degrade, not error: %v", err)
	}
	if result.FailureReason != FailureSystemUnavailable {
		test.Fatalf("expected system_unavailable, got %s", result.FailureReason)
	}
	if len(sink.requests) != 1 {
		test.Fatalf("expected one escalation, got %d", len(sink.requests))
	}
	if sink.requests[0].ErrorCode != ErrorCodeSystemTimeout {
		test.Fatalf("expected system timeout code, got %s", sink.requests[0].ErrorCode)
	}
}

func TestCreateBookingPastTimeFailsValidation(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)

	request := validBookingRequest(test, "req-past")
	request.At = testNow.Add(-time.Hour)
	if _, err := service.CreateBooking(context.Background(), request); !errors.Is(err, ErrInvalidBookingTime) {
		test.Fatalf("expected ErrInvalidBookingTime, got %v", err)
	}
}

func TestCreateBookingRetriesConfirmationCodeCollision(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.codeConflicts = 2
	service := mustNewService(test, store)

	result, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-collision"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if !result.Success {
		test.Fatalf("expected success after retries, got %+v", result)
	}
}

func TestCreateBookingConfirmationCodeExhaustion(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.codeConflicts = maxConfirmationCodeAttempts
	service := mustNewService(test, store)

	_, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-exhausted"))
	if !errors.Is(err, ErrConfirmationCodeTaken) {
		test.Fatalf("expected ErrConfirmationCodeTaken, got %v", err)
	}
}

func TestCancelBookingReleasesCapacity(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	publisher := &recordingPublisher{}
	service := mustNewService(test, store, WithEventPublisher(publisher))

	created, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-cancel"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	result, err := service.CancelBooking(context.Background(), created.ReservationID, "plans changed")
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if !result.Success {
		test.Fatalf("expected cancel success, got %+v", result)
	}
	if result.LateCancellation {
		test.Fatal("two days of notice is not late")
	}
	reservation := store.mustReservation(test, created.ReservationID)
	if reservation.Status != ReservationStatusCancelled {
		test.Fatalf("expected cancelled status, got %s", reservation.Status)
	}
	if reservation.CancelledAt == nil {
		test.Fatal("expected cancelled_at to be set")
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 0 {
		test.Fatalf("expected capacity released, got count %d", got)
	}
	last := publisher.events[len(publisher.events)-1]
	if last.Kind() != EventTypeSlotReleased {
		test.Fatalf("expected slot released event, got %s", last.Kind())
	}
}

func TestCancelBookingIsIdempotent(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)

	created, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-recancel"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if _, err := service.CancelBooking(context.Background(), created.ReservationID, "first"); err != nil {
		test.Fatalf("first cancel: %v", err)
	}
	result, err := service.CancelBooking(context.Background(), created.ReservationID, "second")
	if err != nil {
		test.Fatalf("second cancel: %v", err)
	}
	if !result.Success {
		test.Fatal("repeated cancel should succeed")
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 0 {
		test.Fatalf("repeated cancel must not double-release, got count %d", got)
	}
}

func TestCancelBookingFlagsLateCancellation(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	sameDay := testNow.Add(3 * time.Hour)
	store.setSlot(sameDay, SeatingIndoor, 4, 0)
	service := mustNewService(test, store)

	request := validBookingRequest(test, "req-late")
	request.At = sameDay
	created, err := service.CreateBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	result, err := service.CancelBooking(context.Background(), created.ReservationID, "emergency")
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if !result.LateCancellation {
		test.Fatal("expected late cancellation inside the notice window")
	}
}

func TestUpdateBookingMovesSlot(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)

	created, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-move"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	newTime := testLaterSlot
	result, err := service.UpdateBooking(context.Background(), UpdateRequest{
		ReservationID: created.ReservationID,
		At:            &newTime,
	})
	if err != nil {
		test.Fatalf("update: %v", err)
	}
	if !result.Success {
		test.Fatalf("expected update success, got %+v", result)
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 0 {
		test.Fatalf("expected old slot released, got count %d", got)
	}
	if got := store.bookedCount(testLaterSlot, SeatingIndoor); got != 1 {
		test.Fatalf("expected new slot claimed, got count %d", got)
	}
	reservation := store.mustReservation(test, created.ReservationID)
	if !reservation.At.Equal(testLaterSlot) {
		test.Fatalf("expected reservation moved to %s, got %s", testLaterSlot, reservation.At)
	}
}

func TestUpdateBookingFullNewSlotKeepsOriginal(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.setSlot(testLaterSlot, SeatingIndoor, 1, 1)
	service := mustNewService(test, store)

	created, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-stuck"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	newTime := testLaterSlot
	result, err := service.UpdateBooking(context.Background(), UpdateRequest{
		ReservationID: created.ReservationID,
		At:            &newTime,
	})
	if err != nil {
		test.Fatalf("update: %v", err)
	}
	if result.Success {
		test.Fatal("expected conflict on a full slot")
	}
	reservation := store.mustReservation(test, created.ReservationID)
	if !reservation.At.Equal(testSlotTime) {
		test.Fatalf("original slot must be kept, got %s", reservation.At)
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 1 {
		test.Fatalf("original capacity must stay claimed, got count %d", got)
	}
}

func TestUpdateBookingRejectsTerminalStatus(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)

	created, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-terminal"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if _, err := service.CancelBooking(context.Background(), created.ReservationID, "done"); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	partySize := mustPartySize(test, 4)
	_, err = service.UpdateBooking(context.Background(), UpdateRequest{
		ReservationID: created.ReservationID,
		PartySize:     &partySize,
	})
	if !errors.Is(err, ErrStatusConflict) {
		test.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}

func TestMarkSeatedThenCompleted(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)

	created, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-lifecycle"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if err := service.MarkSeated(context.Background(), created.ReservationID); err != nil {
		test.Fatalf("mark seated: %v", err)
	}
	if err := service.MarkCompleted(context.Background(), created.ReservationID); err != nil {
		test.Fatalf("mark completed: %v", err)
	}
	reservation := store.mustReservation(test, created.ReservationID)
	if reservation.Status != ReservationStatusCompleted {
		test.Fatalf("expected completed, got %s", reservation.Status)
	}
	if err := service.MarkSeated(context.Background(), created.ReservationID); !errors.Is(err, ErrStatusConflict) {
		test.Fatalf("completed reservations must not regress, got %v", err)
	}
}

func TestMarkNoShowReleasesCapacity(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	service := mustNewService(test, store)

	created, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-noshow"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if err := service.MarkNoShow(context.Background(), created.ReservationID); err != nil {
		test.Fatalf("mark no-show: %v", err)
	}
	reservation := store.mustReservation(test, created.ReservationID)
	if reservation.Status != ReservationStatusNoShow {
		test.Fatalf("expected no_show, got %s", reservation.Status)
	}
	if got := store.bookedCount(testSlotTime, SeatingIndoor); got != 0 {
		test.Fatalf("expected capacity released, got count %d", got)
	}
}

func TestDetectSafetyTrigger(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name     string
		text     string
		expected bool
	}{
		{name: "allergy", text: "shellfish allergy", expected: true},
		{name: "uppercase", text: "ANAPHYLAXIS risk", expected: true},
		{name: "epipen", text: "carries an EpiPen", expected: true},
		{name: "hyphenated", text: "has an epi-pen", expected: true},
		{name: "benign", text: "window seat please", expected: false},
		{name: "empty", text: "", expected: false},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := detectSafetyTrigger(testCase.text); got != testCase.expected {
				test.Fatalf("detectSafetyTrigger(%q) = %v, expected %v", testCase.text, got, testCase.expected)
			}
		})
	}
}

// --- shared fixtures ---

func fixedClock() time.Time { return testNow }

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, fixedClock, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustRestaurantID(test *testing.T, raw string) RestaurantID {
	test.Helper()
	restaurantID, err := NewRestaurantID(raw)
	if err != nil {
		test.Fatalf("restaurant id %q: %v", raw, err)
	}
	return restaurantID
}

func mustPhone(test *testing.T, raw string) PhoneNumber {
	test.Helper()
	phone, err := NewPhoneNumber(raw)
	if err != nil {
		test.Fatalf("phone %q: %v", raw, err)
	}
	return phone
}

func mustName(test *testing.T, raw string) CustomerName {
	test.Helper()
	name, err := NewCustomerName(raw)
	if err != nil {
		test.Fatalf("customer name %q: %v", raw, err)
	}
	return name
}

func mustRequestID(test *testing.T, raw string) RequestID {
	test.Helper()
	requestID, err := NewRequestID(raw)
	if err != nil {
		test.Fatalf("request id %q: %v", raw, err)
	}
	return requestID
}

func mustPartySize(test *testing.T, raw int) PartySize {
	test.Helper()
	partySize, err := NewPartySize(raw)
	if err != nil {
		test.Fatalf("party size %d: %v", raw, err)
	}
	return partySize
}

func validBookingRequest(test *testing.T, requestID string) BookingRequest {
	test.Helper()
	return BookingRequest{
		RestaurantID: mustRestaurantID(test, "bistro-main"),
		RequestID:    mustRequestID(test, requestID),
		CustomerName: mustName(test, "Alex Moreau"),
		Phone:        mustPhone(test, "+15551234567"),
		At:           testSlotTime,
		PartySize:    mustPartySize(test, 2),
		Seating:      SeatingPreference(SeatingIndoor),
	}
}

type slotPoolKey struct {
	atUnix  int64
	seating SeatingType
}

// memStore is an in-memory Store with the same conditional-update semantics
// as the SQL implementation. WithTx serializes callbacks instead of providing
// rollback; tests that need partial-failure state arrange it directly.
type memStore struct {
	mu            sync.Mutex
	txMu          sync.Mutex
	restaurant    Restaurant
	blocked       []BlockedDate
	slots         map[slotPoolKey]*Slot
	reservations  map[string]Reservation
	failWith      error
	codeConflicts int
}

func newMemStore(test *testing.T) *memStore {
	test.Helper()
	settings := Settings{AllowSameDay: true}
	if err := settings.Validate(); err != nil {
		test.Fatalf("settings: %v", err)
	}
	store := &memStore{
		restaurant: Restaurant{
			ID:       mustRestaurantID(test, "bistro-main"),
			Name:     "Bistro Main",
			Timezone: "UTC",
			Hours:    standardWeek(17*60, 22*60),
			Settings: settings,
		},
		slots:        make(map[slotPoolKey]*Slot),
		reservations: make(map[string]Reservation),
	}
	store.setSlot(testSlotTime, SeatingIndoor, 4, 0)
	store.setSlot(testSlotTime, SeatingOutdoor, 2, 0)
	store.setSlot(testSlotTime, SeatingBar, 2, 0)
	store.setSlot(testSlotTime.Add(30*time.Minute), SeatingIndoor, 4, 0)
	store.setSlot(testLaterSlot, SeatingIndoor, 4, 0)
	return store
}

func (store *memStore) setSlot(at time.Time, seating SeatingType, capacity int, booked int) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.slots[slotPoolKey{atUnix: at.Unix(), seating: seating}] = &Slot{
		RestaurantID:  store.restaurant.ID,
		At:            at,
		Seating:       seating,
		TotalCapacity: capacity,
		BookedCount:   booked,
	}
}

func (store *memStore) bookedCount(at time.Time, seating SeatingType) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	slot, ok := store.slots[slotPoolKey{atUnix: at.Unix(), seating: seating}]
	if !ok {
		return -1
	}
	return slot.BookedCount
}

func (store *memStore) mustReservation(test *testing.T, reservationID ReservationID) Reservation {
	test.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	reservation, ok := store.reservations[reservationID.String()]
	if !ok {
		test.Fatalf("reservation %s not found", reservationID)
	}
	return reservation
}

func (store *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if store.failWith != nil {
		return store.failWith
	}
	store.txMu.Lock()
	defer store.txMu.Unlock()
	return fn(ctx, store)
}

func (store *memStore) GetRestaurant(ctx context.Context, restaurantID RestaurantID) (Restaurant, error) {
	if store.failWith != nil {
		return Restaurant{}, store.failWith
	}
	if restaurantID != store.restaurant.ID {
		return Restaurant{}, ErrUnknownRestaurant
	}
	return store.restaurant, nil
}

func (store *memStore) FindBlockedDate(ctx context.Context, restaurantID RestaurantID, day time.Time) (*BlockedDate, error) {
	if store.failWith != nil {
		return nil, store.failWith
	}
	for index := range store.blocked {
		if store.blocked[index].Covers(day) {
			blocked := store.blocked[index]
			return &blocked, nil
		}
	}
	return nil, nil
}

func (store *memStore) ListSlots(ctx context.Context, restaurantID RestaurantID, day time.Time) ([]Slot, error) {
	if store.failWith != nil {
		return nil, store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	date := dateOnly(day)
	slots := make([]Slot, 0, len(store.slots))
	for _, slot := range store.slots {
		if dateOnly(slot.At).Equal(date) {
			slots = append(slots, *slot)
		}
	}
	return slots, nil
}

func (store *memStore) ClaimSlotCapacity(ctx context.Context, restaurantID RestaurantID, at time.Time, seating SeatingType) error {
	if store.failWith != nil {
		return store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	slot, ok := store.slots[slotPoolKey{atUnix: at.Unix(), seating: seating}]
	if !ok {
		return ErrSlotNotFound
	}
	if slot.BookedCount >= slot.TotalCapacity {
		return ErrCapacityConflict
	}
	slot.BookedCount++
	return nil
}

func (store *memStore) ReleaseSlotCapacity(ctx context.Context, restaurantID RestaurantID, at time.Time, seating SeatingType) error {
	if store.failWith != nil {
		return store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	slot, ok := store.slots[slotPoolKey{atUnix: at.Unix(), seating: seating}]
	if !ok {
		return ErrSlotNotFound
	}
	if slot.BookedCount > 0 {
		slot.BookedCount--
	}
	return nil
}

func (store *memStore) InsertReservation(ctx context.Context, reservation Reservation) error {
	if store.failWith != nil {
		return store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.codeConflicts > 0 {
		store.codeConflicts--
		return ErrConfirmationCodeTaken
	}
	for _, existing := range store.reservations {
		if existing.RequestID == reservation.RequestID {
			return ErrDuplicateRequest
		}
		if existing.ConfirmationCode == reservation.ConfirmationCode {
			return ErrConfirmationCodeTaken
		}
	}
	store.reservations[reservation.ID.String()] = reservation
	return nil
}

func (store *memStore) GetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error) {
	if store.failWith != nil {
		return Reservation{}, store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	reservation, ok := store.reservations[reservationID.String()]
	if !ok {
		return Reservation{}, ErrUnknownReservation
	}
	return reservation, nil
}

func (store *memStore) FindReservationByRequestID(ctx context.Context, restaurantID RestaurantID, requestID RequestID) (*Reservation, error) {
	if store.failWith != nil {
		return nil, store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, reservation := range store.reservations {
		if reservation.RequestID == requestID {
			found := reservation
			return &found, nil
		}
	}
	return nil, nil
}

func (store *memStore) FindOverlappingReservation(ctx context.Context, restaurantID RestaurantID, phone PhoneNumber, at time.Time, window time.Duration) (*Reservation, error) {
	if store.failWith != nil {
		return nil, store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, reservation := range store.reservations {
		if reservation.Phone != phone {
			continue
		}
		if reservation.Status != ReservationStatusPending && reservation.Status != ReservationStatusConfirmed {
			continue
		}
		delta := reservation.At.Sub(at)
		if delta < 0 {
			delta = -delta
		}
		if delta < window {
			found := reservation
			return &found, nil
		}
	}
	return nil, nil
}

func (store *memStore) UpdateReservationStatus(ctx context.Context, reservationID ReservationID, from ReservationStatus, to ReservationStatus) error {
	if store.failWith != nil {
		return store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	reservation, ok := store.reservations[reservationID.String()]
	if !ok || reservation.Status != from {
		return ErrStatusConflict
	}
	reservation.Status = to
	store.reservations[reservationID.String()] = reservation
	return nil
}

func (store *memStore) SetReservationCancellation(ctx context.Context, reservationID ReservationID, reason string, at time.Time) error {
	if store.failWith != nil {
		return store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	reservation, ok := store.reservations[reservationID.String()]
	if !ok {
		return ErrUnknownReservation
	}
	cancelledAt := at
	reservation.CancelledAt = &cancelledAt
	reservation.CancellationReason = reason
	store.reservations[reservationID.String()] = reservation
	return nil
}

func (store *memStore) UpdateReservationDetails(ctx context.Context, reservation Reservation) error {
	if store.failWith != nil {
		return store.failWith
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	existing, ok := store.reservations[reservation.ID.String()]
	if !ok {
		return ErrUnknownReservation
	}
	existing.CustomerName = reservation.CustomerName
	existing.Email = reservation.Email
	existing.At = reservation.At
	existing.PartySize = reservation.PartySize
	existing.Seating = reservation.Seating
	existing.SpecialRequests = reservation.SpecialRequests
	existing.SMSConsent = reservation.SMSConsent
	store.reservations[reservation.ID.String()] = existing
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	requests []EscalationRequest
}

func (sink *recordingSink) Escalate(ctx context.Context, request EscalationRequest) {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.requests = append(sink.requests, request)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (publisher *recordingPublisher) Publish(ctx context.Context, event Event) error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	publisher.events = append(publisher.events, event)
	return nil
}
