package booking

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// AvailabilityReason explains a negative availability answer.
type AvailabilityReason string

const (
	ReasonWindowExceeded  AvailabilityReason = "booking_window_exceeded"
	ReasonSameDayDisabled AvailabilityReason = "same_day_disabled"
	ReasonClosedDate      AvailabilityReason = "closed_date"
	ReasonClosedDay       AvailabilityReason = "closed_day"
	ReasonOutsideHours    AvailabilityReason = "outside_hours"
	ReasonPastLastSeating AvailabilityReason = "past_last_seating"
	ReasonFullyBooked     AvailabilityReason = "fully_booked"
	ReasonLargeParty      AvailabilityReason = "large_party"
)

// AvailabilityRequest asks whether one exact slot can be booked.
type AvailabilityRequest struct {
	RestaurantID RestaurantID
	At           time.Time
	PartySize    PartySize
	Seating      SeatingPreference

	// Phone is optional contact data carried into escalations when the
	// check cannot be answered.
	Phone PhoneNumber
}

// SlotOption is a bookable alternative offered to the caller.
type SlotOption struct {
	At      time.Time
	Seating SeatingType
}

// Availability is the resolver's answer. TransferRequired marks outcomes the
// caller must route to a human rather than retry.
type Availability struct {
	Available        bool
	Reason           AvailabilityReason
	Message          string
	TransferRequired bool
	Alternatives     []SlotOption
}

// Resolver computes availability from calendar policy and the slot catalog.
// It only reads; the coordinator owns all slot writes.
type Resolver struct {
	store Store
	nowFn func() time.Time
}

// NewResolver wires a Resolver.
func NewResolver(store Store, now func() time.Time) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Resolver{store: store, nowFn: now}, nil
}

// CheckAvailability answers whether the requested slot can be booked and, if
// not, offers ranked same-day alternatives. Store faults surface as
// ErrStoreUnavailable so callers can escalate instead of reporting a false
// negative.
func (resolver *Resolver) CheckAvailability(ctx context.Context, request AvailabilityRequest) (Availability, error) {
	restaurant, err := resolver.store.GetRestaurant(ctx, request.RestaurantID)
	if err != nil {
		return Availability{}, classifyStoreError(err)
	}
	if err := restaurant.Settings.Validate(); err != nil {
		return Availability{}, err
	}
	if request.PartySize.Int() <= 0 {
		return Availability{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPartySize)
	}
	if request.PartySize.Int() > restaurant.Settings.LargePartyThreshold {
		return Availability{
			Reason:           ReasonLargeParty,
			Message:          fmt.Sprintf("Parties of %d or more are handled by our events team.", restaurant.Settings.LargePartyThreshold+1),
			TransferRequired: true,
		}, nil
	}
	if request.PartySize.Int() > restaurant.Settings.MaxPartySize {
		return Availability{}, fmt.Errorf("%w: party size %d exceeds maximum %d",
			ErrInvalidPartySize, request.PartySize.Int(), restaurant.Settings.MaxPartySize)
	}

	if reason, err := checkBookingWindow(resolver.nowFn(), request.At, restaurant.Settings); err != nil {
		return Availability{}, err
	} else if reason != "" {
		return Availability{Reason: reason, Message: windowMessage(reason, restaurant.Settings)}, nil
	}

	blocked, err := resolver.store.FindBlockedDate(ctx, request.RestaurantID, request.At)
	if err != nil {
		return Availability{}, classifyStoreError(err)
	}
	hours, closure := effectiveDayHours(restaurant, blocked, request.At)
	if closure != nil {
		return Availability{Reason: ReasonClosedDate, Message: closureMessage(closure)}, nil
	}
	if reason := checkDayHours(request.At, hours, restaurant.Settings); reason != "" {
		alternatives, altErr := resolver.alternativesFor(ctx, restaurant, hours, request)
		if altErr != nil {
			return Availability{}, altErr
		}
		return Availability{Reason: reason, Message: hoursMessage(reason, hours, restaurant.Settings), Alternatives: alternatives}, nil
	}

	slots, err := resolver.store.ListSlots(ctx, request.RestaurantID, request.At)
	if err != nil {
		return Availability{}, classifyStoreError(err)
	}
	for _, slot := range slots {
		if !slot.At.Equal(request.At) || !request.Seating.Matches(slot.Seating) {
			continue
		}
		if slot.Remaining() > 0 {
			return Availability{Available: true, Message: "That time is available."}, nil
		}
	}

	alternatives := rankAlternatives(slots, hours, restaurant.Settings, request)
	return Availability{
		Reason:       ReasonFullyBooked,
		Message:      "That time is fully booked.",
		Alternatives: alternatives,
	}, nil
}

// FreshAlternatives recomputes ranked alternatives for a request, used by the
// coordinator after a commit-time capacity conflict.
func (resolver *Resolver) FreshAlternatives(ctx context.Context, request AvailabilityRequest) ([]SlotOption, error) {
	restaurant, err := resolver.store.GetRestaurant(ctx, request.RestaurantID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if err := restaurant.Settings.Validate(); err != nil {
		return nil, err
	}
	blocked, err := resolver.store.FindBlockedDate(ctx, request.RestaurantID, request.At)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	hours, closure := effectiveDayHours(restaurant, blocked, request.At)
	if closure != nil || hours.Closed {
		return nil, nil
	}
	return resolver.alternativesFor(ctx, restaurant, hours, request)
}

func (resolver *Resolver) alternativesFor(ctx context.Context, restaurant Restaurant, hours DayHours, request AvailabilityRequest) ([]SlotOption, error) {
	slots, err := resolver.store.ListSlots(ctx, request.RestaurantID, request.At)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return rankAlternatives(slots, hours, restaurant.Settings, request), nil
}

// rankAlternatives orders same-day candidates by absolute minute distance from
// the requested time, tie-breaking on earlier time and then on seating types
// matching the caller's preference.
func rankAlternatives(slots []Slot, hours DayHours, settings Settings, request AvailabilityRequest) []SlotOption {
	lastBookable := lastBookableMinute(hours, settings)
	type candidate struct {
		option       SlotOption
		distance     int
		minute       MinuteOfDay
		prefMismatch bool
	}
	candidates := make([]candidate, 0, len(slots))
	for _, slot := range slots {
		if slot.Remaining() <= 0 {
			continue
		}
		if slot.At.Equal(request.At) && request.Seating.Matches(slot.Seating) {
			continue
		}
		minute := minuteOf(slot.At)
		if minute < hours.Open || minute > lastBookable {
			continue
		}
		distance := int(slot.At.Sub(request.At).Minutes())
		if distance < 0 {
			distance = -distance
		}
		candidates = append(candidates, candidate{
			option:       SlotOption{At: slot.At, Seating: slot.Seating},
			distance:     distance,
			minute:       minute,
			prefMismatch: !request.Seating.Matches(slot.Seating),
		})
	}
	sort.SliceStable(candidates, func(left, right int) bool {
		if candidates[left].distance != candidates[right].distance {
			return candidates[left].distance < candidates[right].distance
		}
		if candidates[left].minute != candidates[right].minute {
			return candidates[left].minute < candidates[right].minute
		}
		return !candidates[left].prefMismatch && candidates[right].prefMismatch
	})
	options := make([]SlotOption, 0, maxAlternativeSlots)
	for _, entry := range candidates {
		options = append(options, entry.option)
		if len(options) == maxAlternativeSlots {
			break
		}
	}
	return options
}

func windowMessage(reason AvailabilityReason, settings Settings) string {
	switch reason {
	case ReasonSameDayDisabled:
		return "Same-day bookings are not accepted; the earliest bookable day is tomorrow."
	default:
		return fmt.Sprintf("Bookings open up to %d days in advance.", settings.MaxFutureBookingDays)
	}
}

func closureMessage(closure *BlockedDate) string {
	if closure.Reason != "" {
		return fmt.Sprintf("The restaurant is closed that day (%s).", closure.Reason)
	}
	return "The restaurant is closed that day."
}

func hoursMessage(reason AvailabilityReason, hours DayHours, settings Settings) string {
	switch reason {
	case ReasonClosedDay:
		return "The restaurant is closed that day."
	case ReasonPastLastSeating:
		return fmt.Sprintf("Last seating is at %s.", lastBookableMinute(hours, settings))
	default:
		return fmt.Sprintf("The restaurant opens at %s.", hours.Open)
	}
}
