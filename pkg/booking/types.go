package booking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// RestaurantID identifies a restaurant.
type RestaurantID struct {
	value string
}

// ReservationID identifies a reservation.
type ReservationID struct {
	value string
}

// RequestID scopes duplicate detection for redelivered requests.
type RequestID struct {
	value string
}

// PhoneNumber is the customer's natural key, normalized to digits with an optional leading plus.
type PhoneNumber struct {
	value string
}

// CustomerName is a trimmed, non-empty display name.
type CustomerName struct {
	value string
}

// ConfirmationCode is the short identifier issued to a customer for a reservation.
type ConfirmationCode struct {
	value string
}

// PartySize is the number of guests on a request.
type PartySize int

// MinuteOfDay is a wall-clock minute offset from midnight (0..1439).
type MinuteOfDay int

// SeatingType is an independent capacity pool within one slot time.
type SeatingType string

// SeatingPreference is a requested seating type, or SeatingAny for no preference.
type SeatingPreference string

const (
	SeatingIndoor  SeatingType = "indoor"
	SeatingOutdoor SeatingType = "outdoor"
	SeatingBar     SeatingType = "bar"

	SeatingAny SeatingPreference = "any"
)

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusSeated    ReservationStatus = "seated"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusNoShow    ReservationStatus = "no_show"
)

// BlockType distinguishes full closures from override hours.
type BlockType string

const (
	BlockTypeClosed       BlockType = "closed"
	BlockTypeSpecialHours BlockType = "special_hours"
)

// DayHours describes opening hours for one day.
type DayHours struct {
	Closed bool
	Open   MinuteOfDay
	Close  MinuteOfDay
}

// WeeklyHours holds opening hours indexed by time.Weekday.
type WeeklyHours [7]DayHours

// Settings holds per-restaurant booking policy knobs.
type Settings struct {
	MaxPartySize             int
	LargePartyThreshold      int
	LastSeatingOffsetMinutes int
	MaxFutureBookingDays     int
	CancellationNoticeHours  int
	AllowSameDay             bool
}

const (
	defaultMaxPartySize             = 12
	defaultLargePartyThreshold      = 8
	defaultLastSeatingOffsetMinutes = 60
	defaultMaxFutureBookingDays     = 30
	defaultCancellationNoticeHours  = 24
)

// Validate normalizes zero values to defaults and rejects inconsistent settings.
func (settings *Settings) Validate() error {
	if settings.MaxPartySize == 0 {
		settings.MaxPartySize = defaultMaxPartySize
	}
	if settings.LargePartyThreshold == 0 {
		settings.LargePartyThreshold = defaultLargePartyThreshold
	}
	if settings.LastSeatingOffsetMinutes == 0 {
		settings.LastSeatingOffsetMinutes = defaultLastSeatingOffsetMinutes
	}
	if settings.MaxFutureBookingDays == 0 {
		settings.MaxFutureBookingDays = defaultMaxFutureBookingDays
	}
	if settings.CancellationNoticeHours == 0 {
		settings.CancellationNoticeHours = defaultCancellationNoticeHours
	}
	if settings.MaxPartySize < 0 || settings.LargePartyThreshold < 0 {
		return fmt.Errorf("%w: party size limits must be positive", ErrInvalidSettings)
	}
	if settings.LastSeatingOffsetMinutes < 0 || settings.MaxFutureBookingDays < 0 || settings.CancellationNoticeHours < 0 {
		return fmt.Errorf("%w: offsets must be positive", ErrInvalidSettings)
	}
	return nil
}

// Restaurant is the per-restaurant configuration read by the core. Mutations
// happen through staff tooling outside this package.
type Restaurant struct {
	ID       RestaurantID
	Name     string
	Timezone string
	Hours    WeeklyHours
	Settings Settings
}

// Slot is one bookable capacity pool for a restaurant, time, and seating type.
type Slot struct {
	RestaurantID  RestaurantID
	At            time.Time
	Seating       SeatingType
	TotalCapacity int
	BookedCount   int
}

// Remaining reports how many capacity units are still free.
func (slot Slot) Remaining() int {
	remaining := slot.TotalCapacity - slot.BookedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BlockedDate removes or overrides availability for an inclusive date range.
type BlockedDate struct {
	RestaurantID RestaurantID
	Start        time.Time
	End          time.Time
	Type         BlockType
	Override     *DayHours
	Reason       string
}

// Covers reports whether day falls inside the blocked range.
func (blocked BlockedDate) Covers(day time.Time) bool {
	date := dateOnly(day)
	return !date.Before(dateOnly(blocked.Start)) && !date.After(dateOnly(blocked.End))
}

// Reservation is a committed booking row.
type Reservation struct {
	ID                 ReservationID
	RestaurantID       RestaurantID
	CustomerName       CustomerName
	Phone              PhoneNumber
	Email              string
	At                 time.Time
	PartySize          PartySize
	Seating            SeatingType
	Status             ReservationStatus
	ConfirmationCode   ConfirmationCode
	Source             string
	SpecialRequests    string
	SMSConsent         bool
	RequestID          RequestID
	CancelledAt        *time.Time
	CancellationReason string
	CreatedAt          time.Time
}

// Store is the persistence contract used by the resolver and the coordinator.
// All multi-step mutations run inside WithTx; the capacity claim and release
// are single conditional updates so concurrent bookings never oversell a slot.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetRestaurant(ctx context.Context, restaurantID RestaurantID) (Restaurant, error)
	FindBlockedDate(ctx context.Context, restaurantID RestaurantID, day time.Time) (*BlockedDate, error)
	ListSlots(ctx context.Context, restaurantID RestaurantID, day time.Time) ([]Slot, error)
	ClaimSlotCapacity(ctx context.Context, restaurantID RestaurantID, at time.Time, seating SeatingType) error
	ReleaseSlotCapacity(ctx context.Context, restaurantID RestaurantID, at time.Time, seating SeatingType) error
	InsertReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error)
	FindReservationByRequestID(ctx context.Context, restaurantID RestaurantID, requestID RequestID) (*Reservation, error)
	FindOverlappingReservation(ctx context.Context, restaurantID RestaurantID, phone PhoneNumber, at time.Time, window time.Duration) (*Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID ReservationID, from ReservationStatus, to ReservationStatus) error
	SetReservationCancellation(ctx context.Context, reservationID ReservationID, reason string, at time.Time) error
	UpdateReservationDetails(ctx context.Context, reservation Reservation) error
}

// NewRestaurantID validates and normalizes a restaurant id.
func NewRestaurantID(raw string) (RestaurantID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RestaurantID{}, fmt.Errorf("%w: empty value", ErrInvalidRestaurantID)
	}
	return RestaurantID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id RestaurantID) String() string {
	return id.value
}

// NewReservationID validates and normalizes a reservation id.
func NewReservationID(raw string) (ReservationID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ReservationID{}, fmt.Errorf("%w: empty value", ErrInvalidReservationID)
	}
	return ReservationID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ReservationID) String() string {
	return id.value
}

// NewRequestID validates and normalizes a caller-supplied request id.
func NewRequestID(raw string) (RequestID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RequestID{}, fmt.Errorf("%w: empty value", ErrInvalidRequestID)
	}
	return RequestID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id RequestID) String() string {
	return id.value
}

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// NewPhoneNumber validates and normalizes a phone number. Separators are
// stripped; the result is digits with an optional leading plus.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	trimmed := strings.TrimSpace(raw)
	var normalized strings.Builder
	for index, character := range trimmed {
		switch {
		case unicode.IsDigit(character):
			normalized.WriteRune(character)
		case character == '+' && index == 0:
			normalized.WriteRune(character)
		case character == ' ' || character == '-' || character == '(' || character == ')' || character == '.':
		default:
			return PhoneNumber{}, fmt.Errorf("%w: unexpected character %q", ErrInvalidPhoneNumber, character)
		}
	}
	digits := strings.TrimPrefix(normalized.String(), "+")
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return PhoneNumber{}, fmt.Errorf("%w: expected %d-%d digits", ErrInvalidPhoneNumber, minPhoneDigits, maxPhoneDigits)
	}
	return PhoneNumber{value: normalized.String()}, nil
}

// String returns the normalized number.
func (phone PhoneNumber) String() string {
	return phone.value
}

// IsZero reports whether the number is unset.
func (phone PhoneNumber) IsZero() bool {
	return phone.value == ""
}

// NewCustomerName validates and trims a customer name.
func NewCustomerName(raw string) (CustomerName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CustomerName{}, fmt.Errorf("%w: empty value", ErrInvalidCustomerName)
	}
	return CustomerName{value: trimmed}, nil
}

// String returns the normalized name.
func (name CustomerName) String() string {
	return name.value
}

// NewPartySize validates a party size.
func NewPartySize(raw int) (PartySize, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPartySize)
	}
	return PartySize(raw), nil
}

// Int returns the party size as an int.
func (size PartySize) Int() int {
	return int(size)
}

// ParseSeatingType validates a concrete seating type.
func ParseSeatingType(raw string) (SeatingType, error) {
	switch SeatingType(strings.ToLower(strings.TrimSpace(raw))) {
	case SeatingIndoor:
		return SeatingIndoor, nil
	case SeatingOutdoor:
		return SeatingOutdoor, nil
	case SeatingBar:
		return SeatingBar, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSeatingType, raw)
	}
}

// String returns the seating type value.
func (seating SeatingType) String() string {
	return string(seating)
}

// ParseSeatingPreference validates a seating preference, allowing "any" and
// the empty string as no preference.
func ParseSeatingPreference(raw string) (SeatingPreference, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" || SeatingPreference(normalized) == SeatingAny {
		return SeatingAny, nil
	}
	seating, err := ParseSeatingType(normalized)
	if err != nil {
		return "", err
	}
	return SeatingPreference(seating), nil
}

// String returns the preference value.
func (preference SeatingPreference) String() string {
	return string(preference)
}

// Matches reports whether a concrete seating type satisfies the preference.
func (preference SeatingPreference) Matches(seating SeatingType) bool {
	return preference == SeatingAny || string(preference) == string(seating)
}

// ParseReservationStatus validates a reservation status value.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch ReservationStatus(raw) {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusSeated,
		ReservationStatusCompleted, ReservationStatusCancelled, ReservationStatusNoShow:
		return ReservationStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
	}
}

// String returns the status value.
func (status ReservationStatus) String() string {
	return string(status)
}

// IsTerminal reports whether no further transition is allowed.
func (status ReservationStatus) IsTerminal() bool {
	switch status {
	case ReservationStatusCompleted, ReservationStatusCancelled, ReservationStatusNoShow:
		return true
	default:
		return false
	}
}

// CanAdvanceTo reports whether the forward-only lifecycle permits a move to
// next. Pre-seating states may still be cancelled or marked no-show.
func (status ReservationStatus) CanAdvanceTo(next ReservationStatus) bool {
	switch next {
	case ReservationStatusSeated:
		return status == ReservationStatusPending || status == ReservationStatusConfirmed
	case ReservationStatusCompleted:
		return status == ReservationStatusSeated
	case ReservationStatusCancelled, ReservationStatusNoShow:
		return status == ReservationStatusPending || status == ReservationStatusConfirmed
	case ReservationStatusConfirmed:
		return status == ReservationStatusPending
	default:
		return false
	}
}

// ParseBlockType validates a blocked-date type value.
func ParseBlockType(raw string) (BlockType, error) {
	switch BlockType(raw) {
	case BlockTypeClosed, BlockTypeSpecialHours:
		return BlockType(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBlockType, raw)
	}
}

// String returns the block type value.
func (blockType BlockType) String() string {
	return string(blockType)
}

const minutesPerDay = 24 * 60

// ParseClock converts a "15:04" wall-clock string into a MinuteOfDay.
func ParseClock(raw string) (MinuteOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	return MinuteOfDay(hour*60 + minute), nil
}

// String renders the minute as a "15:04" clock value.
func (minute MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(minute)/60, int(minute)%60)
}

// ParseConfirmationCode validates an inbound confirmation code.
func ParseConfirmationCode(raw string) (ConfirmationCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if len(normalized) != confirmationCodeLength {
		return ConfirmationCode{}, fmt.Errorf("%w: expected %d characters", ErrInvalidConfirmationCode, confirmationCodeLength)
	}
	for _, character := range normalized {
		if !strings.ContainsRune(confirmationCodeAlphabet, character) {
			return ConfirmationCode{}, fmt.Errorf("%w: unexpected character %q", ErrInvalidConfirmationCode, character)
		}
	}
	return ConfirmationCode{value: normalized}, nil
}

// String returns the code value.
func (code ConfirmationCode) String() string {
	return code.value
}

// IsZero reports whether the code is unset.
func (code ConfirmationCode) IsZero() bool {
	return code.value == ""
}

func dateOnly(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

func minuteOf(value time.Time) MinuteOfDay {
	return MinuteOfDay(value.Hour()*60 + value.Minute())
}
