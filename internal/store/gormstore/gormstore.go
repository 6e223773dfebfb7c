package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oakandember/tablebook/pkg/booking"
)

const (
	constraintConfirmationCode = "uniq_reservations_confirmation_code"
	constraintRequestID        = "uniq_reservations_request"
	pgUniqueViolationCode      = "23505"
	sqliteConstraintCode       = 19
	errorOperationStore        = "store"
	errorSubjectRestaurant     = "restaurant"
	errorSubjectSlot           = "slot"
	errorSubjectBlockedDate    = "blocked_date"
	errorSubjectReservation    = "reservation"
	errorSubjectCallback       = "callback"
	errorSubjectCallRecord     = "call_record"
	errorSubjectMetrics        = "metrics"
	errorCodeClaim             = "claim"
	errorCodeCreate            = "create"
	errorCodeDuplicate         = "duplicate"
	errorCodeGet               = "get"
	errorCodeInsert            = "insert"
	errorCodeInvalid           = "invalid"
	errorCodeList              = "list"
	errorCodeLookup            = "lookup"
	errorCodeRelease           = "release"
	errorCodeUpdate            = "update"
	errorCodeUpdateStatus      = "update_status"
)

// Store implements booking.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema. Used for sqlite deployments; postgres
// schemas are managed externally.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetRestaurant(ctx context.Context, restaurantID booking.RestaurantID) (booking.Restaurant, error) {
	var model Restaurant
	err := store.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeGet, booking.ErrUnknownRestaurant)
		}
		return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeGet, err)
	}
	return mapRestaurant(model)
}

func (store *Store) FindBlockedDate(ctx context.Context, restaurantID booking.RestaurantID, day time.Time) (*booking.BlockedDate, error) {
	date := startOfDay(day)
	var model BlockedDate
	err := store.db.WithContext(ctx).
		Where("restaurant_id = ? AND start_date <= ? AND end_date >= ?", restaurantID.String(), date, date).
		Order("start_date ASC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapStoreError(errorSubjectBlockedDate, errorCodeLookup, err)
	}
	blocked, err := mapBlockedDate(model)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBlockedDate, errorCodeInvalid, err)
	}
	return &blocked, nil
}

func (store *Store) ListSlots(ctx context.Context, restaurantID booking.RestaurantID, day time.Time) ([]booking.Slot, error) {
	dayStart := startOfDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	var rows []AvailabilitySlot
	err := store.db.WithContext(ctx).
		Where("restaurant_id = ? AND slot_at >= ? AND slot_at < ?", restaurantID.String(), dayStart, dayEnd).
		Order("slot_at ASC, seating ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectSlot, errorCodeList, err)
	}
	slots := make([]booking.Slot, 0, len(rows))
	for _, row := range rows {
		slot, err := mapSlot(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// ClaimSlotCapacity takes one capacity unit with a single conditional update.
// Concurrent claims serialize on the row and never push booked_count past
// total_capacity.
func (store *Store) ClaimSlotCapacity(ctx context.Context, restaurantID booking.RestaurantID, at time.Time, seating booking.SeatingType) error {
	result := store.db.WithContext(ctx).
		Model(&AvailabilitySlot{}).
		Where("restaurant_id = ? AND slot_at = ? AND seating = ?", restaurantID.String(), at, seating.String()).
		Where("booked_count < total_capacity").
		UpdateColumn("booked_count", gorm.Expr("booked_count + 1"))
	if result.Error != nil {
		return wrapStoreError(errorSubjectSlot, errorCodeClaim, result.Error)
	}
	if result.RowsAffected == 0 {
		exists, err := store.slotExists(ctx, restaurantID, at, seating)
		if err != nil {
			return wrapStoreError(errorSubjectSlot, errorCodeClaim, err)
		}
		if !exists {
			return wrapStoreError(errorSubjectSlot, errorCodeClaim, booking.ErrSlotNotFound)
		}
		return wrapStoreError(errorSubjectSlot, errorCodeClaim, booking.ErrCapacityConflict)
	}
	return nil
}

// ReleaseSlotCapacity returns one capacity unit. Releasing an already empty
// slot is a no-op so repeated cancellations stay idempotent.
func (store *Store) ReleaseSlotCapacity(ctx context.Context, restaurantID booking.RestaurantID, at time.Time, seating booking.SeatingType) error {
	result := store.db.WithContext(ctx).
		Model(&AvailabilitySlot{}).
		Where("restaurant_id = ? AND slot_at = ? AND seating = ?", restaurantID.String(), at, seating.String()).
		Where("booked_count > 0").
		UpdateColumn("booked_count", gorm.Expr("booked_count - 1"))
	if result.Error != nil {
		return wrapStoreError(errorSubjectSlot, errorCodeRelease, result.Error)
	}
	if result.RowsAffected == 0 {
		exists, err := store.slotExists(ctx, restaurantID, at, seating)
		if err != nil {
			return wrapStoreError(errorSubjectSlot, errorCodeRelease, err)
		}
		if !exists {
			return wrapStoreError(errorSubjectSlot, errorCodeRelease, booking.ErrSlotNotFound)
		}
	}
	return nil
}

func (store *Store) slotExists(ctx context.Context, restaurantID booking.RestaurantID, at time.Time, seating booking.SeatingType) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&AvailabilitySlot{}).
		Where("restaurant_id = ? AND slot_at = ? AND seating = ?", restaurantID.String(), at, seating.String()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (store *Store) InsertReservation(ctx context.Context, reservation booking.Reservation) error {
	model := Reservation{
		ReservationID:      reservation.ID.String(),
		RestaurantID:       reservation.RestaurantID.String(),
		CustomerName:       reservation.CustomerName.String(),
		Phone:              reservation.Phone.String(),
		Email:              reservation.Email,
		SlotAt:             reservation.At,
		PartySize:          reservation.PartySize.Int(),
		Seating:            reservation.Seating.String(),
		Status:             reservation.Status.String(),
		ConfirmationCode:   reservation.ConfirmationCode.String(),
		Source:             reservation.Source,
		SpecialRequests:    reservation.SpecialRequests,
		SMSConsent:         reservation.SMSConsent,
		RequestID:          reservation.RequestID.String(),
		CancelledAt:        reservation.CancelledAt,
		CancellationReason: reservation.CancellationReason,
		CreatedAt:          reservation.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isConfirmationCodeConflict(err) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, booking.ErrConfirmationCodeTaken)
	}
	if isRequestConflict(err) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, booking.ErrDuplicateRequest)
	}
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetReservation(ctx context.Context, reservationID booking.ReservationID) (booking.Reservation, error) {
	var model Reservation
	err := store.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, booking.ErrUnknownReservation)
		}
		return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	reservation, err := mapReservation(model)
	if err != nil {
		return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return reservation, nil
}

func (store *Store) FindReservationByRequestID(ctx context.Context, restaurantID booking.RestaurantID, requestID booking.RequestID) (*booking.Reservation, error) {
	var model Reservation
	err := store.db.WithContext(ctx).
		Where("restaurant_id = ? AND request_id = ?", restaurantID.String(), requestID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapStoreError(errorSubjectReservation, errorCodeLookup, err)
	}
	reservation, err := mapReservation(model)
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return &reservation, nil
}

func (store *Store) FindOverlappingReservation(ctx context.Context, restaurantID booking.RestaurantID, phone booking.PhoneNumber, at time.Time, window time.Duration) (*booking.Reservation, error) {
	var model Reservation
	err := store.db.WithContext(ctx).
		Where("restaurant_id = ? AND phone = ?", restaurantID.String(), phone.String()).
		Where("status IN ?", []string{booking.ReservationStatusPending.String(), booking.ReservationStatusConfirmed.String()}).
		Where("slot_at > ? AND slot_at < ?", at.Add(-window), at.Add(window)).
		Order("slot_at ASC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapStoreError(errorSubjectReservation, errorCodeLookup, err)
	}
	reservation, err := mapReservation(model)
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return &reservation, nil
}

func (store *Store) UpdateReservationStatus(ctx context.Context, reservationID booking.ReservationID, from, to booking.ReservationStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("reservation_id = ? AND status = ?", reservationID.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, booking.ErrStatusConflict)
	}
	return nil
}

func (store *Store) SetReservationCancellation(ctx context.Context, reservationID booking.ReservationID, reason string, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("reservation_id = ?", reservationID.String()).
		Updates(map[string]interface{}{
			"cancelled_at":        at,
			"cancellation_reason": reason,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, booking.ErrUnknownReservation)
	}
	return nil
}

func (store *Store) UpdateReservationDetails(ctx context.Context, reservation booking.Reservation) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("reservation_id = ?", reservation.ID.String()).
		Updates(map[string]interface{}{
			"customer_name":    reservation.CustomerName.String(),
			"email":            reservation.Email,
			"slot_at":          reservation.At,
			"party_size":       reservation.PartySize.Int(),
			"seating":          reservation.Seating.String(),
			"special_requests": reservation.SpecialRequests,
			"sms_consent":      reservation.SMSConsent,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, booking.ErrUnknownReservation)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

func mapRestaurant(model Restaurant) (booking.Restaurant, error) {
	restaurantID, err := booking.NewRestaurantID(model.RestaurantID)
	if err != nil {
		return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
	}
	var hours booking.WeeklyHours
	if err := json.Unmarshal(model.Hours, &hours); err != nil {
		return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
	}
	var settings booking.Settings
	if err := json.Unmarshal(model.Settings, &settings); err != nil {
		return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
	}
	return booking.Restaurant{
		ID:       restaurantID,
		Name:     model.Name,
		Timezone: model.Timezone,
		Hours:    hours,
		Settings: settings,
	}, nil
}

// EncodeHours serializes weekly hours for the restaurants table.
func EncodeHours(hours booking.WeeklyHours) (datatypes.JSON, error) {
	raw, err := json.Marshal(hours)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// EncodeSettings serializes booking settings for the restaurants table.
func EncodeSettings(settings booking.Settings) (datatypes.JSON, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func mapSlot(model AvailabilitySlot) (booking.Slot, error) {
	restaurantID, err := booking.NewRestaurantID(model.RestaurantID)
	if err != nil {
		return booking.Slot{}, err
	}
	seating, err := booking.ParseSeatingType(model.Seating)
	if err != nil {
		return booking.Slot{}, err
	}
	return booking.Slot{
		RestaurantID:  restaurantID,
		At:            model.SlotAt,
		Seating:       seating,
		TotalCapacity: model.TotalCapacity,
		BookedCount:   model.BookedCount,
	}, nil
}

func mapBlockedDate(model BlockedDate) (booking.BlockedDate, error) {
	restaurantID, err := booking.NewRestaurantID(model.RestaurantID)
	if err != nil {
		return booking.BlockedDate{}, err
	}
	blockType, err := booking.ParseBlockType(model.Type)
	if err != nil {
		return booking.BlockedDate{}, err
	}
	blocked := booking.BlockedDate{
		RestaurantID: restaurantID,
		Start:        model.StartDate,
		End:          model.EndDate,
		Type:         blockType,
		Reason:       model.Reason,
	}
	if blockType == booking.BlockTypeSpecialHours && model.OverrideOpen != nil && model.OverrideClose != nil {
		blocked.Override = &booking.DayHours{
			Open:  booking.MinuteOfDay(*model.OverrideOpen),
			Close: booking.MinuteOfDay(*model.OverrideClose),
		}
	}
	return blocked, nil
}

func mapReservation(model Reservation) (booking.Reservation, error) {
	reservationID, err := booking.NewReservationID(model.ReservationID)
	if err != nil {
		return booking.Reservation{}, err
	}
	restaurantID, err := booking.NewRestaurantID(model.RestaurantID)
	if err != nil {
		return booking.Reservation{}, err
	}
	customerName, err := booking.NewCustomerName(model.CustomerName)
	if err != nil {
		return booking.Reservation{}, err
	}
	phone, err := booking.NewPhoneNumber(model.Phone)
	if err != nil {
		return booking.Reservation{}, err
	}
	partySize, err := booking.NewPartySize(model.PartySize)
	if err != nil {
		return booking.Reservation{}, err
	}
	seating, err := booking.ParseSeatingType(model.Seating)
	if err != nil {
		return booking.Reservation{}, err
	}
	status, err := booking.ParseReservationStatus(model.Status)
	if err != nil {
		return booking.Reservation{}, err
	}
	confirmationCode, err := booking.ParseConfirmationCode(model.ConfirmationCode)
	if err != nil {
		return booking.Reservation{}, err
	}
	requestID, err := booking.NewRequestID(model.RequestID)
	if err != nil {
		return booking.Reservation{}, err
	}
	return booking.Reservation{
		ID:                 reservationID,
		RestaurantID:       restaurantID,
		CustomerName:       customerName,
		Phone:              phone,
		Email:              model.Email,
		At:                 model.SlotAt,
		PartySize:          partySize,
		Seating:            seating,
		Status:             status,
		ConfirmationCode:   confirmationCode,
		Source:             model.Source,
		SpecialRequests:    model.SpecialRequests,
		SMSConsent:         model.SMSConsent,
		RequestID:          requestID,
		CancelledAt:        model.CancelledAt,
		CancellationReason: model.CancellationReason,
		CreatedAt:          model.CreatedAt,
	}, nil
}

func startOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

func isConfirmationCodeConflict(err error) bool {
	return isUniqueViolation(err, constraintConfirmationCode, "confirmation_code")
}

func isRequestConflict(err error) bool {
	return isUniqueViolation(err, constraintRequestID, "request_id")
}

func isUniqueViolation(err error, constraintName string, columnHint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintName
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode && strings.Contains(err.Error(), columnHint)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return strings.Contains(err.Error(), columnHint)
	}
	return false
}
