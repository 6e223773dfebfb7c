// Package pgstore implements the booking and escalation stores directly on
// pgx for postgres deployments that bypass the ORM. It shares the schema
// created for gormstore; table and constraint names must stay in sync.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakandember/tablebook/internal/escalation"
	"github.com/oakandember/tablebook/internal/health"
	"github.com/oakandember/tablebook/pkg/booking"
)

const (
	constraintConfirmationCode = "uniq_reservations_confirmation_code"
	constraintRequestID        = "uniq_reservations_request"
	pgUniqueViolationCode      = "23505"
	errorOperationStore        = "store"
	errorSubjectRestaurant     = "restaurant"
	errorSubjectSlot           = "slot"
	errorSubjectBlockedDate    = "blocked_date"
	errorSubjectReservation    = "reservation"
	errorSubjectCallback       = "callback"
	errorSubjectCallRecord     = "call_record"
	errorSubjectMetrics        = "metrics"
	errorSubjectTransaction    = "transaction"
	errorCodeBegin             = "begin"
	errorCodeClaim             = "claim"
	errorCodeCommit            = "commit"
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

	sqlSelectRestaurant = `
		select restaurant_id, name, timezone, hours, settings
		from restaurants
		where restaurant_id = $1
	`

	sqlListRestaurantIDs = `
		select restaurant_id from restaurants order by restaurant_id asc
	`

	sqlFindBlockedDate = `
		select restaurant_id, start_date, end_date, type, override_open, override_close, coalesce(reason,'')
		from blocked_dates
		where restaurant_id = $1 and start_date <= $2 and end_date >= $2
		order by start_date asc
		limit 1
	`

	sqlListSlots = `
		select restaurant_id, slot_at, seating, total_capacity, booked_count
		from availability_slots
		where restaurant_id = $1 and slot_at >= $2 and slot_at < $3
		order by slot_at asc, seating asc
	`

	sqlClaimSlot = `
		update availability_slots
		set booked_count = booked_count + 1
		where restaurant_id = $1 and slot_at = $2 and seating = $3 and booked_count < total_capacity
	`

	sqlReleaseSlot = `
		update availability_slots
		set booked_count = booked_count - 1
		where restaurant_id = $1 and slot_at = $2 and seating = $3 and booked_count > 0
	`

	sqlSlotExists = `
		select count(*) from availability_slots
		where restaurant_id = $1 and slot_at = $2 and seating = $3
	`

	sqlInsertReservation = `
		insert into reservations(
			reservation_id, restaurant_id, customer_name, phone, email, slot_at,
			party_size, seating, status, confirmation_code, source,
			special_requests, sms_consent, request_id, cancelled_at,
			cancellation_reason, created_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	reservationColumns = `
		reservation_id, restaurant_id, customer_name, phone, coalesce(email,''),
		slot_at, party_size, seating, status, confirmation_code, source,
		coalesce(special_requests,''), sms_consent, request_id, cancelled_at,
		coalesce(cancellation_reason,''), created_at
	`

	sqlSelectReservation = `
		select ` + reservationColumns + `
		from reservations
		where reservation_id = $1
	`

	sqlSelectReservationByRequest = `
		select ` + reservationColumns + `
		from reservations
		where restaurant_id = $1 and request_id = $2
	`

	sqlSelectOverlappingReservation = `
		select ` + reservationColumns + `
		from reservations
		where restaurant_id = $1 and phone = $2
		and status in ('pending','confirmed')
		and slot_at > $3 and slot_at < $4
		order by slot_at asc
		limit 1
	`

	sqlUpdateReservationStatus = `
		update reservations
		set status = $3
		where reservation_id = $1 and status = $2
	`

	sqlSetReservationCancellation = `
		update reservations
		set cancelled_at = $2, cancellation_reason = $3
		where reservation_id = $1
	`

	sqlUpdateReservationDetails = `
		update reservations
		set customer_name = $2, email = $3, slot_at = $4, party_size = $5,
			seating = $6, special_requests = $7, sms_consent = $8
		where reservation_id = $1
	`

	sqlInsertCallback = `
		insert into callbacks(
			callback_id, restaurant_id, customer_name, phone, requested_time,
			party_size, failure_reason, error_code, priority, status,
			immediate_transfer, attempt_count, last_attempt_at,
			resolution_outcome, resolution_notes, created_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	callbackColumns = `
		callback_id, restaurant_id, coalesce(customer_name,''), coalesce(phone,''),
		requested_time, party_size, failure_reason, coalesce(error_code,''),
		priority, status, immediate_transfer, attempt_count, last_attempt_at,
		coalesce(resolution_outcome,''), coalesce(resolution_notes,''), created_at
	`

	sqlSelectCallback = `
		select ` + callbackColumns + `
		from callbacks
		where callback_id = $1
		for update
	`

	sqlUpdateCallbackStatus = `
		update callbacks
		set status = $3
		where callback_id = $1 and status = $2
	`

	sqlRecordAttempt = `
		update callbacks
		set attempt_count = attempt_count + 1, last_attempt_at = $2
		where callback_id = $1
		returning attempt_count
	`

	sqlSetResolution = `
		update callbacks
		set resolution_outcome = $2, resolution_notes = $3
		where callback_id = $1
	`

	sqlListPendingCallbacks = `
		select ` + callbackColumns + `
		from callbacks
		where restaurant_id = $1 and status = 'pending'
		order by case priority when 'urgent' then 3 when 'high' then 2 when 'normal' then 1 else 0 end desc,
			created_at asc
		limit $2
	`

	sqlInsertCallRecord = `
		insert into call_records(record_id, restaurant_id, status, booking_attempted, booking_succeeded, ended_at)
		values($1, $2, $3, $4, $5, $6)
	`

	sqlCallCounts = `
		select count(*),
			coalesce(sum(case when status = $3 then 1 else 0 end),0),
			coalesce(sum(case when status = $4 then 1 else 0 end),0)
		from call_records
		where restaurant_id = $1 and ended_at >= $2
	`

	sqlBookingCounts = `
		select coalesce(sum(case when booking_attempted then 1 else 0 end),0),
			coalesce(sum(case when booking_succeeded then 1 else 0 end),0)
		from call_records
		where restaurant_id = $1 and ended_at >= $2
	`

	sqlPendingCallbackStats = `
		select count(*), min(created_at)
		from callbacks
		where restaurant_id = $1 and status = 'pending'
	`
)

// querier is the pgx surface shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store implements booking.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// WithTx executes fn within a transaction. Nested calls run on the open
// transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	if _, inTransaction := store.db.(pgx.Tx); inTransaction {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &Store{pool: store.pool, db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) GetRestaurant(ctx context.Context, restaurantID booking.RestaurantID) (booking.Restaurant, error) {
	var (
		idValue     string
		name        string
		timezone    string
		hoursRaw    []byte
		settingsRaw []byte
	)
	err := store.db.QueryRow(ctx, sqlSelectRestaurant, restaurantID.String()).
		Scan(&idValue, &name, &timezone, &hoursRaw, &settingsRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeGet, booking.ErrUnknownRestaurant)
		}
		return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeGet, err)
	}
	parsedID, err := booking.NewRestaurantID(idValue)
	if err != nil {
		return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
	}
	var hours booking.WeeklyHours
	if err := json.Unmarshal(hoursRaw, &hours); err != nil {
		return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
	}
	var settings booking.Settings
	if err := json.Unmarshal(settingsRaw, &settings); err != nil {
		return booking.Restaurant{}, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
	}
	return booking.Restaurant{
		ID:       parsedID,
		Name:     name,
		Timezone: timezone,
		Hours:    hours,
		Settings: settings,
	}, nil
}

func (store *Store) FindBlockedDate(ctx context.Context, restaurantID booking.RestaurantID, day time.Time) (*booking.BlockedDate, error) {
	var (
		idValue       string
		startDate     time.Time
		endDate       time.Time
		typeValue     string
		overrideOpen  *int
		overrideClose *int
		reason        string
	)
	err := store.db.QueryRow(ctx, sqlFindBlockedDate, restaurantID.String(), startOfDay(day)).
		Scan(&idValue, &startDate, &endDate, &typeValue, &overrideOpen, &overrideClose, &reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreError(errorSubjectBlockedDate, errorCodeLookup, err)
	}
	parsedID, err := booking.NewRestaurantID(idValue)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBlockedDate, errorCodeInvalid, err)
	}
	blockType, err := booking.ParseBlockType(typeValue)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBlockedDate, errorCodeInvalid, err)
	}
	blocked := booking.BlockedDate{
		RestaurantID: parsedID,
		Start:        startDate,
		End:          endDate,
		Type:         blockType,
		Reason:       reason,
	}
	if blockType == booking.BlockTypeSpecialHours && overrideOpen != nil && overrideClose != nil {
		blocked.Override = &booking.DayHours{
			Open:  booking.MinuteOfDay(*overrideOpen),
			Close: booking.MinuteOfDay(*overrideClose),
		}
	}
	return &blocked, nil
}

func (store *Store) ListSlots(ctx context.Context, restaurantID booking.RestaurantID, day time.Time) ([]booking.Slot, error) {
	dayStart := startOfDay(day)
	rows, err := store.db.Query(ctx, sqlListSlots, restaurantID.String(), dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, wrapStoreError(errorSubjectSlot, errorCodeList, err)
	}
	defer rows.Close()
	slots := make([]booking.Slot, 0, 16)
	for rows.Next() {
		var (
			idValue       string
			slotAt        time.Time
			seatingValue  string
			totalCapacity int
			bookedCount   int
		)
		if err := rows.Scan(&idValue, &slotAt, &seatingValue, &totalCapacity, &bookedCount); err != nil {
			return nil, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
		}
		parsedID, err := booking.NewRestaurantID(idValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
		}
		seating, err := booking.ParseSeatingType(seatingValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
		}
		slots = append(slots, booking.Slot{
			RestaurantID:  parsedID,
			At:            slotAt,
			Seating:       seating,
			TotalCapacity: totalCapacity,
			BookedCount:   bookedCount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectSlot, errorCodeList, err)
	}
	return slots, nil
}

// ClaimSlotCapacity takes one capacity unit with a single conditional update.
func (store *Store) ClaimSlotCapacity(ctx context.Context, restaurantID booking.RestaurantID, at time.Time, seating booking.SeatingType) error {
	tag, err := store.db.Exec(ctx, sqlClaimSlot, restaurantID.String(), at, seating.String())
	if err != nil {
		return wrapStoreError(errorSubjectSlot, errorCodeClaim, err)
	}
	if tag.RowsAffected() == 0 {
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

// ReleaseSlotCapacity returns one capacity unit; releasing an empty slot is a
// no-op.
func (store *Store) ReleaseSlotCapacity(ctx context.Context, restaurantID booking.RestaurantID, at time.Time, seating booking.SeatingType) error {
	tag, err := store.db.Exec(ctx, sqlReleaseSlot, restaurantID.String(), at, seating.String())
	if err != nil {
		return wrapStoreError(errorSubjectSlot, errorCodeRelease, err)
	}
	if tag.RowsAffected() == 0 {
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
	err := store.db.QueryRow(ctx, sqlSlotExists, restaurantID.String(), at, seating.String()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (store *Store) InsertReservation(ctx context.Context, reservation booking.Reservation) error {
	createdAt := reservation.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := store.db.Exec(ctx, sqlInsertReservation,
		reservation.ID.String(),
		reservation.RestaurantID.String(),
		reservation.CustomerName.String(),
		reservation.Phone.String(),
		reservation.Email,
		reservation.At,
		reservation.PartySize.Int(),
		reservation.Seating.String(),
		reservation.Status.String(),
		reservation.ConfirmationCode.String(),
		reservation.Source,
		reservation.SpecialRequests,
		reservation.SMSConsent,
		reservation.RequestID.String(),
		reservation.CancelledAt,
		reservation.CancellationReason,
		createdAt,
	)
	if isUniqueViolation(err, constraintConfirmationCode) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, booking.ErrConfirmationCodeTaken)
	}
	if isUniqueViolation(err, constraintRequestID) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, booking.ErrDuplicateRequest)
	}
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetReservation(ctx context.Context, reservationID booking.ReservationID) (booking.Reservation, error) {
	reservation, err := scanReservation(store.db.QueryRow(ctx, sqlSelectReservation, reservationID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, booking.ErrUnknownReservation)
		}
		return booking.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	return reservation, nil
}

func (store *Store) FindReservationByRequestID(ctx context.Context, restaurantID booking.RestaurantID, requestID booking.RequestID) (*booking.Reservation, error) {
	reservation, err := scanReservation(store.db.QueryRow(ctx, sqlSelectReservationByRequest, restaurantID.String(), requestID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreError(errorSubjectReservation, errorCodeLookup, err)
	}
	return &reservation, nil
}

func (store *Store) FindOverlappingReservation(ctx context.Context, restaurantID booking.RestaurantID, phone booking.PhoneNumber, at time.Time, window time.Duration) (*booking.Reservation, error) {
	reservation, err := scanReservation(store.db.QueryRow(ctx, sqlSelectOverlappingReservation,
		restaurantID.String(), phone.String(), at.Add(-window), at.Add(window)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStoreError(errorSubjectReservation, errorCodeLookup, err)
	}
	return &reservation, nil
}

func (store *Store) UpdateReservationStatus(ctx context.Context, reservationID booking.ReservationID, from, to booking.ReservationStatus) error {
	tag, err := store.db.Exec(ctx, sqlUpdateReservationStatus, reservationID.String(), from.String(), to.String())
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, booking.ErrStatusConflict)
	}
	return nil
}

func (store *Store) SetReservationCancellation(ctx context.Context, reservationID booking.ReservationID, reason string, at time.Time) error {
	tag, err := store.db.Exec(ctx, sqlSetReservationCancellation, reservationID.String(), at, reason)
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, booking.ErrUnknownReservation)
	}
	return nil
}

func (store *Store) UpdateReservationDetails(ctx context.Context, reservation booking.Reservation) error {
	tag, err := store.db.Exec(ctx, sqlUpdateReservationDetails,
		reservation.ID.String(),
		reservation.CustomerName.String(),
		reservation.Email,
		reservation.At,
		reservation.PartySize.Int(),
		reservation.Seating.String(),
		reservation.SpecialRequests,
		reservation.SMSConsent,
	)
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, booking.ErrUnknownReservation)
	}
	return nil
}

// InsertCallRecord persists one finished-call report.
func (store *Store) InsertCallRecord(ctx context.Context, record health.CallRecord) error {
	endedAt := record.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	_, err := store.db.Exec(ctx, sqlInsertCallRecord,
		uuid.NewString(),
		record.RestaurantID.String(),
		string(record.Status),
		record.BookingAttempted,
		record.BookingSucceeded,
		endedAt,
	)
	if err != nil {
		return wrapStoreError(errorSubjectCallRecord, errorCodeInsert, err)
	}
	return nil
}

// CallCounts returns total, failed, and completed call counts since a cutoff.
func (store *Store) CallCounts(ctx context.Context, restaurantID booking.RestaurantID, since time.Time) (int, int, int, error) {
	var total, failed, completed int64
	err := store.db.QueryRow(ctx, sqlCallCounts, restaurantID.String(), since,
		string(health.CallStatusFailed), string(health.CallStatusCompleted)).
		Scan(&total, &failed, &completed)
	if err != nil {
		return 0, 0, 0, wrapStoreError(errorSubjectMetrics, errorCodeLookup, err)
	}
	return int(total), int(failed), int(completed), nil
}

// BookingCounts returns attempted and succeeded booking counts since a cutoff.
func (store *Store) BookingCounts(ctx context.Context, restaurantID booking.RestaurantID, since time.Time) (int, int, error) {
	var attempted, succeeded int64
	err := store.db.QueryRow(ctx, sqlBookingCounts, restaurantID.String(), since).
		Scan(&attempted, &succeeded)
	if err != nil {
		return 0, 0, wrapStoreError(errorSubjectMetrics, errorCodeLookup, err)
	}
	return int(attempted), int(succeeded), nil
}

// PendingCallbackStats returns the open callback backlog and its oldest entry.
func (store *Store) PendingCallbackStats(ctx context.Context, restaurantID booking.RestaurantID) (int, *time.Time, error) {
	var (
		total  int64
		oldest *time.Time
	)
	err := store.db.QueryRow(ctx, sqlPendingCallbackStats, restaurantID.String()).Scan(&total, &oldest)
	if err != nil {
		return 0, nil, wrapStoreError(errorSubjectMetrics, errorCodeLookup, err)
	}
	return int(total), oldest, nil
}

// ListRestaurantIDs enumerates configured restaurants for the health sweep.
func (store *Store) ListRestaurantIDs(ctx context.Context) ([]booking.RestaurantID, error) {
	rows, err := store.db.Query(ctx, sqlListRestaurantIDs)
	if err != nil {
		return nil, wrapStoreError(errorSubjectRestaurant, errorCodeList, err)
	}
	defer rows.Close()
	restaurantIDs := make([]booking.RestaurantID, 0, 8)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
		}
		restaurantID, err := booking.NewRestaurantID(raw)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
		}
		restaurantIDs = append(restaurantIDs, restaurantID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectRestaurant, errorCodeList, err)
	}
	return restaurantIDs, nil
}

// CallbackStore implements escalation.Store on the same pool. It is a
// separate type because the escalation transaction signature differs.
type CallbackStore struct {
	pool *pgxpool.Pool
	db   querier
}

// NewCallbackStore returns a CallbackStore backed by a pgx pool.
func NewCallbackStore(pool *pgxpool.Pool) *CallbackStore {
	return &CallbackStore{pool: pool, db: pool}
}

// WithTx executes fn within a transaction.
func (store *CallbackStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore escalation.Store) error) error {
	if _, inTransaction := store.db.(pgx.Tx); inTransaction {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &CallbackStore{pool: store.pool, db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *CallbackStore) CreateCallback(ctx context.Context, callback escalation.Callback) error {
	createdAt := callback.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := store.db.Exec(ctx, sqlInsertCallback,
		callback.ID.String(),
		callback.RestaurantID.String(),
		callback.CustomerName,
		callback.Phone.String(),
		callback.RequestedTime,
		callback.PartySize,
		callback.FailureReason,
		callback.ErrorCode,
		callback.Priority.String(),
		callback.Status.String(),
		callback.ImmediateTransfer,
		callback.AttemptCount,
		callback.LastAttemptAt,
		callback.ResolutionOutcome.String(),
		callback.ResolutionNotes,
		createdAt,
	)
	if err != nil {
		return wrapStoreError(errorSubjectCallback, errorCodeCreate, err)
	}
	return nil
}

func (store *CallbackStore) GetCallback(ctx context.Context, callbackID escalation.CallbackID) (escalation.Callback, error) {
	callback, err := scanCallback(store.db.QueryRow(ctx, sqlSelectCallback, callbackID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return escalation.Callback{}, wrapStoreError(errorSubjectCallback, errorCodeGet, escalation.ErrUnknownCallback)
		}
		return escalation.Callback{}, wrapStoreError(errorSubjectCallback, errorCodeGet, err)
	}
	return callback, nil
}

func (store *CallbackStore) UpdateCallbackStatus(ctx context.Context, callbackID escalation.CallbackID, from, to escalation.Status) error {
	tag, err := store.db.Exec(ctx, sqlUpdateCallbackStatus, callbackID.String(), from.String(), to.String())
	if err != nil {
		return wrapStoreError(errorSubjectCallback, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectCallback, errorCodeUpdateStatus, escalation.ErrStatusConflict)
	}
	return nil
}

// RecordAttempt increments the attempt counter and returns the new count.
func (store *CallbackStore) RecordAttempt(ctx context.Context, callbackID escalation.CallbackID, at time.Time) (int, error) {
	var attempts int
	err := store.db.QueryRow(ctx, sqlRecordAttempt, callbackID.String(), at).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, wrapStoreError(errorSubjectCallback, errorCodeUpdate, escalation.ErrUnknownCallback)
		}
		return 0, wrapStoreError(errorSubjectCallback, errorCodeUpdate, err)
	}
	return attempts, nil
}

func (store *CallbackStore) SetResolution(ctx context.Context, callbackID escalation.CallbackID, outcome escalation.Outcome, notes string) error {
	tag, err := store.db.Exec(ctx, sqlSetResolution, callbackID.String(), outcome.String(), notes)
	if err != nil {
		return wrapStoreError(errorSubjectCallback, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectCallback, errorCodeUpdate, escalation.ErrUnknownCallback)
	}
	return nil
}

// ListPending returns open callbacks ordered urgent first, oldest first
// within a priority.
func (store *CallbackStore) ListPending(ctx context.Context, restaurantID booking.RestaurantID, limit int) ([]escalation.Callback, error) {
	rows, err := store.db.Query(ctx, sqlListPendingCallbacks, restaurantID.String(), limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectCallback, errorCodeList, err)
	}
	defer rows.Close()
	callbacks := make([]escalation.Callback, 0, 16)
	for rows.Next() {
		callback, err := scanCallback(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCallback, errorCodeInvalid, err)
		}
		callbacks = append(callbacks, callback)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectCallback, errorCodeList, err)
	}
	return callbacks, nil
}

func scanReservation(row rowScanner) (booking.Reservation, error) {
	var (
		reservationIDValue string
		restaurantIDValue  string
		customerNameValue  string
		phoneValue         string
		email              string
		slotAt             time.Time
		partySizeValue     int
		seatingValue       string
		statusValue        string
		codeValue          string
		source             string
		specialRequests    string
		smsConsent         bool
		requestIDValue     string
		cancelledAt        *time.Time
		cancellationReason string
		createdAt          time.Time
	)
	if err := row.Scan(
		&reservationIDValue,
		&restaurantIDValue,
		&customerNameValue,
		&phoneValue,
		&email,
		&slotAt,
		&partySizeValue,
		&seatingValue,
		&statusValue,
		&codeValue,
		&source,
		&specialRequests,
		&smsConsent,
		&requestIDValue,
		&cancelledAt,
		&cancellationReason,
		&createdAt,
	); err != nil {
		return booking.Reservation{}, err
	}
	reservationID, err := booking.NewReservationID(reservationIDValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	restaurantID, err := booking.NewRestaurantID(restaurantIDValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	customerName, err := booking.NewCustomerName(customerNameValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	phone, err := booking.NewPhoneNumber(phoneValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	partySize, err := booking.NewPartySize(partySizeValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	seating, err := booking.ParseSeatingType(seatingValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	status, err := booking.ParseReservationStatus(statusValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	confirmationCode, err := booking.ParseConfirmationCode(codeValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	requestID, err := booking.NewRequestID(requestIDValue)
	if err != nil {
		return booking.Reservation{}, err
	}
	return booking.Reservation{
		ID:                 reservationID,
		RestaurantID:       restaurantID,
		CustomerName:       customerName,
		Phone:              phone,
		Email:              email,
		At:                 slotAt,
		PartySize:          partySize,
		Seating:            seating,
		Status:             status,
		ConfirmationCode:   confirmationCode,
		Source:             source,
		SpecialRequests:    specialRequests,
		SMSConsent:         smsConsent,
		RequestID:          requestID,
		CancelledAt:        cancelledAt,
		CancellationReason: cancellationReason,
		CreatedAt:          createdAt,
	}, nil
}

func scanCallback(row rowScanner) (escalation.Callback, error) {
	var (
		callbackIDValue   string
		restaurantIDValue string
		customerName      string
		phoneValue        string
		requestedTime     time.Time
		partySize         int
		failureReason     string
		errorCode         string
		priorityValue     string
		statusValue       string
		immediateTransfer bool
		attemptCount      int
		lastAttemptAt     *time.Time
		outcomeValue      string
		resolutionNotes   string
		createdAt         time.Time
	)
	if err := row.Scan(
		&callbackIDValue,
		&restaurantIDValue,
		&customerName,
		&phoneValue,
		&requestedTime,
		&partySize,
		&failureReason,
		&errorCode,
		&priorityValue,
		&statusValue,
		&immediateTransfer,
		&attemptCount,
		&lastAttemptAt,
		&outcomeValue,
		&resolutionNotes,
		&createdAt,
	); err != nil {
		return escalation.Callback{}, err
	}
	callbackID, err := escalation.NewCallbackID(callbackIDValue)
	if err != nil {
		return escalation.Callback{}, err
	}
	restaurantID, err := booking.NewRestaurantID(restaurantIDValue)
	if err != nil {
		return escalation.Callback{}, err
	}
	priority, err := escalation.ParsePriority(priorityValue)
	if err != nil {
		return escalation.Callback{}, err
	}
	status, err := escalation.ParseStatus(statusValue)
	if err != nil {
		return escalation.Callback{}, err
	}
	var phone booking.PhoneNumber
	if phoneValue != "" {
		phone, err = booking.NewPhoneNumber(phoneValue)
		if err != nil {
			return escalation.Callback{}, err
		}
	}
	var outcome escalation.Outcome
	if outcomeValue != "" {
		outcome, err = escalation.ParseOutcome(outcomeValue)
		if err != nil {
			return escalation.Callback{}, err
		}
	}
	return escalation.Callback{
		ID:                callbackID,
		RestaurantID:      restaurantID,
		CustomerName:      customerName,
		Phone:             phone,
		RequestedTime:     requestedTime,
		PartySize:         partySize,
		FailureReason:     failureReason,
		ErrorCode:         errorCode,
		Priority:          priority,
		Status:            status,
		ImmediateTransfer: immediateTransfer,
		AttemptCount:      attemptCount,
		LastAttemptAt:     lastAttemptAt,
		ResolutionOutcome: outcome,
		ResolutionNotes:   resolutionNotes,
		CreatedAt:         createdAt,
	}, nil
}

func startOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintName
	}
	return false
}
