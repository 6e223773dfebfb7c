package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oakandember/tablebook/internal/escalation"
	"github.com/oakandember/tablebook/pkg/booking"
)

// CallbackStore implements escalation.Store using GORM. It shares the
// database with Store but carries its own transaction signature.
type CallbackStore struct {
	db *gorm.DB
}

// NewCallbackStore returns a CallbackStore backed by gorm.DB.
func NewCallbackStore(db *gorm.DB) *CallbackStore {
	return &CallbackStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *CallbackStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore escalation.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &CallbackStore{db: transaction})
	})
}

func (store *CallbackStore) CreateCallback(ctx context.Context, callback escalation.Callback) error {
	model := Callback{
		CallbackID:        callback.ID.String(),
		RestaurantID:      callback.RestaurantID.String(),
		CustomerName:      callback.CustomerName,
		Phone:             callback.Phone.String(),
		RequestedTime:     callback.RequestedTime,
		PartySize:         callback.PartySize,
		FailureReason:     callback.FailureReason,
		ErrorCode:         callback.ErrorCode,
		Priority:          callback.Priority.String(),
		Status:            callback.Status.String(),
		ImmediateTransfer: callback.ImmediateTransfer,
		AttemptCount:      callback.AttemptCount,
		LastAttemptAt:     callback.LastAttemptAt,
		ResolutionOutcome: callback.ResolutionOutcome.String(),
		ResolutionNotes:   callback.ResolutionNotes,
		CreatedAt:         callback.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectCallback, errorCodeCreate, err)
	}
	return nil
}

func (store *CallbackStore) GetCallback(ctx context.Context, callbackID escalation.CallbackID) (escalation.Callback, error) {
	var model Callback
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("callback_id = ?", callbackID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return escalation.Callback{}, wrapStoreError(errorSubjectCallback, errorCodeGet, escalation.ErrUnknownCallback)
		}
		return escalation.Callback{}, wrapStoreError(errorSubjectCallback, errorCodeGet, err)
	}
	callback, err := mapCallback(model)
	if err != nil {
		return escalation.Callback{}, wrapStoreError(errorSubjectCallback, errorCodeInvalid, err)
	}
	return callback, nil
}

func (store *CallbackStore) UpdateCallbackStatus(ctx context.Context, callbackID escalation.CallbackID, from, to escalation.Status) error {
	result := store.db.WithContext(ctx).
		Model(&Callback{}).
		Where("callback_id = ? AND status = ?", callbackID.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectCallback, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCallback, errorCodeUpdateStatus, escalation.ErrStatusConflict)
	}
	return nil
}

// RecordAttempt increments the attempt counter and returns the new count.
func (store *CallbackStore) RecordAttempt(ctx context.Context, callbackID escalation.CallbackID, at time.Time) (int, error) {
	result := store.db.WithContext(ctx).
		Model(&Callback{}).
		Where("callback_id = ?", callbackID.String()).
		Updates(map[string]interface{}{
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_attempt_at": at,
		})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectCallback, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, wrapStoreError(errorSubjectCallback, errorCodeUpdate, escalation.ErrUnknownCallback)
	}
	var model Callback
	err := store.db.WithContext(ctx).
		Select("attempt_count").
		Where("callback_id = ?", callbackID.String()).
		Take(&model).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectCallback, errorCodeGet, err)
	}
	return model.AttemptCount, nil
}

func (store *CallbackStore) SetResolution(ctx context.Context, callbackID escalation.CallbackID, outcome escalation.Outcome, notes string) error {
	result := store.db.WithContext(ctx).
		Model(&Callback{}).
		Where("callback_id = ?", callbackID.String()).
		Updates(map[string]interface{}{
			"resolution_outcome": outcome.String(),
			"resolution_notes":   notes,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCallback, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCallback, errorCodeUpdate, escalation.ErrUnknownCallback)
	}
	return nil
}

// ListPending returns open callbacks ordered urgent first, oldest first
// within a priority.
func (store *CallbackStore) ListPending(ctx context.Context, restaurantID booking.RestaurantID, limit int) ([]escalation.Callback, error) {
	var rows []Callback
	err := store.db.WithContext(ctx).
		Where("restaurant_id = ? AND status = ?", restaurantID.String(), escalation.StatusPending.String()).
		Order("case priority when 'urgent' then 3 when 'high' then 2 when 'normal' then 1 else 0 end DESC, created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCallback, errorCodeList, err)
	}
	callbacks := make([]escalation.Callback, 0, len(rows))
	for _, row := range rows {
		callback, err := mapCallback(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCallback, errorCodeInvalid, err)
		}
		callbacks = append(callbacks, callback)
	}
	return callbacks, nil
}

func mapCallback(model Callback) (escalation.Callback, error) {
	callbackID, err := escalation.NewCallbackID(model.CallbackID)
	if err != nil {
		return escalation.Callback{}, err
	}
	restaurantID, err := booking.NewRestaurantID(model.RestaurantID)
	if err != nil {
		return escalation.Callback{}, err
	}
	priority, err := escalation.ParsePriority(model.Priority)
	if err != nil {
		return escalation.Callback{}, err
	}
	status, err := escalation.ParseStatus(model.Status)
	if err != nil {
		return escalation.Callback{}, err
	}
	var phone booking.PhoneNumber
	if model.Phone != "" {
		phone, err = booking.NewPhoneNumber(model.Phone)
		if err != nil {
			return escalation.Callback{}, err
		}
	}
	var outcome escalation.Outcome
	if model.ResolutionOutcome != "" {
		outcome, err = escalation.ParseOutcome(model.ResolutionOutcome)
		if err != nil {
			return escalation.Callback{}, err
		}
	}
	return escalation.Callback{
		ID:                callbackID,
		RestaurantID:      restaurantID,
		CustomerName:      model.CustomerName,
		Phone:             phone,
		RequestedTime:     model.RequestedTime,
		PartySize:         model.PartySize,
		FailureReason:     model.FailureReason,
		ErrorCode:         model.ErrorCode,
		Priority:          priority,
		Status:            status,
		ImmediateTransfer: model.ImmediateTransfer,
		AttemptCount:      model.AttemptCount,
		LastAttemptAt:     model.LastAttemptAt,
		ResolutionOutcome: outcome,
		ResolutionNotes:   model.ResolutionNotes,
		CreatedAt:         model.CreatedAt,
	}, nil
}
