package gormstore

import (
	"context"
	"time"

	"github.com/oakandember/tablebook/internal/escalation"
	"github.com/oakandember/tablebook/internal/health"
	"github.com/oakandember/tablebook/pkg/booking"
)

// InsertCallRecord persists one finished-call report.
func (store *Store) InsertCallRecord(ctx context.Context, record health.CallRecord) error {
	model := CallRecord{
		RestaurantID:     record.RestaurantID.String(),
		Status:           string(record.Status),
		BookingAttempted: record.BookingAttempted,
		BookingSucceeded: record.BookingSucceeded,
		EndedAt:          record.EndedAt,
	}
	if model.EndedAt.IsZero() {
		model.EndedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectCallRecord, errorCodeInsert, err)
	}
	return nil
}

// CallCounts returns total, failed, and completed call counts since a cutoff.
func (store *Store) CallCounts(ctx context.Context, restaurantID booking.RestaurantID, since time.Time) (int, int, int, error) {
	var counts struct {
		Total     int64
		Failed    int64
		Completed int64
	}
	err := store.db.WithContext(ctx).
		Model(&CallRecord{}).
		Select(
			"count(*) as total, "+
				"coalesce(sum(case when status = ? then 1 else 0 end),0) as failed, "+
				"coalesce(sum(case when status = ? then 1 else 0 end),0) as completed",
			string(health.CallStatusFailed), string(health.CallStatusCompleted)).
		Where("restaurant_id = ? AND ended_at >= ?", restaurantID.String(), since).
		Scan(&counts).Error
	if err != nil {
		return 0, 0, 0, wrapStoreError(errorSubjectMetrics, errorCodeLookup, err)
	}
	return int(counts.Total), int(counts.Failed), int(counts.Completed), nil
}

// BookingCounts returns attempted and succeeded booking counts since a cutoff.
func (store *Store) BookingCounts(ctx context.Context, restaurantID booking.RestaurantID, since time.Time) (int, int, error) {
	var counts struct {
		Attempted int64
		Succeeded int64
	}
	err := store.db.WithContext(ctx).
		Model(&CallRecord{}).
		Select(
			"coalesce(sum(case when booking_attempted then 1 else 0 end),0) as attempted, "+
				"coalesce(sum(case when booking_succeeded then 1 else 0 end),0) as succeeded").
		Where("restaurant_id = ? AND ended_at >= ?", restaurantID.String(), since).
		Scan(&counts).Error
	if err != nil {
		return 0, 0, wrapStoreError(errorSubjectMetrics, errorCodeLookup, err)
	}
	return int(counts.Attempted), int(counts.Succeeded), nil
}

// PendingCallbackStats returns the open callback backlog and its oldest entry.
func (store *Store) PendingCallbackStats(ctx context.Context, restaurantID booking.RestaurantID) (int, *time.Time, error) {
	var stats struct {
		Total  int64
		Oldest *time.Time
	}
	err := store.db.WithContext(ctx).
		Model(&Callback{}).
		Select("count(*) as total, min(created_at) as oldest").
		Where("restaurant_id = ? AND status = ?", restaurantID.String(), escalation.StatusPending.String()).
		Scan(&stats).Error
	if err != nil {
		return 0, nil, wrapStoreError(errorSubjectMetrics, errorCodeLookup, err)
	}
	return int(stats.Total), stats.Oldest, nil
}

// ListRestaurantIDs enumerates configured restaurants for the health sweep.
func (store *Store) ListRestaurantIDs(ctx context.Context) ([]booking.RestaurantID, error) {
	var rawIDs []string
	err := store.db.WithContext(ctx).
		Model(&Restaurant{}).
		Order("restaurant_id ASC").
		Pluck("restaurant_id", &rawIDs).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRestaurant, errorCodeList, err)
	}
	restaurantIDs := make([]booking.RestaurantID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		restaurantID, err := booking.NewRestaurantID(raw)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRestaurant, errorCodeInvalid, err)
		}
		restaurantIDs = append(restaurantIDs, restaurantID)
	}
	return restaurantIDs, nil
}
