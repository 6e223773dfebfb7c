package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oakandember/tablebook/pkg/booking"
)

// RestaurantLister enumerates the restaurants the runner evaluates.
type RestaurantLister interface {
	ListRestaurantIDs(ctx context.Context) ([]booking.RestaurantID, error)
}

// Runner evaluates every restaurant on a fixed interval, independent of call
// traffic, and caches the latest snapshots for read endpoints.
type Runner struct {
	monitor  *Monitor
	lister   RestaurantLister
	interval time.Duration
	logger   *zap.Logger

	mutex     sync.RWMutex
	snapshots map[booking.RestaurantID]Snapshot
}

// NewRunner wires a Runner around an evaluated Monitor.
func NewRunner(monitor *Monitor, lister RestaurantLister, logger *zap.Logger) (*Runner, error) {
	if monitor == nil {
		return nil, fmt.Errorf("%w: monitor dependency is nil", ErrInvalidConfig)
	}
	if lister == nil {
		return nil, fmt.Errorf("%w: lister dependency is nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		monitor:   monitor,
		lister:    lister,
		interval:  monitor.config.EvaluationInterval,
		logger:    logger,
		snapshots: make(map[booking.RestaurantID]Snapshot),
	}, nil
}

// Run blocks, evaluating all restaurants on the configured interval until the
// context is cancelled. The first sweep happens immediately.
func (runner *Runner) Run(ctx context.Context) {
	runner.sweep(ctx)
	ticker := time.NewTicker(runner.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runner.sweep(ctx)
		}
	}
}

func (runner *Runner) sweep(ctx context.Context) {
	restaurantIDs, err := runner.lister.ListRestaurantIDs(ctx)
	if err != nil {
		runner.logger.Warn("health sweep could not list restaurants", zap.Error(err))
		return
	}
	for _, restaurantID := range restaurantIDs {
		snapshot, err := runner.monitor.Evaluate(ctx, restaurantID)
		if err != nil {
			runner.logger.Warn("health evaluation failed",
				zap.String("restaurant_id", restaurantID.String()),
				zap.Error(err))
			continue
		}
		runner.record(snapshot)
	}
}

func (runner *Runner) record(snapshot Snapshot) {
	runner.mutex.Lock()
	previous, known := runner.snapshots[snapshot.RestaurantID]
	runner.snapshots[snapshot.RestaurantID] = snapshot
	runner.mutex.Unlock()

	if known && previous.Status == snapshot.Status {
		return
	}
	fields := []zap.Field{
		zap.String("restaurant_id", snapshot.RestaurantID.String()),
		zap.String("status", string(snapshot.Status)),
		zap.Int("alerts", len(snapshot.Alerts)),
	}
	switch snapshot.Status {
	case StatusCritical:
		runner.logger.Error("restaurant health critical", fields...)
	case StatusDegraded:
		runner.logger.Warn("restaurant health degraded", fields...)
	default:
		runner.logger.Info("restaurant health recovered", fields...)
	}
}

// Latest returns the cached snapshot for a restaurant, if one exists yet.
func (runner *Runner) Latest(restaurantID booking.RestaurantID) (Snapshot, bool) {
	runner.mutex.RLock()
	defer runner.mutex.RUnlock()
	snapshot, known := runner.snapshots[restaurantID]
	return snapshot, known
}
