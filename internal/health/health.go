package health

import (
	"context"
	"fmt"
	"time"

	"github.com/oakandember/tablebook/pkg/booking"
)

// Status orders overall health severity.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

func (status Status) rank() int {
	switch status {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Thresholds is a warning/critical pair for one metric. Direction depends on
// the metric: rates of failure and counts breach upward, success rates breach
// downward.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// Config holds the rolling-window and per-metric thresholds. Injected at
// construction so thresholds stay restaurant-operator tunable and testable.
type Config struct {
	Window                       time.Duration
	EvaluationInterval           time.Duration
	CallErrorRate                Thresholds
	CallCompletionRate           Thresholds
	BookingSuccessRate           Thresholds
	PendingCallbackCount         Thresholds
	OldestPendingCallbackMinutes Thresholds
}

// Validate normalizes zero values to defaults.
func (config *Config) Validate() error {
	if config.Window == 0 {
		config.Window = 10 * time.Minute
	}
	if config.EvaluationInterval == 0 {
		config.EvaluationInterval = 30 * time.Second
	}
	if config.CallErrorRate == (Thresholds{}) {
		config.CallErrorRate = Thresholds{Warning: 0.10, Critical: 0.20}
	}
	if config.CallCompletionRate == (Thresholds{}) {
		config.CallCompletionRate = Thresholds{Warning: 0.80, Critical: 0.60}
	}
	if config.BookingSuccessRate == (Thresholds{}) {
		config.BookingSuccessRate = Thresholds{Warning: 0.80, Critical: 0.60}
	}
	if config.PendingCallbackCount == (Thresholds{}) {
		config.PendingCallbackCount = Thresholds{Warning: 5, Critical: 10}
	}
	if config.OldestPendingCallbackMinutes == (Thresholds{}) {
		config.OldestPendingCallbackMinutes = Thresholds{Warning: 30, Critical: 60}
	}
	if config.Window < 0 || config.EvaluationInterval < 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	}
	return nil
}

// Metric names used in alerts.
const (
	MetricCallErrorRate        = "call_error_rate"
	MetricCallCompletionRate   = "call_completion_rate"
	MetricBookingSuccessRate   = "booking_success_rate"
	MetricPendingCallbackCount = "pending_callback_count"
	MetricOldestPendingMinutes = "oldest_pending_callback_minutes"
)

// Alert is one breached threshold.
type Alert struct {
	Metric    string  `json:"metric"`
	Observed  float64 `json:"observed"`
	Threshold float64 `json:"threshold"`
	Severity  Status  `json:"severity"`
}

// Metrics are the rolling-window observations behind a snapshot.
type Metrics struct {
	CallsTotal            int           `json:"calls_total"`
	CallsFailed           int           `json:"calls_failed"`
	CallsCompleted        int           `json:"calls_completed"`
	CallErrorRate         float64       `json:"call_error_rate"`
	CallCompletionRate    float64       `json:"call_completion_rate"`
	BookingsAttempted     int           `json:"bookings_attempted"`
	BookingsSucceeded     int           `json:"bookings_succeeded"`
	BookingSuccessRate    float64       `json:"booking_success_rate"`
	PendingCallbacks      int           `json:"pending_callbacks"`
	OldestPendingCallback time.Duration `json:"oldest_pending_callback"`
}

// Snapshot is a derived health view. It is recomputed on demand and never
// persisted.
type Snapshot struct {
	RestaurantID booking.RestaurantID
	Status       Status
	GeneratedAt  time.Time
	Window       time.Duration
	Metrics      Metrics
	Alerts       []Alert
}

// MetricsStore supplies rolling-window counts from the persistent store.
type MetricsStore interface {
	CallCounts(ctx context.Context, restaurantID booking.RestaurantID, since time.Time) (total int, failed int, completed int, err error)
	BookingCounts(ctx context.Context, restaurantID booking.RestaurantID, since time.Time) (attempted int, succeeded int, err error)
	PendingCallbackStats(ctx context.Context, restaurantID booking.RestaurantID) (count int, oldestCreatedAt *time.Time, err error)
}

// Monitor evaluates restaurant health against configured thresholds.
type Monitor struct {
	store  MetricsStore
	config Config
	nowFn  func() time.Time
}

// NewMonitor wires a Monitor.
func NewMonitor(store MetricsStore, config Config, now func() time.Time) (*Monitor, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{store: store, config: config, nowFn: now}, nil
}

// Evaluate recomputes the health snapshot for one restaurant over the rolling
// window. Overall status is the maximum severity across breached metrics.
func (monitor *Monitor) Evaluate(ctx context.Context, restaurantID booking.RestaurantID) (Snapshot, error) {
	now := monitor.nowFn()
	since := now.Add(-monitor.config.Window)

	callsTotal, callsFailed, callsCompleted, err := monitor.store.CallCounts(ctx, restaurantID, since)
	if err != nil {
		return Snapshot{}, err
	}
	bookingsAttempted, bookingsSucceeded, err := monitor.store.BookingCounts(ctx, restaurantID, since)
	if err != nil {
		return Snapshot{}, err
	}
	pendingCount, oldestCreatedAt, err := monitor.store.PendingCallbackStats(ctx, restaurantID)
	if err != nil {
		return Snapshot{}, err
	}

	metrics := Metrics{
		CallsTotal:        callsTotal,
		CallsFailed:       callsFailed,
		CallsCompleted:    callsCompleted,
		BookingsAttempted: bookingsAttempted,
		BookingsSucceeded: bookingsSucceeded,
		PendingCallbacks:  pendingCount,
	}
	if callsTotal > 0 {
		metrics.CallErrorRate = float64(callsFailed) / float64(callsTotal)
		metrics.CallCompletionRate = float64(callsCompleted) / float64(callsTotal)
	}
	if bookingsAttempted > 0 {
		metrics.BookingSuccessRate = float64(bookingsSucceeded) / float64(bookingsAttempted)
	}
	if oldestCreatedAt != nil {
		metrics.OldestPendingCallback = now.Sub(*oldestCreatedAt)
	}

	alerts := make([]Alert, 0, 5)
	if callsTotal > 0 {
		alerts = appendUpperBreach(alerts, MetricCallErrorRate, metrics.CallErrorRate, monitor.config.CallErrorRate)
		alerts = appendLowerBreach(alerts, MetricCallCompletionRate, metrics.CallCompletionRate, monitor.config.CallCompletionRate)
	}
	if bookingsAttempted > 0 {
		alerts = appendLowerBreach(alerts, MetricBookingSuccessRate, metrics.BookingSuccessRate, monitor.config.BookingSuccessRate)
	}
	alerts = appendUpperBreach(alerts, MetricPendingCallbackCount, float64(pendingCount), monitor.config.PendingCallbackCount)
	if oldestCreatedAt != nil {
		alerts = appendUpperBreach(alerts, MetricOldestPendingMinutes, metrics.OldestPendingCallback.Minutes(), monitor.config.OldestPendingCallbackMinutes)
	}

	overall := StatusHealthy
	for _, alert := range alerts {
		if alert.Severity.rank() > overall.rank() {
			overall = alert.Severity
		}
	}
	return Snapshot{
		RestaurantID: restaurantID,
		Status:       overall,
		GeneratedAt:  now,
		Window:       monitor.config.Window,
		Metrics:      metrics,
		Alerts:       alerts,
	}, nil
}

// appendUpperBreach adds an alert when observed meets or exceeds a threshold.
func appendUpperBreach(alerts []Alert, metric string, observed float64, thresholds Thresholds) []Alert {
	switch {
	case observed >= thresholds.Critical:
		return append(alerts, Alert{Metric: metric, Observed: observed, Threshold: thresholds.Critical, Severity: StatusCritical})
	case observed >= thresholds.Warning:
		return append(alerts, Alert{Metric: metric, Observed: observed, Threshold: thresholds.Warning, Severity: StatusDegraded})
	default:
		return alerts
	}
}

// appendLowerBreach adds an alert when observed falls to or below a threshold.
func appendLowerBreach(alerts []Alert, metric string, observed float64, thresholds Thresholds) []Alert {
	switch {
	case observed <= thresholds.Critical:
		return append(alerts, Alert{Metric: metric, Observed: observed, Threshold: thresholds.Critical, Severity: StatusCritical})
	case observed <= thresholds.Warning:
		return append(alerts, Alert{Metric: metric, Observed: observed, Threshold: thresholds.Warning, Severity: StatusDegraded})
	default:
		return alerts
	}
}
