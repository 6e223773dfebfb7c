package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Restaurant represents the restaurants table. Hours and settings are stored
// as JSON documents alongside the row.
type Restaurant struct {
	RestaurantID string         `gorm:"primaryKey"`
	Name         string         `gorm:"not null"`
	Timezone     string         `gorm:"not null"`
	Hours        datatypes.JSON `gorm:"not null"`
	Settings     datatypes.JSON `gorm:"not null"`
	CreatedAt    time.Time      `gorm:"not null"`
}

func (Restaurant) TableName() string { return "restaurants" }

// AvailabilitySlot mirrors the availability_slots table. One row per
// restaurant, slot time, and seating pool.
type AvailabilitySlot struct {
	SlotID        string    `gorm:"type:uuid;primaryKey"`
	RestaurantID  string    `gorm:"not null;index:uniq_slot_pool,unique,priority:1"`
	SlotAt        time.Time `gorm:"not null;index:uniq_slot_pool,unique,priority:2"`
	Seating       string    `gorm:"not null;index:uniq_slot_pool,unique,priority:3"`
	TotalCapacity int       `gorm:"not null"`
	BookedCount   int       `gorm:"not null;default:0"`
}

func (AvailabilitySlot) TableName() string { return "availability_slots" }

func (slot *AvailabilitySlot) BeforeCreate(tx *gorm.DB) error {
	if slot.SlotID == "" {
		slot.SlotID = uuid.NewString()
	}
	return nil
}

// BlockedDate mirrors the blocked_dates table. Override columns are set only
// for special-hours rows.
type BlockedDate struct {
	BlockID       string    `gorm:"type:uuid;primaryKey"`
	RestaurantID  string    `gorm:"not null;index:idx_blocked_restaurant_start,priority:1"`
	StartDate     time.Time `gorm:"not null;index:idx_blocked_restaurant_start,priority:2"`
	EndDate       time.Time `gorm:"not null"`
	Type          string    `gorm:"not null"`
	OverrideOpen  *int      `gorm:""`
	OverrideClose *int      `gorm:""`
	Reason        string    `gorm:""`
}

func (BlockedDate) TableName() string { return "blocked_dates" }

func (blocked *BlockedDate) BeforeCreate(tx *gorm.DB) error {
	if blocked.BlockID == "" {
		blocked.BlockID = uuid.NewString()
	}
	return nil
}

// Reservation mirrors the reservations table.
type Reservation struct {
	ReservationID      string     `gorm:"type:uuid;primaryKey"`
	RestaurantID       string     `gorm:"not null;index:idx_reservations_restaurant_slot,priority:1;index:uniq_reservations_request,unique,priority:1"`
	CustomerName       string     `gorm:"not null"`
	Phone              string     `gorm:"not null;index:idx_reservations_phone"`
	Email              string     `gorm:""`
	SlotAt             time.Time  `gorm:"not null;index:idx_reservations_restaurant_slot,priority:2"`
	PartySize          int        `gorm:"not null"`
	Seating            string     `gorm:"not null"`
	Status             string     `gorm:"not null;index"`
	ConfirmationCode   string     `gorm:"not null;index:uniq_reservations_confirmation_code,unique"`
	Source             string     `gorm:"not null"`
	SpecialRequests    string     `gorm:""`
	SMSConsent         bool       `gorm:"not null;default:false"`
	RequestID          string     `gorm:"not null;index:uniq_reservations_request,unique,priority:2"`
	CancelledAt        *time.Time `gorm:""`
	CancellationReason string     `gorm:""`
	CreatedAt          time.Time  `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservations" }

// Callback mirrors the callbacks table.
type Callback struct {
	CallbackID        string     `gorm:"type:uuid;primaryKey"`
	RestaurantID      string     `gorm:"not null;index:idx_callbacks_restaurant_status,priority:1"`
	CustomerName      string     `gorm:""`
	Phone             string     `gorm:""`
	RequestedTime     time.Time  `gorm:""`
	PartySize         int        `gorm:"not null;default:0"`
	FailureReason     string     `gorm:"not null"`
	ErrorCode         string     `gorm:""`
	Priority          string     `gorm:"not null"`
	Status            string     `gorm:"not null;index:idx_callbacks_restaurant_status,priority:2"`
	ImmediateTransfer bool       `gorm:"not null;default:false"`
	AttemptCount      int        `gorm:"not null;default:0"`
	LastAttemptAt     *time.Time `gorm:""`
	ResolutionOutcome string     `gorm:""`
	ResolutionNotes   string     `gorm:""`
	CreatedAt         time.Time  `gorm:"not null"`
}

func (Callback) TableName() string { return "callbacks" }

// CallRecord mirrors the call_records table fed by the voice layer.
type CallRecord struct {
	RecordID         string    `gorm:"type:uuid;primaryKey"`
	RestaurantID     string    `gorm:"not null;index:idx_call_records_restaurant_ended,priority:1"`
	Status           string    `gorm:"not null"`
	BookingAttempted bool      `gorm:"not null;default:false"`
	BookingSucceeded bool      `gorm:"not null;default:false"`
	EndedAt          time.Time `gorm:"not null;index:idx_call_records_restaurant_ended,priority:2"`
}

func (CallRecord) TableName() string { return "call_records" }

func (record *CallRecord) BeforeCreate(tx *gorm.DB) error {
	if record.RecordID == "" {
		record.RecordID = uuid.NewString()
	}
	return nil
}

// AllModels lists every table for migration.
func AllModels() []any {
	return []any{
		&Restaurant{},
		&AvailabilitySlot{},
		&BlockedDate{},
		&Reservation{},
		&Callback{},
		&CallRecord{},
	}
}
