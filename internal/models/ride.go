package models

import (
	"time"

	"gorm.io/gorm"
)

// Ride status constants. COMPLETED, CANCELLED and REJECTED are terminal.
const (
	RideStatusRequested  = "REQUESTED"
	RideStatusAccepted   = "ACCEPTED"
	RideStatusInProgress = "IN_PROGRESS"
	RideStatusCompleted  = "COMPLETED"
	RideStatusCancelled  = "CANCELLED"
	RideStatusRejected   = "REJECTED"
)

// IsTerminalStatus reports whether a ride in the given status can still move.
func IsTerminalStatus(status string) bool {
	switch status {
	case RideStatusCompleted, RideStatusCancelled, RideStatusRejected:
		return true
	}
	return false
}

// RideType defines a bookable ride category and the eligibility constraints
// a driver must satisfy to be dispatched one.
type RideType struct {
	gorm.Model
	Name                string  `json:"name" gorm:"unique;not null"`
	AllowedVehicleTypes string  `json:"allowedVehicleTypes"` // comma separated, empty = any
	FemaleDriverOnly    bool    `json:"femaleDriverOnly" gorm:"not null;default:false"`
	RequiresArmored     bool    `json:"requiresArmored" gorm:"not null;default:false"`
	RequiresMotorcycle  bool    `json:"requiresMotorcycle" gorm:"not null;default:false"`
	BaseFare            float64 `json:"baseFare" gorm:"not null"`
	RatePerKm           float64 `json:"ratePerKm" gorm:"not null"`
	RatePerMin          float64 `json:"ratePerMin" gorm:"not null;default:0"`
	MinimumFare         float64 `json:"minimumFare" gorm:"not null;default:0"`
	Active              bool    `json:"active" gorm:"not null;default:true"`
}

// TableName specifies the table name
func (RideType) TableName() string {
	return "ride_types"
}

// Ride is the central entity: one passenger-to-destination trip and its
// lifecycle state. Drivers and vehicles stay unset while the ride is
// REQUESTED and are both assigned by the accept transition.
type Ride struct {
	gorm.Model
	ClientID   uint  `json:"clientId" gorm:"not null;index"`
	DriverID   *uint `json:"driverId,omitempty" gorm:"index"`
	VehicleID  *uint `json:"vehicleId,omitempty"`
	RideTypeID uint  `json:"rideTypeId" gorm:"not null"`

	PickupLat  float64 `json:"pickupLat" gorm:"not null"`
	PickupLng  float64 `json:"pickupLng" gorm:"not null"`
	PickupAddr string  `json:"pickupAddress" gorm:"not null"`
	DestLat    float64 `json:"destLat" gorm:"not null"`
	DestLng    float64 `json:"destLng" gorm:"not null"`
	DestAddr   string  `json:"destAddress" gorm:"not null"`

	BasePrice  float64 `json:"basePrice"`
	FinalPrice float64 `json:"finalPrice"`
	Currency   string  `json:"currency" gorm:"not null;default:'KES'"`

	RequestedAt time.Time  `json:"requestedAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	PickupAt    *time.Time `json:"pickupAt,omitempty"`
	DropOffAt   *time.Time `json:"dropOffAt,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	FemaleOnly          bool   `json:"femaleOnly" gorm:"not null;default:false"`
	IsDelivery          bool   `json:"isDelivery" gorm:"not null;default:false"`
	HasPets             bool   `json:"hasPets" gorm:"not null;default:false"`
	BaggageCount        int    `json:"baggageCount" gorm:"not null;default:0"`
	SpecialRequirements string `json:"specialRequirements"`

	ActualDistance float64 `json:"actualDistance"` // kilometers
	ActualDuration int     `json:"actualDuration"` // minutes

	Status string `json:"status" gorm:"not null;default:'REQUESTED';index"`

	Client   *User     `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Driver   *User     `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	RideType *RideType `json:"rideType,omitempty" gorm:"foreignKey:RideTypeID"`
}

// TableName specifies the table name
func (Ride) TableName() string {
	return "rides"
}

// RideStatusHistory is the append-only log of status transitions.
type RideStatusHistory struct {
	gorm.Model
	RideID     uint   `json:"rideId" gorm:"not null;index"`
	FromStatus string `json:"fromStatus" gorm:"not null"`
	ToStatus   string `json:"toStatus" gorm:"not null"`
	ActorID    uint   `json:"actorId"`
	ActorRole  string `json:"actorRole"` // client, driver, system
}

// TableName specifies the table name
func (RideStatusHistory) TableName() string {
	return "ride_status_history"
}

// Payment status constants
const (
	PaymentStatusPending = "pending"
	PaymentStatusSettled = "settled"
	PaymentStatusFailed  = "failed"
)

// Payment kind constants
const (
	PaymentKindFare            = "fare"
	PaymentKindCancellationFee = "cancellation_fee"
)

// Payment records the amount owed for a ride: the fare on completion or a
// cancellation fee. Settlement happens outside the engine; a failed
// settlement never rolls the ride back.
type Payment struct {
	gorm.Model
	RideID   uint    `json:"rideId" gorm:"not null;index"`
	ClientID uint    `json:"clientId" gorm:"not null"`
	DriverID uint    `json:"driverId"`
	Amount   float64 `json:"amount" gorm:"not null"`
	Currency string  `json:"currency" gorm:"not null;default:'KES'"`
	Kind     string  `json:"kind" gorm:"not null"`
	Status   string  `json:"status" gorm:"not null;default:'pending'"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}
