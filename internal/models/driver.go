package models

import (
	"time"

	"gorm.io/gorm"
)

// Driver approval status constants
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// DriverProfile represents a driver's runtime state: current location,
// availability flags and the aggregates used for ranking.
type DriverProfile struct {
	gorm.Model
	DriverID       uint      `json:"driverId" gorm:"not null;uniqueIndex"`
	Latitude       *float64  `json:"lat,omitempty"`
	Longitude      *float64  `json:"lng,omitempty"`
	Geohash        string    `json:"-" gorm:"index"`
	Heading        float64   `json:"heading" gorm:"not null;default:0"`
	IsOnline       bool      `json:"isOnline" gorm:"not null;default:false"`
	IsAvailable    bool      `json:"isAvailable" gorm:"not null;default:false"`
	IsActiveTrip   bool      `json:"isActiveTrip" gorm:"not null;default:false"`
	ApprovalStatus string    `json:"approvalStatus" gorm:"not null;default:'pending'"`
	Rating         float64   `json:"rating" gorm:"not null;default:5"`
	CompletedRides int       `json:"completedRides" gorm:"not null;default:0"`
	LastSeen       time.Time `json:"lastSeen"`
	Driver         *User     `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
}

// TableName specifies the table name
func (DriverProfile) TableName() string {
	return "driver_profiles"
}

// HasLocation reports whether the driver has published a location yet.
func (p *DriverProfile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Vehicle represents the vehicle a driver operates with.
type Vehicle struct {
	gorm.Model
	DriverID     uint   `json:"driverId" gorm:"not null;index"`
	VehicleType  string `json:"vehicleType" gorm:"not null"` // sedan, suv, van, motorcycle, armored
	Plate        string `json:"plate" gorm:"not null"`
	Make         string `json:"make"`
	Color        string `json:"color"`
	IsArmored    bool   `json:"isArmored" gorm:"not null;default:false"`
	IsMotorcycle bool   `json:"isMotorcycle" gorm:"not null;default:false"`
}

// TableName specifies the table name
func (Vehicle) TableName() string {
	return "vehicles"
}

// DriverRideType links a driver to a ride type they may serve.
type DriverRideType struct {
	gorm.Model
	DriverID   uint `json:"driverId" gorm:"not null;index:idx_driver_ride_type,unique"`
	RideTypeID uint `json:"rideTypeId" gorm:"not null;index:idx_driver_ride_type,unique"`
	Active     bool `json:"active" gorm:"not null;default:true"`
}

// TableName specifies the table name
func (DriverRideType) TableName() string {
	return "driver_ride_types"
}
