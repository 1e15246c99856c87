package rides

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/models"
)

var (
	ErrNotFound          = errors.New("ride not found")
	ErrInvalidTransition = errors.New("invalid ride status transition")
	ErrAlreadyAccepted   = errors.New("ride already accepted by another driver")
	ErrDriverUnavailable = errors.New("selected driver is no longer available")
	ErrUnauthorized      = errors.New("actor is not a party to this ride")
	ErrValidationFailed  = errors.New("ride validation failed")
)

// RideFilter narrows ride listings for the query surface.
type RideFilter struct {
	Statuses []string
	Limit    int
	Offset   int
}

// Store is the durable ride store: the single arbiter of truth for ride
// state. Conditional mutations return false when the guard no longer
// matched, which is how the accept race and concurrent transitions are
// resolved.
type Store interface {
	Ride(ctx context.Context, id uint) (*models.Ride, error)
	CreateRide(ctx context.Context, ride *models.Ride) error
	// ActiveRideForUser returns the user's current non-terminal ride as
	// passenger or driver, or nil when there is none.
	ActiveRideForUser(ctx context.Context, userID uint) (*models.Ride, error)
	RidesForUser(ctx context.Context, userID uint, role string, filter RideFilter) ([]models.Ride, error)

	// AcceptRide performs the single conditional update resolving the
	// first-acceptance race: it assigns driver and vehicle and moves the
	// ride to ACCEPTED only if the status is still REQUESTED.
	AcceptRide(ctx context.Context, rideID, driverID, vehicleID uint, at time.Time) (bool, error)
	// TransitionRide updates status and the given columns only if the
	// ride is still in the expected from status.
	TransitionRide(ctx context.Context, rideID uint, from, to string, set map[string]interface{}) (bool, error)

	AppendHistory(ctx context.Context, entry *models.RideStatusHistory) error

	DriverProfile(ctx context.Context, driverID uint) (*models.DriverProfile, error)
	DriverUser(ctx context.Context, driverID uint) (*models.User, error)
	VehicleForDriver(ctx context.Context, driverID uint) (*models.Vehicle, error)
	SetDriverTripState(ctx context.Context, driverID uint, available, activeTrip bool) error
	IncrementCompletedRides(ctx context.Context, driverID uint) error

	RideType(ctx context.Context, id uint) (*models.RideType, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdatePaymentStatus(ctx context.Context, rideID uint, kind, status string) error
}
