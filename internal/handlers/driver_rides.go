package handlers

import (
	"errors"

	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/rides"
	"github.com/gin-gonic/gin"
)

func requireDriver(c *gin.Context) (uint, bool) {
	if c.GetString("userType") != string(models.UserTypeDriver) {
		respondError(c, 403, "Only drivers can perform this action")
		return 0, false
	}
	return c.GetUint("userId"), true
}

// AcceptRide claims an open ride request for the calling driver. Exactly
// one driver wins a contested request; the rest get a conflict response.
func AcceptRide(svc *rides.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := requireDriver(c)
		if !ok {
			return
		}
		rideID, err := parseRideID(c)
		if err != nil {
			respondError(c, 400, "Invalid ride id")
			return
		}

		ride, err := svc.Accept(c.Request.Context(), rideID, driverID)
		if err != nil {
			if errors.Is(err, rides.ErrValidationFailed) {
				respondError(c, 409, "You cannot accept this ride right now")
				return
			}
			respondServiceError(c, err)
			return
		}
		respond(c, 200, ride, "Ride accepted")
	}
}

// ArriveAtPickup notifies the passenger the driver is waiting.
func ArriveAtPickup(svc *rides.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := requireDriver(c)
		if !ok {
			return
		}
		rideID, err := parseRideID(c)
		if err != nil {
			respondError(c, 400, "Invalid ride id")
			return
		}

		if err := svc.Arrive(c.Request.Context(), rideID, driverID); err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, 200, nil, "Passenger notified")
	}
}

// StartRide moves an accepted ride into progress.
func StartRide(svc *rides.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := requireDriver(c)
		if !ok {
			return
		}
		rideID, err := parseRideID(c)
		if err != nil {
			respondError(c, 400, "Invalid ride id")
			return
		}

		ride, result, err := svc.Start(c.Request.Context(), rideID, driverID)
		if err != nil {
			if errors.Is(err, rides.ErrValidationFailed) {
				respond(c, 409, gin.H{"validation": result}, "Ride cannot be started")
				return
			}
			respondServiceError(c, err)
			return
		}
		respond(c, 200, gin.H{"ride": ride, "validation": result}, "Ride started")
	}
}

// CompleteRide finishes a ride in progress and settles the fare.
func CompleteRide(svc *rides.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := requireDriver(c)
		if !ok {
			return
		}
		rideID, err := parseRideID(c)
		if err != nil {
			respondError(c, 400, "Invalid ride id")
			return
		}

		var input struct {
			ActualDistanceKm   float64 `json:"actualDistanceKm"`
			ActualDurationMins int     `json:"actualDurationMins"`
		}
		_ = c.ShouldBindJSON(&input)

		ride, result, err := svc.Complete(c.Request.Context(), rideID, driverID, rides.CompleteInput{
			ActualDistanceKm:   input.ActualDistanceKm,
			ActualDurationMins: input.ActualDurationMins,
		})
		if err != nil {
			if errors.Is(err, rides.ErrValidationFailed) {
				respond(c, 409, gin.H{"validation": result}, "Ride cannot be completed")
				return
			}
			respondServiceError(c, err)
			return
		}
		respond(c, 200, gin.H{"ride": ride, "validation": result}, "Ride completed")
	}
}
