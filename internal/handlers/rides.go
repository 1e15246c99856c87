package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/reaper"
	"github.com/chachabrian/swiftride-backend/internal/rides"
	"github.com/gin-gonic/gin"
)

// CreateRide exchanges a confirmation token for a ride.
func CreateRide(svc *rides.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeClient) {
			respondError(c, 403, "Only clients can create rides")
			return
		}

		var input struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, 400, err.Error())
			return
		}

		ride, result, err := svc.Create(c.Request.Context(), clientID, input.Token)
		if err != nil {
			if errors.Is(err, rides.ErrValidationFailed) {
				respond(c, 422, gin.H{"validation": result}, "Ride creation blocked")
				return
			}
			respondServiceError(c, err)
			return
		}

		message := "Ride requested, searching for a driver"
		if ride.Status == models.RideStatusAccepted {
			message = "Ride confirmed with your selected driver"
		}
		respond(c, 201, gin.H{"ride": ride, "validation": result}, message)
	}
}

// CancelRide cancels a ride on behalf of either party and reports any
// cancellation fee charged.
func CancelRide(svc *rides.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetUint("userId")
		userType := c.GetString("userType")

		rideID, err := parseRideID(c)
		if err != nil {
			respondError(c, 400, "Invalid ride id")
			return
		}

		var input struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&input)

		ride, fee, err := svc.Cancel(c.Request.Context(), rideID, actorID, userType, input.Reason)
		if err != nil {
			if errors.Is(err, rides.ErrValidationFailed) {
				respondError(c, 409, "Ride can no longer be cancelled")
				return
			}
			respondServiceError(c, err)
			return
		}

		message := "Ride cancelled"
		if fee > 0 {
			message = "Ride cancelled, a cancellation fee applies"
		}
		respond(c, 200, gin.H{"ride": ride, "cancellationFee": fee}, message)
	}
}

// GetMyRides lists the caller's rides, optionally filtered by status.
func GetMyRides(svc *rides.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		filter := rides.RideFilter{Limit: 20}
		if statuses := c.Query("status"); statuses != "" {
			filter.Statuses = strings.Split(statuses, ",")
		}
		if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
		if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
			filter.Offset = offset
		}

		result, err := svc.RidesFor(c.Request.Context(), userID, userType, filter)
		if err != nil {
			respondError(c, 500, "Failed to load rides")
			return
		}
		respond(c, 200, result, "")
	}
}

// GetRideByID returns a single ride to one of its parties.
func GetRideByID(svc *rides.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		rideID, err := parseRideID(c)
		if err != nil {
			respondError(c, 400, "Invalid ride id")
			return
		}

		ride, err := svc.RideByID(c.Request.Context(), rideID, userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, 200, ride, "")
	}
}

// SyncRideState is the reconnection snapshot. The caller's own stale
// rides are swept first so the response never reports a dead ride as
// active.
func SyncRideState(svc *rides.Service, r *reaper.Reaper) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		cleaned, err := r.SweepUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, 500, "Failed to sweep stale rides")
			return
		}

		state, err := svc.Sync(c.Request.Context(), userID, userType)
		if err != nil {
			respondError(c, 500, "Failed to load ride state")
			return
		}

		message := ""
		if cleaned > 0 {
			message = "Stale rides were cleaned up"
		}
		respond(c, 200, gin.H{
			"activeRide": state.ActiveRide,
			"driver":     state.Driver,
			"cleaned":    cleaned,
		}, message)
	}
}

func parseRideID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
	return uint(id), err
}
