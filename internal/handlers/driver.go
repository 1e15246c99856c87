package handlers

import (
	"github.com/chachabrian/swiftride-backend/internal/services"
	"github.com/chachabrian/swiftride-backend/internal/storage"
	"github.com/chachabrian/swiftride-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/mmcloughlin/geohash"
)

// geohashPrecision is the stored cell size; the matcher prefilters on
// shorter prefixes of it.
const geohashPrecision = 6

// UpdateDriverLocation records the driver's published position and
// refreshes their Redis presence.
func UpdateDriverLocation(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := requireDriver(c)
		if !ok {
			return
		}

		var input struct {
			Lat     float64 `json:"lat" binding:"required"`
			Lng     float64 `json:"lng" binding:"required"`
			Heading float64 `json:"heading"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, 400, err.Error())
			return
		}
		if !utils.ValidCoordinates(input.Lat, input.Lng) {
			respondError(c, 400, "Invalid coordinates")
			return
		}

		cell := geohash.EncodeWithPrecision(input.Lat, input.Lng, geohashPrecision)
		if err := store.UpdateDriverLocation(c.Request.Context(), driverID, input.Lat, input.Lng, input.Heading, cell); err != nil {
			respondError(c, 500, "Failed to update location")
			return
		}
		_ = services.RefreshUserPresence(c.Request.Context(), driverID)

		respond(c, 200, nil, "Location updated")
	}
}

// SetDriverAvailability flips the driver's online/available flags.
func SetDriverAvailability(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := requireDriver(c)
		if !ok {
			return
		}

		var input struct {
			IsOnline    *bool `json:"isOnline" binding:"required"`
			IsAvailable *bool `json:"isAvailable" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, 400, err.Error())
			return
		}

		if err := store.SetDriverAvailability(c.Request.Context(), driverID, *input.IsOnline, *input.IsAvailable); err != nil {
			respondError(c, 500, "Failed to update availability")
			return
		}
		respond(c, 200, gin.H{
			"isOnline":    *input.IsOnline,
			"isAvailable": *input.IsAvailable,
		}, "Availability updated")
	}
}
