package handlers

import (
	"log"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/confirm"
	"github.com/chachabrian/swiftride-backend/internal/matching"
	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/pricing"
	"github.com/chachabrian/swiftride-backend/internal/storage"
	"github.com/chachabrian/swiftride-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

const (
	quoteSearchRadiusKm = 5.0
	averageSpeedKmh     = 30.0
)

// RequestQuote prices a ride, optionally pre-selects the best nearby
// driver, and returns a single-use confirmation token for ride creation.
func RequestQuote(store *storage.Store, matcher *matching.Matcher, oracle pricing.Oracle, cache *confirm.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeClient) {
			respondError(c, 403, "Only clients can request quotes")
			return
		}

		var input struct {
			RideTypeID uint `json:"rideTypeId" binding:"required"`
			Pickup     struct {
				Lat     float64 `json:"lat" binding:"required"`
				Lng     float64 `json:"lng" binding:"required"`
				Address string  `json:"address" binding:"required"`
			} `json:"pickup" binding:"required"`
			Destination struct {
				Lat     float64 `json:"lat" binding:"required"`
				Lng     float64 `json:"lng" binding:"required"`
				Address string  `json:"address" binding:"required"`
			} `json:"destination" binding:"required"`
			FemaleOnly          bool       `json:"femaleOnly"`
			IsDelivery          bool       `json:"isDelivery"`
			HasPets             bool       `json:"hasPets"`
			BaggageCount        int        `json:"baggageCount"`
			SpecialRequirements string     `json:"specialRequirements"`
			ScheduledAt         *time.Time `json:"scheduledAt"`
			SelectBestDriver    bool       `json:"selectBestDriver"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, 400, err.Error())
			return
		}
		if !utils.ValidCoordinates(input.Pickup.Lat, input.Pickup.Lng) ||
			!utils.ValidCoordinates(input.Destination.Lat, input.Destination.Lng) {
			respondError(c, 400, "Invalid coordinates")
			return
		}

		rideType, err := store.RideType(c.Request.Context(), input.RideTypeID)
		if err != nil || !rideType.Active {
			respondError(c, 404, "Ride type not found")
			return
		}

		distance := utils.HaversineDistance(
			input.Pickup.Lat, input.Pickup.Lng,
			input.Destination.Lat, input.Destination.Lng,
		)
		duration := utils.CalculateETA(distance, averageSpeedKmh)
		surge := pricing.SurgeForTime(time.Now())

		quote, err := oracle.Price(c.Request.Context(), rideType, distance, duration, surge)
		if err != nil {
			respondError(c, 500, "Failed to price the ride")
			return
		}

		cons := matching.ConstraintsForRideType(rideType, input.FemaleOnly)
		nearby, err := matcher.Nearby(c.Request.Context(), input.Pickup.Lat, input.Pickup.Lng, quoteSearchRadiusKm, 0, cons)
		if err != nil {
			log.Printf("Driver search failed during quote for client %d: %v", clientID, err)
			nearby = nil
		}

		conf := &confirm.Confirmation{
			UserID: clientID,
			Quote:  quote,
			Request: confirm.QuoteRequest{
				RideTypeID:          input.RideTypeID,
				PickupLat:           input.Pickup.Lat,
				PickupLng:           input.Pickup.Lng,
				PickupAddr:          input.Pickup.Address,
				DestLat:             input.Destination.Lat,
				DestLng:             input.Destination.Lng,
				DestAddr:            input.Destination.Address,
				FemaleOnly:          input.FemaleOnly,
				IsDelivery:          input.IsDelivery,
				HasPets:             input.HasPets,
				BaggageCount:        input.BaggageCount,
				SpecialRequirements: input.SpecialRequirements,
				ScheduledAt:         input.ScheduledAt,
			},
		}

		if input.SelectBestDriver {
			best, err := matcher.RankBest(c.Request.Context(), input.Pickup.Lat, input.Pickup.Lng, quoteSearchRadiusKm, 1, cons)
			if err == nil && len(best) > 0 {
				snapshot := best[0].Snapshot()
				conf.Driver = &snapshot
			}
		}

		token, err := cache.Put(c.Request.Context(), conf)
		if err != nil {
			respondError(c, 500, "Failed to store confirmation")
			return
		}

		respond(c, 200, gin.H{
			"token":         token,
			"expiresAt":     conf.ExpiresAt,
			"quote":         quote,
			"driver":        conf.Driver,
			"nearbyDrivers": len(nearby),
		}, "Quote prepared")
	}
}

// ListRideTypes returns the bookable ride categories.
func ListRideTypes(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		types, err := store.RideTypes(c.Request.Context())
		if err != nil {
			respondError(c, 500, "Failed to load ride types")
			return
		}
		respond(c, 200, types, "")
	}
}
