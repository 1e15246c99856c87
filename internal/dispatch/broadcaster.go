package dispatch

import (
	"context"
	"log"

	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/observability"
	"github.com/chachabrian/swiftride-backend/internal/services"
)

// Hub is the connection registry the broadcaster delivers through.
type Hub interface {
	IsConnected(userID uint) bool
	ConnectedDriverIDs() []uint
	SendEvent(userID uint, event string, data map[string]interface{})
}

// CandidateLog remembers which drivers were offered a ride request, so a
// later cancellation or timeout can tell exactly those drivers the request
// is gone.
type CandidateLog interface {
	Record(ctx context.Context, rideID uint, driverIDs []uint) error
	Get(ctx context.Context, rideID uint) ([]uint, error)
	Clear(ctx context.Context, rideID uint) error
}

// GenderDirectory resolves a driver's gender for the female-only filter on
// fallback broadcasts.
type GenderDirectory interface {
	DriverGender(ctx context.Context, driverID uint) (string, error)
}

// Broadcaster pushes new ride requests to candidate drivers. Delivery is
// fire-and-forget; acceptance is observed only through the state machine's
// conditional accept.
type Broadcaster struct {
	hub        Hub
	candidates CandidateLog
	genders    GenderDirectory
}

func NewBroadcaster(hub Hub, candidates CandidateLog, genders GenderDirectory) *Broadcaster {
	return &Broadcaster{hub: hub, candidates: candidates, genders: genders}
}

// Broadcast delivers a new-ride-request event to every candidate currently
// connected and returns how many were reached.
func (b *Broadcaster) Broadcast(ctx context.Context, ride *models.Ride, candidateIDs []uint) int {
	delivered := 0
	var reached []uint
	for _, id := range candidateIDs {
		if !b.hub.IsConnected(id) {
			continue
		}
		b.hub.SendEvent(id, services.EventNewRideRequest, requestPayload(ride))
		reached = append(reached, id)
		delivered++
	}

	if delivered > 0 {
		observability.BroadcastsTotal.Inc()
		if err := b.candidates.Record(ctx, ride.ID, reached); err != nil {
			log.Printf("Failed to record candidates for ride %d: %v", ride.ID, err)
		}
	}
	return delivered
}

// BroadcastToAllDrivers is the availability fallback: when no eligible
// candidate is connected, offer the ride to every connected driver rather
// than let it go unseen. Female-only rides still never reach non-female
// drivers.
func (b *Broadcaster) BroadcastToAllDrivers(ctx context.Context, ride *models.Ride) int {
	ids := b.hub.ConnectedDriverIDs()
	delivered := 0
	var reached []uint
	for _, id := range ids {
		if ride.FemaleOnly {
			gender, err := b.genders.DriverGender(ctx, id)
			if err != nil || gender != models.GenderFemale {
				continue
			}
		}
		b.hub.SendEvent(id, services.EventNewRideRequest, requestPayload(ride))
		reached = append(reached, id)
		delivered++
	}

	if delivered > 0 {
		observability.BroadcastFallbacksTotal.Inc()
		log.Printf("Ride %d fell back to broadcasting to %d connected drivers", ride.ID, delivered)
		if err := b.candidates.Record(ctx, ride.ID, reached); err != nil {
			log.Printf("Failed to record fallback candidates for ride %d: %v", ride.ID, err)
		}
	}
	return delivered
}

// BroadcastExpired tells candidates a request is no longer accept-able.
// With a nil candidate list the recorded set for the ride is used.
func (b *Broadcaster) BroadcastExpired(ctx context.Context, rideID uint, candidateIDs []uint) {
	if candidateIDs == nil {
		recorded, err := b.candidates.Get(ctx, rideID)
		if err != nil {
			log.Printf("Failed to load candidates for expired ride %d: %v", rideID, err)
		}
		candidateIDs = recorded
	}

	for _, id := range candidateIDs {
		b.hub.SendEvent(id, services.EventRequestExpired, map[string]interface{}{
			"rideId": rideID,
		})
	}

	if err := b.candidates.Clear(ctx, rideID); err != nil {
		log.Printf("Failed to clear candidates for ride %d: %v", rideID, err)
	}
}

func requestPayload(ride *models.Ride) map[string]interface{} {
	return map[string]interface{}{
		"rideId": ride.ID,
		"pickup": map[string]interface{}{
			"lat":     ride.PickupLat,
			"lng":     ride.PickupLng,
			"address": ride.PickupAddr,
		},
		"destination": map[string]interface{}{
			"lat":     ride.DestLat,
			"lng":     ride.DestLng,
			"address": ride.DestAddr,
		},
		"rideTypeId":   ride.RideTypeID,
		"price":        ride.FinalPrice,
		"currency":     ride.Currency,
		"femaleOnly":   ride.FemaleOnly,
		"isDelivery":   ride.IsDelivery,
		"hasPets":      ride.HasPets,
		"baggageCount": ride.BaggageCount,
	}
}
