package rides

import (
	"context"
	"log"
)

// Settler reconciles the fare between the parties after completion. The
// engine only records the outcome; a settlement failure never rolls the
// ride back.
type Settler interface {
	Settle(ctx context.Context, rideID, clientID, driverID uint, amount float64) error
}

// LogSettler is the default collaborator stub: it records the settlement
// request and succeeds.
type LogSettler struct{}

func (LogSettler) Settle(ctx context.Context, rideID, clientID, driverID uint, amount float64) error {
	log.Printf("Settling ride %d: client %d -> driver %d, amount %.2f", rideID, clientID, driverID, amount)
	return nil
}
