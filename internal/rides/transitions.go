package rides

import (
	"github.com/chachabrian/swiftride-backend/internal/models"
)

// transitions is the full set of legal status edges. IN_PROGRESS ->
// CANCELLED exists only for the reaper's timeout path.
var transitions = map[string][]string{
	models.RideStatusRequested:  {models.RideStatusAccepted, models.RideStatusCancelled},
	models.RideStatusAccepted:   {models.RideStatusInProgress, models.RideStatusCancelled},
	models.RideStatusInProgress: {models.RideStatusCompleted, models.RideStatusCancelled},
}

// CanTransition reports whether from -> to is a legal status edge.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
