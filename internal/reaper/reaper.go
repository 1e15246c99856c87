package reaper

import (
	"context"
	"log"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/observability"
	"github.com/chachabrian/swiftride-backend/internal/services"
)

// Sweep cadences and per-status age cutoffs.
const (
	FastInterval = 2 * time.Minute
	DeepInterval = time.Hour

	RequestedCutoff  = 15 * time.Minute
	AcceptedCutoff   = 5 * time.Minute
	InProgressCutoff = 10 * time.Minute
)

// Cutoffs are the per-status maximum ages before a ride counts as
// orphaned. Ages are measured from the creation timestamp.
type Cutoffs struct {
	Requested  time.Duration
	Accepted   time.Duration
	InProgress time.Duration
}

// DefaultCutoffs returns the background-sweep cutoffs.
func DefaultCutoffs() Cutoffs {
	return Cutoffs{
		Requested:  RequestedCutoff,
		Accepted:   AcceptedCutoff,
		InProgress: InProgressCutoff,
	}
}

// UserCutoffs returns the tighter cutoffs used by the synchronous
// per-user sweep on ride-sync requests. IN_PROGRESS rides are left to
// the background sweeps.
func UserCutoffs() Cutoffs {
	return Cutoffs{
		Requested: RequestedCutoff,
		Accepted:  AcceptedCutoff,
	}
}

// Store is the persistence surface the reaper sweeps over. RetireRide is
// a conditional update scoped by id and current status, so a ride that
// moved on between selection and cleanup is never touched.
type Store interface {
	// StaleRides returns non-terminal rides older than their status cutoff.
	// A zero cutoff skips that status entirely.
	StaleRides(ctx context.Context, now time.Time, cutoffs Cutoffs) ([]models.Ride, error)
	// StaleRidesForUser narrows the same predicate to rides where the user
	// is passenger or driver.
	StaleRidesForUser(ctx context.Context, userID uint, now time.Time, cutoffs Cutoffs) ([]models.Ride, error)
	// ActiveRidesForUser returns all of a user's non-terminal rides
	// regardless of age, for force-reset.
	ActiveRidesForUser(ctx context.Context, userID uint) ([]models.Ride, error)

	// RetireRide moves a ride to CANCELLED only if it is still in
	// fromStatus. Returns false when the guard no longer matched.
	RetireRide(ctx context.Context, rideID uint, fromStatus string, at time.Time) (bool, error)
	// PurgeRide deletes the ride's payments, status history and the ride
	// itself in one transaction.
	PurgeRide(ctx context.Context, rideID uint, fromStatus string) (bool, error)
	// PurgeRideSequential retries the same deletes as individual
	// operations when the transactional purge failed.
	PurgeRideSequential(ctx context.Context, rideID uint) error

	// ReleaseDriver makes the driver dispatchable again, setting
	// isAvailable=true and isActiveTrip=false.
	ReleaseDriver(ctx context.Context, driverID uint) error
	AppendHistory(ctx context.Context, entry *models.RideStatusHistory) error
}

// Notifier retracts expired offers from drivers and tells parties their
// ride was retired.
type Notifier interface {
	BroadcastExpired(ctx context.Context, rideID uint, candidateIDs []uint)
	SendEvent(userID uint, event string, data map[string]interface{})
}

// Reaper finds rides stuck past their stage timeouts and retires them.
// Rides that never left REQUESTED are deleted outright with their
// dependent records; rides that progressed are retired to CANCELLED so
// the record survives for audit.
type Reaper struct {
	store    Store
	notifier Notifier
}

func New(store Store, notifier Notifier) *Reaper {
	return &Reaper{store: store, notifier: notifier}
}

// Start launches the fast and deep sweep loops until ctx is done.
func (r *Reaper) Start(ctx context.Context) {
	go r.loop(ctx, FastInterval, "fast")
	go r.loop(ctx, DeepInterval, "deep")
}

func (r *Reaper) loop(ctx context.Context, interval time.Duration, sweep string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleaned, err := r.SweepOnce(ctx, sweep)
			if err != nil {
				log.Printf("Reaper %s sweep failed: %v", sweep, err)
				continue
			}
			if cleaned > 0 && sweep == "deep" {
				// The fast sweep should have caught these; survivors point
				// at a systemic cleanup problem.
				log.Printf("WARNING: deep sweep retired %d rides the fast sweep missed", cleaned)
			}
		}
	}
}

// SweepOnce applies the orphan predicate across all users once and
// returns how many rides were cleaned.
func (r *Reaper) SweepOnce(ctx context.Context, sweep string) (int, error) {
	stale, err := r.store.StaleRides(ctx, time.Now(), DefaultCutoffs())
	if err != nil {
		return 0, err
	}
	return r.retire(ctx, stale, sweep), nil
}

// SweepUser synchronously sweeps one user's rides with the tighter
// cutoffs, so a ride-sync response never reports a stale ride as active.
func (r *Reaper) SweepUser(ctx context.Context, userID uint) (int, error) {
	stale, err := r.store.StaleRidesForUser(ctx, userID, time.Now(), UserCutoffs())
	if err != nil {
		return 0, err
	}
	return r.retire(ctx, stale, "user"), nil
}

// ForceReset unconditionally retires all of a user's active rides and
// returns the user to the dispatchable pool, bypassing age cutoffs.
func (r *Reaper) ForceReset(ctx context.Context, userID uint) (int, error) {
	active, err := r.store.ActiveRidesForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	cleaned := r.retire(ctx, active, "force")

	if err := r.store.ReleaseDriver(ctx, userID); err != nil {
		log.Printf("Failed to release driver flags for user %d: %v", userID, err)
	}
	return cleaned, nil
}

func (r *Reaper) retire(ctx context.Context, rides []models.Ride, sweep string) int {
	cleaned := 0
	for i := range rides {
		if r.retireOne(ctx, &rides[i]) {
			observability.RidesReapedTotal.WithLabelValues(sweep).Inc()
			cleaned++
		}
	}
	return cleaned
}

// retireOne cleans up a single orphan. Every mutation re-checks the
// status it selected on, so a ride a user moved forward in the meantime
// is left alone.
func (r *Reaper) retireOne(ctx context.Context, ride *models.Ride) bool {
	switch ride.Status {
	case models.RideStatusRequested:
		return r.purge(ctx, ride)
	case models.RideStatusAccepted, models.RideStatusInProgress:
		return r.cancelStuck(ctx, ride)
	default:
		return false
	}
}

// purge removes a request no driver ever took, dependents first, then
// tells every driver the offer was broadcast to that it is gone.
func (r *Reaper) purge(ctx context.Context, ride *models.Ride) bool {
	ok, err := r.store.PurgeRide(ctx, ride.ID, models.RideStatusRequested)
	if err != nil {
		log.Printf("Transactional purge of ride %d failed, retrying sequentially: %v", ride.ID, err)
		observability.ReaperFallbackDeletesTotal.Inc()
		if err := r.store.PurgeRideSequential(ctx, ride.ID); err != nil {
			// Left behind for the next sweep.
			observability.ReaperFailuresTotal.Inc()
			log.Printf("Sequential purge of ride %d failed: %v", ride.ID, err)
			return false
		}
		ok = true
	}
	if !ok {
		return false
	}

	r.notifier.BroadcastExpired(ctx, ride.ID, nil)
	r.notifier.SendEvent(ride.ClientID, services.EventRequestExpired, map[string]interface{}{
		"rideId": ride.ID,
	})
	return true
}

func (r *Reaper) cancelStuck(ctx context.Context, ride *models.Ride) bool {
	now := time.Now()
	ok, err := r.store.RetireRide(ctx, ride.ID, ride.Status, now)
	if err != nil {
		observability.ReaperFailuresTotal.Inc()
		log.Printf("Failed to retire stuck ride %d: %v", ride.ID, err)
		return false
	}
	if !ok {
		return false
	}

	if ride.DriverID != nil {
		if err := r.store.ReleaseDriver(ctx, *ride.DriverID); err != nil {
			log.Printf("Failed to release driver %d for reaped ride %d: %v", *ride.DriverID, ride.ID, err)
		}
	}

	entry := &models.RideStatusHistory{
		RideID:     ride.ID,
		FromStatus: ride.Status,
		ToStatus:   models.RideStatusCancelled,
		ActorRole:  "system",
	}
	if err := r.store.AppendHistory(ctx, entry); err != nil {
		log.Printf("Failed to log reaped transition for ride %d: %v", ride.ID, err)
	}

	data := map[string]interface{}{
		"rideId":      ride.ID,
		"status":      models.RideStatusCancelled,
		"cancelledBy": "system",
		"reason":      "ride timed out",
	}
	r.notifier.SendEvent(ride.ClientID, services.EventRideCancelled, data)
	if ride.DriverID != nil {
		r.notifier.SendEvent(*ride.DriverID, services.EventRideCancelled, data)
	}
	return true
}
