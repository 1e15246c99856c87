package storage

import (
	"context"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/reaper"
	"gorm.io/gorm"
)

// StaleRides returns non-terminal rides older than their per-status
// cutoff. A zero cutoff excludes that status from the sweep.
func (s *Store) StaleRides(ctx context.Context, now time.Time, cutoffs reaper.Cutoffs) ([]models.Ride, error) {
	return s.staleRides(ctx, s.db.WithContext(ctx), now, cutoffs)
}

func (s *Store) StaleRidesForUser(ctx context.Context, userID uint, now time.Time, cutoffs reaper.Cutoffs) ([]models.Ride, error) {
	scoped := s.db.WithContext(ctx).Where("client_id = ? OR driver_id = ?", userID, userID)
	return s.staleRides(ctx, scoped, now, cutoffs)
}

func (s *Store) staleRides(ctx context.Context, query *gorm.DB, now time.Time, cutoffs reaper.Cutoffs) ([]models.Ride, error) {
	cond := s.db.Session(&gorm.Session{NewDB: true})
	matched := false
	add := func(status string, cutoff time.Duration) {
		if cutoff <= 0 {
			return
		}
		clause := s.db.Session(&gorm.Session{NewDB: true}).
			Where("status = ? AND created_at < ?", status, now.Add(-cutoff))
		if !matched {
			cond = cond.Where(clause)
			matched = true
		} else {
			cond = cond.Or(clause)
		}
	}
	add(models.RideStatusRequested, cutoffs.Requested)
	add(models.RideStatusAccepted, cutoffs.Accepted)
	add(models.RideStatusInProgress, cutoffs.InProgress)
	if !matched {
		return nil, nil
	}

	var stale []models.Ride
	err := query.Where(cond).Find(&stale).Error
	return stale, err
}

func (s *Store) ActiveRidesForUser(ctx context.Context, userID uint) ([]models.Ride, error) {
	var active []models.Ride
	err := s.db.WithContext(ctx).
		Where("(client_id = ? OR driver_id = ?) AND status NOT IN ?", userID, userID, terminalStatuses()).
		Find(&active).Error
	return active, err
}

// RetireRide moves a ride to CANCELLED only if it is still in fromStatus,
// so a ride a user progressed after the sweep's selection query is never
// touched.
func (s *Store) RetireRide(ctx context.Context, rideID uint, fromStatus string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Ride{}).
		Where("id = ? AND status = ?", rideID, fromStatus).
		Updates(map[string]interface{}{
			"status":       models.RideStatusCancelled,
			"cancelled_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// PurgeRide deletes a ride and its dependent records in one transaction.
// The ride delete itself is guarded by fromStatus; if the ride moved on,
// the whole transaction rolls back and nothing is removed.
func (s *Store) PurgeRide(ctx context.Context, rideID uint, fromStatus string) (bool, error) {
	purged := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ride_id = ?", rideID).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("ride_id = ?", rideID).Delete(&models.RideStatusHistory{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND status = ?", rideID, fromStatus).Delete(&models.Ride{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		purged = true
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return purged, err
}

// PurgeRideSequential is the best-effort fallback when the transactional
// purge fails: the same deletes as individual statements. A partial
// failure leaves the remainder for the next sweep.
func (s *Store) PurgeRideSequential(ctx context.Context, rideID uint) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("ride_id = ?", rideID).Delete(&models.Payment{}).Error; err != nil {
		return err
	}
	if err := db.Where("ride_id = ?", rideID).Delete(&models.RideStatusHistory{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", rideID).Delete(&models.Ride{}).Error
}

// ReleaseDriver returns a driver to the dispatchable pool. The same
// flags are written on trip completion, cancellation, force-reset and
// websocket disconnect.
func (s *Store) ReleaseDriver(ctx context.Context, driverID uint) error {
	return s.SetDriverTripState(ctx, driverID, true, false)
}
