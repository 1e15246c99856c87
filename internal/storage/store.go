package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/rides"
	"gorm.io/gorm"
)

// Store is the gorm-backed persistence layer. It implements the store
// interfaces of the rides service, the reaper, the matcher and the
// dispatch broadcaster.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ride(ctx context.Context, id uint) (*models.Ride, error) {
	var ride models.Ride
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Driver").
		Preload("RideType").
		First(&ride, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, rides.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

func (s *Store) CreateRide(ctx context.Context, ride *models.Ride) error {
	return s.db.WithContext(ctx).Create(ride).Error
}

func (s *Store) ActiveRideForUser(ctx context.Context, userID uint) (*models.Ride, error) {
	var ride models.Ride
	err := s.db.WithContext(ctx).
		Where("(client_id = ? OR driver_id = ?) AND status NOT IN ?", userID, userID, terminalStatuses()).
		Order("created_at DESC").
		First(&ride).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

func (s *Store) RidesForUser(ctx context.Context, userID uint, role string, filter rides.RideFilter) ([]models.Ride, error) {
	query := s.db.WithContext(ctx).Model(&models.Ride{})
	if role == string(models.UserTypeDriver) {
		query = query.Where("driver_id = ?", userID)
	} else {
		query = query.Where("client_id = ?", userID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var result []models.Ride
	err := query.Preload("RideType").Order("created_at DESC").Find(&result).Error
	return result, err
}

// AcceptRide is the single conditional update resolving the acceptance
// race: the row only changes if the status is still REQUESTED, so exactly
// one concurrent caller observes RowsAffected == 1.
func (s *Store) AcceptRide(ctx context.Context, rideID, driverID, vehicleID uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Ride{}).
		Where("id = ? AND status = ?", rideID, models.RideStatusRequested).
		Updates(map[string]interface{}{
			"status":      models.RideStatusAccepted,
			"driver_id":   driverID,
			"vehicle_id":  vehicleID,
			"accepted_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) TransitionRide(ctx context.Context, rideID uint, from, to string, set map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range set {
		updates[k] = v
	}
	res := s.db.WithContext(ctx).Model(&models.Ride{}).
		Where("id = ? AND status = ?", rideID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) AppendHistory(ctx context.Context, entry *models.RideStatusHistory) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) RideType(ctx context.Context, id uint) (*models.RideType, error) {
	var rt models.RideType
	if err := s.db.WithContext(ctx).First(&rt, id).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (s *Store) RideTypes(ctx context.Context) ([]models.RideType, error) {
	var types []models.RideType
	err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&types).Error
	return types, err
}

func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return s.db.WithContext(ctx).Create(payment).Error
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, rideID uint, kind, status string) error {
	return s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("ride_id = ? AND kind = ?", rideID, kind).
		Update("status", status).Error
}

func terminalStatuses() []string {
	return []string{models.RideStatusCompleted, models.RideStatusCancelled, models.RideStatusRejected}
}
