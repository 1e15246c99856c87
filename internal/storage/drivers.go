package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/matching"
	"github.com/chachabrian/swiftride-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) DriverProfile(ctx context.Context, driverID uint) (*models.DriverProfile, error) {
	var profile models.DriverProfile
	err := s.db.WithContext(ctx).Where("driver_id = ?", driverID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Store) DriverUser(ctx context.Context, driverID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, driverID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) VehicleForDriver(ctx context.Context, driverID uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := s.db.WithContext(ctx).Where("driver_id = ?", driverID).First(&vehicle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (s *Store) SetDriverTripState(ctx context.Context, driverID uint, available, activeTrip bool) error {
	return s.db.WithContext(ctx).Model(&models.DriverProfile{}).
		Where("driver_id = ?", driverID).
		Updates(map[string]interface{}{
			"is_available":   available,
			"is_active_trip": activeTrip,
		}).Error
}

func (s *Store) IncrementCompletedRides(ctx context.Context, driverID uint) error {
	return s.db.WithContext(ctx).Model(&models.DriverProfile{}).
		Where("driver_id = ?", driverID).
		Update("completed_rides", gorm.Expr("completed_rides + 1")).Error
}

// UpdateDriverLocation upserts the driver's published position. The
// geohash column feeds the matcher's prefix prefilter.
func (s *Store) UpdateDriverLocation(ctx context.Context, driverID uint, lat, lng, heading float64, geohash string) error {
	profile := models.DriverProfile{
		DriverID:  driverID,
		Latitude:  &lat,
		Longitude: &lng,
		Geohash:   geohash,
		Heading:   heading,
		LastSeen:  time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "driver_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"latitude", "longitude", "geohash", "heading", "last_seen",
		}),
	}).Create(&profile).Error
}

func (s *Store) SetDriverAvailability(ctx context.Context, driverID uint, online, available bool) error {
	return s.db.WithContext(ctx).Model(&models.DriverProfile{}).
		Where("driver_id = ?", driverID).
		Updates(map[string]interface{}{
			"is_online":    online,
			"is_available": available,
			"last_seen":    time.Now(),
		}).Error
}

// DriverGender implements the broadcaster's gender directory.
func (s *Store) DriverGender(ctx context.Context, driverID uint) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("gender").First(&user, driverID).Error; err != nil {
		return "", err
	}
	return user.Gender, nil
}

// CandidateDrivers implements the matcher's driver source: online drivers,
// optionally narrowed by geohash cell prefixes, with gender, vehicle and
// active ride types attached.
func (s *Store) CandidateDrivers(ctx context.Context, geohashPrefixes []string) ([]matching.DriverRecord, error) {
	query := s.db.WithContext(ctx).Where("is_online = ?", true)
	if len(geohashPrefixes) > 0 {
		prefixed := query.Session(&gorm.Session{NewDB: true})
		cond := prefixed.Where("geohash LIKE ?", geohashPrefixes[0]+"%")
		for _, prefix := range geohashPrefixes[1:] {
			cond = cond.Or("geohash LIKE ?", prefix+"%")
		}
		query = query.Where(cond)
	}

	var profiles []models.DriverProfile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.DriverID)
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	genders := make(map[uint]string, len(users))
	for _, u := range users {
		genders[u.ID] = u.Gender
	}

	var vehicles []models.Vehicle
	if err := s.db.WithContext(ctx).Where("driver_id IN ?", ids).Find(&vehicles).Error; err != nil {
		return nil, err
	}
	vehicleByDriver := make(map[uint]*models.Vehicle, len(vehicles))
	for i := range vehicles {
		if _, seen := vehicleByDriver[vehicles[i].DriverID]; !seen {
			vehicleByDriver[vehicles[i].DriverID] = &vehicles[i]
		}
	}

	var assocs []models.DriverRideType
	if err := s.db.WithContext(ctx).Where("driver_id IN ? AND active = ?", ids, true).Find(&assocs).Error; err != nil {
		return nil, err
	}
	rideTypesByDriver := make(map[uint][]uint)
	for _, a := range assocs {
		rideTypesByDriver[a.DriverID] = append(rideTypesByDriver[a.DriverID], a.RideTypeID)
	}

	records := make([]matching.DriverRecord, 0, len(profiles))
	for _, p := range profiles {
		records = append(records, matching.DriverRecord{
			Profile:           p,
			Gender:            genders[p.DriverID],
			Vehicle:           vehicleByDriver[p.DriverID],
			ActiveRideTypeIDs: rideTypesByDriver[p.DriverID],
		})
	}
	return records, nil
}
