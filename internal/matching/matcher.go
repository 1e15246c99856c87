package matching

import (
	"context"
	"sort"
	"strings"

	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/pkg/utils"
	"github.com/mmcloughlin/geohash"
)

// Constraints is the ride-type-derived eligibility predicate a driver must
// satisfy to be dispatched a given ride.
type Constraints struct {
	RideTypeID          uint
	AllowedVehicleTypes []string
	FemaleDriverOnly    bool
	RequiresArmored     bool
	RequiresMotorcycle  bool
}

// ConstraintsForRideType builds the eligibility predicate from a ride type,
// optionally tightened by a female-only request flag.
func ConstraintsForRideType(rt *models.RideType, femaleOnlyRequest bool) Constraints {
	cons := Constraints{
		RideTypeID:         rt.ID,
		FemaleDriverOnly:   rt.FemaleDriverOnly || femaleOnlyRequest,
		RequiresArmored:    rt.RequiresArmored,
		RequiresMotorcycle: rt.RequiresMotorcycle,
	}
	if rt.AllowedVehicleTypes != "" {
		for _, v := range strings.Split(rt.AllowedVehicleTypes, ",") {
			if v = strings.TrimSpace(v); v != "" {
				cons.AllowedVehicleTypes = append(cons.AllowedVehicleTypes, v)
			}
		}
	}
	return cons
}

// DriverRecord is a driver as loaded from the store: profile, gender,
// vehicle and the ride types the driver actively serves.
type DriverRecord struct {
	Profile           models.DriverProfile
	Gender            string
	Vehicle           *models.Vehicle
	ActiveRideTypeIDs []uint
}

// Candidate is an eligible driver with distances relative to the origin.
type Candidate struct {
	DriverID       uint
	Profile        models.DriverProfile
	Gender         string
	Vehicle        *models.Vehicle
	DistanceKm     float64
	DistanceMeters int
	Score          float64
}

// Snapshot is the driver view stored in a confirmation token.
type Snapshot struct {
	DriverID       uint    `json:"driverId"`
	VehicleID      uint    `json:"vehicleId"`
	VehicleType    string  `json:"vehicleType"`
	Plate          string  `json:"plate"`
	Rating         float64 `json:"rating"`
	DistanceMeters int     `json:"distanceMeters"`
}

// Snapshot captures the candidate for storage in a confirmation token.
func (c Candidate) Snapshot() Snapshot {
	s := Snapshot{
		DriverID:       c.DriverID,
		Rating:         c.Profile.Rating,
		DistanceMeters: c.DistanceMeters,
	}
	if c.Vehicle != nil {
		s.VehicleID = c.Vehicle.ID
		s.VehicleType = c.Vehicle.VehicleType
		s.Plate = c.Vehicle.Plate
	}
	return s
}

// DriverSource loads candidate drivers. An empty prefix list means no
// geohash prefilter; implementations must still only return online drivers.
type DriverSource interface {
	CandidateDrivers(ctx context.Context, geohashPrefixes []string) ([]DriverRecord, error)
}

// Matcher finds and ranks eligible drivers around an origin point.
type Matcher struct {
	src DriverSource
}

func NewMatcher(src DriverSource) *Matcher {
	return &Matcher{src: src}
}

// Nearby returns eligible drivers within radiusKm of the origin, nearest
// first. No matching driver yields an empty slice, not an error.
func (m *Matcher) Nearby(ctx context.Context, originLat, originLng, radiusKm float64, limit int, cons Constraints) ([]Candidate, error) {
	records, err := m.src.CandidateDrivers(ctx, prefilterCells(originLat, originLng, radiusKm))
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, rec := range records {
		if !Eligible(rec, cons) {
			continue
		}
		dist := utils.HaversineDistance(originLat, originLng, *rec.Profile.Latitude, *rec.Profile.Longitude)
		if dist > radiusKm {
			continue
		}
		candidates = append(candidates, Candidate{
			DriverID:       rec.Profile.DriverID,
			Profile:        rec.Profile,
			Gender:         rec.Gender,
			Vehicle:        rec.Vehicle,
			DistanceKm:     dist,
			DistanceMeters: int(dist * 1000),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// RankBest returns the top N candidates by relevance score, for flows that
// pre-select a driver rather than racing the whole pool.
func (m *Matcher) RankBest(ctx context.Context, originLat, originLng, radiusKm float64, topN int, cons Constraints) ([]Candidate, error) {
	candidates, err := m.Nearby(ctx, originLat, originLng, radiusKm, 0, cons)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidates[i].Score = Score(candidates[i].Profile.Rating, candidates[i].Profile.CompletedRides, candidates[i].DistanceKm)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

// Eligible evaluates the predicate in fixed order, short-circuiting on the
// first failure: account/online/available status, then active ride-type
// association, then gender, then vehicle constraints.
func Eligible(rec DriverRecord, cons Constraints) bool {
	p := rec.Profile
	if p.ApprovalStatus != models.ApprovalApproved || !p.IsOnline || !p.IsAvailable || !p.HasLocation() {
		return false
	}

	if cons.RideTypeID != 0 {
		active := false
		for _, id := range rec.ActiveRideTypeIDs {
			if id == cons.RideTypeID {
				active = true
				break
			}
		}
		if !active {
			return false
		}
	}

	if cons.FemaleDriverOnly && rec.Gender != models.GenderFemale {
		return false
	}

	if cons.RequiresArmored && (rec.Vehicle == nil || !rec.Vehicle.IsArmored) {
		return false
	}
	if cons.RequiresMotorcycle && (rec.Vehicle == nil || !rec.Vehicle.IsMotorcycle) {
		return false
	}
	if len(cons.AllowedVehicleTypes) > 0 {
		if rec.Vehicle == nil {
			return false
		}
		allowed := false
		for _, t := range cons.AllowedVehicleTypes {
			if rec.Vehicle.VehicleType == t {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	return true
}

// Score computes the relevance of a candidate for driver-selection flows.
// Distant drivers past 15 km take a flat penalty.
func Score(rating float64, completedRides int, distanceKm float64) float64 {
	score := rating * 10

	proximity := 50 - distanceKm*2
	if proximity > 0 {
		score += proximity
	}

	experience := float64(completedRides) / 10
	if experience > 20 {
		experience = 20
	}
	score += experience

	if distanceKm > 15 {
		score -= 30
	}
	return score
}

// prefilterCells returns geohash prefixes around the origin sized to the
// search radius. Wide searches skip the prefilter entirely.
func prefilterCells(lat, lng, radiusKm float64) []string {
	var precision uint
	switch {
	case radiusKm <= 7:
		precision = 5
	case radiusKm <= 30:
		precision = 4
	default:
		return nil
	}

	center := geohash.EncodeWithPrecision(lat, lng, precision)
	cells := append(geohash.Neighbors(center), center)
	return cells
}
