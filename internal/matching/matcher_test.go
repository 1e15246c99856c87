package matching

import (
	"context"
	"testing"

	"github.com/chachabrian/swiftride-backend/internal/models"
)

type fakeSource struct {
	records []DriverRecord
}

func (f *fakeSource) CandidateDrivers(ctx context.Context, prefixes []string) ([]DriverRecord, error) {
	return f.records, nil
}

func driverAt(id uint, lat, lng float64) DriverRecord {
	return DriverRecord{
		Profile: models.DriverProfile{
			DriverID:       id,
			Latitude:       &lat,
			Longitude:      &lng,
			IsOnline:       true,
			IsAvailable:    true,
			ApprovalStatus: models.ApprovalApproved,
			Rating:         5,
		},
		Gender: models.GenderMale,
	}
}

// Origin in central Nairobi; 0.01 degrees of latitude is roughly 1.1 km.
const (
	originLat = -1.2864
	originLng = 36.8172
)

func TestNearbyOrdersByDistance(t *testing.T) {
	near := driverAt(1, originLat+0.018, originLng) // ~2 km north
	far := driverAt(2, originLat+0.072, originLng)  // ~8 km north
	src := &fakeSource{records: []DriverRecord{far, near}}

	candidates, err := NewMatcher(src).Nearby(context.Background(), originLat, originLng, 10, 0, Constraints{})
	if err != nil {
		t.Fatalf("Nearby returned error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].DriverID != 1 || candidates[1].DriverID != 2 {
		t.Errorf("expected nearest first, got order %d, %d", candidates[0].DriverID, candidates[1].DriverID)
	}
	if candidates[0].DistanceKm >= candidates[1].DistanceKm {
		t.Errorf("distances not ascending: %.2f then %.2f", candidates[0].DistanceKm, candidates[1].DistanceKm)
	}
}

func TestNearbyExcludesOutsideRadius(t *testing.T) {
	inside := driverAt(1, originLat+0.018, originLng)
	outside := driverAt(2, originLat+0.2, originLng) // ~22 km
	src := &fakeSource{records: []DriverRecord{inside, outside}}

	candidates, err := NewMatcher(src).Nearby(context.Background(), originLat, originLng, 10, 0, Constraints{})
	if err != nil {
		t.Fatalf("Nearby returned error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].DriverID != 1 {
		t.Fatalf("expected only driver 1 within radius, got %v", candidates)
	}
}

func TestNearbyEmptyPoolIsNotAnError(t *testing.T) {
	candidates, err := NewMatcher(&fakeSource{}).Nearby(context.Background(), originLat, originLng, 10, 0, Constraints{})
	if err != nil {
		t.Fatalf("Nearby returned error: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}

func TestEligiblePredicate(t *testing.T) {
	base := func() DriverRecord { return driverAt(1, originLat, originLng) }

	tests := []struct {
		name   string
		mutate func(*DriverRecord)
		cons   Constraints
		want   bool
	}{
		{"approved and online", func(r *DriverRecord) {}, Constraints{}, true},
		{"offline", func(r *DriverRecord) { r.Profile.IsOnline = false }, Constraints{}, false},
		{"unavailable", func(r *DriverRecord) { r.Profile.IsAvailable = false }, Constraints{}, false},
		{"pending approval", func(r *DriverRecord) { r.Profile.ApprovalStatus = models.ApprovalPending }, Constraints{}, false},
		{"no location", func(r *DriverRecord) { r.Profile.Latitude = nil }, Constraints{}, false},
		{"ride type not served", func(r *DriverRecord) { r.ActiveRideTypeIDs = []uint{2} }, Constraints{RideTypeID: 1}, false},
		{"ride type served", func(r *DriverRecord) { r.ActiveRideTypeIDs = []uint{1, 2} }, Constraints{RideTypeID: 1}, true},
		{"female only, male driver", func(r *DriverRecord) {}, Constraints{FemaleDriverOnly: true}, false},
		{"female only, female driver", func(r *DriverRecord) { r.Gender = models.GenderFemale }, Constraints{FemaleDriverOnly: true}, true},
		{"armored required, no vehicle", func(r *DriverRecord) {}, Constraints{RequiresArmored: true}, false},
		{"armored required, armored vehicle", func(r *DriverRecord) {
			r.Vehicle = &models.Vehicle{IsArmored: true}
		}, Constraints{RequiresArmored: true}, true},
		{"motorcycle required, sedan", func(r *DriverRecord) {
			r.Vehicle = &models.Vehicle{VehicleType: "sedan"}
		}, Constraints{RequiresMotorcycle: true}, false},
		{"vehicle type not allowed", func(r *DriverRecord) {
			r.Vehicle = &models.Vehicle{VehicleType: "sedan"}
		}, Constraints{AllowedVehicleTypes: []string{"suv", "van"}}, false},
		{"vehicle type allowed", func(r *DriverRecord) {
			r.Vehicle = &models.Vehicle{VehicleType: "van"}
		}, Constraints{AllowedVehicleTypes: []string{"suv", "van"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base()
			tt.mutate(&rec)
			if got := Eligible(rec, tt.cons); got != tt.want {
				t.Errorf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	// rating 5, 100 completed rides, 2 km away:
	// 50 + (50 - 4) + 10 = 106
	if got := Score(5, 100, 2); got != 106 {
		t.Errorf("Score = %.1f, want 106", got)
	}

	// Experience contribution caps at 20.
	if got := Score(5, 1000, 2); got != 116 {
		t.Errorf("Score with capped experience = %.1f, want 116", got)
	}

	// Past 15 km: proximity term is zero and the flat penalty applies.
	// 50 + 0 + 10 - 30 = 30
	if got := Score(5, 100, 40); got != 30 {
		t.Errorf("Score past 15km = %.1f, want 30", got)
	}
}

func TestRankBestPrefersHigherScore(t *testing.T) {
	near := driverAt(1, originLat+0.018, originLng)
	near.Profile.Rating = 3.0
	far := driverAt(2, originLat+0.045, originLng) // ~5 km
	far.Profile.Rating = 5.0
	far.Profile.CompletedRides = 200

	src := &fakeSource{records: []DriverRecord{near, far}}
	best, err := NewMatcher(src).RankBest(context.Background(), originLat, originLng, 10, 1, Constraints{})
	if err != nil {
		t.Fatalf("RankBest returned error: %v", err)
	}
	if len(best) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(best))
	}
	// far: 50 + ~40 + 20 = ~110 beats near: 30 + ~46 + 0 = ~76
	if best[0].DriverID != 2 {
		t.Errorf("expected driver 2 to rank best, got %d", best[0].DriverID)
	}
}

func TestConstraintsForRideType(t *testing.T) {
	rt := &models.RideType{
		AllowedVehicleTypes: "suv, van",
		FemaleDriverOnly:    false,
	}
	rt.ID = 7

	cons := ConstraintsForRideType(rt, true)
	if cons.RideTypeID != 7 {
		t.Errorf("RideTypeID = %d, want 7", cons.RideTypeID)
	}
	if !cons.FemaleDriverOnly {
		t.Error("request-level female-only flag should tighten the constraints")
	}
	if len(cons.AllowedVehicleTypes) != 2 || cons.AllowedVehicleTypes[1] != "van" {
		t.Errorf("AllowedVehicleTypes = %v", cons.AllowedVehicleTypes)
	}
}
