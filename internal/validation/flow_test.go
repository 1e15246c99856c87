package validation

import (
	"testing"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/models"
)

func acceptedRide(clientID, driverID uint, acceptedAgo time.Duration) *models.Ride {
	at := time.Now().Add(-acceptedAgo)
	ride := &models.Ride{
		ClientID:   clientID,
		DriverID:   &driverID,
		Status:     models.RideStatusAccepted,
		AcceptedAt: &at,
	}
	ride.ID = 1
	return ride
}

func TestCreateBlockedByActiveRide(t *testing.T) {
	active := &models.Ride{Status: models.RideStatusInProgress}
	active.ID = 9

	r := Validate(Input{Op: OpCreate, ActorID: 1, ActorRole: "client", ActiveRide: active})
	if r.CanProceed {
		t.Fatal("create should be blocked while a ride is active")
	}
	if len(r.Errors) == 0 || len(r.Recommendations) == 0 {
		t.Errorf("expected error and recommendation, got %+v", r)
	}
}

func TestCreateAllowedAfterTerminalRide(t *testing.T) {
	done := &models.Ride{Status: models.RideStatusCompleted}

	r := Validate(Input{Op: OpCreate, ActorID: 1, ActorRole: "client", ActiveRide: done})
	if !r.CanProceed {
		t.Errorf("terminal ride should not block creation: %+v", r)
	}
}

func TestAcceptRequiresDriverRole(t *testing.T) {
	ride := &models.Ride{Status: models.RideStatusRequested}

	r := Validate(Input{Op: OpAccept, ActorID: 2, ActorRole: "client", Ride: ride})
	if r.CanProceed {
		t.Error("clients must not be able to accept rides")
	}
}

func TestAcceptRequiresRequestedStatus(t *testing.T) {
	ride := acceptedRide(1, 3, time.Minute)
	profile := &models.DriverProfile{IsAvailable: true}

	r := Validate(Input{Op: OpAccept, ActorID: 2, ActorRole: "driver", Ride: ride, DriverProfile: profile})
	if r.CanProceed {
		t.Error("accept must require REQUESTED status")
	}
}

func TestStartRequiresAssignedDriver(t *testing.T) {
	ride := acceptedRide(1, 3, time.Minute)

	r := Validate(Input{Op: OpStart, ActorID: 4, ActorRole: "driver", Ride: ride})
	if r.CanProceed {
		t.Error("only the assigned driver may start the ride")
	}
}

func TestStartFemaleOnlyRequiresFemaleDriver(t *testing.T) {
	ride := acceptedRide(1, 3, time.Minute)
	ride.FemaleOnly = true

	r := Validate(Input{Op: OpStart, ActorID: 3, ActorRole: "driver", Ride: ride, DriverGender: models.GenderMale})
	if r.CanProceed {
		t.Error("male driver must not start a female-only ride")
	}

	r = Validate(Input{Op: OpStart, ActorID: 3, ActorRole: "driver", Ride: ride, DriverGender: models.GenderFemale})
	if !r.CanProceed {
		t.Errorf("female driver should start a female-only ride: %+v", r)
	}
}

func TestStartWarnsOnRapidStart(t *testing.T) {
	ride := acceptedRide(1, 3, 5*time.Second)

	r := Validate(Input{Op: OpStart, ActorID: 3, ActorRole: "driver", Ride: ride, DriverGender: models.GenderMale})
	if !r.CanProceed {
		t.Fatalf("rapid start should proceed with a warning: %+v", r)
	}
	if len(r.Warnings) == 0 {
		t.Error("expected a rapid-start warning")
	}
}

func TestCompleteWarnsOnShortRide(t *testing.T) {
	driverID := uint(3)
	pickup := time.Now().Add(-20 * time.Second)
	ride := &models.Ride{
		ClientID: 1,
		DriverID: &driverID,
		Status:   models.RideStatusInProgress,
		PickupAt: &pickup,
	}

	r := Validate(Input{Op: OpComplete, ActorID: 3, ActorRole: "driver", Ride: ride})
	if !r.CanProceed {
		t.Fatalf("short ride should complete with a warning: %+v", r)
	}
	if len(r.Warnings) == 0 {
		t.Error("expected a short-ride warning")
	}
}

func TestCancelRequiresParty(t *testing.T) {
	ride := acceptedRide(1, 3, time.Minute)

	r := Validate(Input{Op: OpCancel, ActorID: 99, ActorRole: "client", Ride: ride})
	if r.CanProceed {
		t.Error("strangers must not cancel rides")
	}
}

func TestCancelBlockedInProgress(t *testing.T) {
	driverID := uint(3)
	ride := &models.Ride{ClientID: 1, DriverID: &driverID, Status: models.RideStatusInProgress}

	r := Validate(Input{Op: OpCancel, ActorID: 1, ActorRole: "client", Ride: ride})
	if r.CanProceed {
		t.Error("cancel must be rejected once the ride is in progress")
	}
}

func TestCancelRecommendsFeeAfterGracePeriod(t *testing.T) {
	ride := acceptedRide(1, 3, 6*time.Minute)

	r := Validate(Input{Op: OpCancel, ActorID: 1, ActorRole: "client", Ride: ride})
	if !r.CanProceed {
		t.Fatalf("late cancel should proceed: %+v", r)
	}
	if len(r.Recommendations) == 0 {
		t.Error("expected a fee recommendation after the grace period")
	}

	early := acceptedRide(1, 3, 4*time.Minute)
	r = Validate(Input{Op: OpCancel, ActorID: 1, ActorRole: "client", Ride: early})
	if len(r.Recommendations) != 0 {
		t.Errorf("no fee recommendation expected within the grace period, got %v", r.Recommendations)
	}
}
