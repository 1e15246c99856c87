package validation

import (
	"fmt"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/models"
)

// Operation names the lifecycle transition being gated.
type Operation string

const (
	OpCreate   Operation = "create"
	OpAccept   Operation = "accept"
	OpStart    Operation = "start"
	OpComplete Operation = "complete"
	OpCancel   Operation = "cancel"
)

// Result is the outcome of a pre-flight check. Errors block the
// transition; warnings and recommendations are recorded for audit but let
// it proceed.
type Result struct {
	IsValid         bool     `json:"isValid"`
	CanProceed      bool     `json:"canProceed"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// Input carries everything a rule may need. Validation never mutates
// state; callers load the records and hand them over.
type Input struct {
	Op        Operation
	ActorID   uint
	ActorRole string

	Ride       *models.Ride // nil for create
	ActiveRide *models.Ride // actor's current non-terminal ride, nil if none

	DriverGender  string
	DriverProfile *models.DriverProfile

	Now time.Time
}

const (
	rapidStartThreshold = 30 * time.Second
	shortRideThreshold  = time.Minute
)

// Validate runs the rules for the given operation and returns the
// structured result.
func Validate(in Input) Result {
	r := Result{}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	switch in.Op {
	case OpCreate:
		r.checkNoActiveRide(in)
	case OpAccept:
		r.checkRole(in, "driver", "only drivers can accept rides")
		r.checkNoActiveRide(in)
		r.checkStatus(in, models.RideStatusRequested)
		if in.DriverProfile != nil && !in.DriverProfile.IsAvailable {
			r.fail("driver is not available")
		}
	case OpStart:
		r.checkRole(in, "driver", "only drivers can start rides")
		r.checkAssignedDriver(in)
		r.checkStatus(in, models.RideStatusAccepted)
		if in.Ride != nil && in.Ride.FemaleOnly && in.DriverGender != models.GenderFemale {
			r.fail("female-only rides can only be started by a female driver")
		}
		if in.Ride != nil && in.Ride.AcceptedAt != nil && in.Now.Sub(*in.Ride.AcceptedAt) < rapidStartThreshold {
			r.warn("ride started unusually quickly after acceptance")
		}
	case OpComplete:
		r.checkRole(in, "driver", "only drivers can complete rides")
		r.checkAssignedDriver(in)
		r.checkStatus(in, models.RideStatusInProgress)
		if in.Ride != nil && in.Ride.PickupAt != nil && in.Now.Sub(*in.Ride.PickupAt) < shortRideThreshold {
			r.warn("ride duration is unusually short")
		}
	case OpCancel:
		r.checkParty(in)
		r.checkStatus(in, models.RideStatusRequested, models.RideStatusAccepted)
		if in.Ride != nil && in.Ride.AcceptedAt != nil && in.ActorRole == "client" &&
			in.Now.Sub(*in.Ride.AcceptedAt) > 5*time.Minute {
			r.recommend("cancellation fee applies this long after acceptance")
		}
	default:
		r.fail(fmt.Sprintf("unknown operation %q", in.Op))
	}

	r.IsValid = len(r.Errors) == 0
	r.CanProceed = r.IsValid && len(r.Errors) == 0
	return r
}

func (r *Result) fail(msg string)      { r.Errors = append(r.Errors, msg) }
func (r *Result) warn(msg string)      { r.Warnings = append(r.Warnings, msg) }
func (r *Result) recommend(msg string) { r.Recommendations = append(r.Recommendations, msg) }

func (r *Result) checkRole(in Input, role, msg string) {
	if in.ActorRole != role {
		r.fail(msg)
	}
}

// A user may hold at most one non-terminal ride at a time.
func (r *Result) checkNoActiveRide(in Input) {
	if in.ActiveRide != nil && !models.IsTerminalStatus(in.ActiveRide.Status) {
		r.fail(fmt.Sprintf("user already has an active ride (id %d, status %s)", in.ActiveRide.ID, in.ActiveRide.Status))
		r.recommend("complete or cancel the active ride first")
	}
}

func (r *Result) checkAssignedDriver(in Input) {
	if in.Ride == nil {
		r.fail("ride not loaded")
		return
	}
	if in.Ride.DriverID == nil || *in.Ride.DriverID != in.ActorID {
		r.fail("actor is not the driver assigned to this ride")
	}
}

func (r *Result) checkParty(in Input) {
	if in.Ride == nil {
		r.fail("ride not loaded")
		return
	}
	if in.Ride.ClientID == in.ActorID {
		return
	}
	if in.Ride.DriverID != nil && *in.Ride.DriverID == in.ActorID {
		return
	}
	r.fail("actor is not a party to this ride")
}

func (r *Result) checkStatus(in Input, allowed ...string) {
	if in.Ride == nil {
		return
	}
	for _, s := range allowed {
		if in.Ride.Status == s {
			return
		}
	}
	r.fail(fmt.Sprintf("ride status %s does not permit %s", in.Ride.Status, in.Op))
}
