package rides

import (
	"context"
	"log"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/confirm"
	"github.com/chachabrian/swiftride-backend/internal/matching"
	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/observability"
	"github.com/chachabrian/swiftride-backend/internal/pricing"
	"github.com/chachabrian/swiftride-backend/internal/services"
	"github.com/chachabrian/swiftride-backend/internal/validation"
)

// Events is the real-time delivery surface the service emits through.
type Events interface {
	SendEvent(userID uint, event string, data map[string]interface{})
}

// Confirmations supplies single-use quote tokens for ride creation.
type Confirmations interface {
	Consume(ctx context.Context, token string) (*confirm.Confirmation, error)
}

// CandidateFinder locates eligible drivers around a pickup point.
type CandidateFinder interface {
	Nearby(ctx context.Context, originLat, originLng, radiusKm float64, limit int, cons matching.Constraints) ([]matching.Candidate, error)
}

// Dispatcher pushes ride offers to drivers.
type Dispatcher interface {
	Broadcast(ctx context.Context, ride *models.Ride, candidateIDs []uint) int
	BroadcastToAllDrivers(ctx context.Context, ride *models.Ride) int
	BroadcastExpired(ctx context.Context, rideID uint, candidateIDs []uint)
}

// Config tunes the dispatch and cancellation behaviour.
type Config struct {
	SearchRadiusKm     float64
	WidenedRadiusKm    float64
	CandidateLimit     int
	CancellationFeeCap float64
}

// DefaultConfig matches the production dispatch window.
func DefaultConfig() Config {
	return Config{
		SearchRadiusKm:     5,
		WidenedRadiusKm:    12,
		CandidateLimit:     10,
		CancellationFeeCap: 200,
	}
}

// Service is the ride lifecycle state machine. All transitions go through
// the store's conditional updates, so concurrent actors can never move a
// ride along two edges at once.
type Service struct {
	store         Store
	confirmations Confirmations
	finder        CandidateFinder
	dispatcher    Dispatcher
	events        Events
	settler       Settler
	cfg           Config
}

func NewService(store Store, confirmations Confirmations, finder CandidateFinder, dispatcher Dispatcher, events Events, settler Settler, cfg Config) *Service {
	if cfg.SearchRadiusKm <= 0 {
		cfg = DefaultConfig()
	}
	if settler == nil {
		settler = LogSettler{}
	}
	return &Service{
		store:         store,
		confirmations: confirmations,
		finder:        finder,
		dispatcher:    dispatcher,
		events:        events,
		settler:       settler,
		cfg:           cfg,
	}
}

// Create turns a consumed confirmation token into a ride. If the token
// carried a pre-selected driver who is still dispatchable, the ride is
// created already ACCEPTED; otherwise it is created REQUESTED and offered
// to nearby drivers.
func (s *Service) Create(ctx context.Context, clientID uint, token string) (*models.Ride, validation.Result, error) {
	conf, err := s.confirmations.Consume(ctx, token)
	if err != nil {
		return nil, validation.Result{}, err
	}
	if conf.UserID != clientID {
		return nil, validation.Result{}, ErrUnauthorized
	}

	active, err := s.store.ActiveRideForUser(ctx, clientID)
	if err != nil {
		return nil, validation.Result{}, err
	}
	result := validation.Validate(validation.Input{
		Op:         validation.OpCreate,
		ActorID:    clientID,
		ActorRole:  "client",
		ActiveRide: active,
	})
	if !result.CanProceed {
		return nil, result, ErrValidationFailed
	}

	now := time.Now()
	req := conf.Request
	ride := &models.Ride{
		ClientID:            clientID,
		RideTypeID:          req.RideTypeID,
		PickupLat:           req.PickupLat,
		PickupLng:           req.PickupLng,
		PickupAddr:          req.PickupAddr,
		DestLat:             req.DestLat,
		DestLng:             req.DestLng,
		DestAddr:            req.DestAddr,
		BasePrice:           conf.Quote.BasePrice,
		FinalPrice:          conf.Quote.FinalPrice,
		Currency:            conf.Quote.Currency,
		RequestedAt:         now,
		ScheduledAt:         req.ScheduledAt,
		FemaleOnly:          req.FemaleOnly,
		IsDelivery:          req.IsDelivery,
		HasPets:             req.HasPets,
		BaggageCount:        req.BaggageCount,
		SpecialRequirements: req.SpecialRequirements,
		Status:              models.RideStatusRequested,
	}

	// A pre-selected driver must still be dispatchable, with a vehicle on
	// record, at creation time; otherwise the ride falls back to an
	// unmatched request. An accepted ride always carries both a driver and
	// a vehicle.
	if conf.Driver != nil {
		vehicle, vehErr := s.store.VehicleForDriver(ctx, conf.Driver.DriverID)
		if vehErr == nil && vehicle != nil && s.driverStillDispatchable(ctx, conf.Driver.DriverID) {
			ride.Status = models.RideStatusAccepted
			ride.DriverID = &conf.Driver.DriverID
			vehicleID := vehicle.ID
			ride.VehicleID = &vehicleID
			acceptedAt := now
			ride.AcceptedAt = &acceptedAt
		} else {
			result.Warnings = append(result.Warnings, "selected driver is no longer available, searching for another driver")
		}
	}

	if err := s.store.CreateRide(ctx, ride); err != nil {
		return nil, result, err
	}
	s.appendHistory(ctx, ride.ID, "", ride.Status, clientID, "client")

	if ride.Status == models.RideStatusAccepted && ride.DriverID != nil {
		if err := s.store.SetDriverTripState(ctx, *ride.DriverID, false, true); err != nil {
			log.Printf("Failed to flag driver %d on trip: %v", *ride.DriverID, err)
		}
		s.emit(ctx, ride, services.EventRideAccepted, map[string]interface{}{
			"driverId": *ride.DriverID,
		})
	} else {
		s.dispatchRequest(ctx, ride)
	}

	return ride, result, nil
}

// Accept resolves the first-acceptance race. Exactly one concurrent caller
// wins; everyone else gets ErrAlreadyAccepted.
func (s *Service) Accept(ctx context.Context, rideID, driverID uint) (*models.Ride, error) {
	ride, err := s.store.Ride(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(ride.Status, models.RideStatusAccepted) {
		return nil, ErrAlreadyAccepted
	}

	profile, err := s.store.DriverProfile(ctx, driverID)
	if err != nil {
		return nil, err
	}
	active, err := s.store.ActiveRideForUser(ctx, driverID)
	if err != nil {
		return nil, err
	}

	result := validation.Validate(validation.Input{
		Op:            validation.OpAccept,
		ActorID:       driverID,
		ActorRole:     "driver",
		Ride:          ride,
		ActiveRide:    active,
		DriverProfile: profile,
	})
	if !result.CanProceed {
		return nil, ErrValidationFailed
	}

	vehicle, err := s.store.VehicleForDriver(ctx, driverID)
	if err != nil || vehicle == nil {
		return nil, ErrDriverUnavailable
	}

	now := time.Now()
	won, err := s.store.AcceptRide(ctx, rideID, driverID, vehicle.ID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		observability.AcceptConflictsTotal.Inc()
		return nil, ErrAlreadyAccepted
	}

	if err := s.store.SetDriverTripState(ctx, driverID, false, true); err != nil {
		log.Printf("Failed to flag driver %d on trip: %v", driverID, err)
	}
	s.appendHistory(ctx, rideID, models.RideStatusRequested, models.RideStatusAccepted, driverID, "driver")

	ride, err = s.store.Ride(ctx, rideID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, ride, services.EventRideAccepted, map[string]interface{}{
		"driverId":  driverID,
		"vehicleId": vehicle.ID,
	})
	return ride, nil
}

// Arrive notifies the passenger the driver is at the pickup point. It is
// not a status transition; the ride stays ACCEPTED until it starts.
func (s *Service) Arrive(ctx context.Context, rideID, driverID uint) error {
	ride, err := s.store.Ride(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return ErrUnauthorized
	}
	if ride.Status != models.RideStatusAccepted {
		return ErrInvalidTransition
	}

	s.events.SendEvent(ride.ClientID, services.EventDriverArrived, map[string]interface{}{
		"rideId": ride.ID,
	})
	return nil
}

// Start moves an accepted ride into progress.
func (s *Service) Start(ctx context.Context, rideID, driverID uint) (*models.Ride, validation.Result, error) {
	ride, err := s.store.Ride(ctx, rideID)
	if err != nil {
		return nil, validation.Result{}, err
	}
	if !CanTransition(ride.Status, models.RideStatusInProgress) {
		return nil, validation.Result{}, ErrInvalidTransition
	}

	gender := ""
	if user, err := s.store.DriverUser(ctx, driverID); err == nil && user != nil {
		gender = user.Gender
	}

	result := validation.Validate(validation.Input{
		Op:           validation.OpStart,
		ActorID:      driverID,
		ActorRole:    "driver",
		Ride:         ride,
		DriverGender: gender,
	})
	if !result.CanProceed {
		return nil, result, ErrValidationFailed
	}

	now := time.Now()
	ok, err := s.store.TransitionRide(ctx, rideID, models.RideStatusAccepted, models.RideStatusInProgress, map[string]interface{}{
		"pickup_at": now,
	})
	if err != nil {
		return nil, result, err
	}
	if !ok {
		return nil, result, ErrInvalidTransition
	}

	s.appendHistory(ctx, rideID, models.RideStatusAccepted, models.RideStatusInProgress, driverID, "driver")

	ride, err = s.store.Ride(ctx, rideID)
	if err != nil {
		return nil, result, err
	}
	s.emit(ctx, ride, services.EventRideStarted, nil)
	return ride, result, nil
}

// CompleteInput carries the measured trip figures, both optional.
type CompleteInput struct {
	ActualDistanceKm   float64
	ActualDurationMins int
}

// Complete finishes a ride in progress, records the fare and releases the
// driver. Settlement failure marks the payment failed but never rolls the
// completion back.
func (s *Service) Complete(ctx context.Context, rideID, driverID uint, in CompleteInput) (*models.Ride, validation.Result, error) {
	ride, err := s.store.Ride(ctx, rideID)
	if err != nil {
		return nil, validation.Result{}, err
	}
	if !CanTransition(ride.Status, models.RideStatusCompleted) {
		return nil, validation.Result{}, ErrInvalidTransition
	}

	result := validation.Validate(validation.Input{
		Op:        validation.OpComplete,
		ActorID:   driverID,
		ActorRole: "driver",
		Ride:      ride,
	})
	if !result.CanProceed {
		return nil, result, ErrValidationFailed
	}

	now := time.Now()
	duration := in.ActualDurationMins
	if duration == 0 && ride.PickupAt != nil {
		duration = int(now.Sub(*ride.PickupAt).Minutes())
	}

	ok, err := s.store.TransitionRide(ctx, rideID, models.RideStatusInProgress, models.RideStatusCompleted, map[string]interface{}{
		"drop_off_at":     now,
		"actual_distance": in.ActualDistanceKm,
		"actual_duration": duration,
	})
	if err != nil {
		return nil, result, err
	}
	if !ok {
		return nil, result, ErrInvalidTransition
	}

	if err := s.store.SetDriverTripState(ctx, driverID, true, false); err != nil {
		log.Printf("Failed to release driver %d after ride %d: %v", driverID, rideID, err)
	}
	if err := s.store.IncrementCompletedRides(ctx, driverID); err != nil {
		log.Printf("Failed to count completed ride for driver %d: %v", driverID, err)
	}
	s.appendHistory(ctx, rideID, models.RideStatusInProgress, models.RideStatusCompleted, driverID, "driver")

	s.settleFare(ctx, ride, driverID)

	ride, err = s.store.Ride(ctx, rideID)
	if err != nil {
		return nil, result, err
	}
	s.emit(ctx, ride, services.EventRideCompleted, map[string]interface{}{
		"finalPrice": ride.FinalPrice,
		"currency":   ride.Currency,
	})
	return ride, result, nil
}

// Cancel terminates a ride that has not started. A passenger cancelling
// more than the grace period after acceptance is charged a capped
// cancellation fee.
func (s *Service) Cancel(ctx context.Context, rideID, actorID uint, actorRole, reason string) (*models.Ride, float64, error) {
	ride, err := s.store.Ride(ctx, rideID)
	if err != nil {
		return nil, 0, err
	}
	if ride.ClientID != actorID && (ride.DriverID == nil || *ride.DriverID != actorID) {
		return nil, 0, ErrUnauthorized
	}
	if !CanTransition(ride.Status, models.RideStatusCancelled) {
		return nil, 0, ErrInvalidTransition
	}

	result := validation.Validate(validation.Input{
		Op:        validation.OpCancel,
		ActorID:   actorID,
		ActorRole: actorRole,
		Ride:      ride,
	})
	if !result.CanProceed {
		return nil, 0, ErrValidationFailed
	}

	now := time.Now()
	fee := 0.0
	if actorRole == "client" && ride.AcceptedAt != nil && now.Sub(*ride.AcceptedAt) > pricing.CancellationGracePeriod {
		fee = pricing.CancellationFee(ride.BasePrice, s.cfg.CancellationFeeCap)
	}

	fromStatus := ride.Status
	ok, err := s.store.TransitionRide(ctx, rideID, fromStatus, models.RideStatusCancelled, map[string]interface{}{
		"cancelled_at": now,
	})
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrInvalidTransition
	}

	if ride.DriverID != nil {
		if err := s.store.SetDriverTripState(ctx, *ride.DriverID, true, false); err != nil {
			log.Printf("Failed to release driver %d after cancellation: %v", *ride.DriverID, err)
		}
	}
	s.appendHistory(ctx, rideID, fromStatus, models.RideStatusCancelled, actorID, actorRole)

	if fee > 0 {
		payment := &models.Payment{
			RideID:   ride.ID,
			ClientID: ride.ClientID,
			Amount:   fee,
			Currency: ride.Currency,
			Kind:     models.PaymentKindCancellationFee,
			Status:   models.PaymentStatusPending,
		}
		if ride.DriverID != nil {
			payment.DriverID = *ride.DriverID
		}
		if err := s.store.CreatePayment(ctx, payment); err != nil {
			log.Printf("Failed to record cancellation fee for ride %d: %v", ride.ID, err)
		}
	}

	ride.Status = models.RideStatusCancelled
	ride.CancelledAt = &now
	s.emit(ctx, ride, services.EventRideCancelled, map[string]interface{}{
		"cancelledBy":     actorRole,
		"reason":          reason,
		"cancellationFee": fee,
	})

	// Cancellation before acceptance retracts the open offer from every
	// driver it was broadcast to.
	if fromStatus == models.RideStatusRequested {
		s.dispatcher.BroadcastExpired(ctx, ride.ID, nil)
	}

	return ride, fee, nil
}

// RideByID loads a ride for one of its parties.
func (s *Service) RideByID(ctx context.Context, rideID, actorID uint) (*models.Ride, error) {
	ride, err := s.store.Ride(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.ClientID != actorID && (ride.DriverID == nil || *ride.DriverID != actorID) {
		return nil, ErrUnauthorized
	}
	return ride, nil
}

// RidesFor lists a user's rides in their role, newest first.
func (s *Service) RidesFor(ctx context.Context, userID uint, role string, filter RideFilter) ([]models.Ride, error) {
	return s.store.RidesForUser(ctx, userID, role, filter)
}

// SyncState is the client reconnection snapshot: the active ride, if any,
// and for drivers their current flags.
type SyncState struct {
	ActiveRide *models.Ride          `json:"activeRide"`
	Driver     *models.DriverProfile `json:"driver,omitempty"`
}

// Sync returns the user's authoritative current state. Callers run the
// per-user orphan sweep first so a stale ride never comes back as active.
func (s *Service) Sync(ctx context.Context, userID uint, role string) (*SyncState, error) {
	state := &SyncState{}

	active, err := s.store.ActiveRideForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	state.ActiveRide = active

	if role == string(models.UserTypeDriver) {
		profile, err := s.store.DriverProfile(ctx, userID)
		if err == nil {
			state.Driver = profile
		}
	}
	return state, nil
}

// dispatchRequest offers a REQUESTED ride to nearby drivers: normal
// radius first, then a widened radius, then every connected driver.
func (s *Service) dispatchRequest(ctx context.Context, ride *models.Ride) {
	rideType, err := s.store.RideType(ctx, ride.RideTypeID)
	if err != nil {
		log.Printf("Failed to load ride type %d for dispatch: %v", ride.RideTypeID, err)
		s.dispatcher.BroadcastToAllDrivers(ctx, ride)
		return
	}
	cons := matching.ConstraintsForRideType(rideType, ride.FemaleOnly)

	for _, radius := range []float64{s.cfg.SearchRadiusKm, s.cfg.WidenedRadiusKm} {
		candidates, err := s.finder.Nearby(ctx, ride.PickupLat, ride.PickupLng, radius, s.cfg.CandidateLimit, cons)
		if err != nil {
			log.Printf("Driver search failed for ride %d: %v", ride.ID, err)
			break
		}
		if len(candidates) == 0 {
			continue
		}
		ids := make([]uint, 0, len(candidates))
		for _, c := range candidates {
			ids = append(ids, c.DriverID)
		}
		if delivered := s.dispatcher.Broadcast(ctx, ride, ids); delivered > 0 {
			return
		}
	}

	s.dispatcher.BroadcastToAllDrivers(ctx, ride)
}

func (s *Service) driverStillDispatchable(ctx context.Context, driverID uint) bool {
	profile, err := s.store.DriverProfile(ctx, driverID)
	if err != nil || profile == nil {
		return false
	}
	return profile.ApprovalStatus == models.ApprovalApproved && profile.IsOnline && profile.IsAvailable && !profile.IsActiveTrip
}

func (s *Service) settleFare(ctx context.Context, ride *models.Ride, driverID uint) {
	payment := &models.Payment{
		RideID:   ride.ID,
		ClientID: ride.ClientID,
		DriverID: driverID,
		Amount:   ride.FinalPrice,
		Currency: ride.Currency,
		Kind:     models.PaymentKindFare,
		Status:   models.PaymentStatusPending,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		log.Printf("Failed to record fare for ride %d: %v", ride.ID, err)
		return
	}

	status := models.PaymentStatusSettled
	if err := s.settler.Settle(ctx, ride.ID, ride.ClientID, driverID, ride.FinalPrice); err != nil {
		log.Printf("Settlement failed for ride %d: %v", ride.ID, err)
		status = models.PaymentStatusFailed
	}
	if err := s.store.UpdatePaymentStatus(ctx, ride.ID, models.PaymentKindFare, status); err != nil {
		log.Printf("Failed to update payment status for ride %d: %v", ride.ID, err)
	}
}

func (s *Service) appendHistory(ctx context.Context, rideID uint, from, to string, actorID uint, actorRole string) {
	entry := &models.RideStatusHistory{
		RideID:     rideID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		ActorRole:  actorRole,
	}
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		log.Printf("Failed to append status history for ride %d: %v", rideID, err)
	}
}

// emit delivers an event to both parties and mirrors it on the Redis
// channel for other processes.
func (s *Service) emit(ctx context.Context, ride *models.Ride, event string, extra map[string]interface{}) {
	data := map[string]interface{}{
		"rideId": ride.ID,
		"status": ride.Status,
	}
	for k, v := range extra {
		data[k] = v
	}

	s.events.SendEvent(ride.ClientID, event, data)
	if ride.DriverID != nil {
		s.events.SendEvent(*ride.DriverID, event, data)
	}
	if event != services.EventRideStatusChange {
		s.events.SendEvent(ride.ClientID, services.EventRideStatusChange, data)
		if ride.DriverID != nil {
			s.events.SendEvent(*ride.DriverID, services.EventRideStatusChange, data)
		}
	}

	if err := services.PublishRideUpdate(ctx, ride.ID, event, data); err != nil {
		log.Printf("Failed to publish ride update for ride %d: %v", ride.ID, err)
	}
}
