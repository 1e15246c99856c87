package dispatch

import (
	"context"
	"testing"

	"github.com/chachabrian/swiftride-backend/internal/models"
	"github.com/chachabrian/swiftride-backend/internal/services"
)

type fakeHub struct {
	connected map[uint]bool
	drivers   []uint
	sent      map[uint][]string
}

func newFakeHub(driverIDs ...uint) *fakeHub {
	h := &fakeHub{
		connected: make(map[uint]bool),
		drivers:   driverIDs,
		sent:      make(map[uint][]string),
	}
	for _, id := range driverIDs {
		h.connected[id] = true
	}
	return h
}

func (h *fakeHub) IsConnected(userID uint) bool { return h.connected[userID] }
func (h *fakeHub) ConnectedDriverIDs() []uint   { return h.drivers }
func (h *fakeHub) SendEvent(userID uint, event string, data map[string]interface{}) {
	h.sent[userID] = append(h.sent[userID], event)
}

type memCandidateLog struct {
	sets map[uint][]uint
}

func newMemCandidateLog() *memCandidateLog {
	return &memCandidateLog{sets: make(map[uint][]uint)}
}

func (l *memCandidateLog) Record(ctx context.Context, rideID uint, driverIDs []uint) error {
	l.sets[rideID] = append(l.sets[rideID], driverIDs...)
	return nil
}

func (l *memCandidateLog) Get(ctx context.Context, rideID uint) ([]uint, error) {
	return l.sets[rideID], nil
}

func (l *memCandidateLog) Clear(ctx context.Context, rideID uint) error {
	delete(l.sets, rideID)
	return nil
}

type fakeGenders struct {
	genders map[uint]string
}

func (f *fakeGenders) DriverGender(ctx context.Context, driverID uint) (string, error) {
	return f.genders[driverID], nil
}

func testRide(id uint, femaleOnly bool) *models.Ride {
	ride := &models.Ride{ClientID: 100, FemaleOnly: femaleOnly, Currency: "KES"}
	ride.ID = id
	return ride
}

func TestBroadcastReachesOnlyConnectedCandidates(t *testing.T) {
	hub := newFakeHub(1, 2)
	logStore := newMemCandidateLog()
	b := NewBroadcaster(hub, logStore, &fakeGenders{})

	delivered := b.Broadcast(context.Background(), testRide(5, false), []uint{1, 2, 3})
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2 connected candidates", delivered)
	}
	if len(hub.sent[3]) != 0 {
		t.Error("disconnected candidate must not receive the offer")
	}
	if got := logStore.sets[5]; len(got) != 2 {
		t.Errorf("recorded candidates = %v, want the 2 reached", got)
	}
}

func TestBroadcastToAllFiltersFemaleOnly(t *testing.T) {
	hub := newFakeHub(1, 2, 3)
	genders := &fakeGenders{genders: map[uint]string{
		1: models.GenderMale,
		2: models.GenderFemale,
		3: models.GenderFemale,
	}}
	b := NewBroadcaster(hub, newMemCandidateLog(), genders)

	delivered := b.BroadcastToAllDrivers(context.Background(), testRide(5, true))
	if delivered != 2 {
		t.Errorf("delivered = %d, want only the 2 female drivers", delivered)
	}
	if len(hub.sent[1]) != 0 {
		t.Error("female-only ride must never reach a male driver, even on fallback")
	}
}

func TestBroadcastToAllWithoutFilter(t *testing.T) {
	hub := newFakeHub(1, 2, 3)
	b := NewBroadcaster(hub, newMemCandidateLog(), &fakeGenders{})

	delivered := b.BroadcastToAllDrivers(context.Background(), testRide(5, false))
	if delivered != 3 {
		t.Errorf("delivered = %d, want all 3 connected drivers", delivered)
	}
}

func TestBroadcastExpiredUsesRecordedSet(t *testing.T) {
	hub := newFakeHub(1, 2)
	logStore := newMemCandidateLog()
	b := NewBroadcaster(hub, logStore, &fakeGenders{})

	b.Broadcast(context.Background(), testRide(5, false), []uint{1, 2})
	b.BroadcastExpired(context.Background(), 5, nil)

	for _, id := range []uint{1, 2} {
		events := hub.sent[id]
		if len(events) != 2 || events[1] != services.EventRequestExpired {
			t.Errorf("driver %d events = %v, want a trailing request-expired", id, events)
		}
	}
	if _, ok := logStore.sets[5]; ok {
		t.Error("candidate set should be cleared after expiry broadcast")
	}
}

func TestBroadcastExpiredWithExplicitCandidates(t *testing.T) {
	hub := newFakeHub(4)
	b := NewBroadcaster(hub, newMemCandidateLog(), &fakeGenders{})

	b.BroadcastExpired(context.Background(), 9, []uint{4})
	if events := hub.sent[4]; len(events) != 1 || events[0] != services.EventRequestExpired {
		t.Errorf("events = %v, want one request-expired", events)
	}
}
