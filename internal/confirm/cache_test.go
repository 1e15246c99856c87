package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/pricing"
)

// memKV is an in-memory KV for tests. TTLs are recorded but only applied
// when the test advances expiry through the stored payload.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) GetDel(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if ok {
		delete(m.data, key)
	}
	return v, ok, nil
}

func (m *memKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memKV) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func testConfirmation(userID uint) *Confirmation {
	return &Confirmation{
		UserID: userID,
		Quote:  pricing.Quote{BasePrice: 330, FinalPrice: 330, Currency: "KES"},
		Request: QuoteRequest{
			RideTypeID: 1,
			PickupLat:  -1.28,
			PickupLng:  36.81,
			PickupAddr: "CBD",
			DestLat:    -1.30,
			DestLng:    36.78,
			DestAddr:   "Kilimani",
		},
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	cache := NewCache(newMemKV())
	ctx := context.Background()

	token, err := cache.Put(ctx, testConfirmation(7))
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	conf, err := cache.Consume(ctx, token)
	if err != nil {
		t.Fatalf("first Consume returned error: %v", err)
	}
	if conf.UserID != 7 {
		t.Errorf("UserID = %d, want 7", conf.UserID)
	}
	if conf.Quote.FinalPrice != 330 {
		t.Errorf("FinalPrice = %.2f, want 330", conf.Quote.FinalPrice)
	}

	if _, err := cache.Consume(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Consume error = %v, want ErrNotFound", err)
	}
}

func TestConsumeUnknownToken(t *testing.T) {
	cache := NewCache(newMemKV())
	if _, err := cache.Consume(context.Background(), "no-such-token"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Consume error = %v, want ErrNotFound", err)
	}
}

func TestConsumeExpiredToken(t *testing.T) {
	kv := newMemKV()
	cache := NewCache(kv)
	ctx := context.Background()

	conf := testConfirmation(7)
	conf.Token = "stale-token"
	conf.ExpiresAt = time.Now().Add(-time.Minute)
	payload, _ := json.Marshal(conf)
	if err := kv.Set(ctx, keyPrefix+conf.Token, string(payload), time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.Consume(ctx, conf.Token); !errors.Is(err, ErrExpired) {
		t.Errorf("Consume error = %v, want ErrExpired", err)
	}
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	kv := newMemKV()
	cache := NewCache(kv)
	ctx := context.Background()

	if _, err := cache.Put(ctx, testConfirmation(1)); err != nil {
		t.Fatal(err)
	}

	stale := testConfirmation(2)
	stale.Token = "stale-token"
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	payload, _ := json.Marshal(stale)
	if err := kv.Set(ctx, keyPrefix+stale.Token, string(payload), time.Minute); err != nil {
		t.Fatal(err)
	}

	removed, err := cache.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep removed %d entries, want 1", removed)
	}

	if _, ok, _ := kv.Get(ctx, keyPrefix+stale.Token); ok {
		t.Error("expired entry survived the sweep")
	}
	keys, _ := kv.Keys(ctx, keyPrefix+"*")
	if len(keys) != 1 {
		t.Errorf("expected 1 live entry after sweep, got %d", len(keys))
	}
}
