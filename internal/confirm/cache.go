package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/matching"
	"github.com/chachabrian/swiftride-backend/internal/observability"
	"github.com/chachabrian/swiftride-backend/internal/pricing"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("confirmation token not found")
	ErrExpired  = errors.New("confirmation token expired")
)

const (
	// TokenTTL is how long a quoted confirmation stays consumable.
	TokenTTL = 5 * time.Minute
	// SweepInterval is the cadence of the background expiry sweep.
	SweepInterval = 5 * time.Minute

	keyPrefix = "confirm:"
	// Expired payloads are retained briefly so a late consume gets
	// ErrExpired instead of ErrNotFound.
	retainAfterExpiry = 10 * time.Minute
)

// QuoteRequest holds the original request parameters bound to a token, so
// ride creation reproduces exactly what was quoted.
type QuoteRequest struct {
	RideTypeID          uint       `json:"rideTypeId"`
	PickupLat           float64    `json:"pickupLat"`
	PickupLng           float64    `json:"pickupLng"`
	PickupAddr          string     `json:"pickupAddress"`
	DestLat             float64    `json:"destLat"`
	DestLng             float64    `json:"destLng"`
	DestAddr            string     `json:"destAddress"`
	FemaleOnly          bool       `json:"femaleOnly"`
	IsDelivery          bool       `json:"isDelivery"`
	HasPets             bool       `json:"hasPets"`
	BaggageCount        int        `json:"baggageCount"`
	SpecialRequirements string     `json:"specialRequirements"`
	ScheduledAt         *time.Time `json:"scheduledAt,omitempty"`
}

// Confirmation binds a priced quote (and optionally a matched driver) to
// the ride-creation call that follows it. Single use.
type Confirmation struct {
	Token     string             `json:"token"`
	UserID    uint               `json:"userId"`
	Quote     pricing.Quote      `json:"quote"`
	Driver    *matching.Snapshot `json:"driver,omitempty"`
	Request   QuoteRequest       `json:"request"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// Cache is the short-lived, single-use token store. Loss of an entry on
// restart only forces the client to re-quote.
type Cache struct {
	kv KV
}

func NewCache(kv KV) *Cache {
	return &Cache{kv: kv}
}

// Put stores the confirmation under a fresh token and returns the token.
func (c *Cache) Put(ctx context.Context, conf *Confirmation) (string, error) {
	conf.Token = uuid.NewString()
	conf.ExpiresAt = time.Now().Add(TokenTTL)

	payload, err := json.Marshal(conf)
	if err != nil {
		return "", fmt.Errorf("failed to encode confirmation: %w", err)
	}

	if err := c.kv.Set(ctx, keyPrefix+conf.Token, string(payload), TokenTTL+retainAfterExpiry); err != nil {
		return "", fmt.Errorf("failed to store confirmation: %w", err)
	}

	observability.ConfirmationsActive.Inc()
	return conf.Token, nil
}

// Consume removes and returns an unexpired confirmation. A second consume
// of the same token, or an unknown token, yields ErrNotFound; a token past
// its expiry yields ErrExpired.
func (c *Cache) Consume(ctx context.Context, token string) (*Confirmation, error) {
	payload, ok, err := c.kv.GetDel(ctx, keyPrefix+token)
	if err != nil {
		return nil, fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	observability.ConfirmationsActive.Dec()

	var conf Confirmation
	if err := json.Unmarshal([]byte(payload), &conf); err != nil {
		return nil, fmt.Errorf("failed to decode confirmation: %w", err)
	}
	if time.Now().After(conf.ExpiresAt) {
		return nil, ErrExpired
	}
	return &conf, nil
}

// Sweep removes entries whose expiry has passed, independent of
// consumption, bounding memory growth from abandoned quotes.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	keys, err := c.kv.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to list confirmations: %w", err)
	}

	removed := 0
	live := 0
	now := time.Now()
	for _, key := range keys {
		payload, ok, err := c.kv.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var conf Confirmation
		if err := json.Unmarshal([]byte(payload), &conf); err != nil || now.After(conf.ExpiresAt) {
			if err := c.kv.Del(ctx, key); err == nil {
				removed++
			}
			continue
		}
		live++
	}

	observability.ConfirmationsActive.Set(float64(live))
	return removed, nil
}

// StartSweeper runs the expiry sweep on a fixed timer until ctx is done.
func (c *Cache) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := c.Sweep(ctx); err != nil {
				log.Printf("Confirmation sweep failed: %v", err)
			} else if removed > 0 {
				log.Printf("Confirmation sweep removed %d expired tokens", removed)
			}
		}
	}
}
