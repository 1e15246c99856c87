package pricing

import (
	"context"
	"math"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/models"
)

// Quote contains the priced fare and its breakdown for one ride request.
type Quote struct {
	BasePrice       float64   `json:"basePrice"`
	FinalPrice      float64   `json:"finalPrice"`
	Currency        string    `json:"currency"`
	DistanceKm      float64   `json:"distanceKm"`
	DurationMin     int       `json:"durationMin"`
	SurgeMultiplier float64   `json:"surgeMultiplier"`
	Breakdown       Breakdown `json:"breakdown"`
}

// Breakdown provides detailed fare breakdown
type Breakdown struct {
	BaseFare       float64 `json:"baseFare"`
	DistanceFare   float64 `json:"distanceFare"`
	TimeFare       float64 `json:"timeFare"`
	SurgeSurcharge float64 `json:"surgeSurcharge"`
	Total          float64 `json:"total"`
}

// Oracle prices a ride for a given ride type. The engine treats pricing as
// an external collaborator; StandardOracle is the in-repo implementation.
type Oracle interface {
	Price(ctx context.Context, rideType *models.RideType, distanceKm float64, durationMin int, surge float64) (Quote, error)
}

// StandardOracle prices rides from the ride type's fare table.
type StandardOracle struct {
	Currency string
}

func NewStandardOracle(currency string) *StandardOracle {
	if currency == "" {
		currency = "KES"
	}
	return &StandardOracle{Currency: currency}
}

// Price computes base fare + distance fare + time fare, applies the surge
// multiplier, and enforces the ride type's minimum fare.
func (o *StandardOracle) Price(ctx context.Context, rideType *models.RideType, distanceKm float64, durationMin int, surge float64) (Quote, error) {
	if surge < 1.0 {
		surge = 1.0
	}

	baseFare := rideType.BaseFare
	distanceFare := distanceKm * rideType.RatePerKm
	timeFare := float64(durationMin) * rideType.RatePerMin

	basePrice := baseFare + distanceFare + timeFare
	if basePrice < rideType.MinimumFare {
		basePrice = rideType.MinimumFare
	}

	finalPrice := basePrice * surge
	surcharge := finalPrice - basePrice

	return Quote{
		BasePrice:       round2(basePrice),
		FinalPrice:      round2(finalPrice),
		Currency:        o.Currency,
		DistanceKm:      round2(distanceKm),
		DurationMin:     durationMin,
		SurgeMultiplier: surge,
		Breakdown: Breakdown{
			BaseFare:       round2(baseFare),
			DistanceFare:   round2(distanceFare),
			TimeFare:       round2(timeFare),
			SurgeSurcharge: round2(surcharge),
			Total:          round2(finalPrice),
		},
	}, nil
}

// CancellationGracePeriod is how long after acceptance a passenger may
// cancel for free.
const CancellationGracePeriod = 5 * time.Minute

// CancellationFeeRate is the share of the base price charged as a late
// cancellation fee, capped at the configured maximum.
const CancellationFeeRate = 0.3

// CancellationFee computes the fee for a passenger cancelling an accepted
// ride after the grace period: min(basePrice * 0.3, cap).
func CancellationFee(basePrice, cap float64) float64 {
	fee := basePrice * CancellationFeeRate
	if fee > cap {
		fee = cap
	}
	return round2(fee)
}

// SurgeForTime returns the surge multiplier for the current time of day,
// following typical weekday rush-hour patterns.
func SurgeForTime(t time.Time) float64 {
	hour := t.Hour()
	dayOfWeek := t.Weekday()

	isWeekend := dayOfWeek == time.Saturday || dayOfWeek == time.Sunday
	if isWeekend {
		return 1.0
	}

	// Morning rush: 6 AM - 10 AM, evening rush: 4 PM - 8 PM
	isMorningRush := hour >= 6 && hour < 10
	isEveningRush := hour >= 16 && hour < 20
	if isMorningRush || isEveningRush {
		return 1.15
	}

	return 1.0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
