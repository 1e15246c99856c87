package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/models"
)

func TestPriceBreakdown(t *testing.T) {
	rt := &models.RideType{BaseFare: 100, RatePerKm: 45, RatePerMin: 5, MinimumFare: 150}

	quote, err := NewStandardOracle("KES").Price(context.Background(), rt, 4, 10, 1.0)
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	// 100 + 4*45 + 10*5 = 330
	if quote.BasePrice != 330 {
		t.Errorf("BasePrice = %.2f, want 330", quote.BasePrice)
	}
	if quote.FinalPrice != 330 {
		t.Errorf("FinalPrice = %.2f, want 330 without surge", quote.FinalPrice)
	}
	if quote.Breakdown.DistanceFare != 180 {
		t.Errorf("DistanceFare = %.2f, want 180", quote.Breakdown.DistanceFare)
	}
}

func TestPriceEnforcesMinimumFare(t *testing.T) {
	rt := &models.RideType{BaseFare: 50, RatePerKm: 25, MinimumFare: 70}

	quote, err := NewStandardOracle("KES").Price(context.Background(), rt, 0.2, 1, 1.0)
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	if quote.BasePrice != 70 {
		t.Errorf("BasePrice = %.2f, want minimum fare 70", quote.BasePrice)
	}
}

func TestPriceAppliesSurge(t *testing.T) {
	rt := &models.RideType{BaseFare: 100, RatePerKm: 50}

	quote, err := NewStandardOracle("KES").Price(context.Background(), rt, 2, 0, 1.15)
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	if quote.BasePrice != 200 {
		t.Errorf("BasePrice = %.2f, want 200", quote.BasePrice)
	}
	if quote.FinalPrice != 230 {
		t.Errorf("FinalPrice = %.2f, want 230", quote.FinalPrice)
	}
	if quote.Breakdown.SurgeSurcharge != 30 {
		t.Errorf("SurgeSurcharge = %.2f, want 30", quote.Breakdown.SurgeSurcharge)
	}
}

func TestCancellationFee(t *testing.T) {
	// 30% of the base price when below the cap.
	if fee := CancellationFee(300, 200); fee != 90 {
		t.Errorf("fee = %.2f, want 90", fee)
	}
	// Large fares hit the cap.
	if fee := CancellationFee(10000, 200); fee != 200 {
		t.Errorf("fee = %.2f, want capped at 200", fee)
	}
}

func TestSurgeForTime(t *testing.T) {
	// Tuesday 8 AM is morning rush.
	rush := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	if s := SurgeForTime(rush); s != 1.15 {
		t.Errorf("rush surge = %.2f, want 1.15", s)
	}

	// Tuesday 2 PM is off-peak.
	offPeak := time.Date(2025, 6, 3, 14, 0, 0, 0, time.UTC)
	if s := SurgeForTime(offPeak); s != 1.0 {
		t.Errorf("off-peak surge = %.2f, want 1.0", s)
	}

	// Saturday 8 AM has no surge.
	weekend := time.Date(2025, 6, 7, 8, 0, 0, 0, time.UTC)
	if s := SurgeForTime(weekend); s != 1.0 {
		t.Errorf("weekend surge = %.2f, want 1.0", s)
	}
}
