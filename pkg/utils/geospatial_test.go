package utils

import "testing"

func TestHaversineDistance(t *testing.T) {
	// Nairobi CBD to Westlands is roughly 3.9 km.
	d := HaversineDistance(-1.2864, 36.8172, -1.2673, 36.8111)
	if d < 3.5 || d > 4.5 {
		t.Errorf("distance = %.2f km, want roughly 3.9", d)
	}

	if d := HaversineDistance(-1.2864, 36.8172, -1.2864, 36.8172); d != 0 {
		t.Errorf("zero distance expected for identical points, got %.4f", d)
	}
}

func TestIsWithinRadius(t *testing.T) {
	if !IsWithinRadius(-1.2864, 36.8172, -1.2673, 36.8111, 5) {
		t.Error("Westlands should be within 5 km of the CBD")
	}
	if IsWithinRadius(-1.2864, 36.8172, -1.2673, 36.8111, 2) {
		t.Error("Westlands should not be within 2 km of the CBD")
	}
}

func TestCalculateETA(t *testing.T) {
	// 10 km at 30 km/h is 20 minutes.
	if eta := CalculateETA(10, 30); eta != 20 {
		t.Errorf("ETA = %d minutes, want 20", eta)
	}
}

func TestValidCoordinates(t *testing.T) {
	if !ValidCoordinates(-1.28, 36.81) {
		t.Error("Nairobi coordinates should be valid")
	}
	if ValidCoordinates(91, 0) || ValidCoordinates(0, 181) {
		t.Error("out-of-range coordinates should be invalid")
	}
}
