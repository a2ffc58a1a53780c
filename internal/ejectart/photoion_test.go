package ejectart

import (
	"math"
	"testing"
)

func TestPhotoionTableBelowThresholdIsZero(t *testing.T) {
	table := NewKramersPhotoionTable(1e15, 1e-18, nil)
	if table.CrossSection(0.5e15) != 0 {
		t.Fatal("cross section below threshold must be zero")
	}
}

func TestPhotoionTableAtThresholdMatchesSigma0(t *testing.T) {
	table := NewKramersPhotoionTable(1e15, 1e-18, nil)
	got := table.CrossSection(1e15)
	if math.Abs(float64(got-1e-18))/1e-18 > 1e-3 {
		t.Fatalf("cross section at threshold should be ~sigma0, got %g", got)
	}
}

func TestPhotoionTableDecreasesAboveThreshold(t *testing.T) {
	table := NewKramersPhotoionTable(1e15, 1e-18, nil)
	a := table.CrossSection(1.5e15)
	b := table.CrossSection(3e15)
	if !(a > b) {
		t.Fatalf("cross section should fall off with frequency: sigma(1.5x)=%g sigma(3x)=%g", a, b)
	}
}

func TestPhotoionTableExtrapolatesBeyondGrid(t *testing.T) {
	table := NewKramersPhotoionTable(1e15, 1e-18, nil)
	farNu := Real(1e20)
	got := table.CrossSection(farNu)
	if got <= 0 || math.IsNaN(float64(got)) {
		t.Fatalf("expected a small positive extrapolated cross section, got %g", got)
	}
}
