package ejectart

import "testing"

func TestContinuumOpacityThomsonOnly(t *testing.T) {
	a := &AtomicData{Photoion: map[PhotoionKey]*PhotoionTable{}}
	cell := NewModelCell(0, 1, 1)
	cell.ElectronDensity = 1e10
	kappaCont, kappaThomson, kappaFreeFree, kappaBoundFree := ContinuumOpacity(a, cell, 5e14)
	if kappaThomson != ThomsonXSec*cell.ElectronDensity {
		t.Fatalf("Thomson opacity mismatch: got %g", kappaThomson)
	}
	if kappaBoundFree != 0 {
		t.Fatalf("expected zero bound-free with no photoion tables, got %g", kappaBoundFree)
	}
	if kappaCont != kappaThomson+kappaFreeFree+kappaBoundFree {
		t.Fatal("kappaCont must be the sum of its components")
	}
}

func TestFreeFreeOpacityZeroWithoutTemperature(t *testing.T) {
	a := &AtomicData{Ions: []Ion{{ElementZ: 1, Charge: 1}}}
	cell := NewModelCell(0, 1, 0)
	cell.ElectronDensity = 1e10
	cell.IonPopulation[0] = 1e9
	if freeFreeOpacity(a, cell, 5e14) != 0 {
		t.Fatal("free-free opacity should be zero at zero temperature")
	}
}

func TestLevelPopulationGroundStateFallback(t *testing.T) {
	cell := NewModelCell(0, 2, 0)
	cell.IonPopulation[1] = 42
	if got := levelPopulation(cell, 1, 0); got != 42 {
		t.Fatalf("expected ground-state fallback to IonPopulation, got %g", got)
	}
	if got := levelPopulation(cell, 1, 1); got != 0 {
		t.Fatalf("expected zero for a non-ground level with no NLTE tracking, got %g", got)
	}
}

func TestLevelPopulationNLTEOverridesFallback(t *testing.T) {
	cell := NewModelCell(0, 1, 0)
	cell.NLTELevelPop = [][]Real{{1, 2, 3}}
	if got := levelPopulation(cell, 0, 2); got != 3 {
		t.Fatalf("expected NLTE level population, got %g", got)
	}
}

func TestFreeFreeOpacitySumsChargeSquaredOverIons(t *testing.T) {
	a := &AtomicData{Ions: []Ion{
		{ElementZ: 1, Charge: 0},
		{ElementZ: 1, Charge: 1},
		{ElementZ: 1, Charge: 2},
	}}
	cell := NewModelCell(0, 3, 0)
	cell.ElectronDensity = 1e10
	cell.ElectronTemp = 1e4
	cell.IonPopulation[0] = 1e9 // neutral, Charge 0, contributes nothing
	cell.IonPopulation[1] = 1e9
	cell.IonPopulation[2] = 1e9
	kappa := freeFreeOpacity(a, cell, 5e14)
	if kappa <= 0 {
		t.Fatalf("expected positive free-free opacity with charged ions present, got %g", kappa)
	}

	neutralOnly := &AtomicData{Ions: []Ion{{ElementZ: 1, Charge: 0}}}
	neutralCell := NewModelCell(0, 1, 0)
	neutralCell.ElectronDensity = 1e10
	neutralCell.ElectronTemp = 1e4
	neutralCell.IonPopulation[0] = 1e9
	if got := freeFreeOpacity(neutralOnly, neutralCell, 5e14); got != 0 {
		t.Fatalf("expected zero free-free opacity with only neutral ions, got %g", got)
	}
}

func TestSahaFactorReducesCorrectionToLTELimit(t *testing.T) {
	sf := sahaFactor(2, 1, 1e4, 5*EV)
	if sf <= 0 {
		t.Fatalf("expected positive Saha factor, got %g", sf)
	}
}

func TestPhotoionDepartureRatioNoUpperIonReturnsZero(t *testing.T) {
	a := &AtomicData{Ions: []Ion{{ElementZ: 1, Charge: 1, Levels: []Level{{EnergyErg: 0, StatWeight: 2}}, IonPotEV: 10}}}
	cell := NewModelCell(0, 1, 0)
	cell.ElectronTemp = 1e4
	cell.ElectronDensity = 1e10
	cell.IonPopulation[0] = 1e9
	if got := photoionDepartureRatio(a, cell, 0, 0); got != 0 {
		t.Fatalf("expected zero departure ratio with no ion above, got %g", got)
	}
}

func TestBoundFreeOpacitySumsContributingLevels(t *testing.T) {
	a := &AtomicData{Photoion: map[PhotoionKey]*PhotoionTable{
		{IonIndex: 0, Level: 0}: NewKramersPhotoionTable(1e14, 1e-18, nil),
	}}
	cell := NewModelCell(0, 1, 0)
	cell.IonPopulation[0] = 1e9
	cell.ElectronTemp = 1e4
	kappa := boundFreeOpacity(a, cell, 2e14)
	if kappa <= 0 {
		t.Fatalf("expected positive bound-free opacity, got %g", kappa)
	}
}
