package ejectart

import "testing"

func TestNewSyntheticAtomicDataStructure(t *testing.T) {
	specs := []SyntheticSpec{
		{Z: 26, Name: "Fe", MaxCharge: 1, IonPotEV: []Real{7.9, 16.2}, LevelsPerIon: 4, TopLevelEV: 10},
	}
	a := NewSyntheticAtomicData(specs)
	if len(a.Elements) != 1 || a.Elements[0].Z != 26 {
		t.Fatalf("expected one element Z=26, got %+v", a.Elements)
	}
	if len(a.Ions) != 2 {
		t.Fatalf("expected 2 ions (charge 0 and 1), got %d", len(a.Ions))
	}
	for _, ion := range a.Ions {
		if len(ion.Levels) != 4 {
			t.Fatalf("expected 4 levels per ion, got %d", len(ion.Levels))
		}
	}
	if len(a.Lines) == 0 {
		t.Fatal("expected at least one line between level pairs")
	}
	for _, ln := range a.Lines {
		if ln.NuTMin <= 0 {
			t.Fatalf("line frequency must be positive, got %g", ln.NuTMin)
		}
	}
}

func TestAtomicDataIonIndex(t *testing.T) {
	a := NewSyntheticAtomicData([]SyntheticSpec{
		{Z: 26, Name: "Fe", MaxCharge: 2, IonPotEV: []Real{7.9, 16.2, 30.6}, LevelsPerIon: 2, TopLevelEV: 5},
	})
	idx := a.IonIndex(26, 1)
	if idx < 0 || a.Ions[idx].Charge != 1 {
		t.Fatalf("IonIndex(26,1) returned wrong ion: idx=%d", idx)
	}
	if a.IonIndex(8, 0) != -1 {
		t.Fatal("expected -1 for an element not in the model")
	}
}

func TestNewSyntheticAtomicDataBuildsPhotoionTables(t *testing.T) {
	a := NewSyntheticAtomicData([]SyntheticSpec{
		{Z: 26, Name: "Fe", MaxCharge: 1, IonPotEV: []Real{7.9, 16.2}, LevelsPerIon: 3, TopLevelEV: 5},
	})
	if len(a.Photoion) == 0 {
		t.Fatal("expected photoionisation tables for the non-topmost ion's levels")
	}
}
