package ejectart

import (
	"sync"
	"testing"
)

func TestEstimatorSetAddAndZero(t *testing.T) {
	es := NewEstimatorSet(2, 3, 2, 4)
	es.AddRadiationField(0, 1, 10, 2, 5e14)
	es.AddLineEstimator(0, 2, 10, 2, 5e14)
	es.AddIonisation(0, 1, 7)
	es.AddDeposition(0, 3)
	es.IncrCellCrossing(0)

	c := es.Cells[0]
	if c.JSum != 20 {
		t.Fatalf("JSum mismatch: got %g want 20", c.JSum)
	}
	if c.NuJSum != 20*5e14 {
		t.Fatalf("NuJSum mismatch: got %g", c.NuJSum)
	}
	if c.BinJSum[1] != 20 {
		t.Fatalf("BinJSum mismatch: got %g", c.BinJSum[1])
	}
	if c.LineSum[2] != 10*2/5e14 {
		t.Fatalf("LineSum mismatch: got %g", c.LineSum[2])
	}
	if c.IonIonisationSum[1] != 7 {
		t.Fatalf("IonIonisationSum mismatch: got %g", c.IonIonisationSum[1])
	}
	if c.DepositionRateDensity != 3 {
		t.Fatalf("DepositionRateDensity mismatch: got %g", c.DepositionRateDensity)
	}
	if c.CellCrossings != 1 {
		t.Fatalf("CellCrossings mismatch: got %d", c.CellCrossings)
	}

	es.ZeroAll()
	if c.JSum != 0 || c.CellCrossings != 0 || c.LineSum[2] != 0 {
		t.Fatal("ZeroAll left nonzero accumulators")
	}
}

func TestEstimatorSetConcurrentAdds(t *testing.T) {
	es := NewEstimatorSet(1, 0, 0, 0)
	const n = 1000
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			es.AddRadiationField(0, -1, 1, 1, 1)
		}()
	}
	wg.Wait()
	if es.Cells[0].JSum != Real(n) {
		t.Fatalf("expected JSum == %d after concurrent adds, got %g", n, es.Cells[0].JSum)
	}
}

func TestReduceIsCommutative(t *testing.T) {
	a := NewEstimatorSet(1, 0, 1, 0)
	b := NewEstimatorSet(1, 0, 1, 0)
	a.AddDeposition(0, 5)
	a.AddIonisation(0, 0, 2)
	b.AddDeposition(0, 7)
	b.AddIonisation(0, 0, 3)

	dstAB := NewEstimatorSet(1, 0, 1, 0)
	Reduce(dstAB, a, b)
	dstBA := NewEstimatorSet(1, 0, 1, 0)
	Reduce(dstBA, b, a)

	if dstAB.Cells[0].DepositionRateDensity != dstBA.Cells[0].DepositionRateDensity {
		t.Fatal("Reduce is not commutative for DepositionRateDensity")
	}
	if dstAB.Cells[0].IonIonisationSum[0] != dstBA.Cells[0].IonIonisationSum[0] {
		t.Fatal("Reduce is not commutative for IonIonisationSum")
	}
	if dstAB.Cells[0].DepositionRateDensity != 12 {
		t.Fatalf("expected combined deposition 12, got %g", dstAB.Cells[0].DepositionRateDensity)
	}
}
