package ejectart

import (
	"math"
	"math/rand"
	"testing"
)

func TestSurvivingFractionHalfLife(t *testing.T) {
	ni56 := 0
	halfLife := NuclideChain[ni56].HalfLifeS
	frac := SurvivingFraction(ni56, halfLife)
	if math.Abs(float64(frac-0.5)) > 1e-9 {
		t.Fatalf("expected ~0.5 surviving fraction at one half-life, got %g", frac)
	}
}

func TestSurvivingFractionStableNuclideNeverDecays(t *testing.T) {
	fe56 := 2
	if NuclideChain[fe56].DecaysTo != -1 {
		t.Fatal("Fe56 should be the stable end of the chain")
	}
	frac := SurvivingFraction(fe56, 1e20)
	if frac != 1 {
		t.Fatalf("expected a stable nuclide to never decay, got surviving fraction %g", frac)
	}
}

func TestSampleActivationTimeDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	nuclide := NuclideChain[0]
	lambda := DecayConstant(nuclide)
	var mean Real
	const n = 20000
	for i := 0; i < n; i++ {
		mean += SampleActivationTime(nuclide, Real(rng.Float64()))
	}
	mean /= n
	want := 1 / lambda
	if math.Abs(float64(mean-want))/float64(want) > 0.05 {
		t.Fatalf("sampled mean activation time %g far from expected 1/lambda=%g", mean, want)
	}
}

func TestActivatePelletSetsDirectionAndEnergy(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	p := Pellet{NuclideIndex: 0, EnergyErg: 100}
	pkt := ActivatePellet(rng, p, 10)
	if pkt.Kind != PacketGamma {
		t.Fatalf("expected a gamma packet, got kind %d", pkt.Kind)
	}
	if pkt.Direction.Len() == 0 {
		t.Fatal("ActivatePellet must set a nonzero isotropic direction")
	}
	wantEnergy := p.EnergyErg * NuclideChain[0].GammaFraction
	if pkt.ERF != wantEnergy || pkt.ECMF != wantEnergy {
		t.Fatalf("expected gamma energy %g, got ERF=%g ECMF=%g", wantEnergy, pkt.ERF, pkt.ECMF)
	}
}

func TestLocalDepositionFractionComplementsGamma(t *testing.T) {
	for i, n := range NuclideChain {
		got := LocalDepositionFraction(i)
		if math.Abs(float64(got+n.GammaFraction-1)) > 1e-12 {
			t.Fatalf("nuclide %d: LocalDepositionFraction + GammaFraction should be 1, got %g + %g", i, got, n.GammaFraction)
		}
	}
}
