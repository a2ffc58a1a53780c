package ejectart

import (
	"math/rand"
	"testing"
)

func testAtomicAndLines() (*AtomicData, *LineList) {
	a := NewSyntheticAtomicData([]SyntheticSpec{
		{Z: 26, Name: "Fe", MaxCharge: 1, IonPotEV: []Real{7.9, 16.2}, LevelsPerIon: 4, TopLevelEV: 5},
	})
	return a, NewLineList(a.Lines)
}

func TestBuildMacroAtomRatesIncludesLineChannels(t *testing.T) {
	a, lines := testAtomicAndLines()
	cell := NewModelCell(0, len(a.Ions), 0)
	channels := BuildMacroAtomRates(a, lines, cell, nil, 0, 3, 0)
	if len(channels) == 0 {
		t.Fatal("expected at least one radiative decay channel for the top level")
	}
	for _, c := range channels {
		if c.Kind != MARadiativeDecay {
			t.Fatalf("expected only radiative decay channels with zero kPacketRate, nil history and ground ion, got kind %d", c.Kind)
		}
	}
}

func TestBuildMacroAtomRatesIncludesKPacketChannel(t *testing.T) {
	a, lines := testAtomicAndLines()
	cell := NewModelCell(0, len(a.Ions), 0)
	channels := BuildMacroAtomRates(a, lines, cell, nil, 0, 3, 5)
	found := false
	for _, c := range channels {
		if c.Kind == MAToKPacket && c.Rate == 5 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a k-packet deactivation channel with the given rate")
	}
}

func TestBuildMacroAtomRatesIncludesRecombinationChannels(t *testing.T) {
	a, lines := testAtomicAndLines()
	cell := NewModelCell(0, len(a.Ions), 0)
	cell.ElectronDensity = 1e10
	cell.IonPopulation[0] = 1e9 // populate the neutral ion so recombination has a source level
	channels := BuildMacroAtomRates(a, lines, cell, nil, 1, 0, 0)
	foundRad, foundColl := false, false
	for _, c := range channels {
		if c.Kind == MARadiativeRecomb {
			foundRad = true
		}
		if c.Kind == MACollisionalRecomb {
			foundColl = true
		}
	}
	if !foundRad || !foundColl {
		t.Fatalf("expected both recombination channel kinds for an excited ion with a populated ion below, got %v", channels)
	}
}

func TestBuildMacroAtomRatesIncludesInternalJumpDownChannel(t *testing.T) {
	a, lines := testAtomicAndLines()
	cell := NewModelCell(0, len(a.Ions), 0)
	cell.ElectronDensity = 1e10
	cell.IonPopulation[0] = 1e9 // populate the neutral ion so recombination has a source level
	channels := BuildMacroAtomRates(a, lines, cell, nil, 1, 0, 0)
	found := false
	for _, c := range channels {
		if c.Kind == MAInternalIonJumpDown {
			found = true
			if c.TargetIonIndex != 0 {
				t.Fatalf("expected the internal jump down to target the ion below, got ion %d", c.TargetIonIndex)
			}
		}
	}
	if !found {
		t.Fatal("expected a photonless internal jump down channel alongside the recombination channels")
	}
}

func TestBuildMacroAtomRatesIncludesInternalJumpsFromHistory(t *testing.T) {
	a, lines := testAtomicAndLines()
	cell := NewModelCell(0, len(a.Ions), 0)
	cell.ElectronDensity = 1e10
	cell.ElectronTemp = 1e4
	cell.IonPopulation[0] = 1e9
	cell.NLTELevelPop = [][]Real{{1e9, 1e7, 1e5, 1e3}, {0, 0, 0, 0}}
	history := BuildCellHistory(a, lines, cell)
	channels := BuildMacroAtomRates(a, lines, cell, history, 0, 1, 0)
	found := false
	for _, c := range channels {
		if c.Kind == MACollisionalDeexcite {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a same-ion collisional channel once a cell history is supplied")
	}
}

func TestSampleChannelZeroTotalFails(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, ok := sampleChannel(rng, nil)
	if ok {
		t.Fatal("sampling with no channels should fail")
	}
}

func TestRunMacroAtomTerminatesWithoutKPacketRate(t *testing.T) {
	a, lines := testAtomicAndLines()
	cell := NewModelCell(0, len(a.Ions), 0)
	rng := rand.New(rand.NewSource(7))
	kRate := func(ionIndex, level int) Real { return 0 }
	outcome := RunMacroAtom(rng, a, lines, cell, nil, 0, 3, kRate)
	if outcome.Kind != MAOutcomeLineDecay {
		t.Fatal("with no k-packet channel available, the macro atom must eventually radiate")
	}
	if outcome.LineIndex < 0 || outcome.LineIndex >= lines.Len() {
		t.Fatalf("decayed outcome must carry a valid line index, got %d", outcome.LineIndex)
	}
}

func TestRunMacroAtomCanExitByRecombination(t *testing.T) {
	a, lines := testAtomicAndLines()
	cell := NewModelCell(0, len(a.Ions), 0)
	cell.ElectronDensity = 1e6 // low enough that radiative recombination dominates collisional (~ne^2)
	cell.IonPopulation[0] = 1e9
	rng := rand.New(rand.NewSource(11))
	kRate := func(ionIndex, level int) Real { return 0 }
	outcome := RunMacroAtom(rng, a, lines, cell, nil, 1, 0, kRate)
	if outcome.Kind != MAOutcomeRecombEmission {
		t.Fatalf("a ground-level ion with no decay/k-packet channels and a populated ion below should recombine, got kind %d", outcome.Kind)
	}
	if outcome.EdgeNu <= 0 {
		t.Fatal("recombination outcome must carry a positive edge frequency")
	}
}

func TestRunKPacketSamplesFromCoolingList(t *testing.T) {
	cl := NewCoolingList([]CoolingContribution{{Kind: CoolingHeating, RateErgPerCm3PerS: 1}})
	rng := rand.New(rand.NewSource(3))
	outcome := RunKPacket(rng, cl)
	if outcome.Kind != CoolingHeating {
		t.Fatalf("expected the only channel to be sampled, got kind %d", outcome.Kind)
	}
}
