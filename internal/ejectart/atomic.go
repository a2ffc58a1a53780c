package ejectart

import "sort"

// Element identifies one chemical species by atomic number.
type Element struct {
	Z    int
	Name string
}

// Level is one bound energy level of an ion.
type Level struct {
	Number     int  // 0 = ground state
	EnergyErg  Real // above the ion's ground state
	StatWeight Real // 2J+1 degeneracy
	// IonizesTo indexes the level of the next-higher ion population this
	// level photoionises/recombines into; -1 means "ground state of next
	// ion" by convention.
	IonizesTo int
}

// Ion is one ionisation stage of an element: Charge 0 is neutral.
type Ion struct {
	ElementZ    int
	Charge      int
	Levels      []Level
	IonPotEV    Real // ionisation potential from this ion's ground state
}

// Line is one bound-bound radiative transition within a single ion.
type Line struct {
	IonIndex   int // index into AtomicData.Ions
	Lower      int // level Number within that ion
	Upper      int
	NuTMin     Real // rest-frame transition frequency, Hz
	Aji        Real // spontaneous decay rate, s^-1
	GfValue    Real // oscillator strength * lower statistical weight

	// CollStr is the transition's electron-impact collision strength,
	// or NoCollStr when none is tabulated (the excitation solver falls
	// back to an oscillator-strength-based cross section in that case).
	CollStr Real
	// Forbidden marks a transition with no permitted E1 channel. It does
	// not by itself zero GfValue or require a tabulated CollStr.
	Forbidden bool
}

// NoCollStr is Line.CollStr's sentinel for "not tabulated".
const NoCollStr Real = -1

// AtomicData is the full set of species, levels, lines and
// photoionisation tables used by one run. Built either by a synthetic
// generator (see NewSyntheticAtomicData) or a caller-supplied loader;
// the file-format parsers a full install would ship are out of scope
// here, so every run builds its atomic model in memory.
type AtomicData struct {
	Elements []Element
	Ions     []Ion
	Lines    []Line
	Photoion map[PhotoionKey]*PhotoionTable
}

// PhotoionKey addresses one photoionisation cross-section table by the
// ionising level.
type PhotoionKey struct {
	IonIndex int
	Level    int
}

// IonIndex returns the index of the ion with the given element and
// charge, or -1 if it is not part of this atomic model.
func (a *AtomicData) IonIndex(elementZ, charge int) int {
	for i, ion := range a.Ions {
		if ion.ElementZ == elementZ && ion.Charge == charge {
			return i
		}
	}
	return -1
}

// SyntheticSpec describes one element's synthetic level structure for
// NewSyntheticAtomicData: a small number of evenly log-spaced levels
// per ion stage, enough to drive the macro-atom and non-thermal
// machinery without a real atomic database.
type SyntheticSpec struct {
	Z           int
	Name        string
	MaxCharge   int     // highest ionisation stage to generate, inclusive
	IonPotEV    []Real  // length MaxCharge+1, ionisation potential per stage
	LevelsPerIon int
	TopLevelEV  Real // energy of the highest generated level, eV above ground
}

// NewSyntheticAtomicData builds an AtomicData instance from a small set
// of per-element specs: each ion gets LevelsPerIon levels log-spaced in
// energy between the ground state and TopLevelEV, a line for every
// level pair with lower < upper weighted by the level spacing, and a
// simple Kramers-law photoionisation table per level (see photoion.go).
func NewSyntheticAtomicData(specs []SyntheticSpec) *AtomicData {
	a := &AtomicData{Photoion: make(map[PhotoionKey]*PhotoionTable)}
	for _, sp := range specs {
		a.Elements = append(a.Elements, Element{Z: sp.Z, Name: sp.Name})
		for charge := 0; charge <= sp.MaxCharge; charge++ {
			ion := Ion{ElementZ: sp.Z, Charge: charge}
			if charge < len(sp.IonPotEV) {
				ion.IonPotEV = sp.IonPotEV[charge]
			}
			n := sp.LevelsPerIon
			if n < 1 {
				n = 1
			}
			for lv := 0; lv < n; lv++ {
				frac := Real(0)
				if n > 1 {
					frac = Real(lv) / Real(n-1)
				}
				energyEV := sp.TopLevelEV * frac * frac // quadratic spacing, denser near ground
				ion.Levels = append(ion.Levels, Level{
					Number:     lv,
					EnergyErg:  energyEV * EV,
					StatWeight: 2 * Real(lv+1),
					IonizesTo:  0,
				})
			}
			ionIdx := len(a.Ions)
			a.Ions = append(a.Ions, ion)

			for lo := 0; lo < n; lo++ {
				for up := lo + 1; up < n; up++ {
					dE := ion.Levels[up].EnergyErg - ion.Levels[lo].EnergyErg
					if dE <= 0 {
						continue
					}
					nu := dE / HPlanck
					gap := up - lo
					a.Lines = append(a.Lines, Line{
						IonIndex: ionIdx,
						Lower:    lo,
						Upper:    up,
						NuTMin:   nu,
						Aji:      1e8 / Real(gap), // faster decay for closer-spaced pairs
						GfValue:  0.1 * ion.Levels[lo].StatWeight,
						// Adjacent-level transitions are treated as
						// permitted, everything else as forbidden
						// (spin/parity-forbidden stand-in); pairs up to
						// two levels apart get a tabulated collision
						// strength, the rest fall back to the oscillator
						// strength form.
						CollStr:   collStrengthOrSentinel(gap),
						Forbidden: gap > 1,
					})
				}
				if charge < sp.MaxCharge {
					a.Photoion[PhotoionKey{IonIndex: ionIdx, Level: lo}] = NewKramersPhotoionTable(
						thresholdFreq(ion.Levels[lo].EnergyErg, ion.IonPotEV), 1e-18,
						photoionTargetsFor(sp))
				}
			}
		}
	}
	sort.Slice(a.Lines, func(i, j int) bool { return a.Lines[i].NuTMin < a.Lines[j].NuTMin })
	return a
}

// collStrengthOrSentinel returns a small illustrative collision
// strength for close level pairs (within two rungs of the synthetic
// ladder) and the "not tabulated" sentinel for everything else.
func collStrengthOrSentinel(levelGap int) Real {
	if levelGap > 2 {
		return NoCollStr
	}
	return 1.0 + 0.5*Real(levelGap)
}

// photoionTargetsFor splits one level's photoionisations across the
// next ion's ground and first excited level, when it has one, so the
// opacity model has more than a single trivial target to weight.
func photoionTargetsFor(sp SyntheticSpec) []PhotoionTarget {
	n := sp.LevelsPerIon
	if n < 1 {
		n = 1
	}
	if n == 1 {
		return []PhotoionTarget{{Level: 0, Probability: 1}}
	}
	return []PhotoionTarget{{Level: 0, Probability: 0.8}, {Level: 1, Probability: 0.2}}
}

// thresholdFreq converts a level's binding energy (ion potential minus
// level excitation) into a photoionisation threshold frequency.
func thresholdFreq(levelEnergyErg, ionPotEV Real) Real {
	bindingErg := ionPotEV*EV - levelEnergyErg
	if bindingErg <= 0 {
		bindingErg = ionPotEV * EV
	}
	return bindingErg / HPlanck
}
