package ejectart

import (
	"math"
	"sort"
)

// ContinuumOpacity computes kappa_cont, the total continuum opacity
// (cm^-1) at comoving frequency nu in a model cell, summing Thomson
// scattering off free electrons, thermal free-free absorption, and
// bound-free photoionisation off every level with a tabulated cross
// section. Standard closed-form algebraic expressions (Thomson,
// Kramers free-free) and a direct sum over tabulated cross sections:
// no ecosystem library offers these, they are the physics formulas
// themselves.
func ContinuumOpacity(a *AtomicData, cell *ModelCell, nu Real) (kappaCont, kappaThomson, kappaFreeFree, kappaBoundFree Real) {
	kappaThomson = ThomsonXSec * cell.ElectronDensity
	kappaFreeFree = freeFreeOpacity(a, cell, nu)
	kappaBoundFree = boundFreeOpacity(a, cell, nu)
	kappaCont = kappaThomson + kappaFreeFree + kappaBoundFree
	return
}

// freeFreeKramersConst is the Kramers free-free absorption constant,
// cgs, gaunt factor absorbed (g_ff = 1).
const freeFreeKramersConst Real = 3.69255e8

// freeFreeOpacity uses the Kramers free-free absorption coefficient,
// alpha_ff = C * ne * (sum_ions Z^2 * n_ion) * T^-0.5 * nu^-3 *
// (1 - exp(-h nu / kT)), summing over every ion's charge state rather
// than assuming a single effective singly-charged species.
func freeFreeOpacity(a *AtomicData, cell *ModelCell, nu Real) Real {
	ne, temp := cell.ElectronDensity, cell.ElectronTemp
	if temp <= 0 || nu <= 0 || ne <= 0 {
		return 0
	}
	var z2nIon Real
	for i, ion := range a.Ions {
		if i >= len(cell.IonPopulation) || ion.Charge <= 0 {
			continue
		}
		z2nIon += Real(ion.Charge*ion.Charge) * cell.IonPopulation[i]
	}
	if z2nIon <= 0 {
		return 0
	}
	stim := -math.Expm1(-HPlanck * nu / (KBoltzmann * temp))
	return freeFreeKramersConst * ne * z2nIon / (math.Sqrt(temp) * nu * nu * nu) * stim
}

// boundFreeOpacity sums, over every level with a tabulated
// photoionisation cross section and every target the ionisation can
// land on, n_level * sigma(nu) * target probability *
// stimulated-recombination correction.
func boundFreeOpacity(a *AtomicData, cell *ModelCell, nu Real) Real {
	var kappa Real
	for _, c := range boundFreeContributions(a, cell, nu) {
		kappa += c.Weight
	}
	return kappa
}

// boundFreeContribution is one (lower level, target) term of the
// bound-free opacity sum, carrying enough of the photoionisation
// table to let a packet absorbed via this specific term activate a
// macro atom at the right place: the ion one above key.IonIndex, at
// target.Level, with the table's threshold frequency on hand for the
// ionisation-vs-thermalisation split.
type boundFreeContribution struct {
	IonIndex    int
	Level       int
	Target      PhotoionTarget
	ThresholdNu Real
	Weight      Real
}

// boundFreeContributions enumerates every term boundFreeOpacity sums,
// sorted by (IonIndex, Level, Target.Level) so a caller sampling among
// them gets a result independent of Go's randomised map iteration
// order.
func boundFreeContributions(a *AtomicData, cell *ModelCell, nu Real) []boundFreeContribution {
	keys := make([]PhotoionKey, 0, len(a.Photoion))
	for key := range a.Photoion {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].IonIndex != keys[j].IonIndex {
			return keys[i].IonIndex < keys[j].IonIndex
		}
		return keys[i].Level < keys[j].Level
	})

	var out []boundFreeContribution
	for _, key := range keys {
		table := a.Photoion[key]
		sigma := table.CrossSection(nu)
		if sigma <= 0 {
			continue
		}
		nLower := levelPopulation(cell, key.IonIndex, key.Level)
		if nLower <= 0 {
			continue
		}
		targets := make([]PhotoionTarget, len(table.Targets))
		copy(targets, table.Targets)
		sort.Slice(targets, func(i, j int) bool { return targets[i].Level < targets[j].Level })
		for _, target := range targets {
			corr := boundFreeStimulatedCorrection(a, cell, key.IonIndex, key.Level, target.Level, nu, nLower)
			weight := nLower * sigma * target.Probability * corr
			if weight <= 0 {
				continue
			}
			out = append(out, boundFreeContribution{
				IonIndex:    key.IonIndex,
				Level:       key.Level,
				Target:      target,
				ThresholdNu: table.ThresholdNu,
				Weight:      weight,
			})
		}
	}
	return out
}

// boundFreeStimulatedCorrection returns the
// 1 - (n_upper/n_lower)*n_e*sahaFactor*exp(-h*nu/kT_e) correction a
// bound-free cross section needs to account for stimulated
// recombination, clamped to [0,1]. Falls back to no correction (1,
// the LTE-at-threshold limit) when the populations or temperature
// can't support a trustworthy finite result.
func boundFreeStimulatedCorrection(a *AtomicData, cell *ModelCell, ionIdx, lowerLevel, targetLevel int, nu, nLower Real) Real {
	if cell.ElectronTemp <= 0 || ionIdx+1 >= len(a.Ions) {
		return 1
	}
	upper := a.Ions[ionIdx+1]
	lower := a.Ions[ionIdx]
	if upper.ElementZ != lower.ElementZ {
		return 1
	}
	nUpper := levelPopulation(cell, ionIdx+1, targetLevel)
	gLower := safeStatWeight(lower.Levels, lowerLevel)
	gUpper := safeStatWeight(upper.Levels, targetLevel)
	binding := bindingEnergyErg(lower, lowerLevel)
	sf := sahaFactor(gLower, gUpper, cell.ElectronTemp, binding)
	if sf <= 0 {
		return 1
	}
	corr := 1 - (nUpper/nLower)*cell.ElectronDensity*sf*math.Exp(-HPlanck*nu/(KBoltzmann*cell.ElectronTemp))
	if math.IsNaN(float64(corr)) || math.IsInf(float64(corr), 0) {
		return 1
	}
	if corr < 0 {
		return 0
	}
	if corr > 1 {
		return 1
	}
	return corr
}

// sahaFactor is 1 / (n_upper*n_e/n_lower)_LTE evaluated at the level's
// binding energy: g_lower / (2*g_upper*pre(T)) * exp(binding/kT),
// where pre(T) = (2*pi*m_e*k*T/h^2)^1.5 is the standard Saha-equation
// prefactor.
func sahaFactor(gLower, gUpper, temp, bindingErg Real) Real {
	if temp <= 0 || gUpper <= 0 || gLower <= 0 {
		return 0
	}
	pre := math.Pow(2*math.Pi*ElectronMassG*KBoltzmann*temp, 1.5) / (HPlanck * HPlanck * HPlanck)
	if pre <= 0 {
		return 0
	}
	exponent := bindingErg / (KBoltzmann * temp)
	if exponent > 700 {
		exponent = 700 // avoid exp overflow; the correction clamps this to "negligible" either way
	}
	return gLower / (2 * gUpper * pre) * math.Exp(exponent)
}

// bindingEnergyErg returns a level's binding energy: the ion's
// ionisation potential above that level's excitation.
func bindingEnergyErg(ion Ion, level int) Real {
	e := levelEnergyErg(ion, level)
	b := ion.IonPotEV*EV - e
	if b <= 0 {
		b = ion.IonPotEV * EV
	}
	return b
}

func levelEnergyErg(ion Ion, level int) Real {
	if level >= 0 && level < len(ion.Levels) {
		return ion.Levels[level].EnergyErg
	}
	return 0
}

func safeStatWeight(levels []Level, level int) Real {
	if level >= 0 && level < len(levels) {
		return levels[level].StatWeight
	}
	return 0
}

// photoionDepartureRatio compares a level's implied Saha-LTE
// population of the ion above's ground state to its actual tracked
// population: a ratio near 1 means the level is close to
// photoionisation-recombination equilibrium with the ion above, far
// from 1 means a strong NLTE departure (and therefore a more active
// internal ion-change macro-atom channel).
func photoionDepartureRatio(a *AtomicData, cell *ModelCell, ionIdx, level int) Real {
	if ionIdx+1 >= len(a.Ions) {
		return 0
	}
	lower, upper := a.Ions[ionIdx], a.Ions[ionIdx+1]
	if upper.ElementZ != lower.ElementZ {
		return 0
	}
	nLower := levelPopulation(cell, ionIdx, level)
	if nLower <= 0 || cell.ElectronTemp <= 0 || cell.ElectronDensity <= 0 {
		return 0
	}
	nUpperGround := levelPopulation(cell, ionIdx+1, 0)
	gLower := safeStatWeight(lower.Levels, level)
	gUpper := safeStatWeight(upper.Levels, 0)
	sf := sahaFactor(gLower, gUpper, cell.ElectronTemp, bindingEnergyErg(lower, level))
	if sf <= 0 {
		return 0
	}
	nSahaUpper := nLower / (cell.ElectronDensity * sf)
	if nSahaUpper <= 0 || math.IsInf(float64(nSahaUpper), 0) {
		return 0
	}
	b := nUpperGround / nSahaUpper
	if b < 0 || math.IsNaN(float64(b)) {
		return 0
	}
	return b
}

// levelPopulation reads a model cell's NLTE level population if it
// tracks one, falling back to its total ion population for the ground
// state under an implicit LTE-within-ion approximation.
func levelPopulation(cell *ModelCell, ionIndex, level int) Real {
	if cell.NLTELevelPop != nil && ionIndex < len(cell.NLTELevelPop) {
		lv := cell.NLTELevelPop[ionIndex]
		if level < len(lv) {
			return lv[level]
		}
		return 0
	}
	if level != 0 {
		return 0
	}
	if ionIndex < len(cell.IonPopulation) {
		return cell.IonPopulation[ionIndex]
	}
	return 0
}
