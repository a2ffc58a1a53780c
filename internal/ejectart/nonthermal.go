package ejectart

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// IonisationChannelShare is one photoionisable level's share of a
// cell's non-thermal ionisation deposition.
type IonisationChannelShare struct {
	IonIndex        int
	Level           int
	ThresholdEV     Real
	DepositionShare Real
}

// ExcitationChannelShare is one bound-bound transition's share of a
// cell's non-thermal excitation deposition.
type ExcitationChannelShare struct {
	LineIndex       int
	IonIndex        int
	LowerLevel      int
	ThresholdEV     Real
	DepositionShare Real
}

// NonThermalSolution is one model cell's solved Spencer-Fano electron
// degradation spectrum for a single timestep, plus the deposition
// split it implies.
type NonThermalSolution struct {
	EnergyGridEV []Real // log-spaced energy grid, eV, descending from EMax to EMin
	SpectrumYE   []Real // y(E): electron number flux spectrum at each grid energy

	HeatingFraction    Real
	IonisationFraction Real
	ExcitationFraction Real

	// E0EV is the energy below which a non-thermal electron is treated
	// as already thermalised rather than still degrading discretely.
	E0EV Real
	// EffectiveIonPotEV is each ion's population-weighted effective
	// ionisation potential, eV, folding in its excited levels' smaller
	// binding energies.
	EffectiveIonPotEV map[int]Real
	// AugerBranching is each ion's share of non-thermal ionisation that
	// lands on an excited (non-ground) level of the ion above, a proxy
	// for inner-shell/Auger-accompanied ionisation.
	AugerBranching map[int]Real

	IonisationChannels []IonisationChannelShare // sorted by DepositionShare descending
	ExcitationChannels []ExcitationChannelShare // sorted by LineIndex ascending

	DepositionRateDensity Real // erg/cm^3/s, input deposition this solve was built from
	ResidualNorm          Real // ||A y - b|| after Newton refinement, diagnostic only
}

// NonThermalGrid is the shared log-spaced energy grid every cell's
// Spencer-Fano solve runs on; building it once per run avoids
// reallocating an 8192-point grid per cell per timestep.
type NonThermalGrid struct {
	EnergyEV []Real // descending, EnergyEV[0] == EMax
	N        int
}

// NewNonThermalGrid builds a log-spaced grid of n points from eMinEV to
// eMaxEV, stored in descending order (index 0 is the highest energy),
// matching the Spencer-Fano equation's natural "degrade from the top"
// direction.
func NewNonThermalGrid(n int, eMinEV, eMaxEV Real) *NonThermalGrid {
	g := &NonThermalGrid{EnergyEV: make([]Real, n), N: n}
	logMin, logMax := math.Log(eMinEV), math.Log(eMaxEV)
	for i := 0; i < n; i++ {
		frac := Real(i) / Real(n-1)
		logE := logMax - frac*(logMax-logMin)
		g.EnergyEV[i] = math.Exp(logE)
	}
	return g
}

// LossFunction evaluates the stopping power dE/dx (eV cm^2, per target
// atom, i.e. already divided by number density) at energy E for a
// free electron slowing down via Coulomb collisions with the cell's
// free-electron population — the standard non-relativistic Bethe
// formula, capped below a plasma cutoff energy to avoid a log
// singularity at E -> 0.
func LossFunction(cell *ModelCell, energyEV Real) Real {
	const plasmaCutoffEV = 1.0
	e := energyEV
	if e < plasmaCutoffEV {
		e = plasmaCutoffEV
	}
	ne := cell.ElectronDensity
	if ne <= 0 {
		return 0
	}
	// Coulomb logarithm, crudely fixed rather than solved self-
	// consistently; adequate for the deposition split this solver feeds.
	const coulombLog = 10.0
	return 2 * math.Pi * math.Pow(2.8179403262e-13, 2) * 511000 * ne * coulombLog / e
}

// excitationTerm is one bound-bound channel the non-thermal solver
// degrades electrons through: a representative line (the first found
// for its (ion, lower level) pair) standing in for every line sharing
// that lower level.
type excitationTerm struct {
	LineIndex   int
	IonIndex    int
	LowerLevel  int
	ThresholdEV Real
	CollStr     Real
	GfValue     Real
}

// ionisationTerm is one photoionisable level the non-thermal solver
// can knock an electron out of.
type ionisationTerm struct {
	IonIndex    int
	Level       int
	ThresholdEV Real
}

// buildNonThermalChannels enumerates the excitation and ionisation
// channels a cell's non-thermal electrons can lose energy through:
// excitation channels are capped at MaxExcitationLowerLevels distinct
// (ion, lower level) pairs (the synthetic atomic model's line list can
// be large; this keeps the discrete-loss sum bounded the same way a
// real NLTE population solve bounds its tracked levels), ionisation
// channels come directly from every tabulated photoionisation level.
func buildNonThermalChannels(a *AtomicData, lines *LineList) ([]excitationTerm, []ionisationTerm) {
	seen := make(map[[2]int]bool)
	var exc []excitationTerm
	for i := 0; i < lines.Len() && len(seen) < MaxExcitationLowerLevels; i++ {
		ln := lines.At(i)
		key := [2]int{ln.IonIndex, ln.Lower}
		if seen[key] {
			continue
		}
		if ln.IonIndex >= len(a.Ions) {
			continue
		}
		ion := a.Ions[ln.IonIndex]
		if ln.Lower >= len(ion.Levels) || ln.Upper >= len(ion.Levels) {
			continue
		}
		thresholdEV := (ion.Levels[ln.Upper].EnergyErg - ion.Levels[ln.Lower].EnergyErg) / EV
		if thresholdEV <= 0 {
			continue
		}
		seen[key] = true
		exc = append(exc, excitationTerm{
			LineIndex: i, IonIndex: ln.IonIndex, LowerLevel: ln.Lower,
			ThresholdEV: thresholdEV, CollStr: ln.CollStr, GfValue: ln.GfValue,
		})
	}

	var ionz []ionisationTerm
	for key := range a.Photoion {
		if key.IonIndex >= len(a.Ions) {
			continue
		}
		ion := a.Ions[key.IonIndex]
		if key.Level >= len(ion.Levels) {
			continue
		}
		thresholdEV := bindingEnergyErg(ion, key.Level) / EV
		if thresholdEV <= 0 {
			continue
		}
		ionz = append(ionz, ionisationTerm{IonIndex: key.IonIndex, Level: key.Level, ThresholdEV: thresholdEV})
	}
	sort.Slice(ionz, func(i, j int) bool {
		if ionz[i].IonIndex != ionz[j].IonIndex {
			return ionz[i].IonIndex < ionz[j].IonIndex
		}
		return ionz[i].Level < ionz[j].Level
	})
	return exc, ionz
}

// excitationCrossSectionEV approximates a collisional excitation cross
// section: a Van Regemorter-like form scaling with collision strength
// where one is tabulated, an oscillator-strength Bethe-log form for
// permitted transitions otherwise.
func excitationCrossSectionEV(term excitationTerm, E Real) Real {
	if E <= term.ThresholdEV {
		return 0
	}
	if term.CollStr != NoCollStr {
		return IonisationXSecScale * term.CollStr / E
	}
	if term.GfValue <= 0 {
		return 0
	}
	return IonisationXSecScale * term.GfValue * Real(math.Log(float64(E/term.ThresholdEV))) / E
}

// ionisationCrossSectionEV is a Lotz-like collisional ionisation cross
// section, sigma ~ scale * ln(E/I) / (E*I), boosted by
// SecondaryElectronBoost to approximate the Opal-Peterson-Beaty
// secondary-electron distribution's contribution as a single scaled
// term rather than its own integral.
func ionisationCrossSectionEV(thresholdEV, E Real) Real {
	if E <= thresholdEV || thresholdEV <= 0 {
		return 0
	}
	return IonisationXSecScale * SecondaryElectronBoost * Real(math.Log(float64(E/thresholdEV))) / (E * thresholdEV)
}

// excitationLossEV sums every excitation channel's contribution to the
// combined loss function at energy E.
func excitationLossEV(cell *ModelCell, exc []excitationTerm, E Real) Real {
	var total Real
	for _, ex := range exc {
		sigma := excitationCrossSectionEV(ex, E)
		if sigma <= 0 {
			continue
		}
		n := levelPopulation(cell, ex.IonIndex, ex.LowerLevel)
		if n <= 0 {
			continue
		}
		total += n * sigma * ex.ThresholdEV
	}
	return total
}

// ionisationLossEV sums every ionisation channel's contribution to the
// combined loss function at energy E.
func ionisationLossEV(cell *ModelCell, ionz []ionisationTerm, E Real) Real {
	var total Real
	for _, iz := range ionz {
		sigma := ionisationCrossSectionEV(iz.ThresholdEV, E)
		if sigma <= 0 {
			continue
		}
		n := levelPopulation(cell, iz.IonIndex, iz.Level)
		if n <= 0 {
			continue
		}
		total += n * sigma * iz.ThresholdEV
	}
	return total
}

// combinedLossEV is the total stopping power a non-thermal electron
// experiences at energy E: the continuous Coulomb loss plus every
// discrete excitation and ionisation channel's contribution, folded
// into one curve the same way a real non-thermal solver combines
// continuous and discrete stopping power before discretising the
// Spencer-Fano equation.
func combinedLossEV(cell *ModelCell, coulombLossEV Real, exc []excitationTerm, ionz []ionisationTerm, EeV Real) Real {
	return coulombLossEV + excitationLossEV(cell, exc, EeV) + ionisationLossEV(cell, ionz, EeV)
}

// SolveSpencerFano builds and solves the discretised Spencer-Fano
// equation for one model cell: an upper-triangular linear system
// A y = b where A encodes the combined continuous-plus-discrete
// energy-loss continuity relation between adjacent grid points and b
// is the input deposition spectrum (all deposition is injected at the
// top of the grid, EMax, the usual monoenergetic-source approximation
// for a gamma-ray-degraded electron population). The system is solved
// by back-substitution since A is triangular by construction, then
// refined with a few Newton iterations against the residual A y - b to
// control accumulated round-off over the 8192-point grid.
func SolveSpencerFano(grid *NonThermalGrid, a *AtomicData, lines *LineList, cell *ModelCell, depositionRateDensity Real) *NonThermalSolution {
	n := grid.N
	exc, ionz := buildNonThermalChannels(a, lines)

	tri := mat.NewTriDense(n, mat.Upper, nil)
	b := mat.NewVecDense(n, nil)

	for i := 0; i < n; i++ {
		coulomb := LossFunction(cell, grid.EnergyEV[i])
		loss := combinedLossEV(cell, coulomb, exc, ionz, grid.EnergyEV[i])
		tri.SetTri(i, i, loss+DepositionFloorErgPerCm3PerS)
		if i > 0 {
			tri.SetTri(i-1, i, -loss)
		}
	}
	b.SetVec(0, depositionRateDensity)

	y := mat.NewVecDense(n, nil)
	backSubstituteUpper(tri, b, y)

	residual := mat.NewVecDense(n, nil)
	residual.MulVec(tri, y)
	residual.SubVec(residual, b)
	resNorm := mat.Norm(residual, 2)

	for iter := 0; iter < NonThermalMaxNewtonIter && resNorm > NonThermalResidualWarn; iter++ {
		correction := mat.NewVecDense(n, nil)
		backSubstituteUpper(tri, residual, correction)
		y.SubVec(y, correction)
		residual.MulVec(tri, y)
		residual.SubVec(residual, b)
		resNorm = mat.Norm(residual, 2)
	}

	sol := &NonThermalSolution{
		EnergyGridEV:          append([]Real{}, grid.EnergyEV...),
		SpectrumYE:            make([]Real, n),
		E0EV:                  2 * KBoltzmann * cell.ElectronTemp / EV,
		DepositionRateDensity: depositionRateDensity,
		ResidualNorm:          resNorm,
	}
	for i := 0; i < n; i++ {
		sol.SpectrumYE[i] = y.AtVec(i)
	}
	sol.HeatingFraction, sol.IonisationFraction, sol.ExcitationFraction = partitionDeposition(cell, exc, ionz, sol)
	sol.IonisationChannels, sol.AugerBranching = ionisationChannelShares(cell, ionz, sol)
	sol.ExcitationChannels = excitationChannelShares(cell, exc, sol)
	sol.EffectiveIonPotEV = effectiveIonPotentials(a, cell)
	return sol
}

// backSubstituteUpper solves a*x = b for upper-triangular a via back
// substitution, exploiting the bidiagonal structure SolveSpencerFano
// builds (each row only couples to itself and the row above).
func backSubstituteUpper(a *mat.TriDense, b *mat.VecDense, x *mat.VecDense) {
	n, _ := a.Dims()
	for i := n - 1; i >= 0; i-- {
		sum := b.AtVec(i)
		if i+1 < n {
			sum -= a.At(i, i+1) * x.AtVec(i+1)
		}
		diag := a.At(i, i)
		if diag == 0 {
			x.SetVec(i, 0)
			continue
		}
		x.SetVec(i, sum/diag)
	}
}

// gridIntegral trapezoidally integrates y(E)*weight(E) over grid's
// (possibly descending) energy axis.
func gridIntegral(energyEV, y []Real, weight func(Real) Real) Real {
	n := len(energyEV)
	if n < 2 {
		return 0
	}
	var total Real
	for i := 0; i < n-1; i++ {
		e0, e1 := energyEV[i], energyEV[i+1]
		w0 := y[i] * weight(e0)
		w1 := y[i+1] * weight(e1)
		d := e0 - e1
		if d < 0 {
			d = -d
		}
		total += 0.5 * (w0 + w1) * d
	}
	return total
}

// partitionDeposition splits the solved spectrum's total degraded
// energy into heating, ionisation and excitation shares by integrating
// each loss channel's contribution against the solved spectrum. Falls
// back to the configured default fractions only when the deposition
// rate sits below the solver's floor or the integrated total can't
// support a meaningful split (no ions/lines tracked).
func partitionDeposition(cell *ModelCell, exc []excitationTerm, ionz []ionisationTerm, sol *NonThermalSolution) (heating, ionisation, excitation Real) {
	if sol.DepositionRateDensity < DepositionFloorErgPerCm3PerS {
		return normalizedDefaults()
	}
	energies, y := sol.EnergyGridEV, sol.SpectrumYE
	coulombInt := gridIntegral(energies, y, func(e Real) Real { return LossFunction(cell, e) })
	excInt := gridIntegral(energies, y, func(e Real) Real { return excitationLossEV(cell, exc, e) })
	ionInt := gridIntegral(energies, y, func(e Real) Real { return ionisationLossEV(cell, ionz, e) })
	total := coulombInt + excInt + ionInt
	if total <= 0 {
		return normalizedDefaults()
	}
	return coulombInt / total, ionInt / total, excInt / total
}

func normalizedDefaults() (heating, ionisation, excitation Real) {
	total := DefaultHeatingFraction + DefaultIonisationFraction + DefaultExcitationFraction
	if total <= 0 {
		return 1, 0, 0
	}
	return DefaultHeatingFraction / total, DefaultIonisationFraction / total, DefaultExcitationFraction / total
}

// ionisationChannelShares computes each ionisation channel's share of
// the cell's total integrated ionisation deposition, sorted by share
// descending, plus each ion's Auger-branching proxy: the fraction of
// its own ionisation deposition landing on a non-ground level.
func ionisationChannelShares(cell *ModelCell, ionz []ionisationTerm, sol *NonThermalSolution) ([]IonisationChannelShare, map[int]Real) {
	energies, y := sol.EnergyGridEV, sol.SpectrumYE
	shares := make([]IonisationChannelShare, 0, len(ionz))
	ionTotal := make(map[int]Real)
	ionExcited := make(map[int]Real)
	var grand Real
	for _, iz := range ionz {
		contrib := gridIntegral(energies, y, func(e Real) Real {
			sigma := ionisationCrossSectionEV(iz.ThresholdEV, e)
			if sigma <= 0 {
				return 0
			}
			n := levelPopulation(cell, iz.IonIndex, iz.Level)
			return n * sigma * iz.ThresholdEV
		})
		shares = append(shares, IonisationChannelShare{IonIndex: iz.IonIndex, Level: iz.Level, ThresholdEV: iz.ThresholdEV, DepositionShare: contrib})
		grand += contrib
		ionTotal[iz.IonIndex] += contrib
		if iz.Level > 0 {
			ionExcited[iz.IonIndex] += contrib
		}
	}
	for i := range shares {
		if grand > 0 {
			shares[i].DepositionShare /= grand
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].DepositionShare > shares[j].DepositionShare })

	branching := make(map[int]Real, len(ionTotal))
	for ion, total := range ionTotal {
		if total > 0 {
			branching[ion] = ionExcited[ion] / total
		}
	}
	return shares, branching
}

// excitationChannelShares computes each excitation channel's share of
// the cell's total integrated excitation deposition, sorted by line
// index ascending.
func excitationChannelShares(cell *ModelCell, exc []excitationTerm, sol *NonThermalSolution) []ExcitationChannelShare {
	energies, y := sol.EnergyGridEV, sol.SpectrumYE
	shares := make([]ExcitationChannelShare, 0, len(exc))
	var grand Real
	for _, ex := range exc {
		contrib := gridIntegral(energies, y, func(e Real) Real {
			sigma := excitationCrossSectionEV(ex, e)
			if sigma <= 0 {
				return 0
			}
			n := levelPopulation(cell, ex.IonIndex, ex.LowerLevel)
			return n * sigma * ex.ThresholdEV
		})
		shares = append(shares, ExcitationChannelShare{
			LineIndex: ex.LineIndex, IonIndex: ex.IonIndex, LowerLevel: ex.LowerLevel,
			ThresholdEV: ex.ThresholdEV, DepositionShare: contrib,
		})
		grand += contrib
	}
	for i := range shares {
		if grand > 0 {
			shares[i].DepositionShare /= grand
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].LineIndex < shares[j].LineIndex })
	return shares
}

// effectiveIonPotentials computes each ion's population-weighted
// effective ionisation potential: ion.IonPotEV / sum(popFraction_level
// / levelIonPotEV_level), so an ion whose population sits mostly in
// excited levels reports a lower effective potential than its ground-
// state value.
func effectiveIonPotentials(a *AtomicData, cell *ModelCell) map[int]Real {
	result := make(map[int]Real, len(a.Ions))
	for i, ion := range a.Ions {
		var totalPop Real
		for lv := range ion.Levels {
			totalPop += levelPopulation(cell, i, lv)
		}
		if totalPop <= 0 {
			result[i] = ion.IonPotEV
			continue
		}
		var denom Real
		for lv := range ion.Levels {
			n := levelPopulation(cell, i, lv)
			if n <= 0 {
				continue
			}
			shellIonPotEV := bindingEnergyErg(ion, lv) / EV
			if shellIonPotEV <= 0 {
				continue
			}
			denom += (n / totalPop) / shellIonPotEV
		}
		if denom <= 0 {
			result[i] = ion.IonPotEV
			continue
		}
		result[i] = ion.IonPotEV / denom
	}
	return result
}

// defaultNonThermalSolution builds the constant-fraction fallback used
// when a cell's deposition rate is too small, or the atomic model has
// no ions at all, to support a genuine Spencer-Fano solve.
func defaultNonThermalSolution(rate Real) *NonThermalSolution {
	heating, ionisation, excitation := normalizedDefaults()
	return &NonThermalSolution{
		HeatingFraction:       heating,
		IonisationFraction:    ionisation,
		ExcitationFraction:    excitation,
		DepositionRateDensity: rate,
	}
}
