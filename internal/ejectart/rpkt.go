package ejectart

import (
	"math"
	"math/rand"
)

// SobolevConst is pi*e^2/(m_e*c) in cgs, the constant multiplying
// oscillator strength, lower-level population and elapsed time in the
// Sobolev optical depth for homologous expansion.
const SobolevConst Real = 0.02654

// PropagationEnv bundles everything PropagateRPacket needs to read or
// update for the cell a packet currently occupies.
type PropagationEnv struct {
	Grid        *Grid
	Atomic      *AtomicData
	Lines       *LineList
	Estimators  *EstimatorSet
	Opacity     *OpacityCache
	Cooling     *CoolingCache
	CellHistory *CellHistoryCache

	// RadFieldNuEdges are the ascending log-frequency bin edges each
	// cell's BinMeanJ/BinMeanNuJ/BinNSamples are indexed against.
	// Length must be len(cell.BinMeanJ)+1 when bin tracking is enabled.
	RadFieldNuEdges []Real
}

// PropagateRPacket advances one r-packet from its current state until
// it escapes the grid, converts to a k-packet, or reaches the end of
// the timestep (tEnd), accumulating radiation-field estimators along
// the way. It returns when the packet's Kind is no longer PacketRPkt,
// or when p.T has reached tEnd with Kind still PacketRPkt (packet
// carries over to the next timestep).
//
// Within one cell, the packet races a single sampled optical-depth
// target against the running sum of continuum opacity traversed plus
// every line's Sobolev optical depth passed along the way: most lines
// it crosses are too weak to reach the target and are passed through
// (p.NextTransHint advances past them so the same line is never
// re-examined this step), and only the line or continuum segment that
// finally exhausts the budget becomes a real interaction.
func PropagateRPacket(rng *rand.Rand, env *PropagationEnv, p *Packet, tEnd Real) {
	tauRemaining := sampleTau(rng)

	for p.Kind == PacketRPkt {
		cell := env.Grid.ModelCells[env.Grid.Cells[p.CellIndex].ModelCellIndex]

		kappaCont := env.Opacity.Acquire(p.CellIndex).lookupAndRelease(p.NuCMF, func(nu Real) Real {
			k, _, _, _ := ContinuumOpacity(env.Atomic, cell, nu)
			return k
		})

		crossing := env.Grid.DistanceToBoundary(p.CellIndex, p.Position, p.Direction, p.T, p.LastFace)
		dLimit := crossing.Distance
		limitEvent := eventBoundary
		if dTime := CLight * (tEnd - p.T); dTime < dLimit {
			dLimit, limitEvent = dTime, eventTimeEnd
		}
		if dLimit < 0 {
			dLimit = 0
		}

		lineIdx := env.Lines.Lookup(p.NuCMF, p.NextTransHint)
		var dLine, tLine Real = -1, 0
		if lineIdx >= 0 {
			var ok bool
			dLine, tLine, ok = lineEventGeometry(env.Lines.At(lineIdx), p)
			if !ok {
				dLine = -1
			}
		}

		if dLine < 0 || dLine > dLimit {
			// No line stands between here and the boundary/time-end:
			// consume continuum tau over the remaining path.
			tauSeg := Real(0)
			if kappaCont > 0 {
				tauSeg = kappaCont * dLimit
			}
			if tauSeg < tauRemaining {
				advancePacket(env, p, cell, dLimit)
				tauRemaining -= tauSeg
				switch limitEvent {
				case eventTimeEnd:
					return
				case eventBoundary:
					p.LastFace = env.Grid.ChangeCell(p, crossing, p.T)
					if p.Kind != PacketRPkt {
						return
					}
				}
				continue
			}
			d := dLimit
			if kappaCont > 0 {
				d = tauRemaining / kappaCont
			}
			advancePacket(env, p, cell, d)
			handleContinuumEvent(rng, env, p, cell)
			tauRemaining = sampleTau(rng)
			if p.Kind != PacketRPkt {
				return
			}
			continue
		}

		// A line sits before the boundary/time-end: first see whether
		// continuum opacity alone exhausts the budget before reaching it.
		contSeg := Real(0)
		if kappaCont > 0 {
			contSeg = kappaCont * dLine
		}
		if contSeg >= tauRemaining {
			d := dLine
			if kappaCont > 0 {
				d = tauRemaining / kappaCont
			}
			advancePacket(env, p, cell, d)
			handleContinuumEvent(rng, env, p, cell)
			tauRemaining = sampleTau(rng)
			if p.Kind != PacketRPkt {
				return
			}
			continue
		}

		remaining := tauRemaining - contSeg
		lineTau := sobolevTau(env.Atomic, cell, env.Lines.At(lineIdx), tLine)
		if lineTau < remaining {
			// Weak line: pass through, keep accumulating budget.
			advancePacket(env, p, cell, dLine)
			env.Estimators.AddLineEstimator(env.Grid.Cells[p.CellIndex].ModelCellIndex, lineIdx, dLine, p.ECMF, p.NuCMF)
			tauRemaining -= contSeg + lineTau
			p.NextTransHint = lineIdx + 1
			continue
		}

		// This line exhausts the budget: it is the real interaction.
		advancePacket(env, p, cell, dLine)
		p.NextTransHint = lineIdx + 1
		handleLineEvent(rng, env, p, cell, lineIdx)
		tauRemaining = sampleTau(rng)
		if p.Kind != PacketRPkt {
			return
		}
	}
}

type eventKind int

const (
	eventBoundary eventKind = iota
	eventTimeEnd
	eventContinuum
	eventLine
)

// lookupAndRelease is a convenience wrapper releasing the handle as
// soon as the lookup returns, since PropagateRPacket never needs to
// hold the lease across multiple lookups.
func (h *CellOpacityHandle) lookupAndRelease(nu Real, compute func(Real) Real) Real {
	defer h.Release()
	return h.Lookup(nu, compute)
}

// lineEventGeometry solves for the path length and absolute time at
// which a redshifting packet's comoving frequency reaches a line's
// rest frequency. Comoving frequency scales as nu_cmf(t) =
// nu_cmf(t0)*(t0/t) for freely streaming photons in homologous
// expansion, independent of direction, so nu_line = nu_cmf(t0)*(t0/t)
// solves directly for t. ok is false if the line sits behind the
// packet in time (already passed, or resonance would need t <= t0).
func lineEventGeometry(ln Line, p *Packet) (dLine, tLine Real, ok bool) {
	t0 := p.T
	tLine = t0 * p.NuCMF / ln.NuTMin
	if tLine <= t0 {
		return -1, 0, false
	}
	return CLight * (tLine - t0), tLine, true
}

// sobolevTau is the Sobolev optical depth of a bound-bound transition
// at the resonance time tLine, including the stimulated-emission
// correction: tau = SobolevConst * f_lu * t * (n_lower -
// (g_lower/g_upper)*n_upper), clamped to zero (a population inversion
// never produces negative absorption here).
func sobolevTau(a *AtomicData, cell *ModelCell, ln Line, tLine Real) Real {
	ion := a.Ions[ln.IonIndex]
	gLower := ion.Levels[ln.Lower].StatWeight
	gUpper := ion.Levels[ln.Upper].StatWeight
	nLower := levelPopulation(cell, ln.IonIndex, ln.Lower)
	nUpper := levelPopulation(cell, ln.IonIndex, ln.Upper)

	fLU := Real(0)
	if gLower > 0 {
		fLU = ln.GfValue / gLower
	}
	net := nLower
	if gUpper > 0 {
		net -= (gLower / gUpper) * nUpper
	}
	if net < 0 {
		net = 0
	}
	tau := SobolevConst * fLU * net * tLine
	if tau < 0 {
		tau = 0
	}
	return tau
}

// advancePacket moves a packet forward by path length d, applying the
// 1/t comoving redshift to its frequency and energy, and accumulating
// its radiation-field contribution to the cell's estimators.
func advancePacket(env *PropagationEnv, p *Packet, cell *ModelCell, d Real) {
	if d <= 0 {
		return
	}
	t0 := p.T
	p.Position = p.Position.Add(p.Direction.Mul(d))
	p.T += d / CLight
	scale := t0 / p.T
	p.NuCMF *= scale
	p.ECMF *= scale

	cellIdx := env.Grid.Cells[p.CellIndex].ModelCellIndex
	binIdx := -1
	if len(cell.BinMeanJ) > 0 {
		binIdx = frequencyBin(env.RadFieldNuEdges, len(cell.BinMeanJ), p.NuCMF)
	}
	env.Estimators.AddRadiationField(cellIdx, binIdx, d, p.ECMF, p.NuCMF)
}

// frequencyBin locates the log-frequency bin containing nu by binary
// search against edges, clamping out-of-range frequencies into the
// nearest end bin rather than dropping their estimator contribution.
func frequencyBin(edges []Real, nBins int, nu Real) int {
	if nBins == 0 {
		return -1
	}
	if len(edges) != nBins+1 {
		return 0
	}
	if nu < edges[0] {
		return 0
	}
	if nu >= edges[nBins] {
		return nBins - 1
	}
	return searchBin(edges, nu)
}

// handleLineEvent excites a macro atom in the line's upper level and
// runs it to its exit, dispatching on the outcome's kind: a radiative
// decay (bound-bound or recombination) re-emits the packet as a fresh
// r-packet, anything else converts it to a k-packet.
func handleLineEvent(rng *rand.Rand, env *PropagationEnv, p *Packet, cell *ModelCell, lineIdx int) {
	ln := env.Lines.At(lineIdx)
	env.Estimators.AddLineEstimator(env.Grid.Cells[p.CellIndex].ModelCellIndex, lineIdx, 0, p.ECMF, p.NuCMF)
	p.AbsorptionType = lineIdx

	modelIdx := env.Grid.Cells[p.CellIndex].ModelCellIndex
	history := cellHistoryFor(env, modelIdx, cell)
	kPacketRateFor := func(ionIndex, level int) Real {
		return kPacketRateForLevel(env, cell, ionIndex, level)
	}
	outcome := RunMacroAtom(rng, env.Atomic, env.Lines, cell, history, ln.IonIndex, ln.Upper, kPacketRateFor)
	switch outcome.Kind {
	case MAOutcomeLineDecay:
		emitLine(env, p, outcome.LineIndex, rng)
	case MAOutcomeRecombEmission:
		emitRecombination(env, p, outcome.EdgeNu, rng)
	default:
		p.Kind = PacketKPkt
	}
}

// cellHistoryFor fetches (building on first use) the per-worker cell
// history for a model cell.
func cellHistoryFor(env *PropagationEnv, modelCellIndex int, cell *ModelCell) *CellHistory {
	if env.CellHistory == nil {
		return nil
	}
	return env.CellHistory.Get(modelCellIndex, func() *CellHistory {
		return BuildCellHistory(env.Atomic, env.Lines, cell)
	})
}

// handleContinuumEvent samples which continuum process the packet
// interacted with, weighted by each one's opacity share: Thomson
// scattering redirects the packet isotropically and lets it survive
// as an r-packet; free-free absorption always thermalises it into a
// k-packet; bound-free absorption first picks the specific (ion,
// level, target) responsible, mirroring boundFreeOpacity's per-target
// sum, then hands off to handleBoundFreeEvent to decide between
// activating a macro atom and thermalising.
func handleContinuumEvent(rng *rand.Rand, env *PropagationEnv, p *Packet, cell *ModelCell) {
	kThom := ThomsonXSec * cell.ElectronDensity
	kFF := freeFreeOpacity(env.Atomic, cell, p.NuCMF)
	boundFree := boundFreeContributions(env.Atomic, cell, p.NuCMF)
	var kBF Real
	for _, c := range boundFree {
		kBF += c.Weight
	}
	total := kThom + kFF + kBF
	if total <= 0 {
		p.Kind = PacketKPkt
		return
	}
	u := Real(rng.Float64()) * total
	switch {
	case u < kThom:
		p.Direction = isotropicDirection(rng)
		p.Stokes = p.Stokes.ThomsonScatter(2*rng.Float64()-1, p.Direction)
	case u < kThom+kFF:
		p.Kind = PacketKPkt
	default:
		handleBoundFreeEvent(rng, env, p, cell, boundFree, u-kThom-kFF)
	}
}

// handleBoundFreeEvent picks the specific (ion, level, target) term
// responsible for a bound-free absorption from its cumulative weight
// (u indexes into contributions the same way handleContinuumEvent's
// outer draw indexes into Thomson/free-free/bound-free), then decides
// between photoionisation and thermalisation with probability
// ThresholdNu/NuCMF: a photon well above threshold is far more likely
// to knock the electron free with leftover kinetic energy than to
// land exactly on the edge, so only a fraction ThresholdNu/NuCMF of
// absorptions actually populate the upper ion's macro atom, the rest
// become k-packets.
func handleBoundFreeEvent(rng *rand.Rand, env *PropagationEnv, p *Packet, cell *ModelCell, contributions []boundFreeContribution, u Real) {
	if len(contributions) == 0 {
		p.Kind = PacketKPkt
		return
	}
	chosen := contributions[len(contributions)-1]
	var acc Real
	for _, c := range contributions {
		acc += c.Weight
		if u <= acc {
			chosen = c
			break
		}
	}

	if rng.Float64() >= float64(chosen.ThresholdNu/p.NuCMF) {
		p.Kind = PacketKPkt
		return
	}

	modelIdx := env.Grid.Cells[p.CellIndex].ModelCellIndex
	history := cellHistoryFor(env, modelIdx, cell)
	kPacketRateFor := func(ionIndex, level int) Real {
		return kPacketRateForLevel(env, cell, ionIndex, level)
	}
	outcome := RunMacroAtom(rng, env.Atomic, env.Lines, cell, history, chosen.IonIndex+1, chosen.Target.Level, kPacketRateFor)
	switch outcome.Kind {
	case MAOutcomeLineDecay:
		emitLine(env, p, outcome.LineIndex, rng)
	case MAOutcomeRecombEmission:
		emitRecombination(env, p, outcome.EdgeNu, rng)
	default:
		p.Kind = PacketKPkt
	}
}

// kPacketRateForLevel estimates a level's collisional deactivation
// rate into the thermal pool as a fixed fraction of the cell's total
// non-thermal/thermal cooling budget, scaled by the level's population
// so more heavily populated levels deactivate proportionally faster.
func kPacketRateForLevel(env *PropagationEnv, cell *ModelCell, ionIndex, level int) Real {
	n := levelPopulation(cell, ionIndex, level)
	if n <= 0 {
		return 0
	}
	return n * cell.ElectronDensity * collisionRateCoeff
}

// emitLine turns a successful macro-atom radiative decay into a fresh
// r-packet: frequency pinned to the line's rest frequency (redshifted
// into the comoving frame is implicit since NuCMF is already comoving),
// direction drawn isotropically, polarisation reset. The hint resets
// to zero since the new packet starts a fresh redshift history.
func emitLine(env *PropagationEnv, p *Packet, lineIdx int, rng *rand.Rand) {
	ln := env.Lines.At(lineIdx)
	p.Kind = PacketRPkt
	p.NuCMF = ln.NuTMin
	p.NextTransHint = 0
	p.Direction = isotropicDirection(rng)
	p.Stokes = NewUnpolarised(p.ECMF, p.Direction)
	p.EmissionType = lineIdx
}

// emitRecombination turns a macro-atom radiative recombination exit
// into a fresh r-packet pinned near the recombining level's threshold
// frequency, the same way emitLine pins a bound-bound decay to its
// line's rest frequency.
func emitRecombination(env *PropagationEnv, p *Packet, edgeNu Real, rng *rand.Rand) {
	p.Kind = PacketRPkt
	p.NuCMF = edgeNu
	p.NextTransHint = 0
	p.Direction = isotropicDirection(rng)
	p.Stokes = NewUnpolarised(p.ECMF, p.Direction)
	p.EmissionType = -1
}

// isotropicDirection draws a direction uniform on the unit sphere.
func isotropicDirection(rng *rand.Rand) Vector3 {
	cosTheta := 2*rng.Float64() - 1
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	phi := 2 * math.Pi * rng.Float64()
	return Vector3{
		X: sinTheta * math.Cos(phi),
		Y: sinTheta * math.Sin(phi),
		Z: cosTheta,
	}
}
