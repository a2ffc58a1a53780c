package ejectart

import "math/rand"

// GammaOpacity is a grey (frequency-independent) Compton-like opacity
// per unit mass, cm^2/g, used for gamma-ray packet transport. Treating
// the opacity as grey is the standard simplification for MeV-range
// decay gammas, whose Compton cross section varies only slowly with
// energy compared to the steep bound-free and line opacities governing
// optical photons.
const GammaOpacity Real = 0.06

// PropagateGammaPacket advances one gamma packet until it escapes,
// deposits into the thermal/non-thermal pool as a k-packet, or reaches
// the end of the timestep. Its frequency does not interact resonantly
// with anything (gamma energies sit far above every line and
// photoionisation edge in the atomic model), so the only distances in
// play are the grey-opacity absorption distance, the cell boundary, and
// the timestep limit.
func PropagateGammaPacket(rng *rand.Rand, env *PropagationEnv, p *Packet, tEnd Real) {
	tauRemaining := sampleTau(rng)

	for p.Kind == PacketGamma {
		cell := env.Grid.ModelCells[env.Grid.Cells[p.CellIndex].ModelCellIndex]
		kappa := GammaOpacity * cell.DensityTMin * densityScale(env.Grid, p.T)

		dAbs := Real(-1)
		if kappa > 0 {
			dAbs = tauRemaining / kappa
		}

		crossing := env.Grid.DistanceToBoundary(p.CellIndex, p.Position, p.Direction, p.T, p.LastFace)
		dBound := crossing.Distance
		dTime := CLight * (tEnd - p.T)

		d := dBound
		event := eventBoundary
		if dTime < d {
			d, event = dTime, eventTimeEnd
		}
		if dAbs >= 0 && dAbs < d {
			d, event = dAbs, eventContinuum
		}

		p.Position = p.Position.Add(p.Direction.Mul(d))
		p.T += d / CLight
		if kappa > 0 {
			tauRemaining -= kappa * d
		}

		switch event {
		case eventTimeEnd:
			return
		case eventBoundary:
			p.LastFace = env.Grid.ChangeCell(p, crossing, p.T)
			if p.Kind != PacketGamma {
				return
			}
		case eventContinuum:
			cellIdx := env.Grid.Cells[p.CellIndex].ModelCellIndex
			env.Estimators.AddDeposition(cellIdx, p.ECMF)
			p.Kind = PacketKPkt
			return
		}
	}
}

// densityScale returns (t_min/t)^3, the homologous-expansion density
// dilution factor relative to the grid's reference density.
func densityScale(g *Grid, t Real) Real {
	f := g.TMin / t
	return f * f * f
}
