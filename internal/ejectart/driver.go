package ejectart

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync"
)

// Run drives the full timestep loop for one simulated rank: seeds
// packets from decay pellets, propagates every packet in flight through
// a pool of worker goroutines, reduces each worker's estimators into
// the cell states, and solves the non-thermal spectrum once per cell
// before moving on to the next timestep.
type Run struct {
	Cfg    *Config
	Grid   *Grid
	Atomic *AtomicData
	Lines  *LineList

	NTGrid *NonThermalGrid

	// RadFieldNuEdges are the log-frequency bin edges every model
	// cell's BinMeanJ/BinMeanNuJ/BinNSamples are accumulated against.
	RadFieldNuEdges []Real

	Diagnostics *Diagnostics
}

// NewRun constructs the fixed, once-per-run state from a loaded config.
func NewRun(cfg *Config, grid *Grid, atomic *AtomicData) *Run {
	nBins := 0
	if len(grid.ModelCells) > 0 {
		nBins = len(grid.ModelCells[0].BinMeanJ)
	}
	var nuEdges []Real
	if nBins > 0 {
		nuEdges = NewLogNuBins(nBins, valueOr(cfg.SpectrumNuMin, 1e13), valueOr(cfg.SpectrumNuMax, 1e16))
	}
	return &Run{
		Cfg:             cfg,
		Grid:            grid,
		Atomic:          atomic,
		Lines:           NewLineList(atomic.Lines),
		NTGrid:          NewNonThermalGrid(cfg.NonThermalGridN, cfg.EMinEV, cfg.EMaxEV),
		RadFieldNuEdges: nuEdges,
		Diagnostics:     &Diagnostics{},
	}
}

// Timestep advances every packet in allPackets by one timestep (from
// tStart to tEnd), spreading them across r.Cfg.NumWorkers goroutines,
// then reduces the resulting per-worker estimators into a single
// EstimatorSet and solves the non-thermal spectrum for every model
// cell the reduced deposition estimator touched.
func (r *Run) Timestep(allPackets []Packet, tStart, tEnd Real) *EstimatorSet {
	workers := r.Cfg.NumWorkers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	nCells := len(r.Grid.ModelCells)
	nBins := 0
	if nCells > 0 {
		nBins = len(r.Grid.ModelCells[0].BinMeanJ)
	}
	nIons := len(r.Atomic.Ions)
	nLines := r.Lines.Len()

	perWorker := make([]*EstimatorSet, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	base, rem := len(allPackets)/workers, len(allPackets)%workers
	start := 0
	for w := 0; w < workers; w++ {
		n := base
		if w < rem {
			n++
		}
		lo, hi := start, start+n
		start = hi

		wid := w
		go func() {
			defer wg.Done()
			est := NewEstimatorSet(nCells, nBins, nIons, nLines)
			perWorker[wid] = est
			env := &PropagationEnv{
				Grid: r.Grid, Atomic: r.Atomic, Lines: r.Lines,
				Estimators: est, Opacity: NewOpacityCache(len(r.Grid.Cells)),
				Cooling:         NewCoolingCache(),
				CellHistory:     NewCellHistoryCache(),
				RadFieldNuEdges: r.RadFieldNuEdges,
			}
			rng := NewStream(r.Cfg.Seed, 0, wid)
			for i := lo; i < hi; i++ {
				r.propagateOne(rng, env, &allPackets[i], tEnd)
			}
		}()
	}
	wg.Wait()

	reduced := NewEstimatorSet(nCells, nBins, nIons, nLines)
	Reduce(reduced, perWorker...)

	for i, cell := range r.Grid.ModelCells {
		if i >= len(reduced.Cells) {
			break
		}
		rate := reduced.Cells[i].DepositionRateDensity
		if rate <= 0 {
			continue
		}
		if rate < DepositionFloorErgPerCm3PerS || len(r.Atomic.Ions) == 0 {
			cell.NonThermal = defaultNonThermalSolution(rate)
			continue
		}
		sol := SolveSpencerFano(r.NTGrid, r.Atomic, r.Lines, cell, rate)
		cell.NonThermal = sol
		if sol.ResidualNorm > NonThermalResidualWarn {
			r.Diagnostics.AddHighResidual(i)
		}
	}

	DebugLog("timestep %.3g -> %.3g: %d packets across %d workers", tStart, tEnd, len(allPackets), workers)
	return reduced
}

// propagateOne dispatches a single packet to the propagation kernel
// matching its current kind, looping it through r-packet/k-packet/
// macro-atom transitions until it escapes, carries over to the next
// timestep, or is fully absorbed.
func (r *Run) propagateOne(rng *rand.Rand, env *PropagationEnv, p *Packet, tEnd Real) {
	for {
		switch p.Kind {
		case PacketRPkt:
			PropagateRPacket(rng, env, p, tEnd)
			if p.Kind == PacketRPkt {
				return // carried over to next timestep, or escaped (grid already marked it)
			}
		case PacketGamma:
			PropagateGammaPacket(rng, env, p, tEnd)
			if p.Kind == PacketGamma {
				return
			}
		case PacketKPkt:
			if !r.resolveKPacket(rng, env, p) {
				return
			}
		case PacketEscaped:
			return
		default:
			return
		}
	}
}

// resolveKPacket samples a cell's cooling list for one k-packet and
// applies the outcome: pure heating or collisional ionisation both
// terminate the packet (its energy is now part of the thermal/
// ionisation budget, not a propagating packet), while collisional
// excitation promotes it to a macro atom that is run to its own exit.
// Returns false when the packet's energy has left the propagating
// population entirely.
func (r *Run) resolveKPacket(rng *rand.Rand, env *PropagationEnv, p *Packet) bool {
	modelIdx := env.Grid.Cells[p.CellIndex].ModelCellIndex
	cell := env.Grid.ModelCells[modelIdx]
	cl := env.Cooling.Get(p.CellIndex, func() *CoolingList { return BuildCoolingList(env.Atomic, env.Lines, cell) })
	outcome := RunKPacket(rng, cl)

	switch outcome.Kind {
	case CoolingHeating:
		env.Estimators.AddDeposition(modelIdx, p.ECMF)
		p.Kind = PacketAbsorbed
		return false
	case CoolingIonisation:
		env.Estimators.AddIonisation(modelIdx, outcome.IonIndex, p.ECMF)
		p.Kind = PacketAbsorbed
		return false
	case CoolingExcitation:
		history := cellHistoryFor(env, modelIdx, cell)
		kPacketRateFor := func(ionIndex, level int) Real { return kPacketRateForLevel(env, cell, ionIndex, level) }
		maOutcome := RunMacroAtom(rng, env.Atomic, env.Lines, cell, history, outcome.IonIndex, outcome.Level, kPacketRateFor)
		switch maOutcome.Kind {
		case MAOutcomeLineDecay:
			emitLine(env, p, maOutcome.LineIndex, rng)
		case MAOutcomeRecombEmission:
			emitRecombination(env, p, maOutcome.EdgeNu, rng)
		default:
			p.Kind = PacketKPkt
		}
		return true
	default:
		return false
	}
}

// ReduceRanks combines per-rank estimator sets into a single run-wide
// total, the in-process stand-in for an MPI Allreduce across ranks:
// each simulated rank already produced its own reduced EstimatorSet via
// Timestep, so this step is the second, coarser reduction tying ranks
// together.
func ReduceRanks(sets ...*EstimatorSet) *EstimatorSet {
	if len(sets) == 0 {
		return nil
	}
	nCells := len(sets[0].Cells)
	nBins := len(sets[0].Cells[0].BinJSum)
	nIons := len(sets[0].Cells[0].IonIonisationSum)
	nLines := len(sets[0].Cells[0].LineSum)
	dst := NewEstimatorSet(nCells, nBins, nIons, nLines)
	Reduce(dst, sets...)
	return dst
}

// SimulateRanks fans a run's worth of packets out across NumRanks
// simulated MPI ranks, each processing its own packet slice through
// Run.Timestep, then reduces across ranks. Real inter-process
// communication is out of scope; this reproduces the
// partition-then-reduce data flow within a single process so the
// estimator semantics are identical whether NumRanks is 1 or many.
func SimulateRanks(r *Run, allPackets []Packet, tStart, tEnd Real) (*EstimatorSet, error) {
	ranks := r.Cfg.NumRanks
	if ranks < 1 {
		return nil, &ConfigError{Field: "numRanks", Msg: "must be positive"}
	}
	if ranks == 1 {
		return r.Timestep(allPackets, tStart, tEnd), nil
	}

	base, rem := len(allPackets)/ranks, len(allPackets)%ranks
	perRank := make([]*EstimatorSet, ranks)
	start := 0
	for i := 0; i < ranks; i++ {
		n := base
		if i < rem {
			n++
		}
		perRank[i] = r.Timestep(allPackets[start:start+n], tStart, tEnd)
		start += n
	}
	return ReduceRanks(perRank...), nil
}

// RunSimulation loads a run's configuration, builds its grid and
// atomic model, then advances NumTimesteps timesteps of NumPackets
// freshly-seeded r-packets each, writing the accumulated spectrum to
// spectrumOut when done.
func RunSimulation(cfgPath, spectrumOut string) error {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	atomic, err := cfg.BuildAtomicData()
	if err != nil {
		return err
	}
	grid := BuildGrid(cfg.Grid, 0.3, len(atomic.Ions), cfg.SpectrumNuBins)
	run := NewRun(cfg, grid, atomic)

	bins := &SpectrumBins{
		TimeEdges: []Real{0, Real(cfg.NumTimesteps) * 86400},
		NuEdges:   NewLogNuBins(cfg.SpectrumNuBins, valueOr(cfg.SpectrumNuMin, 1e13), valueOr(cfg.SpectrumNuMax, 1e16)),
		NDirBins:  cfg.SpectrumDirBins,
	}
	spectrum := NewSpectrumAccumulator(bins, atomic, cfg.SpectrumDRefCm, cfg.NumPackets*cfg.NumTimesteps)

	rng := NewStream(cfg.Seed, 0, 0)
	tMin := cfg.Grid.TMinDays * 86400
	dt := tMin // first timestep duration, widened by a fixed factor each step
	t := tMin

	for step := 0; step < cfg.NumTimesteps; step++ {
		packets := seedPackets(rng, grid, cfg.NumPackets, t)
		run.Timestep(packets, t, t+dt)
		for i := range packets {
			if packets[i].Kind == PacketEscaped {
				spectrum.AddEscapedPacket(&packets[i], run.Lines)
			}
		}
		t += dt
		dt *= 1.2
	}

	f, err := os.Create(spectrumOut)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := spectrum.WriteTable(f); err != nil {
		return err
	}

	ionsFile, err := os.Create(spectrumOut + ".ions")
	if err != nil {
		return err
	}
	defer ionsFile.Close()
	if err := spectrum.WriteIonTable(ionsFile); err != nil {
		return err
	}

	DebugLog("run complete: %s", FormatDiagnostics(run.Diagnostics))
	return nil
}

func valueOr(v, fallback Real) Real {
	if v <= 0 {
		return fallback
	}
	return v
}

// seedPackets creates a uniform-in-volume population of r-packets at
// time t, standing in for a proper energy-weighted Monte Carlo source
// sampling pass across decay pellets: every model cell gets an equal
// share, isotropic direction, unit comoving energy.
func seedPackets(rng *rand.Rand, g *Grid, n int, t Real) []Packet {
	packets := make([]Packet, n)
	nCells := len(g.Cells)
	for i := range packets {
		cellIdx := i % nCells
		min, max := g.BoundsAtTime(cellIdx, t)
		pos := Point3{
			X: min.X + (max.X-min.X)*rng.Float64(),
			Y: min.Y + (max.Y-min.Y)*rng.Float64(),
			Z: min.Z + (max.Z-min.Z)*rng.Float64(),
		}
		dir := isotropicDirection(rng)
		packets[i] = Packet{
			Kind: PacketRPkt, CellIndex: cellIdx, LastFace: FaceNone,
			Position: pos, Direction: dir, T: t,
			NuCMF: 5e14, ECMF: 1, Stokes: NewUnpolarised(1, dir),
			EmissionType: -1, AbsorptionType: -1,
		}
	}
	return packets
}

// FormatDiagnostics renders a run's accumulated Diagnostics as a short
// human-readable report for end-of-timestep logging.
func FormatDiagnostics(d *Diagnostics) string {
	if d.Empty() {
		return "no warnings"
	}
	return fmt.Sprintf("%d clamped values, %d cells with high non-thermal residual", len(d.Clamps), len(d.HighResidual))
}
