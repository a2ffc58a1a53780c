package ejectart

import "sync"

// estimatorLocks shards a fixed number of mutexes across model-cell
// indices, so that concurrent estimator accumulation from many packets
// rarely contends on the same lock.
type estimatorLocks struct{ mu [NumEstimatorShards]sync.Mutex }

func (sl *estimatorLocks) lock(cellIdx int)   { sl.mu[cellIdx&(NumEstimatorShards-1)].Lock() }
func (sl *estimatorLocks) unlock(cellIdx int) { sl.mu[cellIdx&(NumEstimatorShards-1)].Unlock() }

// CellEstimators accumulates the Monte Carlo sums a model cell collects
// during one timestep: radiation-field moments, per-ion
// ionisation/heating contributions, per-line radiation estimators, and
// the non-thermal deposition rate density feeding the Spencer-Fano
// solver. All fields are write-accumulated by many packets concurrently
// then read-and-zeroed once at grid update.
type CellEstimators struct {
	// Radiation field moments, accumulated as distance * e_cmf:
	// J-estimator (mean intensity) and nuJ-estimator (mean nu*J).
	JSum   Real
	NuJSum Real
	NSamples int64

	// Per-frequency-bin moments for the multi-bin radiation field
	// descriptor carried on each model cell.
	BinJSum     []Real
	BinNuJSum   []Real
	BinNSamples []int64

	// Per-ion estimators (index matches AtomicData ion ordering).
	IonIonisationSum []Real
	IonHeatingSum    []Real

	// Per-line radiation estimator contribution: distance * e_cmf / nu_cmf,
	// summed per line index, for detailed-line diagnostics.
	LineSum []Real

	// Non-thermal deposition rate density (erg / cm^3 / s), accumulated
	// from gamma-packet absorption and positron/Compton-electron energy
	// loss.
	DepositionRateDensity Real

	// Cell-crossing counter, incremented each time a packet changes cell.
	CellCrossings int64
}

// NewCellEstimators allocates per-bin slices sized to nBins frequency
// bins and nIons ions.
func NewCellEstimators(nBins, nIons, nLines int) *CellEstimators {
	return &CellEstimators{
		BinJSum:          make([]Real, nBins),
		BinNuJSum:        make([]Real, nBins),
		BinNSamples:      make([]int64, nBins),
		IonIonisationSum: make([]Real, nIons),
		IonHeatingSum:    make([]Real, nIons),
		LineSum:          make([]Real, nLines),
	}
}

// Zero resets all accumulators to zero, as happens at the start of
// every timestep's propagation phase.
func (e *CellEstimators) Zero() {
	e.JSum, e.NuJSum, e.NSamples = 0, 0, 0
	for i := range e.BinJSum {
		e.BinJSum[i], e.BinNuJSum[i], e.BinNSamples[i] = 0, 0, 0
	}
	for i := range e.IonIonisationSum {
		e.IonIonisationSum[i] = 0
		e.IonHeatingSum[i] = 0
	}
	for i := range e.LineSum {
		e.LineSum[i] = 0
	}
	e.DepositionRateDensity = 0
	e.CellCrossings = 0
}

// EstimatorSet owns one CellEstimators per model cell plus the sharded
// locks guarding concurrent accumulation.
type EstimatorSet struct {
	locks *estimatorLocks
	Cells []*CellEstimators
}

// NewEstimatorSet allocates one CellEstimators per model cell.
func NewEstimatorSet(nCells, nBins, nIons, nLines int) *EstimatorSet {
	es := &EstimatorSet{locks: &estimatorLocks{}, Cells: make([]*CellEstimators, nCells)}
	for i := range es.Cells {
		es.Cells[i] = NewCellEstimators(nBins, nIons, nLines)
	}
	return es
}

// AddRadiationField accumulates a packet's path-segment contribution
// to the J and nuJ estimators of model cell cellIdx, and to the
// frequency bin binIdx within it. distance is the path length (rest
// frame), eCMF/nuCMF the comoving energy/frequency at the segment.
func (es *EstimatorSet) AddRadiationField(cellIdx, binIdx int, distance, eCMF, nuCMF Real) {
	contrib := distance * eCMF
	if UseLocks {
		es.locks.lock(cellIdx)
		defer es.locks.unlock(cellIdx)
	}
	c := es.Cells[cellIdx]
	c.JSum += contrib
	c.NuJSum += contrib * nuCMF
	c.NSamples++
	if binIdx >= 0 && binIdx < len(c.BinJSum) {
		c.BinJSum[binIdx] += contrib
		c.BinNuJSum[binIdx] += contrib * nuCMF
		c.BinNSamples[binIdx]++
	}
}

// AddLineEstimator accumulates a packet's contribution to a specific
// line's radiation estimator: distance * e_cmf / nu_cmf.
func (es *EstimatorSet) AddLineEstimator(cellIdx, lineIdx int, distance, eCMF, nuCMF Real) {
	if lineIdx < 0 || nuCMF <= 0 {
		return
	}
	contrib := distance * eCMF / nuCMF
	if UseLocks {
		es.locks.lock(cellIdx)
		defer es.locks.unlock(cellIdx)
	}
	c := es.Cells[cellIdx]
	if lineIdx < len(c.LineSum) {
		c.LineSum[lineIdx] += contrib
	}
}

// AddIonisation accumulates one ion's share of collisional/radiative
// ionisation energy into a model cell's per-ion estimator.
func (es *EstimatorSet) AddIonisation(cellIdx, ionIdx int, energy Real) {
	if ionIdx < 0 {
		return
	}
	if UseLocks {
		es.locks.lock(cellIdx)
		defer es.locks.unlock(cellIdx)
	}
	c := es.Cells[cellIdx]
	if ionIdx < len(c.IonIonisationSum) {
		c.IonIonisationSum[ionIdx] += energy
	}
}

// AddDeposition accumulates non-thermal deposition rate density into
// a model cell, from gamma absorption or positron thermalisation.
func (es *EstimatorSet) AddDeposition(cellIdx int, rateDensity Real) {
	if UseLocks {
		es.locks.lock(cellIdx)
		defer es.locks.unlock(cellIdx)
	}
	es.Cells[cellIdx].DepositionRateDensity += rateDensity
}

// IncrCellCrossing increments the cell-crossing counter.
func (es *EstimatorSet) IncrCellCrossing(cellIdx int) {
	if UseLocks {
		es.locks.lock(cellIdx)
		defer es.locks.unlock(cellIdx)
	}
	es.Cells[cellIdx].CellCrossings++
}

// ZeroAll resets every cell's estimators, called at the start of each
// timestep's propagation phase.
func (es *EstimatorSet) ZeroAll() {
	for _, c := range es.Cells {
		c.Zero()
	}
}

// Reduce sums estimators across multiple rank-local estimator sets into
// dst, element-wise. Commutative, so the order ranks appear in src does
// not matter.
func Reduce(dst *EstimatorSet, src ...*EstimatorSet) {
	for _, s := range src {
		for i, c := range s.Cells {
			d := dst.Cells[i]
			d.JSum += c.JSum
			d.NuJSum += c.NuJSum
			d.NSamples += c.NSamples
			for b := range c.BinJSum {
				d.BinJSum[b] += c.BinJSum[b]
				d.BinNuJSum[b] += c.BinNuJSum[b]
				d.BinNSamples[b] += c.BinNSamples[b]
			}
			for ion := range c.IonIonisationSum {
				d.IonIonisationSum[ion] += c.IonIonisationSum[ion]
				d.IonHeatingSum[ion] += c.IonHeatingSum[ion]
			}
			for l := range c.LineSum {
				d.LineSum[l] += c.LineSum[l]
			}
			d.DepositionRateDensity += c.DepositionRateDensity
			d.CellCrossings += c.CellCrossings
		}
	}
}
