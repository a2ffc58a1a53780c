package ejectart

import "math"

// CellHistory is the set of "hot" derived quantities macro-atom
// channel building needs for whichever model cell a thread is
// currently visiting: level-resolved radiative de-excitation rates,
// internal collisional down/up rates on the same ion, and
// photoionisation departure ratios against the ion above. Indexed
// [ionIndex][level], sized to each ion's level count.
type CellHistory struct {
	DeexcitationRate  [][]Real
	InternalDownRate  [][]Real
	InternalUpRate    [][]Real
	PhotoionDeparture [][]Real
}

// BuildCellHistory computes one model cell's CellHistory from its
// current thermal/ionisation state. Radiative de-excitation sums, for
// each level, the Aji of every line whose upper level it is; internal collisional rates use the
// same fixed collisional rate coefficient as the cooling list, with
// the upward rate fixed to the downward rate by detailed balance;
// photoionisation departure ratios compare the ion-above's actual
// ground-state population to the value the Saha equation would imply
// from this level's population alone.
func BuildCellHistory(a *AtomicData, lines *LineList, cell *ModelCell) *CellHistory {
	nIons := len(a.Ions)
	h := &CellHistory{
		DeexcitationRate:  make([][]Real, nIons),
		InternalDownRate:  make([][]Real, nIons),
		InternalUpRate:    make([][]Real, nIons),
		PhotoionDeparture: make([][]Real, nIons),
	}
	for i, ion := range a.Ions {
		n := len(ion.Levels)
		h.DeexcitationRate[i] = make([]Real, n)
		h.InternalDownRate[i] = make([]Real, n)
		h.InternalUpRate[i] = make([]Real, n)
		h.PhotoionDeparture[i] = make([]Real, n)
	}
	for li := 0; li < lines.Len(); li++ {
		ln := lines.At(li)
		if ln.IonIndex < nIons && ln.Upper < len(h.DeexcitationRate[ln.IonIndex]) {
			h.DeexcitationRate[ln.IonIndex][ln.Upper] += ln.Aji
		}
	}
	for i, ion := range a.Ions {
		for lv := range ion.Levels {
			h.PhotoionDeparture[i][lv] = photoionDepartureRatio(a, cell, i, lv)
			if lv == 0 || cell.ElectronTemp <= 0 {
				continue
			}
			n := levelPopulation(cell, i, lv)
			if n <= 0 {
				continue
			}
			down := n * cell.ElectronDensity * collisionRateCoeff
			h.InternalDownRate[i][lv] = down
			gLow, gUp := ion.Levels[lv-1].StatWeight, ion.Levels[lv].StatWeight
			if gUp <= 0 {
				continue
			}
			dE := ion.Levels[lv].EnergyErg - ion.Levels[lv-1].EnergyErg
			boltz := gLow / gUp * math.Exp(-dE/(KBoltzmann*cell.ElectronTemp))
			h.InternalUpRate[i][lv-1] = down * boltz
		}
	}
	return h
}

// CellHistoryCache memoises one worker's CellHistory per model cell
// across the many packets it processes within a timestep, the same
// no-lock per-worker idiom CoolingCache uses: the history depends only
// on the cell's frozen-for-the-timestep thermal/ionisation state, so
// per-worker ownership avoids contention without risking staleness.
type CellHistoryCache struct {
	byCellIndex map[int]*CellHistory
}

// NewCellHistoryCache allocates an empty per-worker cache.
func NewCellHistoryCache() *CellHistoryCache {
	return &CellHistoryCache{byCellIndex: make(map[int]*CellHistory)}
}

// Get returns the cached history for a model cell, building it with
// build if absent.
func (c *CellHistoryCache) Get(cellIndex int, build func() *CellHistory) *CellHistory {
	if h, ok := c.byCellIndex[cellIndex]; ok {
		return h
	}
	h := build()
	c.byCellIndex[cellIndex] = h
	return h
}

// Reset discards all cached histories, called at the start of each
// timestep once cell states have been updated.
func (c *CellHistoryCache) Reset() {
	c.byCellIndex = make(map[int]*CellHistory)
}
