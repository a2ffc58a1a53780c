package ejectart

// CoolingContribution is one channel competing for a cell's non-thermal
// electron energy: collisional heating, an ionisation edge, or a
// collisional excitation transition.
type CoolingContribution struct {
	Kind     CoolingKind
	IonIndex int
	Level    int // ionising level, or the upper level of an excitation; unused for heating
	RateErgPerCm3PerS Real
}

// CoolingKind distinguishes the three non-thermal deposition channels
// used throughout the Spencer-Fano accounting.
type CoolingKind uint8

const (
	CoolingHeating CoolingKind = iota
	CoolingIonisation
	CoolingExcitation
)

// CoolingList is the cumulative-summed set of cooling channels for one
// model cell at one timestep, kept in the order they were built, and
// used by the macro-atom's k-packet channel sampler.
type CoolingList struct {
	entries  []CoolingContribution
	cumulative []Real
	total    Real
}

// NewCoolingList builds a cooling list from unsorted contributions,
// precomputing the cumulative-rate table used for probability-weighted
// channel sampling.
func NewCoolingList(entries []CoolingContribution) *CoolingList {
	cl := &CoolingList{entries: entries, cumulative: make([]Real, len(entries))}
	var sum Real
	for i, e := range entries {
		sum += e.RateErgPerCm3PerS
		cl.cumulative[i] = sum
	}
	cl.total = sum
	return cl
}

// Total returns the summed cooling rate across all channels.
func (cl *CoolingList) Total() Real { return cl.total }

// Sample picks a channel with probability proportional to its rate,
// given a uniform random draw u in [0,1).
func (cl *CoolingList) Sample(u Real) CoolingContribution {
	if cl.total <= 0 || len(cl.entries) == 0 {
		return CoolingContribution{Kind: CoolingHeating}
	}
	target := u * cl.total
	lo, hi := 0, len(cl.cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cl.cumulative[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return cl.entries[lo]
}

// collisionRateCoeff is a fixed collisional rate coefficient standing
// in for a real Maxwellian-averaged collision strength, cm^3/s.
const collisionRateCoeff = 1e-10

// BuildCoolingList assembles one model cell's cooling channels: a
// single heating term from free electrons relaxing against the
// radiation field, one ionisation channel per level with a
// photoionisation table, and one excitation channel per line; each
// ionisation and excitation rate is scaled by the (lower) level
// population and the electron density.
func BuildCoolingList(a *AtomicData, lines *LineList, cell *ModelCell) *CoolingList {
	var entries []CoolingContribution
	if cell.ElectronDensity > 0 {
		entries = append(entries, CoolingContribution{
			Kind:              CoolingHeating,
			RateErgPerCm3PerS: cell.ElectronDensity * collisionRateCoeff * KBoltzmann * cell.ElectronTemp,
		})
	}
	for key := range a.Photoion {
		n := levelPopulation(cell, key.IonIndex, key.Level)
		if n <= 0 {
			continue
		}
		ion := a.Ions[key.IonIndex]
		rate := n * cell.ElectronDensity * collisionRateCoeff * ion.IonPotEV * EV
		entries = append(entries, CoolingContribution{
			Kind: CoolingIonisation, IonIndex: key.IonIndex, Level: key.Level,
			RateErgPerCm3PerS: rate,
		})
	}
	for i := 0; i < lines.Len(); i++ {
		ln := lines.At(i)
		n := levelPopulation(cell, ln.IonIndex, ln.Lower)
		if n <= 0 {
			continue
		}
		dE := HPlanck * ln.NuTMin
		rate := n * cell.ElectronDensity * collisionRateCoeff * dE
		entries = append(entries, CoolingContribution{
			Kind: CoolingExcitation, IonIndex: ln.IonIndex, Level: ln.Upper,
			RateErgPerCm3PerS: rate,
		})
	}
	return NewCoolingList(entries)
}

// CoolingCache memoises one model cell's CoolingList across the many
// packets a single worker goroutine processes for it within a
// timestep. Each worker owns its own cache (no locking): the cooling
// list depends only on the cell's thermal/ionisation state, which is
// frozen for the duration of the propagation phase, so staleness across
// workers is not a concern and per-worker ownership avoids contention.
type CoolingCache struct {
	byCellIndex map[int]*CoolingList
}

// NewCoolingCache allocates an empty per-worker cache.
func NewCoolingCache() *CoolingCache {
	return &CoolingCache{byCellIndex: make(map[int]*CoolingList)}
}

// Get returns the cached list for a model cell, building it with build
// if absent.
func (c *CoolingCache) Get(cellIndex int, build func() *CoolingList) *CoolingList {
	if cl, ok := c.byCellIndex[cellIndex]; ok {
		return cl
	}
	cl := build()
	c.byCellIndex[cellIndex] = cl
	return cl
}

// Reset discards all cached lists, called at the start of each
// timestep once cell states have been updated.
func (c *CoolingCache) Reset() {
	c.byCellIndex = make(map[int]*CoolingList)
}
