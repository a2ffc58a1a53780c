package ejectart

import "sync"

// opacityCacheEntry remembers the last continuum opacity evaluated for
// a cell, and the frequency it was evaluated at.
type opacityCacheEntry struct {
	nu    Real
	kappa Real
	valid bool
}

// OpacityCache memoises per-cell continuum opacity across the many
// packets that cross a cell in close frequency succession within one
// timestep, recomputing only when the frequency has drifted beyond
// OpacityCacheRelTol since the last evaluation.
type OpacityCache struct {
	mu      sync.Mutex
	entries []opacityCacheEntry
}

// NewOpacityCache allocates a cache sized to the grid's cell count.
func NewOpacityCache(nCells int) *OpacityCache {
	return &OpacityCache{entries: make([]opacityCacheEntry, nCells)}
}

// CellOpacityHandle is a scoped lease on one cell's cache entry,
// acquired for the duration of a single propagation step so the caller
// never races another goroutine's update to the same cell.
type CellOpacityHandle struct {
	cache   *OpacityCache
	cellIdx int
}

// Acquire leases the cache entry for a cell. The caller must call
// Release when done with it.
func (c *OpacityCache) Acquire(cellIdx int) *CellOpacityHandle {
	c.mu.Lock()
	return &CellOpacityHandle{cache: c, cellIdx: cellIdx}
}

// Release ends the lease, unlocking the cache for other goroutines.
func (h *CellOpacityHandle) Release() {
	h.cache.mu.Unlock()
}

// Lookup returns the cached opacity if the frequency has not drifted
// past OpacityCacheRelTol since the last evaluation, otherwise it calls
// compute, stores, and returns the fresh value.
func (h *CellOpacityHandle) Lookup(nu Real, compute func(Real) Real) Real {
	e := &h.cache.entries[h.cellIdx]
	if e.valid && relClose(e.nu, nu, OpacityCacheRelTol) {
		return e.kappa
	}
	kappa := compute(nu)
	e.nu, e.kappa, e.valid = nu, kappa, true
	return kappa
}

// Invalidate forces the next Lookup for a cell to recompute, called
// after a timestep's thermal/ionisation state update.
func (c *OpacityCache) Invalidate(cellIdx int) {
	c.mu.Lock()
	c.entries[cellIdx].valid = false
	c.mu.Unlock()
}

// InvalidateAll forces every cell's next Lookup to recompute.
func (c *OpacityCache) InvalidateAll() {
	c.mu.Lock()
	for i := range c.entries {
		c.entries[i].valid = false
	}
	c.mu.Unlock()
}
