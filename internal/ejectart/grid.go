package ejectart

// CoordMode selects the propagation-grid geometry.
type CoordMode uint8

const (
	CoordCartesian3D CoordMode = iota
	CoordSpherical1D
)

// CellRef is a tagged reference to either an interior propagation cell
// or the escape sentinel, so escape never collides with a real index.
type CellRef struct {
	Escaped bool
	Index   int
}

// EscapeRef is the canonical escaped CellRef value.
var EscapeRef = CellRef{Escaped: true}

// CellOf returns an interior CellRef.
func CellOf(idx int) CellRef { return CellRef{Index: idx} }

// PropagationCell is one cell of the propagation grid. It stores its
// lower-corner coordinates at the reference time t_min and is linked to
// at most one ModelCell; multiple propagation cells may share a model
// cell, and a sentinel ModelCellIndex of -1 marks a fully-empty
// propagation cell.
type PropagationCell struct {
	// Lower corner at t_min. For CoordSpherical1D only X is used, as
	// the shell's inner radius; Y, Z are unused.
	CoordMin Point3
	CoordMax Point3

	ModelCellIndex int // -1 => empty/sentinel model cell

	// Neighbour indices, one per face in coordinate order
	// (-X,+X,-Y,+Y,-Z,+Z) for Cartesian, (inner, outer) for spherical
	// (only the first two slots used); EscapeRef.Index sentinel (-1)
	// with Escaped=true on the outermost boundary.
	Neighbours []CellRef
}

// Grid is the full propagation-cell lattice plus its homologous
// expansion reference time.
type Grid struct {
	Mode      CoordMode
	TMin      Real // reference time, seconds, at which CoordMin/CoordMax apply
	Cells     []PropagationCell
	ModelCells []*ModelCell

	// Cartesian-only: uniform cubic cell layout, needed to resolve the
	// neighbour along the direction of motion during diagnostic re-homing.
	Nx, Ny, Nz int
}

// ScaleFactor returns t/t_min, the homologous expansion factor at time
// t relative to the grid's reference time.
func (g *Grid) ScaleFactor(t Real) Real {
	return t / g.TMin
}

// BoundsAtTime returns a cell's current-time bounding box/shell radii,
// scaled homologously from the cell's t_min corners: a boundary that
// was at x at reference time t_min sits at x*(t/t_min).
func (g *Grid) BoundsAtTime(cellIdx int, t Real) (min, max Point3) {
	f := g.ScaleFactor(t)
	c := g.Cells[cellIdx]
	return Point3{c.CoordMin.X * f, c.CoordMin.Y * f, c.CoordMin.Z * f},
		Point3{c.CoordMax.X * f, c.CoordMax.Y * f, c.CoordMax.Z * f}
}

// WithinToleranceCartesian reports whether p lies inside the cell's
// current-time box to within the configured tolerance.
func (g *Grid) WithinToleranceCartesian(cellIdx int, p Point3, t Real) bool {
	min, max := g.BoundsAtTime(cellIdx, t)
	tol := BoundaryTolCM
	return p.X >= min.X-tol && p.X <= max.X+tol &&
		p.Y >= min.Y-tol && p.Y <= max.Y+tol &&
		p.Z >= min.Z-tol && p.Z <= max.Z+tol
}

// ModelCell is the physical state attached to one or more propagation
// cells.
type ModelCell struct {
	Index int

	// Composition at t_min.
	DensityTMin   Real // g/cm^3
	MassFractions map[int]Real // elementZ -> mass fraction

	// Per-ion state, indexed by a caller-assigned ion ordering matching
	// AtomicData.Ions.
	IonPopulation []Real // number density, cm^-3
	NLTELevelPop  [][]Real // [ionIdx][levelIdx], only when NLTE enabled

	ElectronDensity Real
	ElectronTemp    Real // K
	RadiationTemp   Real // K
	DilutionFactor  Real // dimensionless radiation dilution factor W
	GreyOpacity     bool

	// Multi-bin radiation-field descriptor consumed from the previous
	// timestep's estimators.
	BinMeanJ    []Real
	BinMeanNuJ  []Real
	BinNSamples []int64

	// Spencer-Fano solution artefacts, rebuilt every timestep and
	// discarded otherwise.
	NonThermal *NonThermalSolution
}

// NewModelCell allocates a model cell sized for nIons ions and nBins
// frequency bins.
func NewModelCell(index, nIons, nBins int) *ModelCell {
	return &ModelCell{
		Index:         index,
		MassFractions: make(map[int]Real),
		IonPopulation: make([]Real, nIons),
		BinMeanJ:      make([]Real, nBins),
		BinMeanNuJ:    make([]Real, nBins),
		BinNSamples:   make([]int64, nBins),
	}
}

// BuildGrid constructs a Grid and its backing ModelCells from a run's
// grid configuration: a uniform Nx*Ny*Nz cubic lattice for
// CoordCartesian3D, or NCellsRadial concentric shells for
// CoordSpherical1D, sized so that the outermost boundary sits at
// speed-of-light * TMin * some nominal maximum velocity fraction. Every
// propagation cell maps one-to-one onto a model cell (no empty cells)
// since the synthetic atomic model has no notion of an "outside the
// ejecta" vacuum region to special-case.
func BuildGrid(cfg GridCfg, outerVelocityFracC Real, nIons, nBins int) *Grid {
	tMin := cfg.TMinDays * 86400
	outerRadius := CLight * outerVelocityFracC * tMin

	g := &Grid{Mode: CoordCartesian3D, TMin: tMin}
	if cfg.Mode == "spherical1d" {
		g.Mode = CoordSpherical1D
	}

	switch g.Mode {
	case CoordSpherical1D:
		n := cfg.NCellsRadial
		if n < 1 {
			n = 1
		}
		g.Cells = make([]PropagationCell, n)
		g.ModelCells = make([]*ModelCell, n)
		for i := 0; i < n; i++ {
			rLo := outerRadius * Real(i) / Real(n)
			rHi := outerRadius * Real(i+1) / Real(n)
			neighbours := []CellRef{EscapeRef, EscapeRef}
			if i > 0 {
				neighbours[0] = CellOf(i - 1)
			}
			if i+1 < n {
				neighbours[1] = CellOf(i + 1)
			}
			g.Cells[i] = PropagationCell{
				CoordMin:       Point3{X: rLo},
				CoordMax:       Point3{X: rHi},
				ModelCellIndex: i,
				Neighbours:     neighbours,
			}
			g.ModelCells[i] = NewModelCell(i, nIons, nBins)
		}
	default:
		nx, ny, nz := cfg.Nx, cfg.Ny, cfg.Nz
		if nx < 1 {
			nx = 1
		}
		if ny < 1 {
			ny = 1
		}
		if nz < 1 {
			nz = 1
		}
		g.Nx, g.Ny, g.Nz = nx, ny, nz
		n := nx * ny * nz
		g.Cells = make([]PropagationCell, n)
		g.ModelCells = make([]*ModelCell, n)
		dx, dy, dz := 2*outerRadius/Real(nx), 2*outerRadius/Real(ny), 2*outerRadius/Real(nz)
		idx := func(ix, iy, iz int) int { return (ix*ny+iy)*nz + iz }
		for ix := 0; ix < nx; ix++ {
			for iy := 0; iy < ny; iy++ {
				for iz := 0; iz < nz; iz++ {
					i := idx(ix, iy, iz)
					lo := Point3{
						X: -outerRadius + Real(ix)*dx,
						Y: -outerRadius + Real(iy)*dy,
						Z: -outerRadius + Real(iz)*dz,
					}
					hi := lo.Add(Vector3{X: dx, Y: dy, Z: dz})
					neighbours := make([]CellRef, 6)
					neighbours[FaceXMin] = gridNeighbour(idx, ix-1, iy, iz, nx, ny, nz)
					neighbours[FaceXMax] = gridNeighbour(idx, ix+1, iy, iz, nx, ny, nz)
					neighbours[FaceYMin] = gridNeighbour(idx, ix, iy-1, iz, nx, ny, nz)
					neighbours[FaceYMax] = gridNeighbour(idx, ix, iy+1, iz, nx, ny, nz)
					neighbours[FaceZMin] = gridNeighbour(idx, ix, iy, iz-1, nx, ny, nz)
					neighbours[FaceZMax] = gridNeighbour(idx, ix, iy, iz+1, nx, ny, nz)
					g.Cells[i] = PropagationCell{CoordMin: lo, CoordMax: hi, ModelCellIndex: i, Neighbours: neighbours}
					g.ModelCells[i] = NewModelCell(i, nIons, nBins)
				}
			}
		}
	}
	return g
}

// gridNeighbour returns the CellRef for a Cartesian lattice neighbour,
// or EscapeRef if the requested index lies outside [0,n) on any axis.
func gridNeighbour(idx func(int, int, int) int, ix, iy, iz, nx, ny, nz int) CellRef {
	if ix < 0 || ix >= nx || iy < 0 || iy >= ny || iz < 0 || iz >= nz {
		return EscapeRef
	}
	return CellOf(idx(ix, iy, iz))
}
