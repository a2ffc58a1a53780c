package ejectart

import "math"

// Face identifies which cell face a boundary crossing happened on, in
// the neighbour-index order used by PropagationCell.Neighbours.
type Face int

const (
	FaceNone Face = -1
	FaceXMin Face = 0
	FaceXMax Face = 1
	FaceYMin Face = 2
	FaceYMax Face = 3
	FaceZMin Face = 4
	FaceZMax Face = 5
	// Spherical: reuse XMin/XMax as inner/outer shell.
	FaceInner Face = FaceXMin
	FaceOuter Face = FaceXMax
)

// BoundaryCrossing is the result of a boundary-distance query: a path
// length and the neighbour the packet would enter, or the escape
// sentinel if the outermost boundary is crossed.
type BoundaryCrossing struct {
	Distance Real
	Next     CellRef
	Face     Face
}

// DistanceToBoundary returns the path length from pos (rest frame, at
// time t) along unit direction dir to the nearest cell boundary,
// together with the neighbour cell (or escape). lastFace is the face
// most recently crossed, numbered as a face of cellIdx (as ChangeCell
// returns it), excluded from consideration to avoid re-crossing the
// same face from rounding error.
func (g *Grid) DistanceToBoundary(cellIdx int, pos Point3, dir Vector3, t Real, lastFace Face) BoundaryCrossing {
	switch g.Mode {
	case CoordSpherical1D:
		return g.distanceToBoundarySpherical(cellIdx, pos, dir, t, lastFace)
	default:
		return g.distanceToBoundaryCartesian(cellIdx, pos, dir, t, lastFace)
	}
}

// distanceToBoundaryCartesian handles the Cartesian grid case: for each
// of the six faces, the current-frame position of that face is
// coord_bound_d*(t/t_min); solving pos_d + dir_d*c*dt = that linear
// expression for dt gives a single linear equation per face.
func (g *Grid) distanceToBoundaryCartesian(cellIdx int, pos Point3, dir Vector3, t Real, lastFace Face) BoundaryCrossing {
	cell := g.Cells[cellIdx]
	type cand struct {
		face  Face
		bound Real // coord bound at t_min
		posD  Real
		dirD  Real
	}
	cands := []cand{
		{FaceXMin, cell.CoordMin.X, pos.X, dir.X},
		{FaceXMax, cell.CoordMax.X, pos.X, dir.X},
		{FaceYMin, cell.CoordMin.Y, pos.Y, dir.Y},
		{FaceYMax, cell.CoordMax.Y, pos.Y, dir.Y},
		{FaceZMin, cell.CoordMin.Z, pos.Z, dir.Z},
		{FaceZMax, cell.CoordMax.Z, pos.Z, dir.Z},
	}

	best := BoundaryCrossing{Distance: math.Inf(1), Face: FaceNone}
	for _, c := range cands {
		if c.face == lastFace {
			continue
		}
		rate := c.bound / g.TMin // boundary's radial/linear expansion rate
		denom := c.dirD*CLight - rate
		if denom == 0 {
			continue
		}
		dt := (rate*t - c.posD) / denom
		if dt <= 0 {
			continue // backward or non-forward
		}
		dist := CLight * dt
		if dist < best.Distance {
			best.Distance = dist
			best.Face = c.face
		}
	}
	if best.Face == FaceNone {
		panic("ejectart: distance_to_boundary found no forward Cartesian face")
	}
	best.Next = g.resolveNeighbour(cellIdx, best.Face)
	return best
}

// distanceToBoundarySpherical handles the spherical-shell grid case:
// solve the quadratic for intersection with each of the two bounding
// shells at time t+d/c, taking the inner shell only if inward-moving
// and the outer only if outward-moving.
func (g *Grid) distanceToBoundarySpherical(cellIdx int, pos Point3, dir Vector3, t Real, lastFace Face) BoundaryCrossing {
	cell := g.Cells[cellIdx]
	rInnerT0 := cell.CoordMin.X // stored as radius at t_min
	rOuterT0 := cell.CoordMax.X

	pDotP := pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z
	pDotD := pos.X*dir.X + pos.Y*dir.Y + pos.Z*dir.Z

	dOuter := sphereShellDistance(pDotP, pDotD, rOuterT0, g.TMin, t, true)
	dInner := Real(-1)
	if rInnerT0 > 0 {
		dInner = sphereShellDistance(pDotP, pDotD, rInnerT0, g.TMin, t, false)
	}

	var best BoundaryCrossing
	switch {
	case dInner > 0 && (dOuter <= 0 || dInner < dOuter):
		if lastFace == FaceInner {
			best = BoundaryCrossing{Distance: dOuter, Face: FaceOuter}
		} else {
			best = BoundaryCrossing{Distance: dInner, Face: FaceInner}
		}
	case dOuter > 0:
		if lastFace == FaceOuter {
			panic("ejectart: distance_to_boundary found no forward spherical shell")
		}
		best = BoundaryCrossing{Distance: dOuter, Face: FaceOuter}
	default:
		panic("ejectart: distance_to_boundary found no forward spherical shell")
	}
	best.Next = g.resolveNeighbour(cellIdx, best.Face)
	return best
}

// sphereShellDistance solves the quadratic for intersection with a
// shell of radius R0 (measured at t_min), only accepting roots
// consistent with the requested direction (outward vs inward). Returns
// -1 if there is no valid forward crossing (discriminant <= 0, or both
// roots reject by direction/sign).
func sphereShellDistance(pDotP, pDotD, R0, tMin, t Real, outward bool) Real {
	f := R0 / (tMin * CLight)
	r0 := R0 * t / tMin // shell radius at the packet's current time

	a := 1 - f*f
	b := 2 * (pDotD - r0*f)
	c := pDotP - r0*r0

	if math.Abs(a) < 1e-300 {
		if b == 0 {
			return -1
		}
		s := -c / b
		if s > 0 && shellDirectionOK(pDotD, outward) {
			return s
		}
		return -1
	}

	disc := b*b - 4*a*c
	if disc <= 0 {
		return -1
	}
	sq := math.Sqrt(disc)
	s1 := (-b - sq) / (2 * a)
	s2 := (-b + sq) / (2 * a)
	if s1 > s2 {
		s1, s2 = s2, s1
	}
	if s1 > 1e-9 && shellDirectionOK(pDotD, outward) {
		return s1
	}
	if s2 > 1e-9 && shellDirectionOK(pDotD, outward) {
		return s2
	}
	return -1
}

// shellDirectionOK accepts the inner shell only when inward-moving;
// any forward-in-distance outer shell crossing is accepted as-is.
func shellDirectionOK(pDotD Real, outward bool) bool {
	if outward {
		return true
	}
	return pDotD < 1e-9
}

// resolveNeighbour returns the neighbour CellRef recorded for a face,
// or EscapeRef if the face is the outermost grid boundary.
func (g *Grid) resolveNeighbour(cellIdx int, face Face) CellRef {
	cell := g.Cells[cellIdx]
	if int(face) < len(cell.Neighbours) {
		return cell.Neighbours[face]
	}
	return EscapeRef
}

// ChangeCell applies the result of a boundary crossing to a packet's
// cell-tracking state: either marks the packet escaped, or moves it to
// the neighbour and resets the last-crossed-face marker. Returns the
// new last-crossed face, numbered as a face of the cell just entered
// (or FaceNone on escape).
func (g *Grid) ChangeCell(p *Packet, crossing BoundaryCrossing, now Real) Face {
	if crossing.Next.Escaped {
		p.LastTypeBeforeEscape = p.Kind
		p.Kind = PacketEscaped
		p.EscapeTime = now
		p.ToRestFrame()
		return FaceNone
	}
	p.CellIndex = crossing.Next.Index
	// Faces pair up as (min, max) = (2k, 2k+1): the plane crossed through
	// the old cell's face f is the new cell's face f^1.
	return crossing.Face ^ 1
}
