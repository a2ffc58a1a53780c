package ejectart

import (
	"math"
	"testing"
)

func cartesianTestGrid() *Grid {
	return BuildGrid(GridCfg{Mode: "cartesian3d", Nx: 2, Ny: 2, Nz: 2, TMinDays: 1}, 0.3, 1, 1)
}

func TestDistanceToBoundaryCartesianOutward(t *testing.T) {
	g := cartesianTestGrid()
	// Cell 0 is the lattice's -X,-Y,-Z corner cell; fire straight +X.
	cellIdx := 0
	pos, _ := g.BoundsAtTime(cellIdx, g.TMin)
	crossing := g.DistanceToBoundary(cellIdx, pos.Add(Vector3{X: 1e-3}), Vector3{X: 1}, g.TMin, FaceNone)
	if crossing.Distance <= 0 || math.IsInf(float64(crossing.Distance), 1) {
		t.Fatalf("expected a finite positive forward distance, got %g", crossing.Distance)
	}
	if crossing.Face != FaceXMax {
		t.Fatalf("expected to cross +X face, got face %d", crossing.Face)
	}
}

func TestChangeCellEscapeRecordsPriorKind(t *testing.T) {
	g := cartesianTestGrid()
	p := &Packet{Kind: PacketRPkt, CellIndex: 0}
	crossing := BoundaryCrossing{Next: EscapeRef, Face: FaceXMax}
	g.ChangeCell(p, crossing, 123)
	if p.Kind != PacketEscaped {
		t.Fatalf("expected escaped packet, got kind %d", p.Kind)
	}
	if p.LastTypeBeforeEscape != PacketRPkt {
		t.Fatalf("expected LastTypeBeforeEscape to record the pre-escape kind PacketRPkt, got %d", p.LastTypeBeforeEscape)
	}
	if p.EscapeTime != 123 {
		t.Fatalf("expected EscapeTime to be set, got %g", p.EscapeTime)
	}
}

func TestChangeCellInterior(t *testing.T) {
	g := cartesianTestGrid()
	p := &Packet{Kind: PacketRPkt, CellIndex: 0}
	crossing := BoundaryCrossing{Next: CellOf(3), Face: FaceYMax}
	face := g.ChangeCell(p, crossing, 5)
	if p.CellIndex != 3 {
		t.Fatalf("expected cell index 3, got %d", p.CellIndex)
	}
	if face != FaceYMin {
		t.Fatalf("expected returned face FaceYMin (the entered cell's face on the crossed plane), got %d", face)
	}
	if p.Kind == PacketEscaped {
		t.Fatal("interior move should not mark the packet escaped")
	}
}

func sphericalTestGrid() *Grid {
	return BuildGrid(GridCfg{Mode: "spherical1d", NCellsRadial: 4, TMinDays: 1}, 0.3, 1, 1)
}

func TestDistanceToBoundarySphericalOutward(t *testing.T) {
	g := sphericalTestGrid()
	cellIdx := 0
	min, max := g.BoundsAtTime(cellIdx, g.TMin)
	midR := (min.X + max.X) / 2
	pos := Point3{X: midR}
	dir := Vector3{X: 1}
	crossing := g.DistanceToBoundary(cellIdx, pos, dir, g.TMin, FaceNone)
	if crossing.Distance <= 0 {
		t.Fatalf("expected positive forward distance, got %g", crossing.Distance)
	}
	if crossing.Face != FaceOuter {
		t.Fatalf("expected to cross the outer shell moving outward, got face %d", crossing.Face)
	}
}

func TestDistanceToBoundarySphericalEscapeAtOuterShell(t *testing.T) {
	g := sphericalTestGrid()
	outerCell := len(g.Cells) - 1
	min, max := g.BoundsAtTime(outerCell, g.TMin)
	midR := (min.X + max.X) / 2
	crossing := g.DistanceToBoundary(outerCell, Point3{X: midR}, Vector3{X: 1}, g.TMin, FaceNone)
	if !crossing.Next.Escaped {
		t.Fatalf("expected the outermost shell's outward crossing to escape, got %+v", crossing.Next)
	}
}
