package ejectart

import (
	"math/rand"
	"testing"
)

func TestDensityScaleAtReferenceTime(t *testing.T) {
	g := &Grid{TMin: 100}
	if got := densityScale(g, 100); got != 1 {
		t.Fatalf("density scale at t=t_min should be 1, got %g", got)
	}
	if got := densityScale(g, 200); got >= 1 {
		t.Fatalf("density scale should dilute below 1 for t > t_min, got %g", got)
	}
}

func TestPropagateGammaPacketTerminatesWithinTimestep(t *testing.T) {
	g := BuildGrid(GridCfg{Mode: "cartesian3d", Nx: 2, Ny: 2, Nz: 2, TMinDays: 1}, 0.3, 1, 0)
	for _, c := range g.ModelCells {
		c.DensityTMin = 1e-10
	}
	env := &PropagationEnv{
		Grid: g, Atomic: &AtomicData{}, Lines: NewLineList(nil),
		Estimators: NewEstimatorSet(len(g.ModelCells), 0, 1, 0),
		Opacity:    NewOpacityCache(len(g.Cells)),
		Cooling:    NewCoolingCache(),
	}
	min, max := g.BoundsAtTime(0, g.TMin)
	pos := Point3{X: (min.X + max.X) / 2, Y: (min.Y + max.Y) / 2, Z: (min.Z + max.Z) / 2}
	p := &Packet{
		Kind: PacketGamma, CellIndex: 0, LastFace: FaceNone,
		Position: pos, Direction: Vector3{X: 1}, T: g.TMin,
		NuCMF: 1e20, ECMF: 1,
	}
	rng := rand.New(rand.NewSource(1))
	PropagateGammaPacket(rng, env, p, g.TMin*2)

	if p.Kind == PacketGamma && p.T < g.TMin*2 {
		t.Fatalf("a gamma packet should only remain PacketGamma past its own timestep end, got T=%g", p.T)
	}
}
