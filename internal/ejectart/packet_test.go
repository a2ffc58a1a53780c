package ejectart

import (
	"math"
	"testing"
)

func TestDopplerFactorFirstOrder(t *testing.T) {
	RelativisticDoppler = false
	defer func() { RelativisticDoppler = false }()

	t0 := Real(1e6)
	pos := Point3{X: 0.5 * CLight * float64(t0)}
	dir := Vector3{X: 1}
	d := DopplerFactor(pos, dir, t0)
	beta := pos.X / t0 / CLight
	want := 1 + beta
	if math.Abs(float64(d-want)) > 1e-9 {
		t.Fatalf("first-order Doppler mismatch: got %g want %g", d, want)
	}
}

func TestDopplerFactorRelativisticMatchesFirstOrderAtLowBeta(t *testing.T) {
	RelativisticDoppler = true
	defer func() { RelativisticDoppler = false }()

	t0 := Real(1e6)
	pos := Point3{X: 1e-4 * CLight * float64(t0)}
	dir := Vector3{X: 1}
	d := DopplerFactor(pos, dir, t0)
	beta := pos.X / t0 / CLight
	firstOrder := 1 + beta
	if math.Abs(float64(d-firstOrder)) > 1e-6 {
		t.Fatalf("relativistic Doppler should nearly match first-order at low beta: got %g want ~%g", d, firstOrder)
	}
}

func TestToRestFrameAndBackRoundTrip(t *testing.T) {
	p := &Packet{
		Position: Point3{X: 0.1 * CLight},
		Direction: Vector3{X: 1},
		T:         1,
		NuCMF:     5e14,
		ECMF:      2,
	}
	p.ToRestFrame()
	gotNuCMF, gotECMF := p.NuCMF, p.ECMF
	p.ToComovingFrame()
	if math.Abs(float64(p.NuCMF-gotNuCMF)) > 1e-6 {
		t.Fatalf("round trip NuCMF mismatch: got %g want %g", p.NuCMF, gotNuCMF)
	}
	if math.Abs(float64(p.ECMF-gotECMF)) > 1e-6 {
		t.Fatalf("round trip ECMF mismatch: got %g want %g", p.ECMF, gotECMF)
	}
}
