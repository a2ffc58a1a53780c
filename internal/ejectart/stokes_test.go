package ejectart

import (
	"math"
	"testing"
)

func TestNewUnpolarisedHasZeroQU(t *testing.T) {
	s := NewUnpolarised(5, Vector3{X: 1})
	if s.I != 5 || s.Q != 0 || s.U != 0 {
		t.Fatalf("expected unpolarised I=5 Q=0 U=0, got %+v", s)
	}
}

func TestRotateToPreservesIntensity(t *testing.T) {
	s := StokesVector{I: 3, Q: 1, U: 0.5, RefX: Vector3{X: 1}, RefY: Vector3{Y: 1}}
	rotated := s.RotateTo(Vector3{Y: 1}, Vector3{X: -1})
	if rotated.I != s.I {
		t.Fatalf("RotateTo must not change total intensity: got %g want %g", rotated.I, s.I)
	}
}

func TestRotateToIdentity(t *testing.T) {
	s := StokesVector{I: 3, Q: 1, U: 0.5, RefX: Vector3{X: 1}, RefY: Vector3{Y: 1}}
	same := s.RotateTo(s.RefX, s.RefY)
	if math.Abs(float64(same.Q-s.Q)) > 1e-12 || math.Abs(float64(same.U-s.U)) > 1e-12 {
		t.Fatalf("rotating to the same frame should be a no-op: got Q=%g U=%g", same.Q, same.U)
	}
}

func TestThomsonScatterForwardAndBackward(t *testing.T) {
	s := NewUnpolarised(1, Vector3{X: 1})
	forward := s.ThomsonScatter(1, Vector3{X: 1})
	backward := s.ThomsonScatter(-1, Vector3{X: -1})
	if forward.I <= 0 || backward.I <= 0 {
		t.Fatalf("Thomson-scattered intensity should stay positive, got forward=%g backward=%g", forward.I, backward.I)
	}
}

func TestThomsonScatterDegenerateDirection(t *testing.T) {
	s := NewUnpolarised(4, Vector3{X: 1})
	out := s.ThomsonScatter(0, Vector3{})
	if out.I != 4 {
		t.Fatalf("degenerate scattering direction should leave intensity unchanged, got %g", out.I)
	}
}

func TestDepolarisationFractionZeroForUnpolarised(t *testing.T) {
	s := NewUnpolarised(2, Vector3{X: 1})
	if s.DepolarisationFraction() != 0 {
		t.Fatalf("expected zero depolarisation fraction, got %g", s.DepolarisationFraction())
	}
}

func TestDepolarisationFractionFullyPolarised(t *testing.T) {
	s := StokesVector{I: 1, Q: 1, U: 0}
	frac := s.DepolarisationFraction()
	if math.Abs(float64(frac-1)) > 1e-12 {
		t.Fatalf("expected fully polarised fraction 1, got %g", frac)
	}
}
