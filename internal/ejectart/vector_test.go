package ejectart

import (
	"math"
	"testing"
)

func TestVectorOps(t *testing.T) {
	v := Vector3{1, 2, 3}
	w := Vector3{-1, 0.5, 2}
	s := Real(3)

	add := v.Add(w)
	if add != (Vector3{0, 2.5, 5}) {
		t.Fatalf("Add mismatch: %+v", add)
	}
	sub := v.Sub(w)
	if sub != (Vector3{2, 1.5, 1}) {
		t.Fatalf("Sub mismatch: %+v", sub)
	}
	mul := v.Mul(s)
	if mul != (Vector3{3, 6, 9}) {
		t.Fatalf("Mul mismatch: %+v", mul)
	}
	dot := v.Dot(w)
	wantDot := Real(1*(-1) + 2*0.5 + 3*2)
	if dot != wantDot {
		t.Fatalf("Dot mismatch: got %.12g want %.12g", dot, wantDot)
	}
	l := v.Len()
	if math.Abs(float64(l-math.Sqrt(14))) > 1e-12 {
		t.Fatalf("Len mismatch: %.12g", l)
	}
	n := v.Norm()
	if math.Abs(float64(n.Len()-1)) > 1e-12 {
		t.Fatalf("Norm not unit: %.12g", n.Len())
	}
}

func TestVectorCross(t *testing.T) {
	x := Vector3{1, 0, 0}
	y := Vector3{0, 1, 0}
	z := x.Cross(y)
	if z != (Vector3{0, 0, 1}) {
		t.Fatalf("Cross mismatch: %+v", z)
	}
}

func TestOrthonormalBasis(t *testing.T) {
	n := Vector3{0, 0, 1}
	u, v := orthonormalBasis(n)
	if math.Abs(float64(u.Dot(n))) > 1e-12 || math.Abs(float64(v.Dot(n))) > 1e-12 {
		t.Fatalf("basis not orthogonal to n: u.n=%g v.n=%g", u.Dot(n), v.Dot(n))
	}
	if math.Abs(float64(u.Dot(v))) > 1e-12 {
		t.Fatalf("basis vectors not orthogonal to each other: u.v=%g", u.Dot(v))
	}
	if math.Abs(float64(u.Len()-1)) > 1e-12 || math.Abs(float64(v.Len()-1)) > 1e-12 {
		t.Fatalf("basis vectors not unit length: |u|=%g |v|=%g", u.Len(), v.Len())
	}
}

func TestPointAddSub(t *testing.T) {
	p := Point3{1, 2, 3}
	d := Vector3{1, 1, 1}
	moved := p.Add(d)
	if moved != (Point3{2, 3, 4}) {
		t.Fatalf("Add mismatch: %+v", moved)
	}
	back := moved.Sub(p)
	if back != d {
		t.Fatalf("Sub mismatch: %+v", back)
	}
}
