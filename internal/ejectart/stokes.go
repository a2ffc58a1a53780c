package ejectart

// StokesVector tracks a packet's polarisation state. Only I, Q and U
// are carried (circular polarisation V is never generated by the
// scattering processes this transport kernel models), alongside the
// reference direction Q and U are measured against.
type StokesVector struct {
	I, Q, U Real
	RefX    Vector3 // one axis of the orthonormal frame Q/U are defined in
	RefY    Vector3
}

// NewUnpolarised returns a Stokes vector carrying energy frac of I with
// zero polarisation, and a reference frame built from the packet's
// propagation direction.
func NewUnpolarised(i Real, dir Vector3) StokesVector {
	u, v := orthonormalBasis(dir.Norm())
	return StokesVector{I: i, RefX: u, RefY: v}
}

// RotateTo re-expresses Q and U in a new reference frame (newX, newY),
// both assumed orthonormal and orthogonal to the propagation direction.
// Polarisation itself (Q/U relative to the photon's plane) does not
// change on a frame rotation, only its representation does, following
// the standard Stokes rotation-by-2*theta rule.
func (s StokesVector) RotateTo(newX, newY Vector3) StokesVector {
	cosT := s.RefX.Dot(newX)
	sinT := s.RefX.Dot(newY)
	cos2, sin2 := cosT*cosT-sinT*sinT, 2*cosT*sinT
	return StokesVector{
		I:    s.I,
		Q:    s.Q*cos2 + s.U*sin2,
		U:    -s.Q*sin2 + s.U*cos2,
		RefX: newX,
		RefY: newY,
	}
}

// ThomsonScatter applies the Chandrasekhar Thomson scattering matrix
// for scattering angle with cosine mu, into a new reference frame built
// from the scattered direction. Degenerate near-forward or
// near-backward geometries (where a scattering-plane normal cannot be
// formed) fall back to unpolarised propagation in the existing frame.
func (s StokesVector) ThomsonScatter(mu Real, newDir Vector3) StokesVector {
	if newDir.Len() < PolRefDegenerateTol {
		return StokesVector{I: s.I, RefX: s.RefX, RefY: s.RefY}
	}
	u, v := orthonormalBasis(newDir.Norm())
	rotated := s.RotateTo(u, v)
	mu2 := mu * mu
	i := 0.375 * ((mu2+1)*rotated.I + (mu2-1)*rotated.Q)
	q := 0.375 * ((mu2-1)*rotated.I + (mu2+1)*rotated.Q)
	ux := 0.75 * mu * rotated.U
	return StokesVector{I: i, Q: q, U: ux, RefX: u, RefY: v}
}

// DepolarisationFraction reports the fractional polarisation
// sqrt(Q^2+U^2)/I, 0 for an unpolarised or zero-intensity packet.
func (s StokesVector) DepolarisationFraction() Real {
	if s.I == 0 {
		return 0
	}
	return Vector3{X: s.Q, Y: s.U}.Len() / s.I
}
