package ejectart

import "math"

// PacketKind tags which of the transport-kernel packet types a Packet
// currently represents. A single Packet value moves between kinds over
// its lifetime (r-packet -> k-packet -> r-packet, or gamma -> k-packet)
// rather than being reallocated, mirroring how energy packets change
// type in place during propagation.
type PacketKind uint8

const (
	PacketRPkt PacketKind = iota
	PacketKPkt
	PacketMacroAtom
	PacketGamma
	PacketEscaped
	PacketAbsorbed // thermalised: energy left the propagating population for good
)

// Packet is one Monte Carlo energy packet moving through the grid. Its
// radiation-field quantities are tracked in both the comoving (CMF) and
// rest (RF, observer) frames; NuCMF/ECMF are updated every propagation
// step, NuRF/ERF are recomputed from them via the local Doppler factor
// whenever a rest-frame quantity is needed (for spectra, or as the
// initial condition of a freshly emitted r-packet).
type Packet struct {
	Kind PacketKind

	CellIndex int  // index into Grid.Cells; undefined once Kind == PacketEscaped
	LastFace  Face // face most recently crossed, excluded from the next boundary search

	Position  Point3
	Direction Vector3

	NuCMF Real
	NuRF  Real
	ECMF  Real
	ERF   Real

	Stokes StokesVector

	// Time since explosion, seconds, at the packet's current position.
	T Real

	// NextTransHint lower-bounds the line-list search so a propagation
	// step never re-walks lines already ruled out this step: it is the
	// index of the first line this packet has not yet passed, and is
	// advanced every time the line walk passes through a line without
	// interacting, guaranteeing the packet never interacts twice with
	// the same line within one call to PropagateRPacket.
	NextTransHint int

	// Origin bookkeeping, needed by the spectrum accumulator's
	// "true emission" column and by decay-chain diagnostics.
	EmissionType   int // line index, or -1 for continuum/free-free emission
	AbsorptionType int
	OriginNuclide  int // nuclide table index this packet's energy traces back to, -1 if none

	EscapeTime           Real
	LastTypeBeforeEscape PacketKind
}

// DopplerFactor returns the first-order or relativistic Doppler factor
// (RF/CMF frequency ratio) for a packet moving with direction dir at
// radius-relative velocity v = position/t (homologous expansion),
// controlled by the RelativisticDoppler package variable.
func DopplerFactor(pos Point3, dir Vector3, t Real) Real {
	vOverC := Vector3{pos.X / t, pos.Y / t, pos.Z / t}
	beta := vOverC.Dot(dir) / CLight
	if !RelativisticDoppler {
		return 1 + beta
	}
	gamma := 1 / math.Sqrt(1-betaSquared(vOverC))
	return gamma * (1 + beta)
}

func betaSquared(vOverC Vector3) Real {
	b := vOverC.Len() / CLight
	return b * b
}

// ToRestFrame recomputes NuRF/ERF from NuCMF/ECMF using the packet's
// current position, direction and time.
func (p *Packet) ToRestFrame() {
	d := DopplerFactor(p.Position, p.Direction, p.T)
	p.NuRF = p.NuCMF * d
	p.ERF = p.ECMF * d
}

// ToComovingFrame recomputes NuCMF/ECMF from NuRF/ERF, the inverse of
// ToRestFrame, used when a packet is created with rest-frame values (a
// freshly emitted decay gamma ray) and needs comoving quantities for
// propagation.
func (p *Packet) ToComovingFrame() {
	d := DopplerFactor(p.Position, p.Direction, p.T)
	p.NuCMF = p.NuRF / d
	p.ECMF = p.ERF / d
}
