package ejectart

import (
	"math"
	"math/rand"
)

// Nuclide is one radioactive species tracked through its decay chain:
// its own half-life and the fraction of its decay energy released as
// gamma rays versus deposited locally by positrons/electrons.
type Nuclide struct {
	Name           string
	HalfLifeS      Real
	DecaysTo       int // index into the run's nuclide table, -1 if stable
	QValueErg      Real
	GammaFraction  Real // fraction of QValueErg carried by gamma rays
}

// NuclideChain is the fixed in-memory decay-chain table this kernel
// ships with, standing in for the external decay-data file a full
// install would load. Covers the two chains that dominate supernova
// light curves: Ni56 -> Co56 -> Fe56 and Ni57 -> Co57 -> Fe57.
var NuclideChain = []Nuclide{
	{Name: "Ni56", HalfLifeS: 6.075 * 86400, DecaysTo: 1, QValueErg: 2.136 * 1.602176634e-6, GammaFraction: 1.0},
	{Name: "Co56", HalfLifeS: 77.236 * 86400, DecaysTo: 2, QValueErg: 4.566 * 1.602176634e-6, GammaFraction: 0.81},
	{Name: "Fe56", HalfLifeS: math.Inf(1), DecaysTo: -1, QValueErg: 0, GammaFraction: 0},
	{Name: "Ni57", HalfLifeS: 35.60 * 3600, DecaysTo: 4, QValueErg: 1.919 * 1.602176634e-6, GammaFraction: 1.0},
	{Name: "Co57", HalfLifeS: 271.74 * 86400, DecaysTo: 5, QValueErg: 0.836 * 1.602176634e-6, GammaFraction: 1.0},
	{Name: "Fe57", HalfLifeS: math.Inf(1), DecaysTo: -1, QValueErg: 0, GammaFraction: 0},
}

// DecayConstant returns ln2/halfLife, the exponential decay rate.
func DecayConstant(n Nuclide) Real {
	if math.IsInf(n.HalfLifeS, 1) {
		return 0
	}
	return math.Ln2 / n.HalfLifeS
}

// SurvivingFraction returns the Bateman-equation fraction of an
// initially pure sample of nuclideIdx that has not yet decayed by time
// t, following the single-parent exponential decay law (the chains in
// NuclideChain never branch, so the general Bateman solution for a
// linear chain reduces to a product of independent exponentials when
// summed per-species rather than per-chain-position; here we return
// just the originating species' own survival, which is what a pellet's
// activation-time sampler needs).
func SurvivingFraction(nuclideIdx int, t Real) Real {
	lambda := DecayConstant(NuclideChain[nuclideIdx])
	if lambda == 0 {
		return 1
	}
	return math.Exp(-lambda * t)
}

// Pellet is one radioactive decay energy packet, seeded at t_min with a
// nuclide and a decay time sampled from that nuclide's exponential
// distribution; ActivationTime is when it actually decays and is
// converted into a gamma packet (see ActivatePellet).
type Pellet struct {
	NuclideIndex    int
	ActivationTime  Real
	Position        Point3
	EnergyErg       Real
}

// SampleActivationTime draws a decay time from the exponential
// distribution with rate DecayConstant(nuclide), using inverse-CDF
// sampling: t = -ln(U)/lambda.
func SampleActivationTime(nuclide Nuclide, u Real) Real {
	lambda := DecayConstant(nuclide)
	if lambda == 0 {
		return math.Inf(1)
	}
	for u <= 0 {
		u = 1e-300
	}
	return -math.Log(u) / lambda
}

// ActivatePellet converts a decayed pellet into its outgoing gamma
// packet, carrying GammaFraction of the decay energy on an isotropic
// direction. The remaining energy (positron/electron deposition) is
// the caller's responsibility to add directly to the cell's
// non-thermal deposition estimator, since it never propagates as a
// packet at all.
func ActivatePellet(rng *rand.Rand, p Pellet, t Real) Packet {
	n := NuclideChain[p.NuclideIndex]
	gammaEnergy := p.EnergyErg * n.GammaFraction
	return Packet{
		Kind:          PacketGamma,
		Position:      p.Position,
		Direction:     isotropicDirection(rng),
		T:             t,
		ERF:           gammaEnergy,
		ECMF:          gammaEnergy,
		OriginNuclide: p.NuclideIndex,
	}
}

// LocalDepositionFraction returns 1-GammaFraction, the share of a
// pellet's decay energy deposited directly in its originating cell
// rather than carried away by a gamma packet.
func LocalDepositionFraction(nuclideIdx int) Real {
	return 1 - NuclideChain[nuclideIdx].GammaFraction
}
