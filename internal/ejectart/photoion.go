package ejectart

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

// PhotoionTarget is one upper-ion level a photoionisation can land the
// freed electron's parent ion on, with the share of ionisations out of
// the lower level that end up on this particular target level. A
// single lower level's targets sum to 1.
type PhotoionTarget struct {
	Level       int
	Probability Real
}

// PhotoionTable gives the photoionisation cross section (cm^2) as a
// function of frequency above a level's ionisation threshold, shared
// across every target level the ionisation can land on (the cross
// section itself does not depend on which target is reached, only the
// Targets probability split does).
type PhotoionTable struct {
	ThresholdNu Real
	Targets     []PhotoionTarget
	nu          []Real
	sigma       []Real
	fit         *interp.PiecewiseLinear
	fitted      bool
}

// NewKramersPhotoionTable builds a table following the Kramers
// hydrogenic approximation, sigma(nu) = sigma0 * (nuThreshold/nu)^3,
// tabulated on a log-spaced grid above threshold and then fit with a
// monotone interpolator so intermediate frequencies are cheap to
// evaluate without recomputing the power law.
func NewKramersPhotoionTable(thresholdNu, sigma0 Real, targets []PhotoionTarget) *PhotoionTable {
	const nPts = 64
	nu := make([]Real, nPts)
	sigma := make([]Real, nPts)
	logMin := math.Log(thresholdNu)
	logMax := math.Log(thresholdNu * 1e3)
	for i := 0; i < nPts; i++ {
		f := Real(i) / Real(nPts-1)
		lognu := logMin + f*(logMax-logMin)
		nu[i] = math.Exp(lognu)
		ratio := thresholdNu / nu[i]
		sigma[i] = sigma0 * ratio * ratio * ratio
	}
	if len(targets) == 0 {
		targets = []PhotoionTarget{{Level: 0, Probability: 1}}
	}
	t := &PhotoionTable{ThresholdNu: thresholdNu, Targets: targets, nu: nu, sigma: sigma, fit: new(interp.PiecewiseLinear)}
	if err := t.fit.Fit(nu, sigma); err == nil {
		t.fitted = true
	}
	return t
}

// CrossSection evaluates sigma(nu), returning 0 below threshold and
// extrapolating the fitted curve's trailing power-law falloff above
// the tabulated range.
func (t *PhotoionTable) CrossSection(nu Real) Real {
	if nu < t.ThresholdNu {
		return 0
	}
	if t.fitted && nu <= t.nu[len(t.nu)-1] {
		return t.fit.Predict(nu)
	}
	// Beyond the tabulated grid: fall back to the underlying Kramers
	// power law anchored at the last tabulated point.
	last := t.sigma[len(t.sigma)-1]
	lastNu := t.nu[len(t.nu)-1]
	ratio := lastNu / nu
	return last * ratio * ratio * ratio
}
