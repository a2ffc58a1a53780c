package ejectart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNonThermalGridDescendingLogSpaced(t *testing.T) {
	g := NewNonThermalGrid(16, 0.1, 16000)
	require.Equal(t, 16, g.N)
	assert.InDelta(t, 16000, float64(g.EnergyEV[0]), 1e-6)
	assert.InDelta(t, 0.1, float64(g.EnergyEV[15]), 1e-9)
	for i := 1; i < g.N; i++ {
		assert.Less(t, g.EnergyEV[i], g.EnergyEV[i-1], "grid must be strictly descending")
	}
}

func TestSolveSpencerFanoResidualConverges(t *testing.T) {
	a, lines := testAtomicAndLines()
	grid := NewNonThermalGrid(64, 1, 16000)
	cell := NewModelCell(0, len(a.Ions), 0)
	cell.ElectronDensity = 1e8
	cell.ElectronTemp = 1e4
	cell.IonPopulation[0] = 1e9

	sol := SolveSpencerFano(grid, a, lines, cell, 1e-5)
	require.NotNil(t, sol)
	assert.False(t, math.IsNaN(float64(sol.ResidualNorm)))
	assert.LessOrEqual(t, float64(sol.ResidualNorm), float64(NonThermalResidualWarn)*1e6,
		"Newton refinement should keep the residual from blowing up")

	total := sol.HeatingFraction + sol.IonisationFraction + sol.ExcitationFraction
	assert.InDelta(t, 1.0, float64(total), 1e-9, "deposition fractions must normalise to 1")
	assert.Greater(t, sol.E0EV, Real(0))
	assert.NotEmpty(t, sol.EffectiveIonPotEV)
}

func TestSolveSpencerFanoZeroElectronDensityStillSolves(t *testing.T) {
	a, lines := testAtomicAndLines()
	grid := NewNonThermalGrid(8, 1, 1000)
	cell := NewModelCell(0, len(a.Ions), 0)
	sol := SolveSpencerFano(grid, a, lines, cell, 1e-10)
	for i, y := range sol.SpectrumYE {
		assert.False(t, math.IsNaN(float64(y)), "spectrum entry %d is NaN", i)
	}
}

func TestDefaultNonThermalSolutionUsesConfiguredFractions(t *testing.T) {
	sol := defaultNonThermalSolution(1e-40)
	total := sol.HeatingFraction + sol.IonisationFraction + sol.ExcitationFraction
	assert.InDelta(t, 1.0, float64(total), 1e-9)
	assert.Equal(t, Real(1e-40), sol.DepositionRateDensity)
}
