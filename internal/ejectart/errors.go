package ejectart

import "fmt"

// ConfigError reports a problem with a run's configuration, before any
// physics has started.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// AtomicDataError reports a problem building or validating the atomic
// model (missing ion, malformed synthetic spec, duplicate line).
type AtomicDataError struct {
	Context string
	Msg     string
}

func (e *AtomicDataError) Error() string {
	return fmt.Sprintf("atomic data: %s: %s", e.Context, e.Msg)
}

// GeometryViolation reports a packet ending up outside its tracked
// cell by more than the configured tolerance, a bug-indicating
// condition rather than an expected runtime event.
type GeometryViolation struct {
	CellIndex int
	Distance  Real // how far outside the cell's bounds, cm
}

func (e *GeometryViolation) Error() string {
	return fmt.Sprintf("geometry violation: cell %d, overshoot %g cm", e.CellIndex, e.Distance)
}

// Clamped records a value that was forced into a valid range rather
// than rejected outright — not an error, but worth surfacing to the
// operator if it happens often.
type Clamped struct {
	What     string
	Wanted   Real
	Clamped  Real
}

func (c Clamped) String() string {
	return fmt.Sprintf("%s clamped %g -> %g", c.What, c.Wanted, c.Clamped)
}

// Diagnostics collects non-fatal warnings accumulated over a run
// (clamped values, cells with unreliable non-thermal residuals),
// reported once when the run completes rather than logged inline
// per-occurrence.
type Diagnostics struct {
	Clamps       []Clamped
	HighResidual []int // model cell indices whose Spencer-Fano residual exceeded NonThermalResidualWarn
}

// AddClamp records a clamped value.
func (d *Diagnostics) AddClamp(c Clamped) {
	d.Clamps = append(d.Clamps, c)
}

// AddHighResidual records a model cell whose non-thermal solve did not
// converge to within NonThermalResidualWarn.
func (d *Diagnostics) AddHighResidual(cellIdx int) {
	d.HighResidual = append(d.HighResidual, cellIdx)
}

// Empty reports whether there is nothing to report.
func (d *Diagnostics) Empty() bool {
	return len(d.Clamps) == 0 && len(d.HighResidual) == 0
}
