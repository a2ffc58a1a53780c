package ejectart

// Package-level tunables, flipped from the command line or tests.
var (
	Debug               = false // verbose per-event tracing, see DebugLog
	UseLocks            = true  // disable only for single-threaded debugging
	RelativisticDoppler = false // use the relativistic Doppler factor instead of the first-order approximation
)
