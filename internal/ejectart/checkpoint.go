package ejectart

import (
	"encoding/gob"
	"fmt"
	"io"
)

// checkpointSentinel is written ahead of every checkpoint's payload so
// Load can reject a stream that isn't one of ours (a truncated file, a
// gob stream from an unrelated program) before gob ever attempts to
// decode it into a Checkpoint.
const checkpointSentinel = 24724518

// Checkpoint is the full in-flight state needed to resume a run
// mid-simulation: the model cells (thermal/ionisation state, including
// each cell's solved NonThermalSolution with its deposition split,
// effective ion potentials and ionisation/excitation channel shares)
// and every packet still propagating at the time the checkpoint was
// taken. encoding/gob is used rather than a hand-rolled binary format:
// every field here is already a plain Go struct/slice, which is
// exactly gob's sweet spot, and it keeps the format self-describing
// across struct field additions between runs.
type Checkpoint struct {
	Time       Real
	TimestepN  int
	ModelCells []*ModelCell
	Packets    []Packet
	Pellets    []Pellet
	Seed       int64
}

// Save writes a checkpoint to w, preceded by the sentinel Load checks
// for.
func Save(w io.Writer, cp *Checkpoint) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(checkpointSentinel); err != nil {
		return err
	}
	return enc.Encode(cp)
}

// Load reads a checkpoint from r, rejecting the stream outright if its
// leading sentinel doesn't match.
func Load(r io.Reader) (*Checkpoint, error) {
	dec := gob.NewDecoder(r)
	var sentinel int
	if err := dec.Decode(&sentinel); err != nil {
		return nil, err
	}
	if sentinel != checkpointSentinel {
		return nil, fmt.Errorf("checkpoint: bad sentinel %d, not a valid checkpoint stream", sentinel)
	}
	var cp Checkpoint
	if err := dec.Decode(&cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
