// Package session defines the normalized, format-agnostic Session
// object and the assembly step that builds it from a parser record.
package session

import (
	"github.com/emer/etable/v2/etable"
	"github.com/emer/etable/v2/etensor"
)

// Session is the normalized result of loading one recording session.
// It is immutable after construction; callers treat every field as a
// read-only snapshot. All timestamps are in seconds.
type Session struct {
	// Name is the session name (directory basename unless the format
	// declares one).
	Name string

	// Path is the directory the session was loaded from.
	Path string

	// Format is the tag of the parser that produced the session.
	Format string

	// Spikes holds one spike train per unit. Never nil; may be empty.
	Spikes *TsGroup

	// Position holds behavioral traces. Never nil; a frame with zero
	// columns marks a session without position data.
	Position *TsdFrame

	// Epochs maps an epoch name ("wake", "sleep", ...) to its intervals.
	Epochs map[string]*IntervalSet

	// Metadata maps a table name to format-defined tabular data.
	Metadata map[string]*etable.Table

	// TimeSupport is the set of intervals over which all data is valid.
	TimeSupport *IntervalSet

	// C holds calcium fluorescence traces, one column per cell, for
	// imaging sessions; the no-data marker otherwise.
	C *TsdFrame

	// A holds per-cell spatial footprints; its first dimension matches
	// the number of C columns. Nil for non-imaging sessions.
	A *etensor.Float64

	// StimulusEpochs maps a stimulus name to its presentation intervals
	// (Allen sessions only).
	StimulusEpochs map[string]*IntervalSet

	// StimulusBlocks maps a "<stimulus>.<k>" key to the k-th contiguous
	// presentation block of that stimulus (Allen sessions only).
	StimulusBlocks map[string]*IntervalSet

	// StimulusTimeSupport is the union of all stimulus epochs, or nil
	// when no stimuli are declared.
	StimulusTimeSupport *IntervalSet
}

// HasPosition reports whether the session carries position data.
func (s *Session) HasPosition() bool { return !s.Position.IsEmpty() }

// HasTraces reports whether the session carries calcium traces.
func (s *Session) HasTraces() bool { return !s.C.IsEmpty() }
