// Package record defines the intermediate record produced by format
// parsers, before normalization into a Session.
//
// Everything in this package is plain Go data that round-trips through
// encoding/json unchanged: the record is also the payload of the on-disk
// cache artifact, so it must not reference in-memory container types.
package record

import (
	"fmt"
	"sort"
)

// TimeUnit is the unit of every timestamp in a Record.
type TimeUnit string

// Supported time units. Parsers that know their format's clock convert
// to Seconds themselves; assembly rescales the rest.
const (
	Seconds      TimeUnit = "s"
	Milliseconds TimeUnit = "ms"
	Microseconds TimeUnit = "us"
)

// Scale returns the multiplier that converts the unit to seconds.
func (u TimeUnit) Scale() (float64, error) {
	switch u {
	case "", Seconds:
		return 1, nil
	case Milliseconds:
		return 1e-3, nil
	case Microseconds:
		return 1e-6, nil
	default:
		return 0, fmt.Errorf("unknown time unit %q", string(u))
	}
}

// Interval is a half-open-free [Start, End] time span.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Record is the format-specific parser output. All fields except Spikes
// or Traces (at least one of which must be present) are optional.
type Record struct {
	// Name is the session name, usually the directory or file basename.
	Name string `json:"name"`

	// TimeUnit applies to every timestamp in the record.
	TimeUnit TimeUnit `json:"time_unit"`

	// Spikes maps a unit identifier to its sorted event timestamps.
	Spikes map[int][]float64 `json:"spikes,omitempty"`

	// UnitMeta is an optional per-unit metadata table with one row per
	// unit, ordered by ascending unit identifier.
	UnitMeta *Table `json:"unit_meta,omitempty"`

	// Position holds continuous behavioral traces indexed by time.
	Position *Traces `json:"position,omitempty"`

	// Epochs maps an epoch name to its intervals.
	Epochs map[string][]Interval `json:"epochs,omitempty"`

	// Metadata maps a table name to free-form tabular data.
	Metadata map[string]*Table `json:"metadata,omitempty"`

	// Traces holds calcium fluorescence traces, one column per cell.
	Traces *Traces `json:"traces,omitempty"`

	// Footprints holds per-cell spatial footprints; the first dimension
	// matches the number of Traces columns.
	Footprints *Array `json:"footprints,omitempty"`

	// StimulusEpochs maps a stimulus name to its presentation intervals
	// (Allen sessions).
	StimulusEpochs map[string][]Interval `json:"stimulus_epochs,omitempty"`

	// StimulusBlocks maps a "<stimulus>.<k>" key to the k-th contiguous
	// presentation block of that stimulus.
	StimulusBlocks map[string][]Interval `json:"stimulus_blocks,omitempty"`
}

// Traces is a block of continuous traces sampled on a shared time index.
// Values is row-major with len(Times) rows and len(Columns) columns.
type Traces struct {
	Times   []float64 `json:"times"`
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

// At returns the value of column col at row i.
func (tr *Traces) At(i, col int) float64 {
	return tr.Values[i*len(tr.Columns)+col]
}

// Array is a dense n-dimensional float64 array in row-major order.
type Array struct {
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// MergeIntervals sorts intervals by start time and merges overlapping or
// touching spans, so the result satisfies the epoch ordering invariant.
func MergeIntervals(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	out := make([]Interval, len(ivs))
	copy(out, ivs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	merged := out[:1]
	for _, iv := range out[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Restrict keeps only the timestamps that fall inside one of the
// intervals. The intervals must be sorted and non-overlapping.
func Restrict(times []float64, ivs []Interval) []float64 {
	if len(ivs) == 0 {
		return times
	}
	out := make([]float64, 0, len(times))
	for _, t := range times {
		i := sort.Search(len(ivs), func(i int) bool { return ivs[i].End >= t })
		if i < len(ivs) && ivs[i].Start <= t {
			out = append(out, t)
		}
	}
	return out
}
