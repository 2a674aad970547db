package session

import (
	"fmt"
	"math"
	"sort"
)

// IntervalSet is an ordered set of non-overlapping time intervals, in
// seconds. It is immutable after construction.
type IntervalSet struct {
	starts []float64
	ends   []float64
}

// NewIntervalSet builds an interval set from parallel start/end slices.
// The intervals must already be sorted by start time and pairwise
// non-overlapping; violations are reported, not repaired.
func NewIntervalSet(starts, ends []float64) (*IntervalSet, error) {
	if len(starts) != len(ends) {
		return nil, fmt.Errorf("interval set: %d starts, %d ends", len(starts), len(ends))
	}
	for i := range starts {
		if math.IsNaN(starts[i]) || math.IsNaN(ends[i]) {
			return nil, fmt.Errorf("interval set: interval %d has NaN bound", i)
		}
		if ends[i] < starts[i] {
			return nil, fmt.Errorf("interval set: interval %d ends (%g) before it starts (%g)", i, ends[i], starts[i])
		}
		if i > 0 {
			if starts[i] < starts[i-1] {
				return nil, fmt.Errorf("interval set: interval %d out of order (start %g < %g)", i, starts[i], starts[i-1])
			}
			if starts[i] < ends[i-1] {
				return nil, fmt.Errorf("interval set: intervals %d and %d overlap", i-1, i)
			}
		}
	}
	s := &IntervalSet{starts: make([]float64, len(starts)), ends: make([]float64, len(ends))}
	copy(s.starts, starts)
	copy(s.ends, ends)
	return s, nil
}

// Len returns the number of intervals.
func (s *IntervalSet) Len() int { return len(s.starts) }

// Start returns the start of interval i.
func (s *IntervalSet) Start(i int) float64 { return s.starts[i] }

// End returns the end of interval i.
func (s *IntervalSet) End(i int) float64 { return s.ends[i] }

// Bounds returns the earliest start and latest end of the set.
func (s *IntervalSet) Bounds() (start, end float64) {
	if s.Len() == 0 {
		return 0, 0
	}
	return s.starts[0], s.ends[s.Len()-1]
}

// TotalDuration returns the summed length of all intervals.
func (s *IntervalSet) TotalDuration() float64 {
	var d float64
	for i := range s.starts {
		d += s.ends[i] - s.starts[i]
	}
	return d
}

// Contains reports whether t falls inside one of the intervals
// (boundaries inclusive).
func (s *IntervalSet) Contains(t float64) bool {
	i := sort.SearchFloat64s(s.ends, t)
	return i < len(s.starts) && s.starts[i] <= t
}

// Union merges this set with other into a new set, coalescing
// overlapping or touching intervals.
func (s *IntervalSet) Union(other *IntervalSet) *IntervalSet {
	type iv struct{ start, end float64 }
	all := make([]iv, 0, s.Len()+other.Len())
	for i := range s.starts {
		all = append(all, iv{s.starts[i], s.ends[i]})
	}
	for i := range other.starts {
		all = append(all, iv{other.starts[i], other.ends[i]})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].start < all[j].start })
	out := &IntervalSet{}
	for _, v := range all {
		n := len(out.ends)
		if n > 0 && v.start <= out.ends[n-1] {
			if v.end > out.ends[n-1] {
				out.ends[n-1] = v.end
			}
			continue
		}
		out.starts = append(out.starts, v.start)
		out.ends = append(out.ends, v.end)
	}
	return out
}
