package session

import (
	"fmt"
	"sort"

	"github.com/emer/etable/v2/etable"
	"github.com/emer/etable/v2/etensor"
)

// Ts is a sorted sequence of event timestamps in seconds.
type Ts []float64

// TsGroup holds one spike train per unit, plus a per-unit metadata table
// (one row per unit, ordered by ascending unit identifier).
type TsGroup struct {
	units  []int
	trains map[int]Ts

	// Meta has one row per unit: at minimum an "id" and a "rate" column.
	Meta *etable.Table
}

// NewTsGroup builds a group from unit-keyed spike trains. Train order is
// not checked here; assembly validates it against the session invariants.
func NewTsGroup(trains map[int]Ts, meta *etable.Table) *TsGroup {
	units := make([]int, 0, len(trains))
	for id := range trains {
		units = append(units, id)
	}
	sort.Ints(units)
	return &TsGroup{units: units, trains: trains, Meta: meta}
}

// Units returns the unit identifiers in ascending order.
func (g *TsGroup) Units() []int { return g.units }

// Len returns the number of units.
func (g *TsGroup) Len() int { return len(g.units) }

// Train returns the spike train of a unit, or nil if the unit is absent.
func (g *TsGroup) Train(id int) Ts { return g.trains[id] }

// TsdFrame is a set of named continuous traces sampled on a shared,
// sorted time index. A frame with zero columns is the explicit
// "no data" marker.
type TsdFrame struct {
	times  []float64
	cols   []string
	values *etensor.Float64 // rows x columns
}

// NewTsdFrame builds a frame from a shared time index, column names and
// row-major values (len(times) rows by len(cols) columns).
func NewTsdFrame(times []float64, cols []string, values []float64) (*TsdFrame, error) {
	if len(values) != len(times)*len(cols) {
		return nil, fmt.Errorf("tsdframe: %d values for %d rows x %d columns",
			len(values), len(times), len(cols))
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return nil, fmt.Errorf("tsdframe: time index not sorted at row %d", i)
		}
	}
	tsr := etensor.NewFloat64([]int{len(times), len(cols)}, nil, []string{"Row", "Col"})
	copy(tsr.Values, values)
	return &TsdFrame{times: times, cols: cols, values: tsr}, nil
}

// EmptyTsdFrame returns the explicit no-data marker.
func EmptyTsdFrame() *TsdFrame {
	f, _ := NewTsdFrame(nil, nil, nil)
	return f
}

// Len returns the number of rows.
func (f *TsdFrame) Len() int { return len(f.times) }

// IsEmpty reports whether the frame is the no-data marker.
func (f *TsdFrame) IsEmpty() bool { return len(f.cols) == 0 }

// Times returns the shared time index.
func (f *TsdFrame) Times() []float64 { return f.times }

// Columns returns the trace names.
func (f *TsdFrame) Columns() []string { return f.cols }

// Value returns the value of column col at row i.
func (f *TsdFrame) Value(i, col int) float64 {
	return f.values.Values[i*len(f.cols)+col]
}

// Tensor returns the backing rows-by-columns tensor.
func (f *TsdFrame) Tensor() *etensor.Float64 { return f.values }

// Column returns the values of the named trace, or nil if absent.
func (f *TsdFrame) Column(name string) []float64 {
	for j, c := range f.cols {
		if c != name {
			continue
		}
		out := make([]float64, len(f.times))
		for i := range out {
			out[i] = f.Value(i, j)
		}
		return out
	}
	return nil
}
