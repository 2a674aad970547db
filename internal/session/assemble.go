package session

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/emer/etable/v2/etable"
	"github.com/emer/etable/v2/etensor"

	"github.com/nwbmatic/nwbmatic/internal/record"
)

// BuildMeta carries the loader context that does not come from the
// parser record itself.
type BuildMeta struct {
	Path string // session directory
	Tag  string // resolved format tag
}

// Build normalizes an intermediate record into a Session: rescales all
// timestamps to seconds, derives the time support, converts tables to
// their container types, and validates the Session invariants. It is
// total (absent optional fields become explicit empty markers) and
// deterministic (identical records yield identical Sessions).
func Build(rec *record.Record, meta BuildMeta) (*Session, error) {
	malformed := func(reason string, err error) error {
		return &MalformedSessionError{Dir: meta.Path, Tag: meta.Tag, Reason: reason, Err: err}
	}

	scale, err := rec.TimeUnit.Scale()
	if err != nil {
		return nil, malformed("bad time unit", err)
	}

	s := &Session{
		Name:   rec.Name,
		Path:   meta.Path,
		Format: meta.Tag,
	}
	if s.Name == "" {
		s.Name = filepath.Base(meta.Path)
	}

	s.Epochs, err = buildEpochs(rec.Epochs, scale)
	if err != nil {
		return nil, malformed("bad epochs", err)
	}
	s.StimulusEpochs, err = buildEpochs(rec.StimulusEpochs, scale)
	if err != nil {
		return nil, malformed("bad stimulus epochs", err)
	}
	s.StimulusBlocks, err = buildEpochs(rec.StimulusBlocks, scale)
	if err != nil {
		return nil, malformed("bad stimulus blocks", err)
	}
	for _, set := range s.StimulusEpochs {
		if s.StimulusTimeSupport == nil {
			s.StimulusTimeSupport = set
		} else {
			s.StimulusTimeSupport = s.StimulusTimeSupport.Union(set)
		}
	}

	s.Position, err = buildFrame(rec.Position, scale)
	if err != nil {
		return nil, malformed("bad position traces", err)
	}
	s.C, err = buildFrame(rec.Traces, scale)
	if err != nil {
		return nil, malformed("bad calcium traces", err)
	}

	s.TimeSupport, err = timeSupport(s, rec, scale)
	if err != nil {
		return nil, err
	}

	s.Spikes, err = buildSpikes(rec, scale, s.TimeSupport, malformed)
	if err != nil {
		return nil, err
	}
	for _, f := range []*TsdFrame{s.Position, s.C} {
		for _, t := range f.Times() {
			if !s.TimeSupport.Contains(t) {
				return nil, malformed(fmt.Sprintf("trace sample at %gs outside time support", t), nil)
			}
		}
	}

	if rec.Footprints != nil {
		s.A, err = buildFootprints(rec.Footprints, s.C)
		if err != nil {
			return nil, malformed("bad spatial footprints", err)
		}
	}

	s.Metadata = make(map[string]*etable.Table, len(rec.Metadata))
	for name, tbl := range rec.Metadata {
		et, err := toEtable(name, tbl)
		if err != nil {
			return nil, malformed(fmt.Sprintf("bad metadata table %q", name), err)
		}
		s.Metadata[name] = et
	}

	return s, nil
}

func buildEpochs(in map[string][]record.Interval, scale float64) (map[string]*IntervalSet, error) {
	if len(in) == 0 {
		return map[string]*IntervalSet{}, nil
	}
	out := make(map[string]*IntervalSet, len(in))
	for name, ivs := range in {
		starts := make([]float64, len(ivs))
		ends := make([]float64, len(ivs))
		for i, iv := range ivs {
			starts[i] = iv.Start * scale
			ends[i] = iv.End * scale
		}
		// Start order is normalization; overlap stays an error.
		sort.Sort(byStart{starts, ends})
		set, err := NewIntervalSet(starts, ends)
		if err != nil {
			return nil, fmt.Errorf("epoch %q: %w", name, err)
		}
		out[name] = set
	}
	return out, nil
}

type byStart struct{ starts, ends []float64 }

func (b byStart) Len() int           { return len(b.starts) }
func (b byStart) Less(i, j int) bool { return b.starts[i] < b.starts[j] }
func (b byStart) Swap(i, j int) {
	b.starts[i], b.starts[j] = b.starts[j], b.starts[i]
	b.ends[i], b.ends[j] = b.ends[j], b.ends[i]
}

func buildFrame(tr *record.Traces, scale float64) (*TsdFrame, error) {
	if tr == nil || len(tr.Columns) == 0 {
		return EmptyTsdFrame(), nil
	}
	times := make([]float64, len(tr.Times))
	for i, t := range tr.Times {
		times[i] = t * scale
	}
	return NewTsdFrame(times, tr.Columns, tr.Values)
}

// timeSupport derives the set of intervals over which the session is
// valid: the union of all declared epochs, or the bounding extent of
// the data when no epochs are declared.
func timeSupport(s *Session, rec *record.Record, scale float64) (*IntervalSet, error) {
	var support *IntervalSet
	for _, set := range s.Epochs {
		if support == nil {
			support = set
		} else {
			support = support.Union(set)
		}
	}
	if support != nil {
		return support, nil
	}

	lo, hi, any := dataExtent(s, rec, scale)
	if !any {
		return nil, &MalformedSessionError{
			Dir: s.Path, Tag: s.Format,
			Reason: "record carries no epochs and no time-bearing data",
		}
	}
	return NewIntervalSet([]float64{lo}, []float64{hi})
}

func dataExtent(s *Session, rec *record.Record, scale float64) (lo, hi float64, any bool) {
	grow := func(t float64) {
		if !any {
			lo, hi, any = t, t, true
			return
		}
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	for _, train := range rec.Spikes {
		for _, t := range train {
			grow(t * scale)
		}
	}
	for _, f := range []*TsdFrame{s.Position, s.C} {
		for _, t := range f.Times() {
			grow(t)
		}
	}
	return lo, hi, any
}

func buildSpikes(rec *record.Record, scale float64, support *IntervalSet, malformed func(string, error) error) (*TsGroup, error) {
	trains := make(map[int]Ts, len(rec.Spikes))
	for id, raw := range rec.Spikes {
		train := make(Ts, len(raw))
		for i, t := range raw {
			train[i] = t * scale
			if i > 0 && train[i] < train[i-1] {
				return nil, malformed(fmt.Sprintf("unit %d spike train not sorted at index %d", id, i), nil)
			}
			if !support.Contains(train[i]) {
				return nil, malformed(fmt.Sprintf("unit %d spike at %gs outside time support", id, train[i]), nil)
			}
		}
		trains[id] = train
	}

	meta, err := unitMeta(rec, trains, support)
	if err != nil {
		return nil, malformed("bad unit metadata", err)
	}
	return NewTsGroup(trains, meta), nil
}

// unitMeta builds the per-unit table: id and mean rate always, plus any
// parser-provided columns.
func unitMeta(rec *record.Record, trains map[int]Ts, support *IntervalSet) (*etable.Table, error) {
	units := make([]int, 0, len(trains))
	for id := range trains {
		units = append(units, id)
	}
	sort.Ints(units)

	sch := etable.Schema{
		{Name: "id", Type: etensor.INT64},
		{Name: "rate", Type: etensor.FLOAT64},
	}
	var extra *record.Table
	if rec.UnitMeta != nil {
		if rec.UnitMeta.Rows() != len(units) {
			return nil, fmt.Errorf("unit metadata has %d rows for %d units", rec.UnitMeta.Rows(), len(units))
		}
		extra = rec.UnitMeta
		for _, col := range extra.Columns {
			typ := etensor.FLOAT64
			if col.IsString() {
				typ = etensor.STRING
			}
			sch = append(sch, etable.Column{Name: col.Name, Type: typ})
		}
	}

	dt := &etable.Table{}
	dt.SetFromSchema(sch, len(units))
	dt.SetMetaData("name", "units")
	dur := support.TotalDuration()
	for row, id := range units {
		dt.SetCellFloat("id", row, float64(id))
		if dur > 0 {
			dt.SetCellFloat("rate", row, float64(len(trains[id]))/dur)
		}
		if extra == nil {
			continue
		}
		for _, col := range extra.Columns {
			if col.IsString() {
				dt.SetCellString(col.Name, row, col.Strings[row])
			} else {
				dt.SetCellFloat(col.Name, row, col.Floats[row])
			}
		}
	}
	return dt, nil
}

func buildFootprints(fp *record.Array, c *TsdFrame) (*etensor.Float64, error) {
	if len(fp.Shape) == 0 {
		return nil, fmt.Errorf("footprint array has no shape")
	}
	n := 1
	for _, d := range fp.Shape {
		if d < 0 {
			return nil, fmt.Errorf("negative footprint dimension %d", d)
		}
		n *= d
	}
	if n != len(fp.Values) {
		return nil, fmt.Errorf("footprint shape %v does not match %d values", fp.Shape, len(fp.Values))
	}
	if fp.Shape[0] != len(c.Columns()) {
		return nil, fmt.Errorf("%d footprints for %d trace columns", fp.Shape[0], len(c.Columns()))
	}
	tsr := etensor.NewFloat64(fp.Shape, nil, nil)
	copy(tsr.Values, fp.Values)
	return tsr, nil
}

func toEtable(name string, tbl *record.Table) (*etable.Table, error) {
	sch := make(etable.Schema, 0, len(tbl.Columns))
	for _, col := range tbl.Columns {
		typ := etensor.FLOAT64
		if col.IsString() {
			typ = etensor.STRING
		}
		sch = append(sch, etable.Column{Name: col.Name, Type: typ})
	}
	rows := tbl.Rows()
	dt := &etable.Table{}
	dt.SetFromSchema(sch, rows)
	dt.SetMetaData("name", name)
	for _, col := range tbl.Columns {
		if col.Len() != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", col.Name, col.Len(), rows)
		}
		for row := 0; row < rows; row++ {
			if col.IsString() {
				dt.SetCellString(col.Name, row, col.Strings[row])
			} else {
				dt.SetCellFloat(col.Name, row, col.Floats[row])
			}
		}
	}
	return dt, nil
}
