// Package nwb parses NWB session containers, including the
// pynapplenwb/ layout the original nwbmatic pipeline writes. The
// container is opened by magic sniffing, so HDF5-backed .nwb files and
// classic-CDF fixtures read identically.
//
// Expected variables:
//
//	units.spike_times        all spike times, concatenated
//	units.spike_times_index  exclusive end offset per unit
//	units.id                 unit identifiers (optional; defaults 0..n-1)
//	position.t               shared time index for position traces (optional)
//	position.<name>          one variable per position trace
//	epochs.<name>.start/.end interval bounds per epoch (optional)
package nwb

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/ncutil"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

const cacheSubdir = "pynapplenwb"

// Parser reads NWB session directories.
type Parser struct{}

// New returns the nwb parser.
func New() *Parser { return &Parser{} }

// Tag returns "nwb".
func (p *Parser) Tag() string { return "nwb" }

// Detect looks for a pynapplenwb/ subdirectory or any top-level .nwb
// file.
func (p *Parser) Detect(dir string) bool {
	_, err := findContainer(dir)
	return err == nil
}

// Manifest lists the container file.
func (p *Parser) Manifest(dir string) ([]string, error) {
	path, err := findContainer(dir)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return nil, err
	}
	return []string{rel}, nil
}

// Parse reads the container into an intermediate record. NWB times are
// already in seconds.
func (p *Parser) Parse(dir string) (*record.Record, error) {
	path, err := findContainer(dir)
	if err != nil {
		return nil, err
	}
	rel, _ := filepath.Rel(dir, path)

	g, err := ncutil.Open(path)
	if err != nil {
		return nil, &loader.SourceError{File: rel, Err: err}
	}
	defer g.Close()

	rec := &record.Record{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		TimeUnit: record.Seconds,
	}
	if err := ReadSpikes(g, rec); err != nil {
		return nil, &loader.SourceError{File: rel, Err: err}
	}
	if err := readPosition(g, rec); err != nil {
		return nil, &loader.SourceError{File: rel, Err: err}
	}
	if err := readEpochs(g, rec); err != nil {
		return nil, &loader.SourceError{File: rel, Err: err}
	}
	return rec, nil
}

func findContainer(dir string) (string, error) {
	for _, pattern := range []string{
		filepath.Join(dir, cacheSubdir, "*.nwb"),
		filepath.Join(dir, "*.nwb"),
	} {
		matches, err := filepath.Glob(pattern)
		if err == nil && len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no .nwb container in %s", dir)
}

// ReadSpikes decodes the units ragged array (spike_times plus the
// per-unit end offsets). Shared with the allends parser, which stores
// spikes the same way.
func ReadSpikes(g api.Group, rec *record.Record) error {
	if !ncutil.Has(g, "units.spike_times") {
		return nil
	}
	times, err := ncutil.Floats(g, "units.spike_times")
	if err != nil {
		return err
	}
	index, err := ncutil.Ints(g, "units.spike_times_index")
	if err != nil {
		return err
	}

	ids := make([]int64, len(index))
	for i := range ids {
		ids[i] = int64(i)
	}
	if ncutil.Has(g, "units.id") {
		if ids, err = ncutil.Ints(g, "units.id"); err != nil {
			return err
		}
		if len(ids) != len(index) {
			return fmt.Errorf("%d unit ids for %d index entries", len(ids), len(index))
		}
	}

	rec.Spikes = make(map[int][]float64, len(index))
	start := int64(0)
	for i, end := range index {
		if end < start || end > int64(len(times)) {
			return fmt.Errorf("unit %d: bad spike_times_index %d", i, end)
		}
		train := make([]float64, end-start)
		copy(train, times[start:end])
		rec.Spikes[int(ids[i])] = train
		start = end
	}
	return nil
}

func readPosition(g api.Group, rec *record.Record) error {
	if !ncutil.Has(g, "position.t") {
		return nil
	}
	times, err := ncutil.Floats(g, "position.t")
	if err != nil {
		return err
	}

	var cols []string
	for _, name := range ncutil.List(g) {
		if strings.HasPrefix(name, "position.") && name != "position.t" {
			cols = append(cols, strings.TrimPrefix(name, "position."))
		}
	}
	sort.Strings(cols)
	if len(cols) == 0 {
		return nil
	}

	values := make([]float64, len(times)*len(cols))
	for j, col := range cols {
		trace, err := ncutil.Floats(g, "position."+col)
		if err != nil {
			return err
		}
		if len(trace) != len(times) {
			return fmt.Errorf("position trace %q has %d samples for %d times", col, len(trace), len(times))
		}
		for i, v := range trace {
			values[i*len(cols)+j] = v
		}
	}
	rec.Position = &record.Traces{Times: times, Columns: cols, Values: values}
	return nil
}

func readEpochs(g api.Group, rec *record.Record) error {
	names := map[string]bool{}
	for _, v := range ncutil.List(g) {
		if strings.HasPrefix(v, "epochs.") && strings.HasSuffix(v, ".start") {
			names[strings.TrimSuffix(strings.TrimPrefix(v, "epochs."), ".start")] = true
		}
	}
	if len(names) == 0 {
		return nil
	}
	rec.Epochs = make(map[string][]record.Interval, len(names))
	for name := range names {
		starts, err := ncutil.Floats(g, "epochs."+name+".start")
		if err != nil {
			return err
		}
		ends, err := ncutil.Floats(g, "epochs."+name+".end")
		if err != nil {
			return err
		}
		if len(starts) != len(ends) {
			return fmt.Errorf("epoch %q: %d starts for %d ends", name, len(starts), len(ends))
		}
		ivs := make([]record.Interval, len(starts))
		for i := range starts {
			ivs[i] = record.Interval{Start: starts[i], End: ends[i]}
		}
		rec.Epochs[name] = ivs
	}
	return nil
}
