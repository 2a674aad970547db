// Package cnmfe parses calcium-imaging source-extraction outputs:
// Inscopix CNMF-E CSV exports, minian netCDF datasets, and MATLAB
// CNMF-E result files.
package cnmfe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nwbmatic/nwbmatic/internal/csvutil"
	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/npyutil"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

const (
	tracesName     = "traces.csv"
	footprintsName = "footprints.npy"
)

// Inscopix reads Inscopix CNMF-E exports: a traces CSV with a time
// column followed by one column per cell, and a footprints stack.
type Inscopix struct{}

// NewInscopix returns the inscopix-cnmfe parser.
func NewInscopix() *Inscopix { return &Inscopix{} }

// Tag returns "inscopix-cnmfe".
func (p *Inscopix) Tag() string { return "inscopix-cnmfe" }

// Detect requires both the traces CSV and the footprints stack.
func (p *Inscopix) Detect(dir string) bool {
	for _, name := range []string{tracesName, footprintsName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Manifest lists the two export files.
func (p *Inscopix) Manifest(dir string) ([]string, error) {
	return []string{tracesName, footprintsName}, nil
}

// Parse reads the traces and footprints. Times are in seconds.
func (p *Inscopix) Parse(dir string) (*record.Record, error) {
	traces, err := readInscopixTraces(filepath.Join(dir, tracesName))
	if err != nil {
		return nil, &loader.SourceError{File: tracesName, Err: err}
	}
	footprints, err := readFootprints(filepath.Join(dir, footprintsName), len(traces.Columns))
	if err != nil {
		return nil, &loader.SourceError{File: footprintsName, Err: err}
	}
	return &record.Record{
		Name:       filepath.Base(dir),
		TimeUnit:   record.Seconds,
		Traces:     traces,
		Footprints: footprints,
	}, nil
}

func readInscopixTraces(path string) (*record.Traces, error) {
	rows, err := csvutil.ReadTable(path)
	if err != nil {
		return nil, err
	}
	if len(rows.Header) < 2 || rows.Header[0] != "time" {
		return nil, fmt.Errorf("header must start with time followed by cell columns")
	}
	times, err := rows.FloatColumn("time")
	if err != nil {
		return nil, err
	}
	cols := rows.Header[1:]
	values := make([]float64, len(times)*len(cols))
	for j, name := range cols {
		col, err := rows.FloatColumn(name)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			values[i*len(cols)+j] = v
		}
	}
	return &record.Traces{Times: times, Columns: cols, Values: values}, nil
}

func readFootprints(path string, ncells int) (*record.Array, error) {
	data, shape, err := npyutil.ReadFloats(path)
	if err != nil {
		return nil, err
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("footprints must be 3-D, got shape %v", shape)
	}
	if shape[0] != ncells {
		return nil, fmt.Errorf("%d footprints for %d trace columns", shape[0], ncells)
	}
	return &record.Array{Shape: shape, Values: data}, nil
}
