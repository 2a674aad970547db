package cnmfe

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/ncutil"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

const minianName = "minian.nc"

// Minian reads minian netCDF output: C traces, A footprints and the
// acquisition frame rate.
type Minian struct{}

// NewMinian returns the minian parser.
func NewMinian() *Minian { return &Minian{} }

// Tag returns "minian".
func (p *Minian) Tag() string { return "minian" }

// Detect looks for minian.nc.
func (p *Minian) Detect(dir string) bool {
	st, err := os.Stat(filepath.Join(dir, minianName))
	return err == nil && !st.IsDir()
}

// Manifest lists the dataset file.
func (p *Minian) Manifest(dir string) ([]string, error) {
	return []string{minianName}, nil
}

// Parse reads the dataset. Frame indices divided by fps give seconds.
func (p *Minian) Parse(dir string) (*record.Record, error) {
	rec, err := readCalcium(filepath.Join(dir, minianName), "fps")
	if err != nil {
		return nil, &loader.SourceError{File: minianName, Err: err}
	}
	rec.Name = filepath.Base(dir)
	return rec, nil
}

// readCalcium reads a C/A/rate container. C is stored [unit, frame] and
// transposed into the row-major frame-by-unit trace block.
func readCalcium(path, rateVar string) (*record.Record, error) {
	g, err := ncutil.Open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	fps, err := ncutil.Scalar(g, rateVar)
	if err != nil {
		return nil, err
	}
	if fps <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %g", rateVar, fps)
	}

	nunits, nframes, c, err := ncutil.Matrix(g, "C")
	if err != nil {
		return nil, err
	}

	times := make([]float64, nframes)
	for i := range times {
		times[i] = float64(i) / fps
	}
	cols := make([]string, nunits)
	values := make([]float64, nframes*nunits)
	for u := 0; u < nunits; u++ {
		cols[u] = strconv.Itoa(u)
		for f := 0; f < nframes; f++ {
			values[f*nunits+u] = c[u*nframes+f]
		}
	}
	rec := &record.Record{
		TimeUnit: record.Seconds,
		Traces:   &record.Traces{Times: times, Columns: cols, Values: values},
	}

	if ncutil.Has(g, "A") {
		shape, a, err := ncutil.Cube(g, "A")
		if err != nil {
			return nil, err
		}
		if shape[0] != nunits {
			return nil, fmt.Errorf("%d footprints for %d units", shape[0], nunits)
		}
		rec.Footprints = &record.Array{Shape: shape, Values: a}
	}
	return rec, nil
}
