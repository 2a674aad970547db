// Package suite2p parses suite2p two-photon pipeline output: per-plane
// directories of .npy arrays plus an ops.json with the acquisition
// rate.
package suite2p

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/npyutil"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

var planeFiles = []string{"F.npy", "Fneu.npy", "spks.npy", "iscell.npy", "ops.json"}

// Parser reads suite2p output directories.
type Parser struct{}

// New returns the suite2p parser.
func New() *Parser { return &Parser{} }

// Tag returns "suite2p".
func (p *Parser) Tag() string { return "suite2p" }

// Detect looks for suite2p/plane0/F.npy.
func (p *Parser) Detect(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "suite2p", "plane0", "F.npy"))
	return err == nil
}

// Manifest lists every per-plane file that exists.
func (p *Parser) Manifest(dir string) ([]string, error) {
	planes, err := listPlanes(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, plane := range planes {
		for _, name := range planeFiles {
			rel := filepath.Join("suite2p", plane, name)
			if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
				files = append(files, rel)
			}
		}
	}
	return files, nil
}

// Parse reads all planes into one record. Cells rejected by the iscell
// classifier are dropped; columns are named <plane>/<cell>. Fluorescence
// becomes the trace block, neuropil and deconvolved traces become
// metadata tables.
func (p *Parser) Parse(dir string) (*record.Record, error) {
	planes, err := listPlanes(dir)
	if err != nil {
		return nil, err
	}

	var (
		times []float64
		cols  []string
		f     [][]float64
		fneu  [][]float64
		spks  [][]float64
	)
	for _, plane := range planes {
		pd := planeData{dir: dir, plane: plane}
		if err := pd.read(); err != nil {
			return nil, err
		}
		if times == nil {
			times = pd.times
		} else if len(pd.times) != len(times) {
			return nil, &loader.SourceError{
				File: filepath.Join("suite2p", plane, "F.npy"),
				Err:  fmt.Errorf("%d frames, other planes have %d", len(pd.times), len(times)),
			}
		}
		cols = append(cols, pd.cols...)
		f = append(f, pd.f...)
		fneu = append(fneu, pd.fneu...)
		spks = append(spks, pd.spks...)
	}
	if len(cols) == 0 {
		return nil, &loader.SourceError{
			File: filepath.Join("suite2p", "plane0", "iscell.npy"),
			Err:  fmt.Errorf("classifier rejected every cell"),
		}
	}

	rec := &record.Record{
		Name:     filepath.Base(dir),
		TimeUnit: record.Seconds,
		Traces:   traceBlock(times, cols, f),
	}
	rec.Metadata = map[string]*record.Table{
		"neuropil":    toTable(cols, fneu),
		"deconvolved": toTable(cols, spks),
	}
	return rec, nil
}

func listPlanes(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dir, "suite2p"))
	if err != nil {
		return nil, &loader.SourceError{File: "suite2p", Err: err}
	}
	var planes []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "plane") {
			planes = append(planes, e.Name())
		}
	}
	sort.Strings(planes)
	if len(planes) == 0 {
		return nil, &loader.SourceError{File: "suite2p", Err: fmt.Errorf("no plane directories")}
	}
	return planes, nil
}

// planeData holds one plane's kept cells, column-per-cell.
type planeData struct {
	dir   string
	plane string

	times []float64
	cols  []string
	f     [][]float64
	fneu  [][]float64
	spks  [][]float64
}

func (pd *planeData) read() error {
	f, nf, err := pd.matrix("F.npy")
	if err != nil {
		return err
	}
	fneu, _, err := pd.matrix("Fneu.npy")
	if err != nil {
		return err
	}
	spks, _, err := pd.matrix("spks.npy")
	if err != nil {
		return err
	}
	if len(fneu) != len(f) || len(spks) != len(f) {
		return pd.fail("Fneu.npy", fmt.Errorf("cell counts differ across F/Fneu/spks"))
	}

	keep, err := pd.keptCells(len(f))
	if err != nil {
		return err
	}
	fs, err := pd.samplingRate()
	if err != nil {
		return err
	}

	pd.times = make([]float64, nf)
	for i := range pd.times {
		pd.times[i] = float64(i) / fs
	}
	for _, cell := range keep {
		pd.cols = append(pd.cols, pd.plane+"/"+strconv.Itoa(cell))
		pd.f = append(pd.f, f[cell])
		pd.fneu = append(pd.fneu, fneu[cell])
		pd.spks = append(pd.spks, spks[cell])
	}
	return nil
}

// matrix reads an [ncells, T] array into per-cell rows.
func (pd *planeData) matrix(name string) ([][]float64, int, error) {
	data, shape, err := npyutil.ReadFloats(filepath.Join(pd.dir, "suite2p", pd.plane, name))
	if err != nil {
		return nil, 0, pd.fail(name, err)
	}
	if len(shape) != 2 {
		return nil, 0, pd.fail(name, fmt.Errorf("want 2-D, got shape %v", shape))
	}
	ncells, nf := shape[0], shape[1]
	rows := make([][]float64, ncells)
	for i := 0; i < ncells; i++ {
		rows[i] = data[i*nf : (i+1)*nf]
	}
	return rows, nf, nil
}

func (pd *planeData) keptCells(ncells int) ([]int, error) {
	data, shape, err := npyutil.ReadFloats(filepath.Join(pd.dir, "suite2p", pd.plane, "iscell.npy"))
	if err != nil {
		return nil, pd.fail("iscell.npy", err)
	}
	if len(shape) != 2 || shape[0] != ncells || shape[1] < 1 {
		return nil, pd.fail("iscell.npy", fmt.Errorf("shape %v does not match %d cells", shape, ncells))
	}
	var keep []int
	for i := 0; i < ncells; i++ {
		if data[i*shape[1]] != 0 {
			keep = append(keep, i)
		}
	}
	return keep, nil
}

func (pd *planeData) samplingRate() (float64, error) {
	path := filepath.Join(pd.dir, "suite2p", pd.plane, "ops.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, pd.fail("ops.json", err)
	}
	var ops struct {
		FS float64 `json:"fs"`
	}
	if err := json.Unmarshal(raw, &ops); err != nil {
		return 0, pd.fail("ops.json", err)
	}
	if ops.FS <= 0 {
		return 0, pd.fail("ops.json", fmt.Errorf("fs must be positive, got %g", ops.FS))
	}
	return ops.FS, nil
}

func (pd *planeData) fail(name string, err error) error {
	return &loader.SourceError{File: filepath.Join("suite2p", pd.plane, name), Err: err}
}

func traceBlock(times []float64, cols []string, rows [][]float64) *record.Traces {
	values := make([]float64, len(times)*len(cols))
	for j, row := range rows {
		for i, v := range row {
			values[i*len(cols)+j] = v
		}
	}
	return &record.Traces{Times: times, Columns: cols, Values: values}
}

func toTable(cols []string, rows [][]float64) *record.Table {
	tcols := make([]record.Column, len(cols))
	for i, name := range cols {
		vals := make([]float64, len(rows[i]))
		copy(vals, rows[i])
		tcols[i] = record.Column{Name: name, Floats: vals}
	}
	tbl, _ := record.NewTable(tcols...)
	return tbl
}
