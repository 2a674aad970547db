// Package phy parses phy/kilosort spike-sorting output: a params.py
// description plus spike_times.npy / spike_clusters.npy, with the
// optional cluster_group.tsv curation labels.
package phy

import (
	"bufio"
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

const (
	paramsFile   = "params.py"
	timesFile    = "spike_times.npy"
	clustersFile = "spike_clusters.npy"
	groupsFile   = "cluster_group.tsv"
)

// Parser reads phy session directories.
type Parser struct{}

// New returns the phy parser.
func New() *Parser { return &Parser{} }

// Tag returns "phy".
func (p *Parser) Tag() string { return "phy" }

// Detect looks for params.py.
func (p *Parser) Detect(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, paramsFile))
	return err == nil
}

// Manifest lists the phy output files.
func (p *Parser) Manifest(dir string) ([]string, error) {
	return []string{paramsFile, timesFile, clustersFile, groupsFile}, nil
}

// Parse reads the directory. Spike times are stored as sample counts
// and converted to seconds with the params.py sample_rate.
func (p *Parser) Parse(dir string) (*record.Record, error) {
	params, err := readParams(filepath.Join(dir, paramsFile))
	if err != nil {
		return nil, &loader.SourceError{File: paramsFile, Err: err}
	}
	rate, err := strconv.ParseFloat(params["sample_rate"], 64)
	if err != nil || rate <= 0 {
		return nil, &loader.SourceError{
			File: paramsFile,
			Err:  fmt.Errorf("bad or missing sample_rate %q", params["sample_rate"]),
		}
	}

	samples, _, err := npyutil.ReadInts(filepath.Join(dir, timesFile))
	if err != nil {
		return nil, &loader.SourceError{File: timesFile, Err: err}
	}
	clusters, _, err := npyutil.ReadInts(filepath.Join(dir, clustersFile))
	if err != nil {
		return nil, &loader.SourceError{File: clustersFile, Err: err}
	}
	if len(samples) != len(clusters) {
		return nil, &loader.SourceError{
			File: clustersFile,
			Err:  fmt.Errorf("%d cluster labels for %d spikes", len(clusters), len(samples)),
		}
	}

	labels, err := readClusterGroups(filepath.Join(dir, groupsFile))
	if err != nil {
		return nil, &loader.SourceError{File: groupsFile, Err: err}
	}

	byCluster := make(map[int][]float64)
	for i, c := range clusters {
		if labels != nil && labels[int(c)] == "noise" {
			continue
		}
		byCluster[int(c)] = append(byCluster[int(c)], float64(samples[i])/rate)
	}

	ids := make([]int, 0, len(byCluster))
	for c := range byCluster {
		ids = append(ids, c)
	}
	sort.Ints(ids)

	rec := &record.Record{
		Name:     filepath.Base(dir),
		TimeUnit: record.Seconds,
		Spikes:   make(map[int][]float64, len(ids)),
	}
	labelCol := make([]string, len(ids))
	for i, c := range ids {
		train := byCluster[c]
		sort.Float64s(train) // kilosort output is usually sorted, but not guaranteed
		rec.Spikes[c] = train
		if labels != nil {
			labelCol[i] = labels[c]
		}
	}
	if labels != nil {
		meta, err := record.NewTable(record.Column{Name: "label", Strings: labelCol})
		if err != nil {
			return nil, err
		}
		rec.UnitMeta = meta
	}
	return rec, nil
}

// readParams parses the "key = value" lines of params.py, stripping
// quotes and comments. Python syntax beyond flat assignments is not
// needed for phy output.
func readParams(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	params := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		if i := strings.IndexByte(val, '#'); i >= 0 {
			val = strings.TrimSpace(val[:i])
		}
		val = strings.Trim(val, `'"`)
		params[strings.TrimSpace(key)] = val
	}
	return params, sc.Err()
}

// readClusterGroups reads the optional curation labels; a missing file
// yields nil (keep every cluster).
func readClusterGroups(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	labels := make(map[int]string)
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first { // header row
			first = false
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("bad row %q", line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("bad cluster id %q", fields[0])
		}
		labels[id] = fields[1]
	}
	return labels, sc.Err()
}
