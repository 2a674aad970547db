// Package neurosuite parses spike-sorting output from the neurosuite
// tool chain: a <base>.xml parameter file plus <base>.res.N /
// <base>.clu.N spike files per electrode group, with optional
// epochs.csv and tracking.csv companions.
package neurosuite

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nwbmatic/nwbmatic/internal/config"
	"github.com/nwbmatic/nwbmatic/internal/csvutil"
	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

const (
	epochsFile   = "epochs.csv"
	trackingFile = "tracking.csv"
)

// Parser reads neurosuite session directories.
type Parser struct{}

// New returns the neurosuite parser.
func New() *Parser { return &Parser{} }

// Tag returns "neurosuite".
func (p *Parser) Tag() string { return "neurosuite" }

// Detect looks for a parameter file alongside at least one .res file.
func (p *Parser) Detect(dir string) bool {
	if _, err := findParamFile(dir); err != nil {
		return false
	}
	res, _ := filepath.Glob(filepath.Join(dir, "*.res.*"))
	return len(res) > 0
}

// Manifest lists the parameter file, every spike file, and the optional
// companions.
func (p *Parser) Manifest(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.xml", "*.res.*", "*.clu.*"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			files = append(files, filepath.Base(m))
		}
	}
	files = append(files, epochsFile, trackingFile, config.FileName)
	return files, nil
}

// Parse reads the directory into an intermediate record. All times are
// converted from sample counts to seconds using the acquisition rate.
func (p *Parser) Parse(dir string) (*record.Record, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, &loader.SourceError{File: config.FileName, Err: err}
	}

	xmlPath, err := findParamFile(dir)
	if err != nil {
		return nil, err
	}
	params, err := readSessionXML(xmlPath)
	if err != nil {
		return nil, &loader.SourceError{File: filepath.Base(xmlPath), Err: err}
	}
	rate := params.Acquisition.SamplingRate
	if cfg != nil && cfg.SamplingRate > 0 {
		rate = cfg.SamplingRate
	}
	if rate <= 0 {
		return nil, &loader.SourceError{
			File: filepath.Base(xmlPath),
			Err:  fmt.Errorf("no sampling rate declared"),
		}
	}

	rec := &record.Record{TimeUnit: record.Seconds}
	base := strings.TrimSuffix(filepath.Base(xmlPath), ".xml")
	rec.Name = base
	if cfg != nil && cfg.Name != "" {
		rec.Name = cfg.Name
	}

	if err := p.readEpochs(dir, cfg, rec); err != nil {
		return nil, err
	}
	support := record.MergeIntervals(flattenEpochs(rec.Epochs))

	if err := p.readSpikes(dir, base, rate, support, rec); err != nil {
		return nil, err
	}
	if err := p.readTracking(dir, cfg, support, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func findParamFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no neurosuite parameter file (*.xml) in %s", dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

func (p *Parser) readEpochs(dir string, cfg *config.Session, rec *record.Record) error {
	if cfg != nil && len(cfg.Epochs) > 0 {
		rec.Epochs = make(map[string][]record.Interval)
		for _, ep := range cfg.Epochs {
			rec.Epochs[ep.Name] = append(rec.Epochs[ep.Name],
				record.Interval{Start: ep.Start, End: ep.End})
		}
		return nil
	}

	path := filepath.Join(dir, epochsFile)
	if _, err := os.Stat(path); err != nil {
		return nil // epochs are optional
	}
	rows, err := csvutil.ReadTable(path)
	if err != nil {
		return &loader.SourceError{File: epochsFile, Err: err}
	}
	names, err := rows.StringColumn("name")
	if err != nil {
		return &loader.SourceError{File: epochsFile, Err: err}
	}
	starts, err := rows.FloatColumn("start")
	if err != nil {
		return &loader.SourceError{File: epochsFile, Err: err}
	}
	ends, err := rows.FloatColumn("end")
	if err != nil {
		return &loader.SourceError{File: epochsFile, Err: err}
	}
	rec.Epochs = make(map[string][]record.Interval)
	for i, name := range names {
		rec.Epochs[name] = append(rec.Epochs[name],
			record.Interval{Start: starts[i], End: ends[i]})
	}
	return nil
}

// readSpikes walks the <base>.res.N/<base>.clu.N pairs in group order.
// Clusters 0 and 1 are the neurosuite noise/MUA clusters and are
// dropped; the remaining clusters become units numbered sequentially
// across groups.
func (p *Parser) readSpikes(dir, base string, rate float64, support []record.Interval, rec *record.Record) error {
	resFiles, err := filepath.Glob(filepath.Join(dir, base+".res.*"))
	if err != nil || len(resFiles) == 0 {
		return &loader.SourceError{
			File: base + ".res.*",
			Err:  fmt.Errorf("no spike timestamp files"),
		}
	}
	groups := make([]int, 0, len(resFiles))
	for _, f := range resFiles {
		n, err := strconv.Atoi(strings.TrimPrefix(filepath.Ext(f), "."))
		if err != nil {
			continue
		}
		groups = append(groups, n)
	}
	sort.Ints(groups)

	rec.Spikes = make(map[int][]float64)
	var metaGroups []float64
	unitID := 0
	for _, g := range groups {
		resName := fmt.Sprintf("%s.res.%d", base, g)
		cluName := fmt.Sprintf("%s.clu.%d", base, g)

		res, err := readIntLines(filepath.Join(dir, resName))
		if err != nil {
			return &loader.SourceError{File: resName, Err: err}
		}
		clu, err := readIntLines(filepath.Join(dir, cluName))
		if err != nil {
			return &loader.SourceError{File: cluName, Err: err}
		}
		if len(clu) == 0 {
			return &loader.SourceError{File: cluName, Err: fmt.Errorf("empty cluster file")}
		}
		nclu, clu := clu[0], clu[1:]
		if len(clu) != len(res) {
			return &loader.SourceError{
				File: cluName,
				Err:  fmt.Errorf("%d cluster labels for %d spikes", len(clu), len(res)),
			}
		}

		byCluster := make(map[int][]float64)
		for i, c := range clu {
			if c < 2 { // noise and MUA
				continue
			}
			if c >= nclu {
				return &loader.SourceError{
					File: cluName,
					Err:  fmt.Errorf("cluster id %d out of range (%d declared)", c, nclu),
				}
			}
			byCluster[c] = append(byCluster[c], float64(res[i])/rate)
		}

		clusters := make([]int, 0, len(byCluster))
		for c := range byCluster {
			clusters = append(clusters, c)
		}
		sort.Ints(clusters)
		for _, c := range clusters {
			rec.Spikes[unitID] = record.Restrict(byCluster[c], support)
			metaGroups = append(metaGroups, float64(g))
			unitID++
		}
	}

	meta, err := record.NewTable(record.Column{Name: "group", Floats: metaGroups})
	if err != nil {
		return err
	}
	rec.UnitMeta = meta
	return nil
}

func (p *Parser) readTracking(dir string, cfg *config.Session, support []record.Interval, rec *record.Record) error {
	path := filepath.Join(dir, trackingFile)
	if _, err := os.Stat(path); err != nil {
		return nil // position is optional
	}
	rows, err := csvutil.ReadTable(path)
	if err != nil {
		return &loader.SourceError{File: trackingFile, Err: err}
	}
	if len(rows.Header) < 2 {
		return &loader.SourceError{
			File: trackingFile,
			Err:  fmt.Errorf("need a time column plus at least one trace"),
		}
	}
	times, err := rows.FloatColumn(rows.Header[0])
	if err != nil {
		return &loader.SourceError{File: trackingFile, Err: err}
	}

	cols := rows.Header[1:]
	if cfg != nil && len(cfg.TrackingColumns) > 0 {
		if len(cfg.TrackingColumns) != len(cols) {
			return &loader.SourceError{
				File: config.FileName,
				Err: fmt.Errorf("%d tracking_columns for %d file columns",
					len(cfg.TrackingColumns), len(cols)),
			}
		}
		cols = cfg.TrackingColumns
	}

	values := make([]float64, 0, len(times)*len(cols))
	keptTimes := make([]float64, 0, len(times))
	for i, t := range times {
		if len(support) > 0 && len(record.Restrict([]float64{t}, support)) == 0 {
			continue
		}
		keptTimes = append(keptTimes, t)
		for j := range cols {
			v, err := strconv.ParseFloat(rows.Records[i][j+1], 64)
			if err != nil {
				return &loader.SourceError{
					File: trackingFile,
					Err:  fmt.Errorf("row %d column %q: %w", i, cols[j], err),
				}
			}
			values = append(values, v)
		}
	}
	rec.Position = &record.Traces{Times: keptTimes, Columns: cols, Values: values}
	return nil
}

func flattenEpochs(epochs map[string][]record.Interval) []record.Interval {
	var all []record.Interval
	for _, ivs := range epochs {
		all = append(all, ivs...)
	}
	return all
}

func readIntLines(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []int
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", len(out)+1, err)
		}
		out = append(out, n)
	}
	return out, sc.Err()
}
