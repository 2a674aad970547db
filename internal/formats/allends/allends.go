// Package allends parses AllenSDK ecephys session exports: a
// session.nwb container next to the CSV tables the SDK writes out
// (stimulus presentations, conditions, channels, probes, units).
package allends

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/nwbmatic/nwbmatic/internal/csvutil"
	"github.com/nwbmatic/nwbmatic/internal/formats/nwb"
	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/ncutil"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

const containerName = "session.nwb"

// metadataFiles are the SDK side tables; each present file becomes a
// metadata table keyed by its basename without extension.
var metadataFiles = []string{
	"stimulus_presentations.csv",
	"stimulus_conditions.csv",
	"stimulus_parameters.csv",
	"channels.csv",
	"probes.csv",
	"units.csv",
}

// Parser reads AllenSDK session directories.
type Parser struct{}

// New returns the allends parser.
func New() *Parser { return &Parser{} }

// Tag returns "allends".
func (p *Parser) Tag() string { return "allends" }

// Detect looks for session.nwb.
func (p *Parser) Detect(dir string) bool {
	st, err := os.Stat(filepath.Join(dir, containerName))
	return err == nil && !st.IsDir()
}

// Manifest lists the container plus whichever side tables exist.
func (p *Parser) Manifest(dir string) ([]string, error) {
	files := []string{containerName}
	for _, name := range metadataFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			files = append(files, name)
		}
	}
	return files, nil
}

// Parse reads the container and side tables. Times are in seconds.
func (p *Parser) Parse(dir string) (*record.Record, error) {
	rec := &record.Record{
		Name:     filepath.Base(dir),
		TimeUnit: record.Seconds,
	}

	g, err := ncutil.Open(filepath.Join(dir, containerName))
	if err != nil {
		return nil, &loader.SourceError{File: containerName, Err: err}
	}
	defer g.Close()

	if err := nwb.ReadSpikes(g, rec); err != nil {
		return nil, &loader.SourceError{File: containerName, Err: err}
	}
	if err := readSessionEpoch(g, rec); err != nil {
		return nil, &loader.SourceError{File: containerName, Err: err}
	}
	if err := readTables(dir, rec); err != nil {
		return nil, err
	}
	if err := readStimuli(rec); err != nil {
		return nil, &loader.SourceError{File: "stimulus_presentations.csv", Err: err}
	}
	return rec, nil
}

// readSessionEpoch turns the flat epochs.start/epochs.end pair into a
// single "session" epoch.
func readSessionEpoch(g api.Group, rec *record.Record) error {
	if !ncutil.Has(g, "epochs.start") {
		return nil
	}
	starts, err := ncutil.Floats(g, "epochs.start")
	if err != nil {
		return err
	}
	ends, err := ncutil.Floats(g, "epochs.end")
	if err != nil {
		return err
	}
	if len(starts) != len(ends) {
		return fmt.Errorf("%d epoch starts for %d ends", len(starts), len(ends))
	}
	ivs := make([]record.Interval, len(starts))
	for i := range starts {
		ivs[i] = record.Interval{Start: starts[i], End: ends[i]}
	}
	rec.Epochs = map[string][]record.Interval{"session": ivs}
	return nil
}

func readTables(dir string, rec *record.Record) error {
	for _, name := range metadataFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		rows, err := csvutil.ReadTable(path)
		if err != nil {
			return &loader.SourceError{File: name, Err: err}
		}
		tbl, err := rows.ToTable()
		if err != nil {
			return &loader.SourceError{File: name, Err: err}
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]*record.Table{}
		}
		rec.Metadata[strings.TrimSuffix(name, ".csv")] = tbl
	}
	return nil
}

// readStimuli groups the presentation table by stimulus name into merged
// interval sets, plus one entry per contiguous presentation block.
func readStimuli(rec *record.Record) error {
	tbl, ok := rec.Metadata["stimulus_presentations"]
	if !ok {
		return nil
	}
	starts := tbl.Col("start_time")
	stops := tbl.Col("stop_time")
	names := tbl.Col("stimulus_name")
	if starts == nil || stops == nil || names == nil {
		return fmt.Errorf("missing start_time, stop_time or stimulus_name column")
	}
	if starts.Floats == nil || stops.Floats == nil || names.Strings == nil {
		return fmt.Errorf("start_time/stop_time must be numeric and stimulus_name textual")
	}

	grouped := map[string][]record.Interval{}
	for i := range names.Strings {
		name := names.Strings[i]
		grouped[name] = append(grouped[name], record.Interval{
			Start: starts.Floats[i],
			End:   stops.Floats[i],
		})
	}
	rec.StimulusEpochs = make(map[string][]record.Interval, len(grouped))
	rec.StimulusBlocks = map[string][]record.Interval{}
	for name, ivs := range grouped {
		merged := record.MergeIntervals(ivs)
		rec.StimulusEpochs[name] = merged
		// Presentations separated by a gap form distinct blocks, so each
		// merged interval is one block.
		for k, iv := range merged {
			rec.StimulusBlocks[fmt.Sprintf("%s.%d", name, k)] = []record.Interval{iv}
		}
	}
	return nil
}
