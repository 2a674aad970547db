package allends

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/nctest"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

func writeFixture(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, nctest.Write(filepath.Join(dir, "session.nwb"),
		nctest.Var{Name: "units.spike_times", Values: []float64{1, 2, 5, 3, 4}, Dims: []string{"spikes"}},
		nctest.Var{Name: "units.spike_times_index", Values: []int64{3, 5}, Dims: []string{"units"}},
		nctest.Var{Name: "units.id", Values: []int64{10, 20}, Dims: []string{"units"}},
		nctest.Var{Name: "epochs.start", Values: []float64{0}, Dims: []string{"epochs"}},
		nctest.Var{Name: "epochs.end", Values: []float64{10}, Dims: []string{"epochs"}},
	))

	files := map[string]string{
		"stimulus_presentations.csv": "start_time,stop_time,stimulus_name\n" +
			"0.0,1.0,gratings\n" +
			"1.0,2.0,gratings\n" +
			"3.0,4.0,flashes\n" +
			"6.0,7.0,gratings\n",
		"stimulus_conditions.csv": "stimulus_condition_id,contrast\n0,0.8\n1,0.4\n",
		"channels.csv":            "id,probe_id\n100,1\n101,1\n",
		"probes.csv":              "id,description\n1,probeA\n",
		"units.csv":               "id,firing_rate\n10,1.5\n20,2.5\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	p := New()
	assert.False(t, p.Detect(dir))

	writeFixture(t, dir)
	assert.True(t, p.Detect(dir))
}

func TestParse(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	rec, err := New().Parse(dir)
	require.NoError(t, err)

	require.Len(t, rec.Spikes, 2)
	assert.Equal(t, []float64{1, 2, 5}, rec.Spikes[10])
	assert.Equal(t, []float64{3, 4}, rec.Spikes[20])

	require.Contains(t, rec.Epochs, "session")
	assert.Equal(t, []record.Interval{{Start: 0, End: 10}}, rec.Epochs["session"])

	for _, name := range []string{"stimulus_presentations", "channels", "probes", "units"} {
		assert.Contains(t, rec.Metadata, name)
	}
	units := rec.Metadata["units"]
	require.NotNil(t, units.Col("firing_rate"))
	assert.Equal(t, []float64{1.5, 2.5}, units.Col("firing_rate").Floats)

	// touching gratings presentations merge, the later one stays apart
	require.Contains(t, rec.StimulusEpochs, "gratings")
	assert.Equal(t, []record.Interval{{Start: 0, End: 2}, {Start: 6, End: 7}},
		rec.StimulusEpochs["gratings"])
	assert.Equal(t, []record.Interval{{Start: 3, End: 4}},
		rec.StimulusEpochs["flashes"])

	// each gap opens a new numbered block
	assert.Equal(t, map[string][]record.Interval{
		"gratings.0": {{Start: 0, End: 2}},
		"gratings.1": {{Start: 6, End: 7}},
		"flashes.0":  {{Start: 3, End: 4}},
	}, rec.StimulusBlocks)
}

func TestParseWithoutSideTables(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, nctest.Write(filepath.Join(dir, "session.nwb"),
		nctest.Var{Name: "units.spike_times", Values: []float64{1}, Dims: []string{"spikes"}},
		nctest.Var{Name: "units.spike_times_index", Values: []int64{1}, Dims: []string{"units"}},
	))

	rec, err := New().Parse(dir)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, rec.Spikes[0])
	assert.Nil(t, rec.Metadata)
	assert.Nil(t, rec.StimulusEpochs)
}

func TestParseBadPresentations(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	bad := "start_time,stop_time\n0.0,1.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stimulus_presentations.csv"), []byte(bad), 0o644))

	_, err := New().Parse(dir)
	require.Error(t, err)
	var src *loader.SourceError
	require.True(t, errors.As(err, &src))
	assert.Equal(t, "stimulus_presentations.csv", src.File)
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	files, err := New().Manifest(dir)
	require.NoError(t, err)
	assert.Contains(t, files, "session.nwb")
	assert.Contains(t, files, "units.csv")
	assert.NotContains(t, files, "stimulus_parameters.csv")
}
