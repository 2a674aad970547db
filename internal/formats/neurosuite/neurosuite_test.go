package neurosuite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/record"
)

const paramXML = `<?xml version='1.0'?>
<parameters version="1.0">
 <acquisitionSystem>
  <nBits>16</nBits>
  <nChannels>32</nChannels>
  <samplingRate>20000</samplingRate>
 </acquisitionSystem>
 <spikeDetection>
  <channelGroups>
   <group><channels><channel>0</channel><channel>1</channel></channels></group>
   <group><channels><channel>2</channel><channel>3</channel></channels></group>
  </channelGroups>
 </spikeDetection>
</parameters>
`

// fixtureDir writes a two-group neurosuite session sampled at 20 kHz.
//
// Group 1: clusters 2 and 3 (units 0 and 1).
// Group 2: cluster 2 (unit 2).
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, data string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("A2929-200711.xml", paramXML)
	// Samples at 20 kHz: 20000 samples = 1 s.
	write("A2929-200711.res.1", "20000\n40000\n60000\n80000\n")
	write("A2929-200711.clu.1", "4\n2\n3\n2\n3\n")
	write("A2929-200711.res.2", "30000\n90000\n")
	write("A2929-200711.clu.2", "3\n2\n2\n")
	write("epochs.csv", "name,start,end\nwake,0,3\nsleep,4.5,6\n")
	write("tracking.csv", "t,x,ry\n0.5,1.0,0.1\n1.5,2.0,0.2\n7.0,9.9,0.9\n")
	return dir
}

func TestDetect(t *testing.T) {
	p := New()
	if !p.Detect(fixtureDir(t)) {
		t.Fatal("fixture not detected")
	}
	if p.Detect(t.TempDir()) {
		t.Fatal("empty directory detected")
	}
}

func TestParse(t *testing.T) {
	p := New()
	rec, err := p.Parse(fixtureDir(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if rec.Name != "A2929-200711" {
		t.Fatalf("Name = %q", rec.Name)
	}
	if rec.TimeUnit != record.Seconds {
		t.Fatalf("TimeUnit = %q", rec.TimeUnit)
	}
	if len(rec.Spikes) != 3 {
		t.Fatalf("units = %d, want 3", len(rec.Spikes))
	}

	// Unit 0 is group 1 cluster 2: samples 20000 and 60000 -> 1s, 3s.
	if got := rec.Spikes[0]; len(got) != 2 || got[0] != 1.0 || got[1] != 3.0 {
		t.Fatalf("unit 0 = %v", got)
	}
	// Unit 1 is group 1 cluster 3: 2s; the 4s spike falls in the gap
	// between epochs and is restricted away.
	if got := rec.Spikes[1]; len(got) != 1 || got[0] != 2.0 {
		t.Fatalf("unit 1 = %v", got)
	}
	// Unit 2 is group 2 cluster 2: 1.5s; 4.5s survives inside sleep.
	if got := rec.Spikes[2]; len(got) != 2 || got[0] != 1.5 || got[1] != 4.5 {
		t.Fatalf("unit 2 = %v", got)
	}

	groups := rec.UnitMeta.Col("group")
	if groups == nil || len(groups.Floats) != 3 {
		t.Fatalf("unit meta = %+v", rec.UnitMeta)
	}
	if groups.Floats[0] != 1 || groups.Floats[1] != 1 || groups.Floats[2] != 2 {
		t.Fatalf("groups = %v", groups.Floats)
	}

	if len(rec.Epochs["wake"]) != 1 || rec.Epochs["wake"][0].End != 3 {
		t.Fatalf("epochs = %+v", rec.Epochs)
	}

	// Tracking row at t=7 lies outside both epochs and is dropped.
	if rec.Position == nil {
		t.Fatal("no position")
	}
	if len(rec.Position.Times) != 2 {
		t.Fatalf("position times = %v", rec.Position.Times)
	}
	if rec.Position.Columns[1] != "ry" || rec.Position.At(1, 1) != 0.2 {
		t.Fatalf("position = %+v", rec.Position)
	}
}

func TestParseSidecarOverrides(t *testing.T) {
	dir := fixtureDir(t)
	sidecar := "name: custom\nsampling_rate: 10000\nepochs:\n  - {name: all, start: 0, end: 20}\ntracking_columns: [px, angle]\n"
	if err := os.WriteFile(filepath.Join(dir, "nwbmatic.yaml"), []byte(sidecar), 0o644); err != nil {
		t.Fatal(err)
	}

	rec, err := New().Parse(dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Name != "custom" {
		t.Fatalf("Name = %q", rec.Name)
	}
	// Half the rate doubles every spike time: first unit-0 spike at 2s.
	if got := rec.Spikes[0]; got[0] != 2.0 {
		t.Fatalf("unit 0 first spike = %v, want rate override applied", got[0])
	}
	if _, ok := rec.Epochs["all"]; !ok || len(rec.Epochs) != 1 {
		t.Fatalf("epochs = %+v, want sidecar epochs", rec.Epochs)
	}
	if rec.Position.Columns[0] != "px" || rec.Position.Columns[1] != "angle" {
		t.Fatalf("columns = %v", rec.Position.Columns)
	}
}

func TestParseMismatchedCluFile(t *testing.T) {
	dir := fixtureDir(t)
	if err := os.WriteFile(filepath.Join(dir, "A2929-200711.clu.1"), []byte("4\n2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New().Parse(dir)
	var serr *loader.SourceError
	if !errors.As(err, &serr) {
		t.Fatalf("want SourceError, got %v", err)
	}
	if serr.File != "A2929-200711.clu.1" {
		t.Fatalf("File = %q", serr.File)
	}
}

func TestParseNoSamplingRate(t *testing.T) {
	dir := t.TempDir()
	xml := "<parameters><acquisitionSystem><nChannels>8</nChannels></acquisitionSystem></parameters>"
	if err := os.WriteFile(filepath.Join(dir, "s.xml"), []byte(xml), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "s.res.1"), []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "s.clu.1"), []byte("3\n2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New().Parse(dir)
	if err == nil {
		t.Fatal("expected missing sampling rate error")
	}
}

func TestManifestCoversSpikeFiles(t *testing.T) {
	dir := fixtureDir(t)
	files, err := New().Manifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{}
	for _, f := range files {
		want[f] = true
	}
	for _, f := range []string{
		"A2929-200711.xml", "A2929-200711.res.1", "A2929-200711.clu.2",
		"epochs.csv", "tracking.csv",
	} {
		if !want[f] {
			t.Fatalf("manifest missing %s (have %v)", f, files)
		}
	}
}

func TestReadIntLinesRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.res.1")
	if err := os.WriteFile(path, []byte("12\nxyz\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readIntLines(path); err == nil {
		t.Fatal("expected parse error")
	}
}
