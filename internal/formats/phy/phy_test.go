package phy

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/npytest"
)

// fixtureDir writes a phy session at 20 kHz with clusters 0 (noise,
// curated away), 3 and 7.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	params := "dat_path = 'raw.dat'\nn_channels_dat = 32\nsample_rate = 20000.\nhp_filtered = False\n"
	if err := os.WriteFile(filepath.Join(dir, "params.py"), []byte(params), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := npytest.WriteInts(filepath.Join(dir, "spike_times.npy"),
		[]int{6}, []int64{10000, 20000, 30000, 40000, 60000, 80000}); err != nil {
		t.Fatal(err)
	}
	if err := npytest.WriteInts(filepath.Join(dir, "spike_clusters.npy"),
		[]int{6}, []int64{3, 0, 3, 7, 0, 7}); err != nil {
		t.Fatal(err)
	}
	tsv := "cluster_id\tgroup\n0\tnoise\n3\tgood\n7\tmua\n"
	if err := os.WriteFile(filepath.Join(dir, "cluster_group.tsv"), []byte(tsv), 0o644); err != nil {
		t.Fatal(err)
	}
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
	rec, err := New().Parse(fixtureDir(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Cluster 0 is curated as noise and dropped.
	if len(rec.Spikes) != 2 {
		t.Fatalf("units = %d, want 2", len(rec.Spikes))
	}
	if got := rec.Spikes[3]; !reflect.DeepEqual(got, []float64{0.5, 1.5}) {
		t.Fatalf("unit 3 = %v", got)
	}
	if got := rec.Spikes[7]; !reflect.DeepEqual(got, []float64{2.0, 4.0}) {
		t.Fatalf("unit 7 = %v", got)
	}

	col := rec.UnitMeta.Col("label")
	if col == nil || !reflect.DeepEqual(col.Strings, []string{"good", "mua"}) {
		t.Fatalf("labels = %+v", col)
	}
}

func TestReadParamsInlineComment(t *testing.T) {
	dir := t.TempDir()
	params := "sample_rate = 30000. # Hz\ndat_path = 'raw.dat'  # relative\nn_channels_dat = 32\n"
	path := filepath.Join(dir, "params.py")
	if err := os.WriteFile(path, []byte(params), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readParams(path)
	if err != nil {
		t.Fatalf("readParams: %v", err)
	}
	if got["sample_rate"] != "30000." {
		t.Fatalf("sample_rate = %q, want %q", got["sample_rate"], "30000.")
	}
	if got["dat_path"] != "raw.dat" {
		t.Fatalf("dat_path = %q, want %q", got["dat_path"], "raw.dat")
	}
}

func TestParseWithoutCurationKeepsEverything(t *testing.T) {
	dir := fixtureDir(t)
	if err := os.Remove(filepath.Join(dir, "cluster_group.tsv")); err != nil {
		t.Fatal(err)
	}

	rec, err := New().Parse(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Spikes) != 3 {
		t.Fatalf("units = %d, want all clusters kept", len(rec.Spikes))
	}
	if rec.UnitMeta != nil {
		t.Fatal("no labels expected without curation file")
	}
}

func TestParseLengthMismatch(t *testing.T) {
	dir := fixtureDir(t)
	if err := npytest.WriteInts(filepath.Join(dir, "spike_clusters.npy"),
		[]int{2}, []int64{3, 3}); err != nil {
		t.Fatal(err)
	}

	_, err := New().Parse(dir)
	var serr *loader.SourceError
	if !errors.As(err, &serr) {
		t.Fatalf("want SourceError, got %v", err)
	}
	if serr.File != "spike_clusters.npy" {
		t.Fatalf("File = %q", serr.File)
	}
}

func TestParseBadSampleRate(t *testing.T) {
	dir := fixtureDir(t)
	if err := os.WriteFile(filepath.Join(dir, "params.py"), []byte("dat_path = 'raw.dat'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New().Parse(dir); err == nil {
		t.Fatal("expected missing sample_rate error")
	}
}
