package npyutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nwbmatic/nwbmatic/internal/npytest"
)

func TestReadFloats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "F.npy")
	want := []float64{1.5, 2.5, 3.5, 4.5, 5.5, 6.5}
	if err := npytest.WriteFloats(path, []int{2, 3}, want); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	data, shape, err := ReadFloats(path)
	if err != nil {
		t.Fatalf("ReadFloats: %v", err)
	}
	if !reflect.DeepEqual(shape, []int{2, 3}) {
		t.Fatalf("shape = %v", shape)
	}
	if !reflect.DeepEqual(data, want) {
		t.Fatalf("data = %v", data)
	}
}

func TestReadInts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spike_times.npy")
	want := []int64{10, 20, 40, 80}
	if err := npytest.WriteInts(path, []int{4}, want); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	data, shape, err := ReadInts(path)
	if err != nil {
		t.Fatalf("ReadInts: %v", err)
	}
	if !reflect.DeepEqual(shape, []int{4}) {
		t.Fatalf("shape = %v", shape)
	}
	if !reflect.DeepEqual(data, want) {
		t.Fatalf("data = %v", data)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, _, err := ReadFloats(filepath.Join(t.TempDir(), "nope.npy")); err == nil {
		t.Fatal("missing file should error")
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.npy")
	if err := writeGarbage(path); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadFloats(path); err == nil {
		t.Fatal("garbage file should error")
	}
}

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("not numpy at all"), 0o644)
}
