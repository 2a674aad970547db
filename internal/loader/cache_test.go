package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := simpleRecord()

	if err := writeArtifact(dir, "stub", "sig-1", rec); err != nil {
		t.Fatalf("writeArtifact: %v", err)
	}
	got, err := readArtifact(dir, "stub", "sig-1")
	if err != nil {
		t.Fatalf("readArtifact: %v", err)
	}
	if !reflect.DeepEqual(rec, got) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", rec, got)
	}
}

func TestArtifactSignatureMismatchIsAMiss(t *testing.T) {
	dir := t.TempDir()
	if err := writeArtifact(dir, "stub", "sig-1", simpleRecord()); err != nil {
		t.Fatal(err)
	}
	if _, err := readArtifact(dir, "stub", "sig-2"); err == nil {
		t.Fatal("stale signature must be a miss")
	}
	if _, err := readArtifact(dir, "other", "sig-1"); err == nil {
		t.Fatal("different tag must be a miss")
	}
}

func TestArtifactChecksumDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	if err := writeArtifact(dir, "stub", "sig-1", simpleRecord()); err != nil {
		t.Fatal(err)
	}

	// Flip a byte inside the record payload, keeping valid JSON.
	raw, err := os.ReadFile(CachePath(dir))
	if err != nil {
		t.Fatal(err)
	}
	var art artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		t.Fatal(err)
	}
	art.Record = []byte(`{"name":"tampered","time_unit":""}`)
	raw, err = json.Marshal(&art)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(CachePath(dir), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := readArtifact(dir, "stub", "sig-1"); err == nil {
		t.Fatal("tampered payload must fail the checksum")
	}
}

func TestArtifactWriteIsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	if err := writeArtifact(dir, "stub", "sig-1", simpleRecord()); err != nil {
		t.Fatal(err)
	}
	rec := simpleRecord()
	rec.Name = "second"
	if err := writeArtifact(dir, "stub", "sig-2", rec); err != nil {
		t.Fatal(err)
	}

	// Exactly one artifact, no leftover temp files.
	entries, err := os.ReadDir(filepath.Join(dir, cacheDirName))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != artifactName {
		t.Fatalf("cache dir entries = %v, want just %s", entries, artifactName)
	}

	got, err := readArtifact(dir, "stub", "sig-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "second" {
		t.Fatalf("Name = %q, old artifact served", got.Name)
	}
}

func TestRemoveArtifact(t *testing.T) {
	dir := t.TempDir()
	if err := RemoveArtifact(dir); err != nil {
		t.Fatalf("removing a missing artifact must be a no-op: %v", err)
	}
	if err := writeArtifact(dir, "stub", "sig", simpleRecord()); err != nil {
		t.Fatal(err)
	}
	if err := RemoveArtifact(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(CachePath(dir)); !os.IsNotExist(err) {
		t.Fatal("artifact still present")
	}
}

func TestDirectorySignature(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.res.1", "10\n20\n")
	write("a.clu.1", "2\n1\n1\n")

	manifest := []string{"a.res.1", "a.clu.1", "missing.csv"}
	s1, err := directorySignature(dir, manifest)
	if err != nil {
		t.Fatal(err)
	}

	// Stable across calls and manifest order.
	s2, err := directorySignature(dir, []string{"missing.csv", "a.clu.1", "a.res.1"})
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatalf("signature depends on manifest order: %s vs %s", s1, s2)
	}

	// A previously missing file appearing changes the signature.
	write("missing.csv", "wake,0,10\n")
	s3, err := directorySignature(dir, manifest)
	if err != nil {
		t.Fatal(err)
	}
	if s3 == s1 {
		t.Fatal("new file did not change the signature")
	}

	// Growing a file changes the signature.
	write("a.res.1", "10\n20\n30\n")
	s4, err := directorySignature(dir, manifest)
	if err != nil {
		t.Fatal(err)
	}
	if s4 == s3 {
		t.Fatal("content change did not change the signature")
	}
}
