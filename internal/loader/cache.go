package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nwbmatic/nwbmatic/internal/record"
)

// Cache layout: one artifact per session directory, holding the
// serialized intermediate record plus the signature it was parsed
// under. Reused only when tag, signature and payload checksum all
// match; anything else is a miss, never an error surfaced to the
// caller.
const (
	cacheDirName    = ".nwbmatic"
	artifactName    = "session.json"
	artifactVersion = 1
)

type artifact struct {
	Version   int             `json:"version"`
	Tag       string          `json:"tag"`
	Signature string          `json:"signature"`
	Checksum  string          `json:"checksum"` // sha256 of Record bytes
	Record    json.RawMessage `json:"record"`
}

// CachePath returns the artifact location for a session directory.
func CachePath(dir string) string {
	return filepath.Join(dir, cacheDirName, artifactName)
}

// RemoveArtifact deletes a directory's cache artifact if present.
func RemoveArtifact(dir string) error {
	err := os.Remove(CachePath(dir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func recordChecksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// readArtifact returns the cached record when the artifact exists and
// matches (tag, signature, checksum). Any failure is a miss.
func readArtifact(dir, tag, signature string) (*record.Record, error) {
	raw, err := os.ReadFile(CachePath(dir))
	if err != nil {
		return nil, err
	}
	var art artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("corrupt artifact: %w", err)
	}
	if art.Version != artifactVersion {
		return nil, fmt.Errorf("artifact version %d, want %d", art.Version, artifactVersion)
	}
	if art.Tag != tag {
		return nil, fmt.Errorf("artifact was parsed as %q, want %q", art.Tag, tag)
	}
	if art.Signature != signature {
		return nil, fmt.Errorf("stale artifact: signature %s, directory is %s", art.Signature, signature)
	}
	if sum := recordChecksum(art.Record); sum != art.Checksum {
		return nil, fmt.Errorf("artifact checksum mismatch")
	}
	var rec record.Record
	if err := json.Unmarshal(art.Record, &rec); err != nil {
		return nil, fmt.Errorf("corrupt artifact record: %w", err)
	}
	return &rec, nil
}

// writeArtifact persists a freshly parsed record, atomically replacing
// any previous artifact: the JSON is written to a temp file in the
// cache directory and renamed into place, so a concurrent reader never
// observes a partial write.
func writeArtifact(dir, tag, signature string, rec *record.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	art := artifact{
		Version:   artifactVersion,
		Tag:       tag,
		Signature: signature,
		Checksum:  recordChecksum(payload),
		Record:    payload,
	}
	raw, err := json.Marshal(&art)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	cacheDir := filepath.Join(dir, cacheDirName)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(cacheDir, artifactName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), CachePath(dir)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}
