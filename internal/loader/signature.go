package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// directorySignature hashes the identity of the raw files a parser
// reads: sorted (relative path, size, mtime-ns) triples. Manifest
// entries that do not exist on disk are skipped, so a file appearing or
// disappearing changes the signature just as an edit does.
func directorySignature(dir string, manifest []string) (string, error) {
	files := make([]string, len(manifest))
	copy(files, manifest)
	sort.Strings(files)

	h := xxhash.New()
	for _, rel := range files {
		fi, err := os.Stat(filepath.Join(dir, rel))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("signature: stat %s: %w", rel, err)
		}
		if fi.IsDir() {
			continue
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00", rel, fi.Size(), fi.ModTime().UnixNano())
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
