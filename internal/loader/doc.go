// Package loader turns raw session directories into normalized Session
// objects.
//
// It owns the format registry (explicit tag lookup plus registration-order
// sniffing), the directory signature that fingerprints a session's raw
// files, and the on-disk cache artifact that skips reparsing unchanged
// directories. Format parsers plug in through the Parser interface and
// report per-file failures with SourceError; everything else surfaces
// through the fixed error taxonomy in errors.go.
//
// Example:
//
//	reg, err := loader.NewRegistry(neurosuite.New(), phy.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sess, err := loader.LoadSession(dir, loader.WithRegistry(reg))
package loader
