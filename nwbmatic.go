// Package nwbmatic loads heterogeneous neuroscience recording sessions
// into normalized in-memory Session objects.
//
// This package wraps the internal loader and session implementations and
// exports a clean public API. Formats are auto-detected from the session
// directory, or forced with WithTag.
//
// Example usage:
//
//	import "github.com/nwbmatic/nwbmatic"
//
//	sess, err := nwbmatic.LoadSession("path/to/session")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Format: %s\n", sess.Format)
//	for _, unit := range sess.Spikes.Units() {
//	    fmt.Printf("unit %d: %d spikes\n", unit, len(sess.Spikes.Train(unit)))
//	}
//
// Parsed sessions are cached inside the directory (.nwbmatic/); a cache
// artifact is reused as long as the raw files are unchanged.
package nwbmatic

import (
	"sync"

	"github.com/nwbmatic/nwbmatic/internal/formats/allends"
	"github.com/nwbmatic/nwbmatic/internal/formats/cnmfe"
	"github.com/nwbmatic/nwbmatic/internal/formats/neurosuite"
	"github.com/nwbmatic/nwbmatic/internal/formats/nwb"
	"github.com/nwbmatic/nwbmatic/internal/formats/phy"
	"github.com/nwbmatic/nwbmatic/internal/formats/suite2p"
	"github.com/nwbmatic/nwbmatic/internal/loader"
	"github.com/nwbmatic/nwbmatic/internal/session"
)

// Session is a normalized recording session.
type Session = session.Session

// IntervalSet is a sorted, non-overlapping set of time intervals.
type IntervalSet = session.IntervalSet

// TsGroup is a collection of per-unit spike trains.
type TsGroup = session.TsGroup

// Ts is a sorted series of event timestamps.
type Ts = session.Ts

// TsdFrame is a block of continuous traces on a shared time index.
type TsdFrame = session.TsdFrame

// Registry maps format tags to parsers.
type Registry = loader.Registry

// Parser is the format parser plug-in interface.
type Parser = loader.Parser

// NewRegistry builds a registry with the given parsers, in sniffing
// order.
var NewRegistry = loader.NewRegistry

// Option configures one LoadSession call.
type Option = loader.Option

// Per-load options.
var (
	WithTag         = loader.WithTag
	WithForceReload = loader.WithForceReload
	WithRegistry    = loader.WithRegistry
	WithLogger      = loader.WithLogger
)

// Load error taxonomy.
type (
	DirectoryNotFoundError = loader.DirectoryNotFoundError
	UnknownFormatError     = loader.UnknownFormatError
	FormatDetectionError   = loader.FormatDetectionError
	ParseError             = loader.ParseError
	MalformedSessionError  = session.MalformedSessionError
)

// Watcher invalidates a directory's cache artifact when its raw files
// change.
type Watcher = loader.Watcher

// WatchDirectory starts watching a session directory's raw files.
var WatchDirectory = loader.WatchDirectory

// CachePath returns the cache artifact path for a session directory.
var CachePath = loader.CachePath

// ClearCache removes a directory's cache artifact.
var ClearCache = loader.RemoveArtifact

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the process-wide registry holding every
// built-in parser. Sniffing tries parsers in registration order.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(
			neurosuite.New(),
			phy.New(),
			allends.New(),
			nwb.New(),
			cnmfe.NewInscopix(),
			cnmfe.NewMinian(),
			cnmfe.NewMatlab(),
			suite2p.New(),
		)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Formats returns the registered format tags, sorted.
func Formats() []string {
	return DefaultRegistry().Tags()
}

// LoadSession reads one recording session from dir. The format is
// sniffed unless WithTag forces it; the built-in registry is used unless
// WithRegistry substitutes one.
func LoadSession(dir string, opts ...Option) (*Session, error) {
	all := append([]Option{WithRegistry(DefaultRegistry())}, opts...)
	return loader.LoadSession(dir, all...)
}
