package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/nwbmatic/nwbmatic/internal/record"
	"github.com/nwbmatic/nwbmatic/internal/session"
)

// Options configure one LoadSession call.
type Options struct {
	// Tag is the explicit format tag; empty means sniff the directory.
	Tag string

	// ForceReload bypasses the cache artifact entirely: the directory
	// is always reparsed (the fresh artifact is still written).
	ForceReload bool

	// Registry resolves the parser. Required.
	Registry *Registry

	// Logger receives cache warnings. Defaults to a disabled logger.
	Logger zerolog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithTag requests an explicit format instead of directory sniffing.
func WithTag(tag string) Option { return func(o *Options) { o.Tag = tag } }

// WithForceReload bypasses the cache for this load.
func WithForceReload() Option { return func(o *Options) { o.ForceReload = true } }

// WithRegistry substitutes the format registry (tests use this instead
// of mutating a process-wide one).
func WithRegistry(r *Registry) Option { return func(o *Options) { o.Registry = r } }

// WithLogger routes cache warnings to a logger.
func WithLogger(log zerolog.Logger) Option { return func(o *Options) { o.Logger = log } }

// LoadSession reads one recording session from dir and returns it as a
// normalized Session. The format is taken from WithTag or sniffed from
// the directory contents; a previously parsed session is reused from
// the cache artifact when the raw files are unchanged.
//
// Errors follow a fixed taxonomy: *DirectoryNotFoundError,
// *UnknownFormatError, *FormatDetectionError, *ParseError and
// *session.MalformedSessionError. Cache read/write failures are the
// only recoverable class; they are logged and the load proceeds from
// the raw files.
func LoadSession(dir string, opts ...Option) (*session.Session, error) {
	o := Options{Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Registry == nil {
		return nil, fmt.Errorf("load session: no format registry configured")
	}

	fi, err := os.Stat(dir)
	if err != nil {
		return nil, &DirectoryNotFoundError{Dir: dir, Err: err}
	}
	if !fi.IsDir() {
		return nil, &DirectoryNotFoundError{Dir: dir, Err: fmt.Errorf("not a directory")}
	}

	parser, err := o.Registry.Resolve(o.Tag, dir)
	if err != nil {
		return nil, err
	}
	tag := parser.Tag()
	log := o.Logger.With().Str("dir", dir).Str("format", tag).Logger()

	manifest, err := parser.Manifest(dir)
	if err != nil {
		return nil, wrapParseErr(tag, dir, err)
	}
	signature, err := directorySignature(dir, manifest)
	if err != nil {
		return nil, wrapParseErr(tag, dir, err)
	}

	rec, cached := cachedRecord(dir, tag, signature, &o, log)
	if !cached {
		rec, err = parser.Parse(dir)
		if err != nil {
			return nil, wrapParseErr(tag, dir, err)
		}
		// Best effort: a session that parsed is always returned, cached
		// or not.
		if err := writeArtifact(dir, tag, signature, rec); err != nil {
			log.Warn().Err(err).Msg("could not persist cache artifact")
		} else {
			log.Debug().Str("signature", signature).Msg("cache artifact written")
		}
	}

	return session.Build(rec, session.BuildMeta{Path: dir, Tag: tag})
}

// cachedRecord tries the cache artifact; any failure is logged and
// treated as a miss.
func cachedRecord(dir, tag, signature string, o *Options, log zerolog.Logger) (*record.Record, bool) {
	if o.ForceReload {
		return nil, false
	}
	rec, err := readArtifact(dir, tag, signature)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("cache artifact unusable, reparsing")
		}
		return nil, false
	}
	log.Debug().Str("signature", signature).Msg("cache artifact reused")
	return rec, true
}

func wrapParseErr(tag, dir string, err error) error {
	perr := &ParseError{Tag: tag, Dir: dir, Err: err}
	var src *SourceError
	if errors.As(err, &src) {
		perr.File = src.File
	}
	return perr
}
