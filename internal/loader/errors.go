package loader

import (
	"fmt"
	"strings"
)

// DirectoryNotFoundError reports a session directory that does not
// exist or is not a directory.
type DirectoryNotFoundError struct {
	Dir string
	Err error
}

func (e *DirectoryNotFoundError) Error() string {
	return fmt.Sprintf("session directory %q not found: %v", e.Dir, e.Err)
}

func (e *DirectoryNotFoundError) Unwrap() error { return e.Err }

// UnknownFormatError reports an explicitly requested tag that is not
// registered.
type UnknownFormatError struct {
	Tag   string
	Known []string // sorted registered tags
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown session format %q (known formats: %s)",
		e.Tag, strings.Join(e.Known, ", "))
}

// FormatDetectionError reports a directory whose contents match no
// registered format signature.
type FormatDetectionError struct {
	Dir   string
	Known []string
}

func (e *FormatDetectionError) Error() string {
	return fmt.Sprintf("cannot detect session format of %q (known formats: %s); pass an explicit tag",
		e.Dir, strings.Join(e.Known, ", "))
}

// ParseError wraps a parser failure with the directory, format tag and,
// when known, the offending file.
type ParseError struct {
	Tag  string
	Dir  string
	File string // relative to Dir; empty if the parser did not say
	Err  error
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse %s session %q: file %q: %v", e.Tag, e.Dir, e.File, e.Err)
	}
	return fmt.Sprintf("parse %s session %q: %v", e.Tag, e.Dir, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SourceError lets a parser attribute a failure to one file; the loader
// lifts the name into the ParseError it returns.
type SourceError struct {
	File string // relative to the session directory
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
