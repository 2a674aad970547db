package loader

import (
	"fmt"
	"sort"

	"github.com/nwbmatic/nwbmatic/internal/record"
)

// Parser reads one acquisition system's on-disk session layout and
// produces an intermediate record.
type Parser interface {
	// Tag returns the format identifier ("neurosuite", "allends", ...).
	Tag() string

	// Detect reports whether the directory's contents match this
	// format's signature. It must be cheap and must not parse data.
	Detect(dir string) bool

	// Manifest returns the directory-relative paths of the raw files
	// this format reads; the loader signs them for cache invalidation.
	// Listing a file that does not exist is allowed.
	Manifest(dir string) ([]string, error)

	// Parse reads the directory and produces an intermediate record.
	Parse(dir string) (*record.Record, error)
}

// Registry maps format tags to parsers. It is immutable after
// construction; build one per process (or per test) and treat it as
// read-only.
type Registry struct {
	order []Parser
	byTag map[string]Parser
}

// NewRegistry builds a registry. Registration order is the sniffing
// order used when no explicit tag is given. Duplicate tags are an
// error.
func NewRegistry(parsers ...Parser) (*Registry, error) {
	r := &Registry{byTag: make(map[string]Parser, len(parsers))}
	for _, p := range parsers {
		tag := p.Tag()
		if _, dup := r.byTag[tag]; dup {
			return nil, fmt.Errorf("registry: duplicate format tag %q", tag)
		}
		r.byTag[tag] = p
		r.order = append(r.order, p)
	}
	return r, nil
}

// Tags returns the registered tags, sorted.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Resolve returns the parser for tag, or, when tag is empty, the first
// registered parser whose Detect accepts the directory.
func (r *Registry) Resolve(tag, dir string) (Parser, error) {
	if tag != "" {
		p, ok := r.byTag[tag]
		if !ok {
			return nil, &UnknownFormatError{Tag: tag, Known: r.Tags()}
		}
		return p, nil
	}
	for _, p := range r.order {
		if p.Detect(dir) {
			return p, nil
		}
	}
	return nil, &FormatDetectionError{Dir: dir, Known: r.Tags()}
}
