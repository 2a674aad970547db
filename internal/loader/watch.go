package loader

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher invalidates a session directory's cache artifact as soon as
// one of its raw files changes, instead of waiting for the signature
// check on the next load. It strengthens signature-based invalidation;
// it never replaces it.
type Watcher struct {
	dir     string
	watched map[string]bool // absolute paths of manifest files
	fsw     *fsnotify.Watcher
	log     zerolog.Logger
	done    chan struct{}
}

// WatchDirectory resolves the directory's format (explicit tag or
// sniffed), then watches its manifest files until Close is called.
func WatchDirectory(dir, tag string, reg *Registry, log zerolog.Logger) (*Watcher, error) {
	parser, err := reg.Resolve(tag, dir)
	if err != nil {
		return nil, err
	}
	manifest, err := parser.Manifest(dir)
	if err != nil {
		return nil, wrapParseErr(parser.Tag(), dir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %q: %w", dir, err)
	}

	w := &Watcher{
		dir:     dir,
		watched: make(map[string]bool, len(manifest)),
		fsw:     fsw,
		log:     log.With().Str("dir", dir).Str("format", parser.Tag()).Logger(),
		done:    make(chan struct{}),
	}
	// Watch directories, not the individual files: editors replace files
	// by rename, which drops per-file watches. fsnotify is non-recursive,
	// so every parent directory of a manifest entry gets its own watch
	// (nwb and suite2p keep their raw files in subdirectories).
	parents := map[string]bool{filepath.Clean(dir): true}
	for _, rel := range manifest {
		abs := filepath.Join(dir, rel)
		w.watched[abs] = true
		parents[filepath.Dir(abs)] = true
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %q: %w", dir, err)
	}
	for parent := range parents {
		if parent == filepath.Clean(dir) {
			continue
		}
		// A manifest may list optional files whose directory does not
		// exist yet; those are skipped, not fatal.
		if err := fsw.Add(parent); err != nil {
			log.Debug().Err(err).Str("path", parent).Msg("not watching subdirectory")
		}
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.watched[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := RemoveArtifact(w.dir); err != nil {
				w.log.Warn().Err(err).Msg("could not invalidate cache artifact")
				continue
			}
			w.log.Info().Str("file", ev.Name).Msg("raw file changed, cache artifact invalidated")
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
