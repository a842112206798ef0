// Package engine implements the log-structured key/value storage engine
// (spec components C4 and C5): an append-only CBOR log, an in-memory
// index rebuilt by replay at open time, and online compaction. One
// writer mutates the log; any number of independent reader clones can
// read concurrently without blocking it or each other.
package engine

import (
	"log/slog"
)

// Engine is the store's public surface.
type Engine interface {
	// Set stores value under key.
	Set(key, value string) error
	// Get returns the current value for key. It returns a
	// *kvserr.Error with Kind kvserr.KeyNotFound if the key is absent.
	Get(key string) (string, error)
	// Remove deletes key. It returns a *kvserr.Error with Kind
	// kvserr.KeyNotFound if the key is absent.
	Remove(key string) error
	// Clear removes every key, discarding the whole log.
	Clear() error
	// Clone returns an independent handle onto the same store, sharing
	// the writer but keeping its own read-side file handle cache. Safe
	// to use from a different goroutine than the Engine it was cloned
	// from.
	Clone() (Engine, error)
	// Close releases this handle's resources. Closing the handle
	// returned by Open also closes the writer; closing a cloned handle
	// only releases that clone's own cached read handles.
	Close() error
}

// Options configures Open.
type Options struct {
	// Dir is the directory holding the log's generation files. It is
	// created if it does not already exist.
	Dir string
	// CompactionThresholdBytes is the stale-byte count that triggers an
	// online compaction after a mutation. Zero disables automatic
	// compaction.
	CompactionThresholdBytes int64
	// Logger receives best-effort diagnostics (e.g. a failed attempt to
	// remove a surplus log file). Defaults to slog.Default() if nil.
	Logger *slog.Logger
}

// facade implements Engine. The root facade (the one Open returns) owns
// the writer; clones share it but own only their own Reader.
type facade struct {
	w     *writer
	r     *Reader
	owner bool
}

// Open replays the log at opts.Dir (creating the directory if needed)
// and returns a ready Engine.
func Open(opts Options) (Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	w, err := openWriter(opts)
	if err != nil {
		return nil, err
	}

	return &facade{
		w:     w,
		r:     newReader(w.dir, w.idx),
		owner: true,
	}, nil
}

func (f *facade) Set(key, value string) error    { return f.w.Set(key, value) }
func (f *facade) Remove(key string) error        { return f.w.Remove(key) }
func (f *facade) Clear() error                   { return f.w.Clear() }
func (f *facade) Get(key string) (string, error) { return f.r.Get(key) }

func (f *facade) Clone() (Engine, error) {
	return &facade{
		w:     f.w,
		r:     newReader(f.w.dir, f.w.idx),
		owner: false,
	}, nil
}

func (f *facade) Close() error {
	rerr := f.r.Close()
	if !f.owner {
		return rerr
	}
	if werr := f.w.Close(); werr != nil {
		return werr
	}
	return rerr
}
