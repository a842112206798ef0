package engine

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/aether-labs/kvs/internal/index"
	"github.com/aether-labs/kvs/internal/kvserr"
	"github.com/aether-labs/kvs/internal/logset"
	"github.com/aether-labs/kvs/internal/record"
	"github.com/aether-labs/kvs/internal/storage"
)

// writer owns log mutation. Every Set, Remove, and Clear call goes
// through its mu, so the log's append order and the index's view of it
// never diverge, matching the single-writer half of the spec's
// concurrency model.
type writer struct {
	mu sync.Mutex

	dir       string
	idx       *index.Index
	active    *storage.LogFile
	threshold int64
	logger    *slog.Logger
}

func openWriter(opts Options) (*writer, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, kvserr.Wrap(kvserr.Io, err)
	}

	// A scratch file left behind by a compaction that crashed before
	// committing its rename is not valid data; it is always safe to
	// discard and retry compaction later.
	if err := os.Remove(logset.ScratchPath(opts.Dir)); err != nil && !os.IsNotExist(err) {
		return nil, kvserr.Wrap(kvserr.Io, err)
	}

	gens, err := logset.Scan(opts.Dir)
	if err != nil {
		return nil, kvserr.Wrap(kvserr.Io, err)
	}
	if len(gens) == 0 {
		gens = []uint64{0}
	}
	activeGen := gens[len(gens)-1]

	entries, staleBytes, err := replay(opts.Dir, gens)
	if err != nil {
		return nil, err
	}

	active, err := storage.Open(logset.Path(opts.Dir, activeGen))
	if err != nil {
		return nil, kvserr.Wrap(kvserr.Io, err)
	}

	idx := index.FromReplay(entries, staleBytes, activeGen)

	return &writer{
		dir:       opts.Dir,
		idx:       idx,
		active:    active,
		threshold: opts.CompactionThresholdBytes,
		logger:    opts.Logger,
	}, nil
}

// replay reconstructs the live key directory by scanning every
// generation file in order. A Set overwrites any earlier entry for the
// same key; a Remove deletes it. Bytes superseded along the way (old
// Sets, and every Remove tombstone itself, since nothing ever points
// back at a tombstone) are counted as stale so compaction has an
// accurate starting point.
func replay(dir string, gens []uint64) (map[string]index.Entry, int64, error) {
	entries := make(map[string]index.Entry)
	var staleBytes int64

	for _, gen := range gens {
		path := logset.Path(dir, gen)
		f, err := storage.OpenReadOnly(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, 0, kvserr.Wrap(kvserr.Io, err)
		}

		r, err := f.Reader()
		if err != nil {
			f.Close()
			return nil, 0, kvserr.Wrap(kvserr.Io, err)
		}

		dec := record.NewDecoder(r)
		var offset int64
		for {
			rec, n, err := dec.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				f.Close()
				return nil, 0, kvserr.Newf(kvserr.Corrupt, "replay %s at offset %d: %v", path, offset, err)
			}

			entry := index.Entry{Generation: gen, Start: offset, End: offset + n}
			offset += n

			switch rec.Kind {
			case record.Set:
				if old, ok := entries[rec.Key]; ok {
					staleBytes += old.Size()
				}
				entries[rec.Key] = entry
			case record.Remove:
				old, ok := entries[rec.Key]
				if !ok {
					f.Close()
					return nil, 0, kvserr.Newf(kvserr.Corrupt, "replay %s at offset %d: remove of key %q with no prior set", path, offset-n, rec.Key)
				}
				staleBytes += old.Size()
				delete(entries, rec.Key)
				staleBytes += entry.Size()
			default:
				f.Close()
				return nil, 0, kvserr.Newf(kvserr.Corrupt, "replay %s at offset %d: unknown record kind %d", path, offset-n, rec.Kind)
			}
		}

		if err := f.Close(); err != nil {
			return nil, 0, kvserr.Wrap(kvserr.Io, err)
		}
	}

	return entries, staleBytes, nil
}

func (w *writer) Set(key, value string) error {
	data, err := record.Marshal(record.Record{Kind: record.Set, Key: key, Value: value})
	if err != nil {
		return kvserr.Wrap(kvserr.Io, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	start, err := w.active.Append(data)
	if err != nil {
		return kvserr.Wrap(kvserr.Io, err)
	}

	old, _, hadOld := w.idx.Lookup(key)
	var oldSize int64
	if hadOld {
		oldSize = old.Size()
	}

	entry := index.Entry{Generation: w.idx.Generation(), Start: start, End: start + int64(len(data))}
	iw := index.NewWriter(w.idx)
	iw.Set(key, entry, oldSize)
	iw.Refresh()

	return w.maybeCompact()
}

func (w *writer) Remove(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	old, _, ok := w.idx.Lookup(key)
	if !ok {
		return kvserr.Newf(kvserr.KeyNotFound, "key %q not found", key)
	}

	data, err := record.Marshal(record.Record{Kind: record.Remove, Key: key})
	if err != nil {
		return kvserr.Wrap(kvserr.Io, err)
	}

	if _, err := w.active.Append(data); err != nil {
		return kvserr.Wrap(kvserr.Io, err)
	}

	iw := index.NewWriter(w.idx)
	iw.Delete(key, old.Size())
	iw.MarkStale(int64(len(data)))
	iw.Refresh()

	return w.maybeCompact()
}

// Clear discards every key by rotating to a brand-new, empty active
// generation and purging every other log file. It is implemented as a
// degenerate compaction (a compaction with zero live entries) rather
// than a sequence of Remove calls, so it costs one file create and a
// handful of unlinks regardless of how many keys existed. Like a normal
// compaction this advances the generation counter rather than retaining
// it, even though nothing was actually stale to reclaim;
// reusing compactTo's rename-is-the-commit-point protocol as-is, instead
// of special-casing Clear to overwrite the current generation in place,
// keeps Clear crash-safe for free.
func (w *writer) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.compactTo(map[string]index.Entry{})
}

// maybeCompact triggers a compaction if the stale-byte count has crossed
// the configured threshold. Called with w.mu already held.
func (w *writer) maybeCompact() error {
	if w.threshold <= 0 {
		return nil
	}
	if w.idx.StaleBytes() < w.threshold {
		return nil
	}
	return w.compactTo(w.idx.Snapshot())
}

// compactTo rewrites live entries into a fresh generation file and
// publishes the result. Called with w.mu already held.
//
// Order matters and is not negotiable: the scratch file is written and
// fsynced first, the rename to its final generation name is the single
// commit point, and only once that has succeeded do we reopen handles
// and publish the new index. A crash at any point before the rename
// leaves the old generation files untouched and the scratch file
// ignored on the next open; a crash after the rename is recoverable
// because the renamed file is now indistinguishable from any other
// generation file and replay picks it up normally.
func (w *writer) compactTo(live map[string]index.Entry) error {
	scratchPath := logset.ScratchPath(w.dir)
	scratch, err := storage.OpenExclusive(scratchPath)
	if err != nil {
		return kvserr.Wrap(kvserr.Io, err)
	}

	newEntries := make(map[string]index.Entry, len(live))
	sourceHandles := make(map[uint64]*storage.LogFile)
	closeSources := func() {
		for _, f := range sourceHandles {
			f.Close()
		}
	}

	var offset int64
	for key, entry := range live {
		src := sourceHandles[entry.Generation]
		if src == nil {
			if entry.Generation == w.idx.Generation() {
				src = w.active
			} else {
				src, err = storage.OpenReadOnly(logset.Path(w.dir, entry.Generation))
				if err != nil {
					scratch.Close()
					os.Remove(scratchPath)
					closeSources()
					return kvserr.Wrap(kvserr.Io, err)
				}
				sourceHandles[entry.Generation] = src
			}
		}

		data, err := src.ReadAt(entry.Start, entry.End)
		if err != nil {
			scratch.Close()
			os.Remove(scratchPath)
			closeSources()
			return kvserr.Wrap(kvserr.Io, err)
		}

		if _, err := scratch.Append(data); err != nil {
			scratch.Close()
			os.Remove(scratchPath)
			closeSources()
			return kvserr.Wrap(kvserr.Io, err)
		}

		n := entry.Size()
		newEntries[key] = index.Entry{Start: offset, End: offset + n}
		offset += n
	}
	closeSources()

	if err := scratch.Sync(); err != nil {
		scratch.Close()
		os.Remove(scratchPath)
		return kvserr.Wrap(kvserr.Io, err)
	}
	if err := scratch.Close(); err != nil {
		os.Remove(scratchPath)
		return kvserr.Wrap(kvserr.Io, err)
	}

	newGen := w.idx.Generation() + 1
	newPath := logset.Path(w.dir, newGen)
	if err := os.Rename(scratchPath, newPath); err != nil {
		return kvserr.Wrap(kvserr.Io, err)
	}

	newActive, err := storage.Open(newPath)
	if err != nil {
		return kvserr.Wrap(kvserr.Io, err)
	}

	oldActive := w.active
	w.active = newActive

	for key := range newEntries {
		e := newEntries[key]
		e.Generation = newGen
		newEntries[key] = e
	}

	iw := index.NewWriter(w.idx)
	iw.ReplaceAll(newEntries, newGen)
	iw.Refresh()

	if err := oldActive.Close(); err != nil {
		w.logger.Warn("engine: failed to close superseded generation file", "error", err)
	}

	if err := logset.PurgeExcept(w.dir, newGen, w.logger); err != nil {
		w.logger.Warn("engine: failed to purge surplus generation files", "error", err)
	}

	return nil
}

func (w *writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active.Close()
}
