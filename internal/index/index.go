// Package index implements the in-memory key directory (spec component
// C3): a map from key to the location of its most recent record in the
// log, plus the bookkeeping (current generation, stale byte count) a
// writer needs to decide when to compact.
//
// Readers observe the index through Lookup and Snapshot, both guarded by
// a sync.RWMutex so concurrent Get calls never block each other or the
// writer's reads. The writer publishes a batch of changes atomically
// through a Writer, so a reader never sees a key's entry updated without
// also seeing the generation it belongs to (or vice versa).
package index

import "sync"

// Entry locates one record inside the log: which generation file it
// lives in, and its [Start, End) byte range within that file.
type Entry struct {
	Generation uint64
	Start      int64
	End        int64
}

// Size returns the byte length of the record this entry points at.
func (e Entry) Size() int64 { return e.End - e.Start }

// Index is the live key directory plus writer bookkeeping. The zero
// value is not usable; construct with New.
type Index struct {
	mu sync.RWMutex

	entries map[string]Entry

	// generation is the generation number of the log file currently
	// being appended to.
	generation uint64

	// staleBytes is the total size, in bytes, of records in the log that
	// no longer have a live entry pointing at them (superseded Sets and
	// all Removes). It drives the compaction threshold.
	staleBytes int64
}

// New returns an empty index whose writer starts on generation gen.
func New(gen uint64) *Index {
	return &Index{
		entries:    make(map[string]Entry),
		generation: gen,
	}
}

// FromReplay builds an index directly from the result of replaying the
// log at open time, bypassing the normal staged-mutation bookkeeping
// since there are no prior readers to protect against a partial view.
func FromReplay(entries map[string]Entry, staleBytes int64, gen uint64) *Index {
	return &Index{
		entries:    entries,
		generation: gen,
		staleBytes: staleBytes,
	}
}

// Lookup returns the current entry for key and the generation it was
// read together with, so a caller can detect a generation change (e.g.
// to decide whether a cached file handle needs reopening) atomically
// with the entry lookup.
func (idx *Index) Lookup(key string) (entry Entry, generation uint64, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok = idx.entries[key]
	return entry, idx.generation, ok
}

// Generation returns the generation currently being written to.
func (idx *Index) Generation() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.generation
}

// StaleBytes returns the current count of reclaimable bytes.
func (idx *Index) StaleBytes() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.staleBytes
}

// Len returns the number of live keys.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Snapshot returns a copy of every live (key, entry) pair, for use by
// compaction, which needs a stable view to copy live ranges forward.
func (idx *Index) Snapshot() map[string]Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]Entry, len(idx.entries))
	for k, v := range idx.entries {
		out[k] = v
	}
	return out
}

// Writer stages a batch of index mutations for atomic publication. The
// engine package's single writer is the only caller that should ever
// construct one: staging lets the engine apply an entire Set/Remove (or
// an entire compaction) as one lock acquisition, so no reader ever
// observes a half-applied operation.
type Writer struct {
	idx *Index

	sets       map[string]Entry
	deletes    map[string]struct{}
	staleDelta int64

	newGeneration   uint64
	hasNewGen       bool
	resetStaleBytes bool
}

// NewWriter stages mutations against idx.
func NewWriter(idx *Index) *Writer {
	return &Writer{
		idx:     idx,
		sets:    make(map[string]Entry),
		deletes: make(map[string]struct{}),
	}
}

// Set stages key pointing at entry, replacing whatever was there. oldSize
// is the size of the entry being superseded, if any (0 if the key was
// absent); it is added to the stale-byte count on Refresh.
func (w *Writer) Set(key string, entry Entry, oldSize int64) {
	delete(w.deletes, key)
	w.sets[key] = entry
	w.staleDelta += oldSize
}

// Delete stages removal of key. oldSize is the size of the entry being
// removed (0 if the key was already absent).
func (w *Writer) Delete(key string, oldSize int64) {
	delete(w.sets, key)
	w.deletes[key] = struct{}{}
	w.staleDelta += oldSize
}

// MarkStale adds extra reclaimable bytes without touching any key (used
// when a Remove record itself becomes stale once its key directory entry
// is gone).
func (w *Writer) MarkStale(n int64) {
	w.staleDelta += n
}

// SetGeneration stages a move to a new active write generation, as
// happens when the log rotates or a compaction commits.
func (w *Writer) SetGeneration(gen uint64) {
	w.newGeneration = gen
	w.hasNewGen = true
}

// ReplaceAll stages a full replacement of the key directory, used after a
// compaction has rewritten every live entry against new offsets. It
// resets the stale-byte count to zero and stages the new generation.
func (w *Writer) ReplaceAll(entries map[string]Entry, gen uint64) {
	w.sets = entries
	w.deletes = make(map[string]struct{})
	w.resetStaleBytes = true
	w.newGeneration = gen
	w.hasNewGen = true
}

// Refresh applies every staged mutation to the index in one lock
// acquisition, making them all visible to readers atomically.
func (w *Writer) Refresh() {
	idx := w.idx
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if w.resetStaleBytes {
		idx.staleBytes = 0
		idx.entries = make(map[string]Entry, len(w.sets))
	}

	for key := range w.deletes {
		delete(idx.entries, key)
	}
	for key, entry := range w.sets {
		idx.entries[key] = entry
	}

	idx.staleBytes += w.staleDelta
	if idx.staleBytes < 0 {
		idx.staleBytes = 0
	}

	if w.hasNewGen {
		idx.generation = w.newGeneration
	}

	w.sets = make(map[string]Entry)
	w.deletes = make(map[string]struct{})
	w.staleDelta = 0
	w.hasNewGen = false
	w.resetStaleBytes = false
}
