// Package storage wraps the single *os.File backing one generation of
// the log, giving the engine exactly the operations it needs: append at
// the current end, read an exact byte range, and report the current
// size. The writer's handle on the active generation serves both its
// appends and compaction's random-access reads; os.File.ReadAt is
// position-independent, so it never races with the writer's own
// Seek+Write sequence as long as writes themselves stay serialized by the
// engine's single-writer rule. Each engine Reader opens its own read-only
// handles.
package storage

import (
	"io"
	"os"
)

// LogFile is one open generation file.
type LogFile struct {
	f *os.File
}

// Open opens (creating if necessary) the log file at path for both
// reading and writing.
func Open(path string) (*LogFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &LogFile{f: f}, nil
}

// OpenExclusive creates path, failing if it already exists. Compaction
// uses this for its scratch file so two writers can never mistake a
// leftover scratch file for one they can safely overwrite mid-write.
func OpenExclusive(path string) (*LogFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &LogFile{f: f}, nil
}

// OpenReadOnly opens an existing log file for reading only, used by
// compaction to pull live ranges out of non-active generation files.
func OpenReadOnly(path string) (*LogFile, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &LogFile{f: f}, nil
}

// Append writes data at the current end of the file and flushes it to
// the OS before returning, along with the offset the write started at.
// The write is best-effort durable: Sync is called, but its result is
// still returned to the caller rather than silently ignored.
func (l *LogFile) Append(data []byte) (start int64, err error) {
	start, err = l.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := l.f.Write(data); err != nil {
		return 0, err
	}
	if err := l.f.Sync(); err != nil {
		return 0, err
	}
	return start, nil
}

// ReadAt reads exactly end-start bytes starting at start.
func (l *LogFile) ReadAt(start, end int64) ([]byte, error) {
	buf := make([]byte, end-start)
	if _, err := l.f.ReadAt(buf, start); err != nil {
		return nil, err
	}
	return buf, nil
}

// Size returns the current file size.
func (l *LogFile) Size() (int64, error) {
	info, err := l.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Reader returns an io.Reader positioned at the start of the file, for
// sequential replay during open or compaction.
func (l *LogFile) Reader() (io.Reader, error) {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return l.f, nil
}

// Sync flushes the file's content to stable storage.
func (l *LogFile) Sync() error {
	return l.f.Sync()
}

// Close closes the underlying file.
func (l *LogFile) Close() error {
	return l.f.Close()
}
