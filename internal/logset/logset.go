// Package logset names, enumerates, and deletes the per-generation log
// files inside an engine's data directory (spec component C2).
package logset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	filePrefix = "kvs_"
	fileSuffix = ".cbor"
	// ScratchName is the reserved compaction-target filename, live only
	// between the start and the commit (rename) of a compaction.
	ScratchName = "kvs_compact" + fileSuffix
)

// Path returns the path of the log file for a given generation.
func Path(dir string, gen uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", filePrefix, gen, fileSuffix))
}

// ScratchPath returns the path of the compaction scratch file.
func ScratchPath(dir string) string {
	return filepath.Join(dir, ScratchName)
}

// Scan enumerates the generations present in dir, sorted ascending. A
// directory with no log files yields an empty, non-error result.
func Scan(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var gens []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		gen, ok := parseGeneration(entry.Name())
		if !ok {
			continue
		}
		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

func parseGeneration(name string) (uint64, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if middle == "" {
		return 0, false
	}
	gen, err := strconv.ParseUint(middle, 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// PurgeExcept deletes every log file in dir other than the one for
// keepGen, plus the scratch file if present. Individual removal failures
// are logged and tolerated: the engine never depends on successful
// deletion for correctness, only for space reclamation (a platform may
// refuse to remove a file another handle still has open).
func PurgeExcept(dir string, keepGen uint64, logger *slog.Logger) error {
	gens, err := Scan(dir)
	if err != nil {
		return err
	}

	for _, gen := range gens {
		if gen == keepGen {
			continue
		}
		path := Path(dir, gen)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("logset: failed to remove surplus generation file",
				"path", path, "error", err)
		}
	}

	scratch := ScratchPath(dir)
	if err := os.Remove(scratch); err != nil && !os.IsNotExist(err) {
		logger.Warn("logset: failed to remove leftover scratch file",
			"path", scratch, "error", err)
	}

	return nil
}
