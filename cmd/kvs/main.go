// Command kvs is a local, single-process key-value store: it opens the
// log directly and serves get/set/rm subcommands or an interactive shell
// against it, with no network involved.
package main

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/aether-labs/kvs/internal/cli"
	"github.com/aether-labs/kvs/internal/config"
	"github.com/aether-labs/kvs/internal/engine"
	"github.com/natefinch/atomic"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("kvs: failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DATA_DIR, 0o755); err != nil {
		log.Fatalf("kvs: failed to create data directory: %v", err)
	}
	if err := atomic.WriteFile(cfg.DATA_DIR+"/engine.txt", strings.NewReader("kvs")); err != nil {
		slog.Warn("kvs: failed to write engine.txt", "error", err)
	}

	e, err := engine.Open(engine.Options{
		Dir:                      cfg.DATA_DIR,
		CompactionThresholdBytes: cfg.COMPACTION_THRESHOLD_BYTES,
	})
	if err != nil {
		log.Fatalf("kvs: failed to open engine: %v", err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			slog.Error("kvs: error closing engine", "error", err)
		}
	}()

	h := cli.NewHandler(cli.EngineStore{Engine: e})

	if len(os.Args) > 1 {
		os.Exit(h.RunOnce(os.Args[1:]))
	}

	if err := h.Run(); err != nil {
		log.Fatalf("kvs: shell error: %v", err)
	}
}
