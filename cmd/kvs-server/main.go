// Command kvs-server runs the TCP front end over a local log directory.
package main

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/aether-labs/kvs/internal/config"
	"github.com/aether-labs/kvs/internal/engine"
	"github.com/aether-labs/kvs/internal/server"
	"github.com/aether-labs/kvs/internal/threadpool"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("kvs-server: failed to load config: %v", err)
	}

	addr := flag.String("addr", cfg.SERVER_ADDR, "address to listen on")
	engineName := flag.String("engine", "kvs", "storage engine identifier")
	flag.Parse()

	if err := os.MkdirAll(cfg.DATA_DIR, 0o755); err != nil {
		log.Fatalf("kvs-server: failed to create data directory: %v", err)
	}
	if err := checkEngineMarker(cfg.DATA_DIR, *engineName); err != nil {
		log.Fatalf("kvs-server: %v", err)
	}

	e, err := engine.Open(engine.Options{
		Dir:                      cfg.DATA_DIR,
		CompactionThresholdBytes: cfg.COMPACTION_THRESHOLD_BYTES,
	})
	if err != nil {
		log.Fatalf("kvs-server: failed to open engine: %v", err)
	}
	defer e.Close()

	pool, err := threadpool.New(threadpool.Kind(cfg.POOL_KIND), cfg.POOL_SIZE)
	if err != nil {
		log.Fatalf("kvs-server: failed to create thread pool: %v", err)
	}
	defer pool.Close()

	slog.Info("kvs-server: starting",
		"addr", *addr,
		"data_dir", cfg.DATA_DIR,
		"pool_kind", cfg.POOL_KIND,
		"pool_size", cfg.POOL_SIZE,
	)

	srv := server.New(e, pool, slog.Default())
	if err := srv.Run(*addr); err != nil {
		log.Fatalf("kvs-server: %v", err)
	}
}

// checkEngineMarker records which engine backend owns dir, refusing to
// start against a directory that was last written by a different one.
func checkEngineMarker(dir, name string) error {
	path := dir + "/engine.txt"

	if existing, err := os.ReadFile(path); err == nil {
		if got := strings.TrimSpace(string(existing)); got != "" && got != name {
			return &engineMismatchError{want: name, got: got}
		}
	}

	return atomic.WriteFile(path, strings.NewReader(name))
}

type engineMismatchError struct {
	want, got string
}

func (e *engineMismatchError) Error() string {
	return "data directory was created with engine " + e.got + ", not " + e.want
}
