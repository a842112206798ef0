// Package cli provides command-line interface handling for the
// key-value store (spec component C10): one-shot get/set/rm subcommands
// for scripting, and an interactive REPL for exploration. Both run
// against a Store, so the same handler drives either a local
// engine.Engine or a remote client.Client without caring which.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aether-labs/kvs/internal/kvserr"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

// Store is the minimal surface the CLI needs. Get reports a missing key
// through ok=false rather than an error, matching the reference client's
// Option<String>: a missing key is an ordinary outcome, not a failure.
type Store interface {
	Set(key, value string) error
	Get(key string) (value string, ok bool, err error)
	Remove(key string) error
	Clear() error
}

// Handler drives a Store from either one-shot arguments or a REPL.
type Handler struct {
	store  Store
	out    io.Writer
	errOut io.Writer
}

// NewHandler returns a Handler writing normal output to stdout and
// errors to stderr.
func NewHandler(store Store) *Handler {
	return &Handler{store: store, out: os.Stdout, errOut: os.Stderr}
}

// RunOnce executes a single get/set/rm subcommand (args excludes the
// program name, e.g. []string{"get", "mykey"}) and returns the process
// exit code to use: 0 on success, 1 on a usage error or on KeyNotFound
// from rm, 2 on any other failure (see exitCodeFor).
func (h *Handler) RunOnce(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(h.errOut, "usage: kvs <get|set|rm> ...")
		return 1
	}

	switch args[0] {
	case "get":
		fs := flag.NewFlagSet("get", flag.ContinueOnError)
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(h.errOut, "usage: kvs get <key>")
			return 1
		}
		return h.doGet(fs.Arg(0))

	case "set":
		fs := flag.NewFlagSet("set", flag.ContinueOnError)
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if fs.NArg() != 2 {
			fmt.Fprintln(h.errOut, "usage: kvs set <key> <value>")
			return 1
		}
		return h.doSet(fs.Arg(0), fs.Arg(1))

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ContinueOnError)
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(h.errOut, "usage: kvs rm <key>")
			return 1
		}
		return h.doRemove(fs.Arg(0))

	default:
		fmt.Fprintf(h.errOut, "unknown command %q\n", args[0])
		return 1
	}
}

func (h *Handler) doGet(key string) int {
	value, ok, err := h.store.Get(key)
	if err != nil {
		fmt.Fprintf(h.errOut, "%v\n", err)
		return exitCodeFor(err)
	}
	if !ok {
		fmt.Fprintln(h.out, "Key not found")
		return 0
	}
	fmt.Fprintln(h.out, value)
	return 0
}

func (h *Handler) doSet(key, value string) int {
	if err := h.store.Set(key, value); err != nil {
		fmt.Fprintf(h.errOut, "%v\n", err)
		return exitCodeFor(err)
	}
	return 0
}

func (h *Handler) doRemove(key string) int {
	if err := h.store.Remove(key); err != nil {
		fmt.Fprintf(h.errOut, "%v\n", err)
		return exitCodeFor(err)
	}
	return 0
}

func (h *Handler) doClear() int {
	if err := h.store.Clear(); err != nil {
		fmt.Fprintf(h.errOut, "%v\n", err)
		return exitCodeFor(err)
	}
	return 0
}

// exitCodeFor maps a Store failure to a process exit code: 1 for
// KeyNotFound (the only outcome rm can fail with besides I/O trouble),
// 2 for everything else, matching the reference CLI's distinction
// between an ordinary "not found" and an actual fault.
func exitCodeFor(err error) int {
	if kvserr.Is(err, kvserr.KeyNotFound) {
		return 1
	}
	return 2
}

// Run starts an interactive REPL with line history, reading commands of
// the form "get <key>", "set <key> <value>", "rm <key>", "clear", and
// "exit"/"quit". It returns when the user exits or stdin reaches EOF.
func (h *Handler) Run() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := historyFilePath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(h.out, "kvs interactive shell. Commands: get <key>, set <key> <value>, rm <key>, clear, exit")

	for {
		input, err := line.Prompt("kvs> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "get":
			if len(fields) != 2 {
				fmt.Fprintln(h.errOut, "usage: get <key>")
				continue
			}
			h.doGet(fields[1])
		case "set":
			if len(fields) < 3 {
				fmt.Fprintln(h.errOut, "usage: set <key> <value>")
				continue
			}
			h.doSet(fields[1], strings.Join(fields[2:], " "))
		case "rm":
			if len(fields) != 2 {
				fmt.Fprintln(h.errOut, "usage: rm <key>")
				continue
			}
			h.doRemove(fields[1])
		case "clear":
			if len(fields) != 1 {
				fmt.Fprintln(h.errOut, "usage: clear")
				continue
			}
			h.doClear()
		default:
			slog.Warn("cli: unknown command", "command", fields[0])
			fmt.Fprintf(h.errOut, "unknown command %q\n", fields[0])
		}
	}
}

func historyFilePath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".kvs_history"
	}
	return dir + "/.kvs_history"
}
