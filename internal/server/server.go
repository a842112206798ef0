// Package server implements the TCP front end that exposes an
// engine.Engine over the wire protocol in package protocol (spec
// component C8). Each accepted connection is dispatched to a
// threadpool.Pool so the server's concurrency is governed by the pool,
// independent of the engine's own single-writer/many-reader model.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/aether-labs/kvs/internal/engine"
	"github.com/aether-labs/kvs/internal/kvserr"
	"github.com/aether-labs/kvs/internal/protocol"
	"github.com/aether-labs/kvs/internal/threadpool"
)

// Server dispatches incoming connections to the engine.
type Server struct {
	engine engine.Engine
	pool   threadpool.Pool
	logger *slog.Logger
}

// New returns a Server backed by e, dispatching requests through pool.
// logger defaults to slog.Default() if nil.
func New(e engine.Engine, pool threadpool.Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: e, pool: pool, logger: logger}
}

// Run listens on addr and serves connections until the listener errors.
func (s *Server) Run(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return kvserr.Wrap(kvserr.Io, err)
	}
	defer listener.Close()

	s.logger.Info("server: listening", "addr", addr)
	return s.Serve(listener)
}

// Serve accepts and dispatches connections from listener until Accept
// errors (typically because the caller closed listener, e.g. to
// shut the server down).
func (s *Server) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return kvserr.Wrap(kvserr.Io, err)
		}

		clone, err := s.engine.Clone()
		if err != nil {
			s.logger.Error("server: failed to clone engine for connection", "error", err)
			conn.Close()
			continue
		}

		s.pool.Spawn(func() {
			s.handleConn(conn, clone)
		})
	}
}

func (s *Server) handleConn(conn net.Conn, e engine.Engine) {
	defer conn.Close()
	defer e.Close()

	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Warn("server: failed to read request", "error", err)
		}
		return
	}

	resp := s.handle(msg, e)

	if err := protocol.WriteMessage(conn, resp); err != nil {
		s.logger.Warn("server: failed to write response", "error", err)
	}
}

func (s *Server) handle(msg protocol.Message, e engine.Engine) protocol.Message {
	arr, ok := msg.(protocol.ArrayMessage)
	if !ok {
		return protocol.ErrorMessage{Err: "received error message instead of request"}
	}

	if len(arr.Values) == 0 {
		return protocol.ErrorMessage{Err: "empty request"}
	}

	switch arr.Values[0] {
	case protocol.CmdGet:
		if len(arr.Values) != 2 {
			return protocol.ErrorMessage{Err: "get requires exactly one key"}
		}
		value, err := e.Get(arr.Values[1])
		if err != nil {
			if kvserr.Is(err, kvserr.KeyNotFound) {
				return protocol.ArrayMessage{Values: []string{}}
			}
			return protocol.ErrorMessage{Err: err.Error()}
		}
		return protocol.ArrayMessage{Values: []string{value}}

	case protocol.CmdSet:
		if len(arr.Values) != 3 {
			return protocol.ErrorMessage{Err: "set requires a key and a value"}
		}
		if err := e.Set(arr.Values[1], arr.Values[2]); err != nil {
			return protocol.ErrorMessage{Err: err.Error()}
		}
		return protocol.ArrayMessage{Values: []string{}}

	case protocol.CmdRemove:
		if len(arr.Values) != 2 {
			return protocol.ErrorMessage{Err: "remove requires exactly one key"}
		}
		if err := e.Remove(arr.Values[1]); err != nil {
			return protocol.ErrorMessage{Err: err.Error(), NotFound: kvserr.Is(err, kvserr.KeyNotFound)}
		}
		return protocol.ArrayMessage{Values: []string{}}

	case protocol.CmdClear:
		if len(arr.Values) != 1 {
			return protocol.ErrorMessage{Err: "clear takes no arguments"}
		}
		if err := e.Clear(); err != nil {
			return protocol.ErrorMessage{Err: err.Error()}
		}
		return protocol.ArrayMessage{Values: []string{}}

	default:
		return protocol.ErrorMessage{Err: "invalid incoming message"}
	}
}
