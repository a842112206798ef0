// Package client implements the TCP client that talks to a
// server.Server over the wire protocol (spec component C9). It mirrors
// the reference client's half-close pattern: after writing a request it
// shuts down the write half of the connection so the server's read
// reaches a clean EOF, then reads the response off the same connection.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/aether-labs/kvs/internal/kvserr"
	"github.com/aether-labs/kvs/internal/protocol"
)

// Client sends requests to a single server address, dialing a fresh
// connection per request (matching the request/response, not session,
// shape of the wire protocol).
type Client struct {
	addr    string
	timeout time.Duration
}

// New returns a Client that dials addr. A zero timeout means no dial
// deadline.
func New(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

func (c *Client) send(req protocol.Message) (protocol.Message, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return nil, kvserr.Wrap(kvserr.Io, err)
	}
	defer conn.Close()

	if err := protocol.WriteMessage(conn, req); err != nil {
		return nil, kvserr.Wrap(kvserr.Io, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.CloseWrite(); err != nil {
			return nil, kvserr.Wrap(kvserr.Io, err)
		}
	}

	resp, err := protocol.ReadMessage(conn)
	if err != nil {
		return nil, kvserr.Wrap(kvserr.Protocol, err)
	}
	return resp, nil
}

// Set stores value under key on the server.
func (c *Client) Set(key, value string) error {
	resp, err := c.send(protocol.ArrayMessage{Values: []string{protocol.CmdSet, key, value}})
	if err != nil {
		return err
	}
	if e, ok := resp.(protocol.ErrorMessage); ok {
		return kvserr.Newf(kvserr.Protocol, "%s", e.Err)
	}
	return nil
}

// Get returns the value for key, and whether the key exists.
func (c *Client) Get(key string) (string, bool, error) {
	resp, err := c.send(protocol.ArrayMessage{Values: []string{protocol.CmdGet, key}})
	if err != nil {
		return "", false, err
	}
	switch m := resp.(type) {
	case protocol.ErrorMessage:
		return "", false, kvserr.Newf(kvserr.Protocol, "%s", m.Err)
	case protocol.ArrayMessage:
		if len(m.Values) == 0 {
			return "", false, nil
		}
		if len(m.Values) != 1 {
			return "", false, fmt.Errorf("client: unexpected server response: %v", m.Values)
		}
		return m.Values[0], true, nil
	default:
		return "", false, fmt.Errorf("client: unexpected response type %T", resp)
	}
}

// Clear removes every key on the server.
func (c *Client) Clear() error {
	resp, err := c.send(protocol.ArrayMessage{Values: []string{protocol.CmdClear}})
	if err != nil {
		return err
	}
	if e, ok := resp.(protocol.ErrorMessage); ok {
		return kvserr.Newf(kvserr.Protocol, "%s", e.Err)
	}
	return nil
}

// Remove deletes key on the server. It returns a *kvserr.Error with Kind
// kvserr.KeyNotFound if the key was absent, so callers (the CLI's exit
// code logic in particular) don't need to pattern-match on err.Error().
func (c *Client) Remove(key string) error {
	resp, err := c.send(protocol.ArrayMessage{Values: []string{protocol.CmdRemove, key}})
	if err != nil {
		return err
	}
	if e, ok := resp.(protocol.ErrorMessage); ok {
		if e.NotFound {
			return kvserr.Newf(kvserr.KeyNotFound, "%s", e.Err)
		}
		return kvserr.Newf(kvserr.Protocol, "%s", e.Err)
	}
	return nil
}
