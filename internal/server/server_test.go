package server

import (
	"net"
	"testing"
	"time"

	"github.com/aether-labs/kvs/internal/engine"
	"github.com/aether-labs/kvs/internal/protocol"
	"github.com/aether-labs/kvs/internal/threadpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, poolKind threadpool.Kind) string {
	t.Helper()

	e, err := engine.Open(engine.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	pool, err := threadpool.New(poolKind, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(e, pool, nil)
	go srv.Serve(listener)
	t.Cleanup(func() { listener.Close() })

	return listener.Addr().String()
}

func sendRequest(t *testing.T, addr string, req protocol.Message) protocol.Message {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.WriteMessage(conn, req))
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	resp, err := protocol.ReadMessage(conn)
	require.NoError(t, err)
	return resp
}

func TestServer_SetGetRemove(t *testing.T) {
	addr := startTestServer(t, threadpool.Queue)

	resp := sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdSet, "a", "1"}})
	assert.Equal(t, protocol.ArrayMessage{Values: []string{}}, resp)

	resp = sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdGet, "a"}})
	assert.Equal(t, protocol.ArrayMessage{Values: []string{"1"}}, resp)

	resp = sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdRemove, "a"}})
	assert.Equal(t, protocol.ArrayMessage{Values: []string{}}, resp)

	resp = sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdGet, "a"}})
	assert.Equal(t, protocol.ArrayMessage{Values: []string{}}, resp)
}

func TestServer_GetMissingKeyReturnsEmptyArray(t *testing.T) {
	addr := startTestServer(t, threadpool.Naive)

	resp := sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdGet, "missing"}})
	assert.Equal(t, protocol.ArrayMessage{Values: []string{}}, resp)
}

func TestServer_RemoveMissingKeyReturnsError(t *testing.T) {
	addr := startTestServer(t, threadpool.Queue)

	resp := sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdRemove, "missing"}})
	errMsg, ok := resp.(protocol.ErrorMessage)
	require.True(t, ok)
	assert.True(t, errMsg.NotFound)
}

func TestServer_ClearRemovesEverything(t *testing.T) {
	addr := startTestServer(t, threadpool.Queue)

	sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdSet, "a", "1"}})
	sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdSet, "b", "2"}})

	resp := sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdClear}})
	assert.Equal(t, protocol.ArrayMessage{Values: []string{}}, resp)

	resp = sendRequest(t, addr, protocol.ArrayMessage{Values: []string{protocol.CmdGet, "a"}})
	assert.Equal(t, protocol.ArrayMessage{Values: []string{}}, resp)
}

func TestServer_MalformedRequestReturnsError(t *testing.T) {
	addr := startTestServer(t, threadpool.Queue)

	resp := sendRequest(t, addr, protocol.ArrayMessage{Values: []string{"bogus"}})
	_, ok := resp.(protocol.ErrorMessage)
	assert.True(t, ok)
}
