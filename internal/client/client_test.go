package client

import (
	"net"
	"testing"
	"time"

	"github.com/aether-labs/kvs/internal/engine"
	"github.com/aether-labs/kvs/internal/kvserr"
	"github.com/aether-labs/kvs/internal/server"
	"github.com/aether-labs/kvs/internal/threadpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()

	e, err := engine.Open(engine.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	pool := threadpool.NewQueuePool(2)
	t.Cleanup(pool.Close)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	srv := server.New(e, pool, nil)
	go srv.Serve(listener)

	return listener.Addr().String()
}

func TestClient_SetGetRemove(t *testing.T) {
	addr := startServer(t)
	c := New(addr, 2*time.Second)

	require.NoError(t, c.Set("a", "1"))

	value, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", value)

	require.NoError(t, c.Remove("a"))

	_, ok, err = c.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_RemoveMissingKeyReturnsError(t *testing.T) {
	addr := startServer(t)
	c := New(addr, 2*time.Second)

	err := c.Remove("missing")
	require.Error(t, err)
	assert.True(t, kvserr.Is(err, kvserr.KeyNotFound))
}

func TestClient_Clear(t *testing.T) {
	addr := startServer(t)
	c := New(addr, 2*time.Second)

	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))

	require.NoError(t, c.Clear())

	_, ok, err := c.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
}
