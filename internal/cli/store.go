package cli

import (
	"github.com/aether-labs/kvs/internal/client"
	"github.com/aether-labs/kvs/internal/engine"
	"github.com/aether-labs/kvs/internal/kvserr"
)

// EngineStore adapts a local engine.Engine to Store.
type EngineStore struct {
	Engine engine.Engine
}

func (s EngineStore) Set(key, value string) error { return s.Engine.Set(key, value) }

func (s EngineStore) Get(key string) (string, bool, error) {
	value, err := s.Engine.Get(key)
	if err != nil {
		if kvserr.Is(err, kvserr.KeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s EngineStore) Remove(key string) error { return s.Engine.Remove(key) }
func (s EngineStore) Clear() error            { return s.Engine.Clear() }

// ClientStore adapts a remote client.Client to Store.
type ClientStore struct {
	Client *client.Client
}

func (s ClientStore) Set(key, value string) error          { return s.Client.Set(key, value) }
func (s ClientStore) Get(key string) (string, bool, error) { return s.Client.Get(key) }
func (s ClientStore) Remove(key string) error              { return s.Client.Remove(key) }
func (s ClientStore) Clear() error                         { return s.Client.Clear() }
