package inmemory

import (
	"context"
	"sync"

	"github.com/keyring-labs/keyringd/internal/core/ports"
)

// secureStore is a volatile SecureStore backed by a map. Values are copied
// on the way in and out, callers never share slices with the store. Safe for
// concurrent use.
type secureStore struct {
	lock   *sync.RWMutex
	values map[string][]byte
}

// NewSecureStore returns an in-memory secure store, mainly for tests.
func NewSecureStore() ports.SecureStore {
	return &secureStore{
		lock:   &sync.RWMutex{},
		values: make(map[string][]byte),
	}
}

func (s *secureStore) Get(
	_ context.Context, key string,
) ([]byte, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *secureStore) Set(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	buf := make([]byte, len(value))
	copy(buf, value)
	s.values[key] = buf
	return nil
}

func (s *secureStore) Remove(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.values, key)
	return nil
}

func (s *secureStore) Close() error {
	return nil
}
