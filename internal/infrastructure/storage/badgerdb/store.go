package badgerdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/keyring-labs/keyringd/internal/core/ports"
)

// keyValue is the record stored in badgerhold, one per secure store key.
// Values are opaque, sensitive ones arrive already encrypted.
type keyValue struct {
	Key   string `badgerhold:"key"`
	Value []byte
}

type secureStore struct {
	store *badgerhold.Store
}

// NewSecureStore opens (or creates if not exists) the badger store under the
// given data directory. The optional logger replaces badger's default one.
func NewSecureStore(
	baseDir string, logger badger.Logger,
) (ports.SecureStore, error) {
	db, err := createDb(filepath.Join(baseDir, "keyring"), logger)
	if err != nil {
		return nil, fmt.Errorf("opening keyring db: %w", err)
	}
	return &secureStore{db}, nil
}

func (s *secureStore) Get(
	_ context.Context, key string,
) ([]byte, bool, error) {
	var record keyValue
	if err := s.store.Get(key, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record.Value, true, nil
}

func (s *secureStore) Set(_ context.Context, key string, value []byte) error {
	return s.store.Upsert(key, keyValue{Key: key, Value: value})
}

func (s *secureStore) Remove(_ context.Context, key string) error {
	if err := s.store.Delete(key, keyValue{}); err != nil &&
		err != badgerhold.ErrNotFound {
		return err
	}
	return nil
}

func (s *secureStore) Close() error {
	return s.store.Close()
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
