package ports

import "context"

// SecureStore is the persistence contract of the keyring. It is a plain
// key/value store: values are opaque bytes, encrypted upstream whenever they
// are sensitive, so implementations never need to care about encryption
// themselves.
type SecureStore interface {
	// Get returns the value stored under the given key and whether the key
	// exists at all.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value under the given key, replacing any previous one.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes the key and its value. Removing a missing key is not an
	// error.
	Remove(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}
