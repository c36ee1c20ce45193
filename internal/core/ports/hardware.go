package ports

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotConnected is returned by any signing capability invoked
	// before a successful Connect, or after the device has been unplugged.
	ErrDeviceNotConnected = errors.New("hardware device is not connected")
	// ErrUserCancelled is returned when the operation is explicitly denied
	// on the device. It must never be retried automatically.
	ErrUserCancelled = errors.New("operation cancelled by the user on the device")
)

// DeviceError wraps any other failure reported by a hardware device.
type DeviceError struct {
	Msg string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s", e.Msg)
}

// PublicKeyReply is the key material a device exposes for a derivation path.
// ChainCode is empty for devices that only expose bare public keys.
type PublicKeyReply struct {
	PublicKey string
	ChainCode string
}

// EvmSignature is the raw signature of an EVM transaction as returned by a
// device, with the three components hex encoded.
type EvmSignature struct {
	R string
	S string
	V string
}

// InputSignature pairs the partial signature a device produced for one psbt
// input with the public key it verifies against.
type InputSignature struct {
	InputIndex int
	PubKey     []byte
	Signature  []byte
}

// HardwareSigner is the capability contract a physical signing device is
// reduced to. The device transport and wire protocol live behind it; the
// keyring only ever sees derivation paths, digests and signatures. Every
// operation may block on a physical confirmation and must honor the context.
type HardwareSigner interface {
	// GetAddress returns the address at the given absolute derivation path.
	GetAddress(ctx context.Context, path string) (string, error)
	// GetPublicKey returns the public key, and the chain code when the
	// device exposes extended keys, at the given path.
	GetPublicKey(ctx context.Context, path string) (*PublicKeyReply, error)
	// SignMessage signs the message at the given path following the
	// personal sign convention of the chain.
	SignMessage(ctx context.Context, path string, message []byte) (string, error)
	// SignTypedData signs the EIP712 digest assembled from the given domain
	// separator and message hashes.
	SignTypedData(
		ctx context.Context, path string, domainHash, messageHash []byte,
	) (string, error)
	// SignEvmTransaction signs the serialized unsigned EVM transaction and
	// returns the raw signature components.
	SignEvmTransaction(
		ctx context.Context, path string, rawTx []byte,
	) (*EvmSignature, error)
	// SignUtxoPsbt signs the inputs of the given base64 psbt belonging to
	// the wallet described by the given policy descriptor and returns one
	// partial signature per signable input.
	SignUtxoPsbt(
		ctx context.Context, psbtBase64, walletPolicy string,
	) ([]InputSignature, error)
	// Connect performs the connection handshake.
	Connect(ctx context.Context) error
	// IsConnected reports whether the device is reachable.
	IsConnected() bool
	// Dispose tears down the connection. The next operation requires a new
	// Connect.
	Dispose()
}
