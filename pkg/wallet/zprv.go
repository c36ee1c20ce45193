package wallet

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Known serialization prefixes of account level extended private keys.
const (
	MainnetExtendedKeyPrefix       = "zprv"
	TestnetExtendedKeyPrefix       = "vprv"
	LegacyMainnetExtendedKeyPrefix = "xprv"
	LegacyTestnetExtendedKeyPrefix = "tprv"
)

// ExtendedKeyValidation is the result of ValidateExtendedKey. It is shaped
// as a report rather than an error because callers surface the message to
// the user verbatim, whether the key is importable or not.
type ExtendedKeyValidation struct {
	IsValid bool
	Message string
	Node    *hdkeychain.ExtendedKey
}

// ValidateExtendedKeyOpts is the struct given to ValidateExtendedKey method
type ValidateExtendedKeyOpts struct {
	Key    string
	Params *chaincfg.Params
}

func (o ValidateExtendedKeyOpts) validate() error {
	if len(o.Key) <= 0 {
		return ErrNullMasterKey
	}
	if o.Params == nil {
		return ErrNullNetwork
	}
	return nil
}

// ValidateExtendedKey checks that the given serialized extended private key
// is importable on the network identified by the given params: it must
// carry BIP84 version bytes (zprv/vprv, legacy xprv/tprv keys are refused),
// decode to a private BIP32 node compatible with the network, and hold a
// valid secp256k1 scalar.
func ValidateExtendedKey(opts ValidateExtendedKeyOpts) ExtendedKeyValidation {
	if err := opts.validate(); err != nil {
		return ExtendedKeyValidation{Message: err.Error()}
	}

	prefix := ""
	if len(opts.Key) >= 4 {
		prefix = opts.Key[:4]
	}
	switch prefix {
	case MainnetExtendedKeyPrefix, TestnetExtendedKeyPrefix:
	case LegacyMainnetExtendedKeyPrefix, LegacyTestnetExtendedKeyPrefix:
		return ExtendedKeyValidation{Message: ErrNotSegwitExtendedKey.Error()}
	default:
		return ExtendedKeyValidation{Message: ErrInvalidExtendedKey.Error()}
	}

	node, err := hdkeychain.NewKeyFromString(opts.Key)
	if err != nil {
		return ExtendedKeyValidation{
			Message: fmt.Sprintf("%s: %v", ErrInvalidExtendedKey, err),
		}
	}
	if !node.IsPrivate() {
		return ExtendedKeyValidation{Message: ErrInvalidExtendedKey.Error()}
	}

	if !node.IsForNet(opts.Params) {
		expected := MainnetExtendedKeyPrefix
		if IsTestnetParams(opts.Params) {
			expected = TestnetExtendedKeyPrefix
		}
		return ExtendedKeyValidation{
			Message: fmt.Sprintf(
				"%s key is not compatible with the active network, %s expected",
				prefix, expected,
			),
		}
	}

	if _, err := node.ECPrivKey(); err != nil {
		return ExtendedKeyValidation{
			Message: fmt.Sprintf("%s: %v", ErrInvalidExtendedKey, err),
		}
	}

	return ExtendedKeyValidation{IsValid: true, Node: node}
}

// ParseAccountExtendedKey decodes an account level extended private key
// trying the given network params first and falling back to the mirrored
// alternate network, so that a key exported on mainnet can be reused on the
// paired testnet and the other way around. The first succeeding parse wins.
func ParseAccountExtendedKey(
	key string, params, alternate *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	validation := ValidateExtendedKey(ValidateExtendedKeyOpts{
		Key:    key,
		Params: params,
	})
	if validation.IsValid {
		return validation.Node, nil
	}
	if strings.Contains(validation.Message, "not compatible") && alternate != nil {
		altValidation := ValidateExtendedKey(ValidateExtendedKeyOpts{
			Key:    key,
			Params: alternate,
		})
		if altValidation.IsValid {
			return altValidation.Node, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrIncompatibleExtendedKey, validation.Message)
}
