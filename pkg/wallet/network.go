package wallet

import (
	"github.com/btcsuite/btcd/chaincfg"
)

// BIP84 extended key version bytes. Keys of BIP84 accounts are serialized
// with zprv/zpub prefixes on mainnet chains and vprv/vpub on testnet ones,
// instead of the legacy xprv/xpub (mainnet) and tprv/tpub (testnet).
var (
	mainnetHDPrivateKeyID = [4]byte{0x04, 0xb2, 0x43, 0x0c} // zprv
	mainnetHDPublicKeyID  = [4]byte{0x04, 0xb2, 0x47, 0x46} // zpub
	testnetHDPrivateKeyID = [4]byte{0x04, 0x5f, 0x18, 0xbc} // vprv
	testnetHDPublicKeyID  = [4]byte{0x04, 0x5f, 0x1c, 0xf6} // vpub
)

func init() {
	// hdkeychain resolves private to public version bytes through the
	// chaincfg registry when neutering, so the BIP84 pairs must be known
	// to it even though the custom params are never registered.
	if err := chaincfg.RegisterHDKeyID(
		mainnetHDPublicKeyID[:], mainnetHDPrivateKeyID[:],
	); err != nil {
		panic(err)
	}
	if err := chaincfg.RegisterHDKeyID(
		testnetHDPublicKeyID[:], testnetHDPrivateKeyID[:],
	); err != nil {
		panic(err)
	}
}

// NetworkParamsOpts is the struct given to the NetworkParams factory.
type NetworkParamsOpts struct {
	Name         string
	Slip44       uint32
	Bech32HRP    string
	PubKeyHashID byte
	ScriptHashID byte
	WIFID        byte
	Testnet      bool
}

func (o NetworkParamsOpts) validate() error {
	if len(o.Name) <= 0 || len(o.Bech32HRP) <= 0 {
		return ErrNullNetwork
	}
	return nil
}

// NetworkParams returns the chain parameters of a UTXO network with the HD
// extended key version bytes overridden to the BIP84 ones, so that account
// keys serialize as zprv/zpub (vprv/vpub on testnets). The base params are
// cloned from the standard bitcoin chains and reshaped with the network
// specific address encodings.
func NetworkParams(opts NetworkParamsOpts) (*chaincfg.Params, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	base := chaincfg.MainNetParams
	if opts.Testnet {
		base = chaincfg.TestNet3Params
	}

	params := base
	params.Name = opts.Name
	params.Bech32HRPSegwit = opts.Bech32HRP
	params.PubKeyHashAddrID = opts.PubKeyHashID
	params.ScriptHashAddrID = opts.ScriptHashID
	params.PrivateKeyID = opts.WIFID
	params.HDCoinType = opts.Slip44
	if opts.Testnet {
		params.HDPrivateKeyID = testnetHDPrivateKeyID
		params.HDPublicKeyID = testnetHDPublicKeyID
	} else {
		params.HDPrivateKeyID = mainnetHDPrivateKeyID
		params.HDPublicKeyID = mainnetHDPublicKeyID
	}

	return &params, nil
}

// MainNetParams returns the bitcoin mainnet parameters with BIP84 extended
// key version bytes.
func MainNetParams() *chaincfg.Params {
	params, _ := NetworkParams(NetworkParamsOpts{
		Name:         chaincfg.MainNetParams.Name,
		Slip44:       chaincfg.MainNetParams.HDCoinType,
		Bech32HRP:    chaincfg.MainNetParams.Bech32HRPSegwit,
		PubKeyHashID: chaincfg.MainNetParams.PubKeyHashAddrID,
		ScriptHashID: chaincfg.MainNetParams.ScriptHashAddrID,
		WIFID:        chaincfg.MainNetParams.PrivateKeyID,
	})
	return params
}

// TestNetParams returns the bitcoin testnet3 parameters with BIP84 extended
// key version bytes.
func TestNetParams() *chaincfg.Params {
	params, _ := NetworkParams(NetworkParamsOpts{
		Name:         chaincfg.TestNet3Params.Name,
		Slip44:       chaincfg.TestNet3Params.HDCoinType,
		Bech32HRP:    chaincfg.TestNet3Params.Bech32HRPSegwit,
		PubKeyHashID: chaincfg.TestNet3Params.PubKeyHashAddrID,
		ScriptHashID: chaincfg.TestNet3Params.ScriptHashAddrID,
		WIFID:        chaincfg.TestNet3Params.PrivateKeyID,
		Testnet:      true,
	})
	return params
}

// IsTestnetParams reports whether the given chain params carry testnet
// extended key version bytes.
func IsTestnetParams(params *chaincfg.Params) bool {
	return params.HDPrivateKeyID == testnetHDPrivateKeyID
}
