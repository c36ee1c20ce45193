package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/keyring-labs/keyringd/pkg/wallet"
)

// Network describes a chain the keyring can operate on. UTXO networks carry
// the address encoding fields, EVM ones the chain id.
type Network struct {
	Name         string      `json:"name"`
	ChainFamily  ChainFamily `json:"chainFamily"`
	Slip44       uint32      `json:"slip44"`
	Currency     string      `json:"currency"`
	URL          string      `json:"url"`
	ExplorerURL  string      `json:"explorerUrl"`
	ChainId      uint64      `json:"chainId,omitempty"`
	Testnet      bool        `json:"testnet"`
	Bech32HRP    string      `json:"bech32Hrp,omitempty"`
	PubKeyHashID byte        `json:"pubKeyHashId,omitempty"`
	ScriptHashID byte        `json:"scriptHashId,omitempty"`
	WIFID        byte        `json:"wifId,omitempty"`
}

// Identity returns the signer identity of the network. Two networks with the
// same identity can share the HD signer, switching between networks with
// different identities requires rebuilding it.
func (n *Network) Identity() string {
	id := uint64(n.Slip44)
	if n.ChainFamily == EvmChainFamily {
		id = n.ChainId
	}
	return fmt.Sprintf("%d|%t|%s", id, n.Testnet, n.URL)
}

// WalletParams returns the chain parameters used by the UTXO engine for key
// serialization and address encoding on this network.
func (n *Network) WalletParams() (*chaincfg.Params, error) {
	if n.ChainFamily != UtxoChainFamily {
		return nil, ErrChainFamilyMismatch
	}
	return wallet.NetworkParams(wallet.NetworkParamsOpts{
		Name:         n.Name,
		Slip44:       n.Slip44,
		Bech32HRP:    n.Bech32HRP,
		PubKeyHashID: n.PubKeyHashID,
		ScriptHashID: n.ScriptHashID,
		WIFID:        n.WIFID,
		Testnet:      n.Testnet,
	})
}

// Clone returns a copy of the network.
func (n *Network) Clone() *Network {
	cloned := *n
	return &cloned
}
