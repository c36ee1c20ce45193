package application

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

// signWithHDWallet signs every input with keys derived from the wallet
// master node. The derivation path of each input is resolved by scanning the
// account branches for the input script.
func (t *transactionService) signWithHDWallet(
	account *domain.Account, psbtBase64 string,
) (string, error) {
	params, err := t.store.state.ActiveNetwork.WalletParams()
	if err != nil {
		return "", err
	}
	pathByScript, err := scriptPathsForAccount(account, params, true)
	if err != nil {
		return "", err
	}
	return t.store.hdWallet.SignTransaction(wallet.SignTransactionOpts{
		PsbtBase64:        psbtBase64,
		DerivationPathMap: pathByScript,
	})
}

// signWithImportedKey signs with the account extended key decrypted from the
// book entry. The key may be serialized for the paired network, the parser
// falls back to it.
func (t *transactionService) signWithImportedKey(
	account *domain.Account, psbtBase64 string,
) (string, error) {
	net := t.store.state.ActiveNetwork
	params, err := net.WalletParams()
	if err != nil {
		return "", err
	}
	alternate, err := alternateParams(net)
	if err != nil {
		return "", err
	}

	xprv, err := wallet.DecryptWithKey(
		account.EncryptedXprv, t.store.sessionKey(),
	)
	if err != nil {
		return "", err
	}
	accountKey, err := wallet.ParseAccountExtendedKey(xprv, params, alternate)
	if err != nil {
		return "", err
	}

	pathByScript, err := scriptPathsForAccount(account, params, false)
	if err != nil {
		return "", err
	}
	return wallet.SignPsbtWithAccountKey(accountKey, psbtBase64, pathByScript)
}

// scriptPathsForAccount maps the output script of every account address
// within the gap limit to its derivation path. Full paths carry the
// hardened account level for master node signing, relative ones only
// change/index for account key signing.
func scriptPathsForAccount(
	account *domain.Account, params *chaincfg.Params, fullPath bool,
) (map[string]string, error) {
	node, err := hdkeychain.NewKeyFromString(account.Xpub)
	if err != nil {
		return nil, err
	}
	paths := make(map[string]string)
	for _, branch := range []uint32{wallet.ExternalBranch, wallet.InternalBranch} {
		for index := uint32(0); index <= addressGapLimit; index++ {
			address, err := wallet.AddressFromExtendedKey(
				node, branch, index, params,
			)
			if err != nil {
				return nil, err
			}
			script, err := wallet.OutputScriptForAddress(address, params)
			if err != nil {
				return nil, err
			}
			path := fmt.Sprintf("%d/%d", branch, index)
			if fullPath {
				path = fmt.Sprintf("%d'/%d/%d", account.Id, branch, index)
			}
			paths[hex.EncodeToString(script)] = path
		}
	}
	return paths, nil
}

// walletPolicyForAccount renders the single key descriptor devices register
// the account under. The key origin recorded at pairing time pins the exact
// derivation path, so devices resolve the key without scanning coin types.
func walletPolicyForAccount(account *domain.Account) string {
	if account.DerivationPath != "" {
		origin := strings.TrimPrefix(account.DerivationPath, "m/")
		return fmt.Sprintf("wpkh([%s]%s/<0;1>/*)", origin, account.Xpub)
	}
	return fmt.Sprintf("wpkh(%s/<0;1>/*)", account.Xpub)
}

// applyInputSignatures merges the partial signatures returned by a device
// into the packet.
func applyInputSignatures(
	ptx *psbt.Packet, signatures []ports.InputSignature,
) error {
	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return err
	}
	for _, sig := range signatures {
		if sig.InputIndex < 0 || sig.InputIndex >= len(ptx.Inputs) {
			return fmt.Errorf("signature for unknown input %d", sig.InputIndex)
		}
		if _, err := updater.Sign(
			sig.InputIndex, sig.Signature, sig.PubKey, nil, nil,
		); err != nil {
			return err
		}
	}
	return nil
}
