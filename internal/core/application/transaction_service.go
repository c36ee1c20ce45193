package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/explorer"
	"github.com/keyring-labs/keyringd/pkg/mathutil"
	"github.com/keyring-labs/keyringd/pkg/transactionutil"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

const (
	// addressGapLimit bounds the per-branch scan of account addresses when
	// querying the chain for unspents.
	addressGapLimit = 20
	// evmTransferGasLimit is the fixed gas cost of a plain value transfer.
	evmTransferGasLimit = 21000
)

// TransactionService is the build, sign and broadcast pipeline. UTXO
// transfers travel between the phases as serialized envelopes, EVM ones are
// signed and submitted in a single call.
type TransactionService interface {
	EstimateFee(ctx context.Context) (float64, error)
	BuildNativeTransfer(
		ctx context.Context, opts BuildNativeTransferOpts,
	) (*BuildTransferReply, error)
	BuildAssetTransfer(
		ctx context.Context, opts BuildAssetTransferOpts,
	) (*BuildTransferReply, error)
	SignTransaction(
		ctx context.Context, envelope string, kind SignerKind,
	) (string, error)
	BroadcastTransaction(ctx context.Context, envelope string) (string, error)
	SendEvmTransaction(
		ctx context.Context, opts SendEvmTransactionOpts,
	) (string, error)
	SignMessage(ctx context.Context, message []byte) (string, error)
}

type transactionService struct {
	store *walletStore
}

func newTransactionService(store *walletStore) *transactionService {
	return &transactionService{store}
}

func (t *transactionService) EstimateFee(ctx context.Context) (float64, error) {
	t.store.lock.Lock()
	defer t.store.lock.Unlock()

	return t.resolveFeeRate(nil)
}

func (t *transactionService) BuildNativeTransfer(
	ctx context.Context, opts BuildNativeTransferOpts,
) (*BuildTransferReply, error) {
	t.store.lock.Lock()
	defer t.store.lock.Unlock()

	if err := t.store.requireUnlocked(); err != nil {
		return nil, err
	}
	if t.store.activeFamily() != domain.UtxoChainFamily {
		return nil, domain.ErrChainFamilyMismatch
	}
	account, err := t.store.state.ActiveAccount()
	if err != nil {
		return nil, err
	}

	feeRate, err := t.resolveFeeRate(opts.FeeRate)
	if err != nil {
		return nil, err
	}
	params, err := t.store.state.ActiveNetwork.WalletParams()
	if err != nil {
		return nil, err
	}

	unspents, err := t.accountUnspents(account, params)
	if err != nil {
		return nil, err
	}

	amount := mathutil.ToSatoshis(opts.Amount)
	changePath, changeAddress, err := t.changeTarget(account, params)
	if err != nil {
		return nil, err
	}

	result, err := t.store.hdWallet.BuildTransaction(wallet.BuildTransactionOpts{
		Unspents: unspents,
		Recipients: []wallet.Recipient{
			{Address: opts.Recipient, Amount: amount},
		},
		ChangeDerivationPath:          changePath,
		ChangeAddress:                 changeAddress,
		SatsPerByte:                   feeRate,
		SubtractFeeFromFirstRecipient: opts.SubtractFeeFromAmount,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			return nil, insufficientNativeFunds(unspents, amount, feeRate)
		}
		return nil, domain.NewTxError(
			domain.TransactionCreationFailed, err.Error(),
		)
	}

	envelope, err := transactionutil.NewEnvelope(result.PsbtBase64, "").Serialize()
	if err != nil {
		return nil, err
	}
	log.Debugf(
		"built native transfer of %d sats with fee %d", amount, result.Fee,
	)
	return &BuildTransferReply{
		Envelope: envelope,
		Fee:      mathutil.FromSatoshis(result.Fee),
	}, nil
}

func (t *transactionService) BuildAssetTransfer(
	ctx context.Context, opts BuildAssetTransferOpts,
) (*BuildTransferReply, error) {
	t.store.lock.Lock()
	defer t.store.lock.Unlock()

	if err := t.store.requireUnlocked(); err != nil {
		return nil, err
	}
	if t.store.activeFamily() != domain.UtxoChainFamily {
		return nil, domain.ErrChainFamilyMismatch
	}
	if err := validateAllocations(opts.Allocations); err != nil {
		return nil, err
	}
	account, err := t.store.state.ActiveAccount()
	if err != nil {
		return nil, err
	}

	feeRate, err := t.resolveFeeRate(opts.FeeRate)
	if err != nil {
		return nil, err
	}
	params, err := t.store.state.ActiveNetwork.WalletParams()
	if err != nil {
		return nil, err
	}

	unspents, err := t.accountUnspents(account, params)
	if err != nil {
		return nil, err
	}

	// the commitment payload is the allocation map itself, indexers decode
	// it to color the outputs
	payload, err := json.Marshal(opts.Allocations)
	if err != nil {
		return nil, err
	}
	transfers := sortedTransfers(opts.Allocations)
	changePath, changeAddress, err := t.changeTarget(account, params)
	if err != nil {
		return nil, err
	}

	result, err := t.store.hdWallet.BuildAssetTransaction(
		wallet.BuildAssetTransactionOpts{
			Unspents:             unspents,
			Transfers:            transfers,
			ChangeDerivationPath: changePath,
			ChangeAddress:        changeAddress,
			SatsPerByte:          feeRate,
			AssetPayload:         payload,
		},
	)
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			return nil, insufficientAssetFunds(unspents, transfers, err)
		}
		if errors.Is(err, wallet.ErrInvalidRecipientAddress) ||
			errors.Is(err, wallet.ErrZeroOutputAmount) {
			return nil, domain.NewTxError(
				domain.InvalidAssetAllocation, err.Error(),
			)
		}
		return nil, domain.NewTxError(
			domain.TransactionCreationFailed, err.Error(),
		)
	}

	envelope, err := transactionutil.NewEnvelope(
		result.PsbtBase64, string(payload),
	).Serialize()
	if err != nil {
		return nil, err
	}
	return &BuildTransferReply{
		Envelope: envelope,
		Fee:      mathutil.FromSatoshis(result.Fee),
	}, nil
}

func (t *transactionService) SignTransaction(
	ctx context.Context, rawEnvelope string, kind SignerKind,
) (string, error) {
	t.store.lock.RLock()
	defer t.store.lock.RUnlock()

	if err := t.store.requireUnlocked(); err != nil {
		return "", err
	}
	if t.store.activeFamily() != domain.UtxoChainFamily {
		return "", domain.ErrChainFamilyMismatch
	}
	envelope, err := transactionutil.ParseEnvelope(rawEnvelope)
	if err != nil {
		return "", err
	}
	account, err := t.store.state.ActiveAccount()
	if err != nil {
		return "", err
	}
	if SignerKindForAccount(account) != kind {
		return "", ErrSignerKindMismatch
	}

	var signedPsbt string
	switch kind {
	case HDSignerKind:
		signedPsbt, err = t.signWithHDWallet(account, envelope.Psbt)
	case ImportedSignerKind:
		signedPsbt, err = t.signWithImportedKey(account, envelope.Psbt)
	case TrezorSignerKind:
		signedPsbt, err = t.signWithTrezor(ctx, account, envelope.Psbt)
	case LedgerSignerKind:
		signedPsbt, err = t.signWithLedger(ctx, account, envelope.Psbt)
	default:
		return "", ErrUnknownSignerKind
	}
	if err != nil {
		return "", err
	}

	envelope.Psbt = signedPsbt
	return envelope.Serialize()
}

func (t *transactionService) BroadcastTransaction(
	ctx context.Context, rawEnvelope string,
) (string, error) {
	t.store.lock.Lock()
	defer t.store.lock.Unlock()

	envelope, err := transactionutil.ParseEnvelope(rawEnvelope)
	if err != nil {
		return "", domain.ErrMissingSignedTx
	}
	// an unsigned or partially signed psbt cannot be finalized, which is
	// exactly the missing-signed-transaction case
	txHex, txid, err := transactionutil.FinalizeAndExtractTransaction(
		transactionutil.FinalizeAndExtractTransactionOpts{
			PsbtBase64: envelope.Psbt,
		},
	)
	if err != nil {
		return "", domain.ErrMissingSignedTx
	}

	chainQuery, err := t.store.ensureChainQuery()
	if err != nil {
		return "", err
	}
	if _, err := chainQuery.BroadcastTransaction(txHex); err != nil {
		return "", domain.NewTxError(domain.TransactionSendFailed, err.Error())
	}

	log.Debugf("broadcasted transaction %s", txid)
	return txid, nil
}

func (t *transactionService) SendEvmTransaction(
	ctx context.Context, opts SendEvmTransactionOpts,
) (string, error) {
	t.store.lock.Lock()
	defer t.store.lock.Unlock()

	if err := t.store.requireUnlocked(); err != nil {
		return "", err
	}
	if t.store.activeFamily() != domain.EvmChainFamily {
		return "", domain.ErrChainFamilyMismatch
	}
	account, err := t.store.state.ActiveAccount()
	if err != nil {
		return "", err
	}
	evmChain, err := t.store.ensureEvmChain(ctx)
	if err != nil {
		return "", err
	}

	value := mathutil.ToWei(opts.Amount)
	nonce, err := evmChain.PendingNonceAt(ctx, account.Address)
	if err != nil {
		return "", domain.NewTxError(
			domain.TransactionCreationFailed, err.Error(),
		)
	}
	tip, err := evmChain.SuggestGasTipCap(ctx)
	if err != nil {
		return "", domain.NewTxError(
			domain.TransactionCreationFailed, err.Error(),
		)
	}
	baseFee, err := evmChain.BaseFee(ctx)
	if err != nil {
		return "", domain.NewTxError(
			domain.TransactionCreationFailed, err.Error(),
		)
	}
	// the cap absorbs a base fee doubling between quote and inclusion
	feeCap := new(big.Int).Add(
		new(big.Int).Mul(baseFee, big.NewInt(2)), tip,
	)

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		if len(opts.Data) > 0 {
			gasLimit, err = evmChain.EstimateGas(
				ctx, account.Address, opts.To, value, opts.Data,
			)
			if err != nil {
				return "", domain.NewTxError(
					domain.TransactionCreationFailed, err.Error(),
				)
			}
		} else {
			gasLimit = evmTransferGasLimit
		}
	}

	balance, err := evmChain.BalanceAt(ctx, account.Address)
	if err != nil {
		return "", domain.NewTxError(
			domain.TransactionCreationFailed, err.Error(),
		)
	}
	maxCost := new(big.Int).Add(
		value, new(big.Int).Mul(feeCap, new(big.Int).SetUint64(gasLimit)),
	)
	if balance.Cmp(maxCost) < 0 {
		available, _ := mathutil.FromWei(balance).Float64()
		required, _ := mathutil.FromWei(maxCost).Float64()
		return "", domain.NewInsufficientFundsError(available, required)
	}

	var rawTx string
	if account.IsHardware() {
		rawTx, err = t.signEvmWithHardware(ctx, account, &evmTxParams{
			chainID:  evmChain.ChainID(),
			nonce:    nonce,
			to:       opts.To,
			value:    value,
			gasLimit: gasLimit,
			feeCap:   feeCap,
			tipCap:   tip,
			data:     opts.Data,
		})
		if err != nil {
			return "", err
		}
	} else {
		keyHex, err := wallet.DecryptWithKey(
			account.EncryptedXprv, t.store.sessionKey(),
		)
		if err != nil {
			return "", err
		}
		evmAccount, err := evm.NewAccountFromPrivateKey(keyHex)
		if err != nil {
			return "", err
		}
		if rawTx, _, err = evmAccount.SignTransaction(evm.SignTransactionOpts{
			ChainID:   evmChain.ChainID(),
			Nonce:     nonce,
			To:        opts.To,
			Value:     value,
			GasLimit:  gasLimit,
			GasFeeCap: feeCap,
			GasTipCap: tip,
			Data:      opts.Data,
		}); err != nil {
			return "", err
		}
	}

	txid, err := evmChain.SendRawTransaction(ctx, rawTx)
	if err != nil {
		return "", domain.NewTxError(domain.TransactionSendFailed, err.Error())
	}
	log.Debugf("sent evm transaction %s", txid)
	return txid, nil
}

func (t *transactionService) SignMessage(
	ctx context.Context, message []byte,
) (string, error) {
	t.store.lock.RLock()
	defer t.store.lock.RUnlock()

	if err := t.store.requireUnlocked(); err != nil {
		return "", err
	}
	if t.store.activeFamily() != domain.EvmChainFamily {
		return "", domain.ErrChainFamilyMismatch
	}
	account, err := t.store.state.ActiveAccount()
	if err != nil {
		return "", err
	}

	if account.IsHardware() {
		signer, err := t.store.hardwareSignerForType(account.Type())
		if err != nil {
			return "", err
		}
		return signer.SignMessage(ctx, account.DerivationPath, message)
	}

	keyHex, err := wallet.DecryptWithKey(
		account.EncryptedXprv, t.store.sessionKey(),
	)
	if err != nil {
		return "", err
	}
	evmAccount, err := evm.NewAccountFromPrivateKey(keyHex)
	if err != nil {
		return "", err
	}
	return evmAccount.SignMessage(message)
}

// resolveFeeRate returns the fee rate to build with, in sats per virtual
// byte. An explicit rate always wins, otherwise the chain estimator is asked
// for a next block quote.
func (t *transactionService) resolveFeeRate(explicit *float64) (float64, error) {
	if explicit != nil {
		if *explicit <= 0 {
			return 0, domain.NewTxError(
				domain.InvalidFeeRate, "fee rate must be positive",
			)
		}
		return *explicit, nil
	}

	chainQuery, err := t.store.ensureChainQuery()
	if err != nil {
		return 0, err
	}
	satsPerKilobyte, err := chainQuery.EstimateFees(1)
	if err != nil {
		return 0, domain.NewTxError(domain.InvalidFeeRate, err.Error())
	}
	rate := mathutil.KilobyteToByteRate(satsPerKilobyte)
	if rate <= 0 {
		return 0, domain.NewTxError(
			domain.InvalidFeeRate, "estimator returned a non positive rate",
		)
	}
	return rate, nil
}

// accountUnspents fetches the utxos of every address the account controls
// within the gap limit.
func (t *transactionService) accountUnspents(
	account *domain.Account, params *chaincfg.Params,
) ([]explorer.Utxo, error) {
	chainQuery, err := t.store.ensureChainQuery()
	if err != nil {
		return nil, err
	}
	addresses, err := watchedAddresses(account, params)
	if err != nil {
		return nil, err
	}
	unspents, err := chainQuery.GetUnspentsForAddresses(addresses)
	if err != nil {
		return nil, domain.NewTxError(
			domain.TransactionCreationFailed, err.Error(),
		)
	}
	return unspents, nil
}

// changeTarget returns where the change of a build goes back to. HD accounts
// get a fresh change derivation path the wallet can derive itself, imported
// and hardware accounts get the address derived from their xpub since the
// wallet does not own their keys.
func (t *transactionService) changeTarget(
	account *domain.Account, params *chaincfg.Params,
) (string, string, error) {
	index := t.store.freshChangeIndex(account)
	if account.Type() == domain.HDAccountType {
		return fmt.Sprintf("%d'/1/%d", account.Id, index), "", nil
	}
	node, err := hdkeychain.NewKeyFromString(account.Xpub)
	if err != nil {
		return "", "", err
	}
	address, err := wallet.AddressFromExtendedKey(
		node, wallet.InternalBranch, index, params,
	)
	if err != nil {
		return "", "", err
	}
	return "", address, nil
}

// watchedAddresses derives the addresses of both branches of the account
// within the gap limit, the set the chain is queried with. Every account
// type carries an xpub, so the scan is uniform.
func watchedAddresses(
	account *domain.Account, params *chaincfg.Params,
) ([]string, error) {
	node, err := hdkeychain.NewKeyFromString(account.Xpub)
	if err != nil {
		return nil, err
	}
	addresses := make([]string, 0, 2*(addressGapLimit+1))
	for _, branch := range []uint32{wallet.ExternalBranch, wallet.InternalBranch} {
		for index := uint32(0); index <= addressGapLimit; index++ {
			address, err := wallet.AddressFromExtendedKey(
				node, branch, index, params,
			)
			if err != nil {
				return nil, err
			}
			addresses = append(addresses, address)
		}
	}
	return addresses, nil
}

// sortedTransfers flattens the allocation map into the transfer list of the
// builder, ordered by asset id so that output ordering is deterministic.
func sortedTransfers(
	allocations map[string][]AssetRecipient,
) []wallet.AssetTransfer {
	assets := make([]string, 0, len(allocations))
	for asset := range allocations {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	transfers := make([]wallet.AssetTransfer, 0, len(assets))
	for _, asset := range assets {
		recipients := make([]wallet.Recipient, 0, len(allocations[asset]))
		for _, r := range allocations[asset] {
			recipients = append(recipients, wallet.Recipient{
				Address: r.Address,
				Amount:  r.Amount,
			})
		}
		transfers = append(transfers, wallet.AssetTransfer{
			Asset:      asset,
			Recipients: recipients,
		})
	}
	return transfers
}

func validateAllocations(allocations map[string][]AssetRecipient) error {
	if len(allocations) <= 0 {
		return domain.NewTxError(
			domain.InvalidAssetAllocation, "allocation list must not be empty",
		)
	}
	for asset, recipients := range allocations {
		if len(asset) <= 0 {
			return domain.NewTxError(
				domain.InvalidAssetAllocation, "asset id must not be empty",
			)
		}
		if len(recipients) <= 0 {
			return domain.NewTxError(
				domain.InvalidAssetAllocation, fmt.Sprintf(
					"asset %s has no recipients", asset,
				),
			)
		}
		for _, r := range recipients {
			if r.Amount == 0 {
				return domain.NewTxError(
					domain.InvalidAssetAllocation, fmt.Sprintf(
						"asset %s has a zero amount allocation", asset,
					),
				)
			}
			if len(r.Address) <= 0 {
				return domain.NewTxError(
					domain.InvalidAssetAllocation, fmt.Sprintf(
						"asset %s has an empty recipient address", asset,
					),
				)
			}
		}
	}
	return nil
}

// insufficientNativeFunds reshapes a failed coin selection into the
// structured error reporting, in coin units, how much was available and how
// much the transfer would have needed fees included.
func insufficientNativeFunds(
	unspents []explorer.Utxo, amount uint64, satsPerByte float64,
) *domain.TxError {
	available := uint64(0)
	numIns := 0
	for _, u := range unspents {
		if len(u.Asset()) <= 0 {
			available += u.Value()
			numIns++
		}
	}
	if numIns == 0 {
		numIns = 1
	}
	inTypes := make([]int, numIns)
	for i := range inTypes {
		inTypes[i] = wallet.P2WPKH
	}
	size := wallet.EstimateTxSize(
		inTypes, nil, []int{wallet.P2WPKH, wallet.P2WPKH}, nil,
	)
	fee := wallet.EstimateFeeAmount(size, satsPerByte)

	availableCoins, _ := mathutil.FromSatoshis(available).Float64()
	requiredCoins, _ := mathutil.FromSatoshis(amount + fee).Float64()
	return domain.NewInsufficientFundsError(availableCoins, requiredCoins)
}

// insufficientAssetFunds reshapes a failed selection of an asset build. The
// shortage may be on an asset being moved, in which case the failing asset
// id travels in the wrapped error, or on the native coin funding the fees.
func insufficientAssetFunds(
	unspents []explorer.Utxo, transfers []wallet.AssetTransfer, cause error,
) *domain.TxError {
	msg := cause.Error()
	for _, transfer := range transfers {
		if !strings.HasPrefix(msg, fmt.Sprintf("asset %s:", transfer.Asset)) {
			continue
		}
		available := uint64(0)
		for _, u := range unspents {
			if u.Asset() == transfer.Asset {
				available += u.Value()
			}
		}
		required := uint64(0)
		for _, r := range transfer.Recipients {
			required += r.Amount
		}
		// asset amounts are base units, no coin scaling applies
		txErr := domain.NewInsufficientFundsError(
			float64(available), float64(required),
		)
		txErr.Message = msg
		return txErr
	}

	available := uint64(0)
	for _, u := range unspents {
		if len(u.Asset()) <= 0 {
			available += u.Value()
		}
	}
	availableCoins, _ := mathutil.FromSatoshis(available).Float64()
	txErr := domain.NewTxError(domain.InsufficientFunds, msg)
	txErr.Amount = availableCoins
	return txErr
}
