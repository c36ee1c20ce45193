package application_test

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keyring-labs/keyringd/internal/core/application"
	"github.com/keyring-labs/keyringd/internal/core/domain"
	"github.com/keyring-labs/keyringd/internal/core/ports"
	"github.com/keyring-labs/keyringd/internal/infrastructure/hardware"
	"github.com/keyring-labs/keyringd/pkg/evm"
	"github.com/keyring-labs/keyringd/pkg/explorer"
	"github.com/keyring-labs/keyringd/pkg/mathutil"
	"github.com/keyring-labs/keyringd/pkg/transactionutil"
	"github.com/keyring-labs/keyringd/pkg/wallet"
)

const testAssetId = "9f1a462d61221a16bd2f66b5a4b3b0d0a0a2a8fbf99fbd1a4"

func externalAddress(t *testing.T) string {
	t.Helper()
	w := importableWallet(t, false)
	address, err := w.DeriveReceiveAddress(wallet.DeriveAddressOpts{Account: 0})
	require.NoError(t, err)
	return address
}

// fundWallet makes the mocked chain report the given native amounts as
// unspents locked to the first receiving address of the wallet.
func fundWallet(t *testing.T, h *testHarness, values ...uint64) []explorer.Utxo {
	t.Helper()
	script, err := wallet.OutputScriptForAddress(
		firstReceiveAddress, wallet.MainNetParams(),
	)
	require.NoError(t, err)

	unspents := make([]explorer.Utxo, 0, len(values))
	for i, value := range values {
		unspents = append(unspents, explorer.NewWitnessUtxo(
			fmt.Sprintf("%064x", i+1), 0, value, "", script, true,
		))
	}
	h.chain.On("GetUnspentsForAddresses", mock.Anything).Return(unspents, nil)
	return unspents
}

func TestEstimateFee(t *testing.T) {
	t.Run("next block quote", func(t *testing.T) {
		h := newHarness(t, nil)
		h.chain.On("EstimateFees", 1).Return(5000.0, nil)

		// estimation reads no secrets, a locked keyring can quote
		rate, err := h.svc.EstimateFee(ctx)
		require.NoError(t, err)
		require.Equal(t, 5.0, rate)
	})

	t.Run("estimator failure", func(t *testing.T) {
		h := newHarness(t, nil)
		h.chain.On("EstimateFees", 1).Return(0.0, errors.New("explorer is down"))

		_, err := h.svc.EstimateFee(ctx)
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.InvalidFeeRate, txErr.Code)
	})

	t.Run("non positive quote", func(t *testing.T) {
		h := newHarness(t, nil)
		h.chain.On("EstimateFees", 1).Return(0.0, nil)

		_, err := h.svc.EstimateFee(ctx)
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.InvalidFeeRate, txErr.Code)
	})
}

func TestBuildNativeTransfer(t *testing.T) {
	feeRate := 2.0

	t.Run("happy path", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 60_000_000, 40_000_000)
		recipient := externalAddress(t)

		reply, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: recipient,
			Amount:    decimal.RequireFromString("0.3"),
			FeeRate:   &feeRate,
		})
		require.NoError(t, err)
		require.True(t, reply.Fee.IsPositive())

		envelope, err := transactionutil.ParseEnvelope(reply.Envelope)
		require.NoError(t, err)
		require.Empty(t, envelope.Assets)
		ptx, err := envelope.ToPacket()
		require.NoError(t, err)

		recipientScript, err := wallet.OutputScriptForAddress(
			recipient, wallet.MainNetParams(),
		)
		require.NoError(t, err)
		paid := false
		for _, out := range ptx.UnsignedTx.TxOut {
			if string(out.PkScript) == string(recipientScript) {
				require.EqualValues(t, 30_000_000, out.Value)
				paid = true
			}
		}
		require.True(t, paid)
		// one input covers the amount, change comes back
		require.Len(t, ptx.UnsignedTx.TxIn, 1)
		require.Len(t, ptx.UnsignedTx.TxOut, 2)
	})

	t.Run("fee subtracted from amount", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 100_000_000)
		recipient := externalAddress(t)

		reply, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient:             recipient,
			Amount:                decimal.RequireFromString("1"),
			FeeRate:               &feeRate,
			SubtractFeeFromAmount: true,
		})
		require.NoError(t, err)

		envelope, err := transactionutil.ParseEnvelope(reply.Envelope)
		require.NoError(t, err)
		ptx, err := envelope.ToPacket()
		require.NoError(t, err)

		fee := mathutil.ToSatoshis(reply.Fee)
		require.Len(t, ptx.UnsignedTx.TxOut, 1)
		require.EqualValues(t, 100_000_000-fee, ptx.UnsignedTx.TxOut[0].Value)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 10_000)

		_, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: externalAddress(t),
			Amount:    decimal.RequireFromString("0.5"),
			FeeRate:   &feeRate,
		})
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.InsufficientFunds, txErr.Code)
		require.InDelta(t, 0.0001, txErr.Amount, 1e-8)
		require.Greater(t, txErr.Shortfall, 0.0)
	})

	t.Run("invalid fee rate", func(t *testing.T) {
		h := newUnlockedHarness(t)
		badRate := -1.0

		_, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: externalAddress(t),
			Amount:    decimal.RequireFromString("0.1"),
			FeeRate:   &badRate,
		})
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.InvalidFeeRate, txErr.Code)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 100_000_000)

		_, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: "clearly not an address",
			Amount:    decimal.RequireFromString("0.1"),
			FeeRate:   &feeRate,
		})
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.TransactionCreationFailed, txErr.Code)
	})

	t.Run("wrong chain family", func(t *testing.T) {
		h := newUnlockedHarness(t)
		_, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
		require.NoError(t, err)

		_, err = h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: externalAddress(t),
			Amount:    decimal.RequireFromString("0.1"),
			FeeRate:   &feeRate,
		})
		require.ErrorIs(t, err, domain.ErrChainFamilyMismatch)
	})

	t.Run("locked wallet", func(t *testing.T) {
		h := newUnlockedHarness(t)
		h.svc.Lock(ctx)

		_, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: externalAddress(t),
			Amount:    decimal.RequireFromString("0.1"),
			FeeRate:   &feeRate,
		})
		require.ErrorIs(t, err, domain.ErrWalletLocked)
	})
}

func TestBuildAssetTransfer(t *testing.T) {
	feeRate := 1.0

	t.Run("invalid allocations", func(t *testing.T) {
		h := newUnlockedHarness(t)
		recipient := externalAddress(t)

		fixtures := []map[string][]application.AssetRecipient{
			{},
			{"": {{Address: recipient, Amount: 100}}},
			{testAssetId: {}},
			{testAssetId: {{Address: recipient, Amount: 0}}},
			{testAssetId: {{Address: "", Amount: 100}}},
		}
		for _, allocations := range fixtures {
			_, err := h.svc.BuildAssetTransfer(ctx, application.BuildAssetTransferOpts{
				Allocations: allocations,
				FeeRate:     &feeRate,
			})
			var txErr *domain.TxError
			require.ErrorAs(t, err, &txErr)
			require.Equal(t, domain.InvalidAssetAllocation, txErr.Code)
		}
	})

	t.Run("happy path", func(t *testing.T) {
		h := newUnlockedHarness(t)
		recipient := externalAddress(t)

		script, err := wallet.OutputScriptForAddress(
			firstReceiveAddress, wallet.MainNetParams(),
		)
		require.NoError(t, err)
		unspents := []explorer.Utxo{
			explorer.NewWitnessUtxo(
				fmt.Sprintf("%064x", 1), 0, 100_000_000, "", script, true,
			),
			explorer.NewWitnessUtxo(
				fmt.Sprintf("%064x", 2), 0, 500, testAssetId, script, true,
			),
		}
		h.chain.On("GetUnspentsForAddresses", mock.Anything).Return(unspents, nil)

		allocations := map[string][]application.AssetRecipient{
			testAssetId: {{Address: recipient, Amount: 200}},
		}
		reply, err := h.svc.BuildAssetTransfer(ctx, application.BuildAssetTransferOpts{
			Allocations: allocations,
			FeeRate:     &feeRate,
		})
		require.NoError(t, err)
		require.True(t, reply.Fee.IsPositive())

		envelope, err := transactionutil.ParseEnvelope(reply.Envelope)
		require.NoError(t, err)
		expectedPayload, err := json.Marshal(allocations)
		require.NoError(t, err)
		require.JSONEq(t, string(expectedPayload), envelope.Assets)

		ptx, err := envelope.ToPacket()
		require.NoError(t, err)
		// asset input plus native input paying the fees
		require.Len(t, ptx.UnsignedTx.TxIn, 2)

		recipientScript, err := wallet.OutputScriptForAddress(
			recipient, wallet.MainNetParams(),
		)
		require.NoError(t, err)
		var gotRecipient, gotAssetChange, gotCommitment bool
		for _, out := range ptx.UnsignedTx.TxOut {
			switch {
			case string(out.PkScript) == string(recipientScript):
				require.EqualValues(t, 200, out.Value)
				gotRecipient = true
			case out.Value == 300:
				// asset change is never folded into fees
				gotAssetChange = true
			case out.Value == 0:
				gotCommitment = true
			}
		}
		require.True(t, gotRecipient)
		require.True(t, gotAssetChange)
		require.True(t, gotCommitment)
	})

	t.Run("insufficient asset funds", func(t *testing.T) {
		h := newUnlockedHarness(t)
		recipient := externalAddress(t)

		script, err := wallet.OutputScriptForAddress(
			firstReceiveAddress, wallet.MainNetParams(),
		)
		require.NoError(t, err)
		unspents := []explorer.Utxo{
			explorer.NewWitnessUtxo(
				fmt.Sprintf("%064x", 1), 0, 100_000_000, "", script, true,
			),
			explorer.NewWitnessUtxo(
				fmt.Sprintf("%064x", 2), 0, 500, testAssetId, script, true,
			),
		}
		h.chain.On("GetUnspentsForAddresses", mock.Anything).Return(unspents, nil)

		_, err = h.svc.BuildAssetTransfer(ctx, application.BuildAssetTransferOpts{
			Allocations: map[string][]application.AssetRecipient{
				testAssetId: {{Address: recipient, Amount: 1000}},
			},
			FeeRate: &feeRate,
		})
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.InsufficientFunds, txErr.Code)
		require.Equal(t, 500.0, txErr.Amount)
		require.Equal(t, 1000.0, txErr.Required)
	})
}

func TestSignTransaction(t *testing.T) {
	feeRate := 1.0

	buildTransfer := func(t *testing.T, h *testHarness) string {
		t.Helper()
		reply, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: externalAddress(t),
			Amount:    decimal.RequireFromString("0.3"),
			FeeRate:   &feeRate,
		})
		require.NoError(t, err)
		return reply.Envelope
	}

	t.Run("hd account", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 60_000_000, 40_000_000)
		envelope := buildTransfer(t, h)

		signed, err := h.svc.SignTransaction(ctx, envelope, application.HDSignerKind)
		require.NoError(t, err)

		parsed, err := transactionutil.ParseEnvelope(signed)
		require.NoError(t, err)
		_, txid, err := transactionutil.FinalizeAndExtractTransaction(
			transactionutil.FinalizeAndExtractTransactionOpts{
				PsbtBase64: parsed.Psbt,
			},
		)
		require.NoError(t, err)
		require.Len(t, txid, 64)
	})

	t.Run("imported account", func(t *testing.T) {
		h := newUnlockedHarness(t)

		w := importableWallet(t, false)
		zprv, err := w.ExtendedPrivateKey(wallet.ExtendedKeyOpts{Account: 0})
		require.NoError(t, err)
		imported, err := h.svc.ImportAccount(ctx, zprv, "cold")
		require.NoError(t, err)

		script, err := wallet.OutputScriptForAddress(
			imported.Address, wallet.MainNetParams(),
		)
		require.NoError(t, err)
		h.chain.On("GetUnspentsForAddresses", mock.Anything).Return(
			[]explorer.Utxo{explorer.NewWitnessUtxo(
				fmt.Sprintf("%064x", 9), 0, 50_000_000, "", script, true,
			)}, nil,
		)
		envelope := buildTransfer(t, h)

		signed, err := h.svc.SignTransaction(
			ctx, envelope, application.ImportedSignerKind,
		)
		require.NoError(t, err)

		parsed, err := transactionutil.ParseEnvelope(signed)
		require.NoError(t, err)
		_, _, err = transactionutil.FinalizeAndExtractTransaction(
			transactionutil.FinalizeAndExtractTransactionOpts{
				PsbtBase64: parsed.Psbt,
			},
		)
		require.NoError(t, err)
	})

	t.Run("signer kind mismatch", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 60_000_000)
		envelope := buildTransfer(t, h)

		_, err := h.svc.SignTransaction(
			ctx, envelope, application.ImportedSignerKind,
		)
		require.ErrorIs(t, err, application.ErrSignerKindMismatch)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		h := newUnlockedHarness(t)

		_, err := h.svc.SignTransaction(
			ctx, "not an envelope", application.HDSignerKind,
		)
		require.ErrorIs(t, err, transactionutil.ErrInvalidEnvelope)
	})
}

// TestSigningPathEquivalence drives the same transfer through the hd wallet,
// a trezor-class device and a ledger-class device, all three must produce a
// finalized transaction paying the recipient the exact amount.
func TestSigningPathEquivalence(t *testing.T) {
	feeRate := 1.0
	amount := decimal.RequireFromString("0.3")

	w := importableWallet(t, false)
	recipient, err := w.DeriveReceiveAddress(wallet.DeriveAddressOpts{Account: 1})
	require.NoError(t, err)

	hardwareHarness := func(
		t *testing.T, kind application.SignerKind,
	) *testHarness {
		t.Helper()
		device, err := hardware.NewSoftwareSigner(deviceMnemonic)
		require.NoError(t, err)
		h := newHarness(t, map[domain.AccountType]ports.HardwareSigner{
			domain.TrezorAccountType: device,
			domain.LedgerAccountType: device,
		})
		require.NoError(t, h.svc.CreateVault(ctx, testMnemonic, testPassword))

		account, err := h.svc.ImportHardwareAccount(ctx, kind, 0, "")
		require.NoError(t, err)
		script, err := wallet.OutputScriptForAddress(
			account.Address, wallet.MainNetParams(),
		)
		require.NoError(t, err)
		h.chain.On("GetUnspentsForAddresses", mock.Anything).Return(
			[]explorer.Utxo{explorer.NewWitnessUtxo(
				fmt.Sprintf("%064x", 7), 0, 50_000_000, "", script, true,
			)}, nil,
		)
		return h
	}

	payAndExtract := func(
		t *testing.T, h *testHarness, kind application.SignerKind,
	) *wire.MsgTx {
		t.Helper()
		reply, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: recipient,
			Amount:    amount,
			FeeRate:   &feeRate,
		})
		require.NoError(t, err)
		signed, err := h.svc.SignTransaction(ctx, reply.Envelope, kind)
		require.NoError(t, err)

		parsed, err := transactionutil.ParseEnvelope(signed)
		require.NoError(t, err)
		txHex, _, err := transactionutil.FinalizeAndExtractTransaction(
			transactionutil.FinalizeAndExtractTransactionOpts{
				PsbtBase64: parsed.Psbt,
			},
		)
		require.NoError(t, err)
		rawTx, err := hex.DecodeString(txHex)
		require.NoError(t, err)
		tx := wire.NewMsgTx(2)
		require.NoError(t, tx.Deserialize(bytes.NewReader(rawTx)))
		return tx
	}

	paidAmount := func(t *testing.T, tx *wire.MsgTx) int64 {
		t.Helper()
		script, err := wallet.OutputScriptForAddress(
			recipient, wallet.MainNetParams(),
		)
		require.NoError(t, err)
		for _, out := range tx.TxOut {
			if bytes.Equal(out.PkScript, script) {
				return out.Value
			}
		}
		t.Fatalf("no output pays %s", recipient)
		return 0
	}

	hdHarness := newUnlockedHarness(t)
	fundWallet(t, hdHarness, 50_000_000)

	transactions := []*wire.MsgTx{
		payAndExtract(t, hdHarness, application.HDSignerKind),
		payAndExtract(
			t, hardwareHarness(t, application.TrezorSignerKind),
			application.TrezorSignerKind,
		),
		payAndExtract(
			t, hardwareHarness(t, application.LedgerSignerKind),
			application.LedgerSignerKind,
		),
	}

	want := mathutil.ToSatoshis(amount)
	for _, tx := range transactions {
		require.EqualValues(t, want, paidAmount(t, tx))
	}
}

func TestBroadcastTransaction(t *testing.T) {
	feeRate := 1.0

	t.Run("unsigned transaction", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 60_000_000)

		reply, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: externalAddress(t),
			Amount:    decimal.RequireFromString("0.3"),
			FeeRate:   &feeRate,
		})
		require.NoError(t, err)

		_, err = h.svc.BroadcastTransaction(ctx, reply.Envelope)
		require.ErrorIs(t, err, domain.ErrMissingSignedTx)

		_, err = h.svc.BroadcastTransaction(ctx, "garbage")
		require.ErrorIs(t, err, domain.ErrMissingSignedTx)
	})

	t.Run("signed transaction", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 60_000_000)
		h.chain.On("BroadcastTransaction", mock.Anything).Return("", nil)

		reply, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: externalAddress(t),
			Amount:    decimal.RequireFromString("0.3"),
			FeeRate:   &feeRate,
		})
		require.NoError(t, err)
		signed, err := h.svc.SignTransaction(
			ctx, reply.Envelope, application.HDSignerKind,
		)
		require.NoError(t, err)

		parsed, err := transactionutil.ParseEnvelope(signed)
		require.NoError(t, err)
		_, expectedTxid, err := transactionutil.FinalizeAndExtractTransaction(
			transactionutil.FinalizeAndExtractTransactionOpts{
				PsbtBase64: parsed.Psbt,
			},
		)
		require.NoError(t, err)

		// broadcasting needs no unlocked wallet, the envelope is signed
		h.svc.Lock(ctx)
		txid, err := h.svc.BroadcastTransaction(ctx, signed)
		require.NoError(t, err)
		require.Equal(t, expectedTxid, txid)
	})

	t.Run("rejected by the network", func(t *testing.T) {
		h := newUnlockedHarness(t)
		fundWallet(t, h, 60_000_000)
		h.chain.On("BroadcastTransaction", mock.Anything).Return(
			"", errors.New("min relay fee not met"),
		)

		reply, err := h.svc.BuildNativeTransfer(ctx, application.BuildNativeTransferOpts{
			Recipient: externalAddress(t),
			Amount:    decimal.RequireFromString("0.3"),
			FeeRate:   &feeRate,
		})
		require.NoError(t, err)
		signed, err := h.svc.SignTransaction(
			ctx, reply.Envelope, application.HDSignerKind,
		)
		require.NoError(t, err)

		_, err = h.svc.BroadcastTransaction(ctx, signed)
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.TransactionSendFailed, txErr.Code)
	})
}

func TestSendEvmTransaction(t *testing.T) {
	txHash := "0x" + fmt.Sprintf("%064x", 0xfeed)

	t.Run("happy path", func(t *testing.T) {
		h := newUnlockedHarness(t)
		_, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
		require.NoError(t, err)

		var rawTx string
		h.evm.On("PendingNonceAt", firstEvmAddress).Return(uint64(7), nil)
		h.evm.On("SuggestGasTipCap").Return(big.NewInt(2_000_000_000), nil)
		h.evm.On("BaseFee").Return(big.NewInt(20_000_000_000), nil)
		h.evm.On("BalanceAt", firstEvmAddress).Return(
			big.NewInt(2_000_000_000_000_000_000), nil,
		)
		h.evm.On("SendRawTransaction", mock.Anything).Run(
			func(args mock.Arguments) { rawTx = args.String(0) },
		).Return(txHash, nil)

		txid, err := h.svc.SendEvmTransaction(ctx, application.SendEvmTransactionOpts{
			To:     testEvmKeyAddress,
			Amount: decimal.RequireFromString("0.5"),
		})
		require.NoError(t, err)
		require.Equal(t, txHash, txid)

		tx := &types.Transaction{}
		require.NoError(t, tx.UnmarshalBinary(hexutil.MustDecode(rawTx)))
		require.EqualValues(t, 1, tx.ChainId().Uint64())
		require.EqualValues(t, 7, tx.Nonce())
		require.EqualValues(t, 21000, tx.Gas())
		require.Equal(t, testEvmKeyAddress, tx.To().Hex())
		require.Equal(t, "500000000000000000", tx.Value().String())
		// feeCap = 2*baseFee + tip
		require.Equal(t, "42000000000", tx.GasFeeCap().String())

		sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
		require.NoError(t, err)
		require.Equal(t, firstEvmAddress, sender.Hex())
	})

	t.Run("contract call estimates gas", func(t *testing.T) {
		h := newUnlockedHarness(t)
		_, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
		require.NoError(t, err)

		data := []byte{0xa9, 0x05, 0x9c, 0xbb}
		var rawTx string
		h.evm.On("PendingNonceAt", firstEvmAddress).Return(uint64(0), nil)
		h.evm.On("SuggestGasTipCap").Return(big.NewInt(1_000_000_000), nil)
		h.evm.On("BaseFee").Return(big.NewInt(10_000_000_000), nil)
		h.evm.On("EstimateGas", firstEvmAddress, testEvmKeyAddress, mock.Anything, data).
			Return(uint64(53_000), nil)
		h.evm.On("BalanceAt", firstEvmAddress).Return(
			big.NewInt(2_000_000_000_000_000_000), nil,
		)
		h.evm.On("SendRawTransaction", mock.Anything).Run(
			func(args mock.Arguments) { rawTx = args.String(0) },
		).Return(txHash, nil)

		_, err = h.svc.SendEvmTransaction(ctx, application.SendEvmTransactionOpts{
			To:     testEvmKeyAddress,
			Amount: decimal.RequireFromString("0.1"),
			Data:   data,
		})
		require.NoError(t, err)

		tx := &types.Transaction{}
		require.NoError(t, tx.UnmarshalBinary(hexutil.MustDecode(rawTx)))
		require.EqualValues(t, 53_000, tx.Gas())
		require.Equal(t, data, tx.Data())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		h := newUnlockedHarness(t)
		_, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
		require.NoError(t, err)

		h.evm.On("PendingNonceAt", firstEvmAddress).Return(uint64(0), nil)
		h.evm.On("SuggestGasTipCap").Return(big.NewInt(1_000_000_000), nil)
		h.evm.On("BaseFee").Return(big.NewInt(10_000_000_000), nil)
		h.evm.On("BalanceAt", firstEvmAddress).Return(big.NewInt(1000), nil)

		_, err = h.svc.SendEvmTransaction(ctx, application.SendEvmTransactionOpts{
			To:     testEvmKeyAddress,
			Amount: decimal.RequireFromString("0.1"),
		})
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.InsufficientFunds, txErr.Code)
		require.Greater(t, txErr.Shortfall, 0.0)
	})

	t.Run("node failure", func(t *testing.T) {
		h := newUnlockedHarness(t)
		_, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
		require.NoError(t, err)

		h.evm.On("PendingNonceAt", firstEvmAddress).Return(
			uint64(0), errors.New("connection refused"),
		)

		_, err = h.svc.SendEvmTransaction(ctx, application.SendEvmTransactionOpts{
			To:     testEvmKeyAddress,
			Amount: decimal.RequireFromString("0.1"),
		})
		var txErr *domain.TxError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, domain.TransactionCreationFailed, txErr.Code)
	})

	t.Run("wrong chain family", func(t *testing.T) {
		h := newUnlockedHarness(t)

		_, err := h.svc.SendEvmTransaction(ctx, application.SendEvmTransactionOpts{
			To:     testEvmKeyAddress,
			Amount: decimal.RequireFromString("0.1"),
		})
		require.ErrorIs(t, err, domain.ErrChainFamilyMismatch)
	})
}

func TestSignMessage(t *testing.T) {
	message := []byte("attest this")

	t.Run("hd account", func(t *testing.T) {
		h := newUnlockedHarness(t)
		_, err := h.svc.SwitchNetwork(ctx, "ethereum", domain.EvmChainFamily)
		require.NoError(t, err)

		signature, err := h.svc.SignMessage(ctx, message)
		require.NoError(t, err)

		seed := seedFromMnemonic(t, testMnemonic)
		account, err := evm.DeriveAccount(evm.DeriveAccountOpts{
			Seed: seed, AddressIndex: 0,
		})
		require.NoError(t, err)
		expected, err := account.SignMessage(message)
		require.NoError(t, err)
		require.Equal(t, expected, signature)
	})

	t.Run("wrong chain family", func(t *testing.T) {
		h := newUnlockedHarness(t)

		_, err := h.svc.SignMessage(ctx, message)
		require.ErrorIs(t, err, domain.ErrChainFamilyMismatch)
	})
}

func seedFromMnemonic(t *testing.T, mnemonic string) []byte {
	t.Helper()
	w, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: mnemonic,
		Params:   wallet.MainNetParams(),
	})
	require.NoError(t, err)
	seedHex, err := w.SeedHex()
	require.NoError(t, err)
	seed, err := hex.DecodeString(seedHex)
	require.NoError(t, err)
	return seed
}
