package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/keyring-labs/keyringd/internal/core/application"
)

var send = cli.Command{
	Name:  "send",
	Usage: "build, sign and broadcast a native transfer from the active account",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "the recipient address",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "amount",
			Usage: "the amount to send, in coin units",
			Value: "0",
		},
		&cli.Float64Flag{
			Name:  "fee_rate",
			Usage: "optional fee rate in sats per virtual byte",
			Value: 0,
		},
		&cli.BoolFlag{
			Name:  "subtract_fee",
			Usage: "subtract the fee from the sent amount",
		},
	},
	Action: sendAction,
}

func sendAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	bg := context.Background()

	amount, err := decimal.NewFromString(ctx.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid amount: %v", err)
	}

	opts := application.BuildNativeTransferOpts{
		Recipient:             ctx.String("to"),
		Amount:                amount,
		SubtractFeeFromAmount: ctx.Bool("subtract_fee"),
	}
	if feeRate := ctx.Float64("fee_rate"); feeRate > 0 {
		opts.FeeRate = &feeRate
	}

	reply, err := svc.BuildNativeTransfer(bg, opts)
	if err != nil {
		return err
	}
	fmt.Printf("fee: %s\n", reply.Fee)

	account, err := svc.GetActiveAccount(bg)
	if err != nil {
		return err
	}

	signed, err := svc.SignTransaction(
		bg, reply.Envelope, application.SignerKindForAccount(account),
	)
	if err != nil {
		return err
	}

	txid, err := svc.BroadcastTransaction(bg, signed)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(txid)

	return nil
}
