package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/keyring-labs/keyringd/internal/core/application"
)

var importhardware = cli.Command{
	Name:  "importhardware",
	Usage: "pair an account backed by a hardware signing device",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "the device kind: trezor or ledger",
			Value: "",
		},
		&cli.UintFlag{
			Name:  "index",
			Usage: "the account index on the device",
			Value: 0,
		},
		&cli.StringFlag{
			Name:  "label",
			Usage: "an optional label for the paired account",
			Value: "",
		},
	},
	Action: importHardwareAction,
}

func importHardwareAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var kind application.SignerKind
	switch ctx.String("kind") {
	case "trezor":
		kind = application.TrezorSignerKind
	case "ledger":
		kind = application.LedgerSignerKind
	default:
		return fmt.Errorf("unknown device kind '%s'", ctx.String("kind"))
	}

	account, err := svc.ImportHardwareAccount(
		context.Background(), kind, uint32(ctx.Uint("index")),
		ctx.String("label"),
	)
	if err != nil {
		return err
	}

	printRespJSON(account)

	return nil
}
