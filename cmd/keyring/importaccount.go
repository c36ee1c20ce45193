package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var importaccount = cli.Command{
	Name: "importaccount",
	Usage: "import an account from a BIP84 extended private key " +
		"(zprv/vprv) or a raw EVM private key",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "secret",
			Usage: "the key to import",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "label",
			Usage: "an optional label for the imported account",
			Value: "",
		},
	},
	Action: importAccountAction,
}

func importAccountAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := svc.ImportAccount(
		context.Background(), ctx.String("secret"), ctx.String("label"),
	)
	if err != nil {
		return err
	}

	printRespJSON(account)

	return nil
}
