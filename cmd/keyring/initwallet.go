package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var initwallet = cli.Command{
	Name:  "init",
	Usage: "initialize the vault with a mnemonic seed and a password",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "seed",
			Usage: "the mnemonic seed protecting the vault",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
	},
	Action: initWalletAction,
}

func initWalletAction(ctx *cli.Context) error {
	svc, cleanup, err := getKeyringService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.CreateVault(
		context.Background(), ctx.String("seed"), ctx.String("password"),
	); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Vault is initialized")
	return nil
}
