package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var forget = cli.Command{
	Name: "forget",
	Usage: "wipe the vault, its keys and the account caches from the store. " +
		"Irreversible without the mnemonic",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
	},
	Action: forgetAction,
}

func forgetAction(ctx *cli.Context) error {
	svc, cleanup, err := getKeyringService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Forget(
		context.Background(), ctx.String("password"),
	); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Vault has been wiped")
	return nil
}
