package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var listaccounts = cli.Command{
	Name:  "listaccounts",
	Usage: "list all accounts of the wallet, key material stripped",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
	},
	Action: listAccountsAction,
}

func listAccountsAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	accounts, err := svc.GetAccounts(context.Background())
	if err != nil {
		return err
	}

	printRespJSON(accounts)

	return nil
}
