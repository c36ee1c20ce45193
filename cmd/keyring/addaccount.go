package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var addaccount = cli.Command{
	Name:  "addaccount",
	Usage: "derive the next HD account on the active chain family",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "label",
			Usage: "an optional label for the new account",
			Value: "",
		},
	},
	Action: addAccountAction,
}

func addAccountAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := svc.AddNewAccount(context.Background(), ctx.String("label"))
	if err != nil {
		return err
	}

	printRespJSON(account)

	return nil
}
