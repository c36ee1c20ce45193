package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var unlockwallet = cli.Command{
	Name:  "unlock",
	Usage: "verify the vault password and print the wallet status",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
	},
	Action: unlockWalletAction,
}

func unlockWalletAction(ctx *cli.Context) error {
	svc, cleanup, err := getKeyringService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	reply, err := svc.Unlock(context.Background(), ctx.String("password"))
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Wallet is unlocked")
	if reply.NeedsRecovery {
		fmt.Println(
			"WARNING: corrupted records were detected, a guided recovery " +
				"network switch is recommended",
		)
	}

	network, err := svc.GetActiveNetwork(context.Background())
	if err != nil {
		return err
	}
	account, err := svc.GetActiveAccount(context.Background())
	if err == nil {
		fmt.Printf("active account: %s (%s)\n", account.Address, account.Type())
	}
	fmt.Printf("active network: %s (%s)\n", network.Name, network.ChainFamily)

	return nil
}
