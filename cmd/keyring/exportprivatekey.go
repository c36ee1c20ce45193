package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/keyring-labs/keyringd/internal/core/domain"
)

var exportprivatekey = cli.Command{
	Name: "exportprivatekey",
	Usage: "decrypt and print the private key of an account. " +
		"Handle the output with care",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "the account type: hd or imported",
			Value: "hd",
		},
		&cli.IntFlag{
			Name:  "id",
			Usage: "the account id within its type",
			Value: 0,
		},
	},
	Action: exportPrivateKeyAction,
}

func exportPrivateKeyAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var accountType domain.AccountType
	switch ctx.String("type") {
	case "hd":
		accountType = domain.HDAccountType
	case "imported":
		accountType = domain.ImportedAccountType
	default:
		return fmt.Errorf(
			"account type '%s' does not hold key material", ctx.String("type"),
		)
	}

	key, err := svc.GetPrivateKeyByAccountId(
		context.Background(), accountType, ctx.Int("id"),
		ctx.String("password"),
	)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(key)

	return nil
}
