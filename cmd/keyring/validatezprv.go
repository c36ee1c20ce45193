package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var validatezprv = cli.Command{
	Name:  "validatezprv",
	Usage: "check an extended private key against a network of the catalog",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "key",
			Usage: "the extended private key to validate",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "network",
			Usage: "the name of the network to validate against",
			Value: "bitcoin",
		},
	},
	Action: validateZprvAction,
}

func validateZprvAction(ctx *cli.Context) error {
	svc, cleanup, err := getKeyringService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	validation, err := svc.ValidateZprv(
		context.Background(), ctx.String("key"), ctx.String("network"),
	)
	if err != nil {
		return err
	}

	printRespJSON(map[string]interface{}{
		"isValid": validation.IsValid,
		"message": validation.Message,
	})

	return nil
}
