package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var listnetworks = cli.Command{
	Name:   "listnetworks",
	Usage:  "list the networks of the catalog",
	Action: listNetworksAction,
}

func listNetworksAction(ctx *cli.Context) error {
	svc, cleanup, err := getKeyringService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	networks, err := svc.GetNetworks(context.Background())
	if err != nil {
		return err
	}

	printRespJSON(networks)

	return nil
}
