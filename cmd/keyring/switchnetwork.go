package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/keyring-labs/keyringd/internal/core/domain"
)

var switchnetwork = cli.Command{
	Name:  "switchnetwork",
	Usage: "switch the active network, rebuilding signers when needed",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "the password used to encrypt the mnemonic",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "network",
			Usage: "the name of the target network",
			Value: "",
		},
	},
	Action: switchNetworkAction,
}

func switchNetworkAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	bg := context.Background()
	name := ctx.String("network")

	networks, err := svc.GetNetworks(bg)
	if err != nil {
		return err
	}
	var target *domain.Network
	for _, net := range networks {
		if net.Name == name {
			target = net
			break
		}
	}
	if target == nil {
		return fmt.Errorf("network '%s' is not in the catalog", name)
	}

	reply, err := svc.SwitchNetwork(bg, name, target.ChainFamily)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf(
		"Active network is now %s (%s)\n",
		reply.Network.Name, reply.Network.ChainFamily,
	)
	if reply.ActiveAccount != nil {
		fmt.Printf("active account: %s\n", reply.ActiveAccount.Address)
	}

	// persist the choice so the next CLI run boots on the same network.
	return setState(map[string]string{"network": name})
}
