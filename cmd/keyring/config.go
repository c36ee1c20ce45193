package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/keyring-labs/keyringd/config"
)

var (
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "the network keyringd operates on: bitcoin, testnet, ethereum or sepolia",
		Value: "bitcoin",
	}

	datadirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "the keyringd data directory holding the secure store",
		Value: "",
	}
)

var cliConfig = cli.Command{
	Name:   "config",
	Usage:  "Print local configuration of the keyring CLI",
	Action: configAction,
	Subcommands: []*cli.Command{
		{
			Name:   "set",
			Usage:  "set a <key> <value> in the local state",
			Action: configSetAction,
		},
		{
			Name:   "init",
			Usage:  "initialize the local state with flags",
			Action: configInitAction,
			Flags: []cli.Flag{
				&networkFlag,
				&datadirFlag,
			},
		},
	},
}

func configAction(ctx *cli.Context) error {
	state, err := getState()
	if err != nil {
		return err
	}

	for key, value := range state {
		fmt.Println(key + ": " + value)
	}

	return nil
}

func configInitAction(c *cli.Context) error {
	datadir := c.String("datadir")
	if datadir == "" {
		datadir = config.GetDatadir()
	}
	return setState(map[string]string{
		"network": c.String("network"),
		"datadir": datadir,
	})
}

func configSetAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("key and value are missing")
	}

	key := c.Args().Get(0)
	value := c.Args().Get(1)

	if err := setState(map[string]string{key: value}); err != nil {
		return err
	}

	fmt.Printf("%s %s has been set\n", key, value)

	return nil
}
