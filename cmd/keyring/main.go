package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli/v2"

	"github.com/keyring-labs/keyringd/config"
	"github.com/keyring-labs/keyringd/internal/core/application"
	"github.com/keyring-labs/keyringd/internal/infrastructure/storage/badgerdb"
)

var (
	keyringDataDir = btcutil.AppDataDir("keyring-operator", false)
	statePath      = path.Join(keyringDataDir, "state.json")
)

func main() {
	app := cli.NewApp()

	app.Version = "0.0.1" //TODO use goreleaser for setting version
	app.Name = "keyring operator CLI"
	app.Usage = "Command line interface for keyringd daemon operators"
	app.Commands = append(
		app.Commands,
		&cliConfig,
		&genseed,
		&initwallet,
		&unlockwallet,
		&changepassword,
		&listaccounts,
		&addaccount,
		&importaccount,
		&importhardware,
		&exportprivatekey,
		&listnetworks,
		&switchnetwork,
		&send,
		&validatezprv,
		&forget,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func getState() (map[string]string, error) {
	data := map[string]string{}

	file, err := os.ReadFile(statePath)
	if err != nil {
		return nil, errors.New("get config state error: try 'config init'")
	}
	json.Unmarshal(file, &data)

	return data, nil
}

func setState(data map[string]string) error {
	if _, err := os.Stat(keyringDataDir); os.IsNotExist(err) {
		os.Mkdir(keyringDataDir, os.ModeDir|0755)
	}

	currentData, _ := getState()
	mergedData := merge(currentData, data)

	jsonString, err := json.Marshal(mergedData)
	if err != nil {
		return err
	}
	if err := os.WriteFile(statePath, jsonString, 0644); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}

	return nil
}

func merge(maps ...map[string]string) map[string]string {
	merge := make(map[string]string, 0)
	for _, m := range maps {
		for k, v := range m {
			merge[k] = v
		}
	}
	return merge
}

// getKeyringService builds the keyring service over the datadir recorded in
// the local state. The daemon must not be running: the store is lock-owned
// by a single process at a time.
func getKeyringService(
	ctx *cli.Context,
) (application.KeyringService, func(), error) {
	if state, err := getState(); err == nil {
		if datadir, ok := state["datadir"]; ok && datadir != "" {
			config.Set(config.DatadirKey, datadir)
		}
		if network, ok := state["network"]; ok && network != "" {
			config.Set(config.NetworkKey, network)
		}
	}

	activeNetwork, err := config.GetNetwork()
	if err != nil {
		return nil, nil, err
	}

	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	store, err := badgerdb.NewSecureStore(dbDir, nil)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"unable to open the secure store (is keyringd running?): %v", err,
		)
	}
	cleanup := func() { _ = store.Close() }

	svc, err := application.NewKeyringService(
		context.Background(), application.NewKeyringServiceOpts{
			Store:             store,
			ChainQueryFactory: chainQueryFactory,
			EvmChainFactory:   evmChainFactory,
			HardwareSigners:   hardwareSigners(),
			ActiveNetwork:     activeNetwork,
			Networks:          config.GetNetworks(),
		},
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return svc, cleanup, nil
}

// getUnlockedService unlocks the service with the password flag of the
// calling command.
func getUnlockedService(
	ctx *cli.Context,
) (application.KeyringService, func(), error) {
	svc, cleanup, err := getKeyringService(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := svc.Unlock(
		context.Background(), ctx.String("password"),
	); err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func printRespJSON(resp interface{}) {
	jsonStr, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}

	fmt.Println(string(jsonStr))
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[keyring] %v\n", err)
	}
	os.Exit(1)
}
