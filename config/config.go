package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/keyring-labs/keyringd/internal/core/domain"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon
	DatadirKey = "DATA_DIR_PATH"
	// LogLevelKey are the different logging levels. For reference on the
	// values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey is the name of the network the daemon boots on. Must be one
	// of the catalog returned by GetNetworks
	NetworkKey = "NETWORK"
	// ExplorerEndpointKey overrides the Esplora REST API endpoint of the
	// boot network, when it belongs to the UTXO family
	ExplorerEndpointKey = "EXPLORER_ENDPOINT"
	// ExplorerRequestTimeoutKey are the milliseconds to wait for HTTP
	// responses before timeouts
	ExplorerRequestTimeoutKey = "EXPLORER_REQUEST_TIMEOUT"
	// EvmRPCEndpointKey overrides the RPC node endpoint of the boot network,
	// when it belongs to the EVM family
	EvmRPCEndpointKey = "EVM_RPC_ENDPOINT"
	// DevDeviceMnemonicKey seeds a deterministic in-process signing device
	// registered for the hardware account types. Development only, no
	// physical device transport is spoken
	DevDeviceMnemonicKey = "DEV_DEVICE_MNEMONIC"

	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("keyringd", false)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("KEYRING")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NetworkKey, "bitcoin")
	vip.SetDefault(ExplorerRequestTimeoutKey, 15000)

	if err := validate(); err != nil {
		log.WithError(err).Panic("error while validating config")
	}

	if err := initDatadir(); err != nil {
		log.WithError(err).Panic("error while creating datadir")
	}
}

//GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

//GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

//GetFloat ...
func GetFloat(key string) float64 {
	return vip.GetFloat64(key)
}

//GetDuration ...
func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

//GetBool ...
func GetBool(key string) bool {
	return vip.GetBool(key)
}

// Set a value for the given key
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

// IsSet returns whether the give key is set
func IsSet(key string) bool {
	return vip.IsSet(key)
}

// TODO: attach network name to datadir
func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetNetworks returns the catalog of supported networks, with the endpoint
// of the boot network overridden by the related config key if set.
func GetNetworks() []*domain.Network {
	networks := []*domain.Network{
		{
			Name:         "bitcoin",
			ChainFamily:  domain.UtxoChainFamily,
			Slip44:       0,
			Currency:     "BTC",
			URL:          "https://blockstream.info",
			ExplorerURL:  "https://blockstream.info/api",
			Bech32HRP:    "bc",
			PubKeyHashID: 0x00,
			ScriptHashID: 0x05,
			WIFID:        0x80,
		},
		{
			Name:         "testnet",
			ChainFamily:  domain.UtxoChainFamily,
			Slip44:       1,
			Currency:     "tBTC",
			URL:          "https://blockstream.info/testnet",
			ExplorerURL:  "https://blockstream.info/testnet/api",
			Testnet:      true,
			Bech32HRP:    "tb",
			PubKeyHashID: 0x6f,
			ScriptHashID: 0xc4,
			WIFID:        0xef,
		},
		{
			Name:        "ethereum",
			ChainFamily: domain.EvmChainFamily,
			Slip44:      60,
			Currency:    "ETH",
			URL:         "https://ethereum-rpc.publicnode.com",
			ExplorerURL: "https://etherscan.io",
			ChainId:     1,
		},
		{
			Name:        "sepolia",
			ChainFamily: domain.EvmChainFamily,
			Slip44:      60,
			Currency:    "sETH",
			URL:         "https://ethereum-sepolia-rpc.publicnode.com",
			ExplorerURL: "https://sepolia.etherscan.io",
			ChainId:     11155111,
			Testnet:     true,
		},
	}

	bootNetwork := GetString(NetworkKey)
	for _, net := range networks {
		if net.Name != bootNetwork {
			continue
		}
		if net.ChainFamily == domain.UtxoChainFamily {
			if endpoint := GetString(ExplorerEndpointKey); endpoint != "" {
				net.ExplorerURL = endpoint
			}
		} else {
			if endpoint := GetString(EvmRPCEndpointKey); endpoint != "" {
				net.URL = endpoint
			}
		}
	}
	return networks
}

// GetNetwork returns the network the daemon boots on.
func GetNetwork() (*domain.Network, error) {
	name := GetString(NetworkKey)
	for _, net := range GetNetworks() {
		if net.Name == name {
			return net, nil
		}
	}
	return nil, fmt.Errorf("network '%s' is not in the supported catalog", name)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	if _, err := GetNetwork(); err != nil {
		return err
	}

	if endpoint := GetString(ExplorerEndpointKey); endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return fmt.Errorf("explorer endpoint is not a valid url: %s", err)
		}
	}
	if endpoint := GetString(EvmRPCEndpointKey); endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return fmt.Errorf("evm rpc endpoint is not a valid url: %s", err)
		}
	}
	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	return makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
