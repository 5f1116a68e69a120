package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultContract is the WavePortal deployment on Goerli
	DefaultContract = "0x2C1E2229868290324B515cb7bfA69bD0BD07a4f0"
	// DefaultExplorerURL is where transaction links point
	DefaultExplorerURL = "https://goerli.etherscan.io"
	// DefaultGasLimit is the fixed gas ceiling for wave transactions
	DefaultGasLimit uint64 = 300000
	// FileName is the config file created in the user's home directory
	FileName = ".wave-portal-config.json"
)

// Environment variables that override the config file
const (
	EnvRPCURL     = "ETH_RPC_URL"
	EnvContract   = "WAVE_CONTRACT"
	EnvKeystore   = "WAVE_KEYSTORE"
	EnvAccount    = "WAVE_ACCOUNT"
	EnvPassphrase = "WAVE_KEYSTORE_PASSPHRASE"
	EnvPrivateKey = "WAVE_PRIVATE_KEY"
)

// Config represents the application configuration
type Config struct {
	RPCURLs     []RPCUrl     `json:"rpc_urls"`
	Contract    string       `json:"contract"`
	ExplorerURL string       `json:"explorer_url"`
	GasLimit    uint64       `json:"gas_limit"`
	Wallet      WalletConfig `json:"wallet"`
	Logger      bool         `json:"logger"`
}

// RPCUrl represents an RPC endpoint
type RPCUrl struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// WalletConfig selects the wallet provider. Secrets are only ever read
// from the environment and never written back to disk.
type WalletConfig struct {
	Keystore   string `json:"keystore,omitempty"`
	Account    string `json:"account,omitempty"`
	Passphrase string `json:"-"`
	PrivateKey string `json:"-"`
}

// DefaultPath returns the config location in the user's home directory
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, FileName)
}

// Load reads the config from the specified path
func Load(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}.withDefaults()
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}.withDefaults()
	}

	return cfg.withDefaults()
}

// Save writes the config to the specified path
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns a new configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		RPCURLs: []RPCUrl{
			{
				Name:   "Goerli",
				URL:    "https://ethereum-goerli-rpc.publicnode.com",
				Active: true,
			},
		},
		Contract:    DefaultContract,
		ExplorerURL: DefaultExplorerURL,
		GasLimit:    DefaultGasLimit,
		Logger:      false,
	}
}

// LoadOrCreate loads config from path, or creates a default one if not found
func LoadOrCreate(path string) Config {
	// Try to read existing config
	data, err := os.ReadFile(path)
	if err != nil {
		// File doesn't exist, create default
		cfg := DefaultConfig()
		_ = Save(path, cfg)
		return cfg
	}

	// Parse existing config
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		// Invalid config, return default
		return DefaultConfig()
	}

	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Contract == "" {
		c.Contract = DefaultContract
	}
	if c.ExplorerURL == "" {
		c.ExplorerURL = DefaultExplorerURL
	}
	if c.GasLimit == 0 {
		c.GasLimit = DefaultGasLimit
	}
	return c
}

// ApplyEnv overrides fields from environment variables looked up with getenv
func (c *Config) ApplyEnv(getenv func(string) string) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if url := get(EnvRPCURL); url != "" {
		c.SetRPC(url)
	}
	if v := get(EnvContract); v != "" {
		c.Contract = v
	}
	if v := get(EnvKeystore); v != "" {
		c.Wallet.Keystore = v
	}
	if v := get(EnvAccount); v != "" {
		c.Wallet.Account = v
	}
	// passphrases may legitimately carry spaces
	if v := getenv(EnvPassphrase); v != "" {
		c.Wallet.Passphrase = v
	}
	if v := get(EnvPrivateKey); v != "" {
		c.Wallet.PrivateKey = v
	}
}

// SetRPC makes url the active endpoint, adding it when it is not listed yet
func (c *Config) SetRPC(url string) {
	found := false
	for i := range c.RPCURLs {
		c.RPCURLs[i].Active = c.RPCURLs[i].URL == url
		if c.RPCURLs[i].Active {
			found = true
		}
	}
	if !found {
		c.RPCURLs = append(c.RPCURLs, RPCUrl{Name: "Override", URL: url, Active: true})
	}
}

// ActiveRPC returns the active endpoint URL, or the first one if none is marked
func (c Config) ActiveRPC() string {
	for _, r := range c.RPCURLs {
		if r.Active {
			return r.URL
		}
	}
	if len(c.RPCURLs) > 0 {
		return c.RPCURLs[0].URL
	}
	return ""
}

// Validate checks the fields the portal cannot run without
func (c Config) Validate() error {
	var errs []error
	if !common.IsHexAddress(c.Contract) {
		errs = append(errs, fmt.Errorf("invalid contract address %q", c.Contract))
	}
	if c.GasLimit == 0 {
		errs = append(errs, errors.New("gas_limit must be greater than 0"))
	}
	if c.Wallet.Account != "" && !common.IsHexAddress(c.Wallet.Account) {
		errs = append(errs, fmt.Errorf("invalid wallet account %q", c.Wallet.Account))
	}
	return errors.Join(errs...)
}
