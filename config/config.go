package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config captures the runtime configuration for the market daemon. Big
// integer fields are decoded from decimal strings in the asset's smallest
// unit.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	MarketAddress     string `toml:"MarketAddress"`
	UnderlyingAddress string `toml:"UnderlyingAddress"`
	AdminAddress      string `toml:"AdminAddress"`
	FeeRecipient      string `toml:"FeeRecipient"`
	ControllerAddress string `toml:"ControllerAddress"`

	CollateralCapWei      *big.Int `toml:"CollateralCapWei"`
	FlashFeeBips          uint64   `toml:"FlashFeeBips"`
	ReserveFactorMantissa *big.Int `toml:"ReserveFactorMantissa"`
	ExchangeRateMantissa  *big.Int `toml:"ExchangeRateMantissa"`
	BlockHeight           uint64   `toml:"BlockHeight"`
}

const defaultListenAddress = ":8645"

var defaultExchangeRate = big.NewInt(1_000_000_000_000_000_000)

// Load reads the configuration at path, falling back to defaults when the
// file does not exist.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{
		ListenAddress: defaultListenAddress,
		Environment:   "dev",
	}
	cfg.EnsureDefaults()
	return cfg
}

// EnsureDefaults populates empty fields so downstream wiring is safe.
func (c *Config) EnsureDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = defaultListenAddress
	}
	if c.CollateralCapWei == nil {
		c.CollateralCapWei = big.NewInt(0)
	}
	if c.ReserveFactorMantissa == nil {
		c.ReserveFactorMantissa = big.NewInt(0)
	}
	if c.ExchangeRateMantissa == nil || c.ExchangeRateMantissa.Sign() == 0 {
		c.ExchangeRateMantissa = new(big.Int).Set(defaultExchangeRate)
	}
}

// Validate rejects malformed addresses and out-of-range rates.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"MarketAddress":     c.MarketAddress,
		"UnderlyingAddress": c.UnderlyingAddress,
		"AdminAddress":      c.AdminAddress,
		"FeeRecipient":      c.FeeRecipient,
		"ControllerAddress": c.ControllerAddress,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if !common.IsHexAddress(value) {
			return fmt.Errorf("config: %s is not a hex address", name)
		}
	}
	if c.FlashFeeBips > 10_000 {
		return fmt.Errorf("config: FlashFeeBips above 100%%")
	}
	if c.ReserveFactorMantissa.Cmp(defaultExchangeRate) > 0 {
		return fmt.Errorf("config: ReserveFactorMantissa above 1e18")
	}
	return nil
}

// Address decodes a configured hex address, returning the zero address for
// empty values.
func Address(value string) common.Address {
	if !common.IsHexAddress(value) {
		return common.Address{}
	}
	return common.HexToAddress(value)
}
