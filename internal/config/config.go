// Package config loads the service configuration from a YAML file: listen
// address, local currency, the user-editable role mapping (by ledger code)
// and quote seeds for the in-memory source.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tinoosan/fxledger/internal/fx"
)

// Config is the root configuration document.
type Config struct {
	Listen        string      `yaml:"listen"`
	LocalCurrency string      `yaml:"local_currency"`
	Roles         RoleMapping `yaml:"roles"`
	Quotes        []QuoteSeed `yaml:"quotes"`
}

// RoleMapping maps semantic account roles to ledger account codes. The codes
// are resolved against the ingested chart of accounts at serve time.
type RoleMapping map[string]string

// QuoteSeed is one bid/ask pair loaded into the static quote source.
type QuoteSeed struct {
	Currency string `yaml:"currency"`
	Bid      string `yaml:"bid"`
	Ask      string `yaml:"ask"`
	// Mode is "accounting" (default) or "management".
	Mode string `yaml:"mode"`
}

// Quote parses the seed into a domain quote.
func (q QuoteSeed) Quote() (fx.Quote, fx.ValuationMode, error) {
	bid, err := decimal.NewFromString(q.Bid)
	if err != nil {
		return fx.Quote{}, "", fmt.Errorf("quote %s: bad bid %q: %w", q.Currency, q.Bid, err)
	}
	ask, err := decimal.NewFromString(q.Ask)
	if err != nil {
		return fx.Quote{}, "", fmt.Errorf("quote %s: bad ask %q: %w", q.Currency, q.Ask, err)
	}
	mode := fx.ValuationMode(strings.ToLower(q.Mode))
	if mode == "" {
		mode = fx.ModeAccounting
	}
	if mode != fx.ModeAccounting && mode != fx.ModeManagement {
		return fx.Quote{}, "", fmt.Errorf("quote %s: unknown mode %q", q.Currency, q.Mode)
	}
	return fx.Quote{Currency: strings.ToUpper(q.Currency), Bid: bid, Ask: ask}, mode, nil
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Listen:        ":8080",
		LocalCurrency: "USD",
	}
}

// Load reads and parses the YAML file at path, filling unset fields from
// Default.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.LocalCurrency == "" {
		cfg.LocalCurrency = "USD"
	}
	cfg.LocalCurrency = strings.ToUpper(cfg.LocalCurrency)
	return cfg, nil
}
