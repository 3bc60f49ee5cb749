package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tinoosan/fxledger/internal/fx"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
listen: ":9090"
local_currency: ars
roles:
  counterpart: "1.1.01"
  commission: "5.1.31"
quotes:
  - currency: usd
    bid: "1180.50"
    ask: "1195.00"
  - currency: usd
    bid: "1300"
    ask: "1300"
    mode: management
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("listen = %q, want :9090", cfg.Listen)
	}
	if cfg.LocalCurrency != "ARS" {
		t.Errorf("local currency = %q, want ARS", cfg.LocalCurrency)
	}
	if got := cfg.Roles["counterpart"]; got != "1.1.01" {
		t.Errorf("counterpart code = %q, want 1.1.01", got)
	}
	if len(cfg.Quotes) != 2 {
		t.Fatalf("quotes = %d, want 2", len(cfg.Quotes))
	}

	q, mode, err := cfg.Quotes[0].Quote()
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Currency != "USD" {
		t.Errorf("currency = %q, want USD", q.Currency)
	}
	if mode != fx.ModeAccounting {
		t.Errorf("mode = %q, want accounting default", mode)
	}
	if q.Bid.String() != "1180.5" || q.Ask.String() != "1195" {
		t.Errorf("bid/ask = %s/%s", q.Bid, q.Ask)
	}

	_, mode, err = cfg.Quotes[1].Quote()
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if mode != fx.ModeManagement {
		t.Errorf("mode = %q, want management", mode)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "roles:\n  interest: \"5.1.21\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("listen = %q, want :8080", cfg.Listen)
	}
	if cfg.LocalCurrency != "USD" {
		t.Errorf("local currency = %q, want USD", cfg.LocalCurrency)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, "listen: [\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestQuoteSeedErrors(t *testing.T) {
	if _, _, err := (QuoteSeed{Currency: "USD", Bid: "abc", Ask: "1"}).Quote(); err == nil {
		t.Error("expected error for bad bid")
	}
	if _, _, err := (QuoteSeed{Currency: "USD", Bid: "1", Ask: "x"}).Quote(); err == nil {
		t.Error("expected error for bad ask")
	}
	if _, _, err := (QuoteSeed{Currency: "USD", Bid: "1", Ask: "1", Mode: "forecast"}).Quote(); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8080" || cfg.LocalCurrency != "USD" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
