package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.BaseRate.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("BaseRate=%s want 2.5", cfg.BaseRate)
	}
	if !cfg.StepRate.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("StepRate=%s want 0.1", cfg.StepRate)
	}
	if cfg.MinInstallments != 1 || cfg.MaxInstallments != 24 {
		t.Fatalf("installment bounds [%d, %d] want [1, 24]", cfg.MinInstallments, cfg.MaxInstallments)
	}
	if cfg.RevealWindow != 5*time.Second {
		t.Fatalf("RevealWindow=%v want 5s", cfg.RevealWindow)
	}
	if cfg.MoneyScale != 2 {
		t.Fatalf("MoneyScale=%d want 2", cfg.MoneyScale)
	}
	if len(cfg.EncryptionKey) != 32 {
		t.Fatalf("EncryptionKey length=%d want 32", len(cfg.EncryptionKey))
	}
}

func TestNewConfigOverrides(t *testing.T) {
	t.Setenv("BASE_RATE", "1.75")
	t.Setenv("MAX_INSTALLMENTS", "36")
	t.Setenv("REVEAL_WINDOW", "10s")
	t.Setenv("LEDGER_EPSILON", "0.01")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.BaseRate.Equal(decimal.RequireFromString("1.75")) {
		t.Fatalf("BaseRate=%s want 1.75", cfg.BaseRate)
	}
	if cfg.MaxInstallments != 36 {
		t.Fatalf("MaxInstallments=%d want 36", cfg.MaxInstallments)
	}
	if cfg.RevealWindow != 10*time.Second {
		t.Fatalf("RevealWindow=%v want 10s", cfg.RevealWindow)
	}
	if !cfg.LedgerEpsilon.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("LedgerEpsilon=%s want 0.01", cfg.LedgerEpsilon)
	}
}

func TestNewConfigRejectsBadValues(t *testing.T) {
	t.Run("bad key", func(t *testing.T) {
		t.Setenv("ENCRYPTION_KEY", "zz")
		if _, err := NewConfig(); err == nil {
			t.Fatal("non-hex key should fail")
		}
	})
	t.Run("short key", func(t *testing.T) {
		t.Setenv("ENCRYPTION_KEY", "a1b2")
		if _, err := NewConfig(); err == nil {
			t.Fatal("short key should fail")
		}
	})
	t.Run("bad bounds", func(t *testing.T) {
		t.Setenv("MIN_INSTALLMENTS", "12")
		t.Setenv("MAX_INSTALLMENTS", "6")
		if _, err := NewConfig(); err == nil {
			t.Fatal("inverted bounds should fail")
		}
	})
	t.Run("bad rate", func(t *testing.T) {
		t.Setenv("BASE_RATE", "abc")
		if _, err := NewConfig(); err == nil {
			t.Fatal("non-decimal rate should fail")
		}
	})
}
