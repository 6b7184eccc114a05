package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "CURRENCY")
	unsetEnvWithCleanup(t, "PLATFORM_FEE_PAISE")
	unsetEnvWithCleanup(t, "PLATFORM_FEE")
	unsetEnvWithCleanup(t, "PLATFORM_FEE_RUPEES")
	unsetEnvWithCleanup(t, "MIN_WITHDRAWAL_PAISE")
	unsetEnvWithCleanup(t, "MIN_WITHDRAWAL")
	unsetEnvWithCleanup(t, "REAPER_INTERVAL_MINUTES")
	unsetEnvWithCleanup(t, "BOOKING_RATE_LIMIT_PER_MINUTE")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.Currency != "inr" {
		t.Fatalf("expected default currency inr, got %q", cfg.Currency)
	}
	if cfg.PlatformFeePaise != 50000 {
		t.Fatalf("expected default platform fee 50000, got %d", cfg.PlatformFeePaise)
	}
	if cfg.MinWithdrawalPaise != 100000 {
		t.Fatalf("expected default minimum withdrawal 100000, got %d", cfg.MinWithdrawalPaise)
	}
	if cfg.ReaperIntervalMinutes != 5 || cfg.StalePaymentTimeoutMin != 15 {
		t.Fatalf("unexpected reaper defaults: interval=%d timeout=%d", cfg.ReaperIntervalMinutes, cfg.StalePaymentTimeoutMin)
	}
	if cfg.BookingRateLimitPerMinute != 10 {
		t.Fatalf("expected default booking rate limit 10, got %d", cfg.BookingRateLimitPerMinute)
	}
}

func TestLoadConfig_PortAliasOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_PlatformFeeInWholeUnits(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PLATFORM_FEE_PAISE")
	setEnvWithCleanup(t, "PLATFORM_FEE", "750.50")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PlatformFeePaise != 75050 {
		t.Fatalf("expected PLATFORM_FEE=750.50 to become 75050 paise, got %d", cfg.PlatformFeePaise)
	}
}

func TestLoadConfig_NegativeFeeCoercedToZero(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PLATFORM_FEE")
	unsetEnvWithCleanup(t, "PLATFORM_FEE_RUPEES")
	setEnvWithCleanup(t, "PLATFORM_FEE_PAISE", "-100")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PlatformFeePaise != 0 {
		t.Fatalf("expected negative fee to be coerced to zero, got %d", cfg.PlatformFeePaise)
	}
}

func TestLoadConfig_MinWithdrawalAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "MIN_WITHDRAWAL_PAISE")
	setEnvWithCleanup(t, "MIN_WITHDRAWAL", "2000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MinWithdrawalPaise != 200000 {
		t.Fatalf("expected MIN_WITHDRAWAL=2000 to become 200000 paise, got %d", cfg.MinWithdrawalPaise)
	}
}

func TestLoadConfig_CurrencyIsNormalized(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "CURRENCY", "  INR ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Currency != "inr" {
		t.Fatalf("expected currency to be lowercased and trimmed, got %q", cfg.Currency)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
