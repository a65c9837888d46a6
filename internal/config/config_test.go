package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/kintai_test")
	t.Setenv("TOKEN_SECRET", "test-secret")
}

func TestLoad_RequiredVariables(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() がエラーを返した: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost:5432/kintai_test" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.TokenSecret != "test-secret" {
		t.Errorf("TokenSecret = %q", cfg.TokenSecret)
	}
}

func TestLoad_MissingRequiredVariables(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TOKEN_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("必須環境変数なしでLoad()はエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("エラーにDATABASE_URLが含まれていない: %v", err)
	}
	if !strings.Contains(err.Error(), "TOKEN_SECRET") {
		t.Errorf("エラーにTOKEN_SECRETが含まれていない: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.BcryptCost != 0 {
		t.Errorf("BcryptCost = %d, want 0", cfg.BcryptCost)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
	if cfg.RateLimitLogin != 10 {
		t.Errorf("RateLimitLogin = %d, want 10", cfg.RateLimitLogin)
	}
	if cfg.LogRetentionDays != 180 {
		t.Errorf("LogRetentionDays = %d, want 180", cfg.LogRetentionDays)
	}
	if cfg.CleanupInterval != 24*time.Hour {
		t.Errorf("CleanupInterval = %v, want 24h", cfg.CleanupInterval)
	}
	if cfg.SeedAdminUsername != "admin" {
		t.Errorf("SeedAdminUsername = %q, want %q", cfg.SeedAdminUsername, "admin")
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_TTL", "8h")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("RATE_LIMIT_GENERAL", "60")
	t.Setenv("LOG_RETENTION_DAYS", "90")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TokenTTL != 8*time.Hour {
		t.Errorf("TokenTTL = %v, want 8h", cfg.TokenTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.RateLimitGeneral != 60 {
		t.Errorf("RateLimitGeneral = %d, want 60", cfg.RateLimitGeneral)
	}
	if cfg.LogRetentionDays != 90 {
		t.Errorf("LogRetentionDays = %d, want 90", cfg.LogRetentionDays)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "9090")
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_TTL", "not-a-duration")
	t.Setenv("BCRYPT_COST", "twelve")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("不正なTOKEN_TTLはデフォルトに戻るべき: %v", cfg.TokenTTL)
	}
	if cfg.BcryptCost != 0 {
		t.Errorf("不正なBCRYPT_COSTはデフォルトに戻るべき: %d", cfg.BcryptCost)
	}
}
