package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.PrivateKey = "0xabc"
	cfg.Chain.Owner = "0x00000000000000000000000000000000000000a1"
	cfg.Chain.Registry = "0x00000000000000000000000000000000000000b1"
	cfg.Chain.Custody = "0x00000000000000000000000000000000000000c1"
	return cfg
}

func TestValidateAcceptsDefaultsWithChain(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Engine.ToleranceBps = 2000
	cfg.Engine.PlatformFeeBps = 501
	cfg.Chain.Registry = "not-an-address"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"unknown mode", "tolerance_bps", "platform_fee_bps", "registry"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateRejectsZeroAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.Custody = "0x0000000000000000000000000000000000000000"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "custody must not be the zero address") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateArchiveModeNeedsS3(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "archive"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "archive mode") {
		t.Fatalf("err = %v", err)
	}

	cfg.S3.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate with s3 enabled: %v", err)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "serve"
log_level = "debug"

[chain]
rpc_url = "https://rpc.example.org"
owner = "0x00000000000000000000000000000000000000a1"
registry = "0x00000000000000000000000000000000000000b1"
custody = "0x00000000000000000000000000000000000000c1"

[engine]
tolerance_bps = 75
oracle_window = "15m"

[server]
port = 9100
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MINTMATCH_ENGINE_TOLERANCE_BPS", "90")
	t.Setenv("MINTMATCH_CHAIN_PRIVATE_KEY", "0xsecret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Chain.RPCURL != "https://rpc.example.org" {
		t.Errorf("rpc_url = %q", cfg.Chain.RPCURL)
	}
	// Env wins over file.
	if cfg.Engine.ToleranceBps != 90 {
		t.Errorf("tolerance_bps = %d, want 90", cfg.Engine.ToleranceBps)
	}
	if cfg.Chain.PrivateKey != "0xsecret" {
		t.Errorf("private key not taken from env")
	}
	if cfg.Engine.OracleWindow.Duration != 15*time.Minute {
		t.Errorf("oracle_window = %s, want 15m", cfg.Engine.OracleWindow.Duration)
	}
	// Untouched values keep their defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d, want default 5432", cfg.Postgres.Port)
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.SecretKey = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)
	for name, v := range map[string]string{
		"chain.private_key": red.Chain.PrivateKey,
		"postgres.password": red.Postgres.Password,
		"redis.password":    red.Redis.Password,
		"s3.secret_key":     red.S3.SecretKey,
		"telegram_token":    red.Notify.TelegramToken,
	} {
		if v != "***" {
			t.Errorf("%s = %q, want redacted", name, v)
		}
	}
	// The original is untouched.
	if cfg.Postgres.Password != "hunter2" {
		t.Errorf("original mutated")
	}
}
