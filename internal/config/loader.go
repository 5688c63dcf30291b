package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MINTMATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MINTMATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "MINTMATCH_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "MINTMATCH_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.PrivateKey, "MINTMATCH_CHAIN_PRIVATE_KEY")
	setStr(&cfg.Chain.EncryptedKeyPath, "MINTMATCH_CHAIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Chain.KeyPassword, "MINTMATCH_CHAIN_KEY_PASSWORD")
	setStr(&cfg.Chain.Owner, "MINTMATCH_CHAIN_OWNER")
	setStr(&cfg.Chain.Registry, "MINTMATCH_CHAIN_REGISTRY")
	setStr(&cfg.Chain.Custody, "MINTMATCH_CHAIN_CUSTODY")
	setDuration(&cfg.Chain.CallTimeout, "MINTMATCH_CHAIN_CALL_TIMEOUT")

	// ── Engine ──
	setUint64(&cfg.Engine.ToleranceBps, "MINTMATCH_ENGINE_TOLERANCE_BPS")
	setUint64(&cfg.Engine.PlatformFeeBps, "MINTMATCH_ENGINE_PLATFORM_FEE_BPS")
	setDuration(&cfg.Engine.OracleWindow, "MINTMATCH_ENGINE_ORACLE_WINDOW")
	setInt(&cfg.Engine.MaxListLimit, "MINTMATCH_ENGINE_MAX_LIST_LIMIT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MINTMATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MINTMATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MINTMATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MINTMATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MINTMATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MINTMATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MINTMATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MINTMATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MINTMATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MINTMATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MINTMATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MINTMATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MINTMATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MINTMATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MINTMATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MINTMATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MINTMATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MINTMATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MINTMATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MINTMATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "MINTMATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MINTMATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MINTMATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MINTMATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MINTMATCH_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "MINTMATCH_S3_ARCHIVE_INTERVAL")
	setInt(&cfg.S3.RetentionDays, "MINTMATCH_S3_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MINTMATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MINTMATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MINTMATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MINTMATCH_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MINTMATCH_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "MINTMATCH_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MINTMATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MINTMATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MINTMATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MINTMATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MINTMATCH_MODE")
	setStr(&cfg.LogLevel, "MINTMATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
