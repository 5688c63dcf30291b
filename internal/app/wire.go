package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/mintmatch/mintmatch/internal/blob/s3"
	"github.com/mintmatch/mintmatch/internal/cache/redis"
	"github.com/mintmatch/mintmatch/internal/chain"
	"github.com/mintmatch/mintmatch/internal/config"
	"github.com/mintmatch/mintmatch/internal/crypto"
	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/ledger"
	"github.com/mintmatch/mintmatch/internal/notify"
	"github.com/mintmatch/mintmatch/internal/oracle"
	"github.com/mintmatch/mintmatch/internal/params"
	"github.com/mintmatch/mintmatch/internal/pricing"
	"github.com/mintmatch/mintmatch/internal/store/memory"
	"github.com/mintmatch/mintmatch/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	BetStore   domain.BetStore
	EventStore domain.EventStore

	// Redis-backed collaborators; nil when Redis is disabled.
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage; nil when S3 is disabled.
	BlobWriter  domain.BlobWriter
	BlobReader  domain.BlobReader
	BlobDeleter domain.BlobDeleter
	Archiver    *s3blob.ArchiveImpl

	// Chain
	Chain *chain.Client

	// Engine
	Params *params.Params
	Ledger *ledger.Ledger

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks probes the wired backing services by name.
	HealthChecks map[string]func(ctx context.Context) error
}

// usePostgres reports whether the configuration selects the PostgreSQL store.
// An entirely empty connection block selects the in-memory store instead.
func usePostgres(cfg config.PostgresConfig) bool {
	return strings.TrimSpace(cfg.DSN) != "" || cfg.Host != ""
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		HealthChecks: make(map[string]func(ctx context.Context) error),
	}

	// --- Chain client ---
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Chain.PrivateKey,
		EncryptedKeyPath: cfg.Chain.EncryptedKeyPath,
		KeyPassword:      cfg.Chain.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: operator key: %w", err)
	}

	chainClient, err := chain.Dial(ctx, chain.Config{
		RPCURL:        cfg.Chain.RPCURL,
		ChainID:       cfg.Chain.ChainID,
		PrivateKeyHex: key,
		CallTimeout:   cfg.Chain.CallTimeout.Duration,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	// --- Stores ---
	if usePostgres(cfg.Postgres) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.BetStore = postgres.NewBetStore(pool)
		deps.EventStore = postgres.NewEventStore(pool)
		deps.HealthChecks["postgres"] = pool.Ping
	} else {
		logger.InfoContext(ctx, "wire: postgres not configured, using in-memory stores")
		deps.BetStore = memory.NewBetStore()
		deps.EventStore = memory.NewEventStore()
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		reader := s3blob.NewReader(s3Client)
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = reader
		deps.BlobDeleter = reader
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.BetStore, deps.EventStore, logger)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Engine parameters ---
	p, err := params.New(
		common.HexToAddress(cfg.Chain.Owner),
		common.HexToAddress(cfg.Chain.Registry),
		deps.EventStore,
		logger,
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: params: %w", err)
	}
	// Apply configured starting values through the owner-gated setters so the
	// changes land in the audit log like any other.
	owner := common.HexToAddress(cfg.Chain.Owner)
	if cfg.Engine.ToleranceBps != p.PoolConsistencyToleranceBps() {
		if err := p.SetPoolConsistencyTolerance(ctx, owner, cfg.Engine.ToleranceBps); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: initial tolerance: %w", err)
		}
	}
	if cfg.Engine.PlatformFeeBps != p.PlatformFeeBps() {
		if err := p.SetPlatformFee(ctx, owner, cfg.Engine.PlatformFeeBps); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: initial platform fee: %w", err)
		}
	}
	deps.Params = p

	// --- Pricing and the ledger ---
	adapter := oracle.NewWithWindow(chainClient, cfg.Engine.OracleWindow.Duration, logger)
	resolver := pricing.NewResolver(adapter, p, logger)

	deps.Ledger = ledger.New(ledger.Deps{
		Store:    deps.BetStore,
		Events:   deps.EventStore,
		Bus:      deps.SignalBus,
		Locks:    deps.LockManager,
		Markets:  chainClient,
		Registry: chainClient,
		Tokens:   chainClient,
		Resolver: resolver,
		Params:   p,
		Custody:  common.HexToAddress(cfg.Chain.Custody),
	}, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
