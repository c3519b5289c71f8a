package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/forecastarena/internal/blob/s3"
	"github.com/alanyoungcy/forecastarena/internal/cache/redis"
	"github.com/alanyoungcy/forecastarena/internal/config"
	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/forecast"
	"github.com/alanyoungcy/forecastarena/internal/notify"
	"github.com/alanyoungcy/forecastarena/internal/platform/openrouter"
	"github.com/alanyoungcy/forecastarena/internal/platform/polymarket"
	"github.com/alanyoungcy/forecastarena/internal/service"
	"github.com/alanyoungcy/forecastarena/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Infrastructure clients, kept for health probes.
	PG    *postgres.Client
	Redis *redis.Client

	// Stores
	Agents  domain.AgentStore
	Cohorts domain.CohortStore
	Ledgers domain.LedgerStore
	Markets domain.MarketStore
	Rounds  domain.RoundStore
	Bets    domain.BetStore

	// Caches and coordination
	MarketCache domain.MarketCache
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter

	// Blob storage; nil unless s3.enabled.
	BlobReader domain.BlobReader

	// External collaborators
	Oracle   domain.MarketFeed
	Notifier *notify.Notifier

	// Services
	MarketSvc  *service.MarketService
	Budget     *service.BudgetService
	CohortSvc  *service.CohortService
	RoundSvc   *service.RoundService
	Settlement *service.SettlementService
	Scoring    *service.ScoringService
}

// needsGateway returns true for modes that fan rounds out to the models,
// directly or through the API trigger endpoint.
func needsGateway(mode string) bool {
	switch mode {
	case "server", "round", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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
	deps.PG = pgClient
	deps.Agents = postgres.NewAgentStore(pool)
	deps.Cohorts = postgres.NewCohortStore(pool)
	deps.Ledgers = postgres.NewLedgerStore(pool)
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Rounds = postgres.NewRoundStore(pool)
	deps.Bets = postgres.NewBetStore(pool)

	// The roster is fixed; seeding is idempotent.
	if err := deps.Agents.Seed(ctx, domain.SeedAgents()); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: seed agents: %w", err)
	}

	// --- Redis ---
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

	deps.Redis = redisClient
	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- Market feed / resolution oracle ---
	gamma := polymarket.NewGammaClient(polymarket.FeedConfig{
		BaseURL:      cfg.Polymarket.GammaHost,
		MinVolume24h: cfg.Polymarket.MinVolume24h,
		MinYesPrice:  cfg.Arena.MinYesPrice,
		MaxYesPrice:  cfg.Arena.MaxYesPrice,
		MinHorizon:   cfg.Polymarket.MinHorizon.Duration,
		MaxHorizon:   cfg.Polymarket.MaxHorizon.Duration,
	})
	deps.Oracle = gamma

	// --- Model gateway (only for modes that run rounds) ---
	var forecaster *forecast.Client
	if needsGateway(cfg.Mode) {
		apiKey, err := cfg.GatewayAPIKey()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: gateway: %w", err)
		}
		gateway := openrouter.New(openrouter.ClientConfig{
			BaseURL:           cfg.Gateway.BaseURL,
			APIKey:            apiKey,
			Referer:           cfg.Gateway.Referer,
			Title:             cfg.Gateway.Title,
			RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
			Timeout:           cfg.Gateway.Timeout.Duration,
		})
		forecaster = forecast.NewClient(gateway, logger)
	}

	// --- S3 blob storage (round archives, optional) ---
	var archiver service.RoundArchiver
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
		writer := s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		archiver = s3blob.NewArchiver(writer, reader)
	}

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

	// --- Services ---
	deps.MarketSvc = service.NewMarketService(gamma, deps.Markets, deps.MarketCache, logger)
	deps.Budget = service.NewBudgetService(deps.Bets, service.BudgetConfig{
		CapUSD:             cfg.Arena.BudgetCapUSD,
		EstimatedRoundCost: cfg.Arena.EstimatedRoundCost,
	}, logger)
	deps.CohortSvc = service.NewCohortService(
		deps.Cohorts,
		deps.Agents,
		deps.Budget,
		deps.Notifier,
		cfg.Arena.InitialBankroll,
		logger,
	)
	deps.Settlement = service.NewSettlementService(
		deps.Bets,
		deps.Markets,
		deps.Cohorts,
		deps.Ledgers,
		deps.Oracle,
		deps.Locks,
		deps.Notifier,
		logger,
	)
	deps.Scoring = service.NewScoringService(deps.Bets, logger)

	if forecaster != nil {
		deps.RoundSvc = service.NewRoundService(
			deps.Cohorts,
			deps.Markets,
			deps.Rounds,
			deps.Bets,
			deps.Ledgers,
			deps.Agents,
			deps.MarketSvc,
			forecaster,
			deps.Budget,
			deps.Locks,
			archiver,
			deps.Notifier,
			service.RoundConfig{
				MarketsPerRound:  cfg.Arena.MarketsPerRound,
				MinYesPrice:      cfg.Arena.MinYesPrice,
				MaxYesPrice:      cfg.Arena.MaxYesPrice,
				PreviousBetLimit: cfg.Arena.PreviousBetLimit,
				LockTTL:          10 * time.Minute,
			},
			logger,
		)
	}

	return deps, cleanup, nil
}
