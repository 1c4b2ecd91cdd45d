package container

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"bounty-backend/config"
	"bounty-backend/core/bounty"
	"bounty-backend/events"
	"bounty-backend/mcp"
	"bounty-backend/metrics"
	"bounty-backend/middleware"
	api "bounty-backend/middleware/bounty"
	auth "bounty-backend/storage/auth"
	store "bounty-backend/storage/bounty"
)

// apiKeyStore is what both key stores offer.
type apiKeyStore interface {
	auth.APIKeyValidator
	auth.APIKeyIssuer
	Seed(key, label, source string)
}

// Container holds all application dependencies
type Container struct {
	Config config.Config

	// Storage
	Ledger  bounty.Ledger
	APIKeys apiKeyStore
	Redis   redis.UniversalClient

	// Ledger engine and its sinks
	Engine      *bounty.Engine
	Events      *bounty.EventLog
	Broadcaster *api.Broadcaster
	Publisher   *events.RedisPublisher
	Metrics     *metrics.Metrics

	Auth *auth.Authenticator

	closers []func()
}

// New builds the dependency graph described by cfg.
func New(ctx context.Context, cfg config.Config) (*Container, error) {
	c := &Container{Config: cfg}
	if err := c.init(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) init(ctx context.Context) error {
	cfg := c.Config

	var clock bounty.Clock
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := store.NewPGStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, pg.Close)
		keys, err := auth.NewPGAPIKeyStore(ctx, pg.Pool())
		if err != nil {
			return err
		}
		c.Ledger, c.APIKeys = pg, keys
		clock = bounty.NewMonotonicClock(pg)
	default:
		c.Ledger, c.APIKeys = store.NewMemoryStore(), auth.NewAPIKeyStore()
		clock = bounty.NewMonotonicClock(bounty.SystemClock{})
	}
	c.APIKeys.Seed(cfg.AdminAPIKey, "admin", "env")

	var challenges auth.Challenges = auth.NewChallengeStore(cfg.ChallengeTTL)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		c.closers = append(c.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		c.Redis = client
		c.Publisher = events.NewRedisPublisher(client, events.Config{StreamMaxLen: cfg.RedisStreamMaxLen})
		challenges = auth.NewRedisChallengeStore(client, cfg.ChallengeTTL)
	}
	c.Auth = auth.NewAuthenticator(challenges)

	c.Events = bounty.NewEventLog(cfg.EventBuffer)
	c.Broadcaster = api.NewBroadcaster()
	c.Metrics = metrics.New()

	opts := []bounty.Option{
		bounty.WithProgramID(cfg.Program()),
		bounty.WithRent(cfg.Rent()),
		bounty.WithObserver(c.Metrics),
		bounty.WithEventSink(c.Events),
		bounty.WithEventSink(c.Broadcaster),
	}
	if c.Publisher != nil {
		opts = append(opts, bounty.WithEventSink(c.Publisher))
	}
	c.Engine = bounty.NewEngine(c.Ledger, clock, opts...)

	log.WithFields(log.Fields{
		"store":   cfg.StoreDriver,
		"program": cfg.Program().String(),
		"redis":   cfg.RedisAddr != "",
	}).Info("container initialized")
	return nil
}

// Server builds the HTTP API over the container's engine.
func (c *Container) Server() *api.Server {
	return api.NewServer(api.Config{
		Engine:         c.Engine,
		Auth:           c.Auth,
		APIKeys:        c.APIKeys,
		KeyIssuer:      c.APIKeys,
		Events:         c.Events,
		Broadcaster:    c.Broadcaster,
		Metrics:        c.Metrics,
		RateLimiter:    middleware.NewRateLimiter(c.Config.RateBurst, c.Config.RatePerSecond),
		FaucetEnabled:  c.Config.FaucetEnabled,
		FaucetMax:      c.Config.FaucetMax,
		RequestTimeout: c.Config.RequestTimeout,
	})
}

// MCP builds the MCP tool server over the container's engine.
func (c *Container) MCP() *mcp.MCPServer {
	return mcp.NewMCPServer(c.Engine, c.Auth, c.Events)
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
