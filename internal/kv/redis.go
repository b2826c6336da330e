// Package kv provides the Redis-backed credential store used by the
// authenticating proxy: opaque ID in, bearer token out.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mosteligible/mcp-codemode/internal/logging"
)

// ErrNotFound indicates no credential is bound to the opaque ID.
var ErrNotFound = errors.New("credential not found")

// keyPrefix namespaces credential bindings in the shared store.
const keyPrefix = "proxy:credential:"

// Config holds Redis connection configuration.
type Config struct {
	URL      string // redis://host:port/db, takes precedence when set
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the credential store.
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     50,
		MinIdleConns: 5,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ConfigFromEnv creates store config from environment variables.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.URL = url
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			cfg.DB = d
		}
	}
	if poolSize := os.Getenv("REDIS_POOL_SIZE"); poolSize != "" {
		if ps, err := strconv.Atoi(poolSize); err == nil {
			cfg.PoolSize = ps
		}
	}

	return cfg
}

// Store is the credential store client. The store is external
// infrastructure: an unreachable Redis degrades proxy requests to 5xx but
// never takes the service down.
type Store struct {
	client      *redis.Client
	healthCheck chan struct{}
}

// NewStore connects to Redis. A failed initial ping is logged, not fatal.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}

	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		PoolTimeout:  cfg.PoolTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}
		parsed.PoolSize = cfg.PoolSize
		parsed.MinIdleConns = cfg.MinIdleConns
		parsed.PoolTimeout = cfg.PoolTimeout
		parsed.IdleTimeout = cfg.IdleTimeout
		parsed.DialTimeout = cfg.DialTimeout
		parsed.ReadTimeout = cfg.ReadTimeout
		parsed.WriteTimeout = cfg.WriteTimeout
		opts = parsed
	}

	s := &Store{
		client:      redis.NewClient(opts),
		healthCheck: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		logging.L().Warn("credential store unreachable at startup", zap.Error(err))
	} else {
		logging.L().Info("credential store connected", zap.String("addr", opts.Addr))
	}

	go s.runHealthCheck()
	return s, nil
}

// runHealthCheck periodically checks store connection health.
func (s *Store) runHealthCheck() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.client.Ping(ctx).Err(); err != nil {
				logging.L().Warn("credential store health check failed", zap.Error(err))
			}
			cancel()
		case <-s.healthCheck:
			return
		}
	}
}

// GetToken resolves an opaque ID to its bound bearer token. Returns
// ErrNotFound when no binding exists or it has expired.
func (s *Store) GetToken(ctx context.Context, opaqueID string) (string, error) {
	token, err := s.client.Get(ctx, keyPrefix+opaqueID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credential lookup failed: %w", err)
	}
	return token, nil
}

// PutToken binds a bearer token to an opaque ID with the given TTL. Used by
// operators and tests; the proxy itself is read-only.
func (s *Store) PutToken(ctx context.Context, opaqueID, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+opaqueID, token, ttl).Err(); err != nil {
		return fmt.Errorf("credential store failed: %w", err)
	}
	return nil
}

// Ping tests the store connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close shuts down the health check and the connection pool.
func (s *Store) Close() error {
	close(s.healthCheck)
	return s.client.Close()
}
