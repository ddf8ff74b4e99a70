// Package app wires configuration, storage and services for the commands.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/membership-admin/internal/config"
	"github.com/ignite/membership-admin/internal/database"
	"github.com/ignite/membership-admin/internal/pkg/logger"
	"github.com/ignite/membership-admin/internal/repository/sqlrepo"
	"github.com/ignite/membership-admin/internal/service/geography"
	"github.com/ignite/membership-admin/internal/service/membership"
)

// Env is everything a command needs after startup.
type Env struct {
	Config   *config.Config
	DB       *sql.DB
	Driver   string
	Redis    *redis.Client
	Members  *membership.Service
	GeoRepo  geography.Repository
	Resolver geography.WardResolver
}

// DefaultConfigPath is read when CONFIG_PATH is unset.
const DefaultConfigPath = "config/config.yaml"

// ConfigPath returns CONFIG_PATH, or DefaultConfigPath when it exists, or ""
// to run from defaults and environment only.
func ConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

// ConfigureLogger applies the logging section of cfg.
func ConfigureLogger(cfg config.LoggingConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(cfg.Redact())
}

// Setup loads config from path (plus env overrides), opens the database and
// the optional Redis cache, and builds the services.
func Setup(ctx context.Context, configPath string) (*Env, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	ConfigureLogger(cfg.Logging)

	db, driver, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return NewEnv(cfg, db, driver, ConnectRedis(ctx, cfg.Redis.URL)), nil
}

// NewEnv builds the services over an open database. rdb may be nil.
func NewEnv(cfg *config.Config, db *sql.DB, driver string, rdb *redis.Client) *Env {
	dialect := sqlrepo.DialectFor(driver)
	classifier := membership.NewClassifier(cfg.Membership.GraceDays, cfg.Membership.Location())
	geoRepo := sqlrepo.NewGeographyRepo(db, dialect)

	var resolver geography.WardResolver = geography.NewResolver(geoRepo)
	if rdb != nil {
		resolver = geography.NewCachedResolver(resolver, rdb, cfg.Geography.CacheTTL())
	}

	return &Env{
		Config:   cfg,
		DB:       db,
		Driver:   driver,
		Redis:    rdb,
		Members:  membership.NewService(sqlrepo.NewMemberRepo(db, dialect), classifier),
		GeoRepo:  geoRepo,
		Resolver: resolver,
	}
}

// ConnectRedis returns a client for url, or nil when url is empty or the
// server does not answer a ping. Redis is optional everywhere.
func ConnectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}
	var client *redis.Client
	opts, err := redis.ParseURL(url)
	if err != nil {
		client = redis.NewClient(&redis.Options{Addr: url})
	} else {
		client = redis.NewClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without it", "error", err)
		client.Close()
		return nil
	}
	logger.Info("connected to redis")
	return client
}

// Close releases the database and Redis connections.
func (e *Env) Close() {
	if e.Redis != nil {
		e.Redis.Close()
	}
	if e.DB != nil {
		e.DB.Close()
	}
}
