// Package app wires configuration, storage, the flight services and the
// Telegram handlers into a runnable bot.
package app

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/aviabot/core/config"
	coredatabase "github.com/m3rciful/aviabot/core/database"
	"github.com/m3rciful/aviabot/internal/flights"
	"github.com/m3rciful/aviabot/internal/location"
	"github.com/m3rciful/aviabot/internal/results"
	"github.com/m3rciful/aviabot/internal/travelpayouts"
)

const (
	SessionsMemory = "memory"
	SessionsRedis  = "redis"

	defaultTimezone = "Asia/Tashkent"
)

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	// Database is optional; without a driver language preferences live in memory.
	Database      coredatabase.Config  `yaml:"database"`
	Travelpayouts travelpayouts.Config `yaml:"travelpayouts"`
	Search        SearchConfig         `yaml:"search"`
	Sessions      SessionsConfig       `yaml:"sessions"`
	Status        StatusConfig         `yaml:"status"`
}

// SearchConfig tunes the search pipeline.
type SearchConfig struct {
	PageSize      int `yaml:"page_size" envconfig:"SEARCH_PAGE_SIZE"`
	MaxPages      int `yaml:"max_pages" envconfig:"SEARCH_MAX_PAGES"`
	NearestLimit  int `yaml:"nearest_limit" envconfig:"SEARCH_NEAREST_LIMIT"`
	MaxCandidates int `yaml:"max_candidates" envconfig:"SEARCH_MAX_CANDIDATES"`
	MessageBudget int `yaml:"message_budget" envconfig:"SEARCH_MESSAGE_BUDGET"`
	// Timezone is the reference zone for date entry and date filtering.
	Timezone        string        `yaml:"timezone" envconfig:"SEARCH_TIMEZONE"`
	AirlinesTimeout time.Duration `yaml:"airlines_timeout" envconfig:"SEARCH_AIRLINES_TIMEOUT"`

	location *time.Location
}

// Location returns the parsed reference zone.
func (c SearchConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *SearchConfig) normalize() error {
	if c.PageSize <= 0 {
		c.PageSize = flights.DefaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = flights.DefaultMaxPages
	}
	if c.NearestLimit <= 0 {
		c.NearestLimit = flights.DefaultNearestLimit
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = location.DefaultMaxCandidates
	}
	if c.MessageBudget <= 0 {
		c.MessageBudget = results.DefaultBudget
	}
	if c.MessageBudget > 4096 {
		return fmt.Errorf("search.message_budget must be <= 4096")
	}
	if c.AirlinesTimeout <= 0 {
		c.AirlinesTimeout = 15 * time.Second
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid search.timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// SessionsConfig selects where dialog sessions live.
type SessionsConfig struct {
	Backend string      `yaml:"backend" envconfig:"SESSIONS_BACKEND"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string        `yaml:"prefix" envconfig:"REDIS_PREFIX"`
	TTL      time.Duration `yaml:"ttl" envconfig:"REDIS_SESSION_TTL"`
}

func (c *SessionsConfig) normalize() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case "", SessionsMemory:
		c.Backend = SessionsMemory
	case SessionsRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("sessions.redis.addr is required when sessions.backend is 'redis'")
		}
		if c.Redis.Prefix == "" {
			c.Redis.Prefix = "aviabot:session:"
		}
		if c.Redis.TTL <= 0 {
			c.Redis.TTL = 24 * time.Hour
		}
	default:
		return fmt.Errorf("invalid sessions.backend %q; allowed: memory, redis", c.Backend)
	}
	return nil
}

// StatusConfig enables the HTTP status endpoint when Listen is set.
type StatusConfig struct {
	Listen string `yaml:"listen" envconfig:"STATUS_LISTEN"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads path, applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Travelpayouts.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Search.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Sessions.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
