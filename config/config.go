// Package config loads bountyd settings from BOUNTY_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

const Prefix = "BOUNTY_"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	ListenAddr     string        `env:"LISTEN_ADDR" envDefault:":8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	RateBurst      int           `env:"RATE_BURST" envDefault:"30"`
	RatePerSecond  float64       `env:"RATE_PER_SECOND" envDefault:"10"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	PGDSN       string `env:"PG_DSN"`

	ProgramID    string `env:"PROGRAM_ID"`
	RentPerByte  uint64 `env:"RENT_PER_BYTE" envDefault:"6960"`
	RentOverhead uint64 `env:"RENT_OVERHEAD" envDefault:"128"`

	FaucetEnabled bool   `env:"FAUCET_ENABLED" envDefault:"false"`
	FaucetMax     uint64 `env:"FAUCET_MAX" envDefault:"10000000000"`
	AdminAPIKey   string `env:"ADMIN_API_KEY"`

	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	RedisStreamMaxLen int64         `env:"REDIS_STREAM_MAXLEN" envDefault:"10000"`
	ChallengeTTL      time.Duration `env:"CHALLENGE_TTL" envDefault:"5m"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	EventBuffer int    `env:"EVENT_BUFFER" envDefault:"256"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads vars instead of the process environment; keys carry the
// BOUNTY_ prefix.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("%sPG_DSN is required for the postgres store", Prefix)
		}
	default:
		return fmt.Errorf("unknown %sSTORE_DRIVER %q", Prefix, c.StoreDriver)
	}
	if c.ProgramID != "" {
		if _, err := pda.ParseAddress(c.ProgramID); err != nil {
			return fmt.Errorf("%sPROGRAM_ID: %w", Prefix, err)
		}
	}
	if c.RentPerByte == 0 {
		return fmt.Errorf("%sRENT_PER_BYTE must be positive", Prefix)
	}
	if c.FaucetEnabled && c.AdminAPIKey == "" {
		return fmt.Errorf("%sFAUCET_ENABLED requires %sADMIN_API_KEY", Prefix, Prefix)
	}
	return nil
}

// Program returns the configured program id, or the default one.
func (c Config) Program() pda.Address {
	if c.ProgramID == "" {
		return bounty.DefaultProgramID
	}
	return pda.MustParseAddress(c.ProgramID)
}

func (c Config) Rent() bounty.RentSchedule {
	return bounty.RentSchedule{Overhead: c.RentOverhead, PerByte: c.RentPerByte}
}

// ConfigureLogging sets the global logrus level and formatter.
func (c Config) ConfigureLogging() {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}
