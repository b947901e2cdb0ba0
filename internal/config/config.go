// Package config loads the serve configuration from the environment.
//
// Variables carry the LANDLEDGER_ prefix. A .env file, when present, is
// loaded first and never overrides variables already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/epoch"
	"github.com/roach88/landledger/internal/ledger"
)

// Prefix is prepended to every variable name.
const Prefix = "LANDLEDGER_"

// Config describes a serving ledger.
type Config struct {
	DBPath string `env:"DB_PATH" envDefault:"landledger.db"`

	Address      ledger.Address `env:"ADDRESS" envDefault:"landledger"`
	Owner        ledger.Address `env:"OWNER"`
	TokenAddress ledger.Address `env:"TOKEN_ADDRESS" envDefault:"lords"`
	LandAddress  ledger.Address `env:"LAND_ADDRESS" envDefault:"deeds"`

	InitialBid      decimal.Decimal `env:"INITIAL_BID" envDefault:"10e18"`
	AuctionDuration time.Duration   `env:"AUCTION_DURATION" envDefault:"24h"`
	EpochsFile      string          `env:"EPOCHS_FILE"`

	HTTPAddr  string     `env:"HTTP_ADDR" envDefault:":8080"`
	RateLimit float64    `env:"RATE_LIMIT" envDefault:"10"`
	RateBurst int        `env:"RATE_BURST" envDefault:"20"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the given .env files (".env" when none are named; a missing
// default file is fine) and parses the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment when
// environ is nil, and validates it.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: Prefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("%sDB_PATH is required", Prefix))
	}
	if c.Owner.IsZero() {
		errs = append(errs, fmt.Errorf("%sOWNER is required", Prefix))
	}
	if c.Address.IsZero() || c.TokenAddress.IsZero() || c.LandAddress.IsZero() {
		errs = append(errs, errors.New("engine, token and land addresses must not be empty"))
	} else if c.Address == c.TokenAddress || c.Address == c.LandAddress || c.TokenAddress == c.LandAddress {
		errs = append(errs, errors.New("engine, token and land addresses must be distinct"))
	}
	if err := ledger.ValidateAmount(c.InitialBid); err != nil {
		errs = append(errs, fmt.Errorf("%sINITIAL_BID: %w", Prefix, err))
	}
	if c.AuctionDuration <= 0 {
		errs = append(errs, fmt.Errorf("%sAUCTION_DURATION must be positive, got %s", Prefix, c.AuctionDuration))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, fmt.Errorf("%sHTTP_ADDR is required", Prefix))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("%sRATE_LIMIT must be positive, got %g", Prefix, c.RateLimit))
	}
	if c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("%sRATE_BURST must be at least 1, got %d", Prefix, c.RateBurst))
	}
	return errors.Join(errs...)
}

// Epochs returns the release policy: the compiled schedule when
// EpochsFile is set, every parcel otherwise.
func (c Config) Epochs() (epoch.Policy, error) {
	if c.EpochsFile == "" {
		return epoch.AllowAll, nil
	}
	sched, err := epoch.LoadFile(c.EpochsFile)
	if err != nil {
		return nil, err
	}
	return sched, nil
}
