// Package config loads gateway settings from the environment, an optional
// config file and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/tollgate/internal/tron"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	LedgerTronGrid = "trongrid"
	LedgerJSONRPC  = "jsonrpc"

	StoreMemory = "memory"
	StoreRedis  = "redis"

	EventsNone   = "none"
	EventsMemory = "memory"
	EventsRedis  = "redis"

	// DevSessionSecret is used when SESSION_SECRET is unset
	DevSessionSecret = "dev"
)

// Config is the resolved gateway configuration
type Config struct {
	Port string

	TronGridURL     string
	TronGridAPIKey  string
	JSONRPCURL      string
	ContractAddress string
	LedgerBackend   string
	LedgerTimeout   time.Duration

	IPFSGateway     string
	MetadataTimeout time.Duration

	AllowedOrigins []string

	SessionSecret    string
	SignatureSchemes []string
	AppTag           string
	NonceTTL         time.Duration
	SessionTTL       time.Duration

	Store         string
	RedisURL      string
	SweepInterval time.Duration

	Events string

	LogLevel string
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}

// UsesDevSecret reports whether tokens are minted with the built-in secret
func (c *Config) UsesDevSecret() bool {
	return c.SessionSecret == DevSessionSecret
}

// keys are the lowercased environment variable names
var defaults = map[string]any{
	"port":              "8787",
	"trongrid_url":      "",
	"trongrid_api_key":  "",
	"jsonrpc_url":       "",
	"contract_address":  "",
	"ledger_backend":    LedgerTronGrid,
	"ledger_timeout":    10 * time.Second,
	"pinata_gateway":    "https://gateway.pinata.cloud",
	"metadata_timeout":  10 * time.Second,
	"allowed_origin":    "",
	"session_secret":    DevSessionSecret,
	"signature_schemes": "tron-v2,tron-v1",
	"app_tag":           "Strinz login",
	"nonce_ttl":         5 * time.Minute,
	"session_ttl":       30 * time.Minute,
	"store":             StoreMemory,
	"redis_url":         "redis://localhost:6379/0",
	"sweep_interval":    time.Minute,
	"events":            EventsMemory,
	"log_level":         "info",
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"port":      "port",
	"store":     "store",
	"log-level": "log_level",
}

// Load resolves the configuration. Precedence, highest first: flags that were
// set explicitly, environment variables, the config file, defaults. file may
// be empty and flags may be nil.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Port:             v.GetString("port"),
		TronGridURL:      strings.TrimRight(v.GetString("trongrid_url"), "/"),
		TronGridAPIKey:   v.GetString("trongrid_api_key"),
		JSONRPCURL:       v.GetString("jsonrpc_url"),
		ContractAddress:  strings.TrimSpace(v.GetString("contract_address")),
		LedgerBackend:    strings.ToLower(v.GetString("ledger_backend")),
		LedgerTimeout:    v.GetDuration("ledger_timeout"),
		IPFSGateway:      v.GetString("pinata_gateway"),
		MetadataTimeout:  v.GetDuration("metadata_timeout"),
		AllowedOrigins:   splitList(v.GetString("allowed_origin")),
		SessionSecret:    v.GetString("session_secret"),
		SignatureSchemes: splitList(v.GetString("signature_schemes")),
		AppTag:           v.GetString("app_tag"),
		NonceTTL:         v.GetDuration("nonce_ttl"),
		SessionTTL:       v.GetDuration("session_ttl"),
		Store:            strings.ToLower(v.GetString("store")),
		RedisURL:         v.GetString("redis_url"),
		SweepInterval:    v.GetDuration("sweep_interval"),
		Events:           strings.ToLower(v.GetString("events")),
		LogLevel:         v.GetString("log_level"),
	}
	if cfg.JSONRPCURL == "" && cfg.TronGridURL != "" {
		cfg.JSONRPCURL = cfg.TronGridURL + "/jsonrpc"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and enumerations
func (c *Config) Validate() error {
	var errs []error

	if c.TronGridURL == "" {
		errs = append(errs, errors.New("TRONGRID_URL is required"))
	}
	if c.ContractAddress == "" {
		errs = append(errs, errors.New("CONTRACT_ADDRESS is required"))
	} else if !tron.ValidAddress(c.ContractAddress) {
		errs = append(errs, fmt.Errorf("CONTRACT_ADDRESS %q is not a TRON address", c.ContractAddress))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET must not be empty"))
	}
	if len(c.SignatureSchemes) == 0 {
		errs = append(errs, errors.New("SIGNATURE_SCHEMES must name at least one scheme"))
	}

	switch c.LedgerBackend {
	case LedgerTronGrid, LedgerJSONRPC:
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND %q must be %s or %s", c.LedgerBackend, LedgerTronGrid, LedgerJSONRPC))
	}
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("STORE %q must be %s or %s", c.Store, StoreMemory, StoreRedis))
	}
	switch c.Events {
	case EventsNone, EventsMemory, EventsRedis:
	default:
		errs = append(errs, fmt.Errorf("EVENTS %q must be %s, %s or %s", c.Events, EventsNone, EventsMemory, EventsRedis))
	}

	for name, d := range map[string]time.Duration{
		"LEDGER_TIMEOUT":   c.LedgerTimeout,
		"METADATA_TIMEOUT": c.MetadataTimeout,
		"NONCE_TTL":        c.NonceTTL,
		"SESSION_TTL":      c.SessionTTL,
		"SWEEP_INTERVAL":   c.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	return errors.Join(errs...)
}

// NeedsRedis reports whether any component is backed by Redis
func (c *Config) NeedsRedis() bool {
	return c.Store == StoreRedis || c.Events == EventsRedis
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
