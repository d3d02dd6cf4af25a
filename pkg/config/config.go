// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package config loads gateway configuration from environment variables and
// the JSON artefacts shipped alongside the binary.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

// Config is the fully resolved gateway configuration.
type Config struct {
	ListenAddress string

	Redis    Redis
	Upstream Upstream
	Bank     Bank
	Menus    Menus
	Crypto   Crypto

	MetricsEnabled bool
}

// Redis holds the session store connection settings.
type Redis struct {
	Host          string
	Port          int
	Password      string
	DB            int
	TTL           time.Duration
	SessionPrefix string
	ReadyTimeout  time.Duration
}

// Addr returns the host:port dial address.
func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Upstream holds the core banking API settings.
type Upstream struct {
	BaseURL        string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	EndpointsFile  string
}

// Bank holds the institution identity sent on every upstream request.
type Bank struct {
	ID        string
	Name      string
	Shortcode string
	Country   string
	TrxSource string
	Timezone  string

	location *time.Location
}

// Location returns the resolved timezone for session timestamps.
func (b Bank) Location() *time.Location {
	if b.location == nil {
		return time.UTC
	}
	return b.location
}

// Menus holds the paths of the declarative configuration artefacts.
type Menus struct {
	Dir       string
	RulesFile string
}

// Crypto holds the PIN transport decryption settings.
type Crypto struct {
	EncryptionKey string
	IVKey         string
	// PinDecryptionDisabled passes wire PINs through untouched. Reserved
	// for test scaffolding and deployments where an upstream component
	// already decrypts.
	PinDecryptionDisabled bool
}

// Environment knob names. Each has a viper default below; the environment
// always wins.
const (
	envListenAddress  = "LISTEN_ADDRESS"
	envRedisHost      = "REDIS_HOST"
	envRedisPort      = "REDIS_PORT"
	envRedisPassword  = "REDIS_PASSWORD"
	envRedisDB        = "REDIS_DB"
	envRedisTTL       = "REDIS_TTL"
	envRedisPrefix    = "REDIS_SESSION_PREFIX"
	envRedisReady     = "REDIS_READY_TIMEOUT"
	envUpstreamURL    = "ELMA_API_URL"
	envAPITimeout     = "API_TIMEOUT"
	envConnectTimeout = "API_CONNECT_TIMEOUT"
	envEndpointsFile  = "API_ENDPOINTS_FILE"
	envBankID         = "BANK_ID"
	envBankName       = "BANK_NAME"
	envShortcode      = "ELMA_SHORTCODE"
	envCountry        = "COUNTRY"
	envTrxSource      = "TRX_SOURCE"
	envTimezone       = "TIMEZONE"
	envMenuDir        = "MENU_DIR"
	envRulesFile      = "BUSINESS_RULES_FILE"
	envEncryptionKey  = "ENCRYPTION_KEY"
	envIVKey          = "IV_KEY"
	envPinPlain       = "PIN_DECRYPTION_DISABLED"
	envMetricsEnabled = "METRICS_ENABLED"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault(envListenAddress, ":8080")
	v.SetDefault(envRedisHost, "localhost")
	v.SetDefault(envRedisPort, 6379)
	v.SetDefault(envRedisPassword, "")
	v.SetDefault(envRedisDB, 0)
	v.SetDefault(envRedisTTL, 300)
	v.SetDefault(envRedisPrefix, "ussd:session")
	v.SetDefault(envRedisReady, 10)
	v.SetDefault(envUpstreamURL, "")
	v.SetDefault(envAPITimeout, 25000)
	v.SetDefault(envConnectTimeout, 15000)
	v.SetDefault(envEndpointsFile, "config/api-endpoints.json")
	v.SetDefault(envBankID, "")
	v.SetDefault(envBankName, "")
	v.SetDefault(envShortcode, "527")
	v.SetDefault(envCountry, "KE")
	v.SetDefault(envTrxSource, "USSD")
	v.SetDefault(envTimezone, "Africa/Nairobi")
	v.SetDefault(envMenuDir, "config/menus")
	v.SetDefault(envRulesFile, "config/business-rules.json")
	v.SetDefault(envEncryptionKey, "")
	v.SetDefault(envIVKey, "")
	v.SetDefault(envPinPlain, false)
	v.SetDefault(envMetricsEnabled, true)
}

// Load resolves configuration from the process environment using the
// global viper instance.
func Load() (*Config, error) {
	return FromViper(viper.GetViper())
}

// FromViper resolves configuration from the given viper instance. Exposed
// so tests can inject values without mutating the process environment.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		ListenAddress: v.GetString(envListenAddress),
		Redis: Redis{
			Host:          v.GetString(envRedisHost),
			Port:          v.GetInt(envRedisPort),
			Password:      v.GetString(envRedisPassword),
			DB:            v.GetInt(envRedisDB),
			TTL:           time.Duration(v.GetInt(envRedisTTL)) * time.Second,
			SessionPrefix: v.GetString(envRedisPrefix),
			ReadyTimeout:  time.Duration(v.GetInt(envRedisReady)) * time.Second,
		},
		Upstream: Upstream{
			BaseURL:        v.GetString(envUpstreamURL),
			Timeout:        time.Duration(v.GetInt(envAPITimeout)) * time.Millisecond,
			ConnectTimeout: time.Duration(v.GetInt(envConnectTimeout)) * time.Millisecond,
			EndpointsFile:  v.GetString(envEndpointsFile),
		},
		Bank: Bank{
			ID:        v.GetString(envBankID),
			Name:      v.GetString(envBankName),
			Shortcode: v.GetString(envShortcode),
			Country:   v.GetString(envCountry),
			TrxSource: v.GetString(envTrxSource),
			Timezone:  v.GetString(envTimezone),
		},
		Menus: Menus{
			Dir:       v.GetString(envMenuDir),
			RulesFile: v.GetString(envRulesFile),
		},
		Crypto: Crypto{
			EncryptionKey:         v.GetString(envEncryptionKey),
			IVKey:                 v.GetString(envIVKey),
			PinDecryptionDisabled: v.GetBool(envPinPlain),
		},
		MetricsEnabled: v.GetBool(envMetricsEnabled),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Bank.Timezone)
	if err != nil {
		logger.Warnf("Unknown timezone %q, falling back to UTC", cfg.Bank.Timezone)
		loc = time.UTC
	}
	cfg.Bank.location = loc

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.TTL <= 0 {
		return fmt.Errorf("REDIS_TTL must be positive, got %s", c.Redis.TTL)
	}
	if c.Upstream.Timeout <= 0 || c.Upstream.ConnectTimeout <= 0 {
		return fmt.Errorf("API timeouts must be positive")
	}
	if c.Upstream.ConnectTimeout > c.Upstream.Timeout {
		return fmt.Errorf("API_CONNECT_TIMEOUT (%s) exceeds API_TIMEOUT (%s)",
			c.Upstream.ConnectTimeout, c.Upstream.Timeout)
	}
	return nil
}
