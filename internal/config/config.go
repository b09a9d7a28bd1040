// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package config loads TaskVault settings from defaults, a YAML file,
// TASKVAULT_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/taskvault/taskvault/internal/auth"
	"github.com/taskvault/taskvault/internal/logging"
	"github.com/taskvault/taskvault/internal/mail"
)

// EnvPrefix is the prefix of environment variables read by Load.
// A double underscore separates nesting levels: TASKVAULT_JWT__ACCESS__SECRET.
const EnvPrefix = "TASKVAULT_"

// Mail drivers.
const (
	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

// Config is the complete runtime configuration.
type Config struct {
	Environment string         `koanf:"environment"`
	FrontendURL string         `koanf:"frontend_url"`
	Log         LogConfig      `koanf:"log"`
	HTTP        HTTPConfig     `koanf:"http"`
	Metrics     MetricsConfig  `koanf:"metrics"`
	Database    DatabaseConfig `koanf:"database"`
	JWT         JWTConfig      `koanf:"jwt"`
	Mail        MailConfig     `koanf:"mail"`
	CORS        CORSConfig     `koanf:"cors"`
	Tokens      TokensConfig   `koanf:"tokens"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string        `koanf:"addr"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// TokenSettings holds one JWT purpose. Expiration uses the "<digits><s|m|h|d>" format.
type TokenSettings struct {
	Secret     string `koanf:"secret"`
	Expiration string `koanf:"expiration"`
}

// JWTConfig holds the three signing configurations.
type JWTConfig struct {
	Access  TokenSettings `koanf:"access"`
	Refresh TokenSettings `koanf:"refresh"`
	Reset   TokenSettings `koanf:"reset"`
}

// MailConfig selects and configures the reset mailer.
type MailConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	TLS      string `koanf:"tls"`
}

// TokensConfig controls background removal of expired session tokens.
// A zero PruneInterval disables it; `taskvault prune-tokens` still works.
type TokensConfig struct {
	PruneInterval time.Duration `koanf:"prune_interval"`
}

// CORSConfig lists browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

func defaults() map[string]any {
	return map[string]any{
		"environment":              "development",
		"frontend_url":             "http://localhost:3000",
		"log.format":               "json",
		"log.level":                "info",
		"http.addr":                ":5000",
		"http.request_timeout":     "30s",
		"metrics.addr":             "127.0.0.1:9100",
		"database.connect_timeout": "30s",
		"jwt.access.expiration":    "15m",
		"jwt.refresh.expiration":   "7d",
		"jwt.reset.expiration":     "15m",
		"mail.driver":              MailDriverLog,
		"mail.port":                587,
		"mail.tls":                 mail.TLSMandatory,
		"tokens.prune_interval":    "1h",
	}
}

// Load builds a Config. path may be empty. flags may be nil; when set, only
// flags the user changed override lower layers. Flag names map to keys by
// replacing "-" with ".", so --http-addr sets http.addr.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "."), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if len(cfg.CORS.AllowedOrigins) == 0 && cfg.FrontendURL != "" {
		cfg.CORS.AllowedOrigins = []string{cfg.FrontendURL}
	}
	return &cfg, nil
}

// envKey maps TASKVAULT_JWT__ACCESS__SECRET to jwt.access.secret.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks the settings needed to serve the API.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "http.addr").Errorf("http.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	if _, err := c.SignerConfig(); err != nil {
		return err
	}
	if c.JWT.Access.Secret == c.JWT.Refresh.Secret ||
		c.JWT.Access.Secret == c.JWT.Reset.Secret ||
		c.JWT.Refresh.Secret == c.JWT.Reset.Secret {
		return oops.Code("CONFIG_INVALID").
			With("key", "jwt").
			Errorf("jwt access, refresh and reset secrets must differ")
	}

	switch c.Mail.Driver {
	case MailDriverLog:
		if c.IsProduction() {
			return oops.Code("CONFIG_INVALID").
				With("key", "mail.driver").
				Errorf("mail.driver %q writes reset links to the log and is not allowed in production", MailDriverLog)
		}
	case MailDriverSMTP:
		if c.Mail.Host == "" || c.Mail.From == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "mail").
				Errorf("mail.host and mail.from are required for the smtp driver")
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "mail.driver").
			Errorf("mail.driver must be %q or %q, got %q", MailDriverSMTP, MailDriverLog, c.Mail.Driver)
	}
	return nil
}

// ValidateDatabase checks only the database settings. Commands that do not
// serve traffic (migrate, prune-tokens) use it instead of Validate.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url is required (set %sDATABASE__URL)", EnvPrefix)
	}
	return nil
}

// SignerConfig converts the JWT settings, parsing each expiration.
func (c *Config) SignerConfig() (auth.SignerConfig, error) {
	access, err := tokenConfig("jwt.access", c.JWT.Access)
	if err != nil {
		return auth.SignerConfig{}, err
	}
	refresh, err := tokenConfig("jwt.refresh", c.JWT.Refresh)
	if err != nil {
		return auth.SignerConfig{}, err
	}
	reset, err := tokenConfig("jwt.reset", c.JWT.Reset)
	if err != nil {
		return auth.SignerConfig{}, err
	}
	return auth.SignerConfig{Access: access, Refresh: refresh, Reset: reset}, nil
}

func tokenConfig(key string, s TokenSettings) (auth.TokenConfig, error) {
	if s.Secret == "" {
		return auth.TokenConfig{}, oops.Code("CONFIG_INVALID").
			With("key", key+".secret").
			Errorf("%s.secret is required", key)
	}
	lifetime, err := auth.ParseLifetime(s.Expiration)
	if err != nil {
		return auth.TokenConfig{}, oops.Code("CONFIG_INVALID").
			With("key", key+".expiration").
			With("value", s.Expiration).
			Wrap(err)
	}
	return auth.TokenConfig{Secret: []byte(s.Secret), Lifetime: lifetime}, nil
}

// SMTPConfig converts the mail settings for mail.NewSMTPMailer.
func (c *Config) SMTPConfig() mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:        c.Mail.Host,
		Port:        c.Mail.Port,
		Username:    c.Mail.Username,
		Password:    c.Mail.Password,
		From:        c.Mail.From,
		TLS:         c.Mail.TLS,
		FrontendURL: c.FrontendURL,
	}
}
