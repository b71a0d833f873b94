// Package config loads the xconn settings file.
//
// Settings come from a YAML file and may be overridden by XCONN_*
// environment variables. Live keeps the settings current while the
// process runs and supplies the configuration of each connection attempt.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/xconn/xconn-go/pkg/account"
	"github.com/xconn/xconn-go/pkg/connection"
	"github.com/xconn/xconn-go/pkg/resolver"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "XCONN"

// Config is the settings file.
type Config struct {
	Accounts      []AccountConfig `yaml:"accounts"`
	DNS           DNSConfig       `yaml:"dns"`
	ProtocolDebug bool            `yaml:"protocol_debug"`

	// EventLog is the path of the attempt event log. Empty disables it.
	EventLog string `yaml:"event_log"`

	// StateFile persists enabled flags and account errors. Empty keeps
	// them in memory.
	StateFile string `yaml:"state_file"`

	Retry RetryConfig `yaml:"retry"`
}

// AccountConfig configures one account.
type AccountConfig struct {
	// ID is the bare account address, e.g. alice@example.org.
	ID string `yaml:"id"`

	// Host and Port bypass SRV lookup when Host is set.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	Resource string `yaml:"resource"`

	// PasswordEnv names the environment variable holding the password.
	// Passwords are never read from the settings file.
	PasswordEnv string `yaml:"password_env"`

	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports the configured initial enabled flag.
func (a AccountConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// DNSConfig selects the DNS resolution strategy.
type DNSConfig struct {
	// Resolver is "system" or "dnsclient" (default: system).
	Resolver string `yaml:"resolver"`

	// Nameserver is used by the dnsclient strategy; empty reads
	// /etc/resolv.conf.
	Nameserver string `yaml:"nameserver"`

	Timeout time.Duration `yaml:"timeout"`
}

// RetryConfig configures the retry backoff.
type RetryConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`

	// Jitter is a fraction of the delay; negative disables jitter.
	Jitter float64 `yaml:"jitter"`
}

// envOverrides are the settings that may be set from the environment.
// Unset variables leave the file's value alone.
type envOverrides struct {
	Resolver      *string `envconfig:"DNS_RESOLVER"`
	Nameserver    *string `envconfig:"DNS_NAMESERVER"`
	ProtocolDebug *bool   `envconfig:"PROTOCOL_DEBUG"`
	EventLog      *string `envconfig:"EVENT_LOG"`
	StateFile     *string `envconfig:"STATE_FILE"`
}

// LoadError describes a settings file that could not be loaded.
type LoadError struct {
	// File is the path of the settings file.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.File + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Validation errors.
var (
	ErrNoAccounts       = errors.New("no accounts configured")
	ErrDuplicateAccount = errors.New("duplicate account")
	ErrInvalidPort      = errors.New("invalid port")
	ErrInvalidRetry     = errors.New("invalid retry settings")
)

// Load reads, overrides, defaults and validates the settings file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: "invalid settings", Cause: err}
	}
	return cfg, nil
}

// Parse decodes settings from YAML and applies environment overrides and
// defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, &LoadError{Message: "invalid environment override", Cause: err}
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}
	if env.Resolver != nil {
		c.DNS.Resolver = *env.Resolver
	}
	if env.Nameserver != nil {
		c.DNS.Nameserver = *env.Nameserver
	}
	if env.ProtocolDebug != nil {
		c.ProtocolDebug = *env.ProtocolDebug
	}
	if env.EventLog != nil {
		c.EventLog = *env.EventLog
	}
	if env.StateFile != nil {
		c.StateFile = *env.StateFile
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DNS.Resolver == "" {
		c.DNS.Resolver = string(resolver.StrategySystem)
	}
	if c.DNS.Timeout == 0 {
		c.DNS.Timeout = resolver.DefaultTimeout
	}
	if c.Retry.Initial == 0 {
		c.Retry.Initial = connection.InitialBackoff
	}
	if c.Retry.Max == 0 {
		c.Retry.Max = connection.MaxBackoff
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = connection.BackoffMultiplier
	}
	if c.Retry.Jitter == 0 {
		c.Retry.Jitter = connection.JitterFactor
	}
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return ErrNoAccounts
	}

	seen := make(map[account.ID]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		id, err := account.ParseID(a.ID)
		if err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if seen[id] {
			return fmt.Errorf("accounts[%d]: %w: %s", i, ErrDuplicateAccount, id)
		}
		seen[id] = true
		if a.Port < 0 || a.Port > 65535 {
			return fmt.Errorf("accounts[%d]: %w: %d", i, ErrInvalidPort, a.Port)
		}
	}

	if _, err := resolver.ParseStrategy(c.DNS.Resolver); err != nil {
		return fmt.Errorf("dns.resolver: %w", err)
	}
	if c.Retry.Initial < 0 || c.Retry.Max < c.Retry.Initial || c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry: %w", ErrInvalidRetry)
	}
	return nil
}

// AccountIDs returns the parsed account identities in file order.
func (c *Config) AccountIDs() []account.ID {
	ids := make([]account.ID, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		id, err := account.ParseID(a.ID)
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResolverConfig returns the resolver construction settings.
func (c *Config) ResolverConfig() resolver.Config {
	strategy, _ := resolver.ParseStrategy(c.DNS.Resolver)
	return resolver.Config{
		Strategy:   strategy,
		Nameserver: c.DNS.Nameserver,
		Timeout:    c.DNS.Timeout,
	}
}

// Backoff returns the retry backoff settings.
func (c *Config) Backoff() connection.BackoffConfig {
	return connection.BackoffConfig{
		Initial:    c.Retry.Initial,
		Max:        c.Retry.Max,
		Multiplier: c.Retry.Multiplier,
		Jitter:     c.Retry.Jitter,
	}
}
