package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"upgradewatch/pkg/utils"

	"gopkg.in/yaml.v2"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigFiles        = errors.New("no configuration files given")
	ErrAmbariAddressNotSet  = errors.New("ambari address is not set")
	ErrAmbariClusterNotSet  = errors.New("ambari cluster is not set")
	ErrAmbariUsernameNotSet = errors.New("ambari username is not set")
	ErrAmbariPasswordNotSet = errors.New("ambari password is not set and no vault path is configured")
	ErrVaultAddressNotSet   = errors.New("vault address is not set but ambari.password_vault_path is")
	ErrInvalidDuration      = errors.New("invalid duration")
)

// Environment variables that override secrets from the files.
const (
	EnvAmbariPassword = "AMBARI_PASSWORD"
	EnvVaultToken     = "VAULT_TOKEN"
)

type Config struct {
	Ambari     AmbariConfig     `yaml:"ambari"`
	Polling    PollingConfig    `yaml:"polling"`
	Server     ServerConfig     `yaml:"server"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Vault      VaultConfig      `yaml:"vault"`
	Redis      RedisConfig      `yaml:"redis"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Log        LogConfig        `yaml:"log"`
}

type AmbariConfig struct {
	Address           string `yaml:"address"`
	Cluster           string `yaml:"cluster"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	PasswordVaultPath string `yaml:"password_vault_path"` // e.g. secret/ambari/admin
	PasswordVaultKey  string `yaml:"password_vault_key"`  // key inside the secret (default: password)
	SkipSSLValidation bool   `yaml:"skip_ssl_validation"`
	UpgradeID         int64  `yaml:"upgrade_id"` // 0 follows the latest upgrade request
	Timeout           int    `yaml:"timeout"`    // seconds
}

type PollingConfig struct {
	Interval string `yaml:"interval"` // Go duration, e.g. "6s"
}

// Duration parses the interval. ReadConfig has already validated it.
func (p PollingConfig) Duration() time.Duration {
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return 0
	}

	return d
}

type ServerConfig struct {
	BindIP       string            `yaml:"bind_ip"`
	Port         string            `yaml:"port"`
	ReadTimeout  int               `yaml:"read_timeout"`  // seconds
	WriteTimeout int               `yaml:"write_timeout"` // seconds
	IdleTimeout  int               `yaml:"idle_timeout"`  // seconds
	Compression  CompressionConfig `yaml:"compression"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return s.BindIP + ":" + s.Port
}

// CompressionConfig defines HTTP compression settings.
type CompressionConfig struct {
	Enabled      *bool    `yaml:"enabled"`       // default: true
	Types        []string `yaml:"types"`         // gzip, deflate, brotli (default: ["gzip"])
	Level        int      `yaml:"level"`         // 1-9, -1 for default
	MinSize      int      `yaml:"min_size"`      // bytes (default: 1024)
	ContentTypes []string `yaml:"content_types"` // MIME types to compress
}

// IsEnabled reports whether compression is on.
func (c CompressionConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type ResilienceConfig struct {
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32 `yaml:"max_requests"`      // allowed through while half-open
	Interval         string `yaml:"interval"`          // counter reset period while closed
	Timeout          string `yaml:"timeout"`           // open period before half-open
	FailureThreshold uint32 `yaml:"failure_threshold"` // consecutive failures that trip it
}

type VaultConfig struct {
	Address  string `yaml:"address"`
	Token    string `yaml:"token"`
	Insecure bool   `yaml:"skip_ssl_validation"`
	KVv2     *bool  `yaml:"kv_v2"` // default: true
}

// UsesKVv2 reports whether secrets are read through the KV v2 data path.
func (v VaultConfig) UsesKVv2() bool {
	return v.KVv2 == nil || *v.KVv2
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`     // latest wizard state
	Channel  string `yaml:"channel"` // state change notifications
	TTL      string `yaml:"ttl"`
}

// TTLDuration parses the ttl. ReadConfig has already validated it.
func (r RedisConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(r.TTL)
	if err != nil {
		return 0
	}

	return d
}

type AMQPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ReadConfig merges the YAML files in order, later files overriding earlier
// ones, then applies defaults, environment overrides and validation.
func ReadConfig(paths ...string) (Config, error) {
	config, err := loadConfigFromFiles(paths)
	if err != nil {
		return config, err
	}

	setAmbariDefaults(&config)
	setPollingDefaults(&config)
	setServerDefaults(&config)
	setCompressionDefaults(&config)
	setResilienceDefaults(&config)
	setRedisDefaults(&config)
	setAMQPDefaults(&config)
	setLogDefaults(&config)
	applyEnvironment(&config)

	err = validateRequiredFields(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// loadConfigFromFiles merges the files with spruce and decodes the result.
func loadConfigFromFiles(paths []string) (Config, error) {
	var config Config

	if len(paths) == 0 {
		return config, ErrNoConfigFiles
	}

	merged, err := utils.MergeFiles(paths...)
	if err != nil {
		return config, fmt.Errorf("failed to read config files: %w", err)
	}

	b, err := yaml.Marshal(merged)
	if err != nil {
		return config, fmt.Errorf("failed to re-encode merged config: %w", err)
	}

	err = yaml.Unmarshal(b, &config)
	if err != nil {
		return config, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return config, nil
}

func setAmbariDefaults(config *Config) {
	config.Ambari.Address = strings.TrimRight(config.Ambari.Address, "/")

	if config.Ambari.PasswordVaultKey == "" {
		config.Ambari.PasswordVaultKey = "password"
	}

	if config.Ambari.Timeout == 0 {
		config.Ambari.Timeout = 30
	}
}

func setPollingDefaults(config *Config) {
	if config.Polling.Interval == "" {
		config.Polling.Interval = "6s"
	}
}

func setServerDefaults(config *Config) {
	if config.Server.BindIP == "" {
		config.Server.BindIP = "0.0.0.0"
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30
	}

	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 30
	}

	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 120
	}
}

func setCompressionDefaults(config *Config) {
	compression := &config.Server.Compression

	if len(compression.Types) == 0 {
		compression.Types = []string{"gzip"}
	}

	if compression.Level == 0 {
		compression.Level = -1
	}

	if compression.MinSize == 0 {
		compression.MinSize = 1024
	}

	if len(compression.ContentTypes) == 0 {
		compression.ContentTypes = []string{
			"text/html",
			"text/plain",
			"application/json",
			"application/javascript",
		}
	}
}

func setResilienceDefaults(config *Config) {
	limit := &config.Resilience.RateLimit
	if limit.RequestsPerSecond == 0 {
		limit.RequestsPerSecond = 5
	}

	if limit.Burst == 0 {
		limit.Burst = 10
	}

	breaker := &config.Resilience.CircuitBreaker
	if breaker.MaxRequests == 0 {
		breaker.MaxRequests = 1
	}

	if breaker.Interval == "" {
		breaker.Interval = "60s"
	}

	if breaker.Timeout == "" {
		breaker.Timeout = "30s"
	}

	if breaker.FailureThreshold == 0 {
		breaker.FailureThreshold = 5
	}
}

func setRedisDefaults(config *Config) {
	if config.Redis.Key == "" {
		config.Redis.Key = "upgradewatch:" + config.Ambari.Cluster + ":state"
	}

	if config.Redis.Channel == "" {
		config.Redis.Channel = "upgradewatch:" + config.Ambari.Cluster + ":events"
	}

	if config.Redis.TTL == "" {
		config.Redis.TTL = "1h"
	}
}

func setAMQPDefaults(config *Config) {
	if config.AMQP.Exchange == "" {
		config.AMQP.Exchange = "upgradewatch"
	}

	if config.AMQP.RoutingKey == "" {
		config.AMQP.RoutingKey = "upgrade.item.transition"
	}
}

func setLogDefaults(config *Config) {
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
}

// applyEnvironment lets secrets come from the environment instead of files.
func applyEnvironment(config *Config) {
	if password := os.Getenv(EnvAmbariPassword); password != "" {
		config.Ambari.Password = password
	}

	if token := os.Getenv(EnvVaultToken); token != "" {
		config.Vault.Token = token
	}
}

// validateRequiredFields validates that required configuration fields are set.
func validateRequiredFields(config *Config) error {
	if config.Ambari.Address == "" {
		return ErrAmbariAddressNotSet
	}

	if config.Ambari.Cluster == "" {
		return ErrAmbariClusterNotSet
	}

	if config.Ambari.Username == "" {
		return ErrAmbariUsernameNotSet
	}

	if config.Ambari.Password == "" && config.Ambari.PasswordVaultPath == "" {
		return ErrAmbariPasswordNotSet
	}

	if config.Ambari.PasswordVaultPath != "" && config.Vault.Address == "" {
		return ErrVaultAddressNotSet
	}

	for _, raw := range []string{
		config.Polling.Interval,
		config.Resilience.CircuitBreaker.Interval,
		config.Resilience.CircuitBreaker.Timeout,
		config.Redis.TTL,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
		}
	}

	return nil
}

// NeedsVaultPassword reports whether the Ambari password must be read from Vault.
func (c *Config) NeedsVaultPassword() bool {
	return c.Ambari.Password == "" && c.Ambari.PasswordVaultPath != ""
}

// GetAmbariConfig exposes a copy of the Ambari configuration.
func (c *Config) GetAmbariConfig() AmbariConfig {
	return c.Ambari
}

// GetPollingConfig exposes a copy of the polling configuration.
func (c *Config) GetPollingConfig() PollingConfig {
	return c.Polling
}

// GetServerConfig exposes a copy of the server configuration.
func (c *Config) GetServerConfig() ServerConfig {
	return c.Server
}

// GetResilienceConfig exposes a copy of the resilience configuration.
func (c *Config) GetResilienceConfig() ResilienceConfig {
	return c.Resilience
}

// GetVaultConfig exposes a copy of the Vault configuration.
func (c *Config) GetVaultConfig() VaultConfig {
	return c.Vault
}
