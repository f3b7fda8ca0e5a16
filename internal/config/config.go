// Package config provides configuration management for playarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jmylchreest/playarr/internal/urlutil"
	"github.com/jmylchreest/playarr/pkg/hls"
)

// Default configuration values.
const (
	defaultServerPort            = 8383
	defaultServerTimeout         = 30 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultHTTPTimeout           = 15 * time.Second
	defaultRetryAttempts         = 2
	defaultRetryDelay            = 500 * time.Millisecond
	defaultCircuitBreakerThresh  = 5
	defaultCircuitBreakerTimeout = 30 * time.Second
	defaultMaxResponseSize       = 4 * 1024 * 1024
	defaultRefreshInterval       = 300 * time.Second
	defaultRefreshBackoff        = 60 * time.Second
	defaultAdCheckInterval       = 10 * time.Second
	defaultGQLURL                = "https://gql.twitch.tv/gql"
	defaultUsherURL              = "https://usher.ttvnw.net"
	defaultClientID              = "kimne78kx3ncx6brgo4mv6wki5h1ko"
	defaultPlayerType            = "site"
	defaultSupportedCodecs       = "av1,h265,h264"
	defaultUserAgent             = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Platform PlatformConfig `mapstructure:"platform"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Ads      hls.AdMarkers  `mapstructure:"ads"`
}

// ServerConfig holds the local playback gateway configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// PlatformConfig holds the identity presented to the streaming platform.
// Every field is sent explicitly with each request; nothing is cached globally.
type PlatformConfig struct {
	GQLURL          string `mapstructure:"gql_url"`
	UsherURL        string `mapstructure:"usher_url"`
	ClientID        string `mapstructure:"client_id"`
	OAuthToken      string `mapstructure:"oauth_token"`
	DeviceID        string `mapstructure:"device_id"` // empty = random per process
	IntegrityToken  string `mapstructure:"integrity_token"`
	UserAgent       string `mapstructure:"user_agent"`
	PlayerType      string `mapstructure:"player_type"`
	SupportedCodecs string `mapstructure:"supported_codecs"` // comma separated, sent to usher
}

// HTTPConfig holds settings for the resilient HTTP client.
type HTTPConfig struct {
	Timeout                 time.Duration `mapstructure:"timeout"`
	RetryAttempts           int           `mapstructure:"retry_attempts"`
	RetryDelay              time.Duration `mapstructure:"retry_delay"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
	MaxResponseSize         int64         `mapstructure:"max_response_size"`
}

// PlaybackConfig holds orchestrator and rewriter settings.
type PlaybackConfig struct {
	// Quality is the preferred variant: "best", "worst", "audio_only" or a
	// name prefix such as "720p". Empty means best.
	Quality         string        `mapstructure:"quality"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RefreshBackoff  time.Duration `mapstructure:"refresh_backoff"`
	AdCheckInterval time.Duration `mapstructure:"ad_check_interval"`
	RemoveAds       bool          `mapstructure:"remove_ads"`
	// InjectCodecs is added to variant stanzas lacking CODECS. Empty disables injection.
	InjectCodecs string      `mapstructure:"inject_codecs"`
	Proxy        ProxyConfig `mapstructure:"proxy"`
}

// ProxyConfig describes the optional proxy used to re-fetch playlists.
type ProxyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Scheme   string `mapstructure:"scheme"` // http, https, socks5
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Address returns host:port of the proxy.
func (p ProxyConfig) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with PLAYARR_ and use underscores for nesting.
// Example: PLAYARR_PLAYBACK_QUALITY=720p.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/playarr")
		v.AddConfigPath("$HOME/.playarr")
	}

	v.SetEnvPrefix("PLAYARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in defaults without reading a file or the
// environment.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling defaults: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("platform.gql_url", defaultGQLURL)
	v.SetDefault("platform.usher_url", defaultUsherURL)
	v.SetDefault("platform.client_id", defaultClientID)
	v.SetDefault("platform.oauth_token", "")
	v.SetDefault("platform.device_id", "")
	v.SetDefault("platform.integrity_token", "")
	v.SetDefault("platform.user_agent", defaultUserAgent)
	v.SetDefault("platform.player_type", defaultPlayerType)
	v.SetDefault("platform.supported_codecs", defaultSupportedCodecs)

	v.SetDefault("http.timeout", defaultHTTPTimeout)
	v.SetDefault("http.retry_attempts", defaultRetryAttempts)
	v.SetDefault("http.retry_delay", defaultRetryDelay)
	v.SetDefault("http.circuit_breaker_threshold", defaultCircuitBreakerThresh)
	v.SetDefault("http.circuit_breaker_timeout", defaultCircuitBreakerTimeout)
	v.SetDefault("http.max_response_size", defaultMaxResponseSize)

	v.SetDefault("playback.quality", "best")
	v.SetDefault("playback.refresh_interval", defaultRefreshInterval)
	v.SetDefault("playback.refresh_backoff", defaultRefreshBackoff)
	v.SetDefault("playback.ad_check_interval", defaultAdCheckInterval)
	v.SetDefault("playback.remove_ads", true)
	v.SetDefault("playback.inject_codecs", "")
	v.SetDefault("playback.proxy.enabled", false)
	v.SetDefault("playback.proxy.scheme", "http")
	v.SetDefault("playback.proxy.host", "")
	v.SetDefault("playback.proxy.port", 0)
	v.SetDefault("playback.proxy.username", "")
	v.SetDefault("playback.proxy.password", "")

	markers := hls.DefaultAdMarkers()
	v.SetDefault("ads.title_markers", markers.TitleMarkers)
	v.SetDefault("ads.daterange_id_prefixes", markers.DateRangeIDPrefixes)
	v.SetDefault("ads.daterange_classes", markers.DateRangeClasses)
	v.SetDefault("ads.attribute_prefixes", markers.AttributePrefixes)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Platform.GQLURL == "" {
		return fmt.Errorf("platform.gql_url is required")
	}
	if err := urlutil.ValidateHTTPURL(c.Platform.GQLURL); err != nil {
		return fmt.Errorf("platform.gql_url: %w", err)
	}
	if c.Platform.UsherURL == "" {
		return fmt.Errorf("platform.usher_url is required")
	}
	if err := urlutil.ValidateHTTPURL(c.Platform.UsherURL); err != nil {
		return fmt.Errorf("platform.usher_url: %w", err)
	}
	if c.Platform.ClientID == "" {
		return fmt.Errorf("platform.client_id is required")
	}

	if c.HTTP.RetryAttempts < 0 {
		return fmt.Errorf("http.retry_attempts must not be negative")
	}

	if c.Playback.RefreshInterval <= 0 {
		return fmt.Errorf("playback.refresh_interval must be positive")
	}
	if c.Playback.RefreshBackoff <= 0 {
		return fmt.Errorf("playback.refresh_backoff must be positive")
	}

	if p := c.Playback.Proxy; p.Enabled {
		validSchemes := map[string]bool{"http": true, "https": true, "socks5": true}
		if !validSchemes[p.Scheme] {
			return fmt.Errorf("playback.proxy.scheme must be one of: http, https, socks5")
		}
		if p.Host == "" {
			return fmt.Errorf("playback.proxy.host is required when the proxy is enabled")
		}
		if p.Port < 1 || p.Port > maxPort {
			return fmt.Errorf("playback.proxy.port must be between 1 and %d", maxPort)
		}
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
