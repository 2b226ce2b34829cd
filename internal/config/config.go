// Package config loads sitebuilder.yaml: which build declaration to use
// plus the settings of the serve, history, publish and notify commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// DefaultPath is the config file used when -c is not given.
const DefaultPath = "sitebuilder.yaml"

// Config is the full configuration file.
type Config struct {
	// Variant selects a built-in declaration when Site is absent.
	Variant string `yaml:"variant,omitempty"`
	// Site is an inline build declaration. It takes precedence over Variant.
	Site    *buildconfig.Declaration `yaml:"site,omitempty"`
	Build   BuildConfig              `yaml:"build"`
	Serve   ServeConfig              `yaml:"serve"`
	State   StateConfig              `yaml:"state"`
	Publish PublishConfig            `yaml:"publish"`
	Notify  NotifyConfig             `yaml:"notify"`
	Logging LoggingConfig            `yaml:"logging"`

	// Path is the file the config was read from; empty for built-in defaults.
	Path string `yaml:"-"`
}

type BuildConfig struct {
	Clean     bool  `yaml:"clean"`
	LinkCheck *bool `yaml:"link_check,omitempty"`
}

// LinkCheckEnabled reports whether written pages get their links verified.
func (b BuildConfig) LinkCheckEnabled() bool {
	return b.LinkCheck == nil || *b.LinkCheck
}

type ServeConfig struct {
	Addr         string `yaml:"addr"`
	LiveReload   *bool  `yaml:"live_reload,omitempty"`
	RebuildEvery string `yaml:"rebuild_every,omitempty"`

	rebuildInterval time.Duration
}

func (s ServeConfig) LiveReloadEnabled() bool {
	return s.LiveReload == nil || *s.LiveReload
}

// RebuildInterval is the parsed rebuild_every; zero disables periodic rebuilds.
func (s ServeConfig) RebuildInterval() time.Duration {
	return s.rebuildInterval
}

type StateConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type PublishConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`

	MaxRetries   *int   `yaml:"max_retries,omitempty"`
	RetryBackoff string `yaml:"retry_backoff,omitempty"`
	RetryInitial string `yaml:"retry_initial,omitempty"`
}

// RetryPolicy builds the upload retry policy. Unset fields use retry.DefaultPolicy.
func (p PublishConfig) RetryPolicy() (retry.Policy, error) {
	mode, err := retry.ParseMode(p.RetryBackoff)
	if err != nil {
		return retry.Policy{}, ferrors.ValidationError(err.Error()).WithContext("field", "publish.retry_backoff").Build()
	}
	var initial time.Duration
	if p.RetryInitial != "" {
		initial, err = time.ParseDuration(p.RetryInitial)
		if err != nil || initial <= 0 {
			return retry.Policy{}, ferrors.ValidationError(fmt.Sprintf("invalid publish.retry_initial %q", p.RetryInitial)).Build()
		}
	}
	maxRetries := -1
	if p.MaxRetries != nil {
		maxRetries = *p.MaxRetries
	}
	if maxRetries == 0 {
		return retry.NoRetry(), nil
	}
	return retry.NewPolicy(mode, initial, 0, maxRetries), nil
}

// Validate checks the fields publish needs; it is only called by the publish command.
func (p PublishConfig) Validate() error {
	if p.Endpoint == "" {
		return ferrors.ConfigError("publish.endpoint is required").Build()
	}
	if p.Bucket == "" {
		return ferrors.ConfigError("publish.bucket is required").Build()
	}
	return nil
}

type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Stream  string `yaml:"stream,omitempty"`
}

func (n NotifyConfig) Enabled() bool { return n.NATSURL != "" }

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path, expanding ${VAR} references after loading .env files.
// A missing file yields Default.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", path).Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration").
			WithContext("path", path).Build()
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes, normalizes, defaults and validates a config document.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveDeclaration returns the build declaration the config selects.
func (c *Config) ResolveDeclaration() (buildconfig.Declaration, error) {
	if c.Site != nil {
		return *c.Site, nil
	}
	v, err := buildconfig.ParseVariant(c.Variant)
	if err != nil {
		return buildconfig.Declaration{}, ferrors.ValidationError(err.Error()).Build()
	}
	return v.Declaration()
}

// Configure applies the selected declaration to fw. An inline site:
// section is applied with logger; built-in variants go through
// buildconfig.ConfigureVariant.
func (c *Config) Configure(fw buildconfig.Framework, logger *slog.Logger) (buildconfig.BuildOptions, error) {
	if c.Site != nil {
		return c.Site.ApplyWithLogger(fw, logger), nil
	}
	v, err := buildconfig.ParseVariant(c.Variant)
	if err != nil {
		return buildconfig.BuildOptions{}, ferrors.ValidationError(err.Error()).Build()
	}
	return buildconfig.ConfigureVariant(fw, v)
}

// Source names where the declaration came from, for log messages.
func (c *Config) Source() string {
	if c.Site != nil && c.Path != "" {
		return c.Path
	}
	return "builtin:" + c.Variant
}
