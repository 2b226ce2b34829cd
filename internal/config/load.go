package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// envFiles are loaded in order. godotenv never overrides a variable that is
// already set, so the process environment wins over .env.local, which wins
// over .env.
var envFiles = []string{".env.local", ".env"}

func loadEnvFiles() error {
	for _, name := range envFiles {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load env file").
				WithContext("path", name).Build()
		}
	}
	return nil
}

const (
	defaultAddr      = "127.0.0.1:8080"
	defaultStatePath = ".sitebuilder/state.db"
	defaultSubject   = "sitebuilder.builds"
	defaultStream    = "SITEBUILDER"
	defaultRegion    = "us-east-1"
	minRebuildEvery  = time.Second
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

func normalize(cfg *Config) {
	cfg.Variant = strings.ToLower(strings.TrimSpace(cfg.Variant))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Serve.RebuildEvery = strings.TrimSpace(cfg.Serve.RebuildEvery)
	cfg.Publish.Prefix = strings.Trim(cfg.Publish.Prefix, "/")
}

func applyDefaults(cfg *Config) {
	if cfg.Variant == "" {
		cfg.Variant = string(buildconfig.VariantHighlight)
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = defaultAddr
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaultStatePath
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultSubject
	}
	if cfg.Notify.Stream == "" {
		cfg.Notify.Stream = defaultStream
	}
	if cfg.Publish.Region == "" {
		cfg.Publish.Region = defaultRegion
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.Site == nil {
		if _, err := buildconfig.ParseVariant(cfg.Variant); err != nil {
			return ferrors.ValidationError(err.Error()).WithContext("field", "variant").Build()
		}
	}
	if !slices.Contains(logLevels, cfg.Logging.Level) {
		return ferrors.ValidationError(fmt.Sprintf("unknown log level %q", cfg.Logging.Level)).
			WithContext("field", "logging.level").Build()
	}
	if !slices.Contains(logFormats, cfg.Logging.Format) {
		return ferrors.ValidationError(fmt.Sprintf("unknown log format %q", cfg.Logging.Format)).
			WithContext("field", "logging.format").Build()
	}
	if cfg.Serve.RebuildEvery != "" {
		d, err := time.ParseDuration(cfg.Serve.RebuildEvery)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid serve.rebuild_every").Build()
		}
		if d < minRebuildEvery {
			return ferrors.ValidationError(fmt.Sprintf("serve.rebuild_every must be at least %s", minRebuildEvery)).Build()
		}
		cfg.Serve.rebuildInterval = d
	}
	if _, err := cfg.Publish.RetryPolicy(); err != nil {
		return err
	}
	return nil
}
