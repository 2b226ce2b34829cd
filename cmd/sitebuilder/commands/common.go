// Package commands implements the sitebuilder subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// Global is shared state handed to every command.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sitebuilder.yaml" env:"SITEBUILDER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the site once"`
	Serve   ServeCmd   `cmd:"" help:"Build, serve with live reload and rebuild on changes"`
	Init    InitCmd    `cmd:"" help:"Write a configuration file for a built-in variant"`
	History HistoryCmd `cmd:"" help:"Show recent builds"`
	Publish PublishCmd `cmd:"" help:"Upload the output directory to object storage"`
	Options OptionsCmd `cmd:"" help:"Print the resolved build options"`
}

// AfterApply runs after flag parsing; sets up logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = newLogger(os.Stderr, levelFor(c.Verbose, ""), "text")
	slog.SetDefault(g.Logger)
	return nil
}

// levelFor picks the log level. -v wins, then SITEBUILDER_LOG_LEVEL, then
// the config file.
func levelFor(verbose bool, configured string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	raw := os.Getenv("SITEBUILDER_LOG_LEVEL")
	if raw == "" {
		raw = configured
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig reads the config file and reapplies its logging section.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = newLogger(os.Stderr, levelFor(root.Verbose, cfg.Logging.Level), cfg.Logging.Format)
	slog.SetDefault(g.Logger)
	if cfg.Path == "" {
		g.Logger.Debug("No configuration file, using built-in defaults", slog.String("config", root.Config))
	}
	return cfg, nil
}
