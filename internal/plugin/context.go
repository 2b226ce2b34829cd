package plugin

import (
	"context"
	"log/slog"
)

// PluginContext gives a plugin the per-build state it may need while
// producing its contribution.
type PluginContext struct {
	Context context.Context
	Logger  *slog.Logger

	// BuildID uniquely identifies this build.
	BuildID string

	// Options are the values the site registered the plugin with.
	Options map[string]any
}

// NewPluginContext creates a plugin context. A nil logger falls back to slog.Default.
func NewPluginContext(ctx context.Context, logger *slog.Logger, buildID string, options map[string]any) *PluginContext {
	if logger == nil {
		logger = slog.Default()
	}
	if options == nil {
		options = map[string]any{}
	}
	return &PluginContext{Context: ctx, Logger: logger, BuildID: buildID, Options: options}
}

// GetString returns a string option or def when missing or of another type.
func (pc *PluginContext) GetString(key, def string) string {
	if v, ok := pc.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// GetBool returns a boolean option or def when missing or of another type.
func (pc *PluginContext) GetBool(key string, def bool) bool {
	if v, ok := pc.Options[key].(bool); ok {
		return v
	}
	return def
}
