// Package plugin provides the plugin system the site generator resolves
// registered plugin references against. Plugins contribute Markdown
// extensions to the renderer; they are applied in registration order.
package plugin

import (
	"fmt"

	"github.com/yuin/goldmark"
	"golang.org/x/mod/semver"
)

// Plugin represents a generator plugin with metadata and option validation.
type Plugin interface {
	// Metadata returns the plugin's metadata (name, version, type).
	Metadata() PluginMetadata

	// Validate checks the options a site passes when registering the plugin.
	Validate(options map[string]any) error
}

// MarkdownPlugin extends the Markdown renderer.
type MarkdownPlugin interface {
	Plugin

	// Extenders returns the goldmark extensions to install for this build.
	Extenders(pctx *PluginContext) ([]goldmark.Extender, error)
}

// PluginMetadata describes a plugin's identity and capabilities.
type PluginMetadata struct {
	// Name is the unique plugin identifier (e.g., "syntaxhighlight").
	Name string

	// Version is the semantic version (e.g., "v1.0.0").
	Version string

	Type        PluginType
	Description string

	// Capabilities lists optional features this plugin provides.
	Capabilities []PluginCapability
}

// String returns a human-readable representation of the plugin metadata.
func (m PluginMetadata) String() string {
	return fmt.Sprintf("%s@%s (%s)", m.Name, m.Version, m.Type)
}

// Validate checks if the plugin metadata is valid.
func (m PluginMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if !semver.IsValid(m.Version) {
		return fmt.Errorf("plugin version %q is not a semantic version", m.Version)
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid plugin type: %s", m.Type)
	}
	return nil
}

// HasCapability reports whether the plugin declares c.
func (m PluginMetadata) HasCapability(c PluginCapability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// BasePlugin provides a permissive Validate. Plugins embed it when they take no options.
type BasePlugin struct{}

// Validate accepts any options.
func (BasePlugin) Validate(map[string]any) error {
	return nil
}
