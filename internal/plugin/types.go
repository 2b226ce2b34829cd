package plugin

import "fmt"

// PluginType identifies the category of plugin.
type PluginType string

const (
	// PluginTypeMarkdown extends Markdown parsing and rendering.
	PluginTypeMarkdown PluginType = "markdown"
)

// IsValid returns true if the plugin type is recognized.
func (t PluginType) IsValid() bool {
	switch t {
	case PluginTypeMarkdown:
		return true
	default:
		return false
	}
}

func (t PluginType) String() string {
	return string(t)
}

// PluginCapability describes optional features a plugin may provide.
type PluginCapability string

const (
	CapabilityHighlight PluginCapability = "highlight"
	CapabilityTables    PluginCapability = "tables"
	CapabilityTaskLists PluginCapability = "tasklists"
)

// PluginError represents an error that occurred within a plugin.
type PluginError struct {
	PluginName string
	Operation  string
	Err        error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s failed during %s: %v", e.PluginName, e.Operation, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// NewPluginError creates a new plugin error.
func NewPluginError(pluginName, operation string, err error) *PluginError {
	return &PluginError{PluginName: pluginName, Operation: operation, Err: err}
}
