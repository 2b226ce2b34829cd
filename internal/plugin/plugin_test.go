package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPluginMetadataValidation tests plugin metadata validation.
func TestPluginMetadataValidation(t *testing.T) {
	tests := []struct {
		name      string
		metadata  PluginMetadata
		expectErr bool
	}{
		{"valid metadata", PluginMetadata{Name: "p", Version: "v1.0.0", Type: PluginTypeMarkdown}, false},
		{"missing name", PluginMetadata{Version: "v1.0.0", Type: PluginTypeMarkdown}, true},
		{"missing version", PluginMetadata{Name: "p", Type: PluginTypeMarkdown}, true},
		{"invalid version", PluginMetadata{Name: "p", Version: "1.0", Type: PluginTypeMarkdown}, true},
		{"invalid type", PluginMetadata{Name: "p", Version: "v1.0.0", Type: PluginType("theme")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.metadata.Validate()
			if tt.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPluginMetadataCapabilities(t *testing.T) {
	m := PluginMetadata{Capabilities: []PluginCapability{CapabilityHighlight}}
	require.True(t, m.HasCapability(CapabilityHighlight))
	require.False(t, m.HasCapability(CapabilityTables))
}

func TestPluginContextOptions(t *testing.T) {
	pctx := NewPluginContext(context.Background(), nil, "b1", map[string]any{
		"style":       "dracula",
		"lineNumbers": true,
		"count":       3,
	})

	require.NotNil(t, pctx.Logger)
	require.Equal(t, "dracula", pctx.GetString("style", "github"))
	require.Equal(t, "github", pctx.GetString("missing", "github"))
	require.Equal(t, "github", pctx.GetString("count", "github"))
	require.True(t, pctx.GetBool("lineNumbers", false))
	require.True(t, pctx.GetBool("missing", true))

	empty := NewPluginContext(context.Background(), nil, "b2", nil)
	require.NotNil(t, empty.Options)
}

func TestPluginError(t *testing.T) {
	cause := errors.New("unknown style")
	err := NewPluginError("syntaxhighlight", "extenders", cause)
	require.EqualError(t, err, "plugin syntaxhighlight failed during extenders: unknown style")
	require.ErrorIs(t, err, cause)
}
