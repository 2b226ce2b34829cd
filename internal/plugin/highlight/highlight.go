// Package highlight provides the syntax highlighting plugin: fenced code
// blocks are tokenized with chroma at build time.
package highlight

import (
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"

	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// Name is the identifier sites use to register this plugin.
const Name = "syntaxhighlight"

// DefaultStyle is used when the site does not choose a chroma style.
const DefaultStyle = "github"

// Plugin highlights fenced code blocks.
//
// Options:
//
//	style:       chroma style name (default "github")
//	lineNumbers: render line numbers (default false)
//	classes:     emit CSS classes instead of inline styles (default false)
type Plugin struct{}

// New returns the syntax highlighting plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{
		Name:         Name,
		Version:      "v1.0.0",
		Type:         plugin.PluginTypeMarkdown,
		Description:  "Syntax highlighting for fenced code blocks",
		Capabilities: []plugin.PluginCapability{plugin.CapabilityHighlight},
	}
}

func (p *Plugin) Validate(options map[string]any) error {
	for key, value := range options {
		switch key {
		case "style":
			name, ok := value.(string)
			if !ok {
				return fmt.Errorf("option style must be a string, got %T", value)
			}
			if _, known := styles.Registry[name]; !known {
				return fmt.Errorf("unknown highlight style %q", name)
			}
		case "lineNumbers", "classes":
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("option %s must be a boolean, got %T", key, value)
			}
		default:
			return fmt.Errorf("unknown option %q", key)
		}
	}
	return nil
}

func (p *Plugin) Extenders(pctx *plugin.PluginContext) ([]goldmark.Extender, error) {
	if err := p.Validate(pctx.Options); err != nil {
		return nil, err
	}
	style := pctx.GetString("style", DefaultStyle)
	pctx.Logger.Debug("Syntax highlighting enabled", "style", style)
	return []goldmark.Extender{
		highlighting.NewHighlighting(
			highlighting.WithStyle(style),
			highlighting.WithFormatOptions(
				chromahtml.WithLineNumbers(pctx.GetBool("lineNumbers", false)),
				chromahtml.WithClasses(pctx.GetBool("classes", false)),
			),
		),
	}, nil
}
