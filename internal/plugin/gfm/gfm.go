// Package gfm provides GitHub Flavored Markdown extensions as a plugin.
package gfm

import (
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

const Name = "gfm"

// features maps option keys to the goldmark extension they toggle. All default on.
var features = []struct {
	key string
	ext goldmark.Extender
}{
	{"table", extension.Table},
	{"strikethrough", extension.Strikethrough},
	{"linkify", extension.Linkify},
	{"tasklist", extension.TaskList},
}

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{
		Name:         Name,
		Version:      "v1.0.0",
		Type:         plugin.PluginTypeMarkdown,
		Description:  "GitHub Flavored Markdown: tables, strikethrough, autolinks, task lists",
		Capabilities: []plugin.PluginCapability{plugin.CapabilityTables, plugin.CapabilityTaskLists},
	}
}

func (p *Plugin) Validate(options map[string]any) error {
outer:
	for key, value := range options {
		for _, f := range features {
			if f.key == key {
				if _, ok := value.(bool); !ok {
					return fmt.Errorf("option %s must be a boolean, got %T", key, value)
				}
				continue outer
			}
		}
		return fmt.Errorf("unknown option %q", key)
	}
	return nil
}

func (p *Plugin) Extenders(pctx *plugin.PluginContext) ([]goldmark.Extender, error) {
	if err := p.Validate(pctx.Options); err != nil {
		return nil, err
	}
	var exts []goldmark.Extender
	for _, f := range features {
		if pctx.GetBool(f.key, true) {
			exts = append(exts, f.ext)
		}
	}
	return exts, nil
}
