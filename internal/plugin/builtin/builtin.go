// Package builtin assembles the registry of plugins shipped with sitebuilder.
package builtin

import (
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/gfm"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/highlight"
)

// NewRegistry returns a fresh registry holding every built-in plugin.
func NewRegistry() *plugin.Registry {
	return plugin.NewRegistry().MustRegister(
		highlight.New(),
		gfm.New(),
	)
}
