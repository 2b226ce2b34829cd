package commands

import (
	"fmt"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Variant string `help:"Built-in declaration to write (highlight or plain)" default:"highlight" enum:"highlight,plain"`
	Force   bool   `help:"Overwrite existing configuration file"`
}

func (c *InitCmd) Run(g *Global, root *CLI) error {
	v, err := buildconfig.ParseVariant(c.Variant)
	if err != nil {
		return ferrors.ValidationError(err.Error()).Build()
	}
	if err := config.Init(root.Config, v, c.Force); err != nil {
		return err
	}
	g.Logger.Info("Wrote configuration", logfields.Path(root.Config), logfields.Source(string(v)))
	fmt.Printf("Created %s (%s variant)\n", root.Config, v)
	return nil
}
