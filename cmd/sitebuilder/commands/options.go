package commands

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/builtin"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// OptionsCmd implements the 'options' command.
type OptionsCmd struct{}

func (c *OptionsCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	_, err = writeOptions(os.Stdout, cfg, g)
	return err
}

// writeOptions configures a throwaway engine and prints what it was given.
func writeOptions(w io.Writer, cfg *config.Config, g *Global) (buildconfig.BuildOptions, error) {
	engine := site.NewEngine(builtin.NewRegistry(), site.WithLogger(g.Logger))
	opts, err := cfg.Configure(engine, g.Logger)
	if err != nil {
		return buildconfig.BuildOptions{}, err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(opts); err != nil {
		return opts, err
	}
	return opts, enc.Close()
}
