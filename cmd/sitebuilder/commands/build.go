package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output string `short:"o" help:"Override the output directory"`
	Clean  bool   `help:"Remove the output directory before building"`
	JSON   bool   `name:"json" help:"Print the build report as JSON"`

	CheckLinksAll bool `name:"check-links-all" help:"Check links in every HTML file of the output directory"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []sessionOption{withOutput(b.Output)}
	if b.Clean {
		opts = append(opts, withClean(true))
	}
	if b.CheckLinksAll {
		opts = append(opts, withFullLinkCheck())
	}
	s, err := newSession(ctx, cfg, g.Logger, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.build(ctx)
	if report != nil {
		if b.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if jerr := enc.Encode(report); jerr != nil {
				return jerr
			}
		} else {
			fmt.Println(report.Summary())
		}
	}
	return err
}
