package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/publish"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Build  bool   `help:"Build before uploading"`
	Prefix string `help:"Override publish.prefix"`
}

func (c *PublishCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if err := cfg.Publish.Validate(); err != nil {
		return err
	}
	policy, err := cfg.Publish.RetryPolicy()
	if err != nil {
		return err
	}
	if c.Prefix != "" {
		cfg.Publish.Prefix = c.Prefix
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, cfg, g.Logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if c.Build {
		report, err := s.build(ctx)
		if err != nil {
			return err
		}
		fmt.Println(report.Summary())
	}

	store, err := publish.NewMinioStore(publish.Config{
		Endpoint:  cfg.Publish.Endpoint,
		Region:    cfg.Publish.Region,
		AccessKey: cfg.Publish.AccessKey,
		SecretKey: cfg.Publish.SecretKey,
		Bucket:    cfg.Publish.Bucket,
		Prefix:    cfg.Publish.Prefix,
		UseSSL:    cfg.Publish.UseSSL,
	})
	if err != nil {
		return err
	}
	uploader := publish.Uploader{Store: store, Prefix: cfg.Publish.Prefix, Retry: policy, Logger: g.Logger}
	res, err := uploader.Upload(ctx, s.opts.Dir.Output)
	if err != nil {
		return err
	}
	fmt.Printf("Published %d files (%d bytes) to %s/%s\n", res.Files, res.Bytes, cfg.Publish.Bucket, cfg.Publish.Prefix)
	return nil
}
