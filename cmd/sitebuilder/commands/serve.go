package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/server"
	"git.home.luguber.info/inful/sitebuilder/internal/watch"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr         string `help:"Listen address (overrides serve.addr)"`
	NoLiveReload bool   `name:"no-livereload" help:"Do not inject the live reload script"`
	NoWatch      bool   `name:"no-watch" help:"Do not rebuild on file changes"`
}

func (c *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Serve.Addr = c.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, cfg, g.Logger, withPrometheus())
	if err != nil {
		return err
	}
	defer s.Close()

	srv := server.New(server.Config{
		Root:       s.opts.Dir.Output,
		LiveReload: cfg.Serve.LiveReloadEnabled() && !c.NoLiveReload,
		Metrics:    metrics.HTTPHandler(s.registry),
		Logger:     g.Logger,
	})

	rebuild := func(ctx context.Context, reason string) {
		s.recorder.IncRebuildTrigger(reason)
		report, err := s.build(ctx)
		if report == nil {
			g.Logger.Error("Rebuild rejected", logfields.Error(err))
			return
		}
		srv.BuildFinished(report.ID, string(report.Outcome), err)
	}

	// A failed first build still serves whatever output exists.
	rebuild(ctx, "initial")

	rebuilder := watch.NewRebuilder(rebuild, watch.DefaultDebounce)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		rebuilder.Run(gctx)
		return nil
	})

	if !c.NoWatch {
		roots := append([]string{s.opts.Dir.Input}, s.engine.PassthroughPaths()...)
		w, err := watch.NewWatcher(roots, []string{s.opts.Dir.Output}, func(path string) {
			g.Logger.Debug("Change detected", logfields.Path(path))
			rebuilder.Trigger("watch")
		}, g.Logger)
		if err != nil {
			return err
		}
		group.Go(func() error { return w.Run(gctx) })
	}

	if every := cfg.Serve.RebuildInterval(); every > 0 {
		sched, err := watch.NewScheduler()
		if err != nil {
			return err
		}
		if _, err := sched.Every(every, "periodic-rebuild", func() { rebuilder.Request("schedule") }); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				g.Logger.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	group.Go(func() error { return srv.ListenAndServe(gctx, cfg.Serve.Addr) })

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	g.Logger.Info("Server stopped", slog.String("addr", cfg.Serve.Addr))
	return err
}
