package commands

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/builtin"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/state"
)

// session is a configured engine plus the history store and notifier
// every build reports to.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *site.Engine
	opts     buildconfig.BuildOptions
	recorder metrics.Recorder
	registry *prometheus.Registry
	store    *state.Store
	notifier notify.Publisher
}

type sessionOption func(*sessionSettings)

type sessionSettings struct {
	prometheus bool
	output     string
	clean      *bool
	allLinks   bool
}

func withPrometheus() sessionOption {
	return func(s *sessionSettings) { s.prometheus = true }
}

func withOutput(dir string) sessionOption {
	return func(s *sessionSettings) { s.output = dir }
}

func withClean(clean bool) sessionOption {
	return func(s *sessionSettings) { s.clean = &clean }
}

func withFullLinkCheck() sessionOption {
	return func(s *sessionSettings) { s.allLinks = true }
}

func newSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...sessionOption) (*session, error) {
	var settings sessionSettings
	for _, o := range opts {
		o(&settings)
	}

	s := &session{cfg: cfg, logger: logger, recorder: metrics.NoopRecorder{}}
	if settings.prometheus {
		s.registry = prometheus.NewRegistry()
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
	}

	clean := cfg.Build.Clean
	if settings.clean != nil {
		clean = *settings.clean
	}
	s.engine = site.NewEngine(builtin.NewRegistry(),
		site.WithRecorder(s.recorder),
		site.WithClean(clean),
		site.WithLinkCheck(cfg.Build.LinkCheckEnabled() || settings.allLinks),
		site.WithFullLinkCheck(settings.allLinks),
		site.WithLogger(logger),
	)

	buildOpts, err := cfg.Configure(s.engine, logger)
	if err != nil {
		return nil, err
	}
	if settings.output != "" {
		buildOpts.Dir.Output = settings.output
	}
	if err := buildOpts.Validate(); err != nil {
		return nil, err
	}
	s.opts = buildOpts
	logger.Debug("Configured build", logfields.Source(cfg.Source()),
		logfields.Count(len(buildOpts.Plugins)), slog.Any("passthrough", buildOpts.PassthroughPaths))

	if !cfg.State.Disabled {
		store, err := state.Open(cfg.State.Path)
		if err != nil {
			logger.Warn("Build history disabled", logfields.Path(cfg.State.Path), logfields.Error(err))
		} else {
			s.store = store
		}
	}

	if cfg.Notify.Enabled() {
		pub, err := notify.NewNATSPublisher(ctx, cfg.Notify.NATSURL, cfg.Notify.Subject, cfg.Notify.Stream)
		if err != nil {
			logger.Warn("Build notifications disabled", logfields.URL(cfg.Notify.NATSURL), logfields.Error(err))
		} else {
			s.notifier = pub
		}
	}
	return s, nil
}

// build runs one build, records it and sends the notification.
func (s *session) build(ctx context.Context) (*site.BuildReport, error) {
	report, err := s.engine.Build(ctx, s.opts)
	if report == nil {
		return nil, err
	}
	if s.store != nil {
		if rerr := s.store.Record(ctx, state.RecordFromReport(report)); rerr != nil {
			s.logger.Warn("Failed to record build", logfields.BuildID(report.ID), logfields.Error(rerr))
		}
	}
	notify.Notify(ctx, s.notifier, report, s.logger)
	return report, err
}

func (s *session) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.notifier != nil {
		_ = s.notifier.Close()
	}
}
