package site

import (
	"context"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	"git.home.luguber.info/inful/sitebuilder/internal/gitdate"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

const layoutCacheSize = 256

// DateResolver supplies the date of the last commit touching a file.
type DateResolver interface {
	LastModified(path string) (time.Time, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the metrics recorder. Nil keeps the no-op recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClean removes the output directory before every build.
func WithClean(clean bool) Option {
	return func(e *Engine) { e.clean = clean }
}

// WithLinkCheck toggles the link_check stage. It is on by default.
func WithLinkCheck(enabled bool) Option {
	return func(e *Engine) { e.linkCheck = enabled }
}

// WithFullLinkCheck makes link_check scan every HTML file in the output
// directory, including passthrough copies and files left by earlier builds,
// instead of only the pages this build wrote.
func WithFullLinkCheck(enabled bool) Option {
	return func(e *Engine) { e.fullLinkCheck = enabled }
}

// WithDateResolver replaces the git-backed resolver used for "git Last Modified".
func WithDateResolver(r DateResolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.dates = r
		}
	}
}

// WithLogger sets the logger for build progress. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine builds sites. Registrations are made through AddPlugin and
// AddPassthroughCopy, usually by applying a build declaration; Build then
// runs the stages against those registrations and the directory options.
// Builds are serialized; registrations may happen concurrently.
type Engine struct {
	registry  *plugin.Registry
	recorder  metrics.Recorder
	logger    *slog.Logger
	dates     DateResolver
	clean     bool
	linkCheck bool

	fullLinkCheck bool

	mu          sync.Mutex
	plugins     []buildconfig.PluginRef
	passthrough []string

	buildMu sync.Mutex
	layouts *layoutCache
}

var _ buildconfig.Framework = (*Engine)(nil)

// NewEngine returns an engine resolving plugins from registry.
func NewEngine(registry *plugin.Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = plugin.NewRegistry()
	}
	e := &Engine{
		registry:  registry,
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
		dates:     gitdate.NewResolver(),
		linkCheck: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.layouts = newLayoutCache(layoutCacheSize)
	return e
}

// AddPlugin appends a plugin registration. Registration order is render order.
func (e *Engine) AddPlugin(ref buildconfig.PluginRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ref.Options = maps.Clone(ref.Options)
	e.plugins = append(e.plugins, ref)
}

// AddPassthroughCopy registers a path to copy verbatim. Repeats are ignored.
func (e *Engine) AddPassthroughCopy(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = filepath.Clean(path)
	if slices.Contains(e.passthrough, path) {
		return
	}
	e.passthrough = append(e.passthrough, path)
}

// Plugins returns the registered plugins in order.
func (e *Engine) Plugins() []buildconfig.PluginRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]buildconfig.PluginRef, len(e.plugins))
	for i, p := range e.plugins {
		p.Options = maps.Clone(p.Options)
		out[i] = p
	}
	return out
}

// PassthroughPaths returns the registered passthrough paths in order.
func (e *Engine) PassthroughPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.passthrough)
}

// Build runs all stages. The returned report is non-nil whenever the options
// were valid, including when the build failed.
func (e *Engine) Build(ctx context.Context, opts buildconfig.BuildOptions) (*BuildReport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	report := newBuildReport()
	bs := &BuildState{
		Engine:      e,
		Options:     opts.Clone(),
		Report:      report,
		Logger:      e.logger.With(logfields.BuildID(report.ID)),
		Plugins:     e.Plugins(),
		Passthrough: e.PassthroughPaths(),
	}

	bs.Logger.Info("Build started",
		slog.String("input", opts.Dir.Input),
		logfields.Output(opts.Dir.Output),
		logfields.Count(len(bs.Plugins)))

	err := runStages(ctx, bs, defaultStages())
	report.finish()

	e.recorder.ObserveBuildDuration(report.Duration())
	e.recorder.IncBuildOutcome(report.MetricsOutcome())
	e.recorder.AddPagesWritten(report.PagesWritten)
	e.recorder.AddPassthroughFiles(report.PassthroughFiles)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	bs.Logger.Log(ctx, level, "Build finished",
		slog.String("outcome", string(report.Outcome)),
		logfields.DurationMS(float64(report.Duration().Microseconds())/1000),
		slog.Int("pages_written", report.PagesWritten),
		slog.Int("pages_unchanged", report.PagesUnchanged),
		slog.Int("passthrough_files", report.PassthroughFiles),
		slog.Int("warnings", len(report.Warnings)))

	return report, err
}
