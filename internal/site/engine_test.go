package site

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/builtin"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

const baseLayout = `<!doctype html>
<html><head><title>{{ .title }}</title><link rel="stylesheet" href="/assets/site.css"></head>
<body>{{ .content }}</body></html>
`

// newSite lays out a small project in a temp dir and makes it the working directory.
func newSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Chdir(root)
	writeFile(t, root, "src/_includes/base.html", baseLayout)
	writeFile(t, root, "src/index.md", "---\ntitle: Home\nlayout: base.html\n---\n# Welcome\n\nRead [the post](/posts/hello/).\n")
	writeFile(t, root, "src/posts/hello.md", "---\ntitle: Hello\nlayout: base\n---\n```go\nfunc main() {}\n```\n")
	writeFile(t, root, "assets/site.css", "body { margin: 0 }\n")
	return root
}

// countingRecorder tallies the calls the engine makes.
type countingRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	outcomes []metrics.BuildOutcomeLabel
	written  int
	stages   map[string]metrics.ResultLabel
}

func (r *countingRecorder) IncBuildOutcome(o metrics.BuildOutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *countingRecorder) AddPagesWritten(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written += n
}

func (r *countingRecorder) IncStageResult(stage string, res metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stages == nil {
		r.stages = map[string]metrics.ResultLabel{}
	}
	r.stages[stage] = res
}

func TestBuildHighlightVariant(t *testing.T) {
	root := newSite(t)
	rec := &countingRecorder{}
	engine := NewEngine(builtin.NewRegistry(), WithRecorder(rec))
	opts := buildconfig.Configure(engine)

	report, err := engine.Build(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome, report.Summary())
	require.NotEmpty(t, report.ID)

	index := readFile(t, root, "_site/index.html")
	require.Contains(t, index, "<title>Home</title>")
	require.Contains(t, index, `<h1 id="welcome">Welcome</h1>`)

	post := readFile(t, root, "_site/posts/hello/index.html")
	require.Contains(t, post, "<title>Hello</title>")
	require.Contains(t, post, "<span style=")

	require.Equal(t, "body { margin: 0 }\n", readFile(t, root, "_site/assets/site.css"))
	require.Equal(t, 2, report.PagesRendered)
	require.Equal(t, 2, report.PagesWritten)
	require.Equal(t, 1, report.PassthroughFiles)
	require.Zero(t, report.BrokenLinks)

	require.Equal(t, []metrics.BuildOutcomeLabel{metrics.OutcomeSuccess}, rec.outcomes)
	require.Equal(t, 2, rec.written)
	require.Equal(t, metrics.ResultSuccess, rec.stages[string(StageLinkCheck)])

	// The includes directory is not content.
	_, err = os.Stat(filepath.Join(root, "_site/_includes"))
	require.True(t, os.IsNotExist(err))
}

func TestBuildPlainVariant(t *testing.T) {
	root := newSite(t)
	engine := NewEngine(builtin.NewRegistry())
	opts := buildconfig.ConfigurePlain(engine)
	require.Empty(t, engine.Plugins())

	report, err := engine.Build(context.Background(), opts)
	require.NoError(t, err)

	post := readFile(t, root, "_site/posts/hello/index.html")
	require.Contains(t, post, `<code class="language-go">`)
	require.NotContains(t, post, "<span style=")

	// The misspelled flag had no effect, so the default (copy) applies.
	require.Equal(t, 1, report.PassthroughFiles)
	require.FileExists(t, filepath.Join(root, "_site/assets/site.css"))
}

func TestBuildPassthroughDisabled(t *testing.T) {
	root := newSite(t)
	engine := NewEngine(builtin.NewRegistry())
	opts := buildconfig.Configure(engine)
	opts.PassthroughFileCopy = false

	report, err := engine.Build(context.Background(), opts)
	require.NoError(t, err)
	require.Zero(t, report.PassthroughFiles)
	require.Equal(t, 1, report.StageCounts[StagePassthrough].Skipped)
	require.NoFileExists(t, filepath.Join(root, "_site/assets/site.css"))

	// The layout links the stylesheet that was not copied.
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Equal(t, 2, report.BrokenLinks)
}

func TestBuildMissingPassthroughIsWarning(t *testing.T) {
	root := newSite(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "assets")))

	engine := NewEngine(builtin.NewRegistry(), WithLinkCheck(false))
	report, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Equal(t, StageErrorWarning, report.StageErrorKinds[StagePassthrough])
	require.Equal(t, 1, report.StageCounts[StageLinkCheck].Skipped)
	require.Equal(t, 2, report.PagesWritten)
}

func TestBuildPassthroughUnderInputIsRerooted(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/img/logo.png", "png")
	require.NoError(t, os.Chmod(filepath.Join(root, "src/img/logo.png"), 0o640))

	engine := NewEngine(builtin.NewRegistry())
	opts := buildconfig.Configure(engine)
	engine.AddPassthroughCopy("src/img")

	report, err := engine.Build(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 2, report.PassthroughFiles)

	info, err := os.Stat(filepath.Join(root, "_site/img/logo.png"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestBuildPassthroughContainingOutputSkipsIt(t *testing.T) {
	root := newSite(t)
	engine := NewEngine(builtin.NewRegistry(), WithLinkCheck(false))
	opts := buildconfig.Configure(engine)
	engine.AddPassthroughCopy(".")

	report, err := engine.Build(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome, report.Summary())
	require.NoDirExists(t, filepath.Join(root, "_site/_site"))
	require.Equal(t, baseLayout, readFile(t, root, "_site/src/_includes/base.html"))
	require.Equal(t, "body { margin: 0 }\n", readFile(t, root, "_site/assets/site.css"))
}

func TestBuildPageOverPassthroughFileFails(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "assets/index.html", "PASSTHROUGH")
	writeFile(t, root, "src/assets.md", "---\npermalink: /assets/index.html\n---\nPAGE\n")

	engine := NewEngine(builtin.NewRegistry())
	report, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryBuild))
	require.Equal(t, OutcomeFailed, report.Outcome)
	require.Equal(t, StageErrorFatal, report.StageErrorKinds[StageWrite])
	require.Equal(t, "PASSTHROUGH", readFile(t, root, "_site/assets/index.html"))
}

func TestBuildUnknownPluginFails(t *testing.T) {
	newSite(t)
	engine := NewEngine(builtin.NewRegistry())
	opts := buildconfig.Configure(engine)
	engine.AddPlugin(buildconfig.PluginRef{Name: "does-not-exist"})

	report, err := engine.Build(context.Background(), opts)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryPlugin))
	require.Equal(t, OutcomeFailed, report.Outcome)
	require.Equal(t, StageErrorFatal, report.StageErrorKinds[StageResolvePlugins])
	require.NotContains(t, report.StageDurations, StageDiscover)
}

func TestBuildBadPluginOptionsFail(t *testing.T) {
	newSite(t)
	engine := NewEngine(builtin.NewRegistry())
	d, err := buildconfig.Decode([]byte("dir: {input: src, output: _site}\nplugins:\n  - name: syntaxhighlight\n    options: {style: no-such-style}\n"))
	require.NoError(t, err)

	_, err = engine.Build(context.Background(), d.Apply(engine))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryPlugin))
}

func TestBuildDuplicateOutputFails(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/a.md", "---\npermalink: /same/\n---\nA\n")
	writeFile(t, root, "src/b.md", "---\npermalink: same/index.html\n---\nB\n")

	engine := NewEngine(builtin.NewRegistry())
	report, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryBuild))
	require.Equal(t, StageErrorFatal, report.StageErrorKinds[StageWrite])
}

func TestBuildPermalinkFalseSkipsWrite(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/draft.md", "---\npermalink: false\n---\nDraft\n")

	engine := NewEngine(builtin.NewRegistry())
	report, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)
	require.Equal(t, 3, report.PagesRendered)
	require.Equal(t, 2, report.PagesWritten)
	require.NoDirExists(t, filepath.Join(root, "_site/draft"))
}

func TestBuildSkipsUnchangedPages(t *testing.T) {
	root := newSite(t)
	engine := NewEngine(builtin.NewRegistry())
	opts := buildconfig.Configure(engine)

	_, err := engine.Build(context.Background(), opts)
	require.NoError(t, err)

	second, err := engine.Build(context.Background(), opts)
	require.NoError(t, err)
	require.Zero(t, second.PagesWritten)
	require.Equal(t, 2, second.PagesUnchanged)

	writeFile(t, root, "src/index.md", "---\ntitle: Home\nlayout: base.html\n---\nChanged\n")
	third, err := engine.Build(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, third.PagesWritten)
	require.Equal(t, 1, third.PagesUnchanged)
}

func TestBuildCleanRemovesStaleOutput(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "_site/stale.html", "old")

	engine := NewEngine(builtin.NewRegistry(), WithClean(true))
	_, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(root, "_site/stale.html"))
}

func TestBuildLayoutChainAndPartials(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/_includes/partials/footer.html", `<footer>{{ slugify .title }}</footer>`)
	writeFile(t, root, "src/_includes/post.html", "---\nlayout: base.html\nsection: Blog\n---\n<article data-section=\"{{ .section }}\">{{ .content }}</article>{{ template \"partials/footer.html\" . }}")
	writeFile(t, root, "src/posts/hello.md", "---\ntitle: Hello World\nlayout: post\n---\nBody\n")

	engine := NewEngine(builtin.NewRegistry())
	_, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)

	post := readFile(t, root, "_site/posts/hello/index.html")
	require.Contains(t, post, "<title>Hello World</title>")
	require.Contains(t, post, `<article data-section="Blog"><p>Body</p>`)
	require.Contains(t, post, "<footer>hello-world</footer>")
}

func TestBuildLayoutCycleFails(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/_includes/a.html", "---\nlayout: b.html\n---\n{{ .content }}")
	writeFile(t, root, "src/_includes/b.html", "---\nlayout: a.html\n---\n{{ .content }}")
	writeFile(t, root, "src/loop.md", "---\nlayout: a.html\n---\nx\n")

	engine := NewEngine(builtin.NewRegistry())
	_, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryRender))
}

func TestBuildHTMLPageWithCollections(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/posts/hello.md", "---\ntitle: Hello\ntags: post\ndate: 2024-01-02\n---\nA\n")
	writeFile(t, root, "src/posts/second.md", "---\ntitle: Second\ntags: [post, news]\ndate: 2024-03-04\n---\nB\n")
	writeFile(t, root, "src/archive.html", `<ul>{{ range .collections.post }}<li><a href="{{ .URL }}">{{ .Title }}</a> {{ date "Jan 2006" .Date }}</li>{{ end }}</ul>`)

	engine := NewEngine(builtin.NewRegistry())
	_, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)

	archive := readFile(t, root, "_site/archive/index.html")
	require.Equal(t, `<ul><li><a href="/posts/hello/">Hello</a> Jan 2024</li><li><a href="/posts/second/">Second</a> Mar 2024</li></ul>`, archive)
}

type fixedDates struct {
	when time.Time
	err  error
}

func (f fixedDates) LastModified(string) (time.Time, error) { return f.when, f.err }

func TestBuildGitLastModifiedDate(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/_includes/dated.html", `{{ date "2006-01-02" .page.Date }}`)
	writeFile(t, root, "src/dated.md", "---\ndate: git Last Modified\nlayout: dated.html\n---\nx\n")

	when := time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC)
	engine := NewEngine(builtin.NewRegistry(), WithDateResolver(fixedDates{when: when}))
	report, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, "2023-07-14", readFile(t, root, "_site/dated/index.html"))

	// A resolver failure falls back to the file time and warns.
	engine = NewEngine(builtin.NewRegistry(), WithDateResolver(fixedDates{err: stderrors.New("no repo")}))
	report, err = engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)
	require.Equal(t, OutcomeWarning, report.Outcome)
}

func TestBuildInvalidDateFails(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/bad.md", "---\ndate: someday\n---\nx\n")

	engine := NewEngine(builtin.NewRegistry())
	_, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryRender))
}

func TestBuildBrokenLinksAreWarnings(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "src/about.md", "[gone](/nowhere/)\n")

	engine := NewEngine(builtin.NewRegistry())
	report, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)
	require.Equal(t, 1, report.BrokenLinks)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.FileExists(t, filepath.Join(root, "_site/about/index.html"))
}

func TestBuildFullLinkCheckScansPassthroughHTML(t *testing.T) {
	root := newSite(t)
	writeFile(t, root, "assets/legacy.html", `<a href="/nowhere/">old</a>`)

	engine := NewEngine(builtin.NewRegistry())
	report, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)
	require.Zero(t, report.BrokenLinks)

	full := NewEngine(builtin.NewRegistry(), WithFullLinkCheck(true))
	report, err = full.Build(context.Background(), buildconfig.Configure(full))
	require.NoError(t, err)
	require.Equal(t, 1, report.BrokenLinks)
	require.Equal(t, OutcomeWarning, report.Outcome)
}

func TestBuildCanceled(t *testing.T) {
	newSite(t)
	engine := NewEngine(builtin.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := engine.Build(ctx, buildconfig.Configure(engine))
	require.Error(t, err)
	require.Equal(t, OutcomeCanceled, report.Outcome)
}

func TestBuildRejectsInvalidOptions(t *testing.T) {
	engine := NewEngine(nil)
	report, err := engine.Build(context.Background(), buildconfig.BuildOptions{})
	require.Error(t, err)
	require.Nil(t, report)
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestEngineRegistrations(t *testing.T) {
	engine := NewEngine(nil)
	engine.AddPassthroughCopy("assets")
	engine.AddPassthroughCopy("assets/")
	engine.AddPassthroughCopy("img")
	require.Equal(t, []string{"assets", "img"}, engine.PassthroughPaths())

	opts := map[string]any{"style": "monokai"}
	engine.AddPlugin(buildconfig.PluginRef{Name: "b", Options: opts})
	engine.AddPlugin(buildconfig.PluginRef{Name: "a"})
	opts["style"] = "mutated"

	plugins := engine.Plugins()
	require.Equal(t, "b", plugins[0].Name)
	require.Equal(t, "a", plugins[1].Name)
	require.Equal(t, "monokai", plugins[0].Options["style"])
}

func TestReportSerializable(t *testing.T) {
	newSite(t)
	engine := NewEngine(builtin.NewRegistry())
	report, err := engine.Build(context.Background(), buildconfig.Configure(engine))
	require.NoError(t, err)

	s := report.Serializable()
	require.Equal(t, report.ID, s.ID)
	require.Equal(t, OutcomeSuccess, s.Outcome)
	require.Len(t, s.Pages, 2)
	require.Contains(t, s.StageCounts, string(StageRender))
	require.NotEmpty(t, s.Pages[0].Fingerprint)
}
