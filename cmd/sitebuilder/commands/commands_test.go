package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/state"
)

func testGlobal() *Global {
	return &Global{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestInitThenBuildPlainVariant(t *testing.T) {
	t.Chdir(t.TempDir())
	g := testGlobal()
	root := &CLI{Config: config.DefaultPath}

	require.NoError(t, (&InitCmd{Variant: "plain"}).Run(g, root))
	writeFile(t, "src/index.md", "---\ntitle: Home\n---\n# Home\n")
	writeFile(t, "assets/site.css", "body{}")

	cfg, err := loadConfig(g, root)
	require.NoError(t, err)
	cfg.State.Path = filepath.Join(t.TempDir(), "state.db")

	s, err := newSession(context.Background(), cfg, g.Logger)
	require.NoError(t, err)
	defer s.Close()

	require.Empty(t, s.engine.Plugins())
	require.Equal(t, []string{"assets"}, s.engine.PassthroughPaths())
	require.Equal(t, []string{"passthroughFileCopye"}, s.opts.Unrecognized)

	report, err := s.build(context.Background())
	require.NoError(t, err)
	require.Equal(t, site.OutcomeSuccess, report.Outcome)
	require.FileExists(t, filepath.Join("_site", "index.html"))
	require.FileExists(t, filepath.Join("_site", "assets", "site.css"))

	rec, err := s.store.Get(context.Background(), report.ID)
	require.NoError(t, err)
	require.Equal(t, "success", rec.Outcome)
	require.Equal(t, 1, rec.Pages)
}

func TestSessionOutputOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, "src/index.md", "# Home\n")

	cfg := config.Default()
	cfg.State.Disabled = true
	s, err := newSession(context.Background(), cfg, testGlobal().Logger, withOutput("public"), withClean(true))
	require.NoError(t, err)
	defer s.Close()
	require.Nil(t, s.store)
	require.Equal(t, "public", s.opts.Dir.Output)
	require.Equal(t, []string{"syntaxhighlight"}, pluginNames(s.engine.Plugins()))

	_, err = s.build(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join("public", "index.html"))
}

func TestSessionFullLinkCheck(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, "src/index.md", "# Home\n")
	writeFile(t, "assets/old.html", `<a href="/missing/">gone</a>`)

	cfg := config.Default()
	cfg.State.Disabled = true
	off := false
	cfg.Build.LinkCheck = &off

	s, err := newSession(context.Background(), cfg, testGlobal().Logger, withFullLinkCheck())
	require.NoError(t, err)
	defer s.Close()

	report, err := s.build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.BrokenLinks)
	require.Equal(t, site.OutcomeWarning, report.Outcome)
}

func pluginNames(refs []buildconfig.PluginRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

func TestWriteOptions(t *testing.T) {
	var buf bytes.Buffer
	opts, err := writeOptions(&buf, config.Default(), testGlobal())
	require.NoError(t, err)

	var decoded buildconfig.BuildOptions
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, opts.Dir, decoded.Dir)
	require.Equal(t, []string{"assets"}, decoded.PassthroughPaths)
	require.True(t, decoded.PassthroughFileCopy)
	require.Contains(t, buf.String(), "syntaxhighlight")
}

func TestWriteHistory(t *testing.T) {
	records := []state.Record{{
		ID:        "b1",
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Outcome:   "warning",
		Pages:     3,
		Warnings:  1,
	}}

	var text bytes.Buffer
	require.NoError(t, writeHistory(&text, records, false))
	require.Contains(t, text.String(), "OUTCOME")
	require.Contains(t, text.String(), "b1")
	require.Contains(t, text.String(), "1.5s")

	var js bytes.Buffer
	require.NoError(t, writeHistory(&js, records, true))
	require.Contains(t, js.String(), `"duration_ms": 1500`)

	var empty bytes.Buffer
	require.NoError(t, writeHistory(&empty, nil, false))
	require.Equal(t, "No builds recorded.\n", empty.String())
}

func TestLevelFor(t *testing.T) {
	t.Setenv("SITEBUILDER_LOG_LEVEL", "")
	require.Equal(t, slog.LevelDebug, levelFor(true, "error"))
	require.Equal(t, slog.LevelWarn, levelFor(false, "warn"))
	require.Equal(t, slog.LevelInfo, levelFor(false, ""))

	t.Setenv("SITEBUILDER_LOG_LEVEL", "ERROR")
	require.Equal(t, slog.LevelError, levelFor(false, "debug"))
}
