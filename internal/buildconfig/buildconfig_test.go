package buildconfig

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// fakeFramework records registrations in the order they arrive.
type fakeFramework struct {
	calls       []string
	plugins     []PluginRef
	passthrough []string
}

func (f *fakeFramework) AddPlugin(ref PluginRef) {
	f.calls = append(f.calls, "plugin:"+ref.Name)
	f.plugins = append(f.plugins, ref)
}

func (f *fakeFramework) AddPassthroughCopy(path string) {
	f.calls = append(f.calls, "passthrough:"+path)
	f.passthrough = append(f.passthrough, path)
}

func TestConfigureHighlight(t *testing.T) {
	fw := &fakeFramework{}
	opts := ConfigureHighlight(fw)

	require.Equal(t, Dir{Input: "src", Output: "_site", Includes: "_includes"}, opts.Dir)
	require.Equal(t, []string{"assets"}, opts.PassthroughPaths)
	require.Len(t, opts.Plugins, 1)
	require.Equal(t, "syntaxhighlight", opts.Plugins[0].Name)
	require.True(t, opts.PassthroughFileCopy)
	require.Empty(t, opts.Unrecognized)

	require.Equal(t, []string{"plugin:syntaxhighlight", "passthrough:assets"}, fw.calls)
}

func TestConfigureDefaultsToHighlight(t *testing.T) {
	require.Equal(t, ConfigureHighlight(&fakeFramework{}), Configure(&fakeFramework{}))
}

func TestConfigurePlain(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	fw := &fakeFramework{}
	opts := ConfigurePlain(fw)

	require.Equal(t, Dir{Input: "src", Output: "_site", Includes: "_includes"}, opts.Dir)
	require.Empty(t, opts.Plugins)
	require.Empty(t, fw.plugins)
	require.Equal(t, []string{"assets"}, fw.passthrough)

	// The misspelled flag is ignored; the recognized flag keeps its default.
	require.Equal(t, []string{"passthroughFileCopye"}, opts.Unrecognized)
	require.True(t, opts.PassthroughFileCopy)
	require.Contains(t, logs.String(), "passthroughFileCopye")
}

func TestConfigureIsRepeatable(t *testing.T) {
	for _, v := range Variants() {
		t.Run(string(v), func(t *testing.T) {
			fw1, fw2 := &fakeFramework{}, &fakeFramework{}
			a, err := ConfigureVariant(fw1, v)
			require.NoError(t, err)
			b, err := ConfigureVariant(fw2, v)
			require.NoError(t, err)
			require.Equal(t, a, b)
			require.Equal(t, fw1.calls, fw2.calls)
		})
	}
}

func TestReturnedOptionsAreIndependent(t *testing.T) {
	a := Configure(&fakeFramework{})
	a.PassthroughPaths[0] = "mutated"
	a.Plugins[0].Name = "mutated"

	b := Configure(&fakeFramework{})
	require.Equal(t, "assets", b.PassthroughPaths[0])
	require.Equal(t, "syntaxhighlight", b.Plugins[0].Name)
}

func TestApplyPreservesPluginOrder(t *testing.T) {
	d, err := Decode([]byte(`
plugins:
  - gfm
  - name: syntaxhighlight
    version: v1.0.0
    options:
      style: monokai
  - extra@v2.1.0
passthrough: [assets, img, assets/]
`))
	require.NoError(t, err)

	fw := &fakeFramework{}
	opts := d.Apply(fw)

	names := make([]string, 0, len(opts.Plugins))
	for _, p := range opts.Plugins {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"gfm", "syntaxhighlight", "extra"}, names)
	require.Equal(t, fw.plugins, opts.Plugins)
	require.Equal(t, "v2.1.0", opts.Plugins[2].Version)
	require.Equal(t, "monokai", opts.Plugins[1].Options["style"])

	// Duplicate passthrough paths collapse, registration follows plugins.
	require.Equal(t, []string{"assets", "img"}, opts.PassthroughPaths)
	require.Equal(t, "passthrough:assets", fw.calls[3])
}

func TestApplyDefaults(t *testing.T) {
	d, err := Decode([]byte("passthroughFileCopy: false\n"))
	require.NoError(t, err)

	opts := d.Apply(&fakeFramework{})
	require.Equal(t, Dir{Input: DefaultInputDir, Output: DefaultOutputDir, Includes: DefaultIncludesDir}, opts.Dir)
	require.False(t, opts.PassthroughFileCopy)
	require.Empty(t, opts.Plugins)
}

func TestDecodeRejectsMalformedYAML(t *testing.T) {
	_, err := Decode([]byte("dir: [unclosed"))
	require.Error(t, err)
}

func TestIncludesPath(t *testing.T) {
	opts := Configure(&fakeFramework{})
	require.Equal(t, "src/_includes", opts.IncludesPath())
}

func TestValidate(t *testing.T) {
	valid := Configure(&fakeFramework{})
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*BuildOptions)
	}{
		{"empty input", func(o *BuildOptions) { o.Dir.Input = "" }},
		{"empty output", func(o *BuildOptions) { o.Dir.Output = " " }},
		{"empty includes", func(o *BuildOptions) { o.Dir.Includes = "" }},
		{"output equals input", func(o *BuildOptions) { o.Dir.Output = "src/" }},
		{"absolute includes", func(o *BuildOptions) { o.Dir.Includes = "/tmp/inc" }},
		{"unnamed plugin", func(o *BuildOptions) { o.Plugins = append(o.Plugins, PluginRef{}) }},
		{"duplicate plugin", func(o *BuildOptions) { o.Plugins = append(o.Plugins, o.Plugins[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid.Clone()
			tt.mutate(&opts)
			err := opts.Validate()
			require.Error(t, err)
			require.True(t, errors.HasCategory(err, errors.CategoryValidation))
		})
	}
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant(" Plain ")
	require.NoError(t, err)
	require.Equal(t, VariantPlain, v)

	_, err = ParseVariant("fancy")
	require.Error(t, err)

	src, err := VariantPlain.Source()
	require.NoError(t, err)
	require.Contains(t, string(src), "passthroughFileCopye: true")

	_, err = Variant("fancy").Source()
	require.Error(t, err)
}

func TestPluginRefString(t *testing.T) {
	require.Equal(t, "gfm", PluginRef{Name: "gfm"}.String())
	require.Equal(t, "gfm@v1.0.0", PluginRef{Name: "gfm", Version: "v1.0.0"}.String())
}
