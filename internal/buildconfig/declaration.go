package buildconfig

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Framework receives the registrations a declaration makes.
type Framework interface {
	AddPlugin(ref PluginRef)
	AddPassthroughCopy(path string)
}

// Declaration is the raw form of a build configuration as written in YAML.
// Keys that are not part of the schema are collected in Extra.
type Declaration struct {
	Dir                 *Dir           `yaml:"dir,omitempty"`
	Plugins             []PluginRef    `yaml:"plugins,omitempty"`
	Passthrough         []string       `yaml:"passthrough,omitempty"`
	PassthroughFileCopy *bool          `yaml:"passthroughFileCopy,omitempty"`
	Extra               map[string]any `yaml:",inline"`
}

// Decode parses a YAML declaration.
func Decode(data []byte) (Declaration, error) {
	var d Declaration
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Declaration{}, fmt.Errorf("decode build declaration: %w", err)
	}
	return d, nil
}

// UnknownKeys returns the keys the schema does not recognize, sorted.
func (d Declaration) UnknownKeys() []string {
	if len(d.Extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply registers the declared plugins in order, then every passthrough
// path, and returns the resulting options. Unknown keys are reported on the
// default logger and otherwise ignored.
func (d Declaration) Apply(fw Framework) BuildOptions {
	return d.ApplyWithLogger(fw, slog.Default())
}

// ApplyWithLogger is Apply with an explicit logger.
func (d Declaration) ApplyWithLogger(fw Framework, logger *slog.Logger) BuildOptions {
	if logger == nil {
		logger = slog.Default()
	}
	opts := BuildOptions{
		Dir: Dir{
			Input:    DefaultInputDir,
			Output:   DefaultOutputDir,
			Includes: DefaultIncludesDir,
		},
		PassthroughFileCopy: true,
	}
	if d.Dir != nil {
		if d.Dir.Input != "" {
			opts.Dir.Input = d.Dir.Input
		}
		if d.Dir.Output != "" {
			opts.Dir.Output = d.Dir.Output
		}
		if d.Dir.Includes != "" {
			opts.Dir.Includes = d.Dir.Includes
		}
	}
	if d.PassthroughFileCopy != nil {
		opts.PassthroughFileCopy = *d.PassthroughFileCopy
	}

	for _, ref := range d.Plugins {
		ref = ref.clone()
		fw.AddPlugin(ref)
		opts.Plugins = append(opts.Plugins, ref)
	}

	seen := make(map[string]bool, len(d.Passthrough))
	for _, p := range d.Passthrough {
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		fw.AddPassthroughCopy(p)
		opts.PassthroughPaths = append(opts.PassthroughPaths, p)
	}

	for _, key := range d.UnknownKeys() {
		logger.Warn("Ignoring unrecognized build option", slog.String("key", key),
			logfields.Source(opts.Dir.Input))
		opts.Unrecognized = append(opts.Unrecognized, key)
	}

	return opts.Clone()
}
