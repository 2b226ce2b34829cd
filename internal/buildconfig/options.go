// Package buildconfig declares how a site is built: where sources live,
// where output goes, which plugins run and which paths are copied through
// untouched. A declaration is applied to a Framework, which receives the
// plugin and passthrough registrations, and yields the BuildOptions the
// generator consumes.
package buildconfig

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Default directory layout used when a declaration leaves a directory out.
const (
	DefaultInputDir    = "."
	DefaultOutputDir   = "_site"
	DefaultIncludesDir = "_includes"
)

// Dir names the three directories of a build.
type Dir struct {
	Input    string `yaml:"input"`
	Output   string `yaml:"output"`
	Includes string `yaml:"includes"`
}

// PluginRef names a plugin registered with the framework. An empty Version
// resolves to the latest registered version.
type PluginRef struct {
	Name    string         `yaml:"name"`
	Version string         `yaml:"version,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

// String renders the reference as name or name@version.
func (p PluginRef) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}

func (p PluginRef) clone() PluginRef {
	out := PluginRef{Name: p.Name, Version: p.Version}
	if p.Options != nil {
		out.Options = maps.Clone(p.Options)
	}
	return out
}

// UnmarshalYAML accepts either a mapping or the short scalar form
// "name" / "name@version".
func (p *PluginRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		name, version, _ := strings.Cut(strings.TrimSpace(node.Value), "@")
		*p = PluginRef{Name: name, Version: version}
		return nil
	}
	type plain PluginRef
	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}
	*p = PluginRef(v)
	return nil
}

// BuildOptions is the resolved configuration of one build.
type BuildOptions struct {
	Dir                 Dir         `yaml:"dir"`
	PassthroughPaths    []string    `yaml:"passthrough"`
	Plugins             []PluginRef `yaml:"plugins"`
	PassthroughFileCopy bool        `yaml:"passthroughFileCopy"`

	// Unrecognized lists declaration keys that had no effect.
	Unrecognized []string `yaml:"unrecognized,omitempty"`
}

// IncludesPath is the includes directory resolved against the input directory.
func (o BuildOptions) IncludesPath() string {
	return filepath.Join(o.Dir.Input, o.Dir.Includes)
}

// Clone returns a copy that shares no slices or maps with o.
func (o BuildOptions) Clone() BuildOptions {
	out := o
	out.PassthroughPaths = slices.Clone(o.PassthroughPaths)
	out.Unrecognized = slices.Clone(o.Unrecognized)
	if o.Plugins != nil {
		out.Plugins = make([]PluginRef, len(o.Plugins))
		for i, p := range o.Plugins {
			out.Plugins[i] = p.clone()
		}
	}
	return out
}

// Validate checks the structural invariants of the options. Passthrough
// paths are not checked for existence; that happens when a build runs.
func (o BuildOptions) Validate() error {
	if strings.TrimSpace(o.Dir.Input) == "" {
		return errors.ValidationError("input directory must not be empty").
			WithContext("field", "dir.input").Build()
	}
	if strings.TrimSpace(o.Dir.Output) == "" {
		return errors.ValidationError("output directory must not be empty").
			WithContext("field", "dir.output").Build()
	}
	if strings.TrimSpace(o.Dir.Includes) == "" {
		return errors.ValidationError("includes directory must not be empty").
			WithContext("field", "dir.includes").Build()
	}
	if filepath.Clean(o.Dir.Input) == filepath.Clean(o.Dir.Output) {
		return errors.ValidationError("output directory must differ from input directory").
			WithContext("input", o.Dir.Input).
			WithContext("output", o.Dir.Output).Build()
	}
	if filepath.IsAbs(o.Dir.Includes) {
		return errors.ValidationError("includes directory must be relative to the input directory").
			WithContext("includes", o.Dir.Includes).Build()
	}
	seen := make(map[string]bool, len(o.Plugins))
	for i, p := range o.Plugins {
		if strings.TrimSpace(p.Name) == "" {
			return errors.ValidationError("plugin name must not be empty").
				WithContext("index", i).Build()
		}
		if seen[p.Name] {
			return errors.ValidationError("plugin registered twice").
				WithContext("plugin", p.Name).Build()
		}
		seen[p.Name] = true
	}
	return nil
}
