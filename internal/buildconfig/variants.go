package buildconfig

import (
	"embed"
	"fmt"
	"strings"
)

// Variant names one of the built-in build declarations.
type Variant string

const (
	// VariantHighlight registers the syntax highlighting plugin.
	VariantHighlight Variant = "highlight"
	// VariantPlain registers no plugins. Its declaration spells the
	// passthrough flag as passthroughFileCopye, which is not a recognized
	// key, so the flag keeps its default.
	VariantPlain Variant = "plain"
)

//go:embed declarations/*.yaml
var declarations embed.FS

// Variants lists the built-in variants.
func Variants() []Variant {
	return []Variant{VariantHighlight, VariantPlain}
}

// ParseVariant maps a name to a built-in variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variants() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q (want highlight or plain)", s)
}

// Source returns the YAML text of the variant's declaration.
func (v Variant) Source() ([]byte, error) {
	data, err := declarations.ReadFile("declarations/" + string(v) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown variant %q", v)
	}
	return data, nil
}

// Declaration returns the decoded declaration of the variant.
func (v Variant) Declaration() (Declaration, error) {
	data, err := v.Source()
	if err != nil {
		return Declaration{}, err
	}
	return Decode(data)
}

func mustDeclaration(v Variant) Declaration {
	d, err := v.Declaration()
	if err != nil {
		panic(fmt.Sprintf("built-in declaration %s: %v", v, err))
	}
	return d
}

// Configure applies the default (highlight) declaration to fw.
func Configure(fw Framework) BuildOptions {
	return ConfigureHighlight(fw)
}

// ConfigureHighlight registers the syntaxhighlight plugin and the assets
// passthrough rule, with content in src and output in _site.
func ConfigureHighlight(fw Framework) BuildOptions {
	return mustDeclaration(VariantHighlight).Apply(fw)
}

// ConfigurePlain registers no plugins and the assets passthrough rule.
func ConfigurePlain(fw Framework) BuildOptions {
	return mustDeclaration(VariantPlain).Apply(fw)
}

// ConfigureVariant applies the named built-in declaration.
func ConfigureVariant(fw Framework, v Variant) (BuildOptions, error) {
	d, err := v.Declaration()
	if err != nil {
		return BuildOptions{}, err
	}
	return d.Apply(fw), nil
}
