package site

import (
	"fmt"
	"html/template"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/slug"
)

// templateFuncs are available to every page and layout template.
var templateFuncs = template.FuncMap{
	"slugify":  slug.Make,
	"date":     formatDate,
	"safeHTML": func(s string) template.HTML { return template.HTML(s) }, // #nosec G203 -- explicit opt-in by template authors
}

// formatDate renders v with a Go time layout. Strings in one of the
// accepted front matter formats are parsed first.
func formatDate(layout string, v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Format(layout), nil
	case *time.Time:
		if t == nil {
			return "", nil
		}
		return t.Format(layout), nil
	case string:
		for _, l := range dateLayouts {
			if parsed, err := time.Parse(l, t); err == nil {
				return parsed.Format(layout), nil
			}
		}
		return "", fmt.Errorf("date: cannot parse %q", t)
	default:
		return "", fmt.Errorf("date: unsupported value %T", v)
	}
}
