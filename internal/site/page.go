package site

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
)

// Template formats recognized as page sources.
const (
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// Page is one source file on its way to the output tree.
type Page struct {
	// Source is the slash-separated path relative to the input directory.
	Source string
	// SourcePath is the path on disk.
	SourcePath string
	Format     string

	Fields  map[string]any
	Body    []byte
	ModTime time.Time
	Date    time.Time

	// Output is the slash-separated path relative to the output directory.
	// It is empty when the page opts out of writing with permalink: false.
	Output      string
	URL         string
	FileSlug    string
	Fingerprint string

	Content []byte
}

// Title returns the title front matter field, if any.
func (p *Page) Title() string {
	s, _ := p.Fields["title"].(string)
	return s
}

// Tags returns the tags front matter field as a list. A single string is one tag.
func (p *Page) Tags() []string {
	switch v := p.Fields["tags"].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return nil
	}
}

// Layout returns the layout front matter field.
func (p *Page) Layout() string {
	s, _ := p.Fields["layout"].(string)
	return strings.TrimSpace(s)
}

// outputPath derives where a page is written from its source path and the
// permalink field. ok is false for permalink: false.
func outputPath(source string, permalink any) (out string, ok bool, err error) {
	switch v := permalink.(type) {
	case nil:
		dir, file := path.Split(source)
		stem := strings.TrimSuffix(file, path.Ext(file))
		if stem == "index" {
			return path.Join(dir, "index.html"), true, nil
		}
		return path.Join(dir, stem, "index.html"), true, nil
	case bool:
		if v {
			return "", false, fmt.Errorf("permalink: true is not a path")
		}
		return "", false, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", false, fmt.Errorf("permalink must not be empty")
		}
		cleaned := path.Clean(strings.TrimPrefix(s, "/"))
		if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
			return "", false, fmt.Errorf("permalink %q escapes the output directory", v)
		}
		if strings.HasSuffix(s, "/") || cleaned == "." {
			return path.Join(cleaned, "index.html"), true, nil
		}
		return cleaned, true, nil
	default:
		return "", false, fmt.Errorf("permalink must be a string or false, got %T", permalink)
	}
}

// urlFor maps an output path to the URL it is served under.
func urlFor(out string) string {
	if path.Base(out) != "index.html" {
		return "/" + out
	}
	dir := path.Dir(out)
	if dir == "." {
		return "/"
	}
	return "/" + dir + "/"
}

// fileSlug is the source file name without extension; index files take the
// name of their directory.
func fileSlug(source string) string {
	dir, file := path.Split(source)
	stem := strings.TrimSuffix(file, path.Ext(file))
	if stem != "index" {
		return stem
	}
	if dir == "" {
		return ""
	}
	return path.Base(strings.TrimSuffix(dir, "/"))
}

// computeFingerprint hashes the canonical front matter (minus the
// fingerprint field itself) together with the body.
func computeFingerprint(fields map[string]any, body []byte) (string, error) {
	forHash := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == mdfp.FingerprintField {
			continue
		}
		forHash[k] = v
	}
	serialized, err := frontmatter.Canonical(forHash)
	if err != nil {
		return "", err
	}
	fm := strings.TrimSuffix(string(serialized), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, string(body)), nil
}
