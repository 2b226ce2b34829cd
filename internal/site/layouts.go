package site

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
)

// layout is a parsed template from the includes directory.
type layout struct {
	name   string
	tmpl   *template.Template
	fields map[string]any
	parent string
}

// layoutCache keeps parsed layouts between builds. Entries are keyed by file
// path, modification time and the state of the whole includes directory, so
// editing a partial invalidates every layout that might reference it.
type layoutCache struct {
	entries *lru.Cache[string, *layout]

	mu        sync.Mutex
	baseStamp string
	base      *template.Template
}

func newLayoutCache(size int) *layoutCache {
	entries, err := lru.New[string, *layout](size)
	if err != nil {
		panic(fmt.Sprintf("layout cache: %v", err))
	}
	return &layoutCache{entries: entries}
}

// includeFile is a template file under the includes directory.
type includeFile struct {
	rel  string
	path string
	info fs.FileInfo
}

func scanIncludes(dir string) ([]includeFile, error) {
	var files []includeFile
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, includeFile{rel: filepath.ToSlash(rel), path: p, info: info})
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, err
}

func stampOf(files []includeFile) string {
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", f.rel, f.info.ModTime().UnixNano(), f.info.Size())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// baseTemplates returns a template set holding every include by its
// relative path, for use with {{ template "partials/nav.html" . }}.
// The set is rebuilt only when the includes directory changed.
func (c *layoutCache) baseTemplates(dir string) (*template.Template, string, error) {
	files, err := scanIncludes(dir)
	if err != nil {
		return nil, "", err
	}
	stamp := stampOf(files)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base != nil && c.baseStamp == stamp {
		return c.base, stamp, nil
	}

	base := template.New("_includes").Funcs(templateFuncs)
	for _, f := range files {
		content, err := os.ReadFile(f.path) // #nosec G304 -- include files under the configured includes directory
		if err != nil {
			return nil, "", err
		}
		_, body, _, err := frontmatter.Split(content)
		if err != nil {
			return nil, "", fmt.Errorf("include %s: %w", f.rel, err)
		}
		if _, err := base.New(f.rel).Parse(string(body)); err != nil {
			return nil, "", fmt.Errorf("include %s: %w", f.rel, err)
		}
	}
	c.base, c.baseStamp = base, stamp
	c.entries.Purge()
	return base, stamp, nil
}

// resolveLayoutPath finds name under dir, trying an .html suffix when the
// name has no extension.
func resolveLayoutPath(dir, name string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(name))[1:]
	if cleaned == "" {
		return "", fmt.Errorf("empty layout name")
	}
	candidates := []string{cleaned}
	if path.Ext(cleaned) == "" {
		candidates = append(candidates, cleaned+".html")
	}
	for _, c := range candidates {
		p := filepath.Join(dir, filepath.FromSlash(c))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("layout %q not found in %s", name, dir)
}

// load returns the parsed layout called name from dir.
func (c *layoutCache) load(dir, name string) (*layout, error) {
	base, stamp, err := c.baseTemplates(dir)
	if err != nil {
		return nil, err
	}
	p, err := resolveLayoutPath(dir, name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s@%d@%s", p, info.ModTime().UnixNano(), stamp)
	if l, ok := c.entries.Get(key); ok {
		return l, nil
	}

	content, err := os.ReadFile(p) // #nosec G304 -- resolved inside the includes directory
	if err != nil {
		return nil, err
	}
	doc, err := frontmatter.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", name, err)
	}
	c.mu.Lock()
	tmpl, err := base.Clone()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if _, err := tmpl.New("layout:" + name).Parse(string(doc.Body)); err != nil {
		return nil, fmt.Errorf("layout %s: %w", name, err)
	}
	parent, _ := doc.Fields["layout"].(string)
	l := &layout{
		name:   name,
		tmpl:   tmpl.Lookup("layout:" + name),
		fields: doc.Fields,
		parent: strings.TrimSpace(parent),
	}
	c.entries.Add(key, l)
	return l, nil
}

// pageTemplate parses an HTML page body against the include set.
func (c *layoutCache) pageTemplate(dir, name string, body []byte) (*template.Template, error) {
	base, _, err := c.baseTemplates(dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	tmpl, err := base.Clone()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return tmpl.New("page:" + name).Parse(string(body))
}
