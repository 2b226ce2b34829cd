package linkcheck

import (
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Broken is a local link whose target does not exist.
type Broken struct {
	// Page is the slash-separated path of the HTML file, relative to the root.
	Page string
	URL  string
}

// CheckSite checks every .html file under root.
func CheckSite(root string) ([]Broken, error) {
	var pages []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".html") {
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return relErr
			}
			pages = append(pages, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to scan output directory").
			WithContext("root", root).Build()
	}
	sort.Strings(pages)
	return CheckPages(root, pages)
}

// CheckPages checks the given pages, each a slash-separated path relative to root.
func CheckPages(root string, pages []string) ([]Broken, error) {
	var broken []Broken
	for _, page := range pages {
		f, err := os.Open(filepath.Join(root, filepath.FromSlash(page)))
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open HTML file").
				WithContext("path", page).Build()
		}
		links, err := ExtractLinks(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			if !IsLocal(l.URL) {
				continue
			}
			if !targetExists(root, page, l.URL) {
				broken = append(broken, Broken{Page: page, URL: l.URL})
			}
		}
	}
	return broken, nil
}

// targetExists resolves raw relative to page. A directory target counts when
// it holds an index.html.
func targetExists(root, page, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	target := u.Path
	if !strings.HasPrefix(target, "/") {
		target = path.Join("/", path.Dir(page), target)
	}
	// Cleaning a rooted path drops leading "..", so targets stay inside root.
	target = path.Clean(target)

	full := filepath.Join(root, filepath.FromSlash(target))
	info, err := os.Stat(full)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return true
	}
	_, err = os.Stat(filepath.Join(full, "index.html"))
	return err == nil
}
