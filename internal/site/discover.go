package site

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// templateFormats maps source extensions to formats.
var templateFormats = map[string]string{
	".md":   FormatMarkdown,
	".html": FormatHTML,
}

func stageDiscover(ctx context.Context, bs *BuildState) error {
	input := bs.Options.Dir.Input
	skip, err := bs.skipSet()
	if err != nil {
		return err
	}

	var pages []*Page
	err = filepath.WalkDir(input, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != input && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		if skip[abs] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		format, ok := templateFormats[strings.ToLower(filepath.Ext(p))]
		if !ok {
			return nil
		}
		page, err := bs.loadPage(p, format)
		if err != nil {
			return err
		}
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		if errors.IsClassified(err) || ctx.Err() != nil {
			return err
		}
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to scan input directory").
			WithContext("path", input).Build()
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Source < pages[j].Source })
	bs.Pages = pages
	bs.Logger.Info("Discovered pages", logfields.Stage(string(StageDiscover)), logfields.Count(len(pages)))
	return nil
}

// skipSet lists absolute paths the walk must not descend into: the includes
// directory, the output directory and every passthrough source.
func (bs *BuildState) skipSet() (map[string]bool, error) {
	paths := append([]string{bs.Options.IncludesPath(), bs.Options.Dir.Output}, bs.Passthrough...)
	skip := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		skip[abs] = true
	}
	return skip, nil
}

func (bs *BuildState) loadPage(p, format string) (*Page, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(p) // #nosec G304 -- path comes from walking the input directory
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(bs.Options.Dir.Input, p)
	if err != nil {
		return nil, err
	}
	page := &Page{
		Source:     filepath.ToSlash(rel),
		SourcePath: p,
		Format:     format,
		ModTime:    info.ModTime(),
	}

	doc, err := frontmatter.Parse(content)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "invalid front matter").
			WithContext("path", page.Source).Build()
	}
	page.Fields = doc.Fields
	page.Body = doc.Body

	if page.Date, err = bs.resolveDate(page); err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "invalid date").
			WithContext("path", page.Source).Build()
	}

	out, write, err := outputPath(page.Source, page.Fields["permalink"])
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "invalid permalink").
			WithContext("path", page.Source).Build()
	}
	if write {
		page.Output = out
		page.URL = urlFor(out)
	}
	page.FileSlug = fileSlug(page.Source)

	if page.Fingerprint, err = computeFingerprint(page.Fields, page.Body); err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "fingerprint failed").
			WithContext("path", page.Source).Build()
	}
	bs.logPage("Discovered page", page)
	return page, nil
}
