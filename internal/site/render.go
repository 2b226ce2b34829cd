package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"time"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// maxLayoutDepth bounds layout chains.
const maxLayoutDepth = 16

func stageResolvePlugins(ctx context.Context, bs *BuildState) error {
	var extenders []goldmark.Extender
	for _, ref := range bs.Plugins {
		p, err := bs.Engine.registry.Resolve(ref.Name, ref.Version)
		if err != nil {
			return errors.WrapError(err, errors.CategoryPlugin, "plugin not available").
				WithContext("plugin", ref.String()).Build()
		}
		mp, ok := p.(plugin.MarkdownPlugin)
		if !ok {
			return errors.PluginError("plugin does not extend markdown rendering").
				WithContext("plugin", ref.String()).Build()
		}
		logger := bs.Logger.With(logfields.Plugin(ref.Name))
		exts, err := mp.Extenders(plugin.NewPluginContext(ctx, logger, bs.Report.ID, ref.Options))
		if err != nil {
			return errors.WrapError(plugin.NewPluginError(ref.Name, "extenders", err), errors.CategoryPlugin, "plugin rejected its options").
				WithContext("plugin", ref.String()).Build()
		}
		extenders = append(extenders, exts...)
		logger.Debug("Plugin resolved", slog.String("version", p.Metadata().Version))
	}
	bs.Renderer = markdown.NewRenderer(extenders...)
	return nil
}

// pageInfo is exposed to templates as .page.
type pageInfo struct {
	URL         string
	InputPath   string
	OutputPath  string
	FileSlug    string
	Date        time.Time
	Fingerprint string
}

// CollectionItem is one entry of a collection exposed to templates.
type CollectionItem struct {
	URL      string
	Title    string
	Date     time.Time
	FileSlug string
	Data     map[string]any
}

// buildCollections groups written pages into "all" and one collection per
// tag, each ordered by date then source path.
func buildCollections(pages []*Page) map[string][]CollectionItem {
	sorted := make([]*Page, 0, len(pages))
	for _, p := range pages {
		if p.Output != "" {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Source < sorted[j].Source
	})

	collections := map[string][]CollectionItem{"all": {}}
	for _, p := range sorted {
		item := CollectionItem{URL: p.URL, Title: p.Title(), Date: p.Date, FileSlug: p.FileSlug, Data: p.Fields}
		collections["all"] = append(collections["all"], item)
		for _, tag := range p.Tags() {
			collections[tag] = append(collections[tag], item)
		}
	}
	return collections
}

// templateData assembles what a page template sees: front matter fields at
// the top level plus page, collections and content.
func templateData(p *Page, collections map[string][]CollectionItem) map[string]any {
	data := make(map[string]any, len(p.Fields)+3)
	for k, v := range p.Fields {
		data[k] = v
	}
	data["page"] = pageInfo{
		URL:         p.URL,
		InputPath:   p.Source,
		OutputPath:  p.Output,
		FileSlug:    p.FileSlug,
		Date:        p.Date,
		Fingerprint: p.Fingerprint,
	}
	data["collections"] = collections
	return data
}

func stageRender(ctx context.Context, bs *BuildState) error {
	collections := buildCollections(bs.Pages)
	for _, p := range bs.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, err := bs.renderPage(p, collections)
		if err != nil {
			return errors.WrapError(err, errors.CategoryRender, "failed to render page").
				WithContext("path", p.Source).Build()
		}
		p.Content = content
		bs.Report.PagesRendered++
		bs.logPage("Rendered page", p)
	}
	return nil
}

func (bs *BuildState) renderPage(p *Page, collections map[string][]CollectionItem) ([]byte, error) {
	data := templateData(p, collections)
	includes := bs.Options.IncludesPath()

	var content []byte
	switch p.Format {
	case FormatMarkdown:
		out, err := bs.Renderer.Render(p.Body)
		if err != nil {
			return nil, err
		}
		content = out
	case FormatHTML:
		tmpl, err := bs.Engine.layouts.pageTemplate(includes, p.Source, p.Body)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, err
		}
		content = buf.Bytes()
	default:
		return nil, fmt.Errorf("unsupported template format %q", p.Format)
	}

	return bs.applyLayouts(p.Layout(), content, data)
}

// applyLayouts wraps content in the named layout and then in each layout's
// own parent. Page fields win over layout fields of the same name.
func (bs *BuildState) applyLayouts(name string, content []byte, pageData map[string]any) ([]byte, error) {
	includes := bs.Options.IncludesPath()
	seen := make(map[string]bool)
	for depth := 0; name != ""; depth++ {
		if seen[name] {
			return nil, fmt.Errorf("layout cycle at %q", name)
		}
		if depth >= maxLayoutDepth {
			return nil, fmt.Errorf("layout chain deeper than %d", maxLayoutDepth)
		}
		seen[name] = true

		l, err := bs.Engine.layouts.load(includes, name)
		if err != nil {
			return nil, err
		}
		data := make(map[string]any, len(l.fields)+len(pageData)+1)
		for k, v := range l.fields {
			data[k] = v
		}
		for k, v := range pageData {
			data[k] = v
		}
		data["content"] = template.HTML(content) // #nosec G203 -- rendered page output

		var buf bytes.Buffer
		if err := l.tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("layout %s: %w", name, err)
		}
		bs.Logger.Debug("Applied layout", logfields.Layout(name))
		content = buf.Bytes()
		name = l.parent
	}
	return content, nil
}
