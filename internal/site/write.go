package site

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/linkcheck"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

func stagePrepareOutput(_ context.Context, bs *BuildState) error {
	output := bs.Options.Dir.Output
	absOut, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	absIn, err := filepath.Abs(bs.Options.Dir.Input)
	if err != nil {
		return err
	}
	if rel, err := filepath.Rel(absOut, absIn); err == nil && !escapes(rel) {
		return errors.ValidationError("input directory must not be inside the output directory").
			WithContext("input", bs.Options.Dir.Input).
			WithContext("output", output).Build()
	}

	if bs.Engine.clean {
		if err := os.RemoveAll(output); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to clean output directory").
				WithContext("path", output).Build()
		}
		bs.Logger.Debug("Cleaned output directory", logfields.Path(output))
	}
	if err := os.MkdirAll(output, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", output).Build()
	}
	return nil
}

func stageWrite(ctx context.Context, bs *BuildState) error {
	owners := make(map[string]string, len(bs.Pages))
	for _, p := range bs.Pages {
		if p.Output == "" {
			continue
		}
		if src, copied := bs.PassthroughOutputs[p.Output]; copied {
			return errors.BuildError("page output overwrites a passthrough file").
				WithContext("output", p.Output).
				WithContext("passthrough", src).
				WithContext("page", p.Source).Build()
		}
		if prev, dup := owners[p.Output]; dup {
			return errors.BuildError("two pages write the same output path").
				WithContext("output", p.Output).
				WithContext("first", prev).
				WithContext("second", p.Source).Build()
		}
		owners[p.Output] = p.Source
	}

	for _, p := range bs.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary := PageSummary{Source: p.Source, Output: p.Output, URL: p.URL, Fingerprint: p.Fingerprint}
		bs.Report.Pages = append(bs.Report.Pages, summary)
		if p.Output == "" {
			continue
		}

		full := filepath.Join(bs.Options.Dir.Output, filepath.FromSlash(p.Output))
		changed, err := writeIfChanged(full, p.Content)
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to write page").
				WithContext("path", p.Source).
				WithContext("output", full).Build()
		}
		if changed {
			bs.Report.PagesWritten++
		} else {
			bs.Report.PagesUnchanged++
		}
		bs.Written = append(bs.Written, p.Output)
	}
	return nil
}

// writeIfChanged writes data atomically unless the file already holds it.
func writeIfChanged(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) { // #nosec G304 -- output path
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return false, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 -- site output is world readable
		return false, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}
	return true, nil
}

func stageLinkCheck(_ context.Context, bs *BuildState) error {
	if !bs.Engine.linkCheck {
		return errStageSkipped
	}
	var (
		broken []linkcheck.Broken
		err    error
	)
	if bs.Engine.fullLinkCheck {
		broken, err = linkcheck.CheckSite(bs.Options.Dir.Output)
	} else {
		var pages []string
		for _, out := range bs.Written {
			if filepath.Ext(out) == ".html" {
				pages = append(pages, out)
			}
		}
		broken, err = linkcheck.CheckPages(bs.Options.Dir.Output, pages)
	}
	if err != nil {
		return newWarnStageError(StageLinkCheck, err)
	}
	bs.Report.BrokenLinks = len(broken)
	for _, b := range broken {
		bs.Logger.Warn("Broken link", logfields.Output(b.Page), logfields.URL(b.URL))
	}
	if len(broken) > 0 {
		return newWarnStageError(StageLinkCheck, fmt.Errorf("%d broken links", len(broken)))
	}
	return nil
}
