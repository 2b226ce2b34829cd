package site

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

func stagePassthrough(ctx context.Context, bs *BuildState) error {
	if !bs.Options.PassthroughFileCopy {
		bs.Logger.Info("Passthrough copy disabled", logfields.Count(len(bs.Passthrough)))
		return errStageSkipped
	}

	absOut, err := filepath.Abs(bs.Options.Dir.Output)
	if err != nil {
		return err
	}
	bs.PassthroughOutputs = make(map[string]string)

	var missing []string
	for _, src := range bs.Passthrough {
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, src)
				continue
			}
			return errors.WrapError(err, errors.CategoryFileSystem, "cannot read passthrough path").
				WithContext("path", src).Build()
		}
		dest := passthroughTarget(src, bs.Options.Dir.Input, bs.Options.Dir.Output)
		copied, err := copyTree(ctx, src, dest, absOut)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return errors.WrapError(err, errors.CategoryFileSystem, "passthrough copy failed").
				WithContext("path", src).
				WithContext("output", dest).Build()
		}
		for _, target := range copied {
			rel, err := filepath.Rel(bs.Options.Dir.Output, target)
			if err != nil {
				return err
			}
			bs.PassthroughOutputs[filepath.ToSlash(rel)] = src
		}
		bs.Report.PassthroughFiles += len(copied)
		bs.Logger.Debug("Copied passthrough path", logfields.Source(src), logfields.Output(dest), logfields.Count(len(copied)))
	}

	if len(missing) > 0 {
		return newWarnStageError(StagePassthrough,
			fmt.Errorf("passthrough paths not found: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// passthroughTarget places src in the output directory. Paths inside the
// input directory keep their position relative to it; other relative paths
// keep their own position; absolute paths land at the output root.
func passthroughTarget(src, input, output string) string {
	src = filepath.Clean(src)
	if rel, err := filepath.Rel(filepath.Clean(input), src); err == nil && rel != "." && !escapes(rel) {
		return filepath.Join(output, rel)
	}
	if filepath.IsAbs(src) || escapes(src) {
		return filepath.Join(output, filepath.Base(src))
	}
	return filepath.Join(output, src)
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// copyTree copies a file or directory recursively and returns the paths of
// the files it wrote. File modes are preserved. The directory skip (an
// absolute path, normally the output directory) is never descended into.
func copyTree(ctx context.Context, src, dest, skip string) ([]string, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return nil, err
	}
	var copied []string
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			if filepath.Join(absSrc, rel) == skip {
				return filepath.SkipDir
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if err := copyFile(p, target); err != nil {
			return err
		}
		copied = append(copied, target)
		return nil
	})
	return copied, err
}

func copyFile(src, dest string) error {
	in, err := os.Open(src) // #nosec G304 -- registered passthrough source
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()) // #nosec G304 -- inside the output directory
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile only applies the mode when creating; fix up existing files.
	return os.Chmod(dest, info.Mode().Perm())
}
