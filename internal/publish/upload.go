package publish

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// Result summarizes an upload.
type Result struct {
	Files int
	Bytes int64
}

// ContentType picks the Content-Type for an object key by extension.
func ContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ObjectKey maps a slash-separated file path relative to the site root to
// its key under prefix.
func ObjectKey(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// Uploader copies a built site into an ObjectStore.
type Uploader struct {
	Store  ObjectStore
	Prefix string
	// Retry governs bucket creation and each object upload.
	Retry  retry.Policy
	Logger *slog.Logger
}

// Upload uploads every file under root. Hidden files are skipped.
func (u Uploader) Upload(ctx context.Context, root string) (Result, error) {
	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var res Result

	if _, err := os.Stat(root); err != nil {
		return res, errors.WrapError(err, errors.CategoryNotFound, "output directory not found; run build first").
			WithContext("path", root).Build()
	}
	err := u.Retry.Do(ctx, func(int) error {
		if err := u.Store.EnsureBucket(ctx); err != nil {
			return errors.WrapError(err, errors.CategoryPublish, "failed to ensure bucket").Retryable().Build()
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := ObjectKey(u.Prefix, filepath.ToSlash(rel))

		f, err := os.Open(p) // #nosec G304 -- walking the output directory
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		err = u.Retry.Do(ctx, func(attempt int) error {
			if attempt > 0 {
				if _, err := f.Seek(0, io.SeekStart); err != nil {
					return err
				}
				logger.Debug("Retrying upload", logfields.Path(key), slog.Int("attempt", attempt))
			}
			if err := u.Store.Put(ctx, key, f, info.Size(), ContentType(key)); err != nil {
				return errors.WrapError(err, errors.CategoryPublish, "upload failed").
					WithContext("key", key).Retryable().Build()
			}
			return nil
		})
		if err != nil {
			return err
		}
		res.Files++
		res.Bytes += info.Size()
		logger.Debug("Uploaded object", logfields.Path(key))
		return nil
	})
	if err != nil {
		if errors.IsClassified(err) {
			return res, err
		}
		return res, errors.WrapError(err, errors.CategoryFileSystem, "failed to read output directory").
			WithContext("path", root).Build()
	}
	logger.Info("Published site", logfields.Count(res.Files), slog.Int64("bytes", res.Bytes))
	return res, nil
}
