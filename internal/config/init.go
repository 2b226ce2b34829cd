package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Init writes a config file declaring variant v under site:. The
// declaration text is copied as-is, keys and all.
func Init(path string, v buildconfig.Variant, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.NewError(ferrors.CategoryAlreadyExists,
			fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).Build()
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to stat config file").Build()
	}

	src, err := v.Source()
	if err != nil {
		return ferrors.ValidationError(err.Error()).Build()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "# sitebuilder configuration (%s variant)\n", v)
	fmt.Fprintf(&b, "variant: %s\n", v)
	b.WriteString("site:\n")
	for _, line := range strings.Split(strings.TrimRight(string(src), "\n"), "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("  " + line + "\n")
	}
	fmt.Fprintf(&b, `
build:
  clean: false
  link_check: true

serve:
  addr: %s
  # rebuild_every: 5m

state:
  path: %s

# publish:
#   endpoint: ${S3_ENDPOINT}
#   bucket: site
#   access_key: ${S3_ACCESS_KEY}
#   secret_key: ${S3_SECRET_KEY}

# notify:
#   nats_url: nats://127.0.0.1:4222

logging:
  level: info
  format: text
`, defaultAddr, defaultStatePath)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create config directory").Build()
		}
	}
	if err := os.WriteFile(path, b.Bytes(), 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", path).Build()
	}
	return nil
}
