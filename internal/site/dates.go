package site

import (
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Special values of the date front matter field.
const (
	DateLastModified    = "Last Modified"
	DateGitLastModified = "git Last Modified"
	DateCreated         = "Created"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// resolveDate interprets the date field. Missing dates and the file-system
// keywords use the modification time; the git keyword asks the resolver and
// falls back to the modification time with a warning.
func (bs *BuildState) resolveDate(p *Page) (time.Time, error) {
	switch v := p.Fields["date"].(type) {
	case nil:
		return p.ModTime, nil
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		switch s {
		case DateLastModified, DateCreated:
			return p.ModTime, nil
		case DateGitLastModified:
			t, err := bs.Engine.dates.LastModified(p.SourcePath)
			if err != nil {
				bs.warn(StageDiscover, fmt.Errorf("git date for %s: %w", p.Source, err))
				return p.ModTime, nil
			}
			return t, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", v)
	default:
		return time.Time{}, fmt.Errorf("date must be a string or timestamp, got %T", v)
	}
}

func (bs *BuildState) logPage(msg string, p *Page) {
	bs.Logger.Debug(msg, logfields.Source(p.Source), logfields.Output(p.Output), logfields.URL(p.URL))
}
