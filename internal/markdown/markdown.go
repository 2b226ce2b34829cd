// Package markdown renders page bodies to HTML with goldmark.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to HTML. It is safe for concurrent use once built.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer builds a renderer with the base settings (raw HTML passthrough,
// generated heading IDs) followed by extenders in the given order.
func NewRenderer(extenders ...goldmark.Extender) *Renderer {
	md := goldmark.New(
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
		goldmark.WithExtensions(extenders...),
	)
	return &Renderer{md: md}
}

// Render converts src to HTML.
func (r *Renderer) Render(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
