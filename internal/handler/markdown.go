package handler

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// renderDescriptionHTML 将条目描述从 Markdown 渲染为可安全展示的 HTML
func renderDescriptionHTML(markdownText string) string {
	if strings.TrimSpace(markdownText) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(markdownText), &buf); err != nil {
		return ""
	}

	return sanitizer.Sanitize(buf.String())
}
