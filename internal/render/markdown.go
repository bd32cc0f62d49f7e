// Package render turns aggregated digest articles into the publishable
// markdown document.
package render

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/phrazzld/digest-api/internal/task"
)

const digestTemplate = `# Hacker News 每日摘要 {{.Date}}

{{range .Articles}}## {{.Rank}}. {{if .TitleZH}}{{.TitleZH}}{{else}}{{.TitleEN}}{{end}}

{{if .TitleZH}}原标题: {{.TitleEN}}{{end}}
链接: {{if .URL}}{{.URL}}{{else}}https://news.ycombinator.com/item?id={{.StoryID}}{{end}}
讨论: https://news.ycombinator.com/item?id={{.StoryID}} ({{.Score}} 分)

{{if .ContentSummaryZH}}{{.ContentSummaryZH}}{{end}}
{{if .CommentSummaryZH}}
**评论观点**: {{.CommentSummaryZH}}
{{end}}
{{end}}`

// MarkdownRenderer implements task.Renderer with a markdown template.
type MarkdownRenderer struct {
	tmpl *template.Template
}

// NewMarkdownRenderer parses the built-in digest template.
func NewMarkdownRenderer() (*MarkdownRenderer, error) {
	tmpl, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse digest template: %w", err)
	}
	return &MarkdownRenderer{tmpl: tmpl}, nil
}

// Render implements task.Renderer. Articles are rendered in the order
// given; callers pass them ordered by rank.
func (r *MarkdownRenderer) Render(articles []*task.Digest, date string) (string, error) {
	if len(articles) == 0 {
		return "", fmt.Errorf("nothing to render for %s", date)
	}

	data := struct {
		Date     string
		Articles []*task.Digest
	}{
		Date:     date,
		Articles: articles,
	}

	var b strings.Builder
	if err := r.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}
	return b.String(), nil
}
