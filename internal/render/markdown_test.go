package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/task"
)

func TestMarkdownRenderer(t *testing.T) {
	t.Parallel()

	renderer, err := NewMarkdownRenderer()
	require.NoError(t, err)

	t.Run("renders articles in given order", func(t *testing.T) {
		t.Parallel()

		document, err := renderer.Render([]*task.Digest{
			{
				Rank:             1,
				StoryID:          "101",
				URL:              "https://a.example/post",
				TitleEN:          "A big release",
				TitleZH:          "一个重大发布",
				Score:            900,
				ContentSummaryZH: "这是内容摘要。",
				CommentSummaryZH: "评论普遍正面。",
			},
			{
				Rank:    2,
				StoryID: "102",
				TitleEN: "Show HN: my tool",
				TitleZH: "展示:我的工具",
				Score:   450,
			},
		}, "2025-06-15")
		require.NoError(t, err)

		assert.Contains(t, document, "# Hacker News 每日摘要 2025-06-15")
		assert.Contains(t, document, "## 1. 一个重大发布")
		assert.Contains(t, document, "原标题: A big release")
		assert.Contains(t, document, "链接: https://a.example/post")
		assert.Contains(t, document, "讨论: https://news.ycombinator.com/item?id=101 (900 分)")
		assert.Contains(t, document, "这是内容摘要。")
		assert.Contains(t, document, "**评论观点**: 评论普遍正面。")

		// A self post links to its discussion instead.
		assert.Contains(t, document, "链接: https://news.ycombinator.com/item?id=102")

		assert.Less(t,
			strings.Index(document, "## 1."),
			strings.Index(document, "## 2."),
			"rank order preserved")
	})

	t.Run("falls back to english title", func(t *testing.T) {
		t.Parallel()

		document, err := renderer.Render([]*task.Digest{
			{Rank: 1, StoryID: "103", TitleEN: "Untranslated", Score: 10},
		}, "2025-06-15")
		require.NoError(t, err)
		assert.Contains(t, document, "## 1. Untranslated")
		assert.NotContains(t, document, "原标题")
	})

	t.Run("empty input is an error", func(t *testing.T) {
		t.Parallel()

		_, err := renderer.Render(nil, "2025-06-15")
		assert.Error(t, err)
	})
}
