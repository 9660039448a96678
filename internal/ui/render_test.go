package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"coursegen/internal/chat"
	"coursegen/internal/outline"
)

func TestCourseMarkdown(t *testing.T) {
	md := CourseMarkdown(outline.CourseOutline{
		Heading: "RAN Program",
		Groups: []outline.Group{{ID: 1, Title: "Core", Courses: []outline.Course{
			{ID: 1, Title: "Basics"},
			{ID: 2, Title: "Security", Description: "zero trust"},
		}}},
	})
	require.Equal(t, "# RAN Program\n\n## 1. Core\n\n1. **Basics**\n2. **Security**: zero trust\n\n", md)
	require.Contains(t, CourseMarkdown(outline.CourseOutline{}), "No courses found")
}

func TestChaptersMarkdown(t *testing.T) {
	md := ChaptersMarkdown(outline.ChapterOutline{Courses: []outline.CourseChapters{
		{ID: 1, Chapters: []outline.Chapter{{ID: 1, Title: "Intro"}}},
	}})
	require.Equal(t, "## 1. Untitled course\n\n1. Intro\n\n", md)
}

func TestListingMarkdown(t *testing.T) {
	md := ListingMarkdown(outline.Listing{
		Title:      "Slides",
		Items:      []outline.ListItem{{Title: "One"}, {Title: "Two"}},
		Commentary: []string{"Keep it short."},
	})
	require.Equal(t, "# Slides\n\n1. One\n2. Two\n\n> Keep it short.\n\n", md)
	require.Contains(t, ListingMarkdown(outline.Listing{}), "Nothing to show")
}

func TestHistoryMarkdownTruncates(t *testing.T) {
	md := HistoryMarkdown([]chat.HistoryEntry{
		{UserQuery: "q", ModelResponse: strings.Repeat("word ", 50)},
	}, 20)
	require.True(t, strings.HasPrefix(md, "- **q** (titledata): "))
	require.True(t, strings.HasSuffix(md, "...\n"))
	require.Contains(t, HistoryMarkdown(nil, 80), "empty")
}

func TestRendererPlainOutput(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, false)
	r.StartResponse(chat.TabQuiz)
	r.WriteChunk("two words")
	r.EndResponse(chat.State{Phase: chat.PhaseSucceeded})
	require.Contains(t, out.String(), "~2 words")

	out.Reset()
	r.EndResponse(chat.State{Phase: chat.PhaseFailed, Error: "boom"})
	require.Equal(t, "\n── failed: boom\n", out.String())

	out.Reset()
	r.Tab(chat.TabChapter, `<p>Routing</p><ol><li>Tables</li></ol>`)
	require.Equal(t, "# Routing\n\n## 1. Routing\n\n1. Tables\n", out.String())
}
