// Package ui renders streamed responses, outlines and histories.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"coursegen/internal/chat"
	"coursegen/internal/outline"
)

// Renderer writes responses and outlines to a terminal
type Renderer struct {
	out       io.Writer
	width     int
	markdown  *glamour.TermRenderer
	rule      lipgloss.Style
	failure   lipgloss.Style
	startTime time.Time
	words     int
}

// NewRenderer creates a renderer writing to out. When renderMarkdown is
// false outlines are written as plain markdown.
func NewRenderer(out io.Writer, renderMarkdown bool) *Renderer {
	r := &Renderer{out: out, width: terminalWidth(out)}
	styles := lipgloss.NewRenderer(out)
	r.rule = styles.NewStyle().Foreground(lipgloss.Color("8"))
	r.failure = styles.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	if renderMarkdown {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(r.width-10),
		)
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

// Markdown renders md through glamour, falling back to the raw text.
func (r *Renderer) Markdown(md string) {
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(md); err == nil {
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	fmt.Fprintln(r.out, strings.TrimRight(md, "\n"))
}

// StartResponse resets the response counters
func (r *Renderer) StartResponse(tab chat.Tab) {
	r.startTime = time.Now()
	r.words = 0
	fmt.Fprintln(r.out, r.rule.Render(fmt.Sprintf("── %s · %s", tab, r.startTime.Format("15:04:05"))))
}

// WriteChunk streams text as it arrives
func (r *Renderer) WriteChunk(text string) {
	r.words += len(strings.Fields(text))
	fmt.Fprint(r.out, text)
}

// EndResponse prints the outcome of a settled generation
func (r *Renderer) EndResponse(state chat.State) {
	fmt.Fprintln(r.out)
	if state.Phase == chat.PhaseFailed {
		fmt.Fprintln(r.out, r.failure.Render("── failed: "+state.Error))
		return
	}
	fmt.Fprintln(r.out, r.rule.Render(fmt.Sprintf("── %s · ~%d words", formatDuration(time.Since(r.startTime)), r.words)))
}

// Course renders a course outline
func (r *Renderer) Course(o outline.CourseOutline) {
	r.Markdown(CourseMarkdown(o))
}

// Chapters renders a chapter outline
func (r *Renderer) Chapters(o outline.ChapterOutline) {
	r.Markdown(ChaptersMarkdown(o))
}

// Listing renders a listing
func (r *Renderer) Listing(l outline.Listing) {
	r.Markdown(ListingMarkdown(l))
}

// Tab renders the parse of entry appropriate for tab
func (r *Renderer) Tab(tab chat.Tab, response string) {
	switch tab {
	case chat.TabProgram, chat.TabCourse:
		r.Course(outline.ParseCourse(response))
	case chat.TabChapter:
		r.Chapters(outline.ParseChapters(response))
	default:
		r.Listing(outline.ParseListing(response))
	}
}

// History renders the global log
func (r *Renderer) History(entries []chat.HistoryEntry) {
	r.Markdown(HistoryMarkdown(entries, r.width))
}

// CourseMarkdown formats o as nested markdown lists.
func CourseMarkdown(o outline.CourseOutline) string {
	var b strings.Builder
	if o.Heading != "" {
		fmt.Fprintf(&b, "# %s\n\n", o.Heading)
	}
	if len(o.Groups) == 0 {
		b.WriteString("_No courses found._\n")
		return b.String()
	}
	for _, g := range o.Groups {
		fmt.Fprintf(&b, "## %d. %s\n\n", g.ID, g.Title)
		for _, c := range g.Courses {
			fmt.Fprintf(&b, "%d. **%s**", c.ID, c.Title)
			if c.Description != "" {
				fmt.Fprintf(&b, ": %s", c.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ChaptersMarkdown formats o as one section per course.
func ChaptersMarkdown(o outline.ChapterOutline) string {
	var b strings.Builder
	if o.Heading != "" {
		fmt.Fprintf(&b, "# %s\n\n", o.Heading)
	}
	if len(o.Courses) == 0 {
		b.WriteString("_No chapters found._\n")
		return b.String()
	}
	for _, c := range o.Courses {
		title := c.Title
		if title == "" {
			title = "Untitled course"
		}
		fmt.Fprintf(&b, "## %d. %s\n\n", c.ID, title)
		for _, ch := range c.Chapters {
			fmt.Fprintf(&b, "%d. %s\n", ch.ID, ch.Title)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ListingMarkdown formats l as a list followed by its commentary.
func ListingMarkdown(l outline.Listing) string {
	var b strings.Builder
	if l.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", l.Title)
	}
	for i, item := range l.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Title)
	}
	if len(l.Items) > 0 {
		b.WriteString("\n")
	}
	for _, c := range l.Commentary {
		fmt.Fprintf(&b, "> %s\n\n", c)
	}
	if b.Len() == 0 {
		b.WriteString("_Nothing to show._\n")
	}
	return b.String()
}

// HistoryMarkdown lists entries newest last with responses cut to width.
func HistoryMarkdown(entries []chat.HistoryEntry, width int) string {
	if len(entries) == 0 {
		return "_History is empty._\n"
	}
	var b strings.Builder
	for _, e := range entries {
		kind := e.ActionType
		if kind == "" {
			kind = string(chat.KindTitleData)
		}
		fmt.Fprintf(&b, "- **%s** (%s): %s\n", truncate(e.UserQuery, width/2), kind, truncate(oneLine(e.ModelResponse), width))
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func terminalWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 20 {
			return width
		}
	}
	return 80
}
