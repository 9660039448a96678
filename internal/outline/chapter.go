package outline

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Chapter is a leaf of a chapter outline
type Chapter struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// CourseChapters is a course and the chapters generated for it
type CourseChapters struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Chapters []Chapter `json:"chapters"`
}

// ChapterOutline is the parsed form of a chapter response
type ChapterOutline struct {
	Heading string           `json:"heading"`
	Courses []CourseChapters `json:"courses"`
}

type chapterBuilder struct {
	courses []CourseChapters
	seen    titleSet
}

// add attaches the unseen titles to the course named title, creating the
// course when no existing one has exactly that title. Untitled courses are
// never merged.
func (b *chapterBuilder) add(title string, items []*html.Node) {
	var fresh []string
	for _, li := range items {
		chapter := stripBold(textOf(li))
		if b.seen.add(chapter) {
			fresh = append(fresh, chapter)
		}
	}
	if len(fresh) == 0 {
		return
	}

	idx := -1
	for i := range b.courses {
		if title != "" && b.courses[i].Title == title {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.courses = append(b.courses, CourseChapters{
			ID:       len(b.courses) + 1,
			Title:    title,
			Chapters: []Chapter{},
		})
		idx = len(b.courses) - 1
	}
	course := &b.courses[idx]
	for _, chapter := range fresh {
		course.Chapters = append(course.Chapters, Chapter{ID: len(course.Chapters) + 1, Title: chapter})
	}
}

// ParseChapters reads a course to chapter hierarchy from src. Courses come
// from nested ordered lists, else from flat ordered lists titled by the
// preceding paragraph, and additionally from <ul> items whose bold title is
// followed by an ordered list. Chapter titles are unique across the outline.
func ParseChapters(src string) ChapterOutline {
	root := parseFragment(src)
	b := &chapterBuilder{seen: titleSet{}}

	lists := topLevelLists(root, atom.Ol)
	if hasNestedItems(root) {
		for _, ol := range lists {
			for _, li := range childElements(ol, atom.Li) {
				nested := firstChildList(li)
				if nested == nil {
					continue
				}
				b.add(leadText(li), childElements(nested, atom.Li))
			}
		}
	} else {
		for _, ol := range lists {
			b.add(precedingParagraph(ol), childElements(ol, atom.Li))
		}
	}

	for _, ul := range topLevelLists(root, atom.Ul) {
		for _, li := range childElements(ul, atom.Li) {
			bold := findFirst(li, func(n *html.Node) bool {
				return isElement(n, atom.B, atom.Strong)
			}, func(n *html.Node) bool {
				return !isList(n)
			})
			if bold == nil {
				continue
			}
			nested := findFirst(li, func(n *html.Node) bool {
				return isElement(n, atom.Ol)
			}, nil)
			if nested == nil {
				continue
			}
			b.add(stripBold(textOf(bold)), childElements(nested, atom.Li))
		}
	}

	courses := b.courses
	if courses == nil {
		courses = []CourseChapters{}
	}
	return ChapterOutline{
		Heading: firstParagraph(root),
		Courses: courses,
	}
}
