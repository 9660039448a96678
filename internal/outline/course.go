// Package outline converts model-generated HTML fragments into course,
// chapter and listing structures. Parsing is best effort: missing structure
// yields empty fields, never an error.
package outline

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultDescriptionLeads are the lead-in words that mark a description list.
var DefaultDescriptionLeads = []string{"Courses"}

// Course is a leaf of a course outline
type Course struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Group is a titled category of courses
type Group struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Courses []Course `json:"courses"`
}

// CourseOutline is the parsed form of a program or course response
type CourseOutline struct {
	Heading string  `json:"heading"`
	Groups  []Group `json:"groups"`
}

type rawGroup struct {
	title   string
	courses []Course
}

// ParseCourse detects one of three list shapes in src, in priority order:
// nested lists, lead-in paragraphs naming one of leads followed by a list of
// "title: description" items, and flat lists. Leaf titles are unique across
// the outline.
func ParseCourse(src string, leads ...string) CourseOutline {
	if len(leads) == 0 {
		leads = DefaultDescriptionLeads
	}
	root := parseFragment(src)

	var raw []rawGroup
	if hasNestedItems(root) {
		raw = nestedGroups(root)
	} else if groups, ok := describedGroups(root, leads); ok {
		raw = groups
	} else {
		raw = flatGroups(root, nil)
	}
	return CourseOutline{
		Heading: firstParagraph(root),
		Groups:  numberGroups(raw),
	}
}

// hasNestedItems reports whether a top-level <ol> has an item holding a list.
func hasNestedItems(root *html.Node) bool {
	for _, ol := range topLevelLists(root, atom.Ol) {
		for _, li := range childElements(ol, atom.Li) {
			if firstChildList(li) != nil {
				return true
			}
		}
	}
	return false
}

func nestedGroups(root *html.Node) []rawGroup {
	var groups []rawGroup
	for _, ol := range topLevelLists(root, atom.Ol) {
		for _, li := range childElements(ol, atom.Li) {
			nested := firstChildList(li)
			if nested == nil {
				continue
			}
			g := rawGroup{title: leadText(li)}
			for _, leaf := range childElements(nested, atom.Li) {
				g.courses = append(g.courses, Course{Title: stripBold(textOf(leaf))})
			}
			groups = append(groups, g)
		}
	}
	return groups
}

// describedGroups builds groups from paragraphs whose bold lead-in names one
// of leads. Lists not claimed by a lead-in are kept as flat groups.
func describedGroups(root *html.Node, leads []string) ([]rawGroup, bool) {
	claimed := make(map[*html.Node]string)
	paragraphs := findAll(root, func(n *html.Node) bool { return isElement(n, atom.P) })
	for _, p := range paragraphs {
		bold := findFirst(p, func(n *html.Node) bool {
			return isElement(n, atom.B, atom.Strong)
		}, nil)
		if bold == nil {
			continue
		}
		lead := stripBold(textOf(bold))
		if !containsFold(lead, leads) {
			continue
		}
		list := describedList(p)
		if list == nil {
			continue
		}
		if _, taken := claimed[list]; !taken {
			claimed[list] = lead
		}
	}
	if len(claimed) == 0 {
		return nil, false
	}
	return flatGroups(root, claimed), true
}

func describedList(p *html.Node) *html.Node {
	next := nextElement(p)
	if next == nil {
		return nil
	}
	if isList(next) {
		return next
	}
	return findFirst(next, isList, nil)
}

// flatGroups turns every top-level list into a group. Lists present in
// described become description groups titled by their lead-in; other <ol>
// lists take the preceding paragraph or "Category N" as title.
func flatGroups(root *html.Node, described map[*html.Node]string) []rawGroup {
	var groups []rawGroup
	ordinal := 0
	for _, list := range findAll(root, isList) {
		if lead, ok := described[list]; ok {
			g := rawGroup{title: lead}
			for _, li := range childElements(list, atom.Li) {
				title, desc := splitDescription(textOf(li))
				g.courses = append(g.courses, Course{Title: title, Description: desc})
			}
			groups = append(groups, g)
			continue
		}
		if !isElement(list, atom.Ol) || insideItem(list, root) || insideDescribed(list, described) {
			continue
		}
		ordinal++
		g := rawGroup{title: precedingParagraph(list)}
		if g.title == "" {
			g.title = fmt.Sprintf("Category %d", ordinal)
		}
		for _, li := range childElements(list, atom.Li) {
			g.courses = append(g.courses, Course{Title: stripBold(textOf(li))})
		}
		groups = append(groups, g)
	}
	return groups
}

func insideDescribed(n *html.Node, described map[*html.Node]string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if _, ok := described[p]; ok {
			return true
		}
	}
	return false
}

func precedingParagraph(n *html.Node) string {
	prev := prevElement(n)
	if !isElement(prev, atom.P) {
		return ""
	}
	return stripBold(textOf(prev))
}

// splitDescription splits "title: description" on the first colon.
func splitDescription(text string) (string, string) {
	title, desc, found := strings.Cut(text, ":")
	if !found {
		return stripBold(text), ""
	}
	return stripBold(title), strings.TrimSpace(desc)
}

func containsFold(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, needle := range needles {
		if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

// numberGroups drops repeated and blank leaf titles, removes groups left
// empty and assigns sequential ids.
func numberGroups(raw []rawGroup) []Group {
	seen := titleSet{}
	groups := make([]Group, 0, len(raw))
	for _, r := range raw {
		g := Group{Title: r.title, Courses: []Course{}}
		for _, c := range r.courses {
			if !seen.add(c.Title) {
				continue
			}
			c.ID = len(g.Courses) + 1
			g.Courses = append(g.Courses, c)
		}
		if len(g.Courses) == 0 {
			continue
		}
		g.ID = len(groups) + 1
		groups = append(groups, g)
	}
	return groups
}
