package outline

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ListItem is one entry of a listing
type ListItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Listing is a title, a flat list and the commentary that follows it
type Listing struct {
	Title      string     `json:"title"`
	Items      []ListItem `json:"items"`
	Commentary []string   `json:"commentary"`
}

// ParseListing flattens every list item of src, empty ones included, and
// collects the paragraphs and headings that follow the last top-level list.
func ParseListing(src string) Listing {
	root := parseFragment(src)
	out := Listing{
		Title:      firstParagraph(root),
		Items:      []ListItem{},
		Commentary: []string{},
	}

	items := findAll(root, func(n *html.Node) bool {
		return isElement(n, atom.Li) && isList(n.Parent)
	})
	for _, li := range items {
		out.Items = append(out.Items, ListItem{Title: stripQuotes(textOf(li))})
	}

	lists := findAll(root, func(n *html.Node) bool {
		return isList(n) && !insideList(n, root)
	})
	if len(lists) == 0 {
		return out
	}
	for n := nextElement(lists[len(lists)-1]); n != nil; n = nextElement(n) {
		if !isElement(n, atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6) {
			continue
		}
		if text := stripQuotes(textOf(n)); text != "" {
			out.Commentary = append(out.Commentary, text)
		}
	}
	return out
}

func insideList(n, root *html.Node) bool {
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		if isList(p) {
			return true
		}
	}
	return false
}
