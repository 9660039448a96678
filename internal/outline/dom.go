package outline

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseFragment parses src as the body of a <div> and returns that div.
// Malformed markup is repaired by the tokenizer; the result is never nil.
func parseFragment(src string) *html.Node {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(src), root)
	if err != nil {
		return root
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root
}

func isElement(n *html.Node, tags ...atom.Atom) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, tag := range tags {
		if n.DataAtom == tag {
			return true
		}
	}
	return false
}

func isList(n *html.Node) bool {
	return isElement(n, atom.Ol, atom.Ul)
}

// findAll returns every descendant of n matching keep, in document order.
func findAll(n *html.Node, keep func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if keep(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// findFirst returns the first descendant of n matching keep without
// descending into nodes rejected by enter.
func findFirst(n *html.Node, keep, enter func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if keep(c) {
			return c
		}
		if enter != nil && !enter(c) {
			continue
		}
		if found := findFirst(c, keep, enter); found != nil {
			return found
		}
	}
	return nil
}

// childElements returns the direct element children of n with one of tags.
func childElements(n *html.Node, tags ...atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, tags...) {
			out = append(out, c)
		}
	}
	return out
}

func firstChildList(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isList(c) {
			return c
		}
	}
	return nil
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func prevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// insideItem reports whether n sits below an <li> within root.
func insideItem(n, root *html.Node) bool {
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		if isElement(p, atom.Li) {
			return true
		}
	}
	return false
}

// topLevelLists returns the lists of root that are not nested in an item.
func topLevelLists(root *html.Node, tags ...atom.Atom) []*html.Node {
	return findAll(root, func(n *html.Node) bool {
		return isElement(n, tags...) && !insideItem(n, root)
	})
}

// rawText concatenates every text node below n.
func rawText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(rawText(c))
	}
	return text.String()
}

// textOf returns the whitespace-normalized text content of n.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	return cleanText(rawText(n))
}

// leadText returns the text of the first <b>/<strong> of item that is not
// part of a nested list, falling back to its first non-blank text node.
func leadText(item *html.Node) string {
	bold := findFirst(item, func(n *html.Node) bool {
		return isElement(n, atom.B, atom.Strong)
	}, func(n *html.Node) bool {
		return !isList(n)
	})
	if bold != nil {
		if text := stripBold(textOf(bold)); text != "" {
			return text
		}
	}
	for c := item.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if text := stripBold(cleanText(c.Data)); text != "" {
				return text
			}
		}
	}
	return ""
}

// firstParagraph returns the text of the first <p> below root.
func firstParagraph(root *html.Node) string {
	return textOf(findFirst(root, func(n *html.Node) bool {
		return isElement(n, atom.P)
	}, nil))
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func stripBold(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "**", ""))
}

const quoteChars = "\"'“”‘’"

func stripQuotes(text string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), quoteChars))
}

// titleSet de-duplicates titles across a document.
type titleSet map[string]struct{}

func (s titleSet) add(title string) bool {
	if title == "" {
		return false
	}
	if _, ok := s[title]; ok {
		return false
	}
	s[title] = struct{}{}
	return true
}
