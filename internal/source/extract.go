package source

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// chrome holds elements whose text never counts as page content.
var chrome = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
}

// pageText accumulates the title and the first maxWords words of a page
type pageText struct {
	title    []string
	words    []string
	maxWords int
	cut      bool
}

func (p *pageText) addWords(s string) {
	for _, w := range strings.Fields(s) {
		if p.maxWords > 0 && len(p.words) == p.maxWords {
			p.cut = true
			return
		}
		p.words = append(p.words, w)
	}
}

func (p *pageText) text() string {
	text := strings.Join(p.words, " ")
	if p.cut {
		text += "..."
	}
	return text
}

func (p *pageText) visit(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		p.addWords(n.Data)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Title {
			if p.title == nil {
				p.title = strings.Fields(nodeText(n))
			}
			return
		}
		if chrome[n.DataAtom] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.visit(c)
	}
}

// ExtractText returns the page title and the visible body text of an HTML
// document, cut to maxWords words when maxWords is positive.
func ExtractText(htmlContent []byte, maxWords int) (title string, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return "", "", fmt.Errorf("parse HTML: %w", err)
	}
	p := &pageText{maxWords: maxWords}
	p.visit(doc)
	return strings.Join(p.title, " "), p.text(), nil
}

// plainText normalises whitespace of s and cuts it to maxWords words.
func plainText(s string, maxWords int) string {
	p := &pageText{maxWords: maxWords}
	p.addWords(s)
	return p.text()
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
