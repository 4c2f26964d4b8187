package web

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/yt110010111/market-analysis-LLM/pkg/common"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minMainContent is the rune count a main-content candidate needs to be
// preferred over the whole body.
const minMainContent = 100

// parseHTML extracts title, meta description and readable text. The text
// comes from readability; when that yields nothing the first main, article,
// role=main, .content or #content element with enough text is used, and
// finally the body without scripts and page chrome.
func parseHTML(body []byte, u *url.URL) common.Document {
	doc := common.Document{}

	root, err := html.Parse(bytes.NewReader(body))
	if err == nil {
		doc.Title = collapse(textOf(findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Title })))
		doc.Description = metaDescription(root)
	}

	if article, err := readability.FromReader(bytes.NewReader(body), u); err == nil {
		var b strings.Builder
		if err := article.RenderText(&b); err == nil {
			doc.Text = strings.TrimSpace(b.String())
		}
	}
	if doc.Text == "" && root != nil {
		doc.Text = mainContent(root)
	}
	return doc
}

func metaDescription(root *html.Node) string {
	var desc, og string
	walk(root, func(n *html.Node) bool {
		if n.DataAtom != atom.Meta {
			return true
		}
		switch {
		case strings.EqualFold(attr(n, "name"), "description") && desc == "":
			desc = attr(n, "content")
		case strings.EqualFold(attr(n, "property"), "og:description") && og == "":
			og = attr(n, "content")
		}
		return true
	})
	if desc != "" {
		return collapse(desc)
	}
	return collapse(og)
}

var mainMatchers = []func(*html.Node) bool{
	func(n *html.Node) bool { return n.DataAtom == atom.Main },
	func(n *html.Node) bool { return n.DataAtom == atom.Article },
	func(n *html.Node) bool { return attr(n, "role") == "main" },
	func(n *html.Node) bool { return hasClass(n, "content") },
	func(n *html.Node) bool { return attr(n, "id") == "content" },
}

var chromeAtoms = map[atom.Atom]struct{}{
	atom.Script: {}, atom.Style: {}, atom.Noscript: {}, atom.Nav: {}, atom.Footer: {}, atom.Header: {},
}

func mainContent(root *html.Node) string {
	for _, match := range mainMatchers {
		if n := findFirst(root, match); n != nil {
			if t := blockText(n); len([]rune(t)) > minMainContent {
				return t
			}
		}
	}
	if body := findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Body }); body != nil {
		return blockText(body)
	}
	return ""
}

// blockText renders n as text with one line per block element, skipping
// scripts and navigation.
func blockText(n *html.Node) string {
	var lines []string
	var cur strings.Builder
	flush := func() {
		if s := collapse(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := chromeAtoms[n.DataAtom]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			flush()
		}
	}
	visit(n)
	flush()
	return strings.Join(lines, "\n")
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main, atom.Li, atom.Br,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Tr, atom.Blockquote:
		return true
	}
	return false
}

// walk visits nodes depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n.Type == html.ElementNode && !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
