// Package htmldom holds x/net/html tree helpers shared by the static page
// handle and the static rule engine.
package htmldom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxSnippet bounds the outer HTML reported for one element.
const maxSnippet = 250

// Attr returns the value of key on n and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrTrim returns the whitespace-trimmed value of key, empty when absent.
func AttrTrim(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return strings.TrimSpace(v)
}

// Text returns the collapsed text content of n, skipping script and style.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				return
			}
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Snippet renders the outer HTML of n, truncated.
func Snippet(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return "<" + n.Data + ">"
	}
	s := b.String()
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return s
}

// Walk calls fn for every element node below root in document order.
// Returning false from fn skips the element's children.
func Walk(root *html.Node, fn func(*html.Node) bool) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !fn(c) {
			continue
		}
		Walk(c, fn)
	}
}

// Find returns the first element with the given atom, or nil.
func Find(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// CSSPath returns a selector that matches only n. An element with an id that
// is unique in the document anchors the path.
func CSSPath(n *html.Node) string {
	ids := idCounts(root(n))

	var parts []string
	for c := n; c != nil && c.Type == html.ElementNode; c = c.Parent {
		if id := AttrTrim(c, "id"); id != "" && ids[id] == 1 && isPlainIdent(id) {
			parts = append(parts, "#"+id)
			break
		}
		parts = append(parts, step(c))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func step(n *html.Node) string {
	if n.Parent == nil || n.Parent.Type != html.ElementNode {
		return n.Data
	}
	index, total := 0, 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			total++
			if s == n {
				index = total
			}
		}
	}
	if total == 1 {
		return n.Data
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", n.Data, index)
}

func root(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// IDCounts returns how many elements carry each id in the document.
func IDCounts(doc *html.Node) map[string]int {
	return idCounts(doc)
}

func idCounts(doc *html.Node) map[string]int {
	counts := make(map[string]int)
	Walk(doc, func(n *html.Node) bool {
		if id := AttrTrim(n, "id"); id != "" {
			counts[id]++
		}
		return true
	})
	return counts
}

func isPlainIdent(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
