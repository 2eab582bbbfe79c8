package htmlcheck

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/htmldom"
)

// offender is one element that fails a rule.
type offender struct {
	node    *html.Node
	summary string
}

// rule is a static DOM check reported in axe result shape.
type rule struct {
	id          string
	impact      string
	tags        []string
	description string
	help        string
	check       func(doc *html.Node) []offender
}

var rules = []rule{
	{
		id:          "image-alt",
		impact:      "critical",
		tags:        []string{"cat.text-alternatives", "wcag2a", "wcag111"},
		description: "Ensures <img> elements have alternate text or a role of none or presentation",
		help:        "Images must have alternate text",
		check:       checkImageAlt,
	},
	{
		id:          "input-image-alt",
		impact:      "critical",
		tags:        []string{"cat.text-alternatives", "wcag2a", "wcag111"},
		description: "Ensures <input type=\"image\"> elements have alternate text",
		help:        "Image buttons must have alternate text",
		check:       checkInputImageAlt,
	},
	{
		id:          "html-has-lang",
		impact:      "serious",
		tags:        []string{"cat.language", "wcag2a", "wcag311"},
		description: "Ensures every HTML document has a lang attribute",
		help:        "<html> element must have a lang attribute",
		check:       checkHTMLLang,
	},
	{
		id:          "document-title",
		impact:      "serious",
		tags:        []string{"cat.text-alternatives", "wcag2a", "wcag242"},
		description: "Ensures each HTML document contains a non-empty <title> element",
		help:        "Documents must have <title> element to aid in navigation",
		check:       checkDocumentTitle,
	},
	{
		id:          "label",
		impact:      "critical",
		tags:        []string{"cat.forms", "wcag2a", "wcag412"},
		description: "Ensures every form element has a label",
		help:        "Form elements must have labels",
		check:       checkLabels,
	},
	{
		id:          "link-name",
		impact:      "serious",
		tags:        []string{"cat.name-role-value", "wcag2a", "wcag244", "wcag412"},
		description: "Ensures links have discernible text",
		help:        "Links must have discernible text",
		check:       checkLinkName,
	},
	{
		id:          "button-name",
		impact:      "critical",
		tags:        []string{"cat.name-role-value", "wcag2a", "wcag412"},
		description: "Ensures buttons have discernible text",
		help:        "Buttons must have discernible text",
		check:       checkButtonName,
	},
	{
		id:          "frame-title",
		impact:      "serious",
		tags:        []string{"cat.text-alternatives", "wcag2a", "wcag412"},
		description: "Ensures <iframe> and <frame> elements have an accessible name",
		help:        "Frames must have an accessible name",
		check:       checkFrameTitle,
	},
	{
		id:          "duplicate-id",
		impact:      "minor",
		tags:        []string{"cat.parsing", "wcag2a", "wcag411"},
		description: "Ensures every id attribute value is unique",
		help:        "id attribute value must be unique",
		check:       checkDuplicateID,
	},
	{
		id:          "meta-viewport",
		impact:      "critical",
		tags:        []string{"cat.sensory-and-visual-cues", "wcag2aa", "wcag144"},
		description: "Ensures <meta name=\"viewport\"> does not disable text scaling and zooming",
		help:        "Zooming and scaling must not be disabled",
		check:       checkMetaViewport,
	},
	{
		id:          "empty-heading",
		impact:      "minor",
		tags:        []string{"cat.name-role-value", "best-practice"},
		description: "Ensures headings have discernible text",
		help:        "Headings should not be empty",
		check:       checkEmptyHeading,
	},
}

func checkImageAlt(doc *html.Node) []offender {
	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Img || isPresentational(n) {
			return true
		}
		if _, ok := htmldom.Attr(n, "alt"); ok || hasARIAName(doc, n) {
			return true
		}
		out = append(out, offender{n, "Element does not have an alt attribute"})
		return true
	})
	return out
}

func checkInputImageAlt(doc *html.Node) []offender {
	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Input || !strings.EqualFold(htmldom.AttrTrim(n, "type"), "image") {
			return true
		}
		if htmldom.AttrTrim(n, "alt") == "" && !hasARIAName(doc, n) {
			out = append(out, offender{n, "Element has no alt attribute or the alt attribute is empty"})
		}
		return true
	})
	return out
}

func checkHTMLLang(doc *html.Node) []offender {
	root := htmldom.Find(doc, atom.Html)
	if root == nil {
		return nil
	}
	if htmldom.AttrTrim(root, "lang") != "" || htmldom.AttrTrim(root, "xml:lang") != "" {
		return nil
	}
	return []offender{{root, "The <html> element does not have a lang attribute"}}
}

func checkDocumentTitle(doc *html.Node) []offender {
	var title *html.Node
	if head := htmldom.Find(doc, atom.Head); head != nil {
		title = htmldom.Find(head, atom.Title)
	}
	if title != nil && htmldom.Text(title) != "" {
		return nil
	}
	root := htmldom.Find(doc, atom.Html)
	if root == nil {
		return nil
	}
	return []offender{{root, "Document does not have a non-empty <title> element"}}
}

var unlabelledInputTypes = map[string]bool{
	"hidden": true, "submit": true, "reset": true, "button": true, "image": true,
}

func checkLabels(doc *html.Node) []offender {
	labelled := make(map[string]bool)
	htmldom.Walk(doc, func(n *html.Node) bool {
		if n.DataAtom == atom.Label {
			if id := htmldom.AttrTrim(n, "for"); id != "" {
				labelled[id] = true
			}
		}
		return true
	})

	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.Input:
			if unlabelledInputTypes[strings.ToLower(htmldom.AttrTrim(n, "type"))] {
				return true
			}
		case atom.Select, atom.Textarea:
		default:
			return true
		}
		if id := htmldom.AttrTrim(n, "id"); id != "" && labelled[id] {
			return true
		}
		if hasARIAName(doc, n) || htmldom.AttrTrim(n, "title") != "" || insideLabel(n) {
			return true
		}
		out = append(out, offender{n, "Form element does not have an implicit (wrapped) <label>, an explicit <label> or an aria-label"})
		return true
	})
	return out
}

func checkLinkName(doc *html.Node) []offender {
	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.A {
			return true
		}
		if _, ok := htmldom.Attr(n, "href"); !ok || isPresentational(n) {
			return true
		}
		if accessibleText(doc, n) == "" {
			out = append(out, offender{n, "Element does not have text that is visible to screen readers"})
		}
		return false
	})
	return out
}

func checkButtonName(doc *html.Node) []offender {
	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		switch {
		case n.DataAtom == atom.Button:
			if accessibleText(doc, n) == "" {
				out = append(out, offender{n, "Element does not have inner text that is visible to screen readers"})
			}
			return false
		case n.DataAtom == atom.Input:
			t := strings.ToLower(htmldom.AttrTrim(n, "type"))
			// submit and reset have a browser-provided default label
			if t == "button" && htmldom.AttrTrim(n, "value") == "" && !hasARIAName(doc, n) && htmldom.AttrTrim(n, "title") == "" {
				out = append(out, offender{n, "Element has no value attribute or the value attribute is empty"})
			}
		}
		return true
	})
	return out
}

func checkFrameTitle(doc *html.Node) []offender {
	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Iframe && n.DataAtom != atom.Frame {
			return true
		}
		if htmldom.AttrTrim(n, "title") == "" && !hasARIAName(doc, n) && !isPresentational(n) {
			out = append(out, offender{n, "Element has no title attribute or the title attribute is empty"})
		}
		return true
	})
	return out
}

func checkDuplicateID(doc *html.Node) []offender {
	counts := htmldom.IDCounts(doc)
	seen := make(map[string]bool)
	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		id := htmldom.AttrTrim(n, "id")
		if id == "" || counts[id] < 2 {
			return true
		}
		if seen[id] {
			out = append(out, offender{n, "Document has multiple elements with the same id attribute: " + id})
		}
		seen[id] = true
		return true
	})
	return out
}

func checkMetaViewport(doc *html.Node) []offender {
	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Meta || !strings.EqualFold(htmldom.AttrTrim(n, "name"), "viewport") {
			return true
		}
		if reason := viewportBlocksZoom(htmldom.AttrTrim(n, "content")); reason != "" {
			out = append(out, offender{n, reason})
		}
		return true
	})
	return out
}

// viewportBlocksZoom inspects a viewport content string such as
// "width=device-width, user-scalable=no".
func viewportBlocksZoom(content string) string {
	for _, part := range strings.FieldsFunc(content, func(r rune) bool { return r == ',' || r == ';' }) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(v))
		switch k {
		case "user-scalable":
			if v == "no" || v == "0" {
				return "user-scalable=no on <meta> tag disables zooming on mobile devices"
			}
		case "maximum-scale":
			if f, err := strconv.ParseFloat(v, 64); err == nil && f < 2 {
				return "maximum-scale on <meta> tag disables zooming on mobile devices"
			}
		}
	}
	return ""
}

func checkEmptyHeading(doc *html.Node) []offender {
	var out []offender
	htmldom.Walk(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			if accessibleText(doc, n) == "" {
				out = append(out, offender{n, "Element does not have text that is visible to screen readers"})
			}
			return false
		}
		return true
	})
	return out
}

func isPresentational(n *html.Node) bool {
	role := strings.ToLower(htmldom.AttrTrim(n, "role"))
	return role == "presentation" || role == "none"
}

func hasARIAName(doc *html.Node, n *html.Node) bool {
	if htmldom.AttrTrim(n, "aria-label") != "" {
		return true
	}
	ids := strings.Fields(htmldom.AttrTrim(n, "aria-labelledby"))
	if len(ids) == 0 {
		return false
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	found := false
	htmldom.Walk(doc, func(c *html.Node) bool {
		if found {
			return false
		}
		if want[htmldom.AttrTrim(c, "id")] && htmldom.Text(c) != "" {
			found = true
		}
		return true
	})
	return found
}

func insideLabel(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == atom.Label {
			return true
		}
	}
	return false
}

// accessibleText approximates the accessible name: ARIA naming, visible
// text, then alt text of contained images.
func accessibleText(doc *html.Node, n *html.Node) string {
	if hasARIAName(doc, n) {
		return "aria"
	}
	if t := htmldom.Text(n); t != "" {
		return t
	}
	if t := htmldom.AttrTrim(n, "title"); t != "" {
		return t
	}
	alt := ""
	htmldom.Walk(n, func(c *html.Node) bool {
		if alt == "" && (c.DataAtom == atom.Img || (c.DataAtom == atom.Input && strings.EqualFold(htmldom.AttrTrim(c, "type"), "image"))) {
			alt = htmldom.AttrTrim(c, "alt")
		}
		if alt == "" && c.DataAtom == atom.Svg {
			if title := htmldom.Find(c, atom.Title); title != nil {
				alt = htmldom.Text(title)
			}
		}
		return alt == ""
	})
	return alt
}
