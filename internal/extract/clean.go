package extract

import (
	"strings"
	"wisgen/internal/core"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonContentSelector lists elements that never carry readable newsletter text.
const nonContentSelector = "script, style, meta, link, noscript, iframe, object, embed, video, audio, svg"

// contentSelector lists the block and list elements whose text is kept.
const contentSelector = "p, h1, h2, h3, h4, h5, h6, li"

// Clean strips non-content elements and comments from an HTML document and
// returns the visible text of its block-level and list-item elements, one per line.
func Clean(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	doc.Find(nonContentSelector).Remove()
	for _, n := range doc.Nodes {
		removeComments(n)
	}

	var lines []string
	doc.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})

	return strings.Join(lines, "\n")
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

// Text returns the representation of doc that is sent to the LLM:
// cleaned text for HTML documents, trimmed text for plain ones.
func Text(doc core.NormalizedDocument) string {
	if doc.Format == core.FormatHTML {
		return Clean(doc.Text)
	}
	return strings.TrimSpace(doc.Text)
}
