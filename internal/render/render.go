package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            max-width: 800px;
            margin: 0 auto;
            padding: 20px;
            color: #333;
        }
        h1 {
            color: #4a148c;
            font-size: 2em;
            margin-top: 1.2em;
            margin-bottom: 0.6em;
            border-bottom: 2px solid #e0e0e0;
            padding-bottom: 0.3em;
        }
        h2 {
            color: #1a237e;
            font-size: 1.5em;
            margin-top: 1em;
            margin-bottom: 0.5em;
        }
        h3 {
            color: #0d47a1;
            font-size: 1.2em;
            margin-top: 0.8em;
            margin-bottom: 0.4em;
        }
        p {
            margin-bottom: 1em;
        }
        ul, ol {
            margin-bottom: 1em;
            padding-left: 2em;
        }
        li {
            margin-bottom: 0.5em;
        }
        blockquote {
            border-left: 4px solid #bbdefb;
            margin: 1em 0;
            padding: 0.5em 1em;
            background-color: #e3f2fd;
            font-style: italic;
        }
        strong, b {
            color: #000;
        }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    {{.Body}}
</body>
</html>
`

var (
	page = template.Must(template.New("page").Parse(pageTemplate))

	fencePattern = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n(.*?)\r?\n?```$")
)

// Page renders body inside the shared styled report page. body is trusted
// HTML produced by the model and is inserted without escaping.
func Page(title, body string) (string, error) {
	var buf bytes.Buffer
	err := page.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		Body:  template.HTML(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return buf.String(), nil
}

// MarkdownToHTML converts markdown text to an HTML fragment.
func MarkdownToHTML(text string) string {
	if text == "" {
		return ""
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: htmlFlags,
	})

	return string(markdown.ToHTML([]byte(text), mdParser, renderer))
}

// StripCodeFence removes a single code fence wrapping the whole reply,
// as models tend to return "```html ... ```".
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}
