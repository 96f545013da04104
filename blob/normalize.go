package blob

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// sanitizer strips all markup; unlike the UGC policy, nothing here is ever
// rendered back as HTML, so there's no reason to keep any tags.
var sanitizer = bluemonday.StrictPolicy()

// Normalize reduces a raw doc blob to plain text suitable for prompt
// input: HTML is stripped to its visible text, Markdown is rendered to
// HTML first, and the result is run through a strict sanitizer policy to
// drop anything that slipped through as markup. Plain text skips the
// HTML/Markdown step but is still sanitized, and every result is trimmed
// of surrounding whitespace.
func Normalize(raw string) string {
	text := raw
	switch {
	case looksLikeHTML(raw):
		text = extractText(raw)
	case looksLikeMarkdown(raw):
		text = extractText(renderMarkdown(raw))
	}
	return strings.TrimSpace(sanitizer.Sanitize(text))
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "</") || strings.Contains(s, "/>")
}

func looksLikeMarkdown(s string) bool {
	for _, marker := range []string{"# ", "## ", "**", "- ", "```", "[", "]("} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func renderMarkdown(raw string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(raw))
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	return string(markdown.Render(doc, renderer))
}

func extractText(htmlDoc string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlDoc))
	if err != nil {
		return htmlDoc
	}
	return doc.Text()
}
