package feed

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors tried in order by the primary extractor; publishers vary widely
var contentSelectors = []string{
	"article",
	"[itemprop=articleBody]",
	"main",
	".post-content",
	".entry-content",
}

// Primary extraction must yield at least this much text to be trusted
const minExtractedChars = 140

// extractContent pulls readable article text out of an HTML page using the
// primary goquery extractor. Callers fall back to stripHTML and then to the
// entry summary when this fails.
func extractContent(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := collapseWhitespace(node.Text())
		if len(text) >= minExtractedChars {
			return text, nil
		}
	}

	// Last resort inside the primary extractor: join paragraph text
	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := collapseWhitespace(strings.Join(parts, " "))
	if len(text) >= minExtractedChars {
		return text, nil
	}
	return "", fmt.Errorf("no article content found (%d chars)", len(text))
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

// stripHTML is the lightweight fallback: drop every tag and collapse
// whitespace. Crude, but never fails.
func stripHTML(page []byte) string {
	return collapseWhitespace(tagPattern.ReplaceAllString(string(page), " "))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
