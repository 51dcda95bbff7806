package harvest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractParagraphs strips script/style markup from an HTML page and
// concatenates the visible paragraph text, truncated to cap runes.
func extractParagraphs(html string, cap int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})
	return truncate(strings.Join(parts, " "), cap)
}

// stripHTML flattens markup in feed-provided summary text, truncated to
// cap runes.
func stripHTML(html string, cap int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return truncate(strings.TrimSpace(html), cap)
	}
	return truncate(strings.Join(strings.Fields(doc.Text()), " "), cap)
}

func truncate(s string, cap int) string {
	if cap <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= cap {
		return s
	}
	return string(runes[:cap])
}
