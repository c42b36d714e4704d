package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TitleSelector is the literal rule token meaning "use the document title".
const TitleSelector = "title"

// titleSeparators cut site branding off document titles; the left-hand
// side of the first occurrence wins.
var titleSeparators = []string{" | ", " · ", " – ", " - "}

// Extract walks the ordered selector list and returns the first non-empty
// normalized text it produces. A selector that matches nothing, matches
// empty text, or is not valid CSS simply falls through to the next entry;
// rule configuration is external and untrusted, so nothing here can fail a
// run. When every selector falls through the result is "".
func Extract(doc *goquery.Document, selectors []string, allowTitleFallback bool) string {
	if doc == nil {
		return ""
	}

	for _, selector := range selectors {
		if selector == TitleSelector && allowTitleFallback {
			if title := CleanTitle(doc.Find("title").First().Text()); title != "" {
				return title
			}
			continue
		}

		// goquery swallows invalid selectors by matching nothing, which
		// is exactly the fall-through this chain needs.
		if text := normalizeSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}

	return ""
}

// CleanTitle strips site branding from a document title by cutting at the
// first separator occurrence and normalizing whitespace.
func CleanTitle(title string) string {
	cut := len(title)
	for _, sep := range titleSeparators {
		if idx := strings.Index(title, sep); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return normalizeSpace(title[:cut])
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
