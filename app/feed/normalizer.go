package feed

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	markupPattern = regexp.MustCompile(`<[a-zA-Z/!?][^>]*>`)
	stripPolicy   = newStripPolicy()
	// Angle brackets stay escaped so decoded text never forms a new tag.
	angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")
)

func newStripPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}

// Normalize turns a raw feed field into plain text. When the input looks like
// markup, tags (with script and style bodies) are removed in a single pass and
// entities are decoded, except that < and > stay as &lt; and &gt;. Whitespace
// runs collapse to one space and the result is trimmed.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := norm.NFC.String(raw)
	if markupPattern.MatchString(text) {
		text = stripMarkup(text)
	}

	return collapseWhitespace(text)
}

func stripMarkup(s string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(s))
	return norm.NFC.String(angleEscaper.Replace(text))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
