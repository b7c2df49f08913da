package normalisers

import (
	"strings"

	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/normalisers/html"
	"github.com/Odushhh/tech-support-chatbot/internal/normalisers/markdown"
)

// Ensure Auto implements the interface.
var _ driven.Normaliser = (*Auto)(nil)

// Auto dispatches to the HTML or Markdown normaliser.
type Auto struct {
	markdown driven.Normaliser
	html     driven.Normaliser
}

// NewAuto creates a normaliser that detects the markup format.
func NewAuto() *Auto {
	return &Auto{markdown: markdown.New(), html: html.New()}
}

// Format returns the markup format handled.
func (a *Auto) Format() string {
	return "auto"
}

// Normalise treats content as HTML when it carries element tags and no
// Markdown code fences, and as Markdown otherwise.
func (a *Auto) Normalise(content string) driven.NormaliseResult {
	if !strings.Contains(content, "```") && html.LooksLikeHTML(content) {
		return a.html.Normalise(content)
	}
	return a.markdown.Normalise(content)
}
