package driven

// Normaliser converts marked-up text (Markdown or HTML) to plain text.
// Implementations must be safe for concurrent use.
type Normaliser interface {
	// Normalise strips markup from content.
	Normalise(content string) NormaliseResult

	// Format returns the markup format handled, e.g. "markdown".
	Format() string
}

// NormaliseResult is plain text plus the code lifted out of it.
type NormaliseResult struct {
	// Text is the readable prose. Inline code stays in the text.
	Text string

	// Code holds fenced blocks and inline code spans in document order.
	Code []string
}
