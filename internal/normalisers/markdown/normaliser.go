package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown such as GitHub issue bodies and user queries.
type Normaliser struct {
	md goldmark.Markdown
}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{md: goldmark.New()}
}

// Format returns the markup format handled.
func (n *Normaliser) Format() string {
	return "markdown"
}

// Normalise walks the Markdown AST and keeps readable text.
// Fenced and indented code blocks are moved to Code.
// Inline code spans stay in the text and are also copied to Code.
func (n *Normaliser) Normalise(content string) driven.NormaliseResult {
	if strings.TrimSpace(content) == "" {
		return driven.NormaliseResult{}
	}

	src := []byte(content)
	root := n.md.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	var code []string

	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Type() == ast.TypeBlock {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.FencedCodeBlock:
			code = appendCode(code, blockLines(v.Lines(), src))
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			code = appendCode(code, blockLines(v.Lines(), src))
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			span := inlineText(v, src)
			code = appendCode(code, span)
			sb.WriteString(span)
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			sb.Write(v.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return driven.NormaliseResult{
		Text: tidy(sb.String()),
		Code: code,
	}
}

func blockLines(lines *text.Segments, src []byte) string {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return sb.String()
}

func inlineText(node ast.Node, src []byte) string {
	var sb strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
		case *ast.String:
			sb.Write(v.Value)
		}
	}
	return sb.String()
}

func appendCode(code []string, c string) []string {
	c = strings.TrimSpace(c)
	if c == "" {
		return code
	}
	return append(code, c)
}

// tidy trims each line and drops blank ones.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
