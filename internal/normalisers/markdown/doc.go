// Package markdown provides a Normaliser for Markdown built on goldmark.
package markdown
