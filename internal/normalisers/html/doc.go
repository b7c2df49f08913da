// Package html provides a Normaliser implementation for HTML bodies.
// It extracts readable text, stripping tags, scripts and styles, and
// lifts the contents of code elements out for entity extraction.
package html
