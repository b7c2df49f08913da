// Package normalisers provides implementations of the Normaliser interface
// for the markup formats found in issues, questions and user queries.
//
// Auto picks between the HTML and Markdown normalisers by inspecting the
// content. The github and stackoverflow subpackages turn fetched records
// into domain documents.
package normalisers
