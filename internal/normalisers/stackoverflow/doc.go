// Package stackoverflow turns fetched StackOverflow questions into domain
// documents. Question and answer bodies arrive as HTML.
package stackoverflow
