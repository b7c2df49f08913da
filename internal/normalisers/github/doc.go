// Package github turns fetched GitHub issues into domain documents.
//
// Bodies and comments are Markdown and are reduced to plain text.
// Labels become tags, reactions become the score, and comments by
// repository owners, members and collaborators are flagged as
// maintainer comments.
package github
