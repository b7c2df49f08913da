// Package connectors holds the source connectors that feed the document index.
// Each connector reads one corpus (GitHub Issues or StackOverflow) and streams
// normalised documents, either everything updated since a watermark or the
// documents matching a live query. Outbound calls go through the shared rate
// governor and the retry package.
package connectors
