// Package domain defines the core entities of the support query engine.
//
// This package is the innermost layer of the hexagon. It has NO external
// dependencies and defines the fundamental types:
//
//   - Document: a normalised GitHub issue or StackOverflow question
//   - QueryRepresentation: intent, entities, keywords and embedding of a query
//   - RankedCandidate: a document scored against a query
//   - Response: the synthesised answer handed to callers
//   - SyncState: the refresh watermark of a source
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
