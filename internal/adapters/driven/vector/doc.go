// Package vector implements driven.VectorIndex on chromem-go.
//
// Each source is a separate in-memory collection. Vectors are supplied by the
// caller (the document index owns embedding) so the collection embedding
// function only runs for ad-hoc text queries. The index is rebuilt from the
// document store at startup and is never persisted on its own.
package vector
