// Package memory is the ephemeral storage backend.
//
// Every store keeps its data in maps guarded by a RWMutex. The document index
// scores lexical queries with Okapi BM25 computed on the fly and delegates
// nearest-neighbour search to a driven.VectorIndex. Nothing survives a restart;
// use the sqlite package when the index must persist.
package memory
