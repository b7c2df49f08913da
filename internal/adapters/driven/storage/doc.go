// Package storage holds the rules shared by the document index backends.
//
// The sqlite package is the persistent backend, the memory package the
// ephemeral one. Both apply the same upsert semantics through Merge and
// Fingerprint so an unchanged document never produces an observable write.
package storage
