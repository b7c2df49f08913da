// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - SourceConnector: fetches issues or questions from one corpus
//   - DocumentIndex: persistent lexical + semantic document store
//   - Embedder: turns text into vectors
//   - VectorIndex: per-source nearest-neighbour search
//   - RateGovernor: shared per-source request budget
//   - ResponseCache: memoised query responses
//   - SyncStateStore: refresh watermarks
//   - SchedulerStore: background task timing
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - InteractionStore: interaction log and feedback. Without it stats are empty.
//   - Metrics: counters and histograms. Without it nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
