// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The answer pipeline is Engine: UnderstandingService classifies and embeds
// the question, RetrievalService fans out to both sources and ranks the
// candidates, Synthesizer composes the reply. RefreshService and Scheduler
// keep the index current in the background.
package services
