// Package pipeline runs one foley invocation end to end.
//
// A run transcribes the narration (or loads a word file), derives effect
// events with the trigger matcher or the optional language-model planner,
// resolves an asset per event through the asset cache, and hands the
// resulting timeline to the compositor for a single export. Every dropped
// event is recorded in the Report together with its failure kind; only
// transcription failures and cancellation abort the run.
//
// Each run owns a Session: a run ID stamped on logs and provenance, the seed
// for the decorrelation transform, and the rotation state for cached assets.
// Nothing carries over between runs.
package pipeline
