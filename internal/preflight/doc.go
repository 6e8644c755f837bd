// Package preflight provides readiness checks for external binaries, services
// and filesystem paths that foley depends on.
//
// These checks run in two contexts:
//   - The run command calls RunAll before transcription so a missing binary
//     or unwritable cache fails fast instead of after a long WhisperX pass.
//   - The status command uses the individual check functions to display
//     dependency and planner health.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
