// Package services defines shared utilities consumed by the pipeline stages and
// the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, effect categories, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the Classify/Fatal
//     helpers that separate run-aborting failures from event-scoped ones.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
