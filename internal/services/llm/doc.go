// Package llm is an OpenRouter chat-completions client used as a cue planner
// backend.
//
// Requests ask for a json_object response at temperature 0. Providers are
// inconsistent about where they put the answer, so the client reads message
// content, then streaming deltas, legacy text, and finally function or tool
// call arguments.
//
// HTTP 408/429/5xx, network timeouts and empty completions are retried with
// exponential backoff (1s base, 10s cap, 5 attempts). A Retry-After header
// overrides the computed delay. Context cancellation stops retries at once.
package llm
